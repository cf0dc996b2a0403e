package server

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteHome+"{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteProfile, ChainMiddleware(s.ProfileHandler(), s.HTMLMiddleWare(s.RequireSessionAuth())...))

	// SIGN IN
	s.RegisterRouteHandler("GET "+RouteAuthCSRF, ChainMiddleware(s.CSRFHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthSignIn, ChainMiddleware(s.SignInPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthSignInProvider, ChainMiddleware(s.SignInProviderHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthError, ChainMiddleware(s.AuthErrorPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthUserInfo, ChainMiddleware(s.UserInfoHandler(), s.APIMiddleware(s.RequireSessionAuth())...))

	// LOGOUT
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogoutCallback, ChainMiddleware(s.LogoutCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogoutSuccess, ChainMiddleware(s.LogoutSuccessHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogoutError, ChainMiddleware(s.LogoutErrorHandler(), s.HTMLMiddleWare()...))
}
