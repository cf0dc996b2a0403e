package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteHome    = "/"
	RouteProfile = "/profile"

	// Auth Routes - Sign in
	RouteAuthCSRF           = "/auth/csrf"
	RouteAuthSignIn         = "/auth/signin"
	RouteAuthSignInProvider = "/auth/signin/{provider}"
	RouteAuthCallback       = "/auth/callback"
	RouteAuthError          = "/auth/error"
	RouteAuthUserInfo       = "/auth/userinfo"

	// Auth Routes - Logout
	RouteAuthLogout         = "/auth/logout"
	RouteAuthLogoutCallback = "/auth/logout/callback"
	RouteAuthLogoutSuccess  = "/auth/logout/success"
	RouteAuthLogoutError    = "/auth/logout/error"
)

// Query and form parameter names
const (
	paramCallbackURL = "callbackUrl"
	paramCSRFToken   = "csrfToken"
	paramError       = "error"
	paramReason      = "reason"
	paramState       = "state"
	paramCode        = "code"
)

// Error codes carried in the error query parameter
const (
	errorVerification = "verification"
	errorSignIn       = "signin"
	errorCallback     = "callback"
)

const invalidLogoutStateReason = "Invalid or missing state parameter."

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)
