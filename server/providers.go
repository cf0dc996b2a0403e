package server

// SignInProvider describes an identity provider offered on the sign-in page.
type SignInProvider struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	SignInURL string `json:"signinUrl"`
}

const zitadelProviderID = "zitadel"

func defaultProviders() []SignInProvider {
	return []SignInProvider{{
		ID:        zitadelProviderID,
		Name:      "ZITADEL",
		Type:      "oidc",
		SignInURL: RouteAuthSignIn + "/" + zitadelProviderID,
	}}
}

func (s *Server) provider(id string) (SignInProvider, bool) {
	for _, p := range s.providers {
		if p.ID == id {
			return p, true
		}
	}
	return SignInProvider{}, false
}
