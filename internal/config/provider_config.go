package config

import "time"

type Provider struct {
	Domain        string        `env:"ZITADEL_DOMAIN,required,notEmpty" validate:"required,url"`
	ClientID      string        `env:"ZITADEL_CLIENT_ID,required,notEmpty"`
	ClientSecret  string        `env:"ZITADEL_CLIENT_SECRET,required,notEmpty"`
	CallbackURL   string        `env:"ZITADEL_CALLBACK_URL,required,notEmpty" validate:"required,url"`
	PostLoginURL  string        `env:"ZITADEL_POST_LOGIN_URL" envDefault:"/profile" validate:"required"`
	PostLogoutURL string        `env:"ZITADEL_POST_LOGOUT_URL" envDefault:"/" validate:"required"`
	Scopes        []string      `env:"ZITADEL_SCOPES" envSeparator:" " envDefault:"openid profile email offline_access urn:zitadel:iam:user:metadata urn:zitadel:iam:user:resourceowner urn:zitadel:iam:org:projects:roles"`
	Timeout       time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"5s" validate:"gt=0"`
}

var _ ProviderConfig = Provider{}

// GetDomain returns the provider issuer as scheme://host.
func (p Provider) GetDomain() string {
	return p.Domain
}

func (p Provider) GetClientID() string {
	return p.ClientID
}

func (p Provider) GetClientSecret() string {
	return p.ClientSecret
}

func (p Provider) GetCallbackURL() string {
	return p.CallbackURL
}

func (p Provider) GetPostLoginURL() string {
	return p.PostLoginURL
}

func (p Provider) GetPostLogoutURL() string {
	return p.PostLogoutURL
}

// GetScopes always includes openid, first.
func (p Provider) GetScopes() []string {
	scopes := []string{"openid"}
	for _, s := range p.Scopes {
		if s != "" && s != "openid" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

func (p Provider) GetProviderTimeout() time.Duration {
	return p.Timeout
}
