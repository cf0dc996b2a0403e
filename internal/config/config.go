package config

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-oidc-session/internal/errors"
)

type Config interface {
	EnvConfig
	CorsConfig
	ProviderConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	IsProduction() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type ProviderConfig interface {
	GetDomain() string
	GetClientID() string
	GetClientSecret() string
	GetCallbackURL() string
	GetPostLoginURL() string
	GetPostLogoutURL() string
	GetScopes() []string
	GetProviderTimeout() time.Duration
}

type SessionConfig interface {
	GetSessionSecret() string
	GetSessionDuration() time.Duration
	GetSessionCookieName() string
	GetSecureCookies() bool
}

type mainConfig struct {
	EnvVars
	Cors
	Provider
	Session
}

// GetSecureCookies marks the session cookie Secure when running in production.
func (c mainConfig) GetSecureCookies() bool {
	return c.IsProduction()
}

// New loads an optional .env file and then reads the process environment.
func New() (Config, error) {
	_ = godotenv.Load()
	return Load(env.Options{})
}

// Load parses the configuration with the given options. Tests pass a fixed
// Environment map so nothing is read from the process.
func Load(opts env.Options) (Config, error) {
	c := &mainConfig{}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrConfig, err)
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("env"), ",")
		return name
	})
	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrConfig, err)
	}

	domain, err := normaliseDomain(c.Provider.Domain)
	if err != nil {
		return nil, err
	}
	c.Provider.Domain = domain
	c.Cors.build()
	return c, nil
}

// normaliseDomain reduces the provider domain to scheme://host so a trailing
// path or slash never leaks into the issuer.
func normaliseDomain(domain string) (string, error) {
	u, err := url.Parse(domain)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", errors.Wrapf(errors.ErrConfig, "ZITADEL_DOMAIN %q is not an absolute URL", domain)
	}
	return u.Scheme + "://" + u.Host, nil
}
