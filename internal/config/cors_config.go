package config

import "strings"

type Cors struct {
	Origins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	allowed AllowedOrigins
}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

func (c *Cors) build() {
	c.allowed = AllowedOrigins{}
	for _, o := range c.Origins {
		if o = strings.TrimSpace(o); o != "" {
			c.allowed[o] = nullValue{}
		}
	}
}

func (c Cors) GetAllowedOrigins() AllowedOrigins {
	return c.allowed
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type"
}
