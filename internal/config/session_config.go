package config

import "time"

type Session struct {
	Secret          string `env:"SESSION_SECRET,required,notEmpty" validate:"min=32"`
	DurationSeconds int    `env:"SESSION_DURATION" envDefault:"3600" validate:"gt=0"`
	CookieName      string `env:"SESSION_COOKIE_NAME" envDefault:"sessionid" validate:"required"`
}

func (s Session) GetSessionSecret() string {
	return s.Secret
}

func (s Session) GetSessionDuration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

func (s Session) GetSessionCookieName() string {
	return s.CookieName
}
