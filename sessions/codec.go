package sessions

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-oidc-session/internal/errors"
	"golang.org/x/crypto/hkdf"
)

const (
	keyInfo   = "session-cookie-hs256"
	keyLength = 32
)

// NowTimeFunc is the clock used when stamping and validating cookies.
var NowTimeFunc = time.Now

// Codec turns session data into a signed cookie value and back.
type Codec struct {
	key []byte
	ttl time.Duration
}

type cookieClaims struct {
	Data SessionData `json:"sess"`
	jwtlib.RegisteredClaims
}

// NewCodec derives the HMAC key from secret. ttl bounds how long an encoded
// value stays valid.
func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, errors.Wrapf(errors.ErrConfig, "session secret is empty")
	}
	if ttl <= 0 {
		return nil, errors.Wrapf(errors.ErrConfig, "session duration must be positive, got %s", ttl)
	}
	key := make([]byte, keyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return &Codec{key: key, ttl: ttl}, nil
}

func (c *Codec) Encode(data *SessionData) (string, error) {
	now := NowTimeFunc()
	claims := cookieClaims{
		Data: *data,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(c.ttl)),
		},
	}
	value, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return value, nil
}

// Decode verifies value and returns the session it carries. Any failure is
// reported as ErrInvalidSession.
func (c *Codec) Decode(value string) (*SessionData, error) {
	claims := &cookieClaims{}
	_, err := jwtlib.ParseWithClaims(value, claims,
		func(*jwtlib.Token) (interface{}, error) { return c.key, nil },
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(NowTimeFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidSession, err)
	}
	return &claims.Data, nil
}
