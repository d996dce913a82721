// Package auth verifies and mints the bearer tokens that identify API
// callers. Tokens are HS256 JWTs whose subject is the user id.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"collab-go/internal/model"
)

// ErrNoToken is returned when a request carries no bearer token.
var ErrNoToken = errors.New("authorization token required")

// Claims are the token claims the server understands.
type Claims struct {
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies tokens signed with a shared secret.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// New creates an Authenticator. An empty issuer disables the issuer check.
func New(secret []byte, issuer string) (*Authenticator, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("jwt secret must be at least 16 bytes")
	}
	return &Authenticator{secret: secret, issuer: issuer, now: time.Now}, nil
}

// WithClock returns a copy that reads the current time from now.
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	c := *a
	c.now = now
	return &c
}

// Issue mints a token for user valid for ttl.
func (a *Authenticator) Issue(user *model.User, ttl time.Duration) (string, error) {
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("token subject is required")
	}
	now := a.now()
	claims := Claims{
		Name:   user.DisplayName,
		Avatar: user.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, expiry and issuer of raw and returns the user
// it names.
func (a *Authenticator) Verify(raw string) (*model.User, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("invalid token: missing subject")
	}

	return &model.User{
		ID:          claims.Subject,
		DisplayName: claims.Name,
		AvatarURL:   claims.Avatar,
	}, nil
}

// FromRequest extracts the bearer token from the Authorization header, or
// from the token query parameter for websocket upgrades where browsers cannot
// set headers.
func FromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:]), nil
		}
		return "", fmt.Errorf("malformed authorization header")
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t, nil
	}
	return "", ErrNoToken
}
