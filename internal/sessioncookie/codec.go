// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package sessioncookie carries session keys to the browser as signed cookies.
package sessioncookie

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// DefaultName is the cookie name used when none is configured.
const DefaultName = "qid"

// DefaultMaxAge is ten years.
const DefaultMaxAge = 87600 * time.Hour

// Options configures a Codec.
type Options struct {
	Name   string
	Secret []byte
	// MaxAge is the cookie lifetime in the browser.
	MaxAge time.Duration
	// TTL is the server-side session lifetime. Zero means sessions never expire.
	TTL    time.Duration
	Secure bool
}

// Codec signs session keys into cookies and reads them back.
type Codec struct {
	name   string
	secret []byte
	maxAge time.Duration
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// New creates a Codec. An empty secret is rejected.
func New(opts Options) (*Codec, error) {
	if len(opts.Secret) == 0 {
		return nil, oops.Code("SESSION_SECRET_MISSING").Errorf("session secret is required")
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.TTL < 0 {
		return nil, oops.Code("SESSION_TTL_INVALID").With("ttl", opts.TTL.String()).Errorf("session ttl must not be negative")
	}
	return &Codec{
		name:   opts.Name,
		secret: opts.Secret,
		maxAge: opts.MaxAge,
		ttl:    opts.TTL,
		secure: opts.Secure,
		now:    time.Now,
	}, nil
}

// Name returns the cookie name.
func (c *Codec) Name() string { return c.name }

// lifetime is the cookie Max-Age: the configured max-age, capped by the
// session ttl when sessions expire.
func (c *Codec) lifetime() time.Duration {
	if c.ttl > 0 && c.ttl < c.maxAge {
		return c.ttl
	}
	return c.maxAge
}

// Encode signs key as an HS256 token.
func (c *Codec) Encode(key string) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		ID:       key,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if c.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("SESSION_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Decode verifies a token and returns the session key it carries.
func (c *Codec) Decode(value string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		code := "SESSION_COOKIE_INVALID"
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = "SESSION_COOKIE_EXPIRED"
		}
		return "", oops.Code(code).Wrap(err)
	}
	if claims.ID == "" {
		return "", oops.Code("SESSION_COOKIE_INVALID").Errorf("session cookie carries no key")
	}
	return claims.ID, nil
}

// Read returns the session key from r's cookie, or "" when the cookie is
// missing or fails verification.
func (c *Codec) Read(r *http.Request) string {
	cookie, err := r.Cookie(c.name)
	if err != nil || cookie.Value == "" {
		return ""
	}
	key, err := c.Decode(cookie.Value)
	if err != nil {
		return ""
	}
	return key
}

// Write sets the session cookie for key.
func (c *Codec) Write(w http.ResponseWriter, key string) error {
	value, err := c.Encode(key)
	if err != nil {
		return err
	}
	http.SetCookie(w, c.cookie(value, int(c.lifetime().Seconds())))
	return nil
}

// Clear expires the session cookie.
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}

func (c *Codec) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
