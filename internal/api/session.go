// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/sessioncookie"
)

// requestSession is the session of one HTTP request, backed by its cookie.
type requestSession struct {
	mu    sync.Mutex
	w     http.ResponseWriter
	codec *sessioncookie.Codec
	key   string
}

var _ auth.SessionHandle = (*requestSession)(nil)

func (s *requestSession) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

func (s *requestSession) Establish(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.codec.Write(s.w, key); err != nil {
		return oops.Code("SESSION_COOKIE_WRITE_FAILED").Wrap(err)
	}
	s.key = key
	return nil
}

func (s *requestSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codec.Clear(s.w)
	s.key = ""
}

// noSession is used when a resolver runs outside the session middleware.
type noSession struct{}

func (noSession) Key() string { return "" }

func (noSession) Establish(string) error {
	return oops.Code("SESSION_UNAVAILABLE").Errorf("no session transport on this request")
}

func (noSession) Clear() {}

type sessionCtxKey struct{}

// withSession reads the session cookie and exposes it to resolvers.
func withSession(codec *sessioncookie.Codec, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := &requestSession{w: w, codec: codec, key: codec.Read(r)}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionCtxKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) auth.SessionHandle {
	if sess, ok := ctx.Value(sessionCtxKey{}).(*requestSession); ok {
		return sess
	}
	return noSession{}
}
