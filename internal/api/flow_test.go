// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	authredis "github.com/gatekeep/gatekeep/internal/auth/redis"
	"github.com/gatekeep/gatekeep/internal/sessioncookie"
)

// memoryAccounts is an in-memory auth.AccountRepository.
type memoryAccounts struct {
	mu   sync.Mutex
	byID map[ulid.ULID]*auth.Account
}

func (m *memoryAccounts) Create(_ context.Context, a *auth.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Username == a.Username {
			return &auth.DuplicateError{Field: auth.FieldUsername}
		}
		if existing.Email == a.Email {
			return &auth.DuplicateError{Field: auth.FieldEmail}
		}
	}
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

func (m *memoryAccounts) find(match func(*auth.Account) bool) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if match(a) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memoryAccounts) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	return m.find(func(a *auth.Account) bool { return a.ID == id })
}

func (m *memoryAccounts) GetByUsernameOrEmail(ctx context.Context, identifier string) (*auth.Account, error) {
	if auth.IsEmailIdentifier(identifier) {
		return m.GetByEmail(ctx, identifier)
	}
	return m.find(func(a *auth.Account) bool { return a.Username == identifier })
}

func (m *memoryAccounts) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	return m.find(func(a *auth.Account) bool { return a.Email == email })
}

func (m *memoryAccounts) UpdatePassword(_ context.Context, id ulid.ULID, hash string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	a.PasswordHash = hash
	a.UpdatedAt = time.Now().UTC()
	cp := *a
	return &cp, nil
}

// outbox captures reset emails.
type outbox struct {
	mu     sync.Mutex
	bodies []string
}

func (o *outbox) Deliver(_ context.Context, _, htmlBody string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bodies = append(o.bodies, htmlBody)
	return nil
}

func (o *outbox) lastToken(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.bodies)
	body := o.bodies[len(o.bodies)-1]
	start := strings.Index(body, auth.DefaultResetURL)
	require.GreaterOrEqual(t, start, 0, body)
	rest := body[start+len(auth.DefaultResetURL):]
	return rest[:strings.Index(rest, `"`)]
}

func newFlowHandler(t *testing.T) (http.Handler, *outbox) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mail := &outbox{}
	ctrl, err := auth.NewController(auth.ControllerConfig{
		Accounts: &memoryAccounts{byID: map[ulid.ULID]*auth.Account{}},
		Sessions: authredis.NewSessionStore(client, 0),
		Resets:   authredis.NewResetTokenStore(client),
		Hasher:   auth.NewArgon2idHasher(),
		Notifier: mail,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	cookies, err := sessioncookie.New(sessioncookie.Options{Secret: []byte("flow-secret")})
	require.NoError(t, err)

	h, err := NewHandler(Options{Auth: ctrl, Cookies: cookies, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	return h, mail
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == sessioncookie.DefaultName && c.MaxAge > 0 {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func meUsername(t *testing.T, h http.Handler, cookies ...*http.Cookie) string {
	t.Helper()
	_, resp := post(t, h, `{ me { username } }`, nil, cookies...)
	require.Empty(t, resp.Errors)
	var me *struct{ Username string }
	require.NoError(t, json.Unmarshal(resp.Data["me"], &me))
	if me == nil {
		return ""
	}
	return me.Username
}

func TestFlow_RegisterLoginLogout(t *testing.T) {
	h, _ := newFlowHandler(t)

	rec, resp := post(t, h, `mutation { register(options: {username: "alice", email: "alice@example.com", password: "hunter22"}) { errors { field } account { username } } }`, nil)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"errors":null,"account":{"username":"alice"}}`, string(resp.Data["register"]))
	registered := sessionCookie(t, rec.Result())
	assert.Equal(t, "alice", meUsername(t, h, registered))

	_, resp = post(t, h, `mutation { register(options: {username: "alice", email: "other@example.com", password: "hunter22"}) { errors { field message } } }`, nil)
	assert.JSONEq(t, `{"errors":[{"field":"username","message":"username is already taken"}]}`, string(resp.Data["register"]))

	_, wrong := post(t, h, `mutation { login(usernameOrEmail: "alice", password: "nope") { errors { field message } account { id } } }`, nil)
	_, unknown := post(t, h, `mutation { login(usernameOrEmail: "nobody", password: "nope") { errors { field message } account { id } } }`, nil)
	assert.JSONEq(t, string(wrong.Data["login"]), string(unknown.Data["login"]), "unknown user and wrong password look the same")

	rec, resp = post(t, h, `mutation { login(usernameOrEmail: "alice@example.com", password: "hunter22") { account { username } } }`, nil)
	require.Empty(t, resp.Errors)
	loggedIn := sessionCookie(t, rec.Result())
	assert.Equal(t, "alice", meUsername(t, h, loggedIn))

	_, resp = post(t, h, `mutation { logout }`, nil, loggedIn)
	assert.JSONEq(t, `true`, string(resp.Data["logout"]))
	assert.Empty(t, meUsername(t, h, loggedIn), "session destroyed server-side")
	assert.Equal(t, "alice", meUsername(t, h, registered), "other sessions survive")
}

func TestFlow_PasswordReset(t *testing.T) {
	h, mail := newFlowHandler(t)

	_, resp := post(t, h, `mutation { register(options: {username: "bob", email: "bob@example.com", password: "oldpass"}) { account { id } } }`, nil)
	require.Empty(t, resp.Errors)

	_, resp = post(t, h, `mutation { forgotPassword(email: "ghost@example.com") }`, nil)
	assert.JSONEq(t, `true`, string(resp.Data["forgotPassword"]))
	assert.Empty(t, mail.bodies, "no email for unknown address")

	_, resp = post(t, h, `mutation { forgotPassword(email: "bob@example.com") }`, nil)
	assert.JSONEq(t, `true`, string(resp.Data["forgotPassword"]))
	token := mail.lastToken(t)

	_, resp = post(t, h, `query($t: String!) { resetTokenValid(token: $t) }`, map[string]any{"t": token})
	assert.JSONEq(t, `true`, string(resp.Data["resetTokenValid"]))

	_, resp = post(t, h, `mutation($t: String!) { changePassword(token: $t, newPassword: "x") { errors { field message } } }`, map[string]any{"t": token})
	assert.JSONEq(t, `{"errors":[{"field":"newPassword","message":"length must be greater than 2"}]}`, string(resp.Data["changePassword"]))

	rec, resp := post(t, h, `mutation($t: String!) { changePassword(token: $t, newPassword: "newpass") { account { username } } }`, map[string]any{"t": token})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"account":{"username":"bob"}}`, string(resp.Data["changePassword"]))
	assert.Equal(t, "bob", meUsername(t, h, sessionCookie(t, rec.Result())))

	_, resp = post(t, h, `mutation($t: String!) { changePassword(token: $t, newPassword: "again") { errors { field message } } }`, map[string]any{"t": token})
	assert.JSONEq(t, `{"errors":[{"field":"token","message":"Token expired"}]}`, string(resp.Data["changePassword"]))

	_, resp = post(t, h, `mutation { login(usernameOrEmail: "bob", password: "newpass") { account { username } } }`, nil)
	assert.JSONEq(t, `{"account":{"username":"bob"}}`, string(resp.Data["login"]))
}
