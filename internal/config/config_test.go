// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/pkg/errutil"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func validConfig() Config {
	return Config{
		Env:         EnvDevelopment,
		HTTPAddr:    DefaultHTTPAddr,
		LogFormat:   "json",
		DatabaseURL: DefaultDatabaseURL,
		RedisURL:    DefaultRedisURL,
		Session: SessionConfig{
			Secret:       "keyboard cat",
			CookieName:   DefaultCookieName,
			CookieMaxAge: DefaultCookieMaxAge,
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, DefaultMetricsAddr, cfg.MetricsAddr)
	assert.Equal(t, DefaultCookieName, cfg.Session.CookieName)
	assert.Equal(t, DefaultCookieMaxAge, cfg.Session.CookieMaxAge)
	assert.Zero(t, cfg.Session.TTL)
	assert.Equal(t, DefaultResetURL, cfg.Mail.ResetURL)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.False(t, cfg.AutoMigrate)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "gatekeep.yaml", `
env: production
http_addr: ":5000"
log_format: text
session:
  secret: from-file
  cookie_name: sid
  ttl: 24h
mail:
  host: smtp.example.com
  port: 2525
`)

	t.Setenv("GATEKEEP_HTTP_ADDR", ":6000")
	t.Setenv("GATEKEEP_SESSION__SECRET", "from-env")
	t.Setenv("GATEKEEP_MAIL__FROM", "noreply@example.com")

	cfg, err := Load(LoadOptions{
		File:  path,
		Flags: newFlags(t, "--http-addr", ":7000", "--session-ttl", "2h"),
	})
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Env, "file value")
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "text", cfg.LogFormat, "file beats flag default")
	assert.Equal(t, ":7000", cfg.HTTPAddr, "explicit flag beats env and file")
	assert.Equal(t, "from-env", cfg.Session.Secret, "env beats file")
	assert.Equal(t, "sid", cfg.Session.CookieName)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL, "explicit flag beats file")
	assert.Equal(t, DefaultCookieMaxAge, cfg.Session.CookieMaxAge, "flag default fills unset key")
	assert.Equal(t, "smtp.example.com", cfg.Mail.Host)
	assert.Equal(t, 2525, cfg.Mail.Port)
	assert.Equal(t, "noreply@example.com", cfg.Mail.From)
}

func TestLoad_EnvFile(t *testing.T) {
	path := writeFile(t, ".env", "GATEKEEP_SESSION__SECRET=dotenv-secret\nGATEKEEP_SESSION__TTL=90m\n")
	t.Cleanup(func() {
		_ = os.Unsetenv("GATEKEEP_SESSION__SECRET")
		_ = os.Unsetenv("GATEKEEP_SESSION__TTL")
	})

	cfg, err := Load(LoadOptions{EnvFile: path})
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret", cfg.Session.Secret)
	assert.Equal(t, 90*time.Minute, cfg.Session.TTL)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "missing.yaml")})
	errutil.AssertErrorCode(t, err, "CONFIG_FILE_NOT_FOUND")

	_, err = Load(LoadOptions{File: writeFile(t, "bad.yaml", "env: [unterminated")})
	errutil.AssertErrorCode(t, err, "CONFIG_PARSE_FAILED")

	_, err = Load(LoadOptions{EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	errutil.AssertErrorCode(t, err, "CONFIG_ENV_FILE_FAILED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown env", mutate: func(c *Config) { c.Env = "staging" }, wantKey: "env"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantKey: "log_format"},
		{name: "no http addr", mutate: func(c *Config) { c.HTTPAddr = "" }, wantKey: "http_addr"},
		{name: "no database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantKey: "database_url"},
		{name: "no redis", mutate: func(c *Config) { c.RedisURL = "" }, wantKey: "redis_url"},
		{name: "missing secret", mutate: func(c *Config) { c.Session.Secret = "" }, wantKey: "session.secret"},
		{name: "no cookie name", mutate: func(c *Config) { c.Session.CookieName = "" }, wantKey: "session.cookie_name"},
		{name: "zero max age", mutate: func(c *Config) { c.Session.CookieMaxAge = 0 }, wantKey: "session.cookie_max_age"},
		{name: "negative ttl", mutate: func(c *Config) { c.Session.TTL = -time.Second }, wantKey: "session.ttl"},
		{name: "mail host without from", mutate: func(c *Config) { c.Mail.Host = "smtp.example.com" }, wantKey: "mail.from"},
		{name: "production without mail host", mutate: func(c *Config) { c.Env = EnvProduction }, wantKey: "mail.host"},
		{name: "production with mail", mutate: func(c *Config) {
			c.Env = EnvProduction
			c.Mail.Host = "smtp.example.com"
			c.Mail.From = "noreply@example.com"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantKey == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "key", tt.wantKey)
		})
	}
}

func TestRedact(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = "postgres://gatekeep:hunter2@db:5432/gatekeep"
	cfg.RedisURL = "redis://localhost:6379/0"
	cfg.Mail.Password = "smtp-pass"

	red := cfg.Redact()
	assert.Equal(t, Redacted, red.Session.Secret)
	assert.Equal(t, Redacted, red.Mail.Password)
	assert.NotContains(t, red.DatabaseURL, "hunter2")
	assert.Contains(t, red.DatabaseURL, "gatekeep:")
	assert.Equal(t, "redis://localhost:6379/0", red.RedisURL)

	assert.Equal(t, "keyboard cat", cfg.Session.Secret, "original untouched")

	empty := Config{}.Redact()
	assert.Empty(t, empty.Session.Secret)
	assert.Empty(t, empty.Mail.Password)
}

func TestFlagKey(t *testing.T) {
	assert.Equal(t, "http_addr", flagKey(FlagHTTPAddr))
	assert.Equal(t, "session.cookie_max_age", flagKey(FlagCookieMaxAge))
	assert.Equal(t, "session.ttl", flagKey(FlagSessionTTL))
	assert.Equal(t, "mail.reset_url", flagKey(FlagResetURL))
	assert.Equal(t, "env", flagKey(FlagEnv))
}

func TestLoad_IgnoresUnrelatedFlags(t *testing.T) {
	fs := newFlags(t)
	fs.String("config", "", "")
	require.NoError(t, fs.Set("config", "gatekeep.yaml"))

	cfg, err := Load(LoadOptions{Flags: fs})
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "session.cookie_name", envKey("GATEKEEP_SESSION__COOKIE_NAME"))
	assert.Equal(t, "database_url", envKey("GATEKEEP_DATABASE_URL"))
}
