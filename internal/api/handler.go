// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package api

import (
	_ "embed"
	"log/slog"
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/sessioncookie"
)

// Path is where the GraphQL endpoint is mounted.
const Path = "/graphql"

//go:embed schema.graphql
var schemaSDL string

//go:embed graphiql.html
var graphiqlPage []byte

// SchemaSDL returns the GraphQL schema served at Path.
func SchemaSDL() string {
	return schemaSDL
}

// Options configures the GraphQL handler.
type Options struct {
	Auth    Authenticator
	Cookies *sessioncookie.Codec
	// Metrics is optional.
	Metrics Recorder
	Logger  *slog.Logger
	// CORSOrigin is the single origin allowed to send credentialed requests.
	CORSOrigin string
	// Production disables the GraphiQL page.
	Production bool
}

// NewHandler builds the HTTP handler serving Path.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Auth == nil {
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("authenticator is required")
	}
	if opts.Cookies == nil {
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("session cookie codec is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = noopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	schema, err := graphql.ParseSchema(schemaSDL, &Resolver{
		auth:    opts.Auth,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	})
	if err != nil {
		return nil, oops.Code("API_SCHEMA_INVALID").Wrap(err)
	}

	endpoint := &relay.Handler{Schema: schema}
	graphQL := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			endpoint.ServeHTTP(w, r)
		case r.Method == http.MethodGet && !opts.Production:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			//nolint:errcheck // client may disconnect
			w.Write(graphiqlPage)
		default:
			w.Header().Set("Allow", allowedMethods(opts.Production))
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		}
	})

	mux := http.NewServeMux()
	mux.Handle(Path, withSession(opts.Cookies, graphQL))
	return withCORS(opts.CORSOrigin, mux), nil
}

func allowedMethods(production bool) string {
	if production {
		return http.MethodPost
	}
	return http.MethodGet + ", " + http.MethodPost
}
