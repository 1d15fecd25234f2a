// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package api serves the auth operations as a GraphQL endpoint.
//
// Each request carries its session cookie into the resolvers as an
// auth.SessionHandle. Resolvers return field errors as data and turn
// store failures into an opaque "internal error" with a code extension.
package api
