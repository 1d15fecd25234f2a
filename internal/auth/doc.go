// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package auth implements account registration, login and password reset.
//
// # Collaborators
//
// The Controller depends only on interfaces declared here:
//   - AccountRepository - durable accounts (see package auth/postgres)
//   - SessionStore, ResetTokenStore - ephemeral keys with expiry (see package auth/redis)
//   - PasswordHasher - argon2id with legacy bcrypt verification
//   - Notifier - delivers the reset link (see package notify)
//   - SessionHandle - the caller's cookie, supplied per request by the transport
//
// # Results
//
// User-correctable failures are returned as FieldError values inside an
// AccountResult and never as Go errors. A non-nil error always means a
// store or infrastructure failure; in that case the caller's session is
// left as it was.
package auth
