// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import "context"

// Notifier delivers an HTML message to an email address.
type Notifier interface {
	Deliver(ctx context.Context, address, htmlBody string) error
}
