// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("ACCOUNT_CREATE_FAILED").Errorf("insert failed")
	errutil.AssertErrorCode(t, err, "ACCOUNT_CREATE_FAILED")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("operation", "consume reset token").Errorf("redis down")
	errutil.AssertErrorContext(t, err, "operation", "consume reset token")
}
