// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"strings"
	"unicode/utf8"
)

// Input field names reported in FieldError.Field.
const (
	FieldUsername    = "username"
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldNewPassword = "newPassword"
	FieldToken       = "token"
)

// User-facing messages.
const (
	MsgInvalidEmail       = "Invalid email address"
	MsgTooShort           = "length must be greater than 2"
	MsgContainsAt         = "You can't include a @ sign"
	MsgUsernameTaken      = "username is already taken"
	MsgEmailTaken         = "email is already taken"
	MsgInvalidCredentials = "The username or password didn't match our system"
	MsgTokenExpired       = "Token expired"
	MsgAccountGone        = "User no longer exists"
)

// minLength is exclusive: values must be longer than this.
const minLength = 2

// FieldError is a validation failure tagged with the offending input field.
type FieldError struct {
	Field   string
	Message string
}

// RegisterInput carries the register operation's arguments.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// ValidateRegistration returns the first rule the input breaks, or nil.
// Rules run in order: username length, password length, email "@",
// username "@".
func ValidateRegistration(in RegisterInput) *FieldError {
	if utf8.RuneCountInString(in.Username) <= minLength {
		return &FieldError{Field: FieldUsername, Message: MsgTooShort}
	}
	if fe := ValidatePassword(FieldPassword, in.Password); fe != nil {
		return fe
	}
	if !strings.Contains(in.Email, "@") {
		return &FieldError{Field: FieldEmail, Message: MsgInvalidEmail}
	}
	if strings.Contains(in.Username, "@") {
		return &FieldError{Field: FieldUsername, Message: MsgContainsAt}
	}
	return nil
}

// ValidatePassword checks password length, reporting failures against field.
func ValidatePassword(field, password string) *FieldError {
	if utf8.RuneCountInString(password) <= minLength {
		return &FieldError{Field: field, Message: MsgTooShort}
	}
	return nil
}

func duplicateFieldError(field string) FieldError {
	if field == FieldEmail {
		return FieldError{Field: FieldEmail, Message: MsgEmailTaken}
	}
	return FieldError{Field: FieldUsername, Message: MsgUsernameTaken}
}
