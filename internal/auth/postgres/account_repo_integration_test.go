// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/gatekeep/gatekeep/internal/auth"
)

var _ = Describe("AccountRepository", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupAccounts(ctx, env.pool)
	})

	Describe("Create", func() {
		It("persists all account fields", func() {
			account := auth.NewAccount("alice", "alice@example.com", "hash")
			Expect(env.Accounts.Create(ctx, account)).To(Succeed())

			got, err := env.Accounts.GetByID(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(account.ID))
			Expect(got.Username).To(Equal("alice"))
			Expect(got.Email).To(Equal("alice@example.com"))
			Expect(got.PasswordHash).To(Equal("hash"))
			Expect(got.CreatedAt).To(BeTemporally("~", account.CreatedAt, time.Millisecond))
		})

		DescribeTable("reports which unique field collided",
			func(username, email, wantField string) {
				Expect(env.Accounts.Create(ctx, auth.NewAccount("alice", "alice@example.com", "hash"))).To(Succeed())

				err := env.Accounts.Create(ctx, auth.NewAccount(username, email, "hash"))
				var dup *auth.DuplicateError
				Expect(errors.As(err, &dup)).To(BeTrue())
				Expect(dup.Field).To(Equal(wantField))
			},
			Entry("username", "alice", "other@example.com", "username"),
			Entry("email", "bob", "alice@example.com", "email"),
		)
	})

	Describe("lookups", func() {
		var account *auth.Account

		BeforeEach(func() {
			account = auth.NewAccount("carol", "carol@example.com", "hash")
			Expect(env.Accounts.Create(ctx, account)).To(Succeed())
		})

		It("finds by username or email", func() {
			byName, err := env.Accounts.GetByUsernameOrEmail(ctx, "carol")
			Expect(err).NotTo(HaveOccurred())
			Expect(byName.ID).To(Equal(account.ID))

			byEmail, err := env.Accounts.GetByUsernameOrEmail(ctx, "carol@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(byEmail.ID).To(Equal(account.ID))
		})

		It("returns ErrNotFound for unknown accounts", func() {
			_, err := env.Accounts.GetByID(ctx, ulid.Make())
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())

			_, err = env.Accounts.GetByEmail(ctx, "nobody@example.com")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("UpdatePassword", func() {
		It("replaces the hash and refreshes updated_at", func() {
			account := auth.NewAccount("dave", "dave@example.com", "old")
			account.UpdatedAt = account.UpdatedAt.Add(-time.Hour)
			Expect(env.Accounts.Create(ctx, account)).To(Succeed())

			updated, err := env.Accounts.UpdatePassword(ctx, account.ID, "new")
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.PasswordHash).To(Equal("new"))
			Expect(updated.UpdatedAt).To(BeTemporally(">", account.UpdatedAt))
			Expect(updated.CreatedAt).To(BeTemporally("~", account.CreatedAt, time.Millisecond))
		})

		It("returns ErrNotFound for a missing account", func() {
			_, err := env.Accounts.UpdatePassword(ctx, ulid.Make(), "new")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})
	})
})
