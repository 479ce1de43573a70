// Package store persists admin credentials, reset tokens, the creator
// profile and payment transactions. Two backends implement the same
// contract: a Postgres backend speaking SQL through sqlx, and a Supabase
// backend speaking PostgREST. Handlers and services only ever see Store.
package store

import (
	"context"
	"errors"

	"tipjar/internal/models"
)

// ErrNotFound is returned by lookups when no row matches the filter.
var ErrNotFound = errors.New("store: not found")

type Store interface {
	// Admin users.
	GetAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	GetAdminByID(ctx context.Context, id int) (*models.AdminUser, error)
	UpdateAdminPassword(ctx context.Context, id int, hashedPassword string) error

	// Password change tokens.
	CreateResetToken(ctx context.Context, tok *models.PasswordChangeToken) error
	GetResetToken(ctx context.Context, token string) (*models.PasswordChangeToken, error)
	// RedeemResetToken marks the token used and writes the new password
	// hash as one logical unit. A crash mid-way must never leave a
	// reusable token paired with an already-changed password.
	RedeemResetToken(ctx context.Context, token string, adminID int, hashedPassword string) error

	// Creator profile (logical singleton).
	GetCreatorProfile(ctx context.Context) (*models.CreatorProfile, error)
	UpsertCreatorProfile(ctx context.Context, p *models.CreatorProfile) error

	// Payment transactions.
	CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error
	GetTransactionBySession(ctx context.Context, sessionID string) (*models.PaymentTransaction, error)
	// MarkTransactionPaid applies the forward-only transition used by the
	// polling path: the write only lands while the row is not yet paid,
	// so concurrent pollers racing on one session are idempotent.
	MarkTransactionPaid(ctx context.Context, sessionID, status, paymentStatus string) error
	// CompleteTransaction is the unconditional webhook write. A missing
	// row is not an error; the update simply matches nothing.
	CompleteTransaction(ctx context.Context, sessionID, paymentStatus string) error
	ListRecentPaidTips(ctx context.Context, limit int) ([]models.Tip, error)
}
