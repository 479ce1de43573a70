package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"tipjar/internal/models"
)

// PostgresStore talks to the relational backend through sqlx.
// Timestamps are set from Go rather than SQL defaults so the same
// statements also run against the in-memory test database.
type PostgresStore struct {
	DB *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (s *PostgresStore) GetAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var admin models.AdminUser
	query := `SELECT id, email, hashed_password, created_at, updated_at
	          FROM admin_users WHERE email = $1`
	if err := s.DB.GetContext(ctx, &admin, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &admin, nil
}

func (s *PostgresStore) GetAdminByID(ctx context.Context, id int) (*models.AdminUser, error) {
	var admin models.AdminUser
	query := `SELECT id, email, hashed_password, created_at, updated_at
	          FROM admin_users WHERE id = $1`
	if err := s.DB.GetContext(ctx, &admin, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by id: %w", err)
	}
	return &admin, nil
}

func (s *PostgresStore) UpdateAdminPassword(ctx context.Context, id int, hashedPassword string) error {
	query := `UPDATE admin_users SET hashed_password = $1, updated_at = $2 WHERE id = $3`
	if _, err := s.DB.ExecContext(ctx, query, hashedPassword, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update admin password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateResetToken(ctx context.Context, tok *models.PasswordChangeToken) error {
	query := `INSERT INTO password_change_tokens (token, admin_id, expires_at, used)
	          VALUES ($1, $2, $3, $4)`
	if _, err := s.DB.ExecContext(ctx, query, tok.Token, tok.AdminID, tok.ExpiresAt, tok.Used); err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetResetToken(ctx context.Context, token string) (*models.PasswordChangeToken, error) {
	var tok models.PasswordChangeToken
	query := `SELECT token, admin_id, expires_at, used
	          FROM password_change_tokens WHERE token = $1`
	if err := s.DB.GetContext(ctx, &tok, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reset token: %w", err)
	}
	return &tok, nil
}

// RedeemResetToken consumes the token and rewrites the admin's password
// hash inside a single transaction, so neither write can land without
// the other. The conditional consume also rejects a token that a racing
// request has already used.
func (s *PostgresStore) RedeemResetToken(ctx context.Context, token string, adminID int, hashedPassword string) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin redeem: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE password_change_tokens SET used = TRUE WHERE token = $1 AND used = FALSE`, token)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE admin_users SET hashed_password = $1, updated_at = $2 WHERE id = $3`,
		hashedPassword, time.Now().UTC(), adminID)
	if err != nil {
		return fmt.Errorf("redeem password update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit redeem: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCreatorProfile(ctx context.Context) (*models.CreatorProfile, error) {
	var profile models.CreatorProfile
	query := `SELECT name, bio, avatar_url, social_links FROM creator_profile LIMIT 1`
	if err := s.DB.GetContext(ctx, &profile, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get creator profile: %w", err)
	}
	return &profile, nil
}

// UpsertCreatorProfile replaces the singleton row, creating it when the
// table is still empty.
func (s *PostgresStore) UpsertCreatorProfile(ctx context.Context, p *models.CreatorProfile) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile upsert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM creator_profile`); err != nil {
		return fmt.Errorf("clear creator profile: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO creator_profile (name, bio, avatar_url, social_links) VALUES ($1, $2, $3, $4)`,
		p.Name, p.Bio, p.AvatarURL, p.SocialLinks)
	if err != nil {
		return fmt.Errorf("insert creator profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profile upsert: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	query := `INSERT INTO payment_transactions
	            (id, session_id, amount, currency, message, tipper_name, status, payment_status, timestamp)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.DB.ExecContext(ctx, query,
		txn.ID, txn.SessionID, txn.Amount, txn.Currency, txn.Message, txn.TipperName,
		txn.Status, txn.PaymentStatus, txn.Timestamp)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTransactionBySession(ctx context.Context, sessionID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	query := `SELECT id, session_id, amount, currency, message, tipper_name, status, payment_status, timestamp
	          FROM payment_transactions WHERE session_id = $1`
	if err := s.DB.GetContext(ctx, &txn, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &txn, nil
}

func (s *PostgresStore) MarkTransactionPaid(ctx context.Context, sessionID, status, paymentStatus string) error {
	query := `UPDATE payment_transactions SET status = $1, payment_status = $2
	          WHERE session_id = $3 AND payment_status <> 'paid'`
	if _, err := s.DB.ExecContext(ctx, query, status, paymentStatus, sessionID); err != nil {
		return fmt.Errorf("mark transaction paid: %w", err)
	}
	return nil
}

func (s *PostgresStore) CompleteTransaction(ctx context.Context, sessionID, paymentStatus string) error {
	query := `UPDATE payment_transactions SET status = 'completed', payment_status = $1
	          WHERE session_id = $2`
	if _, err := s.DB.ExecContext(ctx, query, paymentStatus, sessionID); err != nil {
		return fmt.Errorf("complete transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecentPaidTips(ctx context.Context, limit int) ([]models.Tip, error) {
	tips := []models.Tip{}
	query := `SELECT amount, message, tipper_name, timestamp
	          FROM payment_transactions
	          WHERE payment_status = 'paid'
	          ORDER BY timestamp DESC
	          LIMIT $1`
	if err := s.DB.SelectContext(ctx, &tips, query, limit); err != nil {
		return nil, fmt.Errorf("list recent tips: %w", err)
	}
	return tips, nil
}
