package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"

	"tipjar/internal/models"
)

// SupabaseStore speaks PostgREST against a hosted Supabase project. It
// implements the same contract as PostgresStore; PostgREST has no
// transactions, so the redeem sequence is ordered to stay safe without one.
type SupabaseStore struct {
	client *postgrest.Client
}

var _ Store = (*SupabaseStore)(nil)

// NewSupabaseStore builds a store for the project's REST endpoint
// (https://<project>.supabase.co/rest/v1) authenticated with the
// service role key.
func NewSupabaseStore(restURL, serviceKey string) *SupabaseStore {
	client := postgrest.NewClient(restURL, "public", map[string]string{
		"apikey":        serviceKey,
		"Authorization": "Bearer " + serviceKey,
	})
	return &SupabaseStore{client: client}
}

// Row shapes for PostgREST JSON. The model types hide hashed_password
// from JSON on purpose, so admin rows decode through a local struct.
type adminRow struct {
	ID             int       `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (r adminRow) toModel() *models.AdminUser {
	return &models.AdminUser{
		ID:             r.ID,
		Email:          r.Email,
		HashedPassword: r.HashedPassword,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (s *SupabaseStore) getAdmin(column, value string) (*models.AdminUser, error) {
	data, _, err := s.client.From("admin_users").
		Select("*", "", false).
		Eq(column, value).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("select admin_users: %w", err)
	}
	var rows []adminRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode admin_users: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].toModel(), nil
}

func (s *SupabaseStore) GetAdminByEmail(_ context.Context, email string) (*models.AdminUser, error) {
	return s.getAdmin("email", email)
}

func (s *SupabaseStore) GetAdminByID(_ context.Context, id int) (*models.AdminUser, error) {
	return s.getAdmin("id", fmt.Sprintf("%d", id))
}

func (s *SupabaseStore) UpdateAdminPassword(_ context.Context, id int, hashedPassword string) error {
	_, _, err := s.client.From("admin_users").
		Update(map[string]interface{}{
			"hashed_password": hashedPassword,
			"updated_at":      time.Now().UTC().Format(time.RFC3339),
		}, "", "").
		Eq("id", fmt.Sprintf("%d", id)).
		Execute()
	if err != nil {
		return fmt.Errorf("update admin password: %w", err)
	}
	return nil
}

func (s *SupabaseStore) CreateResetToken(_ context.Context, tok *models.PasswordChangeToken) error {
	_, _, err := s.client.From("password_change_tokens").
		Insert(map[string]interface{}{
			"token":      tok.Token,
			"admin_id":   tok.AdminID,
			"expires_at": tok.ExpiresAt.UTC().Format(time.RFC3339),
			"used":       tok.Used,
		}, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

func (s *SupabaseStore) GetResetToken(_ context.Context, token string) (*models.PasswordChangeToken, error) {
	data, _, err := s.client.From("password_change_tokens").
		Select("*", "", false).
		Eq("token", token).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("select reset token: %w", err)
	}
	var rows []models.PasswordChangeToken
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode reset token: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// RedeemResetToken has no transaction to lean on here, so the token is
// consumed first: a crash after the consume leaves an inert token and an
// unchanged password, never a reusable token with a changed one. The
// used=false filter makes the consume lose cleanly to a racing redeem.
func (s *SupabaseStore) RedeemResetToken(_ context.Context, token string, adminID int, hashedPassword string) error {
	data, _, err := s.client.From("password_change_tokens").
		Update(map[string]interface{}{"used": true}, "representation", "").
		Eq("token", token).
		Eq("used", "false").
		Execute()
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	var consumed []models.PasswordChangeToken
	if err := json.Unmarshal(data, &consumed); err != nil {
		return fmt.Errorf("decode consumed token: %w", err)
	}
	if len(consumed) == 0 {
		return ErrNotFound
	}
	return s.UpdateAdminPassword(context.Background(), adminID, hashedPassword)
}

func (s *SupabaseStore) GetCreatorProfile(_ context.Context) (*models.CreatorProfile, error) {
	data, _, err := s.client.From("creator_profile").
		Select("name, bio, avatar_url, social_links", "", false).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("select creator profile: %w", err)
	}
	var rows []models.CreatorProfile
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode creator profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (s *SupabaseStore) UpsertCreatorProfile(_ context.Context, p *models.CreatorProfile) error {
	// Singleton replace: drop whatever is there, insert the merged row.
	_, _, err := s.client.From("creator_profile").
		Delete("", "").
		Neq("name", "").
		Execute()
	if err != nil {
		return fmt.Errorf("clear creator profile: %w", err)
	}
	_, _, err = s.client.From("creator_profile").
		Insert(map[string]interface{}{
			"name":         p.Name,
			"bio":          p.Bio,
			"avatar_url":   p.AvatarURL,
			"social_links": p.SocialLinks,
		}, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("insert creator profile: %w", err)
	}
	return nil
}

func (s *SupabaseStore) CreateTransaction(_ context.Context, txn *models.PaymentTransaction) error {
	_, _, err := s.client.From("payment_transactions").
		Insert(map[string]interface{}{
			"id":             txn.ID,
			"session_id":     txn.SessionID,
			"amount":         txn.Amount,
			"currency":       txn.Currency,
			"message":        txn.Message,
			"tipper_name":    txn.TipperName,
			"status":         txn.Status,
			"payment_status": txn.PaymentStatus,
			"timestamp":      txn.Timestamp.UTC().Format(time.RFC3339),
		}, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *SupabaseStore) GetTransactionBySession(_ context.Context, sessionID string) (*models.PaymentTransaction, error) {
	data, _, err := s.client.From("payment_transactions").
		Select("*", "", false).
		Eq("session_id", sessionID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("select transaction: %w", err)
	}
	var rows []models.PaymentTransaction
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (s *SupabaseStore) MarkTransactionPaid(_ context.Context, sessionID, status, paymentStatus string) error {
	_, _, err := s.client.From("payment_transactions").
		Update(map[string]interface{}{
			"status":         status,
			"payment_status": paymentStatus,
		}, "", "").
		Eq("session_id", sessionID).
		Neq("payment_status", "paid").
		Execute()
	if err != nil {
		return fmt.Errorf("mark transaction paid: %w", err)
	}
	return nil
}

func (s *SupabaseStore) CompleteTransaction(_ context.Context, sessionID, paymentStatus string) error {
	_, _, err := s.client.From("payment_transactions").
		Update(map[string]interface{}{
			"status":         "completed",
			"payment_status": paymentStatus,
		}, "", "").
		Eq("session_id", sessionID).
		Execute()
	if err != nil {
		return fmt.Errorf("complete transaction: %w", err)
	}
	return nil
}

func (s *SupabaseStore) ListRecentPaidTips(_ context.Context, limit int) ([]models.Tip, error) {
	data, _, err := s.client.From("payment_transactions").
		Select("amount, message, tipper_name, timestamp", "", false).
		Eq("payment_status", "paid").
		Order("timestamp", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("list recent tips: %w", err)
	}
	tips := []models.Tip{}
	if err := json.Unmarshal(data, &tips); err != nil {
		return nil, fmt.Errorf("decode recent tips: %w", err)
	}
	return tips, nil
}
