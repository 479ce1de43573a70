package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// We use 'db' tags for sqlx to automatically map
// the database column names (snake_case) to our Go fields (CamelCase).

// AdminUser represents the admin account's credentials.
type AdminUser struct {
	ID             int       `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// PasswordChangeToken is a single-use, short-lived credential that
// authorizes one password change. Consumed tokens are flagged, never deleted.
type PasswordChangeToken struct {
	Token     string    `db:"token" json:"token"`
	AdminID   int       `db:"admin_id" json:"admin_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	Used      bool      `db:"used" json:"used"`
}

// SocialLinks maps a platform name to a profile URL. Stored as a JSONB
// column, so it round-trips through database/sql as JSON bytes.
type SocialLinks map[string]string

func (s SocialLinks) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

func (s *SocialLinks) Scan(src interface{}) error {
	if src == nil {
		*s = SocialLinks{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return errors.New("models: unsupported source type for SocialLinks")
}

// CreatorProfile is the creator's public page. At most one logical row
// exists; updates replace-or-create it.
type CreatorProfile struct {
	Name        string      `db:"name" json:"name"`
	Bio         string      `db:"bio" json:"bio"`
	AvatarURL   string      `db:"avatar_url" json:"avatar_url"`
	SocialLinks SocialLinks `db:"social_links" json:"social_links"`
}

// DefaultCreatorProfile is returned when the store holds no profile yet.
func DefaultCreatorProfile() CreatorProfile {
	return CreatorProfile{
		Name:        "Your Creator Name",
		Bio:         "Support me with a tip!",
		AvatarURL:   "https://images.unsplash.com/photo-1535713875002-d1d0cf377fde?w=400",
		SocialLinks: SocialLinks{},
	}
}

// PaymentTransaction records one checkout session from initiation onward.
// Rows only move forward along the status lattice and are never deleted.
type PaymentTransaction struct {
	ID            string    `db:"id" json:"id"`
	SessionID     string    `db:"session_id" json:"session_id"`
	Amount        float64   `db:"amount" json:"amount"`
	Currency      string    `db:"currency" json:"currency"`
	Message       *string   `db:"message" json:"message,omitempty"`
	TipperName    *string   `db:"tipper_name" json:"tipper_name,omitempty"`
	Status        string    `db:"status" json:"status"`
	PaymentStatus string    `db:"payment_status" json:"payment_status"`
	Timestamp     time.Time `db:"timestamp" json:"timestamp"`
}

// Tip is the public read model for the recent-tips listing.
type Tip struct {
	Amount     float64   `db:"amount" json:"amount"`
	Message    *string   `db:"message" json:"message,omitempty"`
	TipperName *string   `db:"tipper_name" json:"tipper_name,omitempty"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
}
