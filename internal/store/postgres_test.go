package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"tipjar/internal/models"
)

// The PostgresStore statements avoid server-side defaults and
// Postgres-only syntax, so they run unchanged against an in-memory
// sqlite handle. That keeps the real SQL under test without a database
// server.
const testSchema = `
CREATE TABLE admin_users (
	id INTEGER PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE password_change_tokens (
	token TEXT PRIMARY KEY,
	admin_id INTEGER NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	used BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE creator_profile (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	bio TEXT NOT NULL,
	avatar_url TEXT NOT NULL,
	social_links TEXT
);
CREATE TABLE payment_transactions (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL UNIQUE,
	amount REAL NOT NULL,
	currency TEXT NOT NULL,
	message TEXT,
	tipper_name TEXT,
	status TEXT NOT NULL,
	payment_status TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL
);
`

func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return NewPostgresStore(db)
}

func seedAdmin(t *testing.T, s *PostgresStore) {
	t.Helper()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.DB.Exec(
		`INSERT INTO admin_users (id, email, hashed_password, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		1, "admin@example.com", "$2a$10$somebcrypthash", now, now)
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
}

func TestAdminLookups(t *testing.T) {
	s := newTestStore(t)
	seedAdmin(t, s)
	ctx := context.Background()

	byEmail, err := s.GetAdminByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	if byEmail.ID != 1 || byEmail.HashedPassword != "$2a$10$somebcrypthash" {
		t.Errorf("admin = %+v", byEmail)
	}

	byID, err := s.GetAdminByID(ctx, 1)
	if err != nil {
		t.Fatalf("GetAdminByID: %v", err)
	}
	if byID.Email != "admin@example.com" {
		t.Errorf("admin = %+v", byID)
	}

	if _, err := s.GetAdminByEmail(ctx, "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown email: got %v, want ErrNotFound", err)
	}
	if _, err := s.GetAdminByID(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: got %v, want ErrNotFound", err)
	}
}

func TestUpdateAdminPassword(t *testing.T) {
	s := newTestStore(t)
	seedAdmin(t, s)
	ctx := context.Background()

	if err := s.UpdateAdminPassword(ctx, 1, "new-hash"); err != nil {
		t.Fatalf("UpdateAdminPassword: %v", err)
	}
	admin, err := s.GetAdminByID(ctx, 1)
	if err != nil {
		t.Fatalf("GetAdminByID: %v", err)
	}
	if admin.HashedPassword != "new-hash" {
		t.Errorf("hash = %q", admin.HashedPassword)
	}
}

func TestResetTokenLifecycle(t *testing.T) {
	s := newTestStore(t)
	seedAdmin(t, s)
	ctx := context.Background()

	tok := &models.PasswordChangeToken{
		Token:     "opaque-token",
		AdminID:   1,
		ExpiresAt: time.Now().UTC().Add(15 * time.Minute),
	}
	if err := s.CreateResetToken(ctx, tok); err != nil {
		t.Fatalf("CreateResetToken: %v", err)
	}

	loaded, err := s.GetResetToken(ctx, "opaque-token")
	if err != nil {
		t.Fatalf("GetResetToken: %v", err)
	}
	if loaded.Used || loaded.AdminID != 1 {
		t.Errorf("token = %+v", loaded)
	}

	if err := s.RedeemResetToken(ctx, "opaque-token", 1, "redeemed-hash"); err != nil {
		t.Fatalf("RedeemResetToken: %v", err)
	}

	// Both writes landed.
	admin, err := s.GetAdminByID(ctx, 1)
	if err != nil {
		t.Fatalf("GetAdminByID: %v", err)
	}
	if admin.HashedPassword != "redeemed-hash" {
		t.Errorf("hash = %q", admin.HashedPassword)
	}
	loaded, err = s.GetResetToken(ctx, "opaque-token")
	if err != nil {
		t.Fatalf("GetResetToken: %v", err)
	}
	if !loaded.Used {
		t.Error("token must be marked used")
	}

	// A used token cannot be redeemed again.
	if err := s.RedeemResetToken(ctx, "opaque-token", 1, "third-hash"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second redeem: got %v, want ErrNotFound", err)
	}
	if err := s.RedeemResetToken(ctx, "never-issued", 1, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown token: got %v, want ErrNotFound", err)
	}
}

func TestCreatorProfileUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetCreatorProfile(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty table: got %v, want ErrNotFound", err)
	}

	first := &models.CreatorProfile{
		Name:        "Streamy",
		Bio:         "hello",
		AvatarURL:   "https://cdn.example.com/a.png",
		SocialLinks: models.SocialLinks{"twitch": "https://twitch.tv/streamy"},
	}
	if err := s.UpsertCreatorProfile(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := &models.CreatorProfile{
		Name:        "Streamy Two",
		Bio:         "changed",
		AvatarURL:   "https://cdn.example.com/b.png",
		SocialLinks: models.SocialLinks{},
	}
	if err := s.UpsertCreatorProfile(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.GetCreatorProfile(ctx)
	if err != nil {
		t.Fatalf("GetCreatorProfile: %v", err)
	}
	if got.Name != "Streamy Two" {
		t.Errorf("profile = %+v, want the replacement", got)
	}

	var count int
	if err := s.DB.Get(&count, `SELECT COUNT(*) FROM creator_profile`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("profile rows = %d, want singleton", count)
	}
}

func seedTransaction(t *testing.T, s *PostgresStore, sessionID string, paymentStatus string, ts time.Time, amount float64) {
	t.Helper()
	name := "Anonymous"
	err := s.CreateTransaction(context.Background(), &models.PaymentTransaction{
		ID:            "id-" + sessionID,
		SessionID:     sessionID,
		Amount:        amount,
		Currency:      "usd",
		TipperName:    &name,
		Status:        "initiated",
		PaymentStatus: paymentStatus,
		Timestamp:     ts,
	})
	if err != nil {
		t.Fatalf("seed transaction %s: %v", sessionID, err)
	}
}

func TestMarkTransactionPaidIsForwardOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTransaction(t, s, "cs_1", "pending", time.Now().UTC(), 5)

	if err := s.MarkTransactionPaid(ctx, "cs_1", "complete", "paid"); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	// A later stale poll must not regress the row.
	if err := s.MarkTransactionPaid(ctx, "cs_1", "open", "unpaid"); err != nil {
		t.Fatalf("second mark: %v", err)
	}

	txn, err := s.GetTransactionBySession(ctx, "cs_1")
	if err != nil {
		t.Fatalf("GetTransactionBySession: %v", err)
	}
	if txn.PaymentStatus != "paid" || txn.Status != "complete" {
		t.Errorf("row = %s/%s, want complete/paid", txn.Status, txn.PaymentStatus)
	}
}

func TestCompleteTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTransaction(t, s, "cs_1", "pending", time.Now().UTC(), 5)

	if err := s.CompleteTransaction(ctx, "cs_1", "paid"); err != nil {
		t.Fatalf("CompleteTransaction: %v", err)
	}
	txn, err := s.GetTransactionBySession(ctx, "cs_1")
	if err != nil {
		t.Fatalf("GetTransactionBySession: %v", err)
	}
	if txn.Status != "completed" || txn.PaymentStatus != "paid" {
		t.Errorf("row = %s/%s", txn.Status, txn.PaymentStatus)
	}

	// Unknown session updates nothing and is not an error.
	if err := s.CompleteTransaction(ctx, "cs_ghost", "paid"); err != nil {
		t.Errorf("unknown session: %v", err)
	}
}

func TestListRecentPaidTips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		seedTransaction(t, s, fmt.Sprintf("cs_%d", i), "paid", base.Add(time.Duration(i)*time.Minute), float64(i+1))
	}
	seedTransaction(t, s, "cs_pending", "pending", base.Add(time.Hour), 100)

	tips, err := s.ListRecentPaidTips(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecentPaidTips: %v", err)
	}
	if len(tips) != 2 {
		t.Fatalf("got %d tips, want 2", len(tips))
	}
	if tips[0].Amount != 5 || tips[1].Amount != 4 {
		t.Errorf("tips = %v, %v; want newest paid first", tips[0].Amount, tips[1].Amount)
	}
}
