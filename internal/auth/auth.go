// Package auth owns password hashing and the password-change token
// lifecycle for the single admin account.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"tipjar/internal/models"
	"tipjar/internal/store"
)

// TokenTTL bounds how long an issued password-change token is accepted.
const TokenTTL = 15 * time.Minute

const minPasswordLength = 8

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password. Callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAdminNotFound      = errors.New("auth: admin not found")
	ErrInvalidToken       = errors.New("auth: invalid or used token")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrPasswordTooShort   = errors.New("auth: password must be at least 8 characters")
	ErrPasswordUnchanged  = errors.New("auth: new password must differ from current password")
)

// Service performs credential checks against the injected store.
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// HashPassword salts and hashes the plaintext with bcrypt. The output
// embeds the algorithm, cost and salt, so verification needs nothing else.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the stored hash.
// A malformed hash verifies as false rather than erroring.
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Authenticate looks the admin up by email and checks the password.
// Unknown email and wrong password both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.AdminUser, error) {
	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !VerifyPassword(password, admin.HashedPassword) {
		return nil, ErrInvalidCredentials
	}
	return admin, nil
}

// IssueResetToken mints a 256-bit random token valid for TokenTTL and
// persists it unused. The raw token is returned for delivery by email.
func (s *Service) IssueResetToken(ctx context.Context, adminID int) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	tok := &models.PasswordChangeToken{
		Token:     token,
		AdminID:   adminID,
		ExpiresAt: time.Now().UTC().Add(TokenTTL),
		Used:      false,
	}
	if err := s.store.CreateResetToken(ctx, tok); err != nil {
		return "", err
	}
	return token, nil
}

// RedeemResetToken consumes a token and installs the new password. The
// token is accepted only while unused and inside its TTL; afterwards it
// is permanently inert. Returns the admin's email for the confirmation
// mail.
func (s *Service) RedeemResetToken(ctx context.Context, token, newPassword string) (string, error) {
	tok, err := s.store.GetResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	if tok.Used {
		return "", ErrInvalidToken
	}
	if time.Now().UTC().After(tok.ExpiresAt) {
		return "", ErrTokenExpired
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return "", err
	}
	if err := s.store.RedeemResetToken(ctx, token, tok.AdminID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost the race to another redeem of the same token.
			return "", ErrInvalidToken
		}
		return "", err
	}

	admin, err := s.store.GetAdminByID(ctx, tok.AdminID)
	if err != nil {
		// The password change already landed; the email lookup only
		// feeds the best-effort confirmation mail.
		log.WithError(err).Warn("could not load admin email after token redemption")
		return "", nil
	}
	return admin.Email, nil
}

// validateChange runs the shared checks for the direct and the
// email-verified password change paths.
func (s *Service) validateChange(ctx context.Context, adminID int, currentPassword, newPassword string) (*models.AdminUser, error) {
	admin, err := s.store.GetAdminByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	if !VerifyPassword(currentPassword, admin.HashedPassword) {
		return nil, ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	// Compared against the supplied plaintext only, not a history list.
	if newPassword == currentPassword {
		return nil, ErrPasswordUnchanged
	}
	return admin, nil
}

// ChangePassword re-authenticates with the current password and, when
// the new password passes validation, installs it immediately.
func (s *Service) ChangePassword(ctx context.Context, adminID int, currentPassword, newPassword string) (*models.AdminUser, error) {
	admin, err := s.validateChange(ctx, adminID, currentPassword, newPassword)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateAdminPassword(ctx, adminID, hash); err != nil {
		return nil, err
	}
	return admin, nil
}

// RequestPasswordChange runs the same validation as ChangePassword but
// defers the actual change to email verification: it issues a reset
// token to be mailed to the admin. The change lands only when the token
// is redeemed.
func (s *Service) RequestPasswordChange(ctx context.Context, adminID int, currentPassword, newPassword string) (token, email string, err error) {
	admin, err := s.validateChange(ctx, adminID, currentPassword, newPassword)
	if err != nil {
		return "", "", err
	}
	token, err = s.IssueResetToken(ctx, adminID)
	if err != nil {
		return "", "", err
	}
	return token, admin.Email, nil
}
