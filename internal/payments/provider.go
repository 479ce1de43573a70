// Package payments wraps the hosted checkout provider and reconciles
// its session lifecycle onto locally stored payment transactions.
package payments

import (
	"context"
	"errors"
)

var (
	ErrInvalidAmount    = errors.New("payments: amount must be greater than 0")
	ErrMissingSignature = errors.New("payments: missing webhook signature")
	ErrMissingAPIKey    = errors.New("payments: Stripe API key not configured")
)

// CheckoutParams describes one hosted checkout session to create.
type CheckoutParams struct {
	Amount     float64
	Currency   string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// Session is the provider's handle for a created checkout.
type Session struct {
	ID  string
	URL string
}

// SessionStatus is the provider's live view of a checkout session.
type SessionStatus struct {
	Status        string
	PaymentStatus string
	Amount        float64
	Currency      string
}

// WebhookEvent is a provider notification whose signature has already
// been verified against the raw payload.
type WebhookEvent struct {
	Type          string
	SessionID     string
	PaymentStatus string
}

// Provider is the hosted checkout gateway. The Stripe implementation is
// the production one; tests substitute fakes.
type Provider interface {
	CreateSession(ctx context.Context, params CheckoutParams) (*Session, error)
	GetStatus(ctx context.Context, sessionID string) (*SessionStatus, error)
	// VerifyWebhook authenticates the raw payload against the signature
	// header. The payload must not be trusted before this succeeds.
	VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}
