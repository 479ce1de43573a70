package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"tipjar/internal/models"
	"tipjar/internal/store"
)

// Transaction status values. payment_status moves forward only: once a
// row reads "paid" the polling path never writes it back.
const (
	StatusInitiated = "initiated"
	StatusCompleted = "completed"

	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

const eventCheckoutCompleted = "checkout.session.completed"

// CheckoutResult is returned to the client so it can redirect the tipper
// to the hosted checkout page.
type CheckoutResult struct {
	URL       string
	SessionID string
}

// Reconciler maps provider checkout and webhook events onto the locally
// stored transaction rows.
type Reconciler struct {
	store    store.Store
	provider Provider
}

func NewReconciler(s store.Store, p Provider) *Reconciler {
	return &Reconciler{store: s, provider: p}
}

// StartCheckout validates the tip, creates the hosted session and
// records the pending transaction keyed by the provider's session id.
// Validation happens before any provider call; a rejected amount leaves
// no trace anywhere.
func (r *Reconciler) StartCheckout(ctx context.Context, amount float64, currency string, message, tipperName *string, originURL string) (*CheckoutResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	name := "Anonymous"
	if tipperName != nil && *tipperName != "" {
		name = *tipperName
	}
	msg := ""
	if message != nil {
		msg = *message
	}

	sess, err := r.provider.CreateSession(ctx, CheckoutParams{
		Amount:     amount,
		Currency:   currency,
		SuccessURL: originURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  originURL,
		Metadata: map[string]string{
			"source":      "tipping_page",
			"tipper_name": name,
			"message":     msg,
		},
	})
	if err != nil {
		return nil, err
	}

	txn := &models.PaymentTransaction{
		ID:            uuid.NewString(),
		SessionID:     sess.ID,
		Amount:        amount,
		Currency:      currency,
		Message:       message,
		TipperName:    &name,
		Status:        StatusInitiated,
		PaymentStatus: PaymentStatusPending,
		Timestamp:     time.Now().UTC(),
	}
	if err := r.store.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	return &CheckoutResult{URL: sess.URL, SessionID: sess.ID}, nil
}

// PollStatus returns the provider's live view of the session and, when
// the provider reports paid for a tracked row that is not yet paid
// locally, applies the forward-only transition. The provider view is
// returned even when the local reconciliation write fails.
func (r *Reconciler) PollStatus(ctx context.Context, sessionID string) (*SessionStatus, error) {
	status, err := r.provider.GetStatus(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	txn, err := r.store.GetTransactionBySession(ctx, sessionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Session unknown locally; still report the provider view.
	case err != nil:
		log.WithError(err).WithField("session_id", sessionID).Error("failed to load transaction during status poll")
	case status.PaymentStatus == PaymentStatusPaid && txn.PaymentStatus != PaymentStatusPaid:
		if err := r.store.MarkTransactionPaid(ctx, sessionID, status.Status, status.PaymentStatus); err != nil {
			log.WithError(err).WithField("session_id", sessionID).Error("failed to record paid transition")
		}
	}

	return status, nil
}

// HandleWebhook verifies the signed payload and applies a completed
// checkout to the local row. The webhook is the provider's authoritative
// push channel, so unlike the polling path the write is unconditional;
// an unknown session id simply updates nothing.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	if signatureHeader == "" {
		return ErrMissingSignature
	}
	event, err := r.provider.VerifyWebhook(payload, signatureHeader)
	if err != nil {
		return err
	}

	if event.Type == eventCheckoutCompleted {
		if err := r.store.CompleteTransaction(ctx, event.SessionID, event.PaymentStatus); err != nil {
			return err
		}
	}
	return nil
}

// RecentTips lists up to limit paid tips, newest first.
func (r *Reconciler) RecentTips(ctx context.Context, limit int) ([]models.Tip, error) {
	return r.store.ListRecentPaidTips(ctx, limit)
}
