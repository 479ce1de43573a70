package payments

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tipjar/internal/models"
	"tipjar/internal/store/storetest"
)

// fakeProvider is a scriptable Provider for reconciler tests.
type fakeProvider struct {
	createCalls int
	createErr   error
	lastParams  CheckoutParams

	status    *SessionStatus
	statusErr error

	event     *WebhookEvent
	verifyErr error
}

func (f *fakeProvider) CreateSession(_ context.Context, params CheckoutParams) (*Session, error) {
	f.createCalls++
	f.lastParams = params
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &Session{ID: "cs_test_123", URL: "https://checkout.example.com/cs_test_123"}, nil
}

func (f *fakeProvider) GetStatus(_ context.Context, _ string) (*SessionStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

func (f *fakeProvider) VerifyWebhook(_ []byte, _ string) (*WebhookEvent, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.event, nil
}

func TestStartCheckoutRejectsNonPositiveAmounts(t *testing.T) {
	for _, amount := range []float64{0, -10} {
		t.Run(fmt.Sprintf("amount=%v", amount), func(t *testing.T) {
			mem := storetest.NewMemory()
			provider := &fakeProvider{}
			rec := NewReconciler(mem, provider)

			_, err := rec.StartCheckout(context.Background(), amount, "usd", nil, nil, "https://tips.example.com")
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("got %v, want ErrInvalidAmount", err)
			}
			if provider.createCalls != 0 {
				t.Error("provider must not be contacted for an invalid amount")
			}
			if len(mem.Transactions) != 0 {
				t.Error("no transaction row may be created for an invalid amount")
			}
		})
	}
}

func TestStartCheckoutPersistsPendingTransaction(t *testing.T) {
	mem := storetest.NewMemory()
	provider := &fakeProvider{}
	rec := NewReconciler(mem, provider)

	msg := "keep it up!"
	name := "Alice"
	result, err := rec.StartCheckout(context.Background(), 5.5, "usd", &msg, &name, "https://tips.example.com")
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if result.SessionID != "cs_test_123" || result.URL == "" {
		t.Errorf("unexpected result: %+v", result)
	}

	txn := mem.Transactions["cs_test_123"]
	if txn == nil {
		t.Fatal("transaction not persisted")
	}
	if txn.Status != StatusInitiated || txn.PaymentStatus != PaymentStatusPending {
		t.Errorf("new transaction state = %s/%s, want initiated/pending", txn.Status, txn.PaymentStatus)
	}
	if txn.Amount != 5.5 || *txn.TipperName != "Alice" || *txn.Message != "keep it up!" {
		t.Errorf("transaction fields = %+v", txn)
	}

	if provider.lastParams.SuccessURL != "https://tips.example.com/success?session_id={CHECKOUT_SESSION_ID}" {
		t.Errorf("success URL = %q", provider.lastParams.SuccessURL)
	}
	if provider.lastParams.CancelURL != "https://tips.example.com" {
		t.Errorf("cancel URL = %q", provider.lastParams.CancelURL)
	}
	if provider.lastParams.Metadata["source"] != "tipping_page" {
		t.Errorf("metadata = %v", provider.lastParams.Metadata)
	}
}

func TestStartCheckoutDefaultsTipperName(t *testing.T) {
	mem := storetest.NewMemory()
	rec := NewReconciler(mem, &fakeProvider{})

	if _, err := rec.StartCheckout(context.Background(), 3, "usd", nil, nil, "https://tips.example.com"); err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if got := *mem.Transactions["cs_test_123"].TipperName; got != "Anonymous" {
		t.Errorf("tipper name = %q, want Anonymous", got)
	}
}

func TestStartCheckoutProviderFailureCreatesNoRow(t *testing.T) {
	mem := storetest.NewMemory()
	rec := NewReconciler(mem, &fakeProvider{createErr: errors.New("gateway down")})

	if _, err := rec.StartCheckout(context.Background(), 3, "usd", nil, nil, "https://tips.example.com"); err == nil {
		t.Fatal("expected provider error")
	}
	if len(mem.Transactions) != 0 {
		t.Error("failed checkout must not leave a transaction row")
	}
}

func seedPendingTransaction(mem *storetest.Memory, sessionID string) {
	name := "Anonymous"
	mem.Transactions[sessionID] = &models.PaymentTransaction{
		ID:            "txn-1",
		SessionID:     sessionID,
		Amount:        5,
		Currency:      "usd",
		TipperName:    &name,
		Status:        StatusInitiated,
		PaymentStatus: PaymentStatusPending,
		Timestamp:     time.Now().UTC(),
	}
}

func TestPollStatusIdempotentPaidTransition(t *testing.T) {
	mem := storetest.NewMemory()
	seedPendingTransaction(mem, "cs_test_123")
	provider := &fakeProvider{status: &SessionStatus{
		Status:        "complete",
		PaymentStatus: PaymentStatusPaid,
		Amount:        5,
		Currency:      "usd",
	}}
	rec := NewReconciler(mem, provider)

	// Two sequential polls, provider reporting paid both times.
	for i := 0; i < 2; i++ {
		status, err := rec.PollStatus(context.Background(), "cs_test_123")
		if err != nil {
			t.Fatalf("poll %d: %v", i+1, err)
		}
		if status.PaymentStatus != PaymentStatusPaid {
			t.Fatalf("poll %d payment status = %q", i+1, status.PaymentStatus)
		}
	}

	txn := mem.Transactions["cs_test_123"]
	if txn.PaymentStatus != PaymentStatusPaid || txn.Status != "complete" {
		t.Errorf("local row = %s/%s, want complete/paid", txn.Status, txn.PaymentStatus)
	}
}

func TestPollStatusUnknownLocalSessionStillReturnsProviderView(t *testing.T) {
	mem := storetest.NewMemory()
	provider := &fakeProvider{status: &SessionStatus{Status: "open", PaymentStatus: "unpaid", Amount: 5, Currency: "usd"}}
	rec := NewReconciler(mem, provider)

	status, err := rec.PollStatus(context.Background(), "cs_unknown")
	if err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if status.Status != "open" {
		t.Errorf("status = %q", status.Status)
	}
}

func TestPollStatusProviderFailure(t *testing.T) {
	rec := NewReconciler(storetest.NewMemory(), &fakeProvider{statusErr: errors.New("no such session")})
	if _, err := rec.PollStatus(context.Background(), "cs_gone"); err == nil {
		t.Fatal("expected provider error")
	}
}

func TestHandleWebhookRequiresSignature(t *testing.T) {
	rec := NewReconciler(storetest.NewMemory(), &fakeProvider{})
	err := rec.HandleWebhook(context.Background(), []byte("{}"), "")
	if !errors.Is(err, ErrMissingSignature) {
		t.Errorf("got %v, want ErrMissingSignature", err)
	}
}

func TestHandleWebhookVerificationFailure(t *testing.T) {
	rec := NewReconciler(storetest.NewMemory(), &fakeProvider{verifyErr: errors.New("bad signature")})
	if err := rec.HandleWebhook(context.Background(), []byte("{}"), "t=1,v1=bogus"); err == nil {
		t.Fatal("expected verification error")
	}
}

func TestHandleWebhookCompletesTransaction(t *testing.T) {
	mem := storetest.NewMemory()
	seedPendingTransaction(mem, "cs_test_123")
	rec := NewReconciler(mem, &fakeProvider{event: &WebhookEvent{
		Type:          "checkout.session.completed",
		SessionID:     "cs_test_123",
		PaymentStatus: PaymentStatusPaid,
	}})

	if err := rec.HandleWebhook(context.Background(), []byte("{}"), "t=1,v1=good"); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	txn := mem.Transactions["cs_test_123"]
	if txn.Status != StatusCompleted || txn.PaymentStatus != PaymentStatusPaid {
		t.Errorf("local row = %s/%s, want completed/paid", txn.Status, txn.PaymentStatus)
	}
}

func TestHandleWebhookUnknownSessionIsNoop(t *testing.T) {
	mem := storetest.NewMemory()
	rec := NewReconciler(mem, &fakeProvider{event: &WebhookEvent{
		Type:          "checkout.session.completed",
		SessionID:     "cs_never_seen",
		PaymentStatus: PaymentStatusPaid,
	}})

	if err := rec.HandleWebhook(context.Background(), []byte("{}"), "t=1,v1=good"); err != nil {
		t.Errorf("unknown session must ack, got %v", err)
	}
}

func TestHandleWebhookIgnoresOtherEventTypes(t *testing.T) {
	mem := storetest.NewMemory()
	seedPendingTransaction(mem, "cs_test_123")
	rec := NewReconciler(mem, &fakeProvider{event: &WebhookEvent{Type: "payment_intent.created"}})

	if err := rec.HandleWebhook(context.Background(), []byte("{}"), "t=1,v1=good"); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if mem.Transactions["cs_test_123"].Status != StatusInitiated {
		t.Error("unrelated event must not touch the transaction")
	}
}

func TestRecentTipsOrderingAndLimit(t *testing.T) {
	mem := storetest.NewMemory()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		sessionID := fmt.Sprintf("cs_%d", i)
		seedPendingTransaction(mem, sessionID)
		mem.Transactions[sessionID].PaymentStatus = PaymentStatusPaid
		mem.Transactions[sessionID].Amount = float64(i + 1)
		mem.Transactions[sessionID].Timestamp = base.Add(time.Duration(i) * time.Minute)
	}
	rec := NewReconciler(mem, &fakeProvider{})

	tips, err := rec.RecentTips(context.Background(), 2)
	if err != nil {
		t.Fatalf("RecentTips: %v", err)
	}
	if len(tips) != 2 {
		t.Fatalf("got %d tips, want 2", len(tips))
	}
	if tips[0].Amount != 5 || tips[1].Amount != 4 {
		t.Errorf("tips not in descending timestamp order: %v then %v", tips[0].Amount, tips[1].Amount)
	}
}
