package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider implements Provider on Stripe Checkout. The API client
// is held by the provider instance rather than the package-global
// stripe.Key, so tests and multiple configurations stay independent.
type StripeProvider struct {
	api           *client.API
	apiKey        string
	webhookSecret string
}

func NewStripeProvider(apiKey, webhookSecret string) *StripeProvider {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeProvider{api: api, apiKey: apiKey, webhookSecret: webhookSecret}
}

func (p *StripeProvider) CreateSession(ctx context.Context, params CheckoutParams) (*Session, error) {
	if p.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	sessionParams := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(params.Currency),
					UnitAmount: stripe.Int64(toCents(params.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Tip"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	sessionParams.Context = ctx
	for k, v := range params.Metadata {
		sessionParams.AddMetadata(k, v)
	}

	sess, err := p.api.CheckoutSessions.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) GetStatus(ctx context.Context, sessionID string) (*SessionStatus, error) {
	if p.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return &SessionStatus{
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
		Amount:        float64(sess.AmountTotal) / 100,
		Currency:      string(sess.Currency),
	}, nil
}

func (p *StripeProvider) VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	if p.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	event, err := webhook.ConstructEvent(payload, signatureHeader, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}

	evt := &WebhookEvent{Type: string(event.Type)}
	if event.Type == stripe.EventTypeCheckoutSessionCompleted {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode webhook session: %w", err)
		}
		evt.SessionID = sess.ID
		evt.PaymentStatus = string(sess.PaymentStatus)
	}
	return evt, nil
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
