package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/aryankhatri/food-ordering-platform/internal/models"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
)

type Event = stripe.Event

// Client is the narrow view of the payment gateway this system needs: given a
// checkout session reference, say whether it was paid and for how much.
type Client interface {
	RetrieveConfirmation(ctx context.Context, sessionID string) (*models.PaymentConfirmation, error)
	VerifyWebhookSignature(payload []byte, signature string) (Event, error)
}

type stripeClient struct {
	webhookSecret string
}

func NewStripeClient(apiKey string, webhookSecret string) Client {
	stripe.Key = apiKey

	return &stripeClient{webhookSecret: webhookSecret}
}

// RetrieveConfirmation implements Client.
func (s *stripeClient) RetrieveConfirmation(ctx context.Context, sessionID string) (*models.PaymentConfirmation, error) {

	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	}
	params.AddExpand("payment_intent")

	sess, err := session.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve checkout session %s: %w", sessionID, err)
	}

	confirmation := &models.PaymentConfirmation{
		Paid:        sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal: sess.AmountTotal,
		Currency:    string(sess.Currency),
		Metadata:    sess.Metadata,
	}

	if sess.PaymentIntent != nil {
		confirmation.PaymentIntentID = sess.PaymentIntent.ID
	}

	return confirmation, nil
}

// VerifyWebhookSignature implements Client.
func (s *stripeClient) VerifyWebhookSignature(payload []byte, signature string) (Event, error) {
	if s.webhookSecret == "" {
		return Event{}, errors.New("webhook secret not configured")
	}

	return webhook.ConstructEvent(payload, signature, s.webhookSecret)
}
