package lib

import (
	"context"
	"errors"
	"os"

	"github.com/stripe/stripe-go/v82"
)

// GatewayInitParams carries everything the hosted-payment-page provider
// needs to start a transaction. Amount is in the currency's minor unit.
type GatewayInitParams struct {
	Email       string
	Amount      int64
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

type GatewayInitResult struct {
	RedirectURL      string
	GatewayReference string
}

type GatewayVerifyResult struct {
	Succeeded bool
	Raw       map[string]any
}

// PaymentGateway is the provider seam the reconciliation flows depend on.
// Calls are network-bound and must never run inside a database transaction.
type PaymentGateway interface {
	Initialize(ctx context.Context, params *GatewayInitParams) (*GatewayInitResult, error)
	Verify(ctx context.Context, reference string) (*GatewayVerifyResult, error)
	Refund(ctx context.Context, reference string, amount int64) error
}

var paymentGateway PaymentGateway

func GetPaymentGateway() PaymentGateway {
	if paymentGateway != nil {
		return paymentGateway
	}
	paymentGateway = &StripeGateway{client: GetStripeClient()}
	return paymentGateway
}

// NewPaymentGateway replaces the gateway instance with a custom
// implementation
func NewPaymentGateway(g PaymentGateway) {
	paymentGateway = g
}

var stripeClient *stripe.Client

func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

// StripeGateway implements PaymentGateway on top of Stripe Checkout. The
// checkout session id doubles as the gateway reference; the booking's own
// payment reference travels in client_reference_id and metadata.
type StripeGateway struct {
	client *stripe.Client
}

func (s *StripeGateway) Initialize(ctx context.Context, params *GatewayInitParams) (*GatewayInitResult, error) {
	metadata := map[string]string{"reference": params.Reference}
	for k, v := range params.Metadata {
		metadata[k] = v
	}
	sess, err := s.client.V1CheckoutSessions.Create(ctx, &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(params.Reference),
		CustomerEmail:     stripe.String(params.Email),
		SuccessURL:        stripe.String(params.CallbackURL + "?reference={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(params.CallbackURL + "?reference={CHECKOUT_SESSION_ID}&cancelled=1"),
		Metadata:          metadata,
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(params.Currency),
					UnitAmount: stripe.Int64(params.Amount),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String("Stay " + params.Reference),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return &GatewayInitResult{
		RedirectURL:      sess.URL,
		GatewayReference: sess.ID,
	}, nil
}

func (s *StripeGateway) Verify(ctx context.Context, reference string) (*GatewayVerifyResult, error) {
	sess, err := s.client.V1CheckoutSessions.Retrieve(ctx, reference, &stripe.CheckoutSessionRetrieveParams{})
	if err != nil {
		return nil, err
	}
	raw := map[string]any{
		"id":             sess.ID,
		"status":         string(sess.Status),
		"payment_status": string(sess.PaymentStatus),
		"amount_total":   sess.AmountTotal,
		"currency":       string(sess.Currency),
	}
	succeeded := sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	return &GatewayVerifyResult{Succeeded: succeeded, Raw: raw}, nil
}

func (s *StripeGateway) Refund(ctx context.Context, reference string, amount int64) error {
	sess, err := s.client.V1CheckoutSessions.Retrieve(ctx, reference, &stripe.CheckoutSessionRetrieveParams{})
	if err != nil {
		return err
	}
	if sess.PaymentIntent == nil {
		return errors.New("checkout session has no payment intent to refund")
	}
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(sess.PaymentIntent.ID),
	}
	if amount > 0 {
		params.Amount = stripe.Int64(amount)
	}
	_, err = s.client.V1Refunds.Create(ctx, params)
	return err
}
