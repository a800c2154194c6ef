package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/dineboard/dineboard/internal/pkg/env"
)

// ProrationPolicy selects how the provider handles a mid-cycle plan change.
type ProrationPolicy string

const (
	ProrationCreate ProrationPolicy = "create_prorations"
	ProrationNone   ProrationPolicy = "none"
)

// CheckoutInput carries everything the gateway needs to open a hosted
// checkout session.
type CheckoutInput struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	TenantUUID string
	// TrialDays attaches a trial window to the session; zero means none.
	TrialDays int64
}

// PaymentGateway is the outbound-only boundary to the payment provider.
// Every method maps 1:1 to a provider operation and returns
// ErrGatewayUnavailable when no API key was configured.
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, email, name, tenantUUID string) (string, error)
	CreateCheckoutSession(ctx context.Context, in CheckoutInput) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) error
	UpdateSubscription(ctx context.Context, subscriptionID, newPriceID string, proration ProrationPolicy) error
	ListInvoices(ctx context.Context, customerID string, limit int64) ([]*stripe.Invoice, error)
}

const defaultGatewayTimeout = 20 * time.Second

// NewPaymentGateway constructs the gateway once at process start. An empty
// API key yields a disabled gateway instead of a nil value, so callers
// never null-check; they just surface ErrGatewayUnavailable.
func NewPaymentGateway(apiKey string) PaymentGateway {
	if apiKey == "" {
		return disabledGateway{}
	}
	api := &client.API{}
	api.Init(apiKey, nil)
	return &stripeGateway{api: api, timeout: defaultGatewayTimeout}
}

// NewPaymentGatewayFromEnv reads STRIPE_API_KEY; absence degrades the
// gateway without crashing the process.
func NewPaymentGatewayFromEnv() PaymentGateway {
	return NewPaymentGateway(env.GetEnv("STRIPE_API_KEY", ""))
}

type stripeGateway struct {
	api     *client.API
	timeout time.Duration
}

func (g *stripeGateway) CreateCustomer(ctx context.Context, email, name, tenantUUID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
		Name:   stripe.String(name),
	}
	params.AddMetadata("tenant_uuid", tenantUUID)

	cust, err := g.api.Customers.New(params)
	if err != nil {
		return "", g.wrap(ctx, "create customer", err)
	}
	return cust.ID, nil
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Params:   stripe.Params{Context: ctx},
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(in.CustomerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
	}
	params.AddMetadata("tenant_uuid", in.TenantUUID)

	if in.TrialDays > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(in.TrialDays),
			Metadata: map[string]string{
				"tenant_uuid": in.TenantUUID,
				"trial_days":  strconv.FormatInt(in.TrialDays, 10),
			},
		}
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", g.wrap(ctx, "create checkout session", err)
	}
	return sess.URL, nil
}

func (g *stripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	sess, err := g.api.BillingPortalSessions.New(&stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", g.wrap(ctx, "create portal session", err)
	}
	return sess.URL, nil
}

// CancelSubscription with immediate=false uses the provider's own
// cancel-at-period-end semantic so the confirming webhook later reports the
// same terminal state; local flags alone are never the source of truth.
func (g *stripeGateway) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var err error
	if immediate {
		_, err = g.api.Subscriptions.Cancel(subscriptionID, &stripe.SubscriptionCancelParams{
			Params: stripe.Params{Context: ctx},
		})
	} else {
		_, err = g.api.Subscriptions.Update(subscriptionID, &stripe.SubscriptionParams{
			Params:            stripe.Params{Context: ctx},
			CancelAtPeriodEnd: stripe.Bool(true),
		})
	}
	if err != nil {
		return g.wrap(ctx, "cancel subscription", err)
	}
	return nil
}

func (g *stripeGateway) UpdateSubscription(ctx context.Context, subscriptionID, newPriceID string, proration ProrationPolicy) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	current, err := g.api.Subscriptions.Get(subscriptionID, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return g.wrap(ctx, "load subscription", err)
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return fmt.Errorf("billing: subscription %s has no line items", subscriptionID)
	}

	if proration == "" {
		proration = ProrationCreate
	}
	_, err = g.api.Subscriptions.Update(subscriptionID, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(current.Items.Data[0].ID),
				Price: stripe.String(newPriceID),
			},
		},
		ProrationBehavior: stripe.String(string(proration)),
	})
	if err != nil {
		return g.wrap(ctx, "update subscription", err)
	}
	return nil
}

func (g *stripeGateway) ListInvoices(ctx context.Context, customerID string, limit int64) ([]*stripe.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 24
	}
	params := &stripe.InvoiceListParams{
		ListParams: stripe.ListParams{Context: ctx, Limit: stripe.Int64(limit)},
		Customer:   stripe.String(customerID),
	}

	var invoices []*stripe.Invoice
	iter := g.api.Invoices.List(params)
	for iter.Next() {
		invoices = append(invoices, iter.Invoice())
	}
	if err := iter.Err(); err != nil {
		return nil, g.wrap(ctx, "list invoices", err)
	}
	return invoices, nil
}

func (g *stripeGateway) wrap(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrGatewayTimeout, op)
	}
	return fmt.Errorf("billing: %s: %w", op, err)
}

// disabledGateway is the no-API-key stand-in. Reads elsewhere keep working;
// every outbound call reports the configuration error unchanged.
type disabledGateway struct{}

func (disabledGateway) CreateCustomer(context.Context, string, string, string) (string, error) {
	return "", ErrGatewayUnavailable
}

func (disabledGateway) CreateCheckoutSession(context.Context, CheckoutInput) (string, error) {
	return "", ErrGatewayUnavailable
}

func (disabledGateway) CreatePortalSession(context.Context, string, string) (string, error) {
	return "", ErrGatewayUnavailable
}

func (disabledGateway) CancelSubscription(context.Context, string, bool) error {
	return ErrGatewayUnavailable
}

func (disabledGateway) UpdateSubscription(context.Context, string, string, ProrationPolicy) error {
	return ErrGatewayUnavailable
}

func (disabledGateway) ListInvoices(context.Context, string, int64) ([]*stripe.Invoice, error) {
	return nil, ErrGatewayUnavailable
}
