package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"github.com/dineboard/dineboard/app/models"
	"github.com/dineboard/dineboard/app/repository"
)

// OperationsService implements the user-triggered billing operations:
// checkout, portal, cancel. It writes local state optimistically so the UI
// reflects a pending change before the confirming webhook arrives; every
// such write is overwritable by the next reconciliation event, because the
// provider's ledger is the source of truth.
type OperationsService struct {
	repo    repository.SubscriptionRepository
	gateway PaymentGateway
	prices  *PriceTable
	now     func() time.Time
}

// NewOperationsService wires the service from its collaborators.
func NewOperationsService(repo repository.SubscriptionRepository, gateway PaymentGateway, prices *PriceTable) *OperationsService {
	return &OperationsService{
		repo:    repo,
		gateway: gateway,
		prices:  prices,
		now:     time.Now,
	}
}

// StartCheckout returns a hosted checkout URL for the requested plan. A
// tenant without a subscription row gets a fresh TRIAL one first; a tenant
// without a provider customer gets one created and persisted immediately,
// so a crash between the two calls never orphans a provider customer.
func (s *OperationsService) StartCheckout(ctx context.Context, tenant *models.Tenant, plan models.Plan, successURL, cancelURL string) (string, error) {
	plan, priceID, err := s.resolvePlan(plan)
	if err != nil {
		return "", err
	}

	sub, err := s.repo.GetByTenantID(tenant.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sub, err = s.createTrialSubscription(tenant)
	}
	if err != nil {
		return "", err
	}

	if sub.ExternalCustomerID == "" {
		customerID, err := s.gateway.CreateCustomer(ctx, billingEmail(sub, tenant), tenant.Name, tenant.UUID)
		if err != nil {
			return "", err
		}
		if err := s.repo.UpdateFields(sub.ID, map[string]interface{}{
			"external_customer_id": customerID,
		}); err != nil {
			return "", err
		}
		sub.ExternalCustomerID = customerID
	}

	in := CheckoutInput{
		CustomerID: sub.ExternalCustomerID,
		PriceID:    priceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		TenantUUID: tenant.UUID,
	}
	if sub.IsTrialing() {
		in.TrialDays = models.TrialDays
	}
	return s.gateway.CreateCheckoutSession(ctx, in)
}

// OpenPortal returns a billing portal URL for a tenant that already has a
// provider customer.
func (s *OperationsService) OpenPortal(ctx context.Context, tenant *models.Tenant, returnURL string) (string, error) {
	sub, err := s.repo.GetByTenantID(tenant.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNoBillingAccount
		}
		return "", err
	}
	if sub.ExternalCustomerID == "" {
		return "", ErrNoBillingAccount
	}
	return s.gateway.CreatePortalSession(ctx, sub.ExternalCustomerID, returnURL)
}

// Cancel asks the provider to cancel, then optimistically mirrors the
// pending change locally. With immediate=false the provider's own
// cancel-at-period-end semantic is used, so the confirming webhook later
// reports the same terminal state and simply overwrites these fields.
func (s *OperationsService) Cancel(ctx context.Context, tenant *models.Tenant, immediate bool) (*models.Subscription, error) {
	sub, err := s.repo.GetByTenantID(tenant.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}
	if sub.ExternalSubscriptionID == "" {
		return nil, ErrNoActiveSubscription
	}

	if err := s.gateway.CancelSubscription(ctx, sub.ExternalSubscriptionID, immediate); err != nil {
		return nil, err
	}

	now := s.now()
	fields := map[string]interface{}{}
	if immediate {
		fields["status"] = models.SubscriptionStatusCanceled
		fields["canceled_at"] = &now
		sub.Status = models.SubscriptionStatusCanceled
		sub.CanceledAt = &now
	} else {
		cancelAt := sub.CurrentPeriodEnd
		if cancelAt == nil {
			cancelAt = &now
		}
		fields["cancel_at"] = cancelAt
		sub.CancelAt = cancelAt
	}
	if err := s.repo.UpdateFields(sub.ID, fields); err != nil {
		return nil, err
	}
	return sub, nil
}

// ChangePlan switches the provider subscription to another plan's price,
// delegating proration entirely to the provider. Local plan state is left
// for the confirming subscription.updated webhook to write.
func (s *OperationsService) ChangePlan(ctx context.Context, tenant *models.Tenant, plan models.Plan, proration ProrationPolicy) error {
	_, priceID, err := s.resolvePlan(plan)
	if err != nil {
		return err
	}

	sub, err := s.repo.GetByTenantID(tenant.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveSubscription
		}
		return err
	}
	if sub.ExternalSubscriptionID == "" {
		return ErrNoActiveSubscription
	}
	return s.gateway.UpdateSubscription(ctx, sub.ExternalSubscriptionID, priceID, proration)
}

// Subscription returns the tenant's local subscription row.
func (s *OperationsService) Subscription(tenant *models.Tenant) (*models.Subscription, error) {
	sub, err := s.repo.GetByTenantID(tenant.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}
	return sub, nil
}

// invoiceBackfillLimit caps how many historical invoices a cold mirror
// pulls from the provider.
const invoiceBackfillLimit = 24

// Invoices returns the tenant's locally mirrored invoices. A cold mirror
// (customer exists, no rows yet) is backfilled from the provider once;
// the upsert key makes the backfill safe against concurrent webhook
// writes.
func (s *OperationsService) Invoices(ctx context.Context, tenant *models.Tenant) ([]models.Invoice, error) {
	sub, err := s.Subscription(tenant)
	if err != nil {
		return nil, err
	}
	invoices, err := s.repo.ListInvoicesBySubscription(sub.ID)
	if err != nil {
		return nil, err
	}
	if len(invoices) > 0 || sub.ExternalCustomerID == "" {
		return invoices, nil
	}

	remote, err := s.gateway.ListInvoices(ctx, sub.ExternalCustomerID, invoiceBackfillLimit)
	if err != nil {
		// An unconfigured gateway just means the mirror is all we have.
		if errors.Is(err, ErrGatewayUnavailable) {
			return invoices, nil
		}
		return nil, err
	}
	for _, providerInv := range remote {
		inv := invoiceFromProvider(sub.ID, providerInv)
		if inv == nil {
			continue
		}
		if err := s.repo.UpsertInvoice(inv); err != nil {
			return nil, err
		}
	}
	return s.repo.ListInvoicesBySubscription(sub.ID)
}

func invoiceFromProvider(subscriptionID uint, providerInv *stripe.Invoice) *models.Invoice {
	if providerInv == nil || providerInv.ID == "" {
		return nil
	}

	status := models.InvoiceStatusDraft
	switch providerInv.Status {
	case stripe.InvoiceStatusPaid:
		status = models.InvoiceStatusPaid
	case stripe.InvoiceStatusUncollectible, stripe.InvoiceStatusVoid:
		status = models.InvoiceStatusFailed
	}

	inv := &models.Invoice{
		SubscriptionID:    subscriptionID,
		ExternalInvoiceID: providerInv.ID,
		Status:            status,
		Amount:            providerInv.Subtotal,
		Tax:               providerInv.Tax,
		Total:             providerInv.Total,
		Currency:          string(providerInv.Currency),
		HostedURL:         providerInv.HostedInvoiceURL,
		PDFURL:            providerInv.InvoicePDF,
	}
	if providerInv.PeriodStart > 0 {
		inv.PeriodStart = unixTime(providerInv.PeriodStart)
	}
	if providerInv.PeriodEnd > 0 {
		inv.PeriodEnd = unixTime(providerInv.PeriodEnd)
	}
	if providerInv.StatusTransitions != nil && providerInv.StatusTransitions.PaidAt > 0 {
		inv.PaidAt = unixTime(providerInv.StatusTransitions.PaidAt)
	}
	return inv
}

// RecordUsage appends one metering event for the tenant's subscription.
func (s *OperationsService) RecordUsage(tenant *models.Tenant, metric string, quantity int64) error {
	sub, err := s.Subscription(tenant)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		quantity = 1
	}
	return s.repo.CreateUsageRecord(&models.UsageRecord{
		SubscriptionID: sub.ID,
		Metric:         metric,
		Quantity:       quantity,
	})
}

// UsageTotal sums one metric since the start of the current billing
// period, falling back to the trailing month while no period is known.
func (s *OperationsService) UsageTotal(tenant *models.Tenant, metric string) (int64, error) {
	sub, err := s.Subscription(tenant)
	if err != nil {
		return 0, err
	}
	since := s.now().AddDate(0, -1, 0)
	if sub.CurrentPeriodStart != nil {
		since = *sub.CurrentPeriodStart
	}
	return s.repo.SumUsageSince(sub.ID, metric, since)
}

// resolvePlan canonicalizes user-supplied plan input and maps it to the
// configured provider price.
func (s *OperationsService) resolvePlan(plan models.Plan) (models.Plan, string, error) {
	normalized, ok := normalizePlan(string(plan))
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownPlan, plan)
	}
	priceID, ok := s.prices.PriceForPlan(normalized)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownPlan, plan)
	}
	return normalized, priceID, nil
}

func (s *OperationsService) createTrialSubscription(tenant *models.Tenant) (*models.Subscription, error) {
	trialEnd := s.now().AddDate(0, 0, models.TrialDays)
	sub := &models.Subscription{
		TenantID:     tenant.ID,
		Plan:         models.PlanTrial,
		Status:       models.SubscriptionStatusTrial,
		TrialEndsAt:  &trialEnd,
		Seats:        1,
		BillingEmail: tenant.OwnerEmail,
		BillingName:  tenant.Name,
	}
	if err := s.repo.Create(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func billingEmail(sub *models.Subscription, tenant *models.Tenant) string {
	if sub.BillingEmail != "" {
		return sub.BillingEmail
	}
	return tenant.OwnerEmail
}
