package billing

import (
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/dineboard/dineboard/app/models"
	"github.com/dineboard/dineboard/internal/pkg/env"
)

// statusTable is the closed provider-status vocabulary. Adding a provider
// status is a one-line addition here; anything absent falls through to
// SUSPENDED because an unknown state means "cannot bill", never "active".
var statusTable = map[string]models.SubscriptionStatus{
	"active":             models.SubscriptionStatusActive,
	"trialing":           models.SubscriptionStatusTrial,
	"past_due":           models.SubscriptionStatusPastDue,
	"canceled":           models.SubscriptionStatusCanceled,
	"unpaid":             models.SubscriptionStatusSuspended,
	"incomplete":         models.SubscriptionStatusSuspended,
	"incomplete_expired": models.SubscriptionStatusCanceled,
	"paused":             models.SubscriptionStatusSuspended,
}

// MapStatus folds a provider subscription status into the internal enum.
// Total over all inputs.
func MapStatus(providerStatus string) models.SubscriptionStatus {
	key := strings.ToLower(strings.TrimSpace(providerStatus))
	if mapped, ok := statusTable[key]; ok {
		return mapped
	}
	log.Warnf("billing: unrecognized provider status %q, treating as suspended", providerStatus)
	return models.SubscriptionStatusSuspended
}

// PriceTable maps provider price ids to internal plans and back. It is
// built once from environment configuration at process start.
type PriceTable struct {
	byPriceID map[string]models.Plan
	byPlan    map[models.Plan]string
}

// NewPriceTable builds a table from plan→price-id pairs, skipping plans
// with no configured price.
func NewPriceTable(prices map[models.Plan]string) *PriceTable {
	t := &PriceTable{
		byPriceID: make(map[string]models.Plan, len(prices)),
		byPlan:    make(map[models.Plan]string, len(prices)),
	}
	for plan, priceID := range prices {
		id := strings.TrimSpace(priceID)
		if id == "" {
			continue
		}
		t.byPriceID[id] = plan
		t.byPlan[plan] = id
	}
	return t
}

// NewPriceTableFromEnv reads the per-plan provider price identifiers.
func NewPriceTableFromEnv() *PriceTable {
	return NewPriceTable(map[models.Plan]string{
		models.PlanHome:         env.GetEnv("STRIPE_PRICE_HOME", ""),
		models.PlanStarter:      env.GetEnv("STRIPE_PRICE_STARTER", ""),
		models.PlanProfessional: env.GetEnv("STRIPE_PRICE_PROFESSIONAL", ""),
		models.PlanEnterprise:   env.GetEnv("STRIPE_PRICE_ENTERPRISE", ""),
	})
}

// PlanForPrice resolves a provider price id. ok=false means "leave the
// current plan untouched"; callers must never guess on an unrecognized id.
func (t *PriceTable) PlanForPrice(priceID string) (models.Plan, bool) {
	plan, ok := t.byPriceID[strings.TrimSpace(priceID)]
	return plan, ok
}

// PriceForPlan is the inverse lookup used by checkout.
func (t *PriceTable) PriceForPlan(plan models.Plan) (string, bool) {
	id, ok := t.byPlan[plan]
	return id, ok
}
