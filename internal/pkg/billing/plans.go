package billing

import (
	"sort"
	"strings"

	"github.com/dineboard/dineboard/app/models"
)

// planMonthlyPrices is the static reporting catalog in whole currency units
// per month. Analytics sums these instead of calling the provider on every
// read; checkout resolves real provider price ids via the PriceTable.
var planMonthlyPrices = map[models.Plan]int64{
	models.PlanTrial:        0,
	models.PlanFree:         0,
	models.PlanHome:         19,
	models.PlanStarter:      49,
	models.PlanProfessional: 149,
	models.PlanEnterprise:   399,
}

// MonthlyPrice returns the catalog price for a plan, zero for unknown plans.
func MonthlyPrice(plan models.Plan) int64 {
	return planMonthlyPrices[plan]
}

func normalizePlan(plan string) (models.Plan, bool) {
	switch models.Plan(strings.ToLower(strings.TrimSpace(plan))) {
	case models.PlanTrial:
		return models.PlanTrial, true
	case models.PlanFree:
		return models.PlanFree, true
	case models.PlanHome:
		return models.PlanHome, true
	case models.PlanStarter:
		return models.PlanStarter, true
	case models.PlanProfessional:
		return models.PlanProfessional, true
	case models.PlanEnterprise:
		return models.PlanEnterprise, true
	default:
		return models.PlanFree, false
	}
}

// PlanInfo is one purchasable catalog entry.
type PlanInfo struct {
	Plan         models.Plan `json:"plan"`
	MonthlyPrice int64       `json:"monthly_price"`
}

// PlanCatalog lists the purchasable plans cheapest-first.
func PlanCatalog() []PlanInfo {
	plans := []models.Plan{
		models.PlanHome,
		models.PlanStarter,
		models.PlanProfessional,
		models.PlanEnterprise,
	}
	sort.Slice(plans, func(i, j int) bool {
		return planRank(plans[i]) < planRank(plans[j])
	})

	catalog := make([]PlanInfo, 0, len(plans))
	for _, plan := range plans {
		catalog = append(catalog, PlanInfo{Plan: plan, MonthlyPrice: MonthlyPrice(plan)})
	}
	return catalog
}

func planRank(plan models.Plan) int {
	switch plan {
	case models.PlanEnterprise:
		return 5
	case models.PlanProfessional:
		return 4
	case models.PlanStarter:
		return 3
	case models.PlanHome:
		return 2
	case models.PlanTrial:
		return 1
	default:
		return 0
	}
}
