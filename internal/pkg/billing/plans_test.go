package billing

import (
	"testing"

	"github.com/dineboard/dineboard/app/models"
)

func TestNormalizePlan(t *testing.T) {
	tests := []struct {
		in     string
		want   models.Plan
		wantOK bool
	}{
		{"starter", models.PlanStarter, true},
		{"Professional", models.PlanProfessional, true},
		{" ENTERPRISE ", models.PlanEnterprise, true},
		{"home", models.PlanHome, true},
		{"trial", models.PlanTrial, true},
		{"free", models.PlanFree, true},
		{"platinum", models.PlanFree, false},
		{"", models.PlanFree, false},
	}

	for _, tt := range tests {
		got, ok := normalizePlan(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("normalizePlan(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPlanRankOrdering(t *testing.T) {
	order := []models.Plan{
		models.PlanFree,
		models.PlanTrial,
		models.PlanHome,
		models.PlanStarter,
		models.PlanProfessional,
		models.PlanEnterprise,
	}
	for i := 1; i < len(order); i++ {
		if planRank(order[i-1]) >= planRank(order[i]) {
			t.Errorf("planRank(%q) >= planRank(%q)", order[i-1], order[i])
		}
	}
}

func TestMonthlyPrice(t *testing.T) {
	if got := MonthlyPrice(models.PlanStarter); got != 49 {
		t.Errorf("MonthlyPrice(starter) = %d, want 49", got)
	}
	if got := MonthlyPrice(models.PlanTrial); got != 0 {
		t.Errorf("MonthlyPrice(trial) = %d, want 0", got)
	}
	if got := MonthlyPrice(models.Plan("bogus")); got != 0 {
		t.Errorf("MonthlyPrice(bogus) = %d, want 0", got)
	}
}

func TestPlanCatalogOrderedByRank(t *testing.T) {
	catalog := PlanCatalog()
	want := []PlanInfo{
		{models.PlanHome, 19},
		{models.PlanStarter, 49},
		{models.PlanProfessional, 149},
		{models.PlanEnterprise, 399},
	}
	if len(catalog) != len(want) {
		t.Fatalf("catalog = %d entries, want %d", len(catalog), len(want))
	}
	for i, entry := range catalog {
		if entry != want[i] {
			t.Errorf("catalog[%d] = %+v, want %+v", i, entry, want[i])
		}
	}
}
