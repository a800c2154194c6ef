package billing

import (
	"testing"
	"time"

	"github.com/dineboard/dineboard/app/models"
)

type memoryCache struct {
	values map[string]string
	sets   int
	gets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string]string)}
}

func (c *memoryCache) Get(key string) (string, error) {
	c.gets++
	return c.values[key], nil
}

func (c *memoryCache) Set(key string, value interface{}, _ time.Duration) error {
	c.sets++
	c.values[key] = value.(string)
	return nil
}

func seedAnalyticsFixture(repo *fakeRepo) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * 24 * time.Hour)
	ancient := now.Add(-90 * 24 * time.Hour)

	repo.seed(models.Subscription{TenantID: 1, Plan: models.PlanStarter, Status: models.SubscriptionStatusActive})
	repo.seed(models.Subscription{TenantID: 2, Plan: models.PlanProfessional, Status: models.SubscriptionStatusActive})
	repo.seed(models.Subscription{TenantID: 3, Plan: models.PlanHome, Status: models.SubscriptionStatusActive})
	repo.seed(models.Subscription{TenantID: 4, Plan: models.PlanTrial, Status: models.SubscriptionStatusTrial})
	repo.seed(models.Subscription{TenantID: 5, Plan: models.PlanStarter, Status: models.SubscriptionStatusCanceled, CanceledAt: &recent})
	repo.seed(models.Subscription{TenantID: 6, Plan: models.PlanHome, Status: models.SubscriptionStatusCanceled, CanceledAt: &ancient})
	repo.seed(models.Subscription{TenantID: 7, Plan: models.PlanEnterprise, Status: models.SubscriptionStatusPastDue})
}

func newTestAggregator(repo *fakeRepo, cache SnapshotCache) *AnalyticsAggregator {
	a := NewAnalyticsAggregator(repo, cache)
	a.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestMRRSumsActiveCatalogPrices(t *testing.T) {
	repo := newFakeRepo()
	seedAnalyticsFixture(repo)
	a := newTestAggregator(repo, nil)

	mrr, err := a.MRR()
	if err != nil {
		t.Fatalf("MRR() error = %v", err)
	}
	// starter 49 + professional 149 + home 19; trial, canceled and
	// past_due rows contribute nothing.
	if mrr != 217 {
		t.Fatalf("MRR = %d, want 217", mrr)
	}
}

func TestChurnRateTrailingWindow(t *testing.T) {
	repo := newFakeRepo()
	seedAnalyticsFixture(repo)
	a := newTestAggregator(repo, nil)

	churn, err := a.ChurnRatePercent()
	if err != nil {
		t.Fatalf("ChurnRatePercent() error = %v", err)
	}
	// 1 cancellation inside 30 days over a base of 3 active + 1 trial.
	if churn != 25.0 {
		t.Fatalf("churn = %v, want 25.0", churn)
	}
}

func TestChurnRateRounding(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-24 * time.Hour)
	repo.seed(models.Subscription{TenantID: 1, Plan: models.PlanStarter, Status: models.SubscriptionStatusActive})
	repo.seed(models.Subscription{TenantID: 2, Plan: models.PlanStarter, Status: models.SubscriptionStatusActive})
	repo.seed(models.Subscription{TenantID: 3, Plan: models.PlanStarter, Status: models.SubscriptionStatusActive})
	repo.seed(models.Subscription{TenantID: 4, Plan: models.PlanStarter, Status: models.SubscriptionStatusCanceled, CanceledAt: &recent})
	a := newTestAggregator(repo, nil)

	churn, err := a.ChurnRatePercent()
	if err != nil {
		t.Fatalf("ChurnRatePercent() error = %v", err)
	}
	// 1/3 of a percent base rounds to 33.33, never more decimals.
	if churn != 33.33 {
		t.Fatalf("churn = %v, want 33.33", churn)
	}
}

func TestChurnRateEmptyBase(t *testing.T) {
	repo := newFakeRepo()
	a := newTestAggregator(repo, nil)

	churn, err := a.ChurnRatePercent()
	if err != nil {
		t.Fatalf("ChurnRatePercent() error = %v", err)
	}
	if churn != 0 {
		t.Fatalf("churn = %v, want 0 for an empty base", churn)
	}
}

func TestSnapshotUsesCache(t *testing.T) {
	repo := newFakeRepo()
	seedAnalyticsFixture(repo)
	cache := newMemoryCache()
	a := newTestAggregator(repo, cache)

	first, err := a.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if first.MRR != 217 || first.ActiveCount != 3 || first.TrialCount != 1 || first.CanceledLast30d != 1 {
		t.Fatalf("snapshot = %+v", first)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", cache.sets)
	}

	// A mutation between reads stays invisible while the cache is warm.
	repo.seed(models.Subscription{TenantID: 8, Plan: models.PlanEnterprise, Status: models.SubscriptionStatusActive})

	second, err := a.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if second.MRR != first.MRR {
		t.Fatalf("second snapshot MRR = %d, want cached %d", second.MRR, first.MRR)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets = %d, want still 1", cache.sets)
	}
}

func TestSnapshotWithoutCache(t *testing.T) {
	repo := newFakeRepo()
	seedAnalyticsFixture(repo)
	a := newTestAggregator(repo, nil)

	snap, err := a.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.MRR != 217 {
		t.Fatalf("MRR = %d, want 217", snap.MRR)
	}
	if snap.ChurnRatePercent != 25.0 {
		t.Fatalf("churn = %v, want 25.0", snap.ChurnRatePercent)
	}
}
