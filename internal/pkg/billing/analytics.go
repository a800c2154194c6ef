package billing

import (
	"encoding/json"
	"math"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/dineboard/dineboard/app/models"
	"github.com/dineboard/dineboard/app/repository"
)

const (
	analyticsSnapshotCacheKey = "billing:analytics:snapshot"
	analyticsCacheTTL         = 5 * time.Minute
	churnTrailingWindow       = 30 * 24 * time.Hour
)

// SnapshotCache is the small cache surface analytics needs; the Redis
// package satisfies it. A nil cache disables caching.
type SnapshotCache interface {
	Get(key string) (string, error)
	Set(key string, value interface{}, expiration time.Duration) error
}

// AnalyticsSnapshot is the reporting rollup. Values never feed back into
// the reconciliation state machine.
type AnalyticsSnapshot struct {
	MRR              int64     `json:"mrr"`
	ChurnRatePercent float64   `json:"churn_rate_percent"`
	ActiveCount      int64     `json:"active_count"`
	TrialCount       int64     `json:"trial_count"`
	CanceledLast30d  int64     `json:"canceled_last_30d"`
	ComputedAt       time.Time `json:"computed_at"`
}

// AnalyticsAggregator computes read-only rollups over the subscription
// store. MRR uses the static plan catalog, not live provider prices, so an
// analytics read never leaves the process.
type AnalyticsAggregator struct {
	repo  repository.SubscriptionRepository
	cache SnapshotCache
	now   func() time.Time
}

// NewAnalyticsAggregator wires the aggregator; cache may be nil.
func NewAnalyticsAggregator(repo repository.SubscriptionRepository, cache SnapshotCache) *AnalyticsAggregator {
	return &AnalyticsAggregator{
		repo:  repo,
		cache: cache,
		now:   time.Now,
	}
}

// MRR sums the catalog price of every ACTIVE subscription.
func (a *AnalyticsAggregator) MRR() (int64, error) {
	subs, err := a.repo.ListByStatus(models.SubscriptionStatusActive)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, sub := range subs {
		total += MonthlyPrice(sub.Plan)
	}
	return total, nil
}

// ChurnRatePercent is cancellations in the trailing 30 days over the
// current ACTIVE+TRIAL base, as a percentage rounded to two decimals.
func (a *AnalyticsAggregator) ChurnRatePercent() (float64, error) {
	canceled, err := a.repo.CountCanceledSince(a.now().Add(-churnTrailingWindow))
	if err != nil {
		return 0, err
	}
	base, err := a.repo.CountByStatus(models.SubscriptionStatusActive, models.SubscriptionStatusTrial)
	if err != nil {
		return 0, err
	}
	if base == 0 {
		return 0, nil
	}
	rate := float64(canceled) / float64(base) * 100
	return math.Round(rate*100) / 100, nil
}

// Snapshot computes the full rollup, serving a cached copy when one is
// fresh enough.
func (a *AnalyticsAggregator) Snapshot() (*AnalyticsSnapshot, error) {
	if a.cache != nil {
		if raw, err := a.cache.Get(analyticsSnapshotCacheKey); err == nil && raw != "" {
			var snap AnalyticsSnapshot
			if err := json.Unmarshal([]byte(raw), &snap); err == nil {
				return &snap, nil
			}
		}
	}

	mrr, err := a.MRR()
	if err != nil {
		return nil, err
	}
	churn, err := a.ChurnRatePercent()
	if err != nil {
		return nil, err
	}
	active, err := a.repo.CountByStatus(models.SubscriptionStatusActive)
	if err != nil {
		return nil, err
	}
	trial, err := a.repo.CountByStatus(models.SubscriptionStatusTrial)
	if err != nil {
		return nil, err
	}
	canceled, err := a.repo.CountCanceledSince(a.now().Add(-churnTrailingWindow))
	if err != nil {
		return nil, err
	}

	snap := &AnalyticsSnapshot{
		MRR:              mrr,
		ChurnRatePercent: churn,
		ActiveCount:      active,
		TrialCount:       trial,
		CanceledLast30d:  canceled,
		ComputedAt:       a.now(),
	}

	if a.cache != nil {
		raw, _ := json.Marshal(snap)
		if err := a.cache.Set(analyticsSnapshotCacheKey, string(raw), analyticsCacheTTL); err != nil {
			log.Warnf("billing: analytics snapshot cache write failed: %v", err)
		}
	}
	return snap, nil
}
