package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/harborview/claims-triage/internal/model"
	"github.com/harborview/claims-triage/internal/store"
)

// MetricsSnapshot holds a point-in-time view of intake health.
type MetricsSnapshot struct {
	// Claim metrics (within lookback window).
	ClaimsTotal      int     `json:"claims_total"`
	ClaimsCompleted  int     `json:"claims_completed"`
	ClaimsErrored    int     `json:"claims_errored"`
	ClaimsUnassigned int     `json:"claims_unassigned"`
	ClaimsInReview   int     `json:"claims_in_review"`
	ClaimsFlagged    int     `json:"claims_flagged"`
	ErrorRate        float64 `json:"error_rate"`
	AvgSeverity      float64 `json:"avg_severity"`
	AvgComplexity    float64 `json:"avg_complexity"`
	AvgProcessSecs   float64 `json:"avg_process_secs"`

	// Adjuster metrics (current, not windowed).
	AdjustersTotal     int     `json:"adjusters_total"`
	AdjustersAvailable int     `json:"adjusters_available"`
	Utilization        float64 `json:"utilization"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the claim store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of intake metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	claims, err := c.store.ListClaims(ctx, store.ClaimFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list claims")
	}

	var totalSeverity, totalComplexity float64
	var scored int
	var totalProcessSecs float64
	var processed int

	for i := range claims {
		cl := &claims[i]
		if cl.CreatedAt.Before(cutoff) {
			continue
		}
		snap.ClaimsTotal++
		switch cl.Status {
		case model.StatusCompleted, model.StatusAutoApproved, model.StatusApproved, model.StatusClosed:
			snap.ClaimsCompleted++
		case model.StatusError:
			snap.ClaimsErrored++
		case model.StatusRouting:
			snap.ClaimsUnassigned++
		case model.StatusReview:
			snap.ClaimsInReview++
		}
		if len(cl.FraudFlags) > 0 {
			snap.ClaimsFlagged++
		}
		if cl.SeverityScore != nil && cl.ComplexityScore != nil {
			totalSeverity += cl.Severity()
			totalComplexity += cl.Complexity()
			scored++
		}
		if cl.ProcessingTimeSeconds > 0 {
			totalProcessSecs += cl.ProcessingTimeSeconds
			processed++
		}
	}

	finished := snap.ClaimsCompleted + snap.ClaimsErrored
	if finished > 0 {
		snap.ErrorRate = float64(snap.ClaimsErrored) / float64(finished)
	}
	if scored > 0 {
		snap.AvgSeverity = totalSeverity / float64(scored)
		snap.AvgComplexity = totalComplexity / float64(scored)
	}
	if processed > 0 {
		snap.AvgProcessSecs = totalProcessSecs / float64(processed)
	}

	adjusters, err := c.store.ListAdjusters(ctx, false)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list adjusters")
	}

	var workload, capacity int
	for _, a := range adjusters {
		snap.AdjustersTotal++
		if a.Available {
			snap.AdjustersAvailable++
			workload += a.CurrentWorkload
			capacity += a.MaxConcurrentClaims
		}
	}
	if capacity > 0 {
		snap.Utilization = float64(workload) / float64(capacity)
	}

	return snap, nil
}
