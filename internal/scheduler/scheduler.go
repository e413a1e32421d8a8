// Package scheduler advances assigned claims through the tail of the
// workflow: in_progress to review after a fixed delay, then review to
// completed for small, simple claims. The schedule lives in memory and
// does not survive a restart; claims left behind stay in their stored
// status for manual handling.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/config"
	"github.com/harborview/claims-triage/internal/events"
	"github.com/harborview/claims-triage/internal/model"
	"github.com/harborview/claims-triage/internal/store"
)

const (
	// Auto-completion gates for the review to completed transition.
	autoCompleteMaxAmount     = 500.0
	autoCompleteMaxComplexity = 50.0
	autoCompleteMaxSeverity   = 50.0
)

// transition tracks one scheduled claim between sweeps.
type transition struct {
	claimID string
	amount  float64
	stage   model.ClaimStatus // in_progress or review
	nextAt  time.Time
}

// Scheduler runs the periodic transition sweep.
type Scheduler struct {
	store store.Store
	bus   *events.Bus

	tick    time.Duration
	delay   time.Duration
	backoff time.Duration

	mu    sync.Mutex
	queue map[string]*transition

	nowFunc func() time.Time
}

// New creates a Scheduler. Zero config values fall back to a 1s tick,
// a 10s transition delay, and a 5s error backoff.
func New(st store.Store, bus *events.Bus, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		store:   st,
		bus:     bus,
		tick:    cfg.Tick(),
		delay:   cfg.TransitionDelay(),
		backoff: cfg.ErrorBackoff(),
		queue:   make(map[string]*transition),
		nowFunc: time.Now,
	}
}

// Schedule queues a newly assigned claim for its in_progress to review
// transition. Re-scheduling a claim resets its timer.
func (s *Scheduler) Schedule(claimID string, amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue[claimID] = &transition{
		claimID: claimID,
		amount:  amount,
		stage:   model.StatusInProgress,
		nextAt:  s.nowFunc().Add(s.delay),
	}
	zap.L().Info("scheduled auto-transition",
		zap.String("claim_id", claimID),
		zap.Duration("delay", s.delay))
}

// Pending returns the number of claims waiting on a transition.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "scheduler"))
	log.Info("starting transition scheduler",
		zap.Duration("tick", s.tick),
		zap.Duration("transition_delay", s.delay))

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("transition scheduler stopped")
			return
		case <-ticker.C:
			if ok := s.sweep(ctx, log); !ok {
				select {
				case <-ctx.Done():
					log.Info("transition scheduler stopped")
					return
				case <-time.After(s.backoff):
				}
			}
		}
	}
}

// sweep advances every due claim once. Returns false when the sweep
// itself blew up, signalling the caller to back off.
func (s *Scheduler) sweep(ctx context.Context, log *zap.Logger) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("transition sweep panicked", zap.Any("panic", r))
			ok = false
		}
	}()

	now := s.nowFunc()

	s.mu.Lock()
	var due []*transition
	for _, t := range s.queue {
		if !now.Before(t.nextAt) {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		advanced := s.transitionClaim(ctx, t, log)

		s.mu.Lock()
		switch {
		case !advanced:
			// Failed, or parked in review for manual handling.
			delete(s.queue, t.claimID)
		case t.stage == model.StatusInProgress:
			t.stage = model.StatusReview
			t.nextAt = now.Add(s.delay)
		default:
			// Completed.
			delete(s.queue, t.claimID)
		}
		s.mu.Unlock()
	}

	return true
}

func (s *Scheduler) transitionClaim(ctx context.Context, t *transition, log *zap.Logger) bool {
	claim, err := s.store.GetClaim(ctx, t.claimID)
	if err != nil {
		log.Error("transition: load claim", zap.String("claim_id", t.claimID), zap.Error(err))
		return false
	}
	if claim == nil {
		log.Warn("transition: claim not found", zap.String("claim_id", t.claimID))
		return false
	}
	if claim.Status.Terminal() {
		log.Warn("transition: claim already terminal",
			zap.String("claim_id", t.claimID),
			zap.String("status", string(claim.Status)))
		return false
	}

	switch t.stage {
	case model.StatusInProgress:
		return s.moveToReview(ctx, claim, t, log)
	case model.StatusReview:
		return s.tryComplete(ctx, claim, t, log)
	default:
		log.Warn("transition: unknown stage",
			zap.String("claim_id", t.claimID),
			zap.String("stage", string(t.stage)))
		return false
	}
}

func (s *Scheduler) moveToReview(ctx context.Context, claim *model.Claim, t *transition, log *zap.Logger) bool {
	checkID := fmt.Sprintf("CHECK-%s-$%.0f", t.claimID, t.amount)

	claim.Status = model.StatusReview
	claim.ReviewCheckID = checkID
	claim.UpdatedAt = s.nowFunc()
	if err := s.store.SaveClaim(ctx, claim); err != nil {
		log.Error("transition: move to review", zap.String("claim_id", t.claimID), zap.Error(err))
		return false
	}

	s.bus.Publish(model.Event{
		Type:    model.EventClaimMovedToReview,
		Message: fmt.Sprintf("Claim %s moved to review - Check ID: %s", t.claimID, checkID),
		ClaimID: t.claimID,
		Status:  model.StatusReview,
		Metadata: map[string]any{
			"review_check_id": checkID,
		},
	})

	log.Info("claim moved to review",
		zap.String("claim_id", t.claimID),
		zap.String("review_check_id", checkID))
	return true
}

// tryComplete auto-completes small, simple claims. Anything over the
// gates stays in review for an adjuster and leaves the schedule.
func (s *Scheduler) tryComplete(ctx context.Context, claim *model.Claim, t *transition, log *zap.Logger) bool {
	if t.amount >= autoCompleteMaxAmount ||
		claim.Complexity() >= autoCompleteMaxComplexity ||
		claim.Severity() >= autoCompleteMaxSeverity {
		log.Info("claim staying in review",
			zap.String("claim_id", t.claimID),
			zap.Float64("amount", t.amount),
			zap.Float64("complexity", claim.Complexity()),
			zap.Float64("severity", claim.Severity()))
		return false
	}

	if err := s.store.UpdateClaimStatus(ctx, t.claimID, model.StatusCompleted); err != nil {
		log.Error("transition: complete claim", zap.String("claim_id", t.claimID), zap.Error(err))
		return false
	}

	if adjusterID := claim.AssignedAdjusterID(); adjusterID != "" && adjusterID != model.AutoSystemID {
		if err := s.store.AdjustWorkload(ctx, adjusterID, -1); err != nil {
			log.Error("transition: decrement workload",
				zap.String("claim_id", t.claimID),
				zap.String("adjuster_id", adjusterID),
				zap.Error(err))
		}
	}

	s.bus.Publish(model.Event{
		Type:    model.EventClaimCompleted,
		Message: fmt.Sprintf("Claim %s auto-completed (low complexity, <$%.0f)", t.claimID, autoCompleteMaxAmount),
		ClaimID: t.claimID,
		Status:  model.StatusCompleted,
	})

	log.Info("claim auto-completed",
		zap.String("claim_id", t.claimID),
		zap.Float64("amount", t.amount))
	return true
}
