// Package pipeline orchestrates claim intake: extraction, parsing,
// scoring, fraud detection, auto-processing, routing, scheduling and
// task creation for a single claim document.
package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/autoproc"
	"github.com/harborview/claims-triage/internal/events"
	"github.com/harborview/claims-triage/internal/extract"
	"github.com/harborview/claims-triage/internal/fraud"
	"github.com/harborview/claims-triage/internal/model"
	"github.com/harborview/claims-triage/internal/resilience"
	"github.com/harborview/claims-triage/internal/routing"
	"github.com/harborview/claims-triage/internal/scoring"
	"github.com/harborview/claims-triage/internal/store"
	"github.com/harborview/claims-triage/internal/tasks"
)

// ignoredFiles are OS artifacts dropped into watch directories.
var ignoredFiles = map[string]bool{
	".DS_Store":  true,
	".gitkeep":   true,
	"Thumbs.db":  true,
	".gitignore": true,
	".keep":      true,
}

// ClaimParser extracts structured fields from document text.
type ClaimParser interface {
	Parse(ctx context.Context, documentText string) *model.ExtractedData
}

// TaskCreator mirrors routed claims onto an external task board.
type TaskCreator interface {
	CreateClaimTask(ctx context.Context, req tasks.TaskRequest) (string, error)
}

// TransitionScheduler queues assigned claims for automatic workflow
// transitions.
type TransitionScheduler interface {
	Schedule(claimID string, amount float64)
}

// Result summarizes the outcome of processing one file.
type Result struct {
	Status         string // success, skipped, error
	Reason         string
	ClaimID        string
	FinalStatus    model.ClaimStatus
	Adjuster       string
	ProcessingTime float64
	TaskCreated    bool
}

// Processor runs the intake pipeline. Extraction and parsing are
// external calls; scoring, fraud detection, auto-processing and routing
// are pure and never fail the claim.
type Processor struct {
	store     store.Store
	bus       *events.Bus
	extractor extract.Extractor
	parser    ClaimParser
	scorer    *scoring.Scorer
	detector  *fraud.Detector
	policy    *autoproc.Policy
	router    *routing.Engine

	// tasks is optional; nil disables the board integration.
	tasks   TaskCreator
	boardCB *resilience.Breaker

	// scheduler is optional; nil skips auto-transitions (batch mode).
	scheduler TransitionScheduler

	backoff resilience.Backoff
	nowFunc func() time.Time
}

// New creates a Processor with all dependencies. taskCreator and sched
// may be nil.
func New(
	st store.Store,
	bus *events.Bus,
	extractor extract.Extractor,
	parser ClaimParser,
	taskCreator TaskCreator,
	sched TransitionScheduler,
) *Processor {
	return &Processor{
		store:     st,
		bus:       bus,
		extractor: extractor,
		parser:    parser,
		scorer:    scoring.New(scoring.DefaultConfig()),
		detector:  fraud.NewDetector(),
		policy:    autoproc.NewPolicy(),
		router:    routing.NewEngine(),
		tasks:     taskCreator,
		boardCB:   resilience.NewBreaker(resilience.BreakerOpts{}),
		scheduler: sched,
		nowFunc:   time.Now,
	}
}

// ProcessFile runs one claim document through the full pipeline. The
// returned Result is non-nil even on error so callers can report the
// claim ID of a failed run.
func (p *Processor) ProcessFile(ctx context.Context, filePath, source string) (*Result, error) {
	start := p.nowFunc()
	filename := filepath.Base(filePath)
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if source == "" {
		source = "upload"
	}

	log := zap.L().With(zap.String("file", filename))

	if ignoredFiles[filename] || strings.HasPrefix(filename, ".") {
		log.Info("skipping system file")
		return &Result{Status: "skipped", Reason: "system_file"}, nil
	}

	// Re-delivery of a file already being worked is a no-op.
	existing, err := p.store.GetClaimByFilename(ctx, stem)
	if err != nil {
		return &Result{Status: "error"}, eris.Wrap(err, "pipeline: idempotency check")
	}
	if existing != nil && existing.Status.Active() {
		log.Info("skipping already-processed file",
			zap.String("claim_id", existing.ClaimID),
			zap.String("status", string(existing.Status)))
		return &Result{
			Status:  "skipped",
			Reason:  "already_" + string(existing.Status),
			ClaimID: existing.ClaimID,
		}, nil
	}

	claimID := newClaimID(start)
	log = log.With(zap.String("claim_id", claimID))
	log.Info("processing claim file")

	p.bus.Publish(model.Event{
		Type:    model.EventClaimUploaded,
		Message: fmt.Sprintf("New claim uploaded: %s", claimID),
		ClaimID: claimID,
		Status:  model.StatusUploaded,
	})

	claim := &model.Claim{
		ClaimID:        claimID,
		SourceFilename: stem,
		Source:         source,
		FilePath:       filePath,
		Status:         model.StatusExtracting,
		CreatedAt:      start,
		UpdatedAt:      start,
	}
	if err := p.store.SaveClaim(ctx, claim); err != nil {
		return &Result{Status: "error", ClaimID: claimID}, eris.Wrap(err, "pipeline: save initial claim")
	}

	p.publishStage(claimID, model.StatusExtracting, "extraction",
		fmt.Sprintf("Extracting document data: %s", claimID))

	text, err := p.extractText(ctx, filePath)
	if err != nil || strings.TrimSpace(text) == "" {
		if err == nil {
			err = eris.Errorf("pipeline: no text extracted from %s", filename)
		}
		log.Error("extraction failed", zap.Error(err))
		if statusErr := p.store.UpdateClaimStatus(ctx, claimID, model.StatusError); statusErr != nil {
			log.Warn("failed to mark claim errored", zap.Error(statusErr))
		}
		return &Result{Status: "error", ClaimID: claimID, FinalStatus: model.StatusError}, err
	}
	log.Info("document extracted", zap.Int("chars", len(text)))

	data := p.parser.Parse(ctx, text)

	claim.ExtractedData = data
	claim.ExtractedText = text
	claim.Status = model.StatusScoring
	claim.UpdatedAt = p.nowFunc()
	if err := p.store.SaveClaim(ctx, claim); err != nil {
		return &Result{Status: "error", ClaimID: claimID}, eris.Wrap(err, "pipeline: save extracted claim")
	}

	p.publishStage(claimID, model.StatusScoring, "scoring",
		fmt.Sprintf("Analyzing claim severity and complexity: %s", claimID))
	scores := p.scorer.Score(data)

	p.publishStage(claimID, model.StatusScoring, "fraud_detection",
		fmt.Sprintf("Running fraud detection: %s", claimID))
	flags := p.detector.Detect(data, text)
	if len(flags) > 0 {
		log.Warn("fraud flags detected", zap.Int("count", len(flags)))
	}

	claim.SeverityScore = &scores.Severity
	claim.ComplexityScore = &scores.Complexity
	claim.FraudFlags = flags
	claim.Status = model.StatusRouting
	claim.UpdatedAt = p.nowFunc()
	if err := p.store.SaveClaim(ctx, claim); err != nil {
		return &Result{Status: "error", ClaimID: claimID}, eris.Wrap(err, "pipeline: save scored claim")
	}

	p.publishStage(claimID, model.StatusRouting, "routing",
		fmt.Sprintf("Finding optimal adjuster: %s", claimID))

	adjusters, err := p.store.ListAdjusters(ctx, true)
	if err != nil {
		return &Result{Status: "error", ClaimID: claimID}, eris.Wrap(err, "pipeline: list adjusters")
	}

	decision := p.decide(ctx, claimID, data, adjusters, scores, flags)

	finalStatus := model.StatusRouting
	if decision.AdjusterID != nil {
		finalStatus = model.StatusInProgress
	}

	processingTime := p.nowFunc().Sub(start).Seconds()
	claim.RoutingDecision = decision
	claim.Status = finalStatus
	claim.ProcessingTimeSeconds = processingTime
	claim.UpdatedAt = p.nowFunc()
	if err := p.store.SaveClaim(ctx, claim); err != nil {
		return &Result{Status: "error", ClaimID: claimID}, eris.Wrap(err, "pipeline: save routed claim")
	}
	if err := p.store.SaveRoutingRecord(ctx, claimID, decision); err != nil {
		log.Warn("failed to record routing history", zap.Error(err))
	}

	if finalStatus == model.StatusInProgress && p.scheduler != nil {
		p.scheduler.Schedule(claimID, data.Amount())
		log.Info("scheduled auto-transition")
	}

	if id := decision.AdjusterID; id != nil && *id != model.AutoSystemID {
		if err := p.store.AdjustWorkload(ctx, *id, 1); err != nil {
			log.Warn("failed to increment workload", zap.String("adjuster_id", *id), zap.Error(err))
		}
	}

	taskCreated := p.createTask(ctx, claim, decision, log)

	assignedTo := "Unassigned"
	if decision.AssignedTo != nil {
		assignedTo = *decision.AssignedTo
	}
	message := fmt.Sprintf("Claim processed: %s -> %s", claimID, assignedTo)
	if taskCreated {
		message += " (Task created)"
	}
	p.bus.Publish(model.Event{
		Type:    model.EventClaimProcessed,
		Message: message,
		ClaimID: claimID,
		Status:  finalStatus,
		Metadata: map[string]any{
			"severity_score":   scores.Severity,
			"complexity_score": scores.Complexity,
			"processing_time":  processingTime,
			"task_created":     taskCreated,
		},
	})

	log.Info("claim processed",
		zap.Float64("processing_time_seconds", processingTime),
		zap.String("final_status", string(finalStatus)))

	return &Result{
		Status:         "success",
		ClaimID:        claimID,
		FinalStatus:    finalStatus,
		Adjuster:       assignedTo,
		ProcessingTime: processingTime,
		TaskCreated:    taskCreated,
	}, nil
}

// decide applies the auto-processing rules first and falls back to the
// routing engine.
func (p *Processor) decide(ctx context.Context, claimID string, data *model.ExtractedData, adjusters []model.Adjuster, scores scoring.Scores, flags []model.FraudFlag) *model.RoutingDecision {
	check := p.policy.Evaluate(data, scores.Severity, scores.Complexity)

	var decision *model.RoutingDecision
	if check.ShouldAutoProcess {
		zap.L().Info("auto-processing claim",
			zap.String("claim_id", claimID),
			zap.String("reason", check.Reason))
		p.publishStage(claimID, model.StatusRouting, "auto_processing",
			fmt.Sprintf("Auto-processing: %s", check.Reason))

		switch check.Decision.Action {
		case "approve":
			decision = p.policy.ApproveDecision(check)
		case "route_to_junior":
			decision = p.policy.RouteToJunior(adjusters)
		}
	}

	if decision == nil {
		decision = p.router.Route(data, adjusters, scores.Severity, scores.Complexity, flags)
	}
	return decision
}

// extractText calls the extractor with retries for transient failures
// (the OCR provider rate-limits under load).
func (p *Processor) extractText(ctx context.Context, filePath string) (string, error) {
	b := p.backoff
	b.Notify = resilience.LogRetries("extract", "extract_text")
	return resilience.RetryVal(ctx, b, func(ctx context.Context) (string, error) {
		return p.extractor.ExtractText(ctx, filePath)
	})
}

// createTask mirrors the assignment onto the task board. Board failures
// are logged and swallowed; a board outage trips the circuit breaker so
// later claims skip the call instead of waiting out timeouts.
func (p *Processor) createTask(ctx context.Context, claim *model.Claim, decision *model.RoutingDecision, log *zap.Logger) bool {
	if p.tasks == nil || decision.AdjusterID == nil {
		return false
	}

	req := tasks.TaskRequest{
		ClaimID:      claim.ClaimID,
		AdjusterID:   *decision.AdjusterID,
		Priority:     decision.Priority,
		AutoApproved: decision.AutoProcessed,
	}
	if decision.AssignedTo != nil {
		req.AdjusterName = *decision.AssignedTo
	}
	if claim.ExtractedData != nil {
		req.ClaimAmount = claim.ExtractedData.ClaimAmount
		req.IncidentType = claim.ExtractedData.IncidentType
	}

	taskID, err := resilience.Call(ctx, p.boardCB, func(ctx context.Context) (string, error) {
		return p.tasks.CreateClaimTask(ctx, req)
	})
	if err != nil {
		log.Warn("failed to create board task", zap.Error(err))
		return false
	}

	claim.TaskID = taskID
	claim.UpdatedAt = p.nowFunc()
	if err := p.store.SaveClaim(ctx, claim); err != nil {
		log.Warn("failed to save task id", zap.Error(err))
	}
	log.Info("board task created", zap.String("task_id", taskID))
	return true
}

func (p *Processor) publishStage(claimID string, status model.ClaimStatus, stage, message string) {
	p.bus.Publish(model.Event{
		Type:    model.EventClaimStatusUpdate,
		Message: message,
		ClaimID: claimID,
		Status:  status,
		Stage:   stage,
	})
}

const claimIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newClaimID builds a claim identifier from the wall clock plus a short
// random suffix to disambiguate same-second uploads.
func newClaimID(now time.Time) string {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = claimIDCharset[rand.IntN(len(claimIDCharset))]
	}
	return fmt.Sprintf("CLM-%s-%s", now.Format("20060102-150405"), suffix)
}
