// Package autoproc decides whether a claim can bypass human routing.
// Small, injury-free, low-score claims are either approved outright by
// the synthetic system actor or handed to the least-loaded junior
// adjuster. Everything else falls through to the full routing engine.
package autoproc

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/model"
)

const (
	autoApproveThreshold = 500
	juniorRouteThreshold = 2000
)

// Processing types attached to auto-decisions. They select the
// investigation checklist.
const (
	ProcessingGlassReplacement = "glass_replacement"
	ProcessingMinorRepair      = "minor_repair"
	ProcessingSimpleClaim      = "simple_claim"
	ProcessingJuniorReview     = "junior_review"
)

var glassDamageKeywords = []string{"glass", "windshield", "window", "chip", "crack"}

var minorDamageKeywords = []string{
	"scratch", "dent", "paint", "bumper", "small", "minor",
	"cosmetic", "chip", "ding",
}

// Decision is the outcome of a matched auto-processing rule. Status is
// the decision label ("auto_approved" or "auto_routed"), not a claim
// lifecycle status.
type Decision struct {
	Status          string
	Priority        model.Priority
	Action          string
	EstimatedPayout float64
	ProcessingType  string
}

// Result reports whether a claim qualifies for auto-processing. Decision
// is nil whenever ShouldAutoProcess is false.
type Result struct {
	ShouldAutoProcess bool
	Reason            string
	Decision          *Decision
}

// Policy evaluates claims against the auto-processing rules.
type Policy struct{}

// NewPolicy creates an auto-processing Policy.
func NewPolicy() *Policy {
	return &Policy{}
}

// Evaluate checks the rules in priority order; the first match wins. It
// never fails: on an internal error the claim falls back to full review.
func (p *Policy) Evaluate(data *model.ExtractedData, severity, complexity float64) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("autoproc: evaluation error", zap.Any("panic", r))
			res = Result{Reason: fmt.Sprintf("Error in auto-processing: %v", r)}
		}
	}()

	if data == nil {
		data = &model.ExtractedData{}
	}

	amount := data.Amount()
	description := strings.ToLower(data.Description)
	noInjuries := len(data.Injuries) == 0

	// Rule 1: injury-free claims at or under the approval threshold.
	// The score gate dominates: a cheap but complex claim still goes to
	// a human, even before keyword matching.
	if noInjuries && amount > 0 && amount <= autoApproveThreshold {
		if severity > 15 || complexity > 30 {
			zap.L().Info("autoproc: too complex for auto-approval",
				zap.Float64("severity", severity),
				zap.Float64("complexity", complexity))
			return Result{Reason: "Requires adjuster review due to complexity"}
		}

		if containsAny(description, glassDamageKeywords) {
			return Result{
				ShouldAutoProcess: true,
				Reason:            "Auto-approved: Simple glass damage under $500 with no injuries",
				Decision: &Decision{
					Status:          "auto_approved",
					Priority:        model.PriorityLow,
					Action:          "approve",
					EstimatedPayout: amount,
					ProcessingType:  ProcessingGlassReplacement,
				},
			}
		}

		if containsAny(description, minorDamageKeywords) {
			return Result{
				ShouldAutoProcess: true,
				Reason:            fmt.Sprintf("Auto-approved: Simple minor damage ($%.0f) with no injuries", amount),
				Decision: &Decision{
					Status:          "auto_approved",
					Priority:        model.PriorityLow,
					Action:          "approve",
					EstimatedPayout: amount,
					ProcessingType:  ProcessingMinorRepair,
				},
			}
		}
	}

	// Rule 2: very low scores auto-approve regardless of amount.
	if noInjuries && severity <= 15 && complexity <= 25 {
		payout := amount
		if payout <= 0 {
			payout = autoApproveThreshold
		}
		return Result{
			ShouldAutoProcess: true,
			Reason:            "Auto-approved: Very low severity and complexity with no injuries",
			Decision: &Decision{
				Status:          "auto_approved",
				Priority:        model.PriorityLow,
				Action:          "approve",
				EstimatedPayout: payout,
				ProcessingType:  ProcessingSimpleClaim,
			},
		}
	}

	// Rule 3: simple mid-value claims go to a junior adjuster.
	if noInjuries && amount > autoApproveThreshold && amount <= juniorRouteThreshold &&
		severity <= 25 && complexity <= 30 {
		return Result{
			ShouldAutoProcess: true,
			Reason:            "Auto-routed to junior adjuster: Simple claim under $2000",
			Decision: &Decision{
				Status:          "auto_routed",
				Priority:        model.PriorityLow,
				Action:          "route_to_junior",
				EstimatedPayout: amount,
				ProcessingType:  ProcessingJuniorReview,
			},
		}
	}

	return Result{Reason: "Requires full adjuster review"}
}

// ApproveDecision builds the routing decision for an auto-approved
// claim, assigned to the synthetic system actor.
func (p *Policy) ApproveDecision(res Result) *model.RoutingDecision {
	assignedTo := model.AutoSystemName
	adjusterID := model.AutoSystemID
	hours := 0.5
	payout := 0.0
	processingType := "auto_approved"

	// res.Reason explains the rule match for logs and events; the
	// persisted decision always carries the generic approval reason.
	reason := "Auto-approved based on rules"

	if res.Decision != nil {
		payout = res.Decision.EstimatedPayout
		processingType = res.Decision.ProcessingType
	}

	return &model.RoutingDecision{
		AssignedTo:             &assignedTo,
		AdjusterID:             &adjusterID,
		Priority:               model.PriorityLow,
		Reason:                 reason,
		EstimatedWorkloadHours: &hours,
		InvestigationChecklist: approvalChecklist(processingType),
		AutoProcessed:          true,
		EstimatedPayout:        &payout,
	}
}

func approvalChecklist(processingType string) []string {
	switch processingType {
	case ProcessingGlassReplacement:
		return []string{
			"Verify glass damage photos",
			"Confirm no additional damage",
			"Approve glass shop estimate",
			"Schedule repair appointment",
		}
	case ProcessingMinorRepair:
		return []string{
			"Review damage photos",
			"Verify repair estimate",
			"Approve payment under $500",
			"Confirm no hidden damage",
		}
	default:
		return []string{
			"Quick review of documentation",
			"Verify claim amount",
			"Approve payment",
		}
	}
}

// RouteToJunior assigns the claim to the least-loaded available junior
// or entry adjuster. Returns nil when none is available, in which case
// the claim falls back to full routing.
func (p *Policy) RouteToJunior(adjusters []model.Adjuster) *model.RoutingDecision {
	var best *model.Adjuster
	for i := range adjusters {
		adj := &adjusters[i]
		level := model.ExperienceLevel(strings.ToLower(string(adj.ExperienceLevel)))
		if level != model.ExperienceJunior && level != model.ExperienceEntry {
			continue
		}
		if !adj.Available || adj.AtCapacity() {
			continue
		}
		if best == nil || adj.CurrentWorkload < best.CurrentWorkload {
			best = adj
		}
	}

	if best == nil {
		zap.L().Warn("autoproc: no junior adjusters available for auto-routing")
		return nil
	}

	hours := 2.0
	return &model.RoutingDecision{
		AssignedTo:             &best.Name,
		AdjusterID:             &best.AdjusterID,
		Priority:               model.PriorityLow,
		Reason:                 "Auto-routed to junior adjuster for simple claim review",
		EstimatedWorkloadHours: &hours,
		InvestigationChecklist: []string{
			"Review claim documentation",
			"Verify damage and estimate",
			"Contact insured if needed",
			"Approve or escalate to senior adjuster",
		},
		AutoRouted: true,
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
