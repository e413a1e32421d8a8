// Package routing matches claims to adjusters. The match weighs
// specialization, experience tier against claim severity, and current
// workload; fraud signal escalates straight to the special
// investigation unit.
package routing

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/model"
)

const (
	siuConfidenceThreshold = 0.7
	siuFlagCountThreshold  = 3
)

// Engine routes claims to the best matching adjuster.
type Engine struct{}

// NewEngine creates a routing Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Route selects an adjuster for the claim. A decision with a nil
// AdjusterID means nobody qualified; that is a valid outcome the caller
// must handle, not an error. Route itself never fails: an internal
// error yields an unassigned medium-priority decision.
func (e *Engine) Route(data *model.ExtractedData, adjusters []model.Adjuster, severity, complexity float64, flags []model.FraudFlag) (decision *model.RoutingDecision) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("routing: route error", zap.Any("panic", r))
			decision = &model.RoutingDecision{
				Priority:               model.PriorityMedium,
				Reason:                 fmt.Sprintf("Routing error: %v", r),
				InvestigationChecklist: []string{},
			}
		}
	}()

	if data == nil {
		data = &model.ExtractedData{}
	}

	// Fraud signal trumps normal matching. If no SIU adjuster exists
	// the claim falls through to the regular pool.
	if shouldRouteToSIU(flags) {
		if siu := findSIUAdjuster(adjusters); siu != nil {
			zap.L().Info("routing: escalating to SIU", zap.String("adjuster_id", siu.AdjusterID), zap.Int("flags", len(flags)))
			return e.decision(data, siu, model.PriorityUrgent,
				"Fraud indicators detected - routing to Special Investigation Unit", flags)
		}
	}

	priority := calculatePriority(severity, complexity)

	qualified := filterQualified(adjusters, data)
	if len(qualified) == 0 {
		zap.L().Warn("routing: no qualified adjusters available")
		return &model.RoutingDecision{
			Priority:               priority,
			Reason:                 "No qualified adjusters available at this time",
			InvestigationChecklist: []string{},
		}
	}

	best := selectBest(qualified, data, severity, complexity)
	reason := routingReason(data, best, severity, complexity)
	return e.decision(data, best, priority, reason, flags)
}

func (e *Engine) decision(data *model.ExtractedData, adj *model.Adjuster, priority model.Priority, reason string, flags []model.FraudFlag) *model.RoutingDecision {
	hours := EstimateWorkloadHours(data, flags)
	return &model.RoutingDecision{
		AssignedTo:             &adj.Name,
		AdjusterID:             &adj.AdjusterID,
		Priority:               priority,
		Reason:                 reason,
		EstimatedWorkloadHours: &hours,
		InvestigationChecklist: BuildChecklist(data, flags),
	}
}

func shouldRouteToSIU(flags []model.FraudFlag) bool {
	for _, f := range flags {
		if f.Confidence > siuConfidenceThreshold {
			return true
		}
	}
	return len(flags) >= siuFlagCountThreshold
}

func findSIUAdjuster(adjusters []model.Adjuster) *model.Adjuster {
	for i := range adjusters {
		if adjusters[i].HasSpecialization(model.SpecializationSIU) {
			return &adjusters[i]
		}
	}
	return nil
}

func calculatePriority(severity, complexity float64) model.Priority {
	combined := (severity + complexity) / 2
	switch {
	case combined >= 80:
		return model.PriorityUrgent
	case combined >= 60:
		return model.PriorityHigh
	case combined >= 40:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

func filterQualified(adjusters []model.Adjuster, data *model.ExtractedData) []*model.Adjuster {
	incidentType := strings.ToLower(string(data.IncidentType))
	amount := data.Amount()

	var qualified []*model.Adjuster
	for i := range adjusters {
		adj := &adjusters[i]
		if !adj.Available || adj.AtCapacity() {
			continue
		}
		if !adj.HasSpecialization(incidentType) && !adj.HasSpecialization("liability") {
			continue
		}
		// Unknown amount reads as 0 and always passes.
		if adj.MaxClaimAmount > 0 && amount > adj.MaxClaimAmount {
			continue
		}
		qualified = append(qualified, adj)
	}
	return qualified
}

// selectBest ranks qualified adjusters on a 100-point scale: up to 40
// for specialization, 30 for experience fit, 30 for spare capacity.
func selectBest(qualified []*model.Adjuster, data *model.ExtractedData, severity, complexity float64) *model.Adjuster {
	incidentType := strings.ToLower(string(data.IncidentType))
	combined := (severity + complexity) / 2

	type scored struct {
		score float64
		adj   *model.Adjuster
	}
	ranked := make([]scored, 0, len(qualified))

	for _, adj := range qualified {
		var score float64

		if adj.HasSpecialization(incidentType) {
			score += 40
		} else if adj.HasSpecialization("liability") {
			score += 20
		}

		level := adj.ExperienceLevel
		switch {
		case combined >= 70 && (level == model.ExperienceSenior || level == model.ExperienceExpert):
			score += 30
		case combined >= 50 && (level == model.ExperienceMid || level == model.ExperienceSenior || level == model.ExperienceExpert):
			score += 25
		case combined < 50 && (level == model.ExperienceJunior || level == model.ExperienceMid):
			score += 20
		}

		if adj.MaxConcurrentClaims > 0 {
			ratio := float64(adj.CurrentWorkload) / float64(adj.MaxConcurrentClaims)
			score += 30 * (1 - ratio)
		}

		ranked = append(ranked, scored{score, adj})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	return ranked[0].adj
}

func routingReason(data *model.ExtractedData, adj *model.Adjuster, severity, complexity float64) string {
	var reasons []string

	incidentType := string(data.IncidentType)
	if incidentType == "" {
		incidentType = "unknown"
	}
	if adj.HasSpecialization(strings.ToLower(incidentType)) {
		reasons = append(reasons, fmt.Sprintf("Specialist in %s claims", incidentType))
	}

	level := string(adj.ExperienceLevel)
	if level == "" {
		level = string(model.ExperienceJunior)
	}
	combined := (severity + complexity) / 2
	if combined >= 70 {
		reasons = append(reasons, fmt.Sprintf("%s adjuster for high-complexity case", capitalize(level)))
	} else {
		reasons = append(reasons, fmt.Sprintf("Appropriate experience level (%s)", level))
	}

	if adj.CurrentWorkload < 5 {
		reasons = append(reasons, "Low current workload")
	} else if adj.CurrentWorkload < 10 {
		reasons = append(reasons, "Available capacity")
	}

	return strings.Join(reasons, " | ")
}

// BuildChecklist assembles the investigation checklist: standard items,
// incident-type items, injury items, one line per fraud flag, and legal
// coordination when an attorney is involved.
func BuildChecklist(data *model.ExtractedData, flags []model.FraudFlag) []string {
	checklist := []string{
		"Review all submitted documentation",
		"Verify policy coverage and limits",
		"Contact insured for statement",
	}

	switch data.IncidentType {
	case model.IncidentAuto:
		checklist = append(checklist,
			"Obtain police report",
			"Inspect vehicle damage",
			"Review traffic camera footage if available")
	case model.IncidentProperty:
		checklist = append(checklist,
			"Schedule property inspection",
			"Review photos and damage assessment",
			"Verify property ownership")
	case model.IncidentCommercial:
		checklist = append(checklist,
			"Review business interruption documentation",
			"Analyze financial records",
			"Assess subrogation opportunities")
	}

	if len(data.Injuries) > 0 {
		checklist = append(checklist,
			"Request medical records and bills",
			"Assess medical treatment necessity")
		if len(data.Injuries) > 1 {
			checklist = append(checklist, "Coordinate with multiple medical providers")
		}
	}

	if len(flags) > 0 {
		checklist = append(checklist, "Conduct detailed fraud investigation")
		for _, f := range flags {
			evidence := f.Evidence
			if evidence == "" {
				evidence = "fraud indicator"
			}
			checklist = append(checklist, "Investigate: "+evidence)
		}
	}

	if data.AttorneyInvolved {
		checklist = append(checklist,
			"Coordinate with legal department",
			"Establish attorney communication protocol")
	}

	return checklist
}

// EstimateWorkloadHours predicts adjuster hours: 5 base, 2 per injury,
// 1.5 per party beyond two, 3 per fraud flag, 5 for attorney
// involvement. Rounded to one decimal.
func EstimateWorkloadHours(data *model.ExtractedData, flags []model.FraudFlag) float64 {
	hours := 5.0
	hours += float64(len(data.Injuries)) * 2.0
	if len(data.Parties) > 2 {
		hours += float64(len(data.Parties)-2) * 1.5
	}
	hours += float64(len(flags)) * 3.0
	if data.AttorneyInvolved {
		hours += 5.0
	}
	return math.Round(hours*10) / 10
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
