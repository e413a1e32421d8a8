// Package scoring computes severity and complexity scores for claims.
// Both scores are 0-100 keyword-and-threshold heuristics over the
// extracted claim record; missing data is scored, never rejected.
package scoring

import (
	"strings"

	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/model"
)

// Scores holds the two triage scores for a claim.
type Scores struct {
	Severity   float64 `json:"severity_score"`
	Complexity float64 `json:"complexity_score"`
}

// Scorer scores claims on severity and complexity.
type Scorer struct {
	cfg Config
}

// New creates a Scorer with the given tables.
func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes severity and complexity for a claim record. It never
// fails: an internal panic falls back to midpoint 50/50 scores so triage
// can continue on degraded signal.
func (s *Scorer) Score(data *model.ExtractedData) (scores Scores) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("scoring: internal error, using midpoint fallback", zap.Any("panic", r))
			scores = Scores{Severity: 50, Complexity: 50}
		}
	}()

	if data == nil {
		data = &model.ExtractedData{}
	}

	scores = Scores{
		Severity:   s.severity(data),
		Complexity: s.complexity(data),
	}

	zap.L().Info("scoring: claim scored",
		zap.Float64("severity", scores.Severity),
		zap.Float64("complexity", scores.Complexity),
	)
	return scores
}

// severity is the sum of financial exposure (40), injury severity (40)
// and property-damage extent (20), capped at 100.
func (s *Scorer) severity(data *model.ExtractedData) float64 {
	score := 0.0
	description := strings.ToLower(data.Description)

	// Financial exposure. When no amount was extracted, infer a proxy
	// amount from damage keywords in the description.
	amount := data.Amount()
	if amount == 0 {
		switch {
		case containsAny(description, s.cfg.GlassAmountKeywords...):
			amount = s.cfg.GlassProxyAmount
		case containsAny(description, s.cfg.MinorAmountKeywords...):
			amount = s.cfg.MinorProxyAmount
		case containsAny(description, s.cfg.MajorAmountKeywords...):
			amount = s.cfg.MajorProxyAmount
		default:
			amount = s.cfg.DefaultProxyAmount
		}
	}
	score += s.amountPoints(amount)

	// Injuries: worst listed injury wins; with none listed, an injury
	// mention in the description earns partial credit.
	if len(data.Injuries) == 0 {
		if containsAny(description, s.cfg.InjuryKeywords...) {
			score += s.cfg.InjuryMentionPts
		}
	} else {
		score += s.cfg.InjurySeverityPts[maxInjuryRank(data.Injuries)]
	}

	// Property damage extent from description keywords.
	score += s.propertyDamagePoints(description)

	return clamp(score)
}

func (s *Scorer) amountPoints(amount float64) float64 {
	for _, b := range s.cfg.AmountBuckets {
		if amount < b.Below {
			return b.Points
		}
	}
	return s.cfg.MaxAmountPts
}

func (s *Scorer) propertyDamagePoints(description string) float64 {
	for _, tier := range s.cfg.PropertyDamageTiers {
		if containsAny(description, tier.Keywords...) {
			return tier.Points
		}
	}
	return s.cfg.PropertyDamageDefault
}

// complexity is the sum of party count (20), fault clarity (25),
// attorney involvement (20), incident-type tier (20) and a
// documentation-completeness penalty (15), capped at 100. Less complete
// documentation raises complexity: missing data is investigative burden.
func (s *Scorer) complexity(data *model.ExtractedData) float64 {
	score := 0.0
	description := strings.ToLower(data.Description)

	// Number of parties.
	switch n := len(data.Parties); {
	case n == 0:
		if containsAny(description, s.cfg.MultiPartyKeywords...) {
			score += 15
		} else {
			score += 5
		}
	case n <= 2:
		score += 5
	case n <= 4:
		score += 10
	default:
		score += 20
	}

	// Fault determination clarity. An explicit but unmapped value
	// ("unknown", "pending") adds nothing; only the empty field falls
	// back to keyword inference.
	switch fault := strings.ToLower(data.FaultDetermination); fault {
	case "":
		switch {
		case containsAny(description, s.cfg.DisputedFaultKeywords...):
			score += 20
		case containsAny(description, s.cfg.ClearFaultKeywords...):
			score += 5
		default:
			score += 10
		}
	case "clear", "obvious", "no dispute":
		score += 5
	case "disputed", "unclear", "contested":
		score += 15
	case "multi-party", "shared liability":
		score += 25
	}

	// Attorney involvement, explicit or inferred from the description.
	if data.AttorneyInvolved || containsAny(description, s.cfg.AttorneyKeywords...) {
		score += s.cfg.AttorneyPts
	}

	// Incident-type complexity tier.
	score += s.incidentTypePoints(data.IncidentType, description)

	// Documentation completeness: up to 15 points for missing fields.
	score += s.cfg.CompletenessPenaltyMax * (1 - completeness(data))

	return clamp(score)
}

func (s *Scorer) incidentTypePoints(incidentType model.IncidentType, description string) float64 {
	switch strings.ToLower(string(incidentType)) {
	case "commercial", "business interruption", "liability":
		return 20
	case "multi-vehicle", "property damage", "property":
		return 15
	case "auto", "vehicle":
		return 10
	case "glass", "windshield":
		return 3
	}
	// Unknown type: infer from the description.
	switch {
	case containsAny(description, s.cfg.GlassTypeKeywords...):
		return 3
	case containsAny(description, s.cfg.CommercialTypeKeywords...):
		return 20
	default:
		return 8
	}
}

// completeness returns the fraction of core documentation fields present.
func completeness(data *model.ExtractedData) float64 {
	present := 0
	if data.ClaimAmount != nil && *data.ClaimAmount != 0 {
		present++
	}
	if data.IncidentDate != nil {
		present++
	}
	if len(data.Parties) > 0 {
		present++
	}
	// The parser can emit an empty location object; that is absent.
	if data.Location != nil && *data.Location != (model.Location{}) {
		present++
	}
	if data.Description != "" {
		present++
	}
	if data.PolicyNumber != nil && *data.PolicyNumber != "" {
		present++
	}
	return float64(present) / 6.0
}

// maxInjuryRank returns the rank of the most severe injury in the list.
func maxInjuryRank(injuries []model.Injury) int {
	worst := 1
	for _, inj := range injuries {
		if r := model.InjurySeverityRank(inj.Severity); r > worst {
			worst = r
		}
	}
	return worst
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// containsAny checks if s contains any of the given substrings.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
