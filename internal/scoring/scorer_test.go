package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harborview/claims-triage/internal/model"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrTime(v time.Time) *time.Time { return &v }

func newTestScorer() *Scorer {
	return New(DefaultConfig())
}

func TestAmountPoints(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name   string
		amount float64
		want   float64
	}{
		{"very minor", 300, 5},
		{"minor", 1500, 10},
		{"moderate", 5000, 20},
		{"significant", 25000, 30},
		{"large", 75000, 35},
		{"major", 250000, 40},
		{"boundary 500", 500, 10},
		{"boundary 100k", 100000, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.amountPoints(tt.amount), 0.01)
		})
	}
}

func TestSeverityProxyAmountInference(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name        string
		description string
		// severity = amount pts + injury pts (0) + property damage pts
		want float64
	}{
		// glass proxy 300 -> 5 pts, glass damage tier -> 3 pts
		{"glass keywords", "cracked windshield needs replacement", 5 + 3},
		// minor proxy 1500 -> 10 pts, minor damage tier -> 5 pts
		{"minor keywords", "small scratch on the door", 10 + 5},
		// major proxy 15000 -> 30 pts, total-loss tier -> 20 pts
		{"total loss keywords", "vehicle is a total loss", 30 + 20},
		// default proxy 5000 -> 20 pts, default damage -> 8 pts
		{"no keywords", "something happened on the highway", 20 + 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.severity(&model.ExtractedData{Description: tt.description})
			assert.InDelta(t, tt.want, got, 0.01)
		})
	}
}

func TestSeverityInjuries(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name     string
		injuries []model.Injury
		want     float64 // injury points only
	}{
		{"worst of list wins", []model.Injury{
			{Person: "A", Severity: "minor"},
			{Person: "B", Severity: "serious"},
		}, 30},
		{"fatal maps like critical", []model.Injury{{Person: "A", Severity: "fatal"}}, 40},
		{"unknown severity ranks minor", []model.Injury{{Person: "A", Severity: "weird"}}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := &model.ExtractedData{
				ClaimAmount: ptrFloat64(300), // 5 pts
				Description: "highway collision", // default damage tier 8 pts
				Injuries:    tt.injuries,
			}
			got := s.severity(data)
			assert.InDelta(t, 5+8+tt.want, got, 0.01)
		})
	}
}

func TestSeverityInjuryMentionPartialCredit(t *testing.T) {
	s := newTestScorer()

	data := &model.ExtractedData{
		ClaimAmount: ptrFloat64(300),
		Description: "driver was injured at the scene",
	}
	// 5 (amount) + 15 (injury mention) + 8 (default damage)
	assert.InDelta(t, 28, s.severity(data), 0.01)
}

func TestSeverityCappedAt100(t *testing.T) {
	s := newTestScorer()

	data := &model.ExtractedData{
		ClaimAmount: ptrFloat64(500000),
		Description: "catastrophic total loss, destroyed",
		Injuries:    []model.Injury{{Person: "A", Severity: "fatal"}},
	}
	got := s.severity(data)
	assert.LessOrEqual(t, got, 100.0)
	assert.InDelta(t, 100, got, 0.01) // 40+40+20
}

func TestComplexityParties(t *testing.T) {
	s := newTestScorer()

	manyParties := make([]model.Party, 5)
	for i := range manyParties {
		manyParties[i] = model.Party{Name: "p", Role: "third_party"}
	}

	tests := []struct {
		name    string
		parties []model.Party
		desc    string
		wantPts float64
	}{
		{"none plain", nil, "rear ended at a light", 5},
		{"none multi keyword", nil, "multiple vehicles involved", 15},
		{"two parties", []model.Party{{Name: "a"}, {Name: "b"}}, "rear ended", 5},
		{"four parties", []model.Party{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}, "rear ended", 10},
		{"five parties", manyParties, "rear ended", 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			full := s.complexity(&model.ExtractedData{Description: tt.desc, Parties: tt.parties})
			// Fix the other factors: no fault (10 for these descs), no
			// attorney (0), default type (8), 2/6 completeness when
			// parties present else 1/6.
			base := 10.0 + 8.0
			completenessPts := 15 * (1 - 1.0/6.0)
			if len(tt.parties) > 0 {
				completenessPts = 15 * (1 - 2.0/6.0)
			}
			assert.InDelta(t, tt.wantPts+base+completenessPts, full, 0.01)
		})
	}
}

func TestComplexityFaultDetermination(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name  string
		fault string
		desc  string
		want  float64
	}{
		{"explicit clear", "clear", "collision", 5},
		{"explicit disputed", "disputed", "collision", 15},
		{"explicit multi-party", "multi-party", "collision", 25},
		{"explicit unknown", "unknown", "collision", 0},
		{"explicit unrecognized", "pending investigation", "collision", 0},
		{"inferred disputed", "", "liability is contested by both drivers", 20},
		{"inferred clear", "", "a clear rear-end collision", 5},
		{"no signal", "", "collision", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.complexity(&model.ExtractedData{Description: tt.desc, FaultDetermination: tt.fault})
			// party 5 + attorney 0 + type 8 + completeness 12.5
			base := 5.0 + 8.0 + 15*(1-1.0/6.0)
			assert.InDelta(t, base+tt.want, got, 0.01)
		})
	}
}

func TestComplexityExplicitUnknownFaultAddsNothing(t *testing.T) {
	s := newTestScorer()

	explicit := s.complexity(&model.ExtractedData{Description: "collision", FaultDetermination: "unknown"})
	inferred := s.complexity(&model.ExtractedData{Description: "collision"})

	// party 5 + fault 0 + type 8 + completeness 12.5
	assert.InDelta(t, 25.5, explicit, 0.01)
	// Only an empty field falls back to keyword inference (+10 here).
	assert.InDelta(t, explicit+10, inferred, 0.01)
}

func TestComplexityAttorney(t *testing.T) {
	s := newTestScorer()

	explicit := s.complexity(&model.ExtractedData{Description: "collision", AttorneyInvolved: true})
	inferred := s.complexity(&model.ExtractedData{Description: "my lawyer will be in touch about the collision"})
	none := s.complexity(&model.ExtractedData{Description: "collision"})

	assert.InDelta(t, none+20, explicit, 0.01)
	assert.InDelta(t, none+20, inferred, 0.01)
}

func TestComplexityIncidentType(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name         string
		incidentType model.IncidentType
		desc         string
		want         float64
	}{
		{"commercial", model.IncidentCommercial, "x", 20},
		{"liability", model.IncidentLiability, "x", 20},
		{"property", model.IncidentProperty, "x", 15},
		{"auto", model.IncidentAuto, "x", 10},
		{"inferred glass", "", "windshield chip", 3},
		{"inferred commercial", "", "business premises flooded", 20},
		{"unknown default", "", "x", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.incidentTypePoints(tt.incidentType, tt.desc)
			assert.InDelta(t, tt.want, got, 0.01)
		})
	}
}

func TestCompleteness(t *testing.T) {
	full := &model.ExtractedData{
		ClaimAmount:  ptrFloat64(1000),
		IncidentDate: ptrTime(time.Now()),
		Parties:      []model.Party{{Name: "a"}},
		Location:     &model.Location{City: "Oakland", State: "CA"},
		Description:  "collision",
		PolicyNumber: ptrString("POL-123"),
	}
	assert.InDelta(t, 1.0, completeness(full), 0.01)
	assert.InDelta(t, 0.0, completeness(&model.ExtractedData{}), 0.01)

	// An empty location object from the parser does not count.
	assert.InDelta(t, 1.0/6.0, completeness(&model.ExtractedData{Location: &model.Location{}, Description: "collision"}), 0.01)
	assert.InDelta(t, 2.0/6.0, completeness(&model.ExtractedData{Location: &model.Location{City: "Reno"}, Description: "collision"}), 0.01)

	// Missing documentation raises complexity by up to 15 points. The
	// sparse record differs from the full one only in documentation
	// coverage (5/6 missing), so the gap is exactly 15 * 5/6.
	s := newTestScorer()
	sparse := s.complexity(&model.ExtractedData{Description: "collision"})
	complete := s.complexity(full)
	assert.InDelta(t, 15*(5.0/6.0), sparse-complete, 0.01)
}

func TestScoreNilDataUsesDefaults(t *testing.T) {
	s := newTestScorer()
	got := s.Score(nil)
	assert.GreaterOrEqual(t, got.Severity, 0.0)
	assert.LessOrEqual(t, got.Severity, 100.0)
	assert.GreaterOrEqual(t, got.Complexity, 0.0)
	assert.LessOrEqual(t, got.Complexity, 100.0)
}

func TestScoreRangeProperty(t *testing.T) {
	s := newTestScorer()

	records := []*model.ExtractedData{
		{},
		{ClaimAmount: ptrFloat64(1e9), Description: "catastrophic destroyed total loss", AttorneyInvolved: true,
			Injuries: []model.Injury{{Severity: "fatal"}}, IncidentType: model.IncidentCommercial,
			FaultDetermination: "multi-party"},
		{ClaimAmount: ptrFloat64(50), Description: "windshield chip"},
	}

	for _, data := range records {
		got := s.Score(data)
		assert.GreaterOrEqual(t, got.Severity, 0.0)
		assert.LessOrEqual(t, got.Severity, 100.0)
		assert.GreaterOrEqual(t, got.Complexity, 0.0)
		assert.LessOrEqual(t, got.Complexity, 100.0)
	}
}

func TestGlassClaimScoresLowEnoughForAutoApproval(t *testing.T) {
	// A $300 windshield chip with no injuries must land within the
	// auto-approval gates (severity <= 15, complexity <= 30).
	s := newTestScorer()
	data := &model.ExtractedData{
		ClaimAmount:  ptrFloat64(300),
		IncidentType: model.IncidentAuto,
		Description:  "small windshield chip",
		PolicyNumber: ptrString("POL-9"),
		IncidentDate: ptrTime(time.Now()),
		Parties:      []model.Party{{Name: "driver", Role: "insured"}},
		Location:     &model.Location{City: "Reno", State: "NV"},
	}
	got := s.Score(data)
	assert.LessOrEqual(t, got.Severity, 15.0)
	assert.LessOrEqual(t, got.Complexity, 30.0)
}
