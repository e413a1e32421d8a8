package fraud

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/claims-triage/internal/model"
)

func ptrTime(t time.Time) *time.Time { return &t }

func flagsOfType(flags []model.FraudFlag, typ string) []model.FraudFlag {
	var out []model.FraudFlag
	for _, f := range flags {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func TestLateReporting(t *testing.T) {
	incident := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		reportAfter  int
		wantFlag     bool
		wantSeverity model.FlagSeverity
		wantConf     float64
	}{
		{"same day", 0, false, "", 0},
		{"at threshold", 14, false, "", 0},
		{"just over threshold", 15, true, model.FlagMedium, 0.32},
		{"three weeks", 21, true, model.FlagMedium, 0.44},
		{"over a month", 31, true, model.FlagHigh, 0.64},
		{"confidence capped", 60, true, model.FlagHigh, 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := &model.ExtractedData{
				IncidentDate: ptrTime(incident),
				ReportDate:   ptrTime(incident.AddDate(0, 0, tt.reportAfter)),
			}
			flag := checkLateReporting(data)
			if !tt.wantFlag {
				assert.Nil(t, flag)
				return
			}
			require.NotNil(t, flag)
			assert.Equal(t, "late_reporting", flag.Type)
			assert.Equal(t, tt.wantSeverity, flag.Severity)
			assert.InDelta(t, tt.wantConf, flag.Confidence, 0.001)
		})
	}
}

func TestLateReportingMissingDates(t *testing.T) {
	now := time.Now()
	assert.Nil(t, checkLateReporting(&model.ExtractedData{}))
	assert.Nil(t, checkLateReporting(&model.ExtractedData{IncidentDate: ptrTime(now)}))
	assert.Nil(t, checkLateReporting(&model.ExtractedData{ReportDate: ptrTime(now)}))
}

func TestInconsistentStory(t *testing.T) {
	d := NewDetector()

	data := &model.ExtractedData{Description: "I was stopped at the light when I was hit"}
	source := "The other driver states the claimant vehicle was moving at impact."

	flags := d.Detect(data, source)
	found := flagsOfType(flags, "inconsistent_story")
	require.Len(t, found, 1)
	assert.Equal(t, 0.6, found[0].Confidence)
	assert.Equal(t, model.FlagMedium, found[0].Severity)
	assert.Contains(t, found[0].Evidence, "'stopped' vs 'moving'")
}

func TestInconsistentStoryMultiplePairs(t *testing.T) {
	data := &model.ExtractedData{Description: "I was stopped and sober, clear visibility the whole time"}
	source := "vehicle was moving, driver had been drinking, claims he couldn't see"

	flags := checkInconsistencies(data, source)
	assert.Len(t, flags, 3)
}

func TestInconsistentStoryNoDescriptionMatch(t *testing.T) {
	// The contradicting word must come from the description itself.
	data := &model.ExtractedData{Description: "rear-ended on the highway"}
	flags := checkInconsistencies(data, "the car was moving while drinking")
	assert.Empty(t, flags)
}

func TestSuspiciousPatterns(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   int
	}{
		{"clean text", "standard collision claim with two vehicles", 0},
		{"pre-existing", "claimant mentioned a pre-existing back condition", 1},
		{"previous accident", "this is similar to a previous auto accident", 2},
		{"witness unavailable", "the only witness is unavailable for comment", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := checkSuspiciousPatterns(tt.source)
			assert.Len(t, flags, tt.want)
			for _, f := range flags {
				assert.Equal(t, "suspicious_pattern", f.Type)
				assert.Equal(t, 0.5, f.Confidence)
				assert.Equal(t, model.FlagLow, f.Severity)
			}
		})
	}
}

func TestSoftTissueOnly(t *testing.T) {
	soft := []model.Injury{
		{Description: "whiplash to neck", Severity: "minor"},
		{Description: "lower back strain", Severity: "minor"},
	}
	flags := checkInjuryPatterns(&model.ExtractedData{Injuries: soft})
	require.Len(t, flags, 1)
	assert.Equal(t, "soft_tissue_only", flags[0].Type)
	assert.Equal(t, 0.4, flags[0].Confidence)

	// One verifiable injury clears the flag.
	mixed := append(soft, model.Injury{Description: "fractured wrist", Severity: "moderate"})
	assert.Empty(t, checkInjuryPatterns(&model.ExtractedData{Injuries: mixed}))

	// No injuries at all is not flagged.
	assert.Empty(t, checkInjuryPatterns(&model.ExtractedData{}))
}

func TestExcessiveInjuries(t *testing.T) {
	injuries := make([]model.Injury, 6)
	for i := range injuries {
		injuries[i] = model.Injury{Description: "fracture", Severity: "moderate"}
	}
	flags := checkInjuryPatterns(&model.ExtractedData{Injuries: injuries})
	require.Len(t, flags, 1)
	assert.Equal(t, "excessive_injuries", flags[0].Type)
	assert.Equal(t, model.FlagMedium, flags[0].Severity)
	assert.Contains(t, flags[0].Evidence, "6 injuries")

	five := injuries[:5]
	assert.Empty(t, checkInjuryPatterns(&model.ExtractedData{Injuries: five}))
}

func TestDetectNilData(t *testing.T) {
	d := NewDetector()
	flags := d.Detect(nil, "witness unavailable, pre-existing condition")
	assert.Len(t, flags, 2)
}

func TestDetectAccumulatesAcrossChecks(t *testing.T) {
	d := NewDetector()
	incident := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	data := &model.ExtractedData{
		Description:  "I was stopped at the intersection",
		IncidentDate: ptrTime(incident),
		ReportDate:   ptrTime(incident.AddDate(0, 0, 40)),
		Injuries:     []model.Injury{{Description: "whiplash", Severity: "minor"}},
	}
	source := "the vehicle was moving; claimant has a pre-existing injury"

	flags := d.Detect(data, source)
	assert.Len(t, flagsOfType(flags, "late_reporting"), 1)
	assert.Len(t, flagsOfType(flags, "inconsistent_story"), 1)
	assert.Len(t, flagsOfType(flags, "suspicious_pattern"), 1)
	assert.Len(t, flagsOfType(flags, "soft_tissue_only"), 1)
}
