// Package fraud scans claim records and their source documents for
// fraud indicators. Each check is independent: a claim can carry zero,
// one, or many flags, and duplicates are never collapsed.
//
// The inconsistent-story check intentionally compares a word from the
// claim's own description against a different word anywhere in the full
// source text. That cross-document comparison can flag documents that
// legitimately contain both words; product owners have been asked to
// revisit it, and until then the literal behavior stands.
package fraud

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/model"
)

const (
	lateReportingThresholdDays = 14
	lateReportingHighDays      = 30
	maxLateReportingConfidence = 0.95
)

// contradiction pairs the claim's own wording against the wider source
// document. First word must appear in the structured description, second
// anywhere in the source text.
type contradiction struct {
	InDescription string
	InSource      string
}

var contradictions = []contradiction{
	{"stopped", "moving"},
	{"no injuries", "injury"},
	{"clear visibility", "couldn't see"},
	{"sober", "drinking"},
}

// suspiciousPatterns are matched against the lowercased source text.
// Each match emits its own flag.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`pre-existing`),
	regexp.MustCompile(`previous.*accident`),
	regexp.MustCompile(`similar.*claim`),
	regexp.MustCompile(`multiple.*injuries`),
	regexp.MustCompile(`witness.*unavailable`),
}

var softTissueKeywords = []string{"whiplash", "strain", "sprain", "soft tissue"}

// Detector scans claims for fraud indicators.
type Detector struct{}

// NewDetector creates a fraud Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect runs all checks and returns the accumulated flags. It never
// fails: on an internal error it returns the flags gathered so far.
func (d *Detector) Detect(data *model.ExtractedData, sourceText string) (flags []model.FraudFlag) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("fraud: detection error, returning partial flags", zap.Any("panic", r))
		}
	}()

	if data == nil {
		data = &model.ExtractedData{}
	}

	if flag := checkLateReporting(data); flag != nil {
		flags = append(flags, *flag)
	}
	flags = append(flags, checkInconsistencies(data, sourceText)...)
	flags = append(flags, checkSuspiciousPatterns(sourceText)...)
	flags = append(flags, checkInjuryPatterns(data)...)
	flags = append(flags, checkGeographicAnomalies(data)...)

	zap.L().Info("fraud: detection complete", zap.Int("flags", len(flags)))
	return flags
}

// checkLateReporting flags claims reported more than 14 days after the
// incident. Confidence grows 0.02 per extra day, capped at 0.95.
func checkLateReporting(data *model.ExtractedData) *model.FraudFlag {
	if data.IncidentDate == nil || data.ReportDate == nil {
		return nil
	}

	days := int(data.ReportDate.Sub(*data.IncidentDate) / (24 * time.Hour))
	if days <= lateReportingThresholdDays {
		return nil
	}

	confidence := 0.3 + float64(days-lateReportingThresholdDays)*0.02
	if confidence > maxLateReportingConfidence {
		confidence = maxLateReportingConfidence
	}

	severity := model.FlagMedium
	if days > lateReportingHighDays {
		severity = model.FlagHigh
	}

	return &model.FraudFlag{
		Type:       "late_reporting",
		Confidence: confidence,
		Evidence:   fmt.Sprintf("Claim reported %d days after incident (threshold: %d days)", days, lateReportingThresholdDays),
		Severity:   severity,
	}
}

func checkInconsistencies(data *model.ExtractedData, sourceText string) []model.FraudFlag {
	description := strings.ToLower(data.Description)
	source := strings.ToLower(sourceText)

	var flags []model.FraudFlag
	for _, c := range contradictions {
		if strings.Contains(description, c.InDescription) && strings.Contains(source, c.InSource) {
			flags = append(flags, model.FraudFlag{
				Type:       "inconsistent_story",
				Confidence: 0.6,
				Evidence:   fmt.Sprintf("Contradicting statements found: '%s' vs '%s'", c.InDescription, c.InSource),
				Severity:   model.FlagMedium,
			})
		}
	}
	return flags
}

func checkSuspiciousPatterns(sourceText string) []model.FraudFlag {
	source := strings.ToLower(sourceText)

	var flags []model.FraudFlag
	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(source) {
			flags = append(flags, model.FraudFlag{
				Type:       "suspicious_pattern",
				Confidence: 0.5,
				Evidence:   fmt.Sprintf("Suspicious pattern detected: %s", pattern.String()),
				Severity:   model.FlagLow,
			})
		}
	}
	return flags
}

func checkInjuryPatterns(data *model.ExtractedData) []model.FraudFlag {
	var flags []model.FraudFlag

	// All-soft-tissue injuries are hard to verify and common in staged
	// claims.
	if len(data.Injuries) > 0 && allSoftTissue(data.Injuries) {
		flags = append(flags, model.FraudFlag{
			Type:       "soft_tissue_only",
			Confidence: 0.4,
			Evidence:   "Only soft tissue injuries reported (difficult to verify)",
			Severity:   model.FlagLow,
		})
	}

	if len(data.Injuries) > 5 {
		flags = append(flags, model.FraudFlag{
			Type:       "excessive_injuries",
			Confidence: 0.5,
			Evidence:   fmt.Sprintf("%d injuries reported (unusually high)", len(data.Injuries)),
			Severity:   model.FlagMedium,
		})
	}

	return flags
}

func allSoftTissue(injuries []model.Injury) bool {
	for _, inj := range injuries {
		desc := strings.ToLower(inj.Description)
		matched := false
		for _, kw := range softTissueKeywords {
			if strings.Contains(desc, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// checkGeographicAnomalies is a deliberate no-op extension point. A real
// distance check needs policy-holder address data the parser does not
// extract yet; the hook stays so the check surface is visible.
func checkGeographicAnomalies(_ *model.ExtractedData) []model.FraudFlag {
	return nil
}
