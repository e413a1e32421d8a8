package model

import (
	"strings"
	"time"
)

// ClaimStatus represents the current workflow state of a claim.
type ClaimStatus string

const (
	StatusUploaded   ClaimStatus = "uploaded"
	StatusExtracting ClaimStatus = "extracting"
	StatusScoring    ClaimStatus = "scoring"
	StatusRouting    ClaimStatus = "routing"
	StatusAssigned   ClaimStatus = "assigned"
	StatusInProgress ClaimStatus = "in_progress"
	StatusReview     ClaimStatus = "review"
	StatusCompleted  ClaimStatus = "completed"
	StatusRejected   ClaimStatus = "rejected"
	StatusError      ClaimStatus = "error"

	// Administrative states set outside the automated workflow.
	StatusApproved     ClaimStatus = "approved"
	StatusClosed       ClaimStatus = "closed"
	StatusAutoApproved ClaimStatus = "auto_approved"
)

// Terminal reports whether a claim in this status is done with the
// automated workflow and must never re-enter scheduling.
func (s ClaimStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusApproved, StatusClosed, StatusAutoApproved, StatusError:
		return true
	}
	return false
}

// Active reports whether the status indicates the claim is already being
// worked, which makes re-processing of the same source file a no-op.
func (s ClaimStatus) Active() bool {
	switch s {
	case StatusAssigned, StatusInProgress, StatusReview, StatusCompleted,
		StatusApproved, StatusClosed, StatusAutoApproved:
		return true
	}
	return false
}

// IncidentType classifies the kind of loss being claimed.
type IncidentType string

const (
	IncidentAuto       IncidentType = "auto"
	IncidentProperty   IncidentType = "property"
	IncidentInjury     IncidentType = "injury"
	IncidentCommercial IncidentType = "commercial"
	IncidentLiability  IncidentType = "liability"
	IncidentUnknown    IncidentType = "unknown"
)

// Priority is the handling urgency assigned by routing.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// InjurySeverity orders injury severities from least to most severe.
// Unknown values rank as minor.
var injurySeverityRank = map[string]int{
	"minor":    1,
	"moderate": 2,
	"serious":  3,
	"critical": 4,
	"fatal":    4,
}

// InjurySeverityRank returns the ordering rank for an injury severity
// string (case-insensitive). Unrecognized severities rank as minor.
func InjurySeverityRank(severity string) int {
	if r, ok := injurySeverityRank[strings.ToLower(severity)]; ok {
		return r
	}
	return 1
}

// Party is a person or entity involved in the claim.
type Party struct {
	Name    string `json:"name"`
	Role    string `json:"role"` // claimant, insured, third_party, witness
	Contact string `json:"contact,omitempty"`
	Address string `json:"address,omitempty"`
}

// Location is where the incident occurred.
type Location struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
}

// Injury describes one injured person.
type Injury struct {
	Person      string `json:"person"`
	Severity    string `json:"severity"` // minor, moderate, serious, critical, fatal
	Description string `json:"description"`
}

// ExtractedData holds the structured fields parsed out of a claim
// document. Extraction is unreliable, so every field is optional and
// nothing downstream may assume presence.
type ExtractedData struct {
	ClaimNumber        *string      `json:"claim_number,omitempty"`
	PolicyNumber       *string      `json:"policy_number,omitempty"`
	ClaimAmount        *float64     `json:"claim_amount,omitempty"`
	IncidentType       IncidentType `json:"incident_type,omitempty"`
	IncidentDate       *time.Time   `json:"incident_date,omitempty"`
	ReportDate         *time.Time   `json:"report_date,omitempty"`
	Parties            []Party      `json:"parties,omitempty"`
	Location           *Location    `json:"location,omitempty"`
	Injuries           []Injury     `json:"injuries,omitempty"`
	Description        string       `json:"description,omitempty"`
	FaultDetermination string       `json:"fault_determination,omitempty"` // clear, disputed, multi-party
	AttorneyInvolved   bool         `json:"attorney_involved"`
}

// Amount returns the claim amount, or 0 when absent.
func (d *ExtractedData) Amount() float64 {
	if d == nil || d.ClaimAmount == nil {
		return 0
	}
	return *d.ClaimAmount
}

// FlagSeverity grades how serious a fraud finding is.
type FlagSeverity string

const (
	FlagLow    FlagSeverity = "low"
	FlagMedium FlagSeverity = "medium"
	FlagHigh   FlagSeverity = "high"
)

// FraudFlag is a single suspicious-pattern finding. Multiple flags can
// coexist on one claim; they are never deduplicated.
type FraudFlag struct {
	Type       string       `json:"type"`
	Confidence float64      `json:"confidence"` // 0-1
	Evidence   string       `json:"evidence"`
	Severity   FlagSeverity `json:"severity"`
}

// RoutingDecision records which adjuster (if any) a claim was assigned to
// and why. A nil AdjusterID is a valid outcome, not an error.
type RoutingDecision struct {
	AssignedTo             *string  `json:"assigned_to"`
	AdjusterID             *string  `json:"adjuster_id"`
	Priority               Priority `json:"priority"`
	Reason                 string   `json:"reason"`
	EstimatedWorkloadHours *float64 `json:"estimated_workload_hours"`
	InvestigationChecklist []string `json:"investigation_checklist"`
	AutoProcessed          bool     `json:"auto_processed,omitempty"`
	AutoRouted             bool     `json:"auto_routed,omitempty"`
	EstimatedPayout        *float64 `json:"estimated_payout,omitempty"`
}

// Claim is the central triage record for one reported incident.
type Claim struct {
	ClaimID        string `json:"claim_id"`
	SourceFilename string `json:"source_filename"`
	Source         string `json:"source"` // upload, ftp
	DocumentType   string `json:"document_type,omitempty"`
	FilePath       string `json:"file_path,omitempty"`

	ExtractedData *ExtractedData `json:"extracted_data,omitempty"`
	ExtractedText string         `json:"extracted_text,omitempty"`

	SeverityScore   *float64 `json:"severity_score,omitempty"`   // 0-100
	ComplexityScore *float64 `json:"complexity_score,omitempty"` // 0-100

	FraudFlags      []FraudFlag      `json:"fraud_flags,omitempty"`
	RoutingDecision *RoutingDecision `json:"routing_decision,omitempty"`

	Status                ClaimStatus `json:"status"`
	ProcessingTimeSeconds float64     `json:"processing_time_seconds,omitempty"`

	TaskID        string `json:"task_id,omitempty"`
	ReviewCheckID string `json:"review_check_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Severity returns the severity score, or 0 when unscored.
func (c *Claim) Severity() float64 {
	if c.SeverityScore == nil {
		return 0
	}
	return *c.SeverityScore
}

// Complexity returns the complexity score, or 0 when unscored.
func (c *Claim) Complexity() float64 {
	if c.ComplexityScore == nil {
		return 0
	}
	return *c.ComplexityScore
}

// AssignedAdjusterID returns the routed adjuster id, or "" when the
// claim is unassigned.
func (c *Claim) AssignedAdjusterID() string {
	if c.RoutingDecision == nil || c.RoutingDecision.AdjusterID == nil {
		return ""
	}
	return *c.RoutingDecision.AdjusterID
}
