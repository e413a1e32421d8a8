// Package parse turns raw claim document text into structured fields
// using the Anthropic API. Parsing is best effort: when the model call
// or the JSON decode fails, the parser degrades to a minimal record
// carrying the document text instead of failing the claim.
package parse

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/config"
	"github.com/harborview/claims-triage/internal/model"
	"github.com/harborview/claims-triage/pkg/anthropic"
)

const (
	defaultModel    = "claude-haiku-4-5-20251001"
	defaultMaxChars = 3000

	// degradedDescriptionLimit bounds the description carried by the
	// fallback record when structured parsing fails.
	degradedDescriptionLimit = 500
)

// systemPrompt is identical for every document, so it is sent with a
// cache breakpoint and reused across claims.
const systemPrompt = `You are an insurance claims intake analyst. Extract claim information from the document the user provides and return it as JSON with exactly these fields:
{
  "claim_number": str (the claim number from the document, like "CLM-2025-001234" or "AUTO-2025-400-GLASS") or null,
  "policy_number": str (policy number from the document) or null,
  "claim_amount": float or null,
  "incident_type": "auto" | "property" | "injury" | "commercial" | "liability",
  "incident_date": "YYYY-MM-DD" or null,
  "report_date": "YYYY-MM-DD" or null,
  "parties": [{"name": str, "role": "claimant"|"insured"|"third_party"|"witness"}],
  "location": {"city": str, "state": str},
  "injuries": [{"person": str, "severity": "minor"|"moderate"|"serious"|"critical"|"fatal", "description": str}],
  "description": str,
  "fault_determination": "clear" | "disputed" | "multi-party",
  "attorney_involved": bool
}
Return only the JSON object, no surrounding prose.`

// Parser extracts structured claim fields from document text.
type Parser struct {
	client   anthropic.Client
	model    string
	maxChars int
}

// New creates a Parser over an existing Anthropic client.
func New(client anthropic.Client, cfg config.ParseConfig) *Parser {
	p := &Parser{
		client:   client,
		model:    cfg.Model,
		maxChars: cfg.MaxChars,
	}
	if p.model == "" {
		p.model = defaultModel
	}
	if p.maxChars <= 0 {
		p.maxChars = defaultMaxChars
	}
	return p
}

// NewFromConfig creates a Parser with an SDK-backed client.
func NewFromConfig(cfg config.ParseConfig) (*Parser, error) {
	if cfg.AnthropicKey == "" {
		return nil, eris.New("parse: anthropic_api_key is required")
	}
	return New(anthropic.NewClient(cfg.AnthropicKey), cfg), nil
}

// claimFields is the wire shape the model is asked to return. Dates
// arrive as strings and are converted during mapping.
type claimFields struct {
	ClaimNumber        *string         `json:"claim_number"`
	PolicyNumber       *string         `json:"policy_number"`
	ClaimAmount        *float64        `json:"claim_amount"`
	IncidentType       string          `json:"incident_type"`
	IncidentDate       *string         `json:"incident_date"`
	ReportDate         *string         `json:"report_date"`
	Parties            []model.Party   `json:"parties"`
	Location           *model.Location `json:"location"`
	Injuries           []model.Injury  `json:"injuries"`
	Description        string          `json:"description"`
	FaultDetermination string          `json:"fault_determination"`
	AttorneyInvolved   bool            `json:"attorney_involved"`
}

// Parse extracts structured fields from document text. It never fails:
// any model or decode error is logged and the degraded fallback record
// is returned so the claim can still move through scoring and routing.
func (p *Parser) Parse(ctx context.Context, documentText string) *model.ExtractedData {
	text := documentText
	if len(text) > p.maxChars {
		text = text[:p.maxChars]
	}

	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   2048,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt),
		Temperature: floatPtr(0.1),
		Messages: []anthropic.Message{
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		zap.L().Warn("claim parse failed, using degraded record", zap.Error(err))
		return Degraded(documentText)
	}
	resp.Usage.LogCost(p.model, "parse")

	raw := firstText(resp)
	var fields claimFields
	if err := json.Unmarshal([]byte(extractJSON(raw)), &fields); err != nil {
		zap.L().Warn("claim parse returned malformed JSON, using degraded record",
			zap.Error(err),
			zap.Int("response_len", len(raw)))
		return Degraded(documentText)
	}

	return fields.toExtractedData()
}

// Degraded builds the minimal record used when structured parsing is
// unavailable. The incident type is unknown and the description carries
// the head of the raw document so reviewers have something to read.
func Degraded(documentText string) *model.ExtractedData {
	desc := documentText
	if len(desc) > degradedDescriptionLimit {
		desc = desc[:degradedDescriptionLimit]
	}
	return &model.ExtractedData{
		IncidentType: model.IncidentUnknown,
		Description:  desc,
	}
}

func (f *claimFields) toExtractedData() *model.ExtractedData {
	return &model.ExtractedData{
		ClaimNumber:        f.ClaimNumber,
		PolicyNumber:       f.PolicyNumber,
		ClaimAmount:        f.ClaimAmount,
		IncidentType:       normalizeIncidentType(f.IncidentType),
		IncidentDate:       parseDate(f.IncidentDate),
		ReportDate:         parseDate(f.ReportDate),
		Parties:            f.Parties,
		Location:           f.Location,
		Injuries:           f.Injuries,
		Description:        f.Description,
		FaultDetermination: f.FaultDetermination,
		AttorneyInvolved:   f.AttorneyInvolved,
	}
}

func normalizeIncidentType(s string) model.IncidentType {
	switch model.IncidentType(strings.ToLower(strings.TrimSpace(s))) {
	case model.IncidentAuto:
		return model.IncidentAuto
	case model.IncidentProperty:
		return model.IncidentProperty
	case model.IncidentInjury:
		return model.IncidentInjury
	case model.IncidentCommercial:
		return model.IncidentCommercial
	case model.IncidentLiability:
		return model.IncidentLiability
	default:
		return model.IncidentUnknown
	}
}

// parseDate accepts YYYY-MM-DD and RFC 3339; anything else maps to nil.
func parseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	return nil
}

// firstText returns the first text content block of a response.
func firstText(resp *anthropic.MessageResponse) string {
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text
		}
	}
	return ""
}

// extractJSON strips markdown code fences and surrounding prose,
// returning the outermost JSON object in the text.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func floatPtr(f float64) *float64 {
	return &f
}
