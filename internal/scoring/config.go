package scoring

// amountBucket maps a claim-amount upper bound (exclusive) to severity
// points. Buckets are evaluated in order; the final bucket is open-ended.
type amountBucket struct {
	Below  float64
	Points float64
}

// keywordTier maps a keyword list to points. Tiers are evaluated in
// order and the first match wins.
type keywordTier struct {
	Keywords []string
	Points   float64
}

// Config holds the literal keyword tables and weights behind severity and
// complexity scoring. There is no model behind these scores: the tables
// are the whole specification of behavior, so keep them data, not logic.
type Config struct {
	// Severity: financial exposure (max 40 pts).
	AmountBuckets []amountBucket
	MaxAmountPts  float64

	// Proxy amounts inferred from the description when no claim amount
	// was extracted.
	GlassAmountKeywords []string
	GlassProxyAmount    float64
	MinorAmountKeywords []string
	MinorProxyAmount    float64
	MajorAmountKeywords []string
	MajorProxyAmount    float64
	DefaultProxyAmount  float64

	// Severity: injuries (max 40 pts).
	InjuryKeywords      []string
	InjuryMentionPts    float64
	InjurySeverityPts   map[int]float64 // rank -> points

	// Severity: property damage keyword tiers (max 20 pts).
	PropertyDamageTiers  []keywordTier
	PropertyDamageDefault float64

	// Complexity: parties (max 20 pts).
	MultiPartyKeywords []string

	// Complexity: fault determination (max 25 pts).
	DisputedFaultKeywords []string
	ClearFaultKeywords    []string

	// Complexity: attorney involvement (max 20 pts).
	AttorneyKeywords []string
	AttorneyPts      float64

	// Complexity: incident-type tier (max 20 pts).
	GlassTypeKeywords      []string
	CommercialTypeKeywords []string

	// Complexity: documentation completeness penalty (max 15 pts added).
	CompletenessPenaltyMax float64
}

// DefaultConfig returns the production scoring tables.
func DefaultConfig() Config {
	return Config{
		AmountBuckets: []amountBucket{
			{Below: 500, Points: 5},
			{Below: 2000, Points: 10},
			{Below: 10000, Points: 20},
			{Below: 50000, Points: 30},
			{Below: 100000, Points: 35},
		},
		MaxAmountPts: 40,

		GlassAmountKeywords: []string{"glass", "windshield", "window"},
		GlassProxyAmount:    300,
		MinorAmountKeywords: []string{"minor", "scratch", "dent"},
		MinorProxyAmount:    1500,
		MajorAmountKeywords: []string{"major", "total loss"},
		MajorProxyAmount:    15000,
		DefaultProxyAmount:  5000,

		InjuryKeywords:   []string{"injury", "injured", "hurt", "pain", "medical"},
		InjuryMentionPts: 15,
		InjurySeverityPts: map[int]float64{
			1: 10, // minor
			2: 20, // moderate
			3: 30, // serious
			4: 40, // critical / fatal
		},

		PropertyDamageTiers: []keywordTier{
			{Keywords: []string{"total loss", "destroyed", "catastrophic", "totaled"}, Points: 20},
			{Keywords: []string{"major", "significant", "extensive", "severe"}, Points: 15},
			{Keywords: []string{"moderate", "substantial"}, Points: 10},
			{Keywords: []string{"minor", "small", "light"}, Points: 5},
			{Keywords: []string{"glass", "windshield", "scratch", "dent"}, Points: 3},
		},
		PropertyDamageDefault: 8,

		MultiPartyKeywords: []string{"multi", "multiple", "several"},

		DisputedFaultKeywords: []string{"disputed", "unclear", "contested", "disagreement"},
		ClearFaultKeywords:    []string{"clear", "obvious", "straightforward"},

		AttorneyKeywords: []string{"attorney", "lawyer", "legal counsel", "representation"},
		AttorneyPts:      20,

		GlassTypeKeywords:      []string{"glass", "windshield"},
		CommercialTypeKeywords: []string{"commercial", "business"},

		CompletenessPenaltyMax: 15,
	}
}
