package model

import "time"

// AutoSystemID is the synthetic actor assigned to auto-approved claims.
// It is not a real adjuster: workload accounting skips it.
const AutoSystemID = "AUTO_SYSTEM"

// AutoSystemName is the display name used for the synthetic actor.
const AutoSystemName = "Auto-Processor System"

// ExperienceLevel grades an adjuster's seniority.
type ExperienceLevel string

const (
	ExperienceEntry  ExperienceLevel = "entry"
	ExperienceJunior ExperienceLevel = "junior"
	ExperienceMid    ExperienceLevel = "mid"
	ExperienceSenior ExperienceLevel = "senior"
	ExperienceExpert ExperienceLevel = "expert"
)

// SpecializationSIU marks adjusters on the Special Investigation Unit
// fraud-escalation track.
const SpecializationSIU = "siu"

// Adjuster is a human claim handler with capacity and specialization
// constraints.
type Adjuster struct {
	AdjusterID string `json:"adjuster_id" yaml:"adjuster_id"`
	Name       string `json:"name" yaml:"name"`
	Email      string `json:"email" yaml:"email"`
	Phone      string `json:"phone,omitempty" yaml:"phone,omitempty"`

	Specializations []string        `json:"specializations" yaml:"specializations"`
	ExperienceLevel ExperienceLevel `json:"experience_level" yaml:"experience_level"`
	YearsExperience int             `json:"years_experience" yaml:"years_experience"`

	MaxClaimAmount      float64 `json:"max_claim_amount" yaml:"max_claim_amount"`
	MaxConcurrentClaims int     `json:"max_concurrent_claims" yaml:"max_concurrent_claims"`
	CurrentWorkload     int     `json:"current_workload" yaml:"current_workload"`

	Territories []string `json:"territories,omitempty" yaml:"territories,omitempty"`
	Available   bool     `json:"available" yaml:"available"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"-"`
}

// HasSpecialization reports whether the adjuster carries the given
// specialization.
func (a *Adjuster) HasSpecialization(s string) bool {
	for _, spec := range a.Specializations {
		if spec == s {
			return true
		}
	}
	return false
}

// AtCapacity reports whether the adjuster cannot take another claim.
func (a *Adjuster) AtCapacity() bool {
	return a.CurrentWorkload >= a.MaxConcurrentClaims
}

// Workload summarizes an adjuster's current load for reporting.
type Workload struct {
	AdjusterID         string  `json:"adjuster_id"`
	AdjusterName       string  `json:"adjuster_name"`
	CurrentClaims      int     `json:"current_claims"`
	MaxClaims          int     `json:"max_claims"`
	CapacityPercentage float64 `json:"capacity_percentage"`
}
