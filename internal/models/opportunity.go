package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceType classifies where an opportunity came from.
type SourceType string

const (
	SourceFederal    SourceType = "Federal"
	SourceFoundation SourceType = "Foundation"
	SourceHistorical SourceType = "Historical"
	SourceCorporate  SourceType = "Corporate"
)

// Opportunity is the canonical funding offer shape. All adapters map into
// this; no provider-specific shape leaks past normalization.
type Opportunity struct {
	ID            uuid.UUID  `json:"id"`
	SourceID      string     `json:"source_id"`
	ExternalID    string     `json:"external_id,omitempty"`
	Title         string     `json:"title"`
	FunderName    string     `json:"funder_name"`
	Description   string     `json:"description"`
	AmountMin     *float64   `json:"amount_min"`
	AmountMax     *float64   `json:"amount_max"`
	Deadline      *time.Time `json:"deadline"`
	PublishedAt   *time.Time `json:"published_at"`
	LocationScope string     `json:"location_scope"`
	SourceType    SourceType `json:"source_type"`
	RawPayload    []byte     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OrganizationProfile is the scoring subject. It is owned by the onboarding
// flow; this service only ever reads it.
type OrganizationProfile struct {
	OrgID           uuid.UUID `json:"org_id"`
	ProfileVersion  int       `json:"profile_version"`
	Mission         string    `json:"mission"`
	FocusAreas      []string  `json:"focus_areas"`
	Keywords        []string  `json:"keywords"`
	City            string    `json:"city"`
	State           string    `json:"state"`
	GeographicScope string    `json:"geographic_scope"` // city, state, national
	BudgetMin       *float64  `json:"annual_budget_min"`
	BudgetMax       *float64  `json:"annual_budget_max"`
	OrgType         string    `json:"org_type"`
}

// TypicalAsk is the midpoint of the org's budget range, used for budget fit.
// Returns (0, false) when the range is unknown.
func (p *OrganizationProfile) TypicalAsk() (float64, bool) {
	switch {
	case p.BudgetMin != nil && p.BudgetMax != nil:
		return (*p.BudgetMin + *p.BudgetMax) / 2, true
	case p.BudgetMax != nil:
		return *p.BudgetMax, true
	case p.BudgetMin != nil:
		return *p.BudgetMin, true
	}
	return 0, false
}

// ConfidenceLevel bands how much real data backed a match score.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// MatchResult is the composite fit score for one (opportunity, profile) pair.
// Scores are canonical 0-100; presentation layers rescale if they want stars.
type MatchResult struct {
	OpportunityID   uuid.UUID          `json:"opportunity_id"`
	OrgID           uuid.UUID          `json:"org_id"`
	ProfileVersion  int                `json:"profile_version"`
	CompositeScore  float64            `json:"composite_score"`
	DimensionScores map[string]float64 `json:"dimension_scores"`
	Confidence      ConfidenceLevel    `json:"confidence_level"`
	Explanation     string             `json:"explanation"`
	ScoredAt        time.Time          `json:"scored_at"`
}

// Dimension names used as keys in MatchResult.DimensionScores.
const (
	DimMission    = "mission_alignment"
	DimGeographic = "geographic_fit"
	DimBudget     = "budget_fit"
	DimFunder     = "funder_fit"
	DimTiming     = "timing_fit"
)

// SourceFailure records why one provider contributed nothing to a run.
type SourceFailure struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// DiscoveryRun is the bookkeeping record for one aggregation pass.
type DiscoveryRun struct {
	ID               uuid.UUID       `json:"id"`
	OrgID            uuid.UUID       `json:"org_id"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at"`
	SourcesAttempted []string        `json:"sources_attempted"`
	SourcesSkipped   []string        `json:"sources_skipped"`
	SourcesFailed    []SourceFailure `json:"sources_failed"`
	NewlyAdded       int             `json:"newly_added_count"`
	Updated          int             `json:"updated_count"`
	FromCache        int             `json:"from_cache_count"`
}

// InteractionAction is the per-org state a user can put an opportunity in.
type InteractionAction string

const (
	ActionSaved     InteractionAction = "saved"
	ActionApplied   InteractionAction = "applied"
	ActionDismissed InteractionAction = "dismissed"
)

// ValidAction reports whether s is a recognized interaction action.
func ValidAction(s string) bool {
	switch InteractionAction(s) {
	case ActionSaved, ActionApplied, ActionDismissed:
		return true
	}
	return false
}

// Interaction is the latest action an org took on an opportunity.
// Logically append-only; the stored row is last-write-wins.
type Interaction struct {
	OrgID         uuid.UUID         `json:"org_id"`
	OpportunityID uuid.UUID         `json:"opportunity_id"`
	Action        InteractionAction `json:"action"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
