package scoring

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/simplenow320/Pink-Lemonade-sub005/internal/ingest"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
)

// Weights controls the composite blend. Values are relative; the engine
// normalizes them to sum to 1 so partial overrides stay sane.
type Weights struct {
	Mission    float64
	Geographic float64
	Budget     float64
	Funder     float64
	Timing     float64
}

// DefaultWeights is the production blend. Mission alignment dominates
// because it is the only dimension computed from the opportunity's actual
// content rather than metadata.
func DefaultWeights() Weights {
	return Weights{
		Mission:    0.35,
		Geographic: 0.15,
		Budget:     0.20,
		Funder:     0.15,
		Timing:     0.15,
	}
}

func (w Weights) normalized() Weights {
	sum := w.Mission + w.Geographic + w.Budget + w.Funder + w.Timing
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Mission:    w.Mission / sum,
		Geographic: w.Geographic / sum,
		Budget:     w.Budget / sum,
		Funder:     w.Funder / sum,
		Timing:     w.Timing / sum,
	}
}

// Engine scores opportunities against organization profiles. Stateless and
// safe for concurrent use.
type Engine struct {
	weights Weights
	now     func() time.Time
}

func NewEngine(w Weights) *Engine {
	return &Engine{weights: w.normalized(), now: time.Now}
}

// dimResult is one sub-score plus whether real input data backed it.
type dimResult struct {
	score   float64
	hasData bool
}

func neutral() dimResult { return dimResult{score: 50, hasData: false} }

// Score computes the composite fit for one (opportunity, profile) pair.
// It never fails: dimensions missing their inputs contribute a neutral 50
// and lower the confidence band instead of erroring or zeroing out.
func (e *Engine) Score(opp models.Opportunity, profile models.OrganizationProfile) models.MatchResult {
	mission := e.missionAlignment(opp, profile)
	geo := e.geographicFit(opp, profile)
	budget := e.budgetFit(opp, profile)
	funder := e.funderFit(opp, profile)
	timing := e.timingFit(opp)

	composite := e.weights.Mission*mission.score +
		e.weights.Geographic*geo.score +
		e.weights.Budget*budget.score +
		e.weights.Funder*funder.score +
		e.weights.Timing*timing.score

	dims := map[string]float64{
		models.DimMission:    round1(mission.score),
		models.DimGeographic: round1(geo.score),
		models.DimBudget:     round1(budget.score),
		models.DimFunder:     round1(funder.score),
		models.DimTiming:     round1(timing.score),
	}

	withData := 0
	for _, d := range []dimResult{mission, geo, budget, funder, timing} {
		if d.hasData {
			withData++
		}
	}

	return models.MatchResult{
		OpportunityID:   opp.ID,
		OrgID:           profile.OrgID,
		ProfileVersion:  profile.ProfileVersion,
		CompositeScore:  round1(clamp(composite)),
		DimensionScores: dims,
		Confidence:      confidenceBand(withData),
		Explanation:     explain(opp, dims),
		ScoredAt:        e.now(),
	}
}

func confidenceBand(withData int) models.ConfidenceLevel {
	switch {
	case withData >= 4:
		return models.ConfidenceHigh
	case withData >= 2:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// stopwords that would inflate overlap without signaling fit.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "of": true, "to": true, "in": true,
	"a": true, "an": true, "with": true, "on": true, "grant": true,
	"grants": true, "program": true, "fund": true, "foundation": true,
}

func tokenize(s string) []string {
	raw := tokenRe.FindAllString(strings.ToLower(s), -1)
	out := raw[:0]
	for _, tok := range raw {
		if len(tok) > 2 && !stopwords[tok] {
			out = append(out, tok)
		}
	}
	return out
}

// missionAlignment is the token-overlap ratio between the org's keywords
// and focus areas and the opportunity's title, description, and funder,
// scaled to 0-100. A missing description drops to title-only scoring and
// counts as a no-data dimension for confidence purposes.
func (e *Engine) missionAlignment(opp models.Opportunity, profile models.OrganizationProfile) dimResult {
	orgTokens := map[string]bool{}
	for _, kw := range profile.Keywords {
		for _, tok := range tokenize(kw) {
			orgTokens[tok] = true
		}
	}
	for _, fa := range profile.FocusAreas {
		for _, tok := range tokenize(fa) {
			orgTokens[tok] = true
		}
	}
	if len(orgTokens) == 0 || opp.Title == "" {
		return neutral()
	}

	oppText := opp.Title + " " + opp.FunderName
	hasDescription := strings.TrimSpace(opp.Description) != ""
	if hasDescription {
		oppText += " " + ingest.HTMLToText(opp.Description)
	}
	oppTokens := map[string]bool{}
	for _, tok := range tokenize(oppText) {
		oppTokens[tok] = true
	}

	matched := 0
	for tok := range orgTokens {
		if oppTokens[tok] {
			matched++
		}
	}

	score := clamp(100 * float64(matched) / float64(len(orgTokens)))
	return dimResult{score: score, hasData: hasDescription}
}

// geographicFit: 100 for national reach or an explicit match with the
// org's state or city, 0 for an explicit mismatch, neutral when the
// opportunity does not say.
func (e *Engine) geographicFit(opp models.Opportunity, profile models.OrganizationProfile) dimResult {
	scope := strings.ToLower(strings.TrimSpace(opp.LocationScope))
	if scope == "" || scope == "unknown" || scope == "unspecified" {
		return neutral()
	}
	if scope == "national" || scope == "nationwide" || scope == "united states" || scope == "usa" || scope == "us" {
		return dimResult{score: 100, hasData: true}
	}

	if profile.State != "" {
		if scopeMentionsState(scope, profile.State) {
			return dimResult{score: 100, hasData: true}
		}
	}
	if profile.City != "" && strings.Contains(scope, strings.ToLower(profile.City)) {
		return dimResult{score: 100, hasData: true}
	}

	// An explicit state restriction that is not ours is a hard mismatch.
	// Anything vaguer ("rural communities") stays neutral.
	if mentionsAnyState(scope) {
		return dimResult{score: 0, hasData: true}
	}
	return neutral()
}

// budgetFit compares the org's typical ask to the award range. Inside the
// range scores 100; outside degrades in proportion to how far out the ask
// sits. Unknown on either side is neutral.
func (e *Engine) budgetFit(opp models.Opportunity, profile models.OrganizationProfile) dimResult {
	ask, ok := profile.TypicalAsk()
	if !ok || ask <= 0 {
		return neutral()
	}
	if opp.AmountMin == nil && opp.AmountMax == nil {
		return neutral()
	}

	min, max := 0.0, math.MaxFloat64
	if opp.AmountMin != nil {
		min = *opp.AmountMin
	}
	if opp.AmountMax != nil {
		max = *opp.AmountMax
	}
	if min > max {
		min, max = max, min
	}

	switch {
	case ask >= min && ask <= max:
		return dimResult{score: 100, hasData: true}
	case ask < min:
		return dimResult{score: clamp(100 * ask / min), hasData: true}
	default:
		return dimResult{score: clamp(100 * max / ask), hasData: true}
	}
}

// funderCompat deviates from neutral only for pairings with a real signal;
// everything else stays neutral and does not count toward confidence.
var funderCompat = map[string]map[models.SourceType]float64{
	"nonprofit": {
		models.SourceFederal:    75,
		models.SourceFoundation: 80,
		models.SourceHistorical: 70,
	},
	"faith_based": {
		models.SourceFederal:    35,
		models.SourceFoundation: 65,
		models.SourceCorporate:  60,
	},
	"school": {
		models.SourceFederal:    85,
		models.SourceFoundation: 70,
	},
	"community": {
		models.SourceFoundation: 80,
		models.SourceCorporate:  75,
	},
}

func (e *Engine) funderFit(opp models.Opportunity, profile models.OrganizationProfile) dimResult {
	orgType := strings.ToLower(strings.TrimSpace(profile.OrgType))
	if orgType == "" || opp.SourceType == "" {
		return neutral()
	}
	if bySource, ok := funderCompat[orgType]; ok {
		if score, ok := bySource[opp.SourceType]; ok {
			return dimResult{score: score, hasData: true}
		}
	}
	return neutral()
}

// timingFit prefers deadlines with enough runway to prepare an application
// but near enough to be reliable. Past deadlines score 0; unknown is
// neutral, never a penalty.
func (e *Engine) timingFit(opp models.Opportunity) dimResult {
	if opp.Deadline == nil {
		return neutral()
	}
	days := opp.Deadline.Sub(e.now()).Hours() / 24

	switch {
	case days <= 0:
		return dimResult{score: 0, hasData: true}
	case days <= 14:
		return dimResult{score: 30 + (days/14)*40, hasData: true}
	case days <= 180:
		return dimResult{score: 100, hasData: true}
	default:
		return dimResult{score: 70, hasData: true}
	}
}

// explain builds a one-line justification from the two strongest dimensions.
func explain(opp models.Opportunity, dims map[string]float64) string {
	labels := map[string]string{
		models.DimMission:    "mission alignment",
		models.DimGeographic: "geographic fit",
		models.DimBudget:     "budget fit",
		models.DimFunder:     "funder compatibility",
		models.DimTiming:     "deadline runway",
	}
	type entry struct {
		name  string
		score float64
	}
	entries := make([]entry, 0, len(dims))
	for name, score := range dims {
		entries = append(entries, entry{name, score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].name < entries[j].name
	})

	top := entries[0]
	if top.score < 60 {
		return fmt.Sprintf("Weak match for %q; no dimension scored strongly.", opp.Title)
	}
	second := entries[1]
	if second.score >= 60 {
		return fmt.Sprintf("Strong %s (%.0f) and %s (%.0f) for %q.",
			labels[top.name], top.score, labels[second.name], second.score, opp.Title)
	}
	return fmt.Sprintf("Strong %s (%.0f) for %q.", labels[top.name], top.score, opp.Title)
}

// ScoredOpportunity pairs an opportunity with its match for ranking.
type ScoredOpportunity struct {
	Opportunity models.Opportunity `json:"opportunity"`
	Match       models.MatchResult `json:"match"`
}

// Rank orders scored opportunities deterministically: composite desc, then
// timing fit desc, then deadline asc with unknown deadlines last, then ID.
func Rank(items []ScoredOpportunity) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Match.CompositeScore != b.Match.CompositeScore {
			return a.Match.CompositeScore > b.Match.CompositeScore
		}
		at, bt := a.Match.DimensionScores[models.DimTiming], b.Match.DimensionScores[models.DimTiming]
		if at != bt {
			return at > bt
		}
		ad, bd := a.Opportunity.Deadline, b.Opportunity.Deadline
		switch {
		case ad != nil && bd != nil && !ad.Equal(*bd):
			return ad.Before(*bd)
		case ad != nil && bd == nil:
			return true
		case ad == nil && bd != nil:
			return false
		}
		return a.Opportunity.ID.String() < b.Opportunity.ID.String()
	})
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
