package scoring

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
)

func fixedEngine(t *testing.T, now time.Time) *Engine {
	t.Helper()
	e := NewEngine(DefaultWeights())
	e.now = func() time.Time { return now }
	return e
}

func fptr(v float64) *float64 { return &v }

func tptr(t time.Time) *time.Time { return &t }

func atlantaProfile() models.OrganizationProfile {
	return models.OrganizationProfile{
		OrgID:          uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		ProfileVersion: 1,
		Mission:        "Expanding educational opportunity for Atlanta youth",
		FocusAreas:     []string{"education", "youth"},
		City:           "Atlanta",
		State:          "GA",
		BudgetMin:      fptr(50_000),
		BudgetMax:      fptr(200_000),
	}
}

func TestScoreStrongMatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := fixedEngine(t, now)

	opp := models.Opportunity{
		ID:            uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		Title:         "Youth Education Grant",
		FunderName:    "Gates Foundation",
		Description:   "Supporting youth education initiatives in communities nationwide.",
		LocationScope: "National",
		AmountMin:     fptr(100_000),
		AmountMax:     fptr(300_000),
		Deadline:      tptr(now.AddDate(0, 0, 45)),
	}

	result := engine.Score(opp, atlantaProfile())

	if result.DimensionScores[models.DimMission] < 80 {
		t.Errorf("mission = %v, want high (shared youth/education tokens)", result.DimensionScores[models.DimMission])
	}
	if result.DimensionScores[models.DimGeographic] != 100 {
		t.Errorf("geographic = %v, want 100 for National", result.DimensionScores[models.DimGeographic])
	}
	if result.DimensionScores[models.DimBudget] != 100 {
		t.Errorf("budget = %v, want 100 (ask 125k inside 100k-300k)", result.DimensionScores[models.DimBudget])
	}
	if result.DimensionScores[models.DimTiming] != 100 {
		t.Errorf("timing = %v, want 100 at 45 days out", result.DimensionScores[models.DimTiming])
	}
	if result.CompositeScore <= 70 {
		t.Errorf("composite = %v, want > 70", result.CompositeScore)
	}
	if result.Confidence != models.ConfidenceHigh {
		t.Errorf("confidence = %v, want high", result.Confidence)
	}
}

func TestScoreWeakMatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := fixedEngine(t, now)

	opp := models.Opportunity{
		ID:            uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		Title:         "Rural Healthcare Initiative",
		LocationScope: "Wyoming",
	}

	result := engine.Score(opp, atlantaProfile())

	if result.DimensionScores[models.DimGeographic] != 0 {
		t.Errorf("geographic = %v, want 0 for explicit state mismatch", result.DimensionScores[models.DimGeographic])
	}
	if result.DimensionScores[models.DimBudget] != 50 {
		t.Errorf("budget = %v, want neutral 50 for unknown amount", result.DimensionScores[models.DimBudget])
	}
	if result.DimensionScores[models.DimTiming] != 50 {
		t.Errorf("timing = %v, want neutral 50 for unknown deadline", result.DimensionScores[models.DimTiming])
	}
	if result.CompositeScore >= 40 {
		t.Errorf("composite = %v, want < 40", result.CompositeScore)
	}
	if result.Confidence != models.ConfidenceLow {
		t.Errorf("confidence = %v, want low", result.Confidence)
	}
}

func TestScoreNeverPenalizesMissingData(t *testing.T) {
	engine := fixedEngine(t, time.Now())
	opp := models.Opportunity{Title: "Some Grant"}
	profile := models.OrganizationProfile{}

	result := engine.Score(opp, profile)
	for dim, score := range result.DimensionScores {
		if score != 50 {
			t.Errorf("dim %s = %v, want neutral 50 with no inputs", dim, score)
		}
	}
	if result.CompositeScore != 50 {
		t.Errorf("composite = %v, want 50", result.CompositeScore)
	}
	if result.Confidence != models.ConfidenceLow {
		t.Errorf("confidence = %v, want low", result.Confidence)
	}
}

func TestScoreBounds(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	engine := fixedEngine(t, now)
	profile := atlantaProfile()

	opps := []models.Opportunity{
		{Title: "Youth Education Grant", Description: "youth education youth education", LocationScope: "National", AmountMin: fptr(1), AmountMax: fptr(1e9), Deadline: tptr(now.AddDate(0, 1, 0))},
		{Title: "X", LocationScope: "Texas", AmountMax: fptr(1), Deadline: tptr(now.AddDate(-1, 0, 0))},
		{Title: "Y"},
	}
	for _, opp := range opps {
		result := engine.Score(opp, profile)
		if result.CompositeScore < 0 || result.CompositeScore > 100 {
			t.Errorf("composite %v out of bounds for %q", result.CompositeScore, opp.Title)
		}
		for dim, score := range result.DimensionScores {
			if score < 0 || score > 100 {
				t.Errorf("dim %s = %v out of bounds for %q", dim, score, opp.Title)
			}
		}
	}
}

func TestTimingFit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := fixedEngine(t, now)

	tests := []struct {
		name     string
		deadline *time.Time
		wantMin  float64
		wantMax  float64
		hasData  bool
	}{
		{"past deadline", tptr(now.AddDate(0, 0, -1)), 0, 0, true},
		{"one week out", tptr(now.AddDate(0, 0, 7)), 30, 70, true},
		{"45 days out", tptr(now.AddDate(0, 0, 45)), 100, 100, true},
		{"179 days out", tptr(now.AddDate(0, 0, 179)), 100, 100, true},
		{"one year out", tptr(now.AddDate(1, 0, 0)), 70, 70, true},
		{"unknown", nil, 50, 50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.timingFit(models.Opportunity{Deadline: tt.deadline})
			if got.score < tt.wantMin || got.score > tt.wantMax {
				t.Errorf("score = %v, want in [%v, %v]", got.score, tt.wantMin, tt.wantMax)
			}
			if got.hasData != tt.hasData {
				t.Errorf("hasData = %v, want %v", got.hasData, tt.hasData)
			}
		})
	}
}

func TestBudgetFitLinearFalloff(t *testing.T) {
	engine := fixedEngine(t, time.Now())
	profile := models.OrganizationProfile{BudgetMin: fptr(100_000), BudgetMax: fptr(100_000)} // ask = 100k

	tests := []struct {
		name string
		min  *float64
		max  *float64
		want float64
	}{
		{"inside range", fptr(50_000), fptr(200_000), 100},
		{"at lower bound", fptr(100_000), fptr(200_000), 100},
		{"ask half the floor", fptr(200_000), fptr(400_000), 50},
		{"ask double the ceiling", fptr(10_000), fptr(50_000), 50},
		{"far below floor", fptr(1_000_000), nil, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.budgetFit(models.Opportunity{AmountMin: tt.min, AmountMax: tt.max}, profile)
			if got.score != tt.want {
				t.Errorf("score = %v, want %v", got.score, tt.want)
			}
		})
	}
}

func TestGeographicFit(t *testing.T) {
	engine := fixedEngine(t, time.Now())
	profile := atlantaProfile()

	tests := []struct {
		scope   string
		want    float64
		hasData bool
	}{
		{"National", 100, true},
		{"Georgia", 100, true},
		{"GA", 100, true},
		{"Atlanta metro area", 100, true},
		{"Wyoming", 0, true},
		{"CA, OR, WA", 0, true},
		{"", 50, false},
		{"rural communities", 50, false},
		{"fresh romaine growers", 50, false},
		{"urbana school district", 50, false},
	}
	for _, tt := range tests {
		t.Run(tt.scope, func(t *testing.T) {
			got := engine.geographicFit(models.Opportunity{LocationScope: tt.scope}, profile)
			if got.score != tt.want || got.hasData != tt.hasData {
				t.Errorf("geographicFit(%q) = (%v, %v), want (%v, %v)", tt.scope, got.score, got.hasData, tt.want, tt.hasData)
			}
		})
	}
}

func TestStateNameWordBoundaries(t *testing.T) {
	tests := []struct {
		scope string
		want  bool
	}{
		{"statewide in maine", true},
		{"maine, vermont, and new hampshire", true},
		{"romaine lettuce growers", false},
		{"urbana-champaign region", false},
		{"serving iowans", false},
		{"new york city", true},
	}
	for _, tt := range tests {
		if got := mentionsAnyState(tt.scope); got != tt.want {
			t.Errorf("mentionsAnyState(%q) = %v, want %v", tt.scope, got, tt.want)
		}
	}

	// The org-state path applies the same boundary rule.
	if scopeMentionsState("romaine lettuce growers", "ME") {
		t.Error("substring match should not count as the org's state")
	}
	if !scopeMentionsState("grants across maine", "Maine") {
		t.Error("whole-word state name should match")
	}
}

func TestRankDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	early := now.AddDate(0, 0, 30)
	late := now.AddDate(0, 0, 60)

	mk := func(id string, composite, timing float64, deadline *time.Time) ScoredOpportunity {
		return ScoredOpportunity{
			Opportunity: models.Opportunity{ID: uuid.MustParse(id), Deadline: deadline},
			Match: models.MatchResult{
				CompositeScore:  composite,
				DimensionScores: map[string]float64{models.DimTiming: timing},
			},
		}
	}

	items := []ScoredOpportunity{
		mk("00000000-0000-0000-0000-000000000004", 80, 100, nil),
		mk("00000000-0000-0000-0000-000000000002", 80, 100, &late),
		mk("00000000-0000-0000-0000-000000000001", 90, 50, nil),
		mk("00000000-0000-0000-0000-000000000003", 80, 70, &early),
		mk("00000000-0000-0000-0000-000000000005", 80, 100, &early),
	}

	for run := 0; run < 3; run++ {
		shuffled := make([]ScoredOpportunity, len(items))
		copy(shuffled, items)
		Rank(shuffled)

		wantOrder := []string{
			"00000000-0000-0000-0000-000000000001", // highest composite
			"00000000-0000-0000-0000-000000000005", // 80/timing 100/early deadline
			"00000000-0000-0000-0000-000000000002", // 80/timing 100/late deadline
			"00000000-0000-0000-0000-000000000004", // 80/timing 100/nil deadline last
			"00000000-0000-0000-0000-000000000003", // 80/timing 70
		}
		for i, want := range wantOrder {
			if got := shuffled[i].Opportunity.ID.String(); got != want {
				t.Fatalf("run %d position %d = %s, want %s", run, i, got, want)
			}
		}
	}
}

func TestWeightsNormalization(t *testing.T) {
	e := NewEngine(Weights{Mission: 2, Geographic: 1, Budget: 1, Funder: 1, Timing: 1})
	sum := e.weights.Mission + e.weights.Geographic + e.weights.Budget + e.weights.Funder + e.weights.Timing
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("normalized weight sum = %v, want 1", sum)
	}

	e = NewEngine(Weights{})
	if e.weights != DefaultWeights().normalized() {
		t.Errorf("zero weights should fall back to defaults")
	}
}
