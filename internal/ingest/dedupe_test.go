package ingest

import (
	"testing"
	"time"

	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
)

func TestTitleKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Youth Education Grant", "youth education grant"},
		{"Youth  Education   Grant!", "youth education grant"},
		{"YOUTH EDUCATION GRANT (2026)", "youth education grant 2026"},
		{"Arts & Culture: Community Fund", "arts culture community fund"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TitleKey(tt.input); got != tt.want {
			t.Errorf("TitleKey(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSameOpportunity(t *testing.T) {
	base := models.Opportunity{SourceID: "grants_gov", ExternalID: "123", Title: "Youth Grant", FunderName: "ED"}

	tests := []struct {
		name string
		a, b models.Opportunity
		want bool
	}{
		{"same external id", base, models.Opportunity{SourceID: "grants_gov", ExternalID: "123", Title: "Different"}, true},
		{"different external id", base, models.Opportunity{SourceID: "grants_gov", ExternalID: "456", Title: "Youth Grant", FunderName: "ED"}, false},
		{"different source never matches", base, models.Opportunity{SourceID: "foundation_news", ExternalID: "123"}, false},
		{
			"fallback title and funder",
			models.Opportunity{SourceID: "foundation_news", Title: "Community Arts Fund!", FunderName: "Acme Foundation"},
			models.Opportunity{SourceID: "foundation_news", Title: "community  arts fund", FunderName: "ACME FOUNDATION"},
			true,
		},
		{
			"fallback funder differs",
			models.Opportunity{SourceID: "foundation_news", Title: "Community Arts Fund", FunderName: "Acme Foundation"},
			models.Opportunity{SourceID: "foundation_news", Title: "Community Arts Fund", FunderName: "Beta Foundation"},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameOpportunity(tt.a, tt.b); got != tt.want {
				t.Errorf("SameOpportunity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeNonNull(t *testing.T) {
	oldDeadline := time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC)
	newDeadline := time.Date(2026, 4, 1, 23, 59, 59, 0, time.UTC)
	min := 5000.0

	existing := models.Opportunity{
		SourceID:    "grants_gov",
		ExternalID:  "123",
		Title:       "Youth Grant",
		Description: "original description",
		AmountMin:   &min,
		Deadline:    &oldDeadline,
	}

	fresh := models.Opportunity{
		SourceID:   "grants_gov",
		ExternalID: "123",
		Title:      "Youth Education Grant",
		Deadline:   &newDeadline,
	}

	if changed := MergeNonNull(&existing, fresh); !changed {
		t.Fatal("expected merge to report a change")
	}
	if existing.Title != "Youth Education Grant" {
		t.Errorf("title = %q, want fresh value", existing.Title)
	}
	if existing.Description != "original description" {
		t.Errorf("empty fresh description should not clobber stored value")
	}
	if existing.AmountMin == nil || *existing.AmountMin != 5000 {
		t.Errorf("nil fresh amount should not clobber stored value")
	}
	if existing.Deadline == nil || !existing.Deadline.Equal(newDeadline) {
		t.Errorf("deadline = %v, want %v", existing.Deadline, newDeadline)
	}

	if changed := MergeNonNull(&existing, fresh); changed {
		t.Error("second identical merge should report no change")
	}
}

func TestDedupeBatch(t *testing.T) {
	batch := []models.Opportunity{
		{SourceID: "foundation_news", Title: "Arts Fund", FunderName: "Acme"},
		{SourceID: "foundation_news", Title: "arts  fund!", FunderName: "ACME", Description: "details"},
		{SourceID: "foundation_news", Title: "Arts Fund", FunderName: "Beta"},
	}
	out := DedupeBatch(batch)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Description != "details" {
		t.Errorf("merged duplicate should carry the fuller description, got %q", out[0].Description)
	}
}
