package ingest

import (
	"strings"
	"unicode"

	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
)

// TitleKey produces the canonical dedup key for a title: lowercase, all
// punctuation stripped, whitespace collapsed to single spaces.
func TitleKey(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// FunderKey case-folds a funder name for equality comparison.
func FunderKey(funder string) string {
	return strings.Join(strings.Fields(strings.ToLower(funder)), " ")
}

// SameOpportunity reports whether two normalized records describe the same
// opportunity. External ID match within a source is authoritative; records
// without one fall back to title key plus folded funder name.
func SameOpportunity(a, b models.Opportunity) bool {
	if a.SourceID != b.SourceID {
		return false
	}
	if a.ExternalID != "" && b.ExternalID != "" {
		return a.ExternalID == b.ExternalID
	}
	return TitleKey(a.Title) == TitleKey(b.Title) && FunderKey(a.FunderName) == FunderKey(b.FunderName)
}

// MergeNonNull folds a fresh record into an existing one. Non-empty fresh
// fields win; fields the provider omitted this time keep their stored
// values. Returns true when anything actually changed.
func MergeNonNull(existing *models.Opportunity, fresh models.Opportunity) bool {
	changed := false

	if fresh.Title != "" && fresh.Title != existing.Title {
		existing.Title = fresh.Title
		changed = true
	}
	if fresh.FunderName != "" && fresh.FunderName != existing.FunderName {
		existing.FunderName = fresh.FunderName
		changed = true
	}
	if fresh.Description != "" && fresh.Description != existing.Description {
		existing.Description = fresh.Description
		changed = true
	}
	if fresh.LocationScope != "" && fresh.LocationScope != existing.LocationScope {
		existing.LocationScope = fresh.LocationScope
		changed = true
	}
	if fresh.AmountMin != nil && !floatPtrEq(existing.AmountMin, fresh.AmountMin) {
		existing.AmountMin = fresh.AmountMin
		changed = true
	}
	if fresh.AmountMax != nil && !floatPtrEq(existing.AmountMax, fresh.AmountMax) {
		existing.AmountMax = fresh.AmountMax
		changed = true
	}
	if fresh.Deadline != nil && (existing.Deadline == nil || !existing.Deadline.Equal(*fresh.Deadline)) {
		existing.Deadline = fresh.Deadline
		changed = true
	}
	if fresh.PublishedAt != nil && (existing.PublishedAt == nil || !existing.PublishedAt.Equal(*fresh.PublishedAt)) {
		existing.PublishedAt = fresh.PublishedAt
		changed = true
	}
	if len(fresh.RawPayload) > 0 {
		existing.RawPayload = fresh.RawPayload
	}

	return changed
}

// DedupeBatch collapses duplicates within a single fetch batch, merging
// later occurrences into the first. Cross-batch dedup happens in storage.
func DedupeBatch(batch []models.Opportunity) []models.Opportunity {
	out := make([]models.Opportunity, 0, len(batch))
	for _, opp := range batch {
		merged := false
		for i := range out {
			if SameOpportunity(out[i], opp) {
				MergeNonNull(&out[i], opp)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, opp)
		}
	}
	return out
}

func floatPtrEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
