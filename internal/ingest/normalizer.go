package ingest

import (
	"log"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
)

var htmlPolicy = bluemonday.UGCPolicy()

// Normalize coerces a provider-shaped RawRecord into the canonical
// Opportunity. Parsing failures fail soft: the affected field stays nil and
// a warning is logged, but the record is always produced.
func Normalize(raw RawRecord, sourceID string) models.Opportunity {
	opp := models.Opportunity{
		SourceID:      sourceID,
		ExternalID:    strings.TrimSpace(raw.ExternalID),
		Title:         cleanText(raw.Title),
		FunderName:    cleanText(raw.FunderName),
		Description:   sanitizeDescription(raw.Description),
		LocationScope: cleanText(raw.LocationScope),
		SourceType:    raw.SourceType,
		RawPayload:    raw.Payload,
	}

	if raw.RawAmount != "" {
		min, max, ok := parseAmountRange(raw.RawAmount)
		if ok {
			opp.AmountMin = min
			opp.AmountMax = max
		} else {
			log.Printf("[Normalize] %s: unparseable amount %q for %q", sourceID, TruncateText(raw.RawAmount, 60), opp.Title)
		}
	}

	if raw.RawDeadline != "" {
		if dt, err := parseDateRobust(raw.RawDeadline); err == nil {
			opp.Deadline = &dt
		} else {
			log.Printf("[Normalize] %s: unparseable deadline %q for %q", sourceID, TruncateText(raw.RawDeadline, 60), opp.Title)
		}
	}

	if raw.RawPublished != "" {
		if dt, err := parseDateRobust(raw.RawPublished); err == nil {
			opp.PublishedAt = &dt
		}
	}

	return opp
}

// sanitizeDescription strips unsafe markup, keeping the provider's safe HTML
// so detail views can render it. Invalid UTF-8 is dropped before storage.
func sanitizeDescription(s string) string {
	return strings.TrimSpace(htmlPolicy.Sanitize(sanitizeUTF8(s)))
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(html string) string {
	if !strings.Contains(html, "<") {
		return cleanText(html)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return cleanText(html)
	}
	return cleanText(doc.Text())
}

// TruncateText cuts a string to max runes, appending ellipsis if truncated.
// Cutting on rune boundaries keeps multibyte text valid UTF-8.
func TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen > 3 {
		return string(runes[:maxLen-3]) + "..."
	}
	return string(runes[:maxLen])
}

// cleanText collapses whitespace and trims.
func cleanText(s string) string {
	return strings.Join(strings.Fields(sanitizeUTF8(s)), " ")
}

// sanitizeUTF8 removes invalid UTF-8 byte sequences that upset Postgres.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
