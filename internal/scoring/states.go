package scoring

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// usStates maps lowercase full state names to their postal codes. Location
// scopes from providers use either form interchangeably.
var usStates = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY", "district of columbia": "DC",
}

var stateCodes = func() map[string]bool {
	codes := make(map[string]bool, len(usStates))
	for _, code := range usStates {
		codes[strings.ToLower(code)] = true
	}
	return codes
}()

// normalizeState resolves a state name or postal code to a postal code.
func normalizeState(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if code, ok := usStates[s]; ok {
		return code, true
	}
	if stateCodes[s] {
		return strings.ToUpper(s), true
	}
	return "", false
}

// scopeMentionsState reports whether a lowercase location scope names the
// org's state, by full name or postal code.
func scopeMentionsState(scope, orgState string) bool {
	code, ok := normalizeState(orgState)
	if !ok {
		return false
	}
	for name, c := range usStates {
		if c != code {
			continue
		}
		if containsWord(scope, name) {
			return true
		}
	}
	for _, field := range strings.FieldsFunc(scope, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '/'
	}) {
		if strings.EqualFold(field, code) {
			return true
		}
	}
	return false
}

// mentionsAnyState reports whether a lowercase scope names any US state,
// which marks it as an explicit regional restriction.
func mentionsAnyState(scope string) bool {
	for name := range usStates {
		if containsWord(scope, name) {
			return true
		}
	}
	for _, field := range strings.FieldsFunc(scope, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '/'
	}) {
		if stateCodes[strings.ToLower(field)] {
			return true
		}
	}
	return false
}

// containsWord reports whether s contains sub bounded by non-letters, so a
// scope mentioning "romaine" does not count as naming Maine.
func containsWord(s, sub string) bool {
	for start := 0; ; {
		idx := strings.Index(s[start:], sub)
		if idx < 0 {
			return false
		}
		idx += start
		before, _ := utf8.DecodeLastRuneInString(s[:idx])
		after, _ := utf8.DecodeRuneInString(s[idx+len(sub):])
		if !unicode.IsLetter(before) && !unicode.IsLetter(after) {
			return true
		}
		start = idx + 1
	}
}
