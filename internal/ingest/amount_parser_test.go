package ingest

import "testing"

func TestParseAmountRange(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMin float64
		wantMax float64
		hasMin  bool
		hasMax  bool
		wantOK  bool
	}{
		{"full range", "$5,000 - $25,000", 5000, 25000, true, true, true},
		{"range without dollar signs", "10,000 to 50,000", 10000, 50000, true, true, true},
		{"up to", "up to $50,000", 0, 50000, false, true, true},
		{"maximum", "Maximum award: $100,000", 0, 100000, false, true, true},
		{"minimum", "minimum $10,000", 10000, 0, true, false, true},
		{"k suffix", "up to $50k", 0, 50000, false, true, true},
		{"m suffix", "$1.5M", 0, 1500000, false, true, true},
		{"single value reads as ceiling", "$75,000", 0, 75000, false, true, true},
		{"reversed range is reordered", "$25,000 - $5,000", 5000, 25000, true, true, true},
		{"no digits", "varies by program", 0, 0, false, false, false},
		{"empty", "", 0, 0, false, false, false},
		{"small bare number ignored", "awards 5 grants annually", 0, 0, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			min, max, ok := parseAmountRange(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("parseAmountRange(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if tt.hasMin {
				if min == nil || *min != tt.wantMin {
					t.Errorf("min = %v, want %v", min, tt.wantMin)
				}
			} else if min != nil {
				t.Errorf("min = %v, want nil", *min)
			}
			if tt.hasMax {
				if max == nil || *max != tt.wantMax {
					t.Errorf("max = %v, want %v", max, tt.wantMax)
				}
			} else if max != nil {
				t.Errorf("max = %v, want nil", *max)
			}
		})
	}
}
