package ingest

import (
	"testing"
	"time"
)

func TestParseDateRobust(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"iso date", "2026-03-15", time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC), false},
		{"us slash date", "03/15/2026", time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC), false},
		{"short slash date", "3/5/2026", time.Date(2026, 3, 5, 23, 59, 59, 0, time.UTC), false},
		{"month name", "March 15, 2026", time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC), false},
		{"abbreviated month", "Mar 15, 2026", time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC), false},
		{"ordinal suffix", "deadline is March 15th, 2026", time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC), false},
		{"rfc1123z pubdate", "Mon, 02 Mar 2026 10:30:00 +0000", time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC), false},
		{"rfc3339 keeps time", "2026-03-15T09:00:00Z", time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC), false},
		{"empty", "", time.Time{}, true},
		{"garbage", "rolling basis", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDateRobust(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseDateRobust(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDateRobust(%q) unexpected error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseDateRobust(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
