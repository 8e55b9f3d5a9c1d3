package main

import (
	"testing"
	"time"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name             string
		month, from, to  string
		wantErr          bool
		wantFrom, wantTo bool
		inside, outside  time.Time
	}{
		{name: "month", month: "2025-06", wantFrom: true, wantTo: true,
			inside: time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC), outside: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		{name: "days", from: "2025-06-01", to: "2025-06-15", wantFrom: true, wantTo: true,
			inside: time.Date(2025, 6, 15, 22, 0, 0, 0, time.UTC), outside: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)},
		{name: "open", inside: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "bad month", month: "June", wantErr: true},
		{name: "bad from", from: "01/06/2025", wantErr: true},
		{name: "reversed", from: "2025-06-15", to: "2025-06-01", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng, err := parseRange(tt.month, tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (rng.From != nil) != tt.wantFrom || (rng.To != nil) != tt.wantTo {
				t.Fatalf("unexpected bounds %+v", rng)
			}
			if !rng.Contains(tt.inside) {
				t.Fatalf("%v should be inside", tt.inside)
			}
			if !tt.outside.IsZero() && rng.Contains(tt.outside) {
				t.Fatalf("%v should be outside", tt.outside)
			}
		})
	}
}
