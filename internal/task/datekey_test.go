package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeadlineKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   DateKey
		ok    bool
	}{
		{name: "iso date", input: "2025-12-29", key: 20251229, ok: true},
		{name: "iso date single digit parts", input: "2025-1-5", key: 20250105, ok: true},
		{name: "iso with T time ignored", input: "2025-12-29T15:04", key: 20251229, ok: true},
		{name: "iso with space time ignored", input: "2025-12-29 15:04:00", key: 20251229, ok: true},
		{name: "slash date is day first", input: "29/12/2025", key: 20251229, ok: true},
		{name: "slash date single digits", input: "5/1/2025", key: 20250105, ok: true},
		{name: "iso with zone suffix ignored", input: "2025-06-30T08:00:00Z", key: 20250630, ok: true},
		{name: "generic textual", input: "Jan 2, 2026", key: 20260102, ok: true},
		{name: "surrounding whitespace", input: "  2025-12-29  ", key: 20251229, ok: true},
		{name: "month out of range", input: "2025-13-01", ok: false},
		{name: "day out of range", input: "2025-12-32", ok: false},
		{name: "slash month out of range", input: "01/13/2025", ok: false},
		{name: "not a date", input: "not-a-date", ok: false},
		{name: "empty", input: "", ok: false},
		{name: "blank", input: "   ", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := DeadlineKey(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.key, key)
			}
		})
	}
}

func TestDeadlineKeyOrderPreserving(t *testing.T) {
	// Chronological order in any recognized format must map to increasing keys.
	ordered := []string{
		"31/12/2024",
		"2025-01-05",
		"2025-1-31",
		"2025-02-01T09:00",
		"28/2/2025",
		"2025-12-29",
	}
	var prev DateKey
	for i, s := range ordered {
		key, ok := DeadlineKey(s)
		assert.True(t, ok, "expected %q to parse", s)
		if i > 0 {
			assert.Greater(t, key, prev, "%q must sort after its predecessor", s)
		}
		prev = key
	}
}
