package formatter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		name string
		min  int
		want string
	}{
		{"zero", 0, "0m"},
		{"under an hour", 45, "45m"},
		{"exact hours", 120, "2h"},
		{"hours and minutes", 450, "7h 30m"},
		{"single digit minutes padded", 65, "1h 05m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMinutes(tt.min))
		})
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "0:00:00"},
		{"seconds only", 42 * time.Second, "0:00:42"},
		{"minutes roll over", 61 * time.Minute, "1:01:00"},
		{"long session", 14*time.Hour + 5*time.Minute + 9*time.Second, "14:05:09"},
		{"negative clamps to zero", -time.Minute, "0:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatElapsed(tt.d))
		})
	}
}

func TestTruncID(t *testing.T) {
	assert.Equal(t, "short", TruncID("short"))
	assert.Equal(t, "abcdef12", TruncID("abcdef1234567890"))
	assert.Equal(t, "12345678", TruncID("12345678"))
}

func TestRenderProgress(t *testing.T) {
	bar := RenderProgress(0.5, 10)
	assert.Contains(t, bar, strings.Repeat(filledBlock, 5)+strings.Repeat(emptyBlock, 5))
	assert.Contains(t, bar, "50%")

	full := RenderProgress(1.2, 10)
	assert.Contains(t, full, strings.Repeat(filledBlock, 10))
	assert.Contains(t, full, "120%", "display percentage is not clamped, only the bar")

	empty := RenderProgress(-0.5, 10)
	assert.Contains(t, empty, strings.Repeat(emptyBlock, 10))
	assert.Contains(t, empty, "0%")
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(
		[]string{"JOB", "TIME"},
		[][]string{
			{"acme", "2h"},
			{"internal", "45m"},
		},
	)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "JOB")
	assert.Contains(t, lines[1], "acme")

	// Second column starts at the same offset on every row.
	assert.Equal(t, strings.Index(lines[1], "2h"), strings.Index(lines[2], "45m"))
}

func TestRenderTable_Empty(t *testing.T) {
	assert.Equal(t, "", RenderTable(nil, nil))
}

func TestRenderBox_IncludesTitleAndContent(t *testing.T) {
	out := RenderBox("Week 2025-W23", "total 7h 30m")
	assert.Contains(t, out, "WEEK 2025-W23")
	assert.Contains(t, out, "total 7h 30m")
}
