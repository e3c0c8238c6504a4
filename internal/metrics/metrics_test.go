package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestCollectorWritesMetricLines(t *testing.T) {
	var buf bytes.Buffer
	c := NewCollector(zerolog.New(&buf).Level(zerolog.DebugLevel))

	c.TickCompleted("run-1", 3, -1, -0.8, time.Millisecond)
	c.FoodConsumed("run-1", 4, 12, 7)
	c.RunSummary("run-1", 4, 1, -1, time.Second)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "tick_completed", lines[0]["metric"])
	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "food_consumed", lines[1]["metric"])
	assert.Equal(t, float64(12), lines[1]["from_state"])
	assert.Equal(t, float64(7), lines[1]["to_state"])
	assert.Equal(t, "run_summary", lines[2]["metric"])
	assert.Equal(t, float64(1), lines[2]["food_consumed"])
}

func TestTickMetricSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	c := NewCollector(zerolog.New(&buf).Level(zerolog.InfoLevel))

	c.TickCompleted("run-1", 1, -1, -0.8, time.Millisecond)
	assert.Zero(t, buf.Len())
}
