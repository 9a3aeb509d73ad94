package diagnostics

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by step on every reading.
func fakeClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestCollector(t *testing.T) {
	// --- Arrange ---
	c := NewCollector(2)
	c.now = fakeClock(time.Second)

	// --- Act ---
	stop := c.Start(PhaseWriteSeries)
	stop()
	stop = c.Start(PhaseWriteSeries)
	stop()
	c.Record(FileStat{Variable: "ts0", Status: StatusComplete, Bytes: 10, Records: 5, Worker: 99})
	snap := c.Snapshot()
	c.Record(FileStat{Variable: "ts1"})

	// --- Assert ---
	assert.Equal(t, 2, snap.Worker)
	assert.Equal(t, 2*time.Second, snap.Timers[PhaseWriteSeries])
	require.Len(t, snap.Files, 1, "snapshot must not see later records")
	assert.Equal(t, 2, snap.Files[0].Worker, "worker is set by the collector")
}

func TestMerge(t *testing.T) {
	// --- Arrange ---
	boom := errors.New("disk full")
	a := &Snapshot{
		Worker: 0,
		Timers: map[string]time.Duration{PhaseTotal: 3 * time.Second, PhaseClassify: time.Second, "custom": time.Millisecond},
		Files: []FileStat{
			{Variable: "ts2", Worker: 0, Status: StatusComplete, Bytes: 100, Records: 50},
		},
	}
	b := &Snapshot{
		Worker: 1,
		Timers: map[string]time.Duration{PhaseTotal: 5 * time.Second, PhaseClassify: 2 * time.Second},
		Files: []FileStat{
			{Variable: "ts1", Worker: 1, Status: StatusFailed, Err: boom},
			{Variable: "ts0", Worker: 1, Status: StatusComplete, Bytes: 200, Records: 50},
		},
	}

	// --- Act ---
	r := Merge(a, nil, b)

	// --- Assert ---
	assert.Equal(t, 2, r.Workers)
	assert.Equal(t, int64(300), r.Bytes)
	assert.Equal(t, 100, r.Records)
	require.Len(t, r.Files, 3)
	assert.Equal(t, []string{"ts0", "ts1", "ts2"}, []string{r.Files[0].Variable, r.Files[1].Variable, r.Files[2].Variable})
	assert.Equal(t, []Timer{
		{Phase: PhaseClassify, Max: 2 * time.Second},
		{Phase: PhaseTotal, Max: 5 * time.Second},
		{Phase: "custom", Max: time.Millisecond},
	}, r.Timers)

	failed := r.Failed()
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Err, boom)

	total, ok := r.Timer(PhaseTotal)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, total)
	_, ok = r.Timer(PhaseDistribute)
	assert.False(t, ok)
}

func TestReport_Write(t *testing.T) {
	r := Merge(&Snapshot{
		Worker: 0,
		Timers: map[string]time.Duration{PhaseTotal: 1500 * time.Millisecond},
		Files: []FileStat{
			{Variable: "ts0", Path: "out/ts0.nc", Status: StatusComplete, Bytes: 2_000_000, Records: 50},
			{Variable: "ts1", Path: "out/ts1.nc", Status: StatusFailed, Err: errors.New("permission denied")},
		},
	})

	t.Run("silent", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, r.Write(&buf, 0))
		assert.Empty(t, buf.String())
	})

	t.Run("summary", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, r.Write(&buf, 1))
		out := buf.String()
		assert.Contains(t, out, "Converted 1 of 2 outputs with 1 workers: 2.0 MB, 50 records.")
		assert.Contains(t, out, "out/ts0.nc")
		assert.Contains(t, out, "permission denied")
		assert.NotContains(t, out, "PHASE")
	})

	t.Run("timers", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, r.Write(&buf, 2))
		assert.Contains(t, buf.String(), "PHASE")
		assert.Contains(t, buf.String(), "1.5s")
	})
}
