package domain

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testThresholds = ThresholdSet{MinorLow: 2.0, ModerateLow: 3.0, MajorLow: 3.9}

func newTestExtractor(t *testing.T, minSeparation time.Duration) *Extractor {
	t.Helper()
	e, err := NewExtractor(testThresholds, minSeparation, DefaultPrecision)
	require.NoError(t, err)
	return e
}

// series builds samples spaced one hour apart starting at a fixed base time.
func series(values ...float64) []Sample {
	base := time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)
	samples := make([]Sample, len(values))
	for i, v := range values {
		samples[i] = Sample{Time: base.Add(time.Duration(i) * time.Hour), Value: v}
	}
	return samples
}

func TestNewExtractor_ConfigErrors(t *testing.T) {
	t.Run("descending thresholds", func(t *testing.T) {
		_, err := NewExtractor(ThresholdSet{MinorLow: 3, ModerateLow: 2, MajorLow: 4}, time.Hour, 3)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("equal thresholds", func(t *testing.T) {
		_, err := NewExtractor(ThresholdSet{MinorLow: 2, ModerateLow: 2, MajorLow: 4}, time.Hour, 3)
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("non-finite threshold", func(t *testing.T) {
		_, err := NewExtractor(ThresholdSet{MinorLow: 2, ModerateLow: math.NaN(), MajorLow: 4}, time.Hour, 3)
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("non-positive separation", func(t *testing.T) {
		_, err := NewExtractor(testThresholds, 0, 3)
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("precision out of range", func(t *testing.T) {
		_, err := NewExtractor(testThresholds, time.Hour, 12)
		assert.ErrorIs(t, err, ErrConfig)
	})
}

func TestExtract_TooFewSamples(t *testing.T) {
	e := newTestExtractor(t, time.Hour)

	assert.Empty(t, e.Extract(nil))
	assert.Empty(t, e.Extract(series(5.0)))
	assert.Empty(t, e.Extract(series(5.0, 4.0)))
}

func TestExtract_SingleRiseAndFall(t *testing.T) {
	e := newTestExtractor(t, time.Hour)

	events := e.Extract(series(1.0, 2.0, 3.5, 2.5, 1.0))

	require.Len(t, events, 1)
	assert.Equal(t, 3.5, events[0].Value)
	assert.Equal(t, TierModerate, events[0].Tier)
	assert.Equal(t, time.Date(2024, time.April, 26, 2, 0, 0, 0, time.UTC), events[0].Time)
}

func TestExtract_FlatPlateauExcluded(t *testing.T) {
	e := newTestExtractor(t, 10*time.Hour)

	// Every interior point of the plateau has equal neighbors on both sides.
	events := e.Extract(series(1.0, 2.0, 2.0, 2.0, 2.0, 1.0))

	// Only the plateau edges qualify (equal on one side, lower on the other);
	// declustering then reduces them to the earlier one.
	require.Len(t, events, 1)
	assert.Equal(t, 2.0, events[0].Value)
	assert.Equal(t, time.Date(2024, time.April, 26, 1, 0, 0, 0, time.UTC), events[0].Time)
}

func TestExtract_DefensiveSort(t *testing.T) {
	e := newTestExtractor(t, time.Hour)
	base := time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

	shuffled := []Sample{
		{Time: base.Add(4 * time.Hour), Value: 1.0},
		{Time: base, Value: 1.0},
		{Time: base.Add(2 * time.Hour), Value: 3.5},
		{Time: base.Add(1 * time.Hour), Value: 2.0},
		{Time: base.Add(3 * time.Hour), Value: 2.5},
	}

	events := e.Extract(shuffled)

	require.Len(t, events, 1)
	assert.Equal(t, 3.5, events[0].Value)
}

func TestExtract_InputNotMutated(t *testing.T) {
	e := newTestExtractor(t, time.Hour)
	base := time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

	input := []Sample{
		{Time: base.Add(time.Hour), Value: 2.0},
		{Time: base, Value: 1.0},
	}
	want := make([]Sample, len(input))
	copy(want, input)

	e.Extract(input)

	assert.Empty(t, cmp.Diff(want, input))
}

func TestExtract_Declustering(t *testing.T) {
	t.Run("larger value wins within window", func(t *testing.T) {
		e := newTestExtractor(t, 10*time.Hour)

		// Two true maxima 4h apart, inside the 10h window.
		events := e.Extract(series(1.0, 3.0, 2.0, 2.2, 2.1, 3.4, 1.0))

		require.Len(t, events, 1)
		assert.Equal(t, 3.4, events[0].Value)
	})

	t.Run("exact tie keeps the earlier crest", func(t *testing.T) {
		e := newTestExtractor(t, 10*time.Hour)

		events := e.Extract(series(1.0, 3.0, 2.0, 2.2, 2.1, 3.0, 1.0))

		require.Len(t, events, 1)
		assert.Equal(t, 3.0, events[0].Value)
		assert.Equal(t, time.Date(2024, time.April, 26, 1, 0, 0, 0, time.UTC), events[0].Time)
	})

	t.Run("separated maxima both survive", func(t *testing.T) {
		e := newTestExtractor(t, 2*time.Hour)

		events := e.Extract(series(1.0, 3.0, 2.0, 1.5, 3.4, 1.0))

		require.Len(t, events, 2)
		assert.Equal(t, 3.0, events[0].Value)
		assert.Equal(t, 3.4, events[1].Value)
	})
}

// The two canonical end-to-end scenarios: same series, different separation.
func TestExtract_SurgeScenarios(t *testing.T) {
	base := time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)
	samples := []Sample{
		{Time: base, Value: 1.0},
		{Time: base.Add(1 * time.Hour), Value: 3.0},
		{Time: base.Add(2 * time.Hour), Value: 2.0},
		{Time: base.Add(3 * time.Hour), Value: 1.5},
		{Time: base.Add(4 * time.Hour), Value: 4.0},
		{Time: base.Add(5 * time.Hour), Value: 2.0},
	}

	t.Run("short separation reports both crests", func(t *testing.T) {
		e := newTestExtractor(t, 2*time.Hour)

		events := e.Extract(samples)

		require.Len(t, events, 2)
		assert.Equal(t, 3.0, events[0].Value)
		assert.Equal(t, TierModerate, events[0].Tier)
		assert.Equal(t, 4.0, events[1].Value)
		assert.Equal(t, TierMajor, events[1].Tier)
	})

	t.Run("wide separation collapses to the higher crest", func(t *testing.T) {
		e := newTestExtractor(t, 6*time.Hour)

		events := e.Extract(samples)

		require.Len(t, events, 1)
		assert.Equal(t, 4.0, events[0].Value)
		assert.Equal(t, base.Add(4*time.Hour), events[0].Time)
		assert.Equal(t, TierMajor, events[0].Tier)
	})
}

func TestExtract_RoundsToPrecision(t *testing.T) {
	e, err := NewExtractor(testThresholds, time.Hour, 2)
	require.NoError(t, err)

	events := e.Extract(series(1.0, 3.14159, 1.0))

	require.Len(t, events, 1)
	assert.Equal(t, 3.14, events[0].Value)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  Tier
	}{
		{"below everything", 1.0, TierBelow},
		{"exactly at minor bound", 2.0, TierMinor},
		{"between minor and moderate", 2.9, TierMinor},
		{"exactly at moderate bound", 3.0, TierModerate},
		{"exactly at major bound", 3.9, TierMajor},
		{"above major", 10.0, TierMajor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, testThresholds.Classify(tt.value))
		})
	}
}

func TestCleanSamples(t *testing.T) {
	base := time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)
	input := []Sample{
		{Time: base, Value: 1.5},
		{Time: base.Add(time.Hour), Value: math.NaN()},
		{Time: base.Add(2 * time.Hour), Value: math.Inf(1)},
		{Time: base.Add(3 * time.Hour), Value: 2.5},
	}

	kept, dropped := CleanSamples(input)

	assert.Equal(t, 2, dropped)
	require.Len(t, kept, 2)
	assert.Equal(t, 1.5, kept[0].Value)
	assert.Equal(t, 2.5, kept[1].Value)
}
