package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel errors for the two fatal failure classes. Callers match with
// errors.Is; everything fatal wraps one of these.
var (
	// ErrConfig marks missing or inconsistent configuration. Nothing is
	// fetched or written once a config error is detected.
	ErrConfig = errors.New("invalid configuration")

	// ErrSource marks an unreachable or malformed upstream feed. The
	// persisted cache is left untouched.
	ErrSource = errors.New("series source failure")
)

// Sample is one raw water-level observation. Samples are ephemeral: they are
// fetched, cleaned, reduced to peaks, and discarded.
type Sample struct {
	Time  time.Time `json:"timestamp"`
	Value float64   `json:"value"`
}

// Tier is the discrete flood severity classification of a peak.
type Tier string

const (
	TierBelow    Tier = "below"
	TierMinor    Tier = "minor"
	TierModerate Tier = "moderate"
	TierMajor    Tier = "major"
)

// PeakEvent is one extracted flood crest. Immutable once created: the cache
// only ever appends, never rewrites.
type PeakEvent struct {
	Time  time.Time `json:"timestamp"`
	Value float64   `json:"value"`
	Tier  Tier      `json:"tier"`
}

// ThresholdSet holds the three stage thresholds for a station, in ascending
// order: minor < moderate < major.
type ThresholdSet struct {
	MinorLow    float64 `json:"minor_low" koanf:"minor_low"`
	ModerateLow float64 `json:"moderate_low" koanf:"moderate_low"`
	MajorLow    float64 `json:"major_low" koanf:"major_low"`
}

// Validate checks that the thresholds are strictly ascending and finite.
func (t ThresholdSet) Validate() error {
	for _, v := range []float64{t.MinorLow, t.ModerateLow, t.MajorLow} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite threshold %v", ErrConfig, v)
		}
	}
	if !(t.MinorLow < t.ModerateLow && t.ModerateLow < t.MajorLow) {
		return fmt.Errorf("%w: thresholds must be strictly ascending (minor=%g moderate=%g major=%g)",
			ErrConfig, t.MinorLow, t.ModerateLow, t.MajorLow)
	}
	return nil
}

// Classify maps a value to its severity tier. Bounds are lower-inclusive and
// checked highest-first, so a value exactly at MajorLow is major, not
// moderate. Whether adjacent tiers were ever meant to be exclusive at the
// shared edge is undocumented upstream; the inclusive cascade is kept as-is.
func (t ThresholdSet) Classify(value float64) Tier {
	switch {
	case value >= t.MajorLow:
		return TierMajor
	case value >= t.ModerateLow:
		return TierModerate
	case value >= t.MinorLow:
		return TierMinor
	default:
		return TierBelow
	}
}

// CleanSamples drops samples with non-finite values and reports how many were
// removed. Gauge feeds emit NaN or infinity for failed readings; they must
// never reach extraction or produce an event.
func CleanSamples(samples []Sample) ([]Sample, int) {
	kept := samples[:0:0]
	dropped := 0
	for _, s := range samples {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			dropped++
			continue
		}
		kept = append(kept, s)
	}
	return kept, dropped
}
