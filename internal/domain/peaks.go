package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultMinSeparation is the minimum time between two distinct reported
// peaks: roughly half a semidiurnal tidal cycle, so one surge cannot be
// reported twice off its own oscillation.
const DefaultMinSeparation = 300 * time.Minute

// DefaultPrecision is the number of decimal places event values are rounded
// to before they acquire an identity. Gauge feeds carry sub-millimeter noise
// that would otherwise defeat deduplication.
const DefaultPrecision = 3

// Extractor reduces a water-level series to classified flood peak events.
// It is a pure transform: the same input always yields the same output.
type Extractor struct {
	thresholds    ThresholdSet
	minSeparation time.Duration
	precision     int
}

// NewExtractor validates the configuration and returns an Extractor.
// A non-ascending threshold set fails with ErrConfig before any series is
// processed.
func NewExtractor(thresholds ThresholdSet, minSeparation time.Duration, precision int) (*Extractor, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if minSeparation <= 0 {
		return nil, fmt.Errorf("%w: min separation must be positive, got %s", ErrConfig, minSeparation)
	}
	if precision < 0 || precision > 9 {
		return nil, fmt.Errorf("%w: precision must be in [0,9], got %d", ErrConfig, precision)
	}
	return &Extractor{
		thresholds:    thresholds,
		minSeparation: minSeparation,
		precision:     precision,
	}, nil
}

// Thresholds returns the threshold set the extractor classifies against.
func (e *Extractor) Thresholds() ThresholdSet { return e.thresholds }

// Extract finds local maxima, declusters them, and classifies the survivors.
// The input is defensively sorted by timestamp rather than trusted. Fewer
// than 3 samples yield no events: there is no interior point to compare.
func (e *Extractor) Extract(samples []Sample) []PeakEvent {
	if len(samples) < 3 {
		return nil
	}

	ordered := make([]Sample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Time.Before(ordered[j].Time)
	})

	candidates := localMaxima(ordered)
	peaks := decluster(candidates, e.minSeparation)

	events := make([]PeakEvent, 0, len(peaks))
	for _, p := range peaks {
		value := roundTo(p.Value, e.precision)
		events = append(events, PeakEvent{
			Time:  p.Time,
			Value: value,
			Tier:  e.thresholds.Classify(value),
		})
	}
	return events
}

// localMaxima returns every interior sample at least as high as both
// neighbors. An exactly flat triple is skipped: a plateau is not a
// distinguishable crest and would emit one candidate per plateau sample.
func localMaxima(samples []Sample) []Sample {
	var candidates []Sample
	for i := 1; i < len(samples)-1; i++ {
		prev, cur, next := samples[i-1].Value, samples[i].Value, samples[i+1].Value
		if cur < prev || cur < next {
			continue
		}
		if cur == prev && cur == next {
			continue
		}
		candidates = append(candidates, samples[i])
	}
	return candidates
}

// decluster collapses candidates closer than minSeparation to one
// representative per cluster. Within a cluster a new candidate takes over
// only when strictly higher; on an exact tie the earlier-observed crest
// stands. Candidates must be in time order.
func decluster(candidates []Sample, minSeparation time.Duration) []Sample {
	if len(candidates) == 0 {
		return nil
	}

	var peaks []Sample
	rep := candidates[0]
	for _, c := range candidates[1:] {
		if c.Time.Sub(rep.Time) < minSeparation {
			if c.Value > rep.Value {
				rep = c
			}
			continue
		}
		peaks = append(peaks, rep)
		rep = c
	}
	return append(peaks, rep)
}

// roundTo rounds half away from zero at the given number of decimals.
func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
