// Package store persists extracted flood peak events as a single JSON
// document with a watermark. The document is append-only from the core's
// point of view: events are merged in, never rewritten or removed, and the
// watermark only moves forward.
//
// Unknown top-level fields in the document are preserved verbatim across
// rewrites so callers can attach their own metadata without this package
// knowing about it.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hondrospj/bivalve-flooding-finaltest/internal/domain"
)

// Reserved top-level keys of the store document. Everything else is caller
// metadata and passes through untouched.
const (
	keyWatermark  = "watermark"
	keyThresholds = "thresholds"
	keyEvents     = "events"
)

// eventKey is the composite identity of a stored event. Values are rounded
// before events are created, so float equality is exact here.
type eventKey struct {
	unixNano int64
	value    float64
}

// Store is an in-memory working copy of the persisted document. It is not
// safe for concurrent use; the pipeline is single-writer by design, and two
// processes sharing one file must be serialized externally.
type Store struct {
	path       string
	watermark  time.Time
	thresholds domain.ThresholdSet
	events     []domain.PeakEvent
	seen       map[eventKey]struct{}
	extra      map[string]json.RawMessage
}

// Open loads the document at path, or returns a fresh store seeded with the
// given thresholds when the file does not exist yet.
func Open(path string, thresholds domain.ThresholdSet) (*Store, error) {
	s := &Store{
		path:       path,
		thresholds: thresholds,
		seen:       make(map[eventKey]struct{}),
		extra:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store %s: %w", path, err)
	}
	if err := s.unmarshal(data); err != nil {
		return nil, fmt.Errorf("parse store %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) unmarshal(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	if raw, ok := doc[keyWatermark]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &s.watermark); err != nil {
			return fmt.Errorf("watermark: %w", err)
		}
	}
	if raw, ok := doc[keyThresholds]; ok {
		if err := json.Unmarshal(raw, &s.thresholds); err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
	}
	if raw, ok := doc[keyEvents]; ok {
		if err := json.Unmarshal(raw, &s.events); err != nil {
			return fmt.Errorf("events: %w", err)
		}
	}

	delete(doc, keyWatermark)
	delete(doc, keyThresholds)
	delete(doc, keyEvents)
	s.extra = doc

	for _, e := range s.events {
		s.seen[keyOf(e)] = struct{}{}
	}
	return nil
}

func keyOf(e domain.PeakEvent) eventKey {
	return eventKey{unixNano: e.Time.UnixNano(), value: e.Value}
}

// Merge inserts events whose (timestamp, value) identity is not already
// present and re-sorts the collection chronologically. Merging the same
// batch twice is a no-op the second time, and batches may arrive in any
// order relative to each other. Returns the newly added events and the
// number of duplicates skipped.
func (s *Store) Merge(events []domain.PeakEvent) (added []domain.PeakEvent, duplicates int) {
	for _, e := range events {
		k := keyOf(e)
		if _, ok := s.seen[k]; ok {
			duplicates++
			continue
		}
		s.seen[k] = struct{}{}
		s.events = append(s.events, e)
		added = append(added, e)
	}

	if len(added) > 0 {
		sort.SliceStable(s.events, func(i, j int) bool {
			return s.events[i].Time.Before(s.events[j].Time)
		})
	}
	return added, duplicates
}

// AdvanceWatermark moves the watermark forward to candidate if it is later
// than the current value. The watermark never goes backwards. Returns true
// if it moved. Callers must pass the newest sample instant observed in the
// pass, not the newest peak, so quiet windows still advance it.
func (s *Store) AdvanceWatermark(candidate time.Time) bool {
	if !candidate.After(s.watermark) {
		return false
	}
	s.watermark = candidate
	return true
}

// Watermark returns the latest fully-processed instant, zero if no pass has
// completed yet.
func (s *Store) Watermark() time.Time { return s.watermark }

// Thresholds returns the threshold set recorded in the document.
func (s *Store) Thresholds() domain.ThresholdSet { return s.thresholds }

// Events returns a copy of the stored events in chronological order.
func (s *Store) Events() []domain.PeakEvent {
	out := make([]domain.PeakEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the number of stored events.
func (s *Store) Len() int { return len(s.events) }

// Path returns the on-disk location of the document.
func (s *Store) Path() string { return s.path }

// Save writes the document atomically: marshal to a temp file in the same
// directory, then rename over the target. A failed save leaves the previous
// file byte-for-byte intact.
func (s *Store) Save() error {
	doc := make(map[string]any, len(s.extra)+3)
	for k, v := range s.extra {
		doc[k] = v
	}
	if s.watermark.IsZero() {
		doc[keyWatermark] = nil
	} else {
		doc[keyWatermark] = s.watermark.UTC()
	}
	doc[keyThresholds] = s.thresholds
	if s.events == nil {
		doc[keyEvents] = []domain.PeakEvent{}
	} else {
		doc[keyEvents] = s.events
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp store: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
