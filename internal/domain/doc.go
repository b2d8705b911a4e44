// Package domain models water-level observations and the flood peak events
// derived from them.
//
// # Data Source
//
// Water-level series come from river and tide gauge feeds (e.g. USGS NWIS
// instantaneous values). Gauges typically report every 6 or 15 minutes in the
// station's native datum, and a storm surge shows up as a broad rise with
// minor oscillation riding on top of it. The adapters fetch and parse the
// upstream formats; this package only ever sees an ordered []Sample.
//
// # Peak Extraction
//
// A flood peak is a local maximum of the series that survives declustering:
// nearby candidate maxima separated by less than a minimum duration collapse
// to the single highest crest, because one surge produces one true crest amid
// sensor noise and harmonic wobble. The default separation of 300 minutes is
// roughly half a semidiurnal tidal cycle.
//
// # Severity Tiers
//
// Peaks are classified against three station-specific stage thresholds,
// mirroring the NWS flood category ladder (action/minor/moderate/major):
//
//	value >= MajorLow     → major
//	value >= ModerateLow  → moderate
//	value >= MinorLow     → minor
//	otherwise             → below
//
// Bounds are lower-inclusive and checked highest-first.
//
// # Deduplication
//
// Event values are rounded to a fixed precision (default 3 decimals) before
// anything else sees them, so the composite identity (timestamp, value) is
// stable across refetches of the same window. This enables idempotent merges
// into the event cache and replay safety without coordination.
package domain
