package usgs

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hondrospj/bivalve-flooding-finaltest/internal/domain"
)

// noDataSentinels are the magic values NWIS uses for missing or suppressed
// readings. They are dropped, never surfaced as samples.
var noDataSentinels = map[string]struct{}{
	"-999999": {},
	"Ssn":     {},
	"Ice":     {},
	"Eqp":     {},
	"***":     {},
}

// ivDocument mirrors the slice of the NWIS instantaneous-values JSON payload
// we care about: value.timeSeries[].values[].value[]{value,dateTime}.
type ivDocument struct {
	Value struct {
		TimeSeries []struct {
			Values []struct {
				Value []ivPoint `json:"value"`
			} `json:"values"`
		} `json:"timeSeries"`
	} `json:"value"`
}

type ivPoint struct {
	Value    string `json:"value"`
	DateTime string `json:"dateTime"`
}

// ParseJSON decodes an NWIS instantaneous-values JSON payload into samples.
// Timestamps carry the station's UTC offset and are normalized to UTC.
func ParseJSON(r io.Reader) ([]domain.Sample, error) {
	var doc ivDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var samples []domain.Sample
	for _, ts := range doc.Value.TimeSeries {
		for _, block := range ts.Values {
			for _, p := range block.Value {
				s, ok := parsePoint(p.DateTime, p.Value)
				if !ok {
					continue
				}
				samples = append(samples, s)
			}
		}
	}
	return samples, nil
}

// ParseRDB decodes the tab-delimited RDB text format: comment lines starting
// with '#', a header row, a column-definition row (e.g. "5s 15s 20d"), then
// one data row per reading.
func ParseRDB(r io.Reader) ([]domain.Sample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		samples  []domain.Sample
		timeIdx  = -1
		tzIdx    = -1
		valueIdx = -1
		skipDefs bool
	)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")

		if timeIdx == -1 {
			// Header row: datetime, tz_cd, then the first non-code column
			// after datetime is the reading (e.g. "69928_00065").
			for i, name := range fields {
				switch {
				case name == "datetime":
					timeIdx = i
				case name == "tz_cd":
					tzIdx = i
				case valueIdx == -1 && timeIdx != -1 && i > timeIdx && !strings.HasSuffix(name, "_cd"):
					valueIdx = i
				}
			}
			if timeIdx == -1 || valueIdx == -1 {
				return nil, fmt.Errorf("rdb header missing datetime or value column: %q", line)
			}
			skipDefs = true
			continue
		}
		if skipDefs {
			// Column-definition row ("5s 15s 20d ..."), always follows the header.
			skipDefs = false
			continue
		}

		if len(fields) <= valueIdx || len(fields) <= timeIdx {
			continue
		}
		ts, err := parseRDBTime(fields[timeIdx], indexOrEmpty(fields, tzIdx))
		if err != nil {
			continue
		}
		raw := strings.TrimSpace(fields[valueIdx])
		if _, bad := noDataSentinels[raw]; bad || raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		samples = append(samples, domain.Sample{Time: ts, Value: v})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rdb: %w", err)
	}
	return samples, nil
}

func indexOrEmpty(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

// rdbZones maps NWIS timezone codes to fixed UTC offsets. Unknown codes fall
// back to UTC rather than dropping the reading.
var rdbZones = map[string]*time.Location{
	"UTC": time.UTC,
	"GMT": time.UTC,
	"EST": time.FixedZone("EST", -5*3600),
	"EDT": time.FixedZone("EDT", -4*3600),
	"CST": time.FixedZone("CST", -6*3600),
	"CDT": time.FixedZone("CDT", -5*3600),
	"MST": time.FixedZone("MST", -7*3600),
	"MDT": time.FixedZone("MDT", -6*3600),
	"PST": time.FixedZone("PST", -8*3600),
	"PDT": time.FixedZone("PDT", -7*3600),
}

func parseRDBTime(value, tz string) (time.Time, error) {
	loc := time.UTC
	if z, ok := rdbZones[strings.TrimSpace(tz)]; ok {
		loc = z
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// parsePoint converts one JSON reading, filtering sentinels and unparseable
// values.
func parsePoint(dateTime, value string) (domain.Sample, bool) {
	raw := strings.TrimSpace(value)
	if _, bad := noDataSentinels[raw]; bad || raw == "" {
		return domain.Sample{}, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return domain.Sample{}, false
	}
	ts, err := time.Parse(time.RFC3339, dateTime)
	if err != nil {
		// NWIS emits offsets without a colon in some deployments.
		ts, err = time.Parse("2006-01-02T15:04:05.000-0700", dateTime)
		if err != nil {
			return domain.Sample{}, false
		}
	}
	return domain.Sample{Time: ts.UTC(), Value: v}, true
}
