// Command genseries writes a synthetic water-level series for exercising the
// extraction pipeline offline: a semidiurnal tide riding on a base stage,
// with optional storm surges injected as gaussian bumps. Output is the CSV
// shape the file source reads (timestamp,value).
//
// Usage:
//
//	go run ./cmd/genseries -out series.csv -start 2024-04-20T00:00:00Z \
//	  -days 10 -interval 15m -surge 2024-04-26T12:00:00Z:3.5
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// surge is one injected storm crest: a gaussian bump centered at t with the
// given peak height above the tide, decaying over ~6 hours.
type surge struct {
	center time.Time
	height float64
}

type surgeList []surge

func (s *surgeList) String() string { return fmt.Sprint(*s) }

func (s *surgeList) Set(value string) error {
	i := strings.LastIndex(value, ":")
	if i < 0 {
		return fmt.Errorf("surge %q: want RFC3339:height", value)
	}
	center, err := time.Parse(time.RFC3339, value[:i])
	if err != nil {
		return fmt.Errorf("surge %q: %w", value, err)
	}
	height, err := strconv.ParseFloat(value[i+1:], 64)
	if err != nil {
		return fmt.Errorf("surge %q: %w", value, err)
	}
	*s = append(*s, surge{center: center, height: height})
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output CSV path")
	startStr := flag.String("start", "", "series start (RFC3339)")
	days := flag.Int("days", 7, "number of days to generate")
	interval := flag.Duration("interval", 15*time.Minute, "sample spacing")
	base := flag.Float64("base", 1.2, "base stage")
	amplitude := flag.Float64("amplitude", 0.6, "tidal amplitude")

	var surges surgeList
	flag.Var(&surges, "surge", "storm surge as RFC3339:height, repeatable")
	flag.Parse()

	if *out == "" || *startStr == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out, -start")
	}
	start, err := time.Parse(time.RFC3339, *startStr)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "value"}); err != nil {
		return err
	}

	end := start.AddDate(0, 0, *days)
	count := 0
	for t := start; t.Before(end); t = t.Add(*interval) {
		v := stage(t, start, *base, *amplitude, surges)
		record := []string{t.UTC().Format(time.RFC3339), strconv.FormatFloat(v, 'f', 3, 64)}
		if err := w.Write(record); err != nil {
			return err
		}
		count++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	log.Printf("wrote %d samples to %s", count, *out)
	return nil
}

// stage computes the synthetic water level at t: base + semidiurnal tide +
// the sum of any surge bumps.
func stage(t, start time.Time, base, amplitude float64, surges surgeList) float64 {
	const tidalPeriod = 12.42 * 3600 // M2 constituent, seconds

	elapsed := t.Sub(start).Seconds()
	v := base + amplitude*math.Sin(2*math.Pi*elapsed/tidalPeriod)

	for _, s := range surges {
		dt := t.Sub(s.center).Hours()
		v += s.height * math.Exp(-(dt*dt)/(2*3*3)) // sigma = 3h
	}
	return v
}
