// Package model holds the Gauss coefficient table that drives spherical-
// harmonic field synthesis: the embedded IGRF-13 table, the parser for the
// standard coefficient text format, and epoch selection/interpolation.
//
// A Table is immutable after construction and safe for unsynchronized
// concurrent reads; synthesis calls never mutate it.
package model

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mag/maggo/internal/model/data"
)

const (
	// ReferenceRadiusKm is the magnetic reference spherical radius of the
	// IGRF model. All radius-ratio powers in the synthesis use this value.
	ReferenceRadiusKm = 6371.2

	// EpochStepYears is the tabulated epoch spacing.
	EpochStepYears = 5.0

	// BufferYears extends the validity window beyond the last epoch.
	// Dates at or past lastEpoch+BufferYears are rejected.
	BufferYears = 10.0

	// HorizonYears is the stated linear-extrapolation confidence horizon.
	// Dates beyond lastEpoch+HorizonYears still evaluate but trigger an
	// accuracy-degraded advisory.
	HorizonYears = 5.0

	// degree13TransitionYear is the first epoch tabulated to degree 13.
	// Earlier epochs carry coefficients to degree 10 only.
	degree13TransitionYear = 1995.0
)

// CoefficientSet is one epoch's Gauss coefficients in canonical order:
// for each degree n = 1..MaxDegree, g(n,0) followed by g(n,m), h(n,m) for
// m = 1..n. A degree-N set holds exactly N*(N+2) values.
type CoefficientSet struct {
	Epoch     float64
	MaxDegree int
	GH        []float64 // nT (or nT/year for a secular-variation set)
}

// coefficientCount returns the canonical GH length for a degree-n set.
func coefficientCount(n int) int {
	return n * (n + 2)
}

// degreeForLength inverts coefficientCount, up to the fixed maximum
// degree the synthesis supports.
func degreeForLength(c int) (int, error) {
	for n := 1; n <= 13; n++ {
		if coefficientCount(n) == c {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%d coefficients does not match any degree up to 13", c)
}

// Table is an ordered collection of epoch-tagged coefficient sets terminated
// by one secular-variation set valid from the final epoch onward.
type Table struct {
	source string
	sets   []CoefficientSet
	sv     CoefficientSet
}

// NewTable validates and assembles a Table. Epochs must be strictly
// increasing and every set's GH length must match its degree.
func NewTable(source string, sets []CoefficientSet, sv CoefficientSet) (*Table, error) {
	if len(sets) < 2 {
		return nil, fmt.Errorf("coefficient table needs at least two epochs, got %d", len(sets))
	}
	for i, s := range sets {
		if len(s.GH) != coefficientCount(s.MaxDegree) {
			return nil, fmt.Errorf("epoch %.1f: %d coefficients, expected %d for degree %d",
				s.Epoch, len(s.GH), coefficientCount(s.MaxDegree), s.MaxDegree)
		}
		if i > 0 && s.Epoch <= sets[i-1].Epoch {
			return nil, fmt.Errorf("epochs not strictly increasing at %.1f", s.Epoch)
		}
	}
	if len(sv.GH) != coefficientCount(sv.MaxDegree) {
		return nil, fmt.Errorf("secular variation: %d coefficients, expected %d for degree %d",
			len(sv.GH), coefficientCount(sv.MaxDegree), sv.MaxDegree)
	}
	return &Table{source: source, sets: sets, sv: sv}, nil
}

// Source identifies where the table came from ("embedded", "cache", a URL).
func (t *Table) Source() string { return t.source }

// FirstEpoch returns the earliest tabulated epoch year.
func (t *Table) FirstEpoch() float64 { return t.sets[0].Epoch }

// LastEpoch returns the final tabulated epoch year.
func (t *Table) LastEpoch() float64 { return t.sets[len(t.sets)-1].Epoch }

// MinDate is the inclusive lower bound of the supported date range.
func (t *Table) MinDate() float64 { return t.FirstEpoch() }

// MaxDate is the exclusive upper bound of the supported date range.
func (t *Table) MaxDate() float64 { return t.LastEpoch() + BufferYears }

// HorizonDate is the last date covered by the stated linear-validity
// horizon; beyond it synthesis emits an accuracy-degraded advisory.
func (t *Table) HorizonDate() float64 { return t.LastEpoch() + HorizonYears }

// MaxDegree returns the highest spherical-harmonic degree in the table.
func (t *Table) MaxDegree() int {
	max := 0
	for _, s := range t.sets {
		if s.MaxDegree > max {
			max = s.MaxDegree
		}
	}
	return max
}

// Epochs returns the tabulated epoch years in order.
func (t *Table) Epochs() []float64 {
	out := make([]float64, len(t.sets))
	for i, s := range t.sets {
		out[i] = s.Epoch
	}
	return out
}

// SecularVariation returns the trailing rate-of-change coefficient set.
func (t *Table) SecularVariation() CoefficientSet { return t.sv }

// Set returns the coefficient set for an exact epoch year, if present.
func (t *Table) Set(epoch float64) (CoefficientSet, bool) {
	for _, s := range t.sets {
		if s.Epoch == epoch {
			return s, true
		}
	}
	return CoefficientSet{}, false
}

// ParseCoefficients reads a coefficient table in the standard IAGA
// igrfNNcoeffs.txt format: comment lines starting with '#', a "c/s" column
// header, a "g/h" header carrying the epoch years (last column is the
// secular-variation span), then one row per (g/h, n, m) coefficient.
//
// Malformed value cells abort the parse; the table is compile-time data and
// a partial table would silently corrupt every synthesis.
func ParseCoefficients(r io.Reader, source string, logger *slog.Logger) (*Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	var epochs []float64
	var columns [][]float64 // one slice per epoch column, plus SV last
	rows := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "c/s") {
			continue
		}
		fields := strings.Fields(line)

		if fields[0] == "g/h" {
			// Header row: years in columns 4..len-1; the last column is the
			// secular-variation span (e.g. "2020-25") and is not a year.
			if len(fields) < 5 {
				return nil, fmt.Errorf("malformed header row: %q", line)
			}
			for _, f := range fields[3 : len(fields)-1] {
				y, err := strconv.ParseFloat(f, 64)
				if err != nil {
					return nil, fmt.Errorf("parsing epoch year %q: %w", f, err)
				}
				epochs = append(epochs, y)
			}
			columns = make([][]float64, len(epochs)+1)
			continue
		}

		if columns == nil {
			return nil, fmt.Errorf("coefficient row before g/h header: %q", line)
		}
		if len(fields) != 3+len(columns) {
			return nil, fmt.Errorf("row %d: %d fields, expected %d", rows+1, len(fields), 3+len(columns))
		}
		if fields[0] != "g" && fields[0] != "h" {
			return nil, fmt.Errorf("row %d: coefficient kind %q", rows+1, fields[0])
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: degree %q: %w", rows+1, fields[1], err)
		}

		for col := range columns {
			v, err := strconv.ParseFloat(fields[3+col], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", rows+1, col, err)
			}
			// Degree-10 epochs only store coefficients up to degree 10;
			// the file pads them with zeros which we drop.
			if col < len(epochs) && epochs[col] < degree13TransitionYear && n > 10 {
				continue
			}
			columns[col] = append(columns[col], v)
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading coefficient data: %w", err)
	}
	if len(epochs) == 0 {
		return nil, fmt.Errorf("no g/h header found")
	}

	sets := make([]CoefficientSet, len(epochs))
	for i, epoch := range epochs {
		deg, err := degreeForLength(len(columns[i]))
		if err != nil {
			return nil, fmt.Errorf("epoch %.1f: %w", epoch, err)
		}
		sets[i] = CoefficientSet{Epoch: epoch, MaxDegree: deg, GH: columns[i]}
	}
	svGH := columns[len(columns)-1]
	svDeg, err := degreeForLength(len(svGH))
	if err != nil {
		return nil, fmt.Errorf("secular variation: %w", err)
	}
	sv := CoefficientSet{Epoch: epochs[len(epochs)-1], MaxDegree: svDeg, GH: svGH}

	table, err := NewTable(source, sets, sv)
	if err != nil {
		return nil, err
	}
	logger.Info("coefficient table parsed",
		"source", source,
		"epochs", len(epochs),
		"first_epoch", table.FirstEpoch(),
		"last_epoch", table.LastEpoch(),
		"max_degree", table.MaxDegree(),
		"rows", rows,
	)
	return table, nil
}

var defaultTable = sync.OnceValue(func() *Table {
	t, err := ParseCoefficients(bytes.NewReader(data.IGRF13), "embedded", slog.Default())
	if err != nil {
		// The embedded table is fixed at compile time; failing to parse it
		// is a build defect, not a runtime condition.
		panic(fmt.Sprintf("embedded IGRF-13 table is invalid: %v", err))
	}
	return t
})

// Default returns the process-wide table parsed from the embedded IGRF-13
// data. The parse runs once; the result is shared and read-only.
func Default() *Table {
	return defaultTable()
}

// DecimalYear converts a time to the fractional-year form the synthesis
// takes as input (e.g. 2020-07-02 00:00 UTC is roughly 2020.5).
func DecimalYear(t time.Time) float64 {
	t = t.UTC()
	start := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(t.Year()+1, 1, 1, 0, 0, 0, 0, time.UTC)
	return float64(t.Year()) + float64(t.Sub(start))/float64(end.Sub(start))
}
