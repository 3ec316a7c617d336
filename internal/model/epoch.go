package model

import "fmt"

// OutOfRangeError reports a date outside the table's supported window
// [MinDate, MaxDate). Synthesis rejects the date before any computation.
type OutOfRangeError struct {
	Date float64
	Min  float64 // inclusive
	Max  float64 // exclusive
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("date %.4f outside supported range [%.1f, %.1f)", e.Date, e.Min, e.Max)
}

// Interpolant is the epoch selector's output: two coefficient sets and the
// blend weights to apply to them, the truncated maximum degree for the
// bracket, and whether the date lies beyond the linear-validity horizon.
type Interpolant struct {
	lo, hi []float64
	WLo    float64
	WHi    float64

	// MaxDegree is the degree the synthesis must truncate to for this
	// bracket (10 when either side is a degree-10 set).
	MaxDegree int

	// BeyondHorizon marks dates past the stated extrapolation confidence
	// horizon. Informational only; it never blocks computation.
	BeyondHorizon bool
}

// Coefficient returns the blended coefficient at the canonical 1-based
// index. Indices beyond a set's stored length read as zero, which is how
// degree-10 sets blend against degree-13 sets.
func (ip Interpolant) Coefficient(idx int) float64 {
	var v float64
	if idx <= len(ip.lo) {
		v += ip.WLo * ip.lo[idx-1]
	}
	if idx <= len(ip.hi) {
		v += ip.WHi * ip.hi[idx-1]
	}
	return v
}

// CoefficientCount returns the number of canonical indices the synthesis
// walks for this bracket's degree.
func (ip Interpolant) CoefficientCount() int {
	return coefficientCount(ip.MaxDegree)
}

// Select picks the coefficient sets bracketing date and computes blend
// weights. With rate=false the weights produce the linearly interpolated
// field value; with rate=true they produce its time derivative.
//
// Dates at or after the final epoch blend the final set against the
// secular-variation set: value mode keeps weight 1.0 on the base set and
// adds (date − lastEpoch) years of the secular rate; rate mode returns the
// secular rate alone.
func (t *Table) Select(date float64, rate bool) (Interpolant, error) {
	if date < t.MinDate() || date >= t.MaxDate() {
		return Interpolant{}, &OutOfRangeError{Date: date, Min: t.MinDate(), Max: t.MaxDate()}
	}

	ip := Interpolant{BeyondHorizon: date > t.HorizonDate()}

	last := t.sets[len(t.sets)-1]
	if date >= last.Epoch {
		ip.lo = last.GH
		ip.hi = t.sv.GH
		ip.MaxDegree = last.MaxDegree
		if t.sv.MaxDegree > ip.MaxDegree {
			ip.MaxDegree = t.sv.MaxDegree
		}
		if rate {
			ip.WLo, ip.WHi = 0, 1
		} else {
			ip.WLo, ip.WHi = 1, date-last.Epoch
		}
		return ip, nil
	}

	// Find the bracketing pair. The table is small (26 sets for IGRF-13);
	// a linear scan keeps this robust against non-uniform spacing.
	i := 0
	for i < len(t.sets)-2 && date >= t.sets[i+1].Epoch {
		i++
	}
	lo, hi := t.sets[i], t.sets[i+1]

	step := hi.Epoch - lo.Epoch
	frac := (date - lo.Epoch) / step

	ip.lo = lo.GH
	ip.hi = hi.GH
	ip.MaxDegree = lo.MaxDegree
	if hi.MaxDegree < ip.MaxDegree {
		ip.MaxDegree = hi.MaxDegree
	}
	if rate {
		// Derivative of the linear blend is constant over the bracket.
		ip.WLo, ip.WHi = -1/step, 1/step
	} else {
		ip.WLo, ip.WHi = 1-frac, frac
	}
	return ip, nil
}
