// Package synthesis evaluates the geomagnetic main field from a Gauss
// coefficient table: it selects and blends the epoch coefficients, converts
// the observation point to geocentric coordinates, walks the Legendre
// recurrence, and accumulates the three orthogonal field components.
//
// Every call is a deterministic, constant-time, allocation-local pure
// computation; an Evaluator is safe for unsynchronized concurrent use.
package synthesis

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mag/maggo/internal/frame"
	"github.com/mag/maggo/internal/metrics"
	"github.com/mag/maggo/internal/model"
)

// MinRadiusKm is the smallest geocentric radius the synthesis accepts.
// The potential-field expansion is meaningless inside the source region,
// so radii at or below the core–mantle boundary are rejected.
const MinRadiusKm = 3485.0

// Mode selects what the synthesis returns.
type Mode int

const (
	// ModeField returns the field value in nT.
	ModeField Mode = iota
	// ModeSecularVariation returns the annual rate of change in nT/year.
	ModeSecularVariation
)

// String returns the metric/log label for the mode.
func (m Mode) String() string {
	if m == ModeSecularVariation {
		return "secular_variation"
	}
	return "field"
}

// PointType selects how Request coordinates are interpreted.
type PointType int

const (
	// Geodetic: AltOrRadiusKm is height above the reference ellipsoid and
	// ColatDeg is geodetic colatitude.
	Geodetic PointType = iota
	// Geocentric: AltOrRadiusKm is distance from Earth's center and
	// ColatDeg is geocentric colatitude.
	Geocentric
)

// Request is one observation point and epoch. Angles are in degrees at this
// interface (radians internally), lengths in kilometers.
type Request struct {
	Date          float64 // decimal year, e.g. 2020.0
	Point         PointType
	AltOrRadiusKm float64
	ColatDeg      float64 // [0, 180]; 0 at the north pole
	ElongDeg      float64 // east longitude, [0, 360]
}

// GeodeticRequest builds a Request from the usual latitude/longitude form:
// latitude in degrees north, longitude in degrees east (any sign, normalized
// to [0, 360)), altitude in km above the ellipsoid.
func GeodeticRequest(date, latDeg, lonDeg, altKm float64) Request {
	lon := math.Mod(lonDeg, 360)
	if lon < 0 {
		lon += 360
	}
	return Request{
		Date:          date,
		Point:         Geodetic,
		AltOrRadiusKm: altKm,
		ColatDeg:      90 - latDeg,
		ElongDeg:      lon,
	}
}

// FieldVector is the synthesized field in the input frame: North, East, and
// Vertical (positive down) in nT, plus the total intensity. In secular-
// variation mode the components are nT/year and Total is just the norm of
// the rate vector, not a field intensity; callers should ignore it.
type FieldVector struct {
	North    float64 `json:"x"`
	East     float64 `json:"y"`
	Vertical float64 `json:"z"`
	Total    float64 `json:"f"`
}

// Horizontal returns the horizontal intensity H = sqrt(X²+Y²).
func (v FieldVector) Horizontal() float64 {
	return math.Sqrt(v.North*v.North + v.East*v.East)
}

// DeclinationDeg returns the declination D (degrees east of true north).
func (v FieldVector) DeclinationDeg() float64 {
	return math.Atan2(v.East, v.North) * 180 / math.Pi
}

// InclinationDeg returns the inclination I (degrees below horizontal).
func (v FieldVector) InclinationDeg() float64 {
	return math.Atan2(v.Vertical, v.Horizontal()) * 180 / math.Pi
}

// InvalidInputError reports an observation-point parameter outside its
// documented domain. Nothing is silently corrected.
type InvalidInputError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %g: %s", e.Field, e.Value, e.Reason)
}

// Advisory reports an accuracy-degraded condition: the requested date lies
// beyond the model's stated linear-extrapolation confidence horizon. It is
// informational only and never blocks the computation.
type Advisory struct {
	Date        float64
	HorizonDate float64
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithAdvisoryFunc replaces the default advisory handler (structured log
// plus metric increment).
func WithAdvisoryFunc(fn func(Advisory)) Option {
	return func(e *Evaluator) { e.advise = fn }
}

// WithAdvisoriesSuppressed disables advisory reporting entirely.
func WithAdvisoriesSuppressed() Option {
	return func(e *Evaluator) { e.suppress = true }
}

// Evaluator synthesizes field vectors from one immutable coefficient table.
type Evaluator struct {
	table    *model.Table
	logger   *slog.Logger
	advise   func(Advisory)
	suppress bool
}

// NewEvaluator creates an Evaluator over table.
func NewEvaluator(table *model.Table, logger *slog.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		table:  table,
		logger: logger,
	}
	e.advise = func(a Advisory) {
		e.logger.Warn("date beyond linear-extrapolation horizon, accuracy degraded",
			"date", a.Date,
			"horizon", a.HorizonDate,
		)
		metrics.RecordExtrapolationAdvisory()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the evaluator's coefficient table.
func (e *Evaluator) Table() *model.Table { return e.table }

// Field synthesizes the field value at the request point, in nT.
func (e *Evaluator) Field(req Request) (FieldVector, error) {
	return e.synthesize(ModeField, req)
}

// SecularVariation synthesizes the annual rate of change at the request
// point, in nT/year.
func (e *Evaluator) SecularVariation(req Request) (FieldVector, error) {
	return e.synthesize(ModeSecularVariation, req)
}

func (e *Evaluator) synthesize(mode Mode, req Request) (FieldVector, error) {
	start := time.Now()
	v, err := e.run(mode, req)
	metrics.RecordSynthesis(mode.String(), outcomeLabel(err), time.Since(start))
	return v, err
}

// outcomeLabel maps an error to the metric outcome label.
func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var oor *model.OutOfRangeError
	if errors.As(err, &oor) {
		return "out_of_range"
	}
	var inv *InvalidInputError
	if errors.As(err, &inv) {
		return "invalid_input"
	}
	return "error"
}

func (e *Evaluator) run(mode Mode, req Request) (FieldVector, error) {
	// All range violations are rejected before any recurrence computation.
	if req.ColatDeg < 0 || req.ColatDeg > 180 {
		return FieldVector{}, &InvalidInputError{
			Field: "colatitude", Value: req.ColatDeg,
			Reason: "must be within [0, 180] degrees",
		}
	}
	if req.ElongDeg < 0 || req.ElongDeg > 360 {
		return FieldVector{}, &InvalidInputError{
			Field: "east longitude", Value: req.ElongDeg,
			Reason: "must be within [0, 360] degrees",
		}
	}
	if req.Point == Geocentric && req.AltOrRadiusKm <= MinRadiusKm {
		return FieldVector{}, &InvalidInputError{
			Field: "radius", Value: req.AltOrRadiusKm,
			Reason: fmt.Sprintf("must exceed %.0f km", MinRadiusKm),
		}
	}

	ip, err := e.table.Select(req.Date, mode == ModeSecularVariation)
	if err != nil {
		return FieldVector{}, err
	}
	if ip.BeyondHorizon && !e.suppress {
		e.advise(Advisory{Date: req.Date, HorizonDate: e.table.HorizonDate()})
	}

	colat := req.ColatDeg * math.Pi / 180
	elong := req.ElongDeg * math.Pi / 180

	var geo frame.Geocentric
	if req.Point == Geodetic {
		geo = frame.FromGeodetic(colat, req.AltOrRadiusKm)
	} else {
		geo = frame.FromGeocentric(req.AltOrRadiusKm, colat)
	}

	x, y, z := accumulate(ip, geo, elong)

	// Back-rotate into the input frame; the total intensity is computed
	// after rotation to match the reference numerics.
	x, z = geo.RotateField(x, z)
	return FieldVector{
		North:    x,
		East:     y,
		Vertical: z,
		Total:    math.Sqrt(x*x + y*y + z*z),
	}, nil
}

// accumulate walks the recurrence output together with the blended
// coefficients and the longitude trig recurrence, accumulating the three
// orthogonal components in the geocentric frame.
func accumulate(ip model.Interpolant, geo frame.Geocentric, elongRad float64) (x, y, z float64) {
	ratio := model.ReferenceRadiusKm / geo.RadiusKm
	rec := newRecurrence(ip.MaxDegree, geo.CosTheta, geo.SinTheta,
		math.Cos(elongRad), math.Sin(elongRad))

	kmx := bufferLen(ip.MaxDegree)
	rr := ratio * ratio // becomes (a/r)^(n+2) as the degree advances
	l := 1              // canonical 1-based coefficient index

	for k := 2; k <= kmx; k++ {
		n, m, newDegree := rec.step(k)
		if newDegree {
			rr *= ratio
		}

		g := ip.Coefficient(l) * rr
		if m == 0 {
			x += g * rec.q[k]
			z -= float64(n+1) * g * rec.p[k]
			l++
			continue
		}

		h := ip.Coefficient(l+1) * rr
		sum := g*rec.cl[m] + h*rec.sl[m]
		x += sum * rec.q[k]
		z -= float64(n+1) * sum * rec.p[k]
		if geo.SinTheta != 0 {
			y += (g*rec.sl[m] - h*rec.cl[m]) * float64(m) * rec.p[k] / geo.SinTheta
		} else {
			// At the exact pole the m·P/sinθ form divides by zero; the
			// limit is the derivative term scaled by cosθ.
			y += (g*rec.sl[m] - h*rec.cl[m]) * rec.q[k] * geo.CosTheta
		}
		l += 2
	}
	return x, y, z
}
