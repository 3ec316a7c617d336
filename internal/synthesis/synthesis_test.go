package synthesis

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/mag/maggo/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// dipoleTable builds a degree-1 table with time-constant coefficients, so the
// synthesized field has a closed form at any valid date.
func dipoleTable(t *testing.T) *model.Table {
	t.Helper()
	gh := []float64{-30000, -2000, 5000} // g(1,0), g(1,1), h(1,1)
	sets := []model.CoefficientSet{
		{Epoch: 2010, MaxDegree: 1, GH: append([]float64(nil), gh...)},
		{Epoch: 2015, MaxDegree: 1, GH: append([]float64(nil), gh...)},
	}
	sv := model.CoefficientSet{Epoch: 2015, MaxDegree: 1, GH: []float64{0, 0, 0}}
	table, err := model.NewTable("dipole", sets, sv)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

// TestDipoleClosedForm compares the full synthesis pipeline against the
// analytic degree-1 field at geocentric points:
//
//	X = (a/r)³ (−g₁₀ sinθ + (g₁₁ cosλ + h₁₁ sinλ) cosθ)
//	Y = (a/r)³ (g₁₁ sinλ − h₁₁ cosλ)
//	Z = (a/r)³ (−2g₁₀ cosθ − 2(g₁₁ cosλ + h₁₁ sinλ) sinθ)
func TestDipoleClosedForm(t *testing.T) {
	eval := NewEvaluator(dipoleTable(t), discardLogger())
	g10, g11, h11 := -30000.0, -2000.0, 5000.0

	for _, colatDeg := range []float64{10, 45, 90, 120, 170} {
		for _, lonDeg := range []float64{0, 30, 200, 359} {
			for _, r := range []float64{model.ReferenceRadiusKm, 7000} {
				v, err := eval.Field(Request{
					Date:          2012,
					Point:         Geocentric,
					AltOrRadiusKm: r,
					ColatDeg:      colatDeg,
					ElongDeg:      lonDeg,
				})
				if err != nil {
					t.Fatalf("colat %v lon %v r %v: %v", colatDeg, lonDeg, r, err)
				}

				theta := colatDeg * math.Pi / 180
				lambda := lonDeg * math.Pi / 180
				ct, st := math.Cos(theta), math.Sin(theta)
				cl, sl := math.Cos(lambda), math.Sin(lambda)
				scale := math.Pow(model.ReferenceRadiusKm/r, 3)

				wantX := scale * (-g10*st + (g11*cl+h11*sl)*ct)
				wantY := scale * (g11*sl - h11*cl)
				wantZ := scale * (-2*g10*ct - 2*(g11*cl+h11*sl)*st)

				const tol = 1e-6
				if math.Abs(v.North-wantX) > tol {
					t.Errorf("colat %v lon %v r %v: X = %v, want %v", colatDeg, lonDeg, r, v.North, wantX)
				}
				if math.Abs(v.East-wantY) > tol {
					t.Errorf("colat %v lon %v r %v: Y = %v, want %v", colatDeg, lonDeg, r, v.East, wantY)
				}
				if math.Abs(v.Vertical-wantZ) > tol {
					t.Errorf("colat %v lon %v r %v: Z = %v, want %v", colatDeg, lonDeg, r, v.Vertical, wantZ)
				}
				wantF := math.Sqrt(wantX*wantX + wantY*wantY + wantZ*wantZ)
				if math.Abs(v.Total-wantF) > tol {
					t.Errorf("colat %v lon %v r %v: F = %v, want %v", colatDeg, lonDeg, r, v.Total, wantF)
				}
			}
		}
	}
}

// TestPoleContinuity: the exact poles must synthesize without error and agree
// with a point a tenth of a millidegree away.
func TestPoleContinuity(t *testing.T) {
	eval := NewEvaluator(model.Default(), discardLogger())

	for _, pole := range []float64{0, 180} {
		offset := pole + 1e-4
		if pole == 180 {
			offset = pole - 1e-4
		}

		at, err := eval.Field(Request{
			Date: 2020, Point: Geocentric,
			AltOrRadiusKm: model.ReferenceRadiusKm, ColatDeg: pole,
		})
		if err != nil {
			t.Fatalf("colat %v: %v", pole, err)
		}
		near, err := eval.Field(Request{
			Date: 2020, Point: Geocentric,
			AltOrRadiusKm: model.ReferenceRadiusKm, ColatDeg: offset,
		})
		if err != nil {
			t.Fatalf("colat %v: %v", offset, err)
		}

		for _, c := range []struct {
			name     string
			at, near float64
		}{
			{"X", at.North, near.North},
			{"Y", at.East, near.East},
			{"Z", at.Vertical, near.Vertical},
		} {
			if math.IsNaN(c.at) || math.IsInf(c.at, 0) {
				t.Fatalf("colat %v: %s = %v", pole, c.name, c.at)
			}
			if diff := math.Abs(c.at - c.near); diff > 0.5 {
				t.Errorf("colat %v: %s = %v, %v away = %v (diff %v nT)", pole, c.name, c.at, offset, c.near, diff)
			}
		}
	}
}

// TestExtrapolationLinearity: past the final epoch the field is linear in
// time, so Field(2021) = Field(2020) + 1·SV(2020) component-wise.
func TestExtrapolationLinearity(t *testing.T) {
	eval := NewEvaluator(model.Default(), discardLogger())
	req := Request{
		Date: 2020, Point: Geocentric,
		AltOrRadiusKm: 6500, ColatDeg: 40, ElongDeg: 100,
	}

	base, err := eval.Field(req)
	if err != nil {
		t.Fatal(err)
	}
	rate, err := eval.SecularVariation(req)
	if err != nil {
		t.Fatal(err)
	}

	req.Date = 2021
	got, err := eval.Field(req)
	if err != nil {
		t.Fatal(err)
	}

	const tol = 1e-6
	if diff := math.Abs(got.North - (base.North + rate.North)); diff > tol {
		t.Errorf("X(2021) = %v, want %v", got.North, base.North+rate.North)
	}
	if diff := math.Abs(got.East - (base.East + rate.East)); diff > tol {
		t.Errorf("Y(2021) = %v, want %v", got.East, base.East+rate.East)
	}
	if diff := math.Abs(got.Vertical - (base.Vertical + rate.Vertical)); diff > tol {
		t.Errorf("Z(2021) = %v, want %v", got.Vertical, base.Vertical+rate.Vertical)
	}
}

// TestSurfaceFieldPlausible: the 2020 field at the equator prime meridian is
// a plausible main-field magnitude and internally consistent.
func TestSurfaceFieldPlausible(t *testing.T) {
	eval := NewEvaluator(model.Default(), discardLogger())

	v, err := eval.Field(GeodeticRequest(2020.0, 0, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if v.Total < 20000 || v.Total > 70000 {
		t.Errorf("F = %v nT, outside plausible main-field range", v.Total)
	}
	norm := math.Sqrt(v.North*v.North + v.East*v.East + v.Vertical*v.Vertical)
	if math.Abs(v.Total-norm) > 1e-6*norm {
		t.Errorf("F = %v, component norm = %v", v.Total, norm)
	}
	if h := v.Horizontal(); math.Abs(h-math.Hypot(v.North, v.East)) > 1e-9 {
		t.Errorf("H = %v, want %v", h, math.Hypot(v.North, v.East))
	}
}

func TestFieldRejectsInvalidInput(t *testing.T) {
	eval := NewEvaluator(model.Default(), discardLogger())

	tests := []struct {
		name string
		req  Request
	}{
		{"negative colatitude", Request{Date: 2020, AltOrRadiusKm: 0, ColatDeg: -1}},
		{"colatitude over 180", Request{Date: 2020, AltOrRadiusKm: 0, ColatDeg: 180.5}},
		{"negative longitude", Request{Date: 2020, ColatDeg: 90, ElongDeg: -0.1}},
		{"longitude over 360", Request{Date: 2020, ColatDeg: 90, ElongDeg: 360.5}},
		{"radius at boundary", Request{Date: 2020, Point: Geocentric, AltOrRadiusKm: MinRadiusKm, ColatDeg: 90}},
		{"radius inside core", Request{Date: 2020, Point: Geocentric, AltOrRadiusKm: 1000, ColatDeg: 90}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eval.Field(tt.req)
			var inv *InvalidInputError
			if !errors.As(err, &inv) {
				t.Errorf("error = %v, want *InvalidInputError", err)
			}
		})
	}
}

func TestFieldRejectsOutOfRangeDate(t *testing.T) {
	eval := NewEvaluator(model.Default(), discardLogger())
	req := Request{Point: Geocentric, AltOrRadiusKm: model.ReferenceRadiusKm, ColatDeg: 90}

	for _, date := range []float64{1899.9, 2030.0, 2031} {
		req.Date = date
		_, err := eval.Field(req)
		var oor *model.OutOfRangeError
		if !errors.As(err, &oor) {
			t.Errorf("Field(%v) error = %v, want *OutOfRangeError", date, err)
		}
	}
	for _, date := range []float64{1900.0, 2029.9} {
		req.Date = date
		if _, err := eval.Field(req); err != nil {
			t.Errorf("Field(%v) rejected: %v", date, err)
		}
	}
}

func TestAdvisory(t *testing.T) {
	req := Request{Point: Geocentric, AltOrRadiusKm: model.ReferenceRadiusKm, ColatDeg: 90}

	var got []Advisory
	capture := func(a Advisory) { got = append(got, a) }

	eval := NewEvaluator(model.Default(), discardLogger(), WithAdvisoryFunc(capture))

	req.Date = 2024
	if _, err := eval.Field(req); err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("advisory fired at %v, horizon is 2025", req.Date)
	}

	req.Date = 2027
	if _, err := eval.Field(req); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("advisory count = %d, want 1", len(got))
	}
	if got[0].Date != 2027 || got[0].HorizonDate != 2025 {
		t.Errorf("advisory = %+v, want date 2027 horizon 2025", got[0])
	}

	got = nil
	quiet := NewEvaluator(model.Default(), discardLogger(),
		WithAdvisoryFunc(capture), WithAdvisoriesSuppressed())
	if _, err := quiet.Field(req); err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Error("suppressed evaluator still fired an advisory")
	}
}

func TestFieldDeterministic(t *testing.T) {
	eval := NewEvaluator(model.Default(), discardLogger())
	req := GeodeticRequest(2017.3, 51.5, -0.1, 0.05)

	a, err := eval.Field(req)
	if err != nil {
		t.Fatal(err)
	}
	b, err := eval.Field(req)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("repeated synthesis differs: %+v vs %+v", a, b)
	}
}

func TestGeodeticRequestNormalizesLongitude(t *testing.T) {
	tests := []struct {
		lon  float64
		want float64
	}{
		{0, 0},
		{-0.1, 359.9},
		{-180, 180},
		{370, 10},
	}
	for _, tt := range tests {
		req := GeodeticRequest(2020, 0, tt.lon, 0)
		if math.Abs(req.ElongDeg-tt.want) > 1e-9 {
			t.Errorf("GeodeticRequest lon %v → %v, want %v", tt.lon, req.ElongDeg, tt.want)
		}
	}
	if req := GeodeticRequest(2020, 35, 0, 0); req.ColatDeg != 55 {
		t.Errorf("colatitude = %v, want 55", req.ColatDeg)
	}
}

func TestFieldVectorAngles(t *testing.T) {
	v := FieldVector{North: 1, East: 1, Vertical: math.Sqrt2}

	if d := v.DeclinationDeg(); math.Abs(d-45) > 1e-12 {
		t.Errorf("D = %v, want 45", d)
	}
	if i := v.InclinationDeg(); math.Abs(i-45) > 1e-12 {
		t.Errorf("I = %v, want 45", i)
	}
	if h := v.Horizontal(); math.Abs(h-math.Sqrt2) > 1e-12 {
		t.Errorf("H = %v, want √2", h)
	}
}
