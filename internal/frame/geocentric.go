// Package frame converts observation points between geodetic coordinates
// (height above the reference ellipsoid, geodetic colatitude) and the
// geocentric coordinates (radius, geocentric colatitude) the spherical-
// harmonic synthesis works in, and rotates the synthesized field vector back
// into the input frame.
//
// The conversion is the closed form used by the IGRF reference synthesis:
// no iteration, exact for the ellipsoid constants below.
package frame

import "math"

// Squared semi-axes of the reference ellipsoid (km²): a = 6378.16 km,
// b ≈ 6356.775 km (IAU-66). These are the constants the IGRF synthesis is
// defined against; they are not the WGS-84 values.
const (
	A2 = 40680631.6
	B2 = 40408296.0
)

// Geocentric holds an observation point ready for synthesis: geocentric
// radius, the cosine/sine of the geocentric colatitude, and the rotation
// (CosDelta, SinDelta) that carries vectors back to the input frame.
// For a geocentric input the rotation is the identity.
type Geocentric struct {
	RadiusKm float64
	CosTheta float64
	SinTheta float64
	CosDelta float64
	SinDelta float64
}

// FromGeodetic converts a geodetic point (colatitude in radians, altitude in
// km above the ellipsoid) to geocentric coordinates.
//
//	rho = sqrt(a²·sin²θ + b²·cos²θ)
//	r   = sqrt(h·(h+2·rho) + (a⁴·sin²θ + b⁴·cos²θ)/rho²)
//	cd  = (h+rho)/r
//	sd  = (a²−b²)·cosθ·sinθ/(rho·r)
//
// and (cosθ, sinθ) rotated by (cd, sd) give the geocentric colatitude.
func FromGeodetic(colatRad, altKm float64) Geocentric {
	st := math.Sin(colatRad)
	ct := math.Cos(colatRad)

	one := A2 * st * st
	two := B2 * ct * ct
	three := one + two
	rho := math.Sqrt(three)

	r := math.Sqrt(altKm*(altKm+2*rho) + (A2*one+B2*two)/three)
	cd := (altKm + rho) / r
	sd := (A2 - B2) / rho * ct * st / r

	return Geocentric{
		RadiusKm: r,
		CosTheta: ct*cd - st*sd,
		SinTheta: st*cd + ct*sd,
		CosDelta: cd,
		SinDelta: sd,
	}
}

// FromGeocentric wraps an already-geocentric point (radius in km,
// colatitude in radians). No rotation is applied.
func FromGeocentric(radiusKm, colatRad float64) Geocentric {
	return Geocentric{
		RadiusKm: radiusKm,
		CosTheta: math.Cos(colatRad),
		SinTheta: math.Sin(colatRad),
		CosDelta: 1,
		SinDelta: 0,
	}
}

// ToGeodetic inverts FromGeodetic, recovering the geodetic colatitude
// (radians) and altitude (km). Exact up to floating-point rounding.
func (g Geocentric) ToGeodetic() (colatRad, altKm float64) {
	ct := g.CosTheta*g.CosDelta + g.SinTheta*g.SinDelta
	st := g.SinTheta*g.CosDelta - g.CosTheta*g.SinDelta

	colatRad = math.Atan2(st, ct)
	rho := math.Sqrt(A2*st*st + B2*ct*ct)
	altKm = g.RadiusKm*g.CosDelta - rho
	return colatRad, altKm
}

// RotateField rotates a synthesized (north, vertical) component pair from
// the geocentric frame back to the input frame. The east component is
// unaffected by the rotation.
func (g Geocentric) RotateField(north, vertical float64) (float64, float64) {
	return north*g.CosDelta + vertical*g.SinDelta,
		vertical*g.CosDelta - north*g.SinDelta
}
