package synthesis

import "math"

// recurrence computes Schmidt quasi-normalized associated Legendre functions
// P(n,m) and their colatitude derivatives Q(n,m) incrementally, in the
// canonical traversal order: order varies fastest within a degree, degree
// increases monotonically. Each value depends on previously computed
// lower-degree/order values, so the buffers must be filled strictly in that
// order.
//
// Buffers are 1-based to match the canonical flattened index
// k(n,m) = n(n+1)/2 + m + 1; index 0 is unused. All state is owned by a
// single synthesis call and never shared.
type recurrence struct {
	p  []float64 // P values, 1-based by k
	q  []float64 // dP/dθ values, 1-based by k
	cl []float64 // cos(mλ), 1-based by order m
	sl []float64 // sin(mλ), 1-based by order m

	ct float64 // cos(geocentric colatitude)
	st float64 // sin(geocentric colatitude)

	n, m int // running degree/order state
}

// legendreIndex maps (degree, order) to the canonical 1-based buffer index.
func legendreIndex(n, m int) int {
	return n*(n+1)/2 + m + 1
}

// bufferLen returns the number of canonical indices for a degree-n model,
// K = (n+1)(n+2)/2.
func bufferLen(maxDegree int) int {
	return (maxDegree + 1) * (maxDegree + 2) / 2
}

// newRecurrence seeds the buffers with the closed-form low-order values:
// P(0,0)=1, P(1,1)=sinθ, Q(0,0)=0, Q(1,1)=cosθ, and the order-1 longitude
// trig pair.
func newRecurrence(maxDegree int, ct, st, cosLon, sinLon float64) *recurrence {
	kmx := bufferLen(maxDegree)
	rc := &recurrence{
		p:  make([]float64, kmx+1),
		q:  make([]float64, kmx+1),
		cl: make([]float64, maxDegree+1),
		sl: make([]float64, maxDegree+1),
		ct: ct,
		st: st,
		n:  0,
		m:  1,
	}
	rc.p[1] = 1
	rc.p[3] = st
	rc.q[1] = 0
	rc.q[3] = ct
	rc.cl[1] = cosLon
	rc.sl[1] = sinLon
	return rc
}

// step advances the recurrence to canonical index k and returns the degree
// and order it now holds, plus whether a new degree row began (the caller
// rescales its radius-ratio power by one more factor when it did).
//
// Diagonal terms (m == n) use
//
//	P(n,n) = sqrt(1 − 1/(2n)) · sinθ · P(n−1,n−1)
//
// and advance the longitude trig recurrence for order n via the
// angle-addition identities. Off-diagonal terms (m < n) use the two-term
// recurrence over P(n−1,m) and P(n−2,m); the derivative recurrences mirror
// both using the lower-degree values and derivatives.
func (rc *recurrence) step(k int) (n, m int, newDegree bool) {
	if rc.n < rc.m {
		rc.m = 0
		rc.n++
		newDegree = true
	}
	n, m = rc.n, rc.m

	if m != n {
		fn := float64(n)
		gn := float64(n - 1)
		fm := float64(m)
		one := math.Sqrt(fn*fn - fm*fm)
		two := math.Sqrt(gn*gn-fm*fm) / one
		three := (fn + gn) / one
		i := k - n       // index of P(n−1, m)
		j := k - 2*n + 1 // index of P(n−2, m)
		rc.p[k] = three*rc.ct*rc.p[i] - two*rc.p[j]
		rc.q[k] = three*(rc.ct*rc.q[i]-rc.st*rc.p[i]) - two*rc.q[j]
	} else if k != 3 { // P(1,1) and Q(1,1) are seeded
		one := math.Sqrt(1 - 0.5/float64(m))
		j := k - n - 1 // index of P(n−1, n−1)
		rc.p[k] = one * rc.st * rc.p[j]
		rc.q[k] = one * (rc.st*rc.q[j] + rc.ct*rc.p[j])
		rc.cl[m] = rc.cl[m-1]*rc.cl[1] - rc.sl[m-1]*rc.sl[1]
		rc.sl[m] = rc.sl[m-1]*rc.cl[1] + rc.cl[m-1]*rc.sl[1]
	}

	rc.m++
	return n, m, newDegree
}
