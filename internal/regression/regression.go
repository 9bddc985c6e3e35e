// Package regression fits an incremental ordinary-least-squares trend
// line over (year, count) observations without ever materialising a
// design matrix, the same streaming approach the original service's
// SimpleRegression-based surface used.
package regression

import "math"

// Stats mirrors the fields the original service extracted from its
// regression object: the fitted line plus enough about its residuals
// to decide whether a cell's trend is worth surfacing.
type Stats struct {
	Slope           float64
	Intercept       float64
	Significance    float64 // two-tailed p-value for the slope being non-zero
	SSE             float64
	SlopeStdErr     float64
	InterceptStdErr float64
	MeanSquareError float64
	N               int64
}

// Regression accumulates the sums needed for a single-variable OLS
// fit one (x, y) pair at a time.
type Regression struct {
	n                int64
	sumX, sumY       float64
	sumXX, sumXY     float64
	sumYY            float64
}

func (r *Regression) Add(x, y float64) {
	r.n++
	r.sumX += x
	r.sumY += y
	r.sumXX += x * x
	r.sumXY += x * y
	r.sumYY += y * y
}

func (r *Regression) N() int64 { return r.n }

// Stats computes the fit. Callers gate on their own minimum-years
// threshold (the spec's default is 2) before calling this — Stats
// itself only guards degenerate cases it can detect from the
// accumulated sums: fewer than two points, zero-variance x, and zero
// residual degrees of freedom.
func (r *Regression) Stats() Stats {
	n := float64(r.n)
	if r.n < 2 {
		return nanStats(r.n)
	}
	meanX := r.sumX / n
	meanY := r.sumY / n

	sxx := r.sumXX - n*meanX*meanX
	sxy := r.sumXY - n*meanX*meanY
	syy := r.sumYY - n*meanY*meanY

	if sxx == 0 {
		return nanStats(r.n)
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	sse := syy - slope*sxy
	if sse < 0 {
		sse = 0 // guard against floating point noise driving it slightly negative
	}

	df := n - 2
	if df <= 0 {
		// Two points fit a line exactly but leave no residual degrees
		// of freedom to estimate its standard error from.
		return Stats{
			Slope:           slope,
			Intercept:       intercept,
			Significance:    math.NaN(),
			SSE:             sse,
			SlopeStdErr:     math.NaN(),
			InterceptStdErr: math.NaN(),
			MeanSquareError: math.NaN(),
			N:               r.n,
		}
	}

	mse := sse / df
	slopeStdErr := math.Sqrt(mse / sxx)
	interceptStdErr := math.Sqrt(mse * (1/n + meanX*meanX/sxx))

	sig := 1.0
	if slopeStdErr > 0 {
		t := slope / slopeStdErr
		sig = twoTailedPValue(t, df)
	}

	return Stats{
		Slope:           slope,
		Intercept:       intercept,
		Significance:    sig,
		SSE:             sse,
		SlopeStdErr:     slopeStdErr,
		InterceptStdErr: interceptStdErr,
		MeanSquareError: mse,
		N:               r.n,
	}
}

// nanStats reports the degenerate cases (too few points, zero-variance
// x) the spec asks to surface as NaN rather than a misleadingly flat
// zero-value fit.
func nanStats(n int64) Stats {
	return Stats{
		Slope:           math.NaN(),
		Intercept:       math.NaN(),
		Significance:    math.NaN(),
		SSE:             math.NaN(),
		SlopeStdErr:     math.NaN(),
		InterceptStdErr: math.NaN(),
		MeanSquareError: math.NaN(),
		N:               n,
	}
}

// twoTailedPValue computes P(|T| > |t|) for a Student's t distribution
// with df degrees of freedom, via the regularized incomplete beta
// function. No third-party statistics package appears anywhere in the
// example pack, so this is implemented directly against the standard
// library; see DESIGN.md for why that's the right call here.
func twoTailedPValue(t, df float64) float64 {
	x := df / (df + t*t)
	ibeta := incompleteBeta(x, df/2, 0.5)
	return clamp01(ibeta)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// incompleteBeta evaluates the regularized incomplete beta function
// I_x(a, b) using Lentz's continued fraction, the standard numerical
// recipe for this function.
func incompleteBeta(x, a, b float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lnBeta := lgamma(a) + lgamma(b) - lgamma(a+b)
	front := math.Exp(math.Log(x)*a + math.Log(1-x)*b - lnBeta)

	if x < (a+1)/(a+b+2) {
		return front * betaContinuedFraction(x, a, b) / a
	}
	return 1 - front*betaContinuedFraction(1-x, b, a)/b
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

func betaContinuedFraction(x, a, b float64) float64 {
	const maxIter = 200
	const eps = 3e-10

	qab := a + b
	qap := a + 1
	qam := a - 1
	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < 1e-30 {
		d = 1e-30
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIter; m++ {
		fm := float64(m)
		m2 := 2 * fm

		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < 1e-30 {
			d = 1e-30
		}
		c = 1 + aa/c
		if math.Abs(c) < 1e-30 {
			c = 1e-30
		}
		d = 1 / d
		h *= d * c

		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < 1e-30 {
			d = 1e-30
		}
		c = 1 + aa/c
		if math.Abs(c) < 1e-30 {
			c = 1e-30
		}
		d = 1 / d
		delta := d * c
		h *= delta

		if math.Abs(delta-1) < eps {
			break
		}
	}
	return h
}
