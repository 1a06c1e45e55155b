package forecaster

import (
	"errors"
	"fmt"
	"math"
)

// arimaOrder specifies an ARIMA(p,1,q)(P,0,Q)[period] model. Differencing is
// fixed at d=1 (regular) and D=0 (seasonal), matching the orders this service
// fits. A period of 0 disables the seasonal terms regardless of P and Q.
type arimaOrder struct {
	p, q   int
	bigP   int
	bigQ   int
	period int
}

func (o arimaOrder) numParams() int {
	n := 1 + o.p + o.q // intercept + non-seasonal terms
	if o.period > 0 {
		n += o.bigP + o.bigQ
	}
	return n
}

func (o arimaOrder) maxLag() int {
	lag := o.p
	if o.q > lag {
		lag = o.q
	}
	if o.period > 0 {
		if s := o.period * o.bigP; s > lag {
			lag = s
		}
		if s := o.period * o.bigQ; s > lag {
			lag = s
		}
	}
	return lag
}

func (o arimaOrder) String() string {
	return fmt.Sprintf("(%d,1,%d)(%d,0,%d)[%d]", o.p, o.q, o.bigP, o.bigQ, o.period)
}

// arimaFit is the fitted-model handle produced by fitARIMA. It is consumed by
// forecast/fittedValues and discarded at the end of the run.
type arimaFit struct {
	order     arimaOrder
	intercept float64
	phi       []float64 // AR, lags 1..p
	sphi      []float64 // seasonal AR, lags period..period*P
	theta     []float64 // MA, lags 1..q
	stheta    []float64 // seasonal MA, lags period..period*Q
	series    []float64 // modeling-space input, kept for undifferencing
	diffed    []float64
	resid     []float64
	fittedDif []float64
	sigma2    float64
	aic       float64
}

var errDegenerate = errors.New("degenerate regression system")

// fitARIMA estimates the model by the Hannan-Rissanen two-stage procedure:
// a long autoregression supplies residual proxies, then the AR, MA, and
// seasonal coefficients come from a single least-squares solve. No
// stationarity or invertibility constraints are imposed on the coefficients;
// near-non-stationary count series must not be rejected on classical
// grounds. A fit whose residual recursion diverges is rejected instead.
func fitARIMA(values []float64, order arimaOrder) (*arimaFit, error) {
	if len(values) < 2 {
		return nil, errDegenerate
	}

	// First difference (d=1).
	w := make([]float64, len(values)-1)
	for i := range w {
		w[i] = values[i+1] - values[i]
	}

	maxLag := order.maxLag()
	if maxLag == 0 {
		maxLag = 1
	}

	// Stage one: long AR to approximate the innovation sequence.
	longLag := maxLag + 2
	if longLag < 7 {
		longLag = 7
	}
	if len(w)-longLag < order.numParams()+5 {
		return nil, fmt.Errorf("insufficient observations for order %s", order)
	}
	resProxy, err := longARResiduals(w, longLag)
	if err != nil {
		return nil, err
	}

	// Stage two: regress w[t] on its own lags and lagged residual proxies.
	rows := len(w) - maxLag
	k := order.numParams()
	design := make([][]float64, 0, rows)
	target := make([]float64, 0, rows)
	for t := maxLag; t < len(w); t++ {
		row := make([]float64, 0, k)
		row = append(row, 1)
		for i := 1; i <= order.p; i++ {
			row = append(row, w[t-i])
		}
		if order.period > 0 {
			for j := 1; j <= order.bigP; j++ {
				row = append(row, lagOrZero(w, t-j*order.period))
			}
		}
		for i := 1; i <= order.q; i++ {
			row = append(row, lagOrZero(resProxy, t-i))
		}
		if order.period > 0 {
			for j := 1; j <= order.bigQ; j++ {
				row = append(row, lagOrZero(resProxy, t-j*order.period))
			}
		}
		design = append(design, row)
		target = append(target, w[t])
	}

	coef, err := solveLeastSquares(design, target)
	if err != nil {
		return nil, err
	}
	for _, c := range coef {
		if !isFinite(c) {
			return nil, errDegenerate
		}
	}

	fit := &arimaFit{
		order:  order,
		series: append([]float64(nil), values...),
		diffed: w,
	}
	idx := 0
	fit.intercept = coef[idx]
	idx++
	fit.phi = coef[idx : idx+order.p]
	idx += order.p
	if order.period > 0 {
		fit.sphi = coef[idx : idx+order.bigP]
		idx += order.bigP
	}
	fit.theta = coef[idx : idx+order.q]
	idx += order.q
	if order.period > 0 {
		fit.stheta = coef[idx : idx+order.bigQ]
	}

	fit.computeResiduals()

	nEff := len(w) - maxLag
	if nEff <= k {
		return nil, errDegenerate
	}
	var sse float64
	for t := maxLag; t < len(w); t++ {
		sse += fit.resid[t] * fit.resid[t]
	}
	fit.sigma2 = sse / float64(nEff-k)
	if !isFinite(fit.sigma2) || fit.sigma2 < 0 {
		return nil, errDegenerate
	}
	// An MA estimate outside the invertible region makes the one-step
	// residual recursion feed on itself and grow without bound. The residual
	// variance of a usable fit can never dwarf the variance of the
	// differenced series it explains.
	if varW := sampleVariance(w); varW > 0 && fit.sigma2 > 100*varW {
		return nil, errDegenerate
	}
	if fit.sigma2 == 0 {
		// Perfectly fit (constant) series; keep a tiny variance so the AIC
		// and interval math stay finite.
		fit.sigma2 = 1e-12
	}
	fit.aic = float64(nEff)*math.Log(fit.sigma2) + 2*float64(k+1)
	if !isFinite(fit.aic) {
		return nil, errDegenerate
	}
	return fit, nil
}

// computeResiduals runs the one-step-ahead recursion with the final
// coefficients. Positions before the first full lag window are treated as
// fitted exactly, so their residuals are zero.
func (f *arimaFit) computeResiduals() {
	w := f.diffed
	maxLag := f.order.maxLag()
	f.resid = make([]float64, len(w))
	f.fittedDif = make([]float64, len(w))

	for t := 0; t < len(w); t++ {
		if t < maxLag {
			f.fittedDif[t] = w[t]
			continue
		}
		pred := f.predictDiff(w, f.resid, t)
		f.fittedDif[t] = pred
		f.resid[t] = w[t] - pred
	}
}

// predictDiff evaluates the ARMA recursion for index t over the given
// differenced history and residuals. Indexes beyond either slice contribute
// zero, which lets the same code extend past the end of the sample when
// forecasting.
func (f *arimaFit) predictDiff(w, resid []float64, t int) float64 {
	pred := f.intercept
	for i, c := range f.phi {
		pred += c * lagOrZero(w, t-i-1)
	}
	for j, c := range f.sphi {
		pred += c * lagOrZero(w, t-(j+1)*f.order.period)
	}
	for i, c := range f.theta {
		pred += c * lagOrZero(resid, t-i-1)
	}
	for j, c := range f.stheta {
		pred += c * lagOrZero(resid, t-(j+1)*f.order.period)
	}
	return pred
}

// forecast produces point forecasts and 95% interval bounds in modeling
// space. Future innovations are zero; interval width grows with the square
// root of the step as the integrated series accumulates innovation variance.
func (f *arimaFit) forecast(horizon int) (points, lower, upper []float64) {
	w := append([]float64(nil), f.diffed...)
	resid := append([]float64(nil), f.resid...)

	points = make([]float64, horizon)
	lower = make([]float64, horizon)
	upper = make([]float64, horizon)

	last := f.series[len(f.series)-1]
	sd := math.Sqrt(f.sigma2)
	const z = 1.96

	for h := 0; h < horizon; h++ {
		t := len(w)
		dw := f.predictDiff(w, resid, t)
		w = append(w, dw)
		resid = append(resid, 0)

		last += dw
		width := z * sd * math.Sqrt(float64(h+1))
		points[h] = last
		lower[h] = last - width
		upper[h] = last + width
	}
	return points, lower, upper
}

// fittedValues returns one-step-ahead fitted values in modeling space,
// aligned to the original (undifferenced) series.
func (f *arimaFit) fittedValues() []float64 {
	out := make([]float64, len(f.series))
	out[0] = f.series[0]
	for i, dw := range f.fittedDif {
		out[i+1] = f.series[i] + dw
	}
	return out
}

// longARResiduals fits AR(longLag) by least squares and returns residuals
// aligned to w; positions without a full lag window get zero.
func longARResiduals(w []float64, longLag int) ([]float64, error) {
	rows := len(w) - longLag
	design := make([][]float64, 0, rows)
	target := make([]float64, 0, rows)
	for t := longLag; t < len(w); t++ {
		row := make([]float64, 0, longLag+1)
		row = append(row, 1)
		for i := 1; i <= longLag; i++ {
			row = append(row, w[t-i])
		}
		design = append(design, row)
		target = append(target, w[t])
	}

	coef, err := solveLeastSquares(design, target)
	if err != nil {
		return nil, err
	}

	resid := make([]float64, len(w))
	for t := longLag; t < len(w); t++ {
		pred := coef[0]
		for i := 1; i <= longLag; i++ {
			pred += coef[i] * w[t-i]
		}
		resid[t] = w[t] - pred
	}
	return resid, nil
}

// solveLeastSquares solves min ||Xb - y|| via the normal equations with a
// small ridge term on the diagonal for numerical safety, using Gaussian
// elimination with partial pivoting.
func solveLeastSquares(x [][]float64, y []float64) ([]float64, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, errDegenerate
	}
	k := len(x[0])
	if len(x) < k {
		return nil, errDegenerate
	}

	xtx := make([][]float64, k)
	xty := make([]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	for r := range x {
		if len(x[r]) != k {
			return nil, errDegenerate
		}
		for i := 0; i < k; i++ {
			xty[i] += x[r][i] * y[r]
			for j := i; j < k; j++ {
				xtx[i][j] += x[r][i] * x[r][j]
			}
		}
	}
	for i := 0; i < k; i++ {
		for j := 0; j < i; j++ {
			xtx[i][j] = xtx[j][i]
		}
		xtx[i][i] += 1e-8
	}

	return solveLinear(xtx, xty)
}

// solveLinear solves a dense square system in place.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, errDegenerate
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		inv := 1 / a[col][col]
		for r := col + 1; r < n; r++ {
			factor := a[r][col] * inv
			if factor == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	out := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * out[c]
		}
		out[r] = sum / a[r][r]
	}
	return out, nil
}

func sampleVariance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, v := range xs {
		mean += v
	}
	mean /= float64(len(xs))
	var ss float64
	for _, v := range xs {
		d := v - mean
		ss += d * d
	}
	return ss / float64(len(xs))
}

func lagOrZero(xs []float64, idx int) float64 {
	if idx < 0 || idx >= len(xs) {
		return 0
	}
	return xs[idx]
}
