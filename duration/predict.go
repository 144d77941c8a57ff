package duration

import (
	"fmt"
	"math"
)

// linpredAt returns the fitted linear predictor for one covariate
// vector, ordered as the model predictors.
func (rslt *SurvRegResults) linpredAt(x []float64) float64 {

	sr := rslt.Model().(*SurvReg)
	if len(x) != sr.NumCoeff() {
		panic(fmt.Sprintf("SurvReg: %d covariate values but %d coefficients", len(x), sr.NumCoeff()))
	}

	par := rslt.Params()
	lp := 0.0
	for j := range x {
		lp += x[j] * par[j]
	}

	return lp
}

// SurvProbAt returns the fitted survival probability at time t for a
// subject with the given covariate values, ordered as the model
// predictors (including any intercept column).
func (rslt *SurvRegResults) SurvProbAt(t float64, x []float64) float64 {

	lp := rslt.linpredAt(x)
	z := (math.Log(t) - lp) / rslt.scale

	return math.Exp(-math.Exp(z))
}

// QuantileAt returns the time at which the fitted survival
// probability for a subject with the given covariate values falls to
// q, e.g. q=0.5 gives the predicted median survival time.
func (rslt *SurvRegResults) QuantileAt(q float64, x []float64) float64 {

	if q <= 0 || q >= 1 {
		panic("SurvReg: survival probability must be strictly between 0 and 1")
	}

	lp := rslt.linpredAt(x)

	return math.Exp(lp + rslt.scale*math.Log(-math.Log(q)))
}

// QuantileCurve evaluates the predicted survival-quantile curve for a
// subject with the given covariate values on a grid of survival
// probabilities, returning the probabilities and the corresponding
// times.  The grid runs from high survival to low, so the times are
// increasing.
func (rslt *SurvRegResults) QuantileCurve(x []float64, npoints int) ([]float64, []float64) {

	if npoints < 2 {
		npoints = 2
	}

	probs := make([]float64, npoints)
	times := make([]float64, npoints)

	for i := 0; i < npoints; i++ {
		q := 0.99 - 0.98*float64(i)/float64(npoints-1)
		probs[i] = q
		times[i] = rslt.QuantileAt(q, x)
	}

	return probs, times
}
