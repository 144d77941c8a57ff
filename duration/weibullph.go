package duration

import (
	"fmt"
	"math"

	"github.com/drtiong/parametric-surv/statmodel"
)

// WeibullPH is the proportional hazards parameterization of a fitted
// exponential or Weibull AFT regression model.  The hazard is
//
//	h(t|x) = lambda * shape * t^(shape-1) * exp(x'gamma)
//
// with shape = 1/scale, gamma_j = -coef_j/scale, and baseline rate
// lambda determined by the intercept.  The two parameterizations
// describe the same fitted distribution, so the maximized likelihood
// and AIC carry over unchanged.  Standard errors for the transformed
// parameters are obtained by the delta method.
type WeibullPH struct {
	results *SurvRegResults

	// Names of the transformed covariates, excluding the intercept
	names []string

	// Hazard-scale coefficients and their standard errors
	gamma   []float64
	gammaSE []float64

	// Weibull shape (1/scale) and its standard error
	shape   float64
	shapeSE float64

	// Baseline rate parameter and its standard error
	lambda   float64
	lambdaSE float64
}

// NewWeibullPH converts a fitted AFT regression to its proportional
// hazards parameterization.  interceptVar names the constant column
// used as the regression intercept; it determines the baseline rate
// and is excluded from the hazard ratio rows.
func NewWeibullPH(rslt *SurvRegResults, interceptVar string) (*WeibullPH, error) {

	sr := rslt.Model().(*SurvReg)

	par := rslt.Params()
	vcov := rslt.VCov()
	if vcov == nil {
		return nil, fmt.Errorf("WeibullPH: fitted model has no covariance matrix")
	}

	p := sr.NumCoeff()
	np := sr.NumParams()
	s := rslt.Scale()

	// Position of the log scale parameter, or -1 for the
	// exponential family.
	upos := -1
	if sr.Dist() == Weibull {
		upos = p
	}

	// Delta method variance of gamma_j = -coef_j/scale.  The
	// gradient has -1/scale in position j and coef_j/scale in the
	// log-scale position.
	gvar := func(j int) float64 {
		v := vcov[j*np+j] / (s * s)
		if upos != -1 {
			g := par[j] / s
			v += g * g * vcov[upos*np+upos]
			v += 2 * g * (-1 / s) * vcov[j*np+upos]
		}
		return v
	}

	ipos := -1
	w := &WeibullPH{results: rslt}

	for j := 0; j < p; j++ {
		name := rslt.Names()[j]
		if name == interceptVar {
			ipos = j
			continue
		}
		w.names = append(w.names, name)
		w.gamma = append(w.gamma, -par[j]/s)
		w.gammaSE = append(w.gammaSE, math.Sqrt(gvar(j)))
	}

	if ipos == -1 {
		return nil, fmt.Errorf("WeibullPH: intercept variable '%s' not found among model predictors", interceptVar)
	}

	w.shape = 1 / s
	if upos != -1 {
		// shape = exp(-u), so SE(shape) = shape * SE(u)
		w.shapeSE = w.shape * math.Sqrt(vcov[upos*np+upos])
	}

	// lambda = exp(-icept/scale); delta method on the log scale
	loglam := -par[ipos] / s
	w.lambda = math.Exp(loglam)
	w.lambdaSE = w.lambda * math.Sqrt(gvar(ipos))

	return w, nil
}

// Names returns the names of the covariates on the hazard scale.
func (w *WeibullPH) Names() []string {
	return w.names
}

// Params returns the hazard-scale coefficients.
func (w *WeibullPH) Params() []float64 {
	return w.gamma
}

// StdErr returns delta-method standard errors for the hazard-scale
// coefficients.
func (w *WeibullPH) StdErr() []float64 {
	return w.gammaSE
}

// HazardRatios returns exp(gamma) for each covariate.
func (w *WeibullPH) HazardRatios() []float64 {
	hr := make([]float64, len(w.gamma))
	for j := range w.gamma {
		hr[j] = math.Exp(w.gamma[j])
	}
	return hr
}

// Shape returns the Weibull shape parameter (1 for the exponential family).
func (w *WeibullPH) Shape() float64 {
	return w.shape
}

// Lambda returns the baseline rate parameter.
func (w *WeibullPH) Lambda() float64 {
	return w.lambda
}

// AIC returns the AIC of the underlying fit, which is unchanged by
// the reparameterization.
func (w *WeibullPH) AIC() float64 {
	return w.results.AIC()
}

// SurvProb returns the fitted survival probability at time t for a
// subject with the given covariate values, ordered as Names.
func (w *WeibullPH) SurvProb(t float64, x []float64) float64 {

	if len(x) != len(w.gamma) {
		panic(fmt.Sprintf("WeibullPH: %d covariate values but %d coefficients", len(x), len(w.gamma)))
	}

	lp := 0.0
	for j := range x {
		lp += x[j] * w.gamma[j]
	}

	return math.Exp(-w.lambda * math.Exp(lp) * math.Pow(t, w.shape))
}

// String returns a summary table of the proportional hazards view of
// the fitted model.
func (w *WeibullPH) String() string {

	n, e := w.results.summaryStats()
	sr := w.results.Model().(*SurvReg)

	sum := &statmodel.SummaryTable{}
	sum.Title = fmt.Sprintf("%s regression analysis (PH)", sr.Dist())

	sum.Top = append(sum.Top, fmt.Sprintf("  Sample size: %10d", n))
	sum.Top = append(sum.Top, fmt.Sprintf("  Events:      %10d", e))
	sum.Top = append(sum.Top, fmt.Sprintf("  LogLike: %14.2f", w.results.LogLike()))
	sum.Top = append(sum.Top, fmt.Sprintf("  AIC:     %14.2f", w.results.AIC()))

	var z, pv, lcb, ucb []float64
	for j := range w.gamma {
		zj := w.gamma[j] / w.gammaSE[j]
		z = append(z, zj)
		pv = append(pv, 2*(0.5*math.Erfc(math.Abs(zj)/math.Sqrt2)))
		lcb = append(lcb, math.Exp(w.gamma[j]-2*w.gammaSE[j]))
		ucb = append(ucb, math.Exp(w.gamma[j]+2*w.gammaSE[j]))
	}

	sum.ColNames = []string{"Variable   ", "Coefficient", "SE", "HR", "LCB", "UCB", "Z-score", "P-value"}
	sum.ColFmt = []statmodel.Fmter{
		statmodel.FmtString, statmodel.FmtFloat, statmodel.FmtFloat, statmodel.FmtFloat,
		statmodel.FmtFloat, statmodel.FmtFloat, statmodel.FmtFloat, statmodel.FmtFloat,
	}
	sum.Cols = []interface{}{w.names, w.gamma, w.gammaSE, w.HazardRatios(), lcb, ucb, z, pv}

	sum.Msg = append(sum.Msg, fmt.Sprintf("Shape: %.4f (SE %.4f)", w.shape, w.shapeSE))
	sum.Msg = append(sum.Msg, fmt.Sprintf("Baseline rate: %.6g (SE %.3g)", w.lambda, w.lambdaSE))

	return sum.String()
}
