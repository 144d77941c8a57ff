// Package duration supports statistical analysis of duration data
// (survival analysis): nonparametric survival function and cumulative
// incidence estimation, the log-rank test, semiparametric
// proportional hazards regression, and parametric (exponential and
// Weibull) survival regression in both the accelerated failure time
// and proportional hazards parameterizations.
package duration

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/drtiong/parametric-surv/statmodel"
)

// PHParameter contains a parameter value for a proportional hazards
// regression model.
type PHParameter struct {
	coeff []float64
}

// GetCoeff returns the array of model coefficients from a parameter value.
func (p *PHParameter) GetCoeff() []float64 {
	return p.coeff
}

// SetCoeff sets the array of model coefficients for a parameter value.
func (p *PHParameter) SetCoeff(x []float64) {
	p.coeff = x
}

// Clone returns a deep copy of the parameter value.
func (p *PHParameter) Clone() statmodel.Parameter {
	q := make([]float64, len(p.coeff))
	copy(q, p.coeff)
	return &PHParameter{q}
}

// PHReg describes a proportional hazards regression model for right
// censored data, fit by maximizing the Breslow partial likelihood.
type PHReg struct {

	// The names of the variables.  The order agrees with the order of 'data'.
	varnames []string

	// The data to which the model is fit
	data [][]statmodel.Dtype

	// Positions of the time and status variables
	timepos   int
	statuspos int

	// Position of a case weight variable, or -1
	weightpos int

	// The positions of the covariates
	xpos []int

	// Row indices sorted by decreasing time
	ord []int

	// ord[dix[k]:dix[k+1]] are the rows tied at the k^th largest
	// distinct time value
	dix []int

	// Weighted number of events at each distinct time, ordered as dix
	nevent []float64

	// Starting values, optional
	start []float64

	// Optimization settings
	optsettings *optimize.Settings

	// Optimization method
	optmethod optimize.Method
}

// PHRegConfig defines configuration parameters for a proportional
// hazards regression.
type PHRegConfig struct {

	// Start contains starting values for the regression parameter estimates
	Start []float64

	// WeightVar is the name of a variable giving case weights, optional.
	WeightVar string

	// OptMethod is the Gonum optimization method used to fit the model.
	OptMethod optimize.Method

	// OptSettings configures the Gonum optimization routine.
	OptSettings *optimize.Settings
}

// DefaultPHRegConfig returns a default configuration struct for a
// proportional hazards regression.
func DefaultPHRegConfig() *PHRegConfig {

	return &PHRegConfig{
		OptMethod: &optimize.BFGS{
			Linesearcher: &optimize.MoreThuente{},
		},
		OptSettings: &optimize.Settings{
			GradientThreshold: 1e-6,
		},
	}
}

// NewPHReg returns a PHReg value that can be used to fit a
// proportional hazards regression model.
func NewPHReg(data statmodel.Dataset, time, status string, predictors []string, config *PHRegConfig) (*PHReg, error) {

	if config == nil {
		config = DefaultPHRegConfig()
	}

	pos := make(map[string]int)
	for i, v := range data.Names() {
		pos[v] = i
	}

	timepos, ok := pos[time]
	if !ok {
		return nil, fmt.Errorf("PHReg: time variable '%s' not found in dataset", time)
	}

	statuspos, ok := pos[status]
	if !ok {
		return nil, fmt.Errorf("PHReg: status variable '%s' not found in dataset", status)
	}

	var xpos []int
	for _, xna := range predictors {
		xp, ok := pos[xna]
		if !ok {
			return nil, fmt.Errorf("PHReg: predictor '%s' not found in dataset", xna)
		}
		xpos = append(xpos, xp)
	}

	weightpos := -1
	if config.WeightVar != "" {
		weightpos, ok = pos[config.WeightVar]
		if !ok {
			return nil, fmt.Errorf("PHReg: weight variable '%s' not found in dataset", config.WeightVar)
		}
	}

	ph := &PHReg{
		data:        data.Data(),
		varnames:    data.Names(),
		timepos:     timepos,
		statuspos:   statuspos,
		weightpos:   weightpos,
		xpos:        xpos,
		start:       config.Start,
		optsettings: config.OptSettings,
		optmethod:   config.OptMethod,
	}

	if err := ph.setup(); err != nil {
		return nil, err
	}

	return ph, nil
}

// setup sorts the rows by decreasing time and locates the ties, so
// that risk sets can be accumulated in one pass.
func (ph *PHReg) setup() error {

	time := ph.data[ph.timepos]
	status := ph.data[ph.statuspos]
	nobs := len(time)

	for i := range time {
		if time[i] < 0 {
			return fmt.Errorf("PHReg: times cannot be negative")
		}
		if status[i] != 0 && status[i] != 1 {
			return fmt.Errorf("PHReg: status variable '%s' has values other than 0 and 1",
				ph.varnames[ph.statuspos])
		}
	}

	ph.ord = make([]int, nobs)
	for i := range ph.ord {
		ph.ord[i] = i
	}
	sort.SliceStable(ph.ord, func(i, j int) bool {
		return time[ph.ord[i]] > time[ph.ord[j]]
	})

	var wgt []statmodel.Dtype
	if ph.weightpos != -1 {
		wgt = ph.data[ph.weightpos]
	}

	ph.dix = ph.dix[0:0]
	ph.nevent = ph.nevent[0:0]
	for k := 0; k < nobs; {
		ph.dix = append(ph.dix, k)
		t := time[ph.ord[k]]
		var d float64
		for ; k < nobs && time[ph.ord[k]] == t; k++ {
			i := ph.ord[k]
			if status[i] == 1 {
				if wgt != nil {
					d += float64(wgt[i])
				} else {
					d++
				}
			}
		}
		ph.nevent = append(ph.nevent, d)
	}
	ph.dix = append(ph.dix, nobs)

	return nil
}

// NumObs returns the number of observations in the data set.
func (ph *PHReg) NumObs() int {
	return len(ph.data[0])
}

// NumParams returns the number of model parameters (regression coefficients).
func (ph *PHReg) NumParams() int {
	return len(ph.xpos)
}

// Dataset returns the data columns that are used to fit the model.
func (ph *PHReg) Dataset() [][]statmodel.Dtype {
	return ph.data
}

// Xpos returns the positions of the covariates in the dataset.
func (ph *PHReg) Xpos() []int {
	return ph.xpos
}

// linpred fills lp with the linear predictor at the given
// coefficients, shifted by its maximum for numerical stability.
func (ph *PHReg) linpred(coeff []float64, lp []float64) {

	zero(lp)
	for j, k := range ph.xpos {
		x := ph.data[k]
		for i := range x {
			lp[i] += float64(x[i]) * coeff[j]
		}
	}

	// We can subtract any constant due to invariance in the
	// partial likelihood.
	mx := floats.Max(lp)
	for i := range lp {
		lp[i] -= mx
	}
}

// LogLike returns the Breslow partial log-likelihood at the given
// parameter value.  The 'exact' parameter is ignored here.
func (ph *PHReg) LogLike(param statmodel.Parameter, exact bool) float64 {

	coeff := param.GetCoeff()
	status := ph.data[ph.statuspos]

	var wgt []statmodel.Dtype
	if ph.weightpos != -1 {
		wgt = ph.data[ph.weightpos]
	}

	lp := make([]float64, ph.NumObs())
	ph.linpred(coeff, lp)

	var ll, rlp float64
	for k := 0; k < len(ph.nevent); k++ {

		// The rows tied at this time enter the risk set.
		for _, i := range ph.ord[ph.dix[k]:ph.dix[k+1]] {
			w := float64(1)
			if wgt != nil {
				w = float64(wgt[i])
			}
			rlp += w * math.Exp(lp[i])
			if status[i] == 1 {
				ll += w * lp[i]
			}
		}

		if ph.nevent[k] > 0 {
			ll -= ph.nevent[k] * math.Log(rlp)
		}
	}

	return ll
}

// Score computes the score vector of the partial log-likelihood at
// the given parameter setting.
func (ph *PHReg) Score(param statmodel.Parameter, score []float64) {

	coeff := param.GetCoeff()
	status := ph.data[ph.statuspos]

	var wgt []statmodel.Dtype
	if ph.weightpos != -1 {
		wgt = ph.data[ph.weightpos]
	}

	lp := make([]float64, ph.NumObs())
	ph.linpred(coeff, lp)

	p := len(ph.xpos)
	zero(score)

	rlp := 0.0
	rlpv := make([]float64, p)

	for k := 0; k < len(ph.nevent); k++ {

		for _, i := range ph.ord[ph.dix[k]:ph.dix[k+1]] {
			w := float64(1)
			if wgt != nil {
				w = float64(wgt[i])
			}
			e := w * math.Exp(lp[i])
			rlp += e
			for j, q := range ph.xpos {
				rlpv[j] += e * float64(ph.data[q][i])
			}
			if status[i] == 1 {
				for j, q := range ph.xpos {
					score[j] += w * float64(ph.data[q][i])
				}
			}
		}

		if ph.nevent[k] > 0 {
			floats.AddScaledTo(score, score, -ph.nevent[k]/rlp, rlpv)
		}
	}
}

// Hessian computes the Hessian matrix of the partial log-likelihood
// evaluated at the given parameter setting.  The Hessian type
// parameter is not used here.
func (ph *PHReg) Hessian(param statmodel.Parameter, ht statmodel.HessType, hess []float64) {

	coeff := param.GetCoeff()

	var wgt []statmodel.Dtype
	if ph.weightpos != -1 {
		wgt = ph.data[ph.weightpos]
	}

	lp := make([]float64, ph.NumObs())
	ph.linpred(coeff, lp)

	p := len(ph.xpos)
	zero(hess)

	rlp := 0.0
	d1s := make([]float64, p)
	d2s := make([]float64, p*p)

	for k := 0; k < len(ph.nevent); k++ {

		for _, i := range ph.ord[ph.dix[k]:ph.dix[k+1]] {
			w := float64(1)
			if wgt != nil {
				w = float64(wgt[i])
			}
			e := w * math.Exp(lp[i])
			rlp += e
			for j1, q1 := range ph.xpos {
				x1 := float64(ph.data[q1][i])
				d1s[j1] += e * x1
				for j2 := 0; j2 <= j1; j2++ {
					x2 := float64(ph.data[ph.xpos[j2]][i])
					u := e * x1 * x2
					d2s[j1*p+j2] += u
					if j2 != j1 {
						d2s[j2*p+j1] += u
					}
				}
			}
		}

		d := ph.nevent[k]
		if d == 0 {
			continue
		}

		jj := 0
		for j1 := 0; j1 < p; j1++ {
			for j2 := 0; j2 < p; j2++ {
				hess[jj] -= d * d2s[j1*p+j2] / rlp
				hess[jj] += d * d1s[j1] * d1s[j2] / (rlp * rlp)
				jj++
			}
		}
	}
}

func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}

func negative(x []float64) {
	for i := 0; i < len(x); i++ {
		x[i] *= -1
	}
}

// PHResults describes the results of a proportional hazards model.
type PHResults struct {
	statmodel.BaseResults
}

// Fit fits the model to the data.
func (ph *PHReg) Fit() (*PHResults, error) {

	nvar := len(ph.xpos)

	if ph.start == nil {
		ph.start = make([]float64, nvar)
	}
	start := make([]float64, nvar)
	copy(start, ph.start)

	pr := optimize.Problem{
		Func: func(x []float64) float64 {
			return -ph.LogLike(&PHParameter{x}, false)
		},
		Grad: func(grad, x []float64) {
			if len(grad) != len(x) {
				grad = make([]float64, len(x))
			}
			ph.Score(&PHParameter{x}, grad)
			negative(grad)
		},
	}

	optrslt, err := optimize.Minimize(pr, start, ph.optsettings, ph.optmethod)
	if err != nil {
		return nil, err
	}
	if err = optrslt.Status.Err(); err != nil {
		return nil, err
	}

	param := make([]float64, len(optrslt.X))
	copy(param, optrslt.X)

	var xna []string
	for _, k := range ph.xpos {
		xna = append(xna, ph.varnames[k])
	}

	ll := -optrslt.F
	vcov, _ := statmodel.GetVcov(ph, &PHParameter{param})

	results := &PHResults{
		BaseResults: statmodel.NewBaseResults(ph, ll, param, xna, vcov),
	}

	return results, nil
}

func (rslt *PHResults) summaryStats() (int, int) {

	ph := rslt.Model().(*PHReg)
	status := ph.data[ph.statuspos]

	var e int
	for i := range status {
		e += int(status[i])
	}

	return ph.NumObs(), e
}

// PHSummary summarizes a fitted proportional hazards regression model.
type PHSummary struct {
	ph      *PHReg
	results *PHResults

	// Messages that are appended to the table
	messages []string
}

// Summary displays a summary table of the model results.
func (rslt *PHResults) Summary() *PHSummary {

	return &PHSummary{
		ph:      rslt.Model().(*PHReg),
		results: rslt,
	}
}

// String returns a string representation of a summary table for the model.
func (phs *PHSummary) String() string {

	n, e := phs.results.summaryStats()

	sum := &statmodel.SummaryTable{
		Msg: phs.messages,
	}

	sum.Title = "Proportional hazards regression analysis"

	sum.Top = append(sum.Top, fmt.Sprintf("  Sample size: %10d", n))
	sum.Top = append(sum.Top, fmt.Sprintf("  Events:      %10d", e))
	sum.Top = append(sum.Top, "  Ties:           Breslow")
	sum.Top = append(sum.Top, fmt.Sprintf("  LogLike: %14.2f", phs.results.LogLike()))

	// Estimate and CI for the hazard ratio
	par := phs.results.Params()
	se := phs.results.StdErr()
	var hr, lcb, ucb []float64
	for j := range par {
		hr = append(hr, math.Exp(par[j]))
		lcb = append(lcb, math.Exp(par[j]-2*se[j]))
		ucb = append(ucb, math.Exp(par[j]+2*se[j]))
	}

	sum.ColNames = []string{"Variable   ", "Coefficient", "SE", "HR", "LCB", "UCB", "Z-score", "P-value"}
	sum.ColFmt = []statmodel.Fmter{
		statmodel.FmtString, statmodel.FmtFloat, statmodel.FmtFloat, statmodel.FmtFloat,
		statmodel.FmtFloat, statmodel.FmtFloat, statmodel.FmtFloat, statmodel.FmtFloat,
	}
	sum.Cols = []interface{}{
		phs.results.Names(), par, se, hr, lcb, ucb,
		phs.results.ZScores(), phs.results.PValues(),
	}

	return sum.String()
}
