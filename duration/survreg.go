package duration

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/drtiong/parametric-surv/statmodel"
)

// SurvDist identifies the distributional family of a parametric
// survival regression model.
type SurvDist int

// Exponential fixes the scale of the extreme value error distribution
// at 1, giving a constant hazard; Weibull estimates the scale as a
// free parameter.
const (
	Exponential SurvDist = iota
	Weibull
)

// String returns the name of the distributional family.
func (d SurvDist) String() string {
	switch d {
	case Exponential:
		return "Exponential"
	case Weibull:
		return "Weibull"
	}
	return fmt.Sprintf("SurvDist(%d)", int(d))
}

// SurvRegParameter contains a parameter value for a parametric
// survival regression model.  For the Weibull family the last element
// is the log of the scale parameter.
type SurvRegParameter struct {
	coeff []float64
}

// GetCoeff returns the array of model parameters from a parameter value.
func (p *SurvRegParameter) GetCoeff() []float64 {
	return p.coeff
}

// SetCoeff sets the array of model parameters for a parameter value.
func (p *SurvRegParameter) SetCoeff(x []float64) {
	p.coeff = x
}

// Clone returns a deep copy of the parameter value.
func (p *SurvRegParameter) Clone() statmodel.Parameter {
	q := make([]float64, len(p.coeff))
	copy(q, p.coeff)
	return &SurvRegParameter{q}
}

// SurvReg describes an accelerated failure time regression model for
// right censored data, fit by maximum likelihood.  The log event time
// follows a linear predictor of the covariates plus a scaled extreme
// value error, which gives exponential or Weibull distributed event
// times.  An intercept is not added automatically; include a constant
// column among the predictors to fit one.
type SurvReg struct {

	// The names of the variables.  The order agrees with the order of 'data'.
	varnames []string

	// The data to which the model is fit
	data [][]statmodel.Dtype

	// The distributional family
	dist SurvDist

	// Name and position of the event/censoring time variable
	timepos int

	// Name and position of the status variable
	statuspos int

	// Position of a case weight variable, or -1
	weightpos int

	// The positions of the covariates
	xpos []int

	// Log of the time variable, precomputed
	logtime []float64

	// Starting values, optional
	start []float64

	// Optimization settings
	optsettings *optimize.Settings

	// Optimization method
	optmethod optimize.Method

	log *log.Logger
}

// SurvRegConfig defines configuration parameters for a parametric
// survival regression.
type SurvRegConfig struct {

	// A logger to which logging information is written
	Log *log.Logger

	// Start contains starting values for the parameter estimates
	Start []float64

	// WeightVar is the name of a variable giving case weights, optional.
	WeightVar string

	// OptMethod is the Gonum optimization method used to fit the model.
	OptMethod optimize.Method

	// OptSettings configures the Gonum optimization routine.
	OptSettings *optimize.Settings
}

// DefaultSurvRegConfig returns a default configuration struct for a
// parametric survival regression.
func DefaultSurvRegConfig() *SurvRegConfig {

	return &SurvRegConfig{
		OptMethod: &optimize.BFGS{
			Linesearcher: &optimize.MoreThuente{},
		},
		OptSettings: &optimize.Settings{
			GradientThreshold: 1e-6,
		},
	}
}

// NewSurvReg returns a SurvReg value that can be used to fit an
// exponential or Weibull survival regression model.
func NewSurvReg(data statmodel.Dataset, time, status string, predictors []string, dist SurvDist, config *SurvRegConfig) (*SurvReg, error) {

	if config == nil {
		config = DefaultSurvRegConfig()
	}

	pos := make(map[string]int)
	for i, v := range data.Names() {
		pos[v] = i
	}

	timepos, ok := pos[time]
	if !ok {
		return nil, fmt.Errorf("SurvReg: time variable '%s' not found in dataset", time)
	}

	statuspos, ok := pos[status]
	if !ok {
		return nil, fmt.Errorf("SurvReg: status variable '%s' not found in dataset", status)
	}

	var xpos []int
	for _, xna := range predictors {
		xp, ok := pos[xna]
		if !ok {
			return nil, fmt.Errorf("SurvReg: predictor '%s' not found in dataset", xna)
		}
		xpos = append(xpos, xp)
	}

	weightpos := -1
	if config.WeightVar != "" {
		weightpos, ok = pos[config.WeightVar]
		if !ok {
			return nil, fmt.Errorf("SurvReg: weight variable '%s' not found in dataset", config.WeightVar)
		}
	}

	sr := &SurvReg{
		data:        data.Data(),
		varnames:    data.Names(),
		dist:        dist,
		timepos:     timepos,
		statuspos:   statuspos,
		weightpos:   weightpos,
		xpos:        xpos,
		start:       config.Start,
		log:         config.Log,
		optsettings: config.OptSettings,
		optmethod:   config.OptMethod,
	}

	tv := sr.data[sr.timepos]
	st := sr.data[sr.statuspos]
	sr.logtime = make([]float64, len(tv))
	for i, t := range tv {
		if t <= 0 {
			return nil, fmt.Errorf("SurvReg: times must be positive")
		}
		if st[i] != 0 && st[i] != 1 {
			return nil, fmt.Errorf("SurvReg: status variable '%s' has values other than 0 and 1",
				sr.varnames[sr.statuspos])
		}
		sr.logtime[i] = math.Log(float64(t))
	}

	return sr, nil
}

// NumObs returns the number of observations in the data set.
func (sr *SurvReg) NumObs() int {
	return len(sr.data[0])
}

// NumParams returns the number of model parameters: the regression
// coefficients, plus the log scale for the Weibull family.
func (sr *SurvReg) NumParams() int {
	if sr.dist == Weibull {
		return len(sr.xpos) + 1
	}
	return len(sr.xpos)
}

// NumCoeff returns the number of regression coefficients, excluding
// the scale parameter.
func (sr *SurvReg) NumCoeff() int {
	return len(sr.xpos)
}

// Dist returns the distributional family of the model.
func (sr *SurvReg) Dist() SurvDist {
	return sr.dist
}

// Dataset returns the data columns that are used to fit the model.
func (sr *SurvReg) Dataset() [][]statmodel.Dtype {
	return sr.data
}

// Xpos returns the positions of the covariates in the dataset.
func (sr *SurvReg) Xpos() []int {
	return sr.xpos
}

// scale extracts the scale parameter and its log from a parameter vector.
func (sr *SurvReg) scale(coeff []float64) (float64, float64) {
	if sr.dist == Weibull {
		u := coeff[len(sr.xpos)]
		return math.Exp(u), u
	}
	return 1, 0
}

// linpred fills lp with the linear predictor at the given coefficients.
func (sr *SurvReg) linpred(coeff []float64, lp []float64) {
	zero(lp)
	for j, k := range sr.xpos {
		x := sr.data[k]
		for i := range x {
			lp[i] += float64(x[i]) * coeff[j]
		}
	}
}

// LogLike returns the log-likelihood at the given parameter value.
// The likelihood is for the event times themselves, not the log
// times, so values are comparable to other density-based fits.  The
// 'exact' parameter is ignored here.
func (sr *SurvReg) LogLike(param statmodel.Parameter, exact bool) float64 {

	coeff := param.GetCoeff()
	s, u := sr.scale(coeff)

	status := sr.data[sr.statuspos]

	var wgt []statmodel.Dtype
	if sr.weightpos != -1 {
		wgt = sr.data[sr.weightpos]
	}

	lp := make([]float64, sr.NumObs())
	sr.linpred(coeff, lp)

	var ll float64
	for i := range lp {

		w := float64(1)
		if wgt != nil {
			w = float64(wgt[i])
		}

		z := (sr.logtime[i] - lp[i]) / s
		ez := math.Exp(z)

		if status[i] == 1 {
			ll += w * (z - ez - u - sr.logtime[i])
		} else {
			ll -= w * ez
		}
	}

	return ll
}

// Score computes the score vector of the log-likelihood at the given
// parameter setting.
func (sr *SurvReg) Score(param statmodel.Parameter, score []float64) {

	coeff := param.GetCoeff()
	s, _ := sr.scale(coeff)

	status := sr.data[sr.statuspos]

	var wgt []statmodel.Dtype
	if sr.weightpos != -1 {
		wgt = sr.data[sr.weightpos]
	}

	lp := make([]float64, sr.NumObs())
	sr.linpred(coeff, lp)

	zero(score)
	for i := range lp {

		w := float64(1)
		if wgt != nil {
			w = float64(wgt[i])
		}

		z := (sr.logtime[i] - lp[i]) / s
		ez := math.Exp(z)
		d := float64(status[i])

		for j, k := range sr.xpos {
			score[j] += w * float64(sr.data[k][i]) * (ez - d) / s
		}

		if sr.dist == Weibull {
			score[len(sr.xpos)] += w * (z*ez - d*(z+1))
		}
	}
}

// Hessian computes the Hessian matrix of the log-likelihood evaluated
// at the given parameter setting.  The Hessian type parameter is not
// used here.
func (sr *SurvReg) Hessian(param statmodel.Parameter, ht statmodel.HessType, hess []float64) {

	coeff := param.GetCoeff()
	s, _ := sr.scale(coeff)

	status := sr.data[sr.statuspos]

	var wgt []statmodel.Dtype
	if sr.weightpos != -1 {
		wgt = sr.data[sr.weightpos]
	}

	lp := make([]float64, sr.NumObs())
	sr.linpred(coeff, lp)

	p := len(sr.xpos)
	np := sr.NumParams()

	zero(hess)
	for i := range lp {

		w := float64(1)
		if wgt != nil {
			w = float64(wgt[i])
		}

		z := (sr.logtime[i] - lp[i]) / s
		ez := math.Exp(z)
		d := float64(status[i])

		for j1 := 0; j1 < p; j1++ {
			x1 := float64(sr.data[sr.xpos[j1]][i])
			for j2 := 0; j2 <= j1; j2++ {
				x2 := float64(sr.data[sr.xpos[j2]][i])
				u := -w * x1 * x2 * ez / (s * s)
				hess[j1*np+j2] += u
				if j2 != j1 {
					hess[j2*np+j1] += u
				}
			}
		}

		if sr.dist == Weibull {
			for j := 0; j < p; j++ {
				x := float64(sr.data[sr.xpos[j]][i])
				u := -w * x * (z*ez + ez - d) / s
				hess[j*np+p] += u
				hess[p*np+j] += u
			}
			hess[p*np+p] += w * (d*z - z*ez*(1+z))
		}
	}
}

// SurvRegResults describes the results of a fitted parametric
// survival regression model.
type SurvRegResults struct {
	statmodel.BaseResults

	scale float64
}

// Scale returns the estimated scale parameter, which is 1 for the
// exponential family.
func (rslt *SurvRegResults) Scale() float64 {
	return rslt.scale
}

// Fit fits the model to the data.
func (sr *SurvReg) Fit() (*SurvRegResults, error) {

	np := sr.NumParams()

	if sr.start == nil {
		sr.start = make([]float64, np)
	}
	start := make([]float64, np)
	copy(start, sr.start)

	pr := optimize.Problem{
		Func: func(x []float64) float64 {
			return -sr.LogLike(&SurvRegParameter{x}, false)
		},
		Grad: func(grad, x []float64) {
			if len(grad) != len(x) {
				grad = make([]float64, len(x))
			}
			sr.Score(&SurvRegParameter{x}, grad)
			negative(grad)
		},
	}

	optrslt, err := optimize.Minimize(pr, start, sr.optsettings, sr.optmethod)
	if err != nil {
		return nil, err
	}
	if err = optrslt.Status.Err(); err != nil {
		return nil, err
	}

	param := make([]float64, len(optrslt.X))
	copy(param, optrslt.X)

	var xna []string
	for _, k := range sr.xpos {
		xna = append(xna, sr.varnames[k])
	}
	if sr.dist == Weibull {
		xna = append(xna, "log(scale)")
	}

	ll := -optrslt.F
	vcov, _ := statmodel.GetVcov(sr, &SurvRegParameter{param})

	scale, _ := sr.scale(param)

	results := &SurvRegResults{
		BaseResults: statmodel.NewBaseResults(sr, ll, param, xna, vcov),
		scale:       scale,
	}

	return results, nil
}

func (rslt *SurvRegResults) summaryStats() (int, int) {

	sr := rslt.Model().(*SurvReg)
	status := sr.data[sr.statuspos]

	var e int
	for i := range status {
		e += int(status[i])
	}

	return sr.NumObs(), e
}

// SurvRegSummary summarizes a fitted parametric survival regression model.
type SurvRegSummary struct {
	sr      *SurvReg
	results *SurvRegResults

	// Messages that are appended to the table
	messages []string
}

// Summary displays a summary table of the model results.
func (rslt *SurvRegResults) Summary() *SurvRegSummary {

	return &SurvRegSummary{
		sr:      rslt.Model().(*SurvReg),
		results: rslt,
	}
}

// String returns a string representation of a summary table for the model.
func (srs *SurvRegSummary) String() string {

	n, e := srs.results.summaryStats()
	sr := srs.sr

	sum := &statmodel.SummaryTable{
		Msg: srs.messages,
	}

	sum.Title = fmt.Sprintf("%s regression analysis (AFT)", sr.dist)

	sum.Top = append(sum.Top, fmt.Sprintf("  Sample size: %10d", n))
	sum.Top = append(sum.Top, fmt.Sprintf("  Events:      %10d", e))
	sum.Top = append(sum.Top, fmt.Sprintf("  LogLike: %14.2f", srs.results.LogLike()))
	sum.Top = append(sum.Top, fmt.Sprintf("  AIC:     %14.2f", srs.results.AIC()))

	// Time ratios and their confidence bounds, on the covariates
	// only; the scale parameter is not a time ratio and its rows
	// are left blank.
	par := srs.results.Params()
	se := srs.results.StdErr()
	nc := sr.NumCoeff()
	var tr, lcb, ucb []string
	for j := range par {
		if j >= nc {
			tr = append(tr, "")
			lcb = append(lcb, "")
			ucb = append(ucb, "")
			continue
		}
		tr = append(tr, fmt.Sprintf("%10.4f", math.Exp(par[j])))
		lcb = append(lcb, fmt.Sprintf("%10.4f", math.Exp(par[j]-2*se[j])))
		ucb = append(ucb, fmt.Sprintf("%10.4f", math.Exp(par[j]+2*se[j])))
	}

	sum.ColNames = []string{"Variable   ", "Coefficient", "SE", "TR", "LCB", "UCB", "Z-score", "P-value"}
	sum.ColFmt = []statmodel.Fmter{
		statmodel.FmtString, statmodel.FmtFloat, statmodel.FmtFloat, statmodel.FmtString,
		statmodel.FmtString, statmodel.FmtString, statmodel.FmtFloat, statmodel.FmtFloat,
	}
	sum.Cols = []interface{}{
		srs.results.Names(), par, se, tr, lcb, ucb,
		srs.results.ZScores(), srs.results.PValues(),
	}

	if sr.dist == Weibull {
		sum.Msg = append(sum.Msg, fmt.Sprintf("Scale: %.4f (Weibull shape %.4f)",
			srs.results.scale, 1/srs.results.scale))
	}

	return sum.String()
}
