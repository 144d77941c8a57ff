// Package report runs the survival analysis pipeline over the
// prepared trial data and renders its results into a text report and
// a set of plots.
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/kshedden/dstream/dstream"
	"go.uber.org/zap"

	"github.com/drtiong/parametric-surv/describe"
	"github.com/drtiong/parametric-surv/duration"
	"github.com/drtiong/parametric-surv/internal/config"
	"github.com/drtiong/parametric-surv/pbc"
)

// Report drives the analysis stages and accumulates their output.
type Report struct {
	cfg *config.Config
	log *zap.Logger

	// The prepared data, one row per patient
	data dstream.Dstream

	// Fitted models, kept for the later stages
	expRslt *duration.SurvRegResults
	weiRslt *duration.SurvRegResults
	phRslt  *duration.PHResults

	buf strings.Builder
}

// New returns a Report for the given configuration.
func New(cfg *config.Config, log *zap.Logger) *Report {
	if log == nil {
		log = zap.NewNop()
	}
	return &Report{
		cfg: cfg,
		log: log,
	}
}

// Run executes the full pipeline and writes the report and plots to
// the configured output directory.
func (r *Report) Run() error {

	if err := r.cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(r.cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("report: cannot create output directory: %w", err)
	}

	if err := r.load(); err != nil {
		return err
	}

	for _, stage := range []struct {
		name string
		f    func() error
	}{
		{"describe", r.describeStage},
		{"survival", r.survivalStage},
		{"competing risks", r.competingStage},
		{"regression", r.modelStage},
		{"diagnostics", r.diagStage},
		{"prediction", r.predictStage},
	} {
		r.log.Info("running stage", zap.String("stage", stage.name))
		if err := stage.f(); err != nil {
			return fmt.Errorf("report: %s stage: %w", stage.name, err)
		}
	}

	out := filepath.Join(r.cfg.OutDir, "report.txt")
	if err := os.WriteFile(out, []byte(r.buf.String()), 0o644); err != nil {
		return fmt.Errorf("report: cannot write report: %w", err)
	}
	r.log.Info("report written", zap.String("path", out))

	return nil
}

// keepVars returns every variable any stage needs from the raw file.
func (r *Report) keepVars() []string {

	an := &r.cfg.Analysis

	seen := make(map[string]bool)
	var keep []string
	add := func(names ...string) {
		for _, na := range names {
			switch na {
			case "Died", "AgeYears", "Female", "icept":
				// Derived during preparation
				continue
			}
			if !seen[na] {
				seen[na] = true
				keep = append(keep, na)
			}
		}
	}

	add(an.TimeVar, "status")
	add(an.GroupVars...)
	add(an.Covariates...)
	add(an.Continuous...)
	add(an.Categorical...)

	return keep
}

func (r *Report) load() error {

	fid, err := os.Open(r.cfg.Input)
	if err != nil {
		return fmt.Errorf("report: cannot open input: %w", err)
	}
	defer fid.Close()

	raw, err := pbc.Load(fid)
	if err != nil {
		return err
	}

	r.data, err = pbc.Prepare(raw, r.keepVars())
	if err != nil {
		return err
	}

	r.data.Reset()
	n := len(dstream.GetCol(r.data, r.cfg.Analysis.TimeVar).([]float64))
	r.log.Info("data prepared",
		zap.String("input", r.cfg.Input),
		zap.Int("patients", n))

	r.section("Data")
	r.printf("Input file: %s\n", r.cfg.Input)
	r.printf("Patients with complete data: %d\n", n)

	return nil
}

func (r *Report) section(title string) {
	r.printf("\n%s\n%s\n\n", title, strings.Repeat("=", len(title)))
}

func (r *Report) printf(format string, a ...interface{}) {
	fmt.Fprintf(&r.buf, format, a...)
}

func (r *Report) column(name string) []float64 {
	r.data.Reset()
	return dstream.GetCol(r.data, name).([]float64)
}

func (r *Report) describeStage() error {

	an := &r.cfg.Analysis
	if len(an.Continuous) == 0 && len(an.Categorical) == 0 {
		return nil
	}

	r.section("Descriptive statistics by event status (died vs censored)")

	tb := describe.NewTable(r.data, "Died").
		Continuous(an.Continuous...).
		Categorical(an.Categorical...).
		Done()
	r.printf("%s\n", tb)

	return nil
}

func (r *Report) survivalStage() error {

	an := &r.cfg.Analysis

	r.section("Survival to death")

	sf := duration.NewSurvfuncRight(r.data, an.TimeVar, "Died").Done()
	r.printf("Median survival: %.0f days\n", sf.Quantile(0.5))
	r.printf("Survival at 5 years: %.3f\n\n", sf.EvalAt(5*365.25))

	if r.cfg.Plots.Enabled {
		sp := duration.NewSurvfuncRightPlotter().
			Width(r.cfg.Plots.Width).Height(r.cfg.Plots.Height).
			Title("Overall survival")
		sp.AddCI(sf, "All patients", 1.96)
		if err := sp.Done().Save(r.plotPath("surv_overall.png")); err != nil {
			return err
		}
	}

	for _, g := range an.GroupVars {

		sfs, levels := duration.SurvfuncByGroup(r.data, an.TimeVar, "Died", g)

		r.printf("Median survival by %s:\n", g)
		for j, s := range sfs {
			r.printf("  %s=%-6g %8.0f days\n", g, levels[j], s.Quantile(0.5))
		}

		lr := duration.NewLogRank(r.data, an.TimeVar, "Died", g).Done()
		r.printf("Log-rank test for %s: chi2=%.4f df=%d p=%.4f\n\n",
			g, lr.ChiSq(), lr.Df(), lr.PValue())
		r.log.Debug("log-rank test",
			zap.String("group", g),
			zap.Float64("chisq", lr.ChiSq()),
			zap.Float64("p", lr.PValue()))

		if r.cfg.Plots.Enabled {
			sp := duration.NewSurvfuncRightPlotter().
				Width(r.cfg.Plots.Width).Height(r.cfg.Plots.Height).
				Title(fmt.Sprintf("Survival by %s", g))
			for j, s := range sfs {
				sp.Add(s, fmt.Sprintf("%s=%g", g, levels[j]))
			}
			if err := sp.Done().Save(r.plotPath("surv_by_" + g + ".png")); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *Report) competingStage() error {

	an := &r.cfg.Analysis

	ci := duration.NewCumincRight(r.data, an.TimeVar, "status").Done()
	if ci.NumCauses() < 2 {
		return nil
	}

	r.section("Competing risks: transplant and death")

	last := len(ci.Time()) - 1
	for k, label := range []string{"transplant", "death"} {
		if k >= ci.NumCauses() {
			break
		}
		r.printf("Cumulative incidence of %s at %.0f days: %.3f (SE %.3f)\n",
			label, ci.Time()[last], ci.Probs(k)[last], ci.ProbsSE(k)[last])
	}

	return nil
}

// hypothetical returns the covariate vector of the hypothetical
// patient, ordered as the model covariates.
func (r *Report) hypothetical() []float64 {

	an := &r.cfg.Analysis
	x := make([]float64, len(an.Covariates))
	for j, na := range an.Covariates {
		if na == "icept" {
			x[j] = 1
		} else {
			x[j] = an.Hypothetical[na]
		}
	}
	return x
}

func (r *Report) modelStage() error {

	an := &r.cfg.Analysis

	names := append([]string{an.TimeVar, "Died"}, an.Covariates...)
	da, err := pbc.Dataset(r.data, names)
	if err != nil {
		return err
	}

	em, err := duration.NewSurvReg(da, an.TimeVar, "Died", an.Covariates, duration.Exponential, nil)
	if err != nil {
		return err
	}
	r.expRslt, err = em.Fit()
	if err != nil {
		return fmt.Errorf("exponential fit: %w", err)
	}
	r.log.Info("model fit",
		zap.String("family", "exponential"),
		zap.Float64("loglike", r.expRslt.LogLike()))

	wm, err := duration.NewSurvReg(da, an.TimeVar, "Died", an.Covariates, duration.Weibull, nil)
	if err != nil {
		return err
	}
	r.weiRslt, err = wm.Fit()
	if err != nil {
		return fmt.Errorf("weibull fit: %w", err)
	}
	r.log.Info("model fit",
		zap.String("family", "weibull"),
		zap.Float64("loglike", r.weiRslt.LogLike()),
		zap.Float64("scale", r.weiRslt.Scale()))

	r.section("Exponential regression")
	r.printf("%s\n", r.expRslt.Summary())

	r.section("Weibull regression")
	r.printf("%s\n", r.weiRslt.Summary())

	wph, err := duration.NewWeibullPH(r.weiRslt, "icept")
	if err != nil {
		return err
	}
	r.section("Weibull regression, proportional hazards form")
	r.printf("%s\n", wph)

	// Cox regression for comparison; the partial likelihood has no
	// intercept.
	var xc []string
	for _, na := range an.Covariates {
		if na != "icept" {
			xc = append(xc, na)
		}
	}
	pm, err := duration.NewPHReg(da, an.TimeVar, "Died", xc, nil)
	if err != nil {
		return err
	}
	r.phRslt, err = pm.Fit()
	if err != nil {
		return fmt.Errorf("proportional hazards fit: %w", err)
	}

	r.section("Cox proportional hazards regression")
	r.printf("%s\n", r.phRslt.Summary())

	r.section("Model comparison")
	r.printf("%-14s %14s %10s %14s\n", "Model", "LogLike", "Params", "AIC")
	for _, m := range []struct {
		name string
		ll   float64
		np   int
		aic  float64
		note string
	}{
		{"Exponential", r.expRslt.LogLike(), len(r.expRslt.Params()), r.expRslt.AIC(), ""},
		{"Weibull AFT", r.weiRslt.LogLike(), len(r.weiRslt.Params()), r.weiRslt.AIC(), ""},
		{"Weibull PH", r.weiRslt.LogLike(), len(r.weiRslt.Params()), wph.AIC(), ""},
		{"Cox", r.phRslt.LogLike(), len(r.phRslt.Params()), r.phRslt.AIC(),
			"  partial likelihood, not comparable to the parametric AICs"},
	} {
		r.printf("%-14s %14.2f %10d %14.2f%s\n", m.name, m.ll, m.np, m.aic, m.note)
	}
	if r.weiRslt.AIC() < r.expRslt.AIC() {
		r.printf("\nThe Weibull model is preferred by AIC.\n")
	} else {
		r.printf("\nThe exponential model is preferred by AIC.\n")
	}

	// Discriminative ability of the Cox risk score
	c := r.concordance(xc)
	r.printf("\nConcordance of the Cox risk score: %.3f\n", c)

	return nil
}

// concordance estimates the Uno concordance of the fitted Cox risk
// score, truncating at the median follow-up time.
func (r *Report) concordance(covars []string) float64 {

	an := &r.cfg.Analysis

	time := r.column(an.TimeVar)
	died := r.column("Died")

	score := make([]float64, len(time))
	par := r.phRslt.Params()
	for j, na := range covars {
		x := r.column(na)
		for i := range x {
			score[i] += par[j] * x[i]
		}
	}

	// Truncate at the median survival time, or the last event time
	// when the survival function never reaches one half.
	sf := duration.NewSurvfuncRight(r.data, an.TimeVar, "Died").Done()
	tau := sf.Quantile(0.5)
	if math.IsNaN(tau) {
		st := sf.Time()
		tau = st[len(st)-1]
	}

	cc := duration.NewConcordance(time, died, score).Done()
	return cc.Concordance(tau)
}

func (r *Report) diagStage() error {

	an := &r.cfg.Analysis

	r.section("Model adequacy")

	for _, g := range an.GroupVars {

		cd := duration.CloglogDiagByGroup(r.data, an.TimeVar, "Died", g)
		r.printf("Cloglog slopes by %s (Weibull shape if linear):\n", g)
		for _, d := range cd {
			r.printf("  %s=%-6g slope %8.4f\n", g, d.Level, d.Slope)
		}

		od := duration.LogOddsDiagByGroup(r.data, an.TimeVar, "Died", g)
		r.printf("Log-odds slopes by %s:\n", g)
		for _, d := range od {
			r.printf("  %s=%-6g slope %8.4f\n", g, d.Level, d.Slope)
		}
		r.printf("\n")

		if r.cfg.Plots.Enabled {
			dp := duration.NewDiagPlotter("log(-log S(t))").
				Title(fmt.Sprintf("Weibull diagnostic by %s", g))
			if err := dp.AddAll(cd, g).Done().Save(r.plotPath("cloglog_" + g + ".png")); err != nil {
				return err
			}

			op := duration.NewDiagPlotter("log((1-S)/S)").
				Title(fmt.Sprintf("Log-odds diagnostic by %s", g))
			if err := op.AddAll(od, g).Done().Save(r.plotPath("logodds_" + g + ".png")); err != nil {
				return err
			}
		}
	}

	r.printf("Weibull shape from the regression fit: %.4f\n", 1/r.weiRslt.Scale())

	return nil
}

func (r *Report) predictStage() error {

	an := &r.cfg.Analysis
	x := r.hypothetical()

	r.section("Predicted survival for the hypothetical patient")

	for j, na := range an.Covariates {
		r.printf("  %-14s %10.4f\n", na, x[j])
	}
	r.printf("\n")

	r.printf("Predicted median survival: %.0f days\n", r.weiRslt.QuantileAt(0.5, x))
	r.printf("Predicted survival at 5 years: %.3f\n\n", r.weiRslt.SurvProbAt(5*365.25, x))

	probs, times := r.weiRslt.QuantileCurve(x, an.QuantilePoints)
	r.printf("%10s %14s\n", "S(t)", "t (days)")
	for i := range probs {
		r.printf("%10.2f %14.0f\n", probs[i], times[i])
	}

	return nil
}

func (r *Report) plotPath(name string) string {
	return filepath.Join(r.cfg.OutDir, name)
}

// Results returns the fitted models, for callers that need them
// beyond the rendered report.
func (r *Report) Results() (exp, weib *duration.SurvRegResults, cox *duration.PHResults) {
	return r.expRslt, r.weiRslt, r.phRslt
}
