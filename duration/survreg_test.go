// Test the parametric survival regression log-likelihood, score, and
// Hessian functions using numeric derivatives, closed form results
// for the intercept-only exponential model, and the nesting of the
// exponential family within the Weibull family.

package duration

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"github.com/drtiong/parametric-surv/statmodel"
)

func survregData() statmodel.Dataset {

	icept := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	time := []float64{3, 1, 5, 2, 8, 4, 2.5, 6, 1.5, 7, 3.5, 9}
	status := []float64{1, 1, 0, 1, 1, 0, 1, 1, 1, 0, 1, 1}
	x1 := []float64{1, -1, 2, 0, 1.5, -0.5, 0.5, 2.5, -1.5, 1, 0, 2}
	x2 := []float64{0, 1, 1, 0, -1, 2, 1.5, 0.5, 1, -0.5, 2, 1}
	weight := []float64{1, 2, 1, 1, 2, 1, 1, 1, 2, 1, 1, 1}

	return statmodel.NewDataset(
		[][]float64{icept, time, status, x1, x2, weight},
		[]string{"icept", "time", "status", "x1", "x2", "weight"})
}

type survregDiffProb struct {
	dist   SurvDist
	weight bool
	params [][]float64
}

var survregDiffProbs []survregDiffProb = []survregDiffProb{
	{
		dist:   Exponential,
		params: [][]float64{{0, 0, 0}, {0.1, -0.2, 0.3}, {-0.5, 0.2, 0.1}, {1, 0, -0.3}},
	},
	{
		dist:   Exponential,
		weight: true,
		params: [][]float64{{0, 0, 0}, {0.2, 0.1, -0.2}},
	},
	{
		dist:   Weibull,
		params: [][]float64{{0, 0, 0, 0}, {0.1, -0.2, 0.3, -0.1}, {-0.3, 0.1, 0.2, 0.2}},
	},
	{
		dist:   Weibull,
		weight: true,
		params: [][]float64{{0, 0, 0, 0}, {0.5, -0.1, 0.1, 0.3}},
	},
}

func TestSurvRegGrad(t *testing.T) {

	for _, pr := range survregDiffProbs {

		config := DefaultSurvRegConfig()
		if pr.weight {
			config.WeightVar = "weight"
		}

		model, err := NewSurvReg(survregData(), "time", "status",
			[]string{"icept", "x1", "x2"}, pr.dist, config)
		if err != nil {
			t.Fatal(err)
		}

		np := model.NumParams()
		ngrad := make([]float64, np)
		score := make([]float64, np)

		loglike := func(x []float64) float64 {
			return model.LogLike(&SurvRegParameter{x}, false)
		}

		fdset := &fd.Settings{
			Formula: fd.Forward,
			Step:    1e-6,
		}

		for _, params := range pr.params {
			fd.Gradient(ngrad, loglike, params, fdset)
			model.Score(&SurvRegParameter{params}, score)
			if !floats.EqualApprox(score, ngrad, 1e-4) {
				t.Errorf("%v: numerical %v analytical %v", pr.dist, ngrad, score)
			}
		}
	}
}

func TestSurvRegHessian(t *testing.T) {

	for _, pr := range survregDiffProbs {

		config := DefaultSurvRegConfig()
		if pr.weight {
			config.WeightVar = "weight"
		}

		model, err := NewSurvReg(survregData(), "time", "status",
			[]string{"icept", "x1", "x2"}, pr.dist, config)
		if err != nil {
			t.Fatal(err)
		}

		np := model.NumParams()
		hess := make([]float64, np*np)
		sc1 := make([]float64, np)
		sc2 := make([]float64, np)

		for _, params := range pr.params {

			model.Hessian(&SurvRegParameter{params}, statmodel.ObsHess, hess)

			// Central difference of the score, one parameter
			// at a time.
			const h = 1e-5
			pw := make([]float64, np)
			for j := 0; j < np; j++ {
				copy(pw, params)
				pw[j] = params[j] + h
				model.Score(&SurvRegParameter{pw}, sc1)
				pw[j] = params[j] - h
				model.Score(&SurvRegParameter{pw}, sc2)

				for k := 0; k < np; k++ {
					nh := (sc1[k] - sc2[k]) / (2 * h)
					if math.Abs(nh-hess[k*np+j]) > 1e-4*(1+math.Abs(nh)) {
						t.Errorf("%v: hessian[%d,%d] numerical %v analytical %v",
							pr.dist, k, j, nh, hess[k*np+j])
					}
				}
			}
		}
	}
}

func TestSurvRegExpClosedForm(t *testing.T) {

	// For an intercept-only exponential model, the MLE of the
	// intercept is log(total time / number of events).
	icept := []float64{1, 1, 1, 1, 1}
	time := []float64{1, 2, 3, 4, 5}
	status := []float64{1, 0, 1, 1, 0}

	data := statmodel.NewDataset([][]float64{icept, time, status},
		[]string{"icept", "time", "status"})

	model, err := NewSurvReg(data, "time", "status", []string{"icept"}, Exponential, nil)
	if err != nil {
		t.Fatal(err)
	}

	rslt, err := model.Fit()
	if err != nil {
		t.Fatal(err)
	}

	b := math.Log(15.0 / 3)
	if math.Abs(rslt.Params()[0]-b) > 1e-5 {
		t.Errorf("intercept: got %v, want %v", rslt.Params()[0], b)
	}
	if rslt.Scale() != 1 {
		t.Errorf("scale: got %v, want 1", rslt.Scale())
	}

	ll := -3*math.Log(5) - 3
	if math.Abs(rslt.LogLike()-ll) > 1e-6 {
		t.Errorf("loglike: got %v, want %v", rslt.LogLike(), ll)
	}
	if math.Abs(rslt.AIC()-(2-2*ll)) > 1e-6 {
		t.Errorf("aic: got %v, want %v", rslt.AIC(), 2-2*ll)
	}

	// The score vanishes at the MLE
	score := make([]float64, 1)
	model.Score(&SurvRegParameter{rslt.Params()}, score)
	if math.Abs(score[0]) > 1e-4 {
		t.Errorf("score at MLE: %v", score[0])
	}
}

func TestSurvRegWeibullNested(t *testing.T) {

	preds := []string{"icept", "x1"}

	em, err := NewSurvReg(survregData(), "time", "status", preds, Exponential, nil)
	if err != nil {
		t.Fatal(err)
	}
	er, err := em.Fit()
	if err != nil {
		t.Fatal(err)
	}

	wm, err := NewSurvReg(survregData(), "time", "status", preds, Weibull, nil)
	if err != nil {
		t.Fatal(err)
	}
	wr, err := wm.Fit()
	if err != nil {
		t.Fatal(err)
	}

	// The exponential model is the Weibull model with the scale
	// fixed at 1, so the Weibull fit cannot have lower likelihood.
	if wr.LogLike() < er.LogLike()-1e-6 {
		t.Errorf("weibull loglike %v below exponential loglike %v",
			wr.LogLike(), er.LogLike())
	}

	if wr.Scale() <= 0 {
		t.Errorf("nonpositive scale %v", wr.Scale())
	}

	if len(wr.Params()) != 3 || len(er.Params()) != 2 {
		t.Errorf("unexpected parameter counts %d %d", len(wr.Params()), len(er.Params()))
	}
	if wr.Names()[2] != "log(scale)" {
		t.Errorf("unexpected parameter names %v", wr.Names())
	}
}

func TestSurvRegFitDeterministic(t *testing.T) {

	preds := []string{"icept", "x1", "x2"}

	var par [][]float64
	for k := 0; k < 2; k++ {
		model, err := NewSurvReg(survregData(), "time", "status", preds, Weibull, nil)
		if err != nil {
			t.Fatal(err)
		}
		rslt, err := model.Fit()
		if err != nil {
			t.Fatal(err)
		}
		par = append(par, rslt.Params())
	}

	if !floats.EqualApprox(par[0], par[1], 1e-10) {
		t.Errorf("refitting gave different estimates: %v %v", par[0], par[1])
	}
}

func TestSurvRegSummary(t *testing.T) {

	model, err := NewSurvReg(survregData(), "time", "status",
		[]string{"icept", "x1"}, Weibull, nil)
	if err != nil {
		t.Fatal(err)
	}
	rslt, err := model.Fit()
	if err != nil {
		t.Fatal(err)
	}

	s := rslt.Summary().String()

	for _, frag := range []string{"Weibull", "log(scale)", "Events", "AIC", "TR"} {
		if !strings.Contains(s, frag) {
			t.Errorf("summary is missing %q:\n%s", frag, s)
		}
	}

	// The scale parameter is not a covariate; its row carries no
	// time ratio.
	par := rslt.Params()
	np := len(par)
	etr := strings.TrimSpace(fmt.Sprintf("%10.4f", math.Exp(par[np-1])))
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, "log(scale)") && strings.Contains(line, etr) {
			t.Errorf("log(scale) row shows a time ratio:\n%s", line)
		}
	}
}
