package duration

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/kshedden/dstream/dstream"
)

// DiagCurve holds the points of a model adequacy diagnostic curve
// derived from an estimated survival function.
type DiagCurve struct {

	// Log event time
	X []float64

	// Transformed survival probability
	Y []float64
}

// CloglogCurve returns the points (log t, log(-log S(t))) for the
// given survival function.  If the event times follow Weibull
// distributions within strata, the curves for the strata are
// approximately linear, with parallel lines further indicating
// proportional hazards.  Points where the transform is undefined are
// dropped.
func CloglogCurve(sf *SurvfuncRight) DiagCurve {

	var dc DiagCurve

	for i, p := range sf.SurvProb() {
		t := sf.Time()[i]
		if t <= 0 || p <= 0 || p >= 1 {
			continue
		}
		dc.X = append(dc.X, math.Log(t))
		dc.Y = append(dc.Y, math.Log(-math.Log(p)))
	}

	return dc
}

// LogOddsCurve returns the points (log t, log((1-S(t))/S(t))) for the
// given survival function.  Approximately linear and parallel curves
// across strata indicate that a log-logistic proportional odds model
// is adequate.
func LogOddsCurve(sf *SurvfuncRight) DiagCurve {

	var dc DiagCurve

	for i, p := range sf.SurvProb() {
		t := sf.Time()[i]
		if t <= 0 || p <= 0 || p >= 1 {
			continue
		}
		dc.X = append(dc.X, math.Log(t))
		dc.Y = append(dc.Y, math.Log((1-p)/p))
	}

	return dc
}

// StratumDiag holds a diagnostic curve for one stratum, together with
// the intercept and slope of its least squares line.
type StratumDiag struct {

	// The stratum value of the grouping variable
	Level float64

	Curve DiagCurve

	// Least squares fit to the curve
	Intercept float64
	Slope     float64
}

func diagByGroup(data dstream.Dstream, timevar, statusvar, groupvar string,
	curve func(*SurvfuncRight) DiagCurve) []StratumDiag {

	sfs, levels := SurvfuncByGroup(data, timevar, statusvar, groupvar)

	var diags []StratumDiag
	for j, sf := range sfs {
		dc := curve(sf)
		d := StratumDiag{
			Level: levels[j],
			Curve: dc,
		}
		if len(dc.X) >= 2 {
			d.Intercept, d.Slope = stat.LinearRegression(dc.X, dc.Y, nil, false)
		} else {
			d.Intercept = math.NaN()
			d.Slope = math.NaN()
		}
		diags = append(diags, d)
	}

	return diags
}

// CloglogDiagByGroup estimates a survival function for each level of
// the grouping variable and returns the complementary log-log
// diagnostic curve for each stratum.  Under a Weibull model the slope
// estimates the shape parameter.
func CloglogDiagByGroup(data dstream.Dstream, timevar, statusvar, groupvar string) []StratumDiag {
	return diagByGroup(data, timevar, statusvar, groupvar, CloglogCurve)
}

// LogOddsDiagByGroup estimates a survival function for each level of
// the grouping variable and returns the log-odds diagnostic curve for
// each stratum.
func LogOddsDiagByGroup(data dstream.Dstream, timevar, statusvar, groupvar string) []StratumDiag {
	return diagByGroup(data, timevar, statusvar, groupvar, LogOddsCurve)
}
