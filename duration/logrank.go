package duration

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kshedden/dstream/dstream"
)

// LogRank performs the k-sample log-rank test for equality of
// survival distributions across the levels of a categorical grouping
// variable, based on right censored data.
type LogRank struct {

	// The data used to perform the test.
	data dstream.Dstream

	timeVar   string
	statusVar string
	groupVar  string

	// The sorted distinct levels of the grouping variable.
	levels []float64

	// Observed and expected event counts per level.
	obs []float64
	exp []float64

	// The chi-square statistic, its degrees of freedom, and the
	// p-value for the null hypothesis of equal survival
	// distributions.
	chisq  float64
	df     int
	pvalue float64
}

// NewLogRank creates a LogRank value for the given data.  The time
// and status variables are as in SurvfuncRight; the group variable
// holds a categorical covariate defining the samples being compared.
func NewLogRank(data dstream.Dstream, timevar, statusvar, groupvar string) *LogRank {

	return &LogRank{
		data:      data,
		timeVar:   timevar,
		statusVar: statusvar,
		groupVar:  groupvar,
	}
}

// Levels returns the sorted distinct levels of the grouping variable.
func (lr *LogRank) Levels() []float64 {
	return lr.levels
}

// Observed returns the observed event count for each level of the
// grouping variable, ordered as Levels.
func (lr *LogRank) Observed() []float64 {
	return lr.obs
}

// Expected returns the expected event count under the null hypothesis
// for each level of the grouping variable, ordered as Levels.
func (lr *LogRank) Expected() []float64 {
	return lr.exp
}

// ChiSq returns the log-rank chi-square statistic.
func (lr *LogRank) ChiSq() float64 {
	return lr.chisq
}

// Df returns the degrees of freedom of the test statistic.
func (lr *LogRank) Df() int {
	return lr.df
}

// PValue returns the p-value of the test.
func (lr *LogRank) PValue() float64 {
	return lr.pvalue
}

// Done runs the test and returns the LogRank value.
func (lr *LogRank) Done() *LogRank {

	lr.data.Reset()
	time := dstream.GetCol(lr.data, lr.timeVar).([]float64)
	lr.data.Reset()
	status := dstream.GetCol(lr.data, lr.statusVar).([]float64)
	lr.data.Reset()
	group := dstream.GetCol(lr.data, lr.groupVar).([]float64)

	seen := make(map[float64]int)
	for _, g := range group {
		seen[g] = 0
	}
	for g := range seen {
		lr.levels = append(lr.levels, g)
	}
	sort.Float64s(lr.levels)
	for j, g := range lr.levels {
		seen[g] = j
	}

	k := len(lr.levels)
	if k < 2 {
		panic(fmt.Sprintf("LogRank: grouping variable '%s' has fewer than two levels", lr.groupVar))
	}

	// Distinct event times
	et := make(map[float64]bool)
	for i := range time {
		if status[i] == 1 {
			et[time[i]] = true
		} else if status[i] != 0 {
			panic(fmt.Sprintf("LogRank: status variable '%s' has values other than 0 and 1", lr.statusVar))
		}
	}
	var etimes []float64
	for t := range et {
		etimes = append(etimes, t)
	}
	sort.Float64s(etimes)

	lr.obs = make([]float64, k)
	lr.exp = make([]float64, k)

	// Accumulate the score vector and its covariance over the
	// distinct event times, working on the first k-1 groups.
	u := make([]float64, k-1)
	v := mat.NewDense(k-1, k-1, nil)
	ng := make([]float64, k)

	for _, t := range etimes {

		// Risk set size and event count at t, overall and per group
		var n, d float64
		for j := range ng {
			ng[j] = 0
		}
		dg := make([]float64, k)
		for i := range time {
			if time[i] >= t {
				n++
				ng[seen[group[i]]]++
				if time[i] == t && status[i] == 1 {
					d++
					dg[seen[group[i]]]++
				}
			}
		}

		for j := 0; j < k; j++ {
			e := ng[j] * d / n
			lr.obs[j] += dg[j]
			lr.exp[j] += e
			if j < k-1 {
				u[j] += dg[j] - e
			}
		}

		// Hypergeometric covariance of the group event counts
		if n > 1 {
			c := d * (n - d) / (n - 1)
			for j1 := 0; j1 < k-1; j1++ {
				for j2 := 0; j2 < k-1; j2++ {
					q := -ng[j1] * ng[j2] / (n * n)
					if j1 == j2 {
						q += ng[j1] / n
					}
					v.Set(j1, j2, v.At(j1, j2)+c*q)
				}
			}
		}
	}

	// Chi-square statistic u' V^{-1} u
	vi := mat.NewDense(k-1, k-1, nil)
	if err := vi.Inverse(v); err != nil {
		panic("LogRank: singular covariance matrix")
	}
	for j1 := 0; j1 < k-1; j1++ {
		for j2 := 0; j2 < k-1; j2++ {
			lr.chisq += u[j1] * vi.At(j1, j2) * u[j2]
		}
	}

	lr.df = k - 1
	lr.pvalue = 1 - distuv.ChiSquared{K: float64(lr.df)}.CDF(lr.chisq)
	if lr.pvalue < 0 {
		lr.pvalue = 0
	}
	if math.IsNaN(lr.pvalue) {
		lr.pvalue = 1
	}

	return lr
}
