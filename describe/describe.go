// Package describe produces grouped descriptive statistics for the
// variables in a dstream, comparing the groups with Welch's t-test
// for continuous variables and the chi-square test of independence
// for categorical variables.
package describe

import (
	"fmt"
	"math"
	"sort"

	"github.com/kshedden/dstream/dstream"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/drtiong/parametric-surv/statmodel"
)

// ColumnStats holds moment statistics for one variable within one
// group, after dropping missing values.
type ColumnStats struct {
	N    int
	Mean float64
	SD   float64
}

// Summarize returns the number of non-missing values, the mean, and
// the standard deviation of the given data.
func Summarize(x []float64) ColumnStats {

	var v []float64
	for _, y := range x {
		if !math.IsNaN(y) {
			v = append(v, y)
		}
	}

	cs := ColumnStats{N: len(v)}
	if len(v) > 0 {
		cs.Mean = stat.Mean(v, nil)
	}
	if len(v) > 1 {
		cs.SD = math.Sqrt(stat.Variance(v, nil))
	} else {
		cs.SD = math.NaN()
	}

	return cs
}

// WelchTTest compares the means of two samples without assuming
// equal variances, returning the t statistic, the Satterthwaite
// degrees of freedom, and the two-sided p-value.
func WelchTTest(x, y []float64) (float64, float64, float64) {

	sx := Summarize(x)
	sy := Summarize(y)

	if sx.N < 2 || sy.N < 2 {
		return math.NaN(), math.NaN(), math.NaN()
	}

	vx := sx.SD * sx.SD / float64(sx.N)
	vy := sy.SD * sy.SD / float64(sy.N)

	t := (sx.Mean - sy.Mean) / math.Sqrt(vx+vy)

	df := (vx + vy) * (vx + vy)
	df /= vx*vx/float64(sx.N-1) + vy*vy/float64(sy.N-1)

	st := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * st.CDF(-math.Abs(t))

	return t, df, p
}

// ChiSquareTest performs the chi-square test of independence on a
// contingency table with one row per level and one column per group.
// It returns the statistic, its degrees of freedom, and the p-value.
func ChiSquareTest(counts [][]float64) (float64, int, float64) {

	r := len(counts)
	if r < 2 {
		return math.NaN(), 0, math.NaN()
	}
	c := len(counts[0])
	if c < 2 {
		return math.NaN(), 0, math.NaN()
	}

	rowtot := make([]float64, r)
	coltot := make([]float64, c)
	var tot float64
	for i := range counts {
		for j := range counts[i] {
			rowtot[i] += counts[i][j]
			coltot[j] += counts[i][j]
			tot += counts[i][j]
		}
	}

	var chi2 float64
	for i := range counts {
		for j := range counts[i] {
			e := rowtot[i] * coltot[j] / tot
			if e > 0 {
				d := counts[i][j] - e
				chi2 += d * d / e
			}
		}
	}

	df := (r - 1) * (c - 1)
	p := 1 - distuv.ChiSquared{K: float64(df)}.CDF(chi2)
	if p < 0 {
		p = 0
	}

	return chi2, df, p
}

// ContinuousRow holds the grouped summary of one continuous variable.
type ContinuousRow struct {
	Name string

	// Per-group statistics, ordered as the group levels
	Groups []ColumnStats

	// Welch t-test comparing the groups; NaN unless there are
	// exactly two groups.
	Stat   float64
	Df     float64
	PValue float64
}

// CategoricalRow holds the grouped contingency table of one
// categorical variable.
type CategoricalRow struct {
	Name string

	// The sorted distinct levels of the variable
	Levels []float64

	// Counts[i][j] is the count of level i in group j
	Counts [][]float64

	Chisq  float64
	Df     int
	PValue float64
}

// Table accumulates grouped descriptive statistics for a set of
// variables.
type Table struct {
	data     dstream.Dstream
	groupVar string

	levels []float64

	contVars []string
	catVars  []string

	cont []ContinuousRow
	cat  []CategoricalRow
}

// NewTable creates a Table that summarizes variables across the
// levels of the given grouping variable.
func NewTable(data dstream.Dstream, groupvar string) *Table {

	found := false
	for _, na := range data.Names() {
		if na == groupvar {
			found = true
		}
	}
	if !found {
		panic(fmt.Sprintf("describe: group variable '%s' not found", groupvar))
	}

	return &Table{
		data:     data,
		groupVar: groupvar,
	}
}

// Continuous adds continuous variables to the table.
func (tb *Table) Continuous(names ...string) *Table {
	tb.contVars = append(tb.contVars, names...)
	return tb
}

// Categorical adds categorical variables to the table.
func (tb *Table) Categorical(names ...string) *Table {
	tb.catVars = append(tb.catVars, names...)
	return tb
}

func (tb *Table) column(name string) []float64 {
	tb.data.Reset()
	return dstream.GetCol(tb.data, name).([]float64)
}

// Done computes the grouped statistics and tests.
func (tb *Table) Done() *Table {

	group := tb.column(tb.groupVar)

	seen := make(map[float64]bool)
	for _, g := range group {
		if !math.IsNaN(g) {
			seen[g] = true
		}
	}
	for g := range seen {
		tb.levels = append(tb.levels, g)
	}
	sort.Float64s(tb.levels)

	for _, na := range tb.contVars {

		x := tb.column(na)

		row := ContinuousRow{
			Name:   na,
			Stat:   math.NaN(),
			Df:     math.NaN(),
			PValue: math.NaN(),
		}

		var split [][]float64
		for _, g := range tb.levels {
			var v []float64
			for i := range x {
				if group[i] == g {
					v = append(v, x[i])
				}
			}
			split = append(split, v)
			row.Groups = append(row.Groups, Summarize(v))
		}

		if len(split) == 2 {
			row.Stat, row.Df, row.PValue = WelchTTest(split[0], split[1])
		}

		tb.cont = append(tb.cont, row)
	}

	for _, na := range tb.catVars {

		x := tb.column(na)

		lseen := make(map[float64]bool)
		for i := range x {
			if !math.IsNaN(x[i]) && !math.IsNaN(group[i]) {
				lseen[x[i]] = true
			}
		}
		var lv []float64
		for l := range lseen {
			lv = append(lv, l)
		}
		sort.Float64s(lv)

		counts := make([][]float64, len(lv))
		for i := range counts {
			counts[i] = make([]float64, len(tb.levels))
		}
		for i := range x {
			if math.IsNaN(x[i]) || math.IsNaN(group[i]) {
				continue
			}
			li := sort.SearchFloat64s(lv, x[i])
			gi := sort.SearchFloat64s(tb.levels, group[i])
			counts[li][gi]++
		}

		row := CategoricalRow{
			Name:   na,
			Levels: lv,
			Counts: counts,
		}
		row.Chisq, row.Df, row.PValue = ChiSquareTest(counts)

		tb.cat = append(tb.cat, row)
	}

	return tb
}

// GroupLevels returns the sorted distinct levels of the grouping
// variable.
func (tb *Table) GroupLevels() []float64 {
	return tb.levels
}

// ContinuousRows returns the grouped summaries of the continuous
// variables.
func (tb *Table) ContinuousRows() []ContinuousRow {
	return tb.cont
}

// CategoricalRows returns the grouped contingency tables of the
// categorical variables.
func (tb *Table) CategoricalRows() []CategoricalRow {
	return tb.cat
}

// String returns a text rendering of the table.
func (tb *Table) String() string {

	sum := &statmodel.SummaryTable{}
	sum.Title = fmt.Sprintf("Descriptive statistics by %s", tb.groupVar)

	var names []string
	gcols := make([][]string, len(tb.levels))
	var pvals []float64

	for _, row := range tb.cont {
		names = append(names, row.Name)
		for j, cs := range row.Groups {
			gcols[j] = append(gcols[j], fmt.Sprintf("%.2f (%.2f)", cs.Mean, cs.SD))
		}
		pvals = append(pvals, row.PValue)
	}

	for _, row := range tb.cat {

		coltot := make([]float64, len(tb.levels))
		for i := range row.Counts {
			for j := range row.Counts[i] {
				coltot[j] += row.Counts[i][j]
			}
		}

		for i, l := range row.Levels {
			names = append(names, fmt.Sprintf("%s=%g", row.Name, l))
			for j := range tb.levels {
				pct := 100 * row.Counts[i][j] / coltot[j]
				gcols[j] = append(gcols[j], fmt.Sprintf("%.0f (%.1f%%)", row.Counts[i][j], pct))
			}
			if i == 0 {
				pvals = append(pvals, row.PValue)
			} else {
				pvals = append(pvals, math.NaN())
			}
		}
	}

	sum.ColNames = []string{"Variable   "}
	sum.ColFmt = []statmodel.Fmter{statmodel.FmtString}
	sum.Cols = []interface{}{names}

	for j, g := range tb.levels {
		sum.ColNames = append(sum.ColNames, fmt.Sprintf("%s=%g", tb.groupVar, g))
		sum.ColFmt = append(sum.ColFmt, statmodel.FmtString)
		sum.Cols = append(sum.Cols, gcols[j])
	}

	sum.ColNames = append(sum.ColNames, "P-value")
	sum.ColFmt = append(sum.ColFmt, statmodel.FmtFloat)
	sum.Cols = append(sum.Cols, pvals)

	return sum.String()
}
