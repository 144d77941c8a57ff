package duration

import (
	"fmt"
	"math"
	"sort"

	"github.com/kshedden/dstream/dstream"
)

// SurvfuncRight uses the method of Kaplan and Meier to estimate the
// survival distribution based on (possibly) right censored data.  The
// data and the time and status variable names are set in the
// constructor; weight and entry time variables are optional.
type SurvfuncRight struct {

	// The data used to perform the estimation.
	data dstream.Dstream

	// The name of the variable containing the minimum of the
	// event time and censoring time.  The underlying data must
	// have float64 type.
	timeVar string

	// The name of a variable containing the status indicator,
	// which is 1 if the event occurred at the time given by
	// the time variable, and 0 otherwise.
	statusVar string

	// The name of a variable containing case weights, optional.
	weightVar string

	// The name of a variable containing entry times, optional.
	entryVar string

	// Times at which events occur, sorted.
	times []float64

	// Number of events at each time in times.
	nEvents []float64

	// Number of people at risk just before each time in times.
	nRisk []float64

	// The estimated survival function evaluated at each time in times.
	survProb []float64

	// The standard errors for the estimates in survProb.
	survProbSE []float64

	events map[float64]float64
	total  map[float64]float64
	entry  map[float64]float64

	timepos   int
	statuspos int
	weightpos int
	entrypos  int
}

// NewSurvfuncRight creates a new value for fitting a survival function.
func NewSurvfuncRight(data dstream.Dstream, timevar, statusvar string) *SurvfuncRight {

	return &SurvfuncRight{
		data:      data,
		timeVar:   timevar,
		statusVar: statusvar,
	}
}

// Weight specifies the name of a case weight variable.
func (sf *SurvfuncRight) Weight(weight string) *SurvfuncRight {
	sf.weightVar = weight
	return sf
}

// Entry specifies the name of an entry time variable.
func (sf *SurvfuncRight) Entry(entry string) *SurvfuncRight {
	sf.entryVar = entry
	return sf
}

// Time returns the times at which the survival function changes.
func (sf *SurvfuncRight) Time() []float64 {
	return sf.times
}

// NumRisk returns the number of people at risk at each time point
// where the survival function changes.
func (sf *SurvfuncRight) NumRisk() []float64 {
	return sf.nRisk
}

// NumEvents returns the weighted number of events at each time point
// where the survival function changes.
func (sf *SurvfuncRight) NumEvents() []float64 {
	return sf.nEvents
}

// SurvProb returns the estimated survival probabilities at the points
// where the survival function changes.
func (sf *SurvfuncRight) SurvProb() []float64 {
	return sf.survProb
}

// SurvProbSE returns the standard errors of the estimated survival
// probabilities at the points where the survival function changes.
func (sf *SurvfuncRight) SurvProbSE() []float64 {
	return sf.survProbSE
}

// SurvProbCI returns pointwise lower and upper confidence bounds for
// the survival probabilities, using the log-log transformation so the
// bounds stay within [0, 1].  z is the standard normal quantile for
// the desired coverage, e.g. 1.96 for 95% bounds.
func (sf *SurvfuncRight) SurvProbCI(z float64) ([]float64, []float64) {

	lcb := make([]float64, len(sf.survProb))
	ucb := make([]float64, len(sf.survProb))

	for i, p := range sf.survProb {
		if p <= 0 || p >= 1 {
			lcb[i] = p
			ucb[i] = p
			continue
		}
		// Standard error on the log(-log) scale
		se := sf.survProbSE[i] / (p * math.Abs(math.Log(p)))
		lcb[i] = math.Pow(p, math.Exp(z*se))
		ucb[i] = math.Pow(p, math.Exp(-z*se))
	}

	return lcb, ucb
}

// Quantile returns the smallest time at which the estimated survival
// probability falls to p or below, e.g. p=0.5 gives the median
// survival time.  If the curve never reaches p, NaN is returned.
func (sf *SurvfuncRight) Quantile(p float64) float64 {

	for i, q := range sf.survProb {
		if q <= p {
			return sf.times[i]
		}
	}

	return math.NaN()
}

// EvalAt returns the estimated survival probability at time t.  The
// probability is 1 before the first event time.
func (sf *SurvfuncRight) EvalAt(t float64) float64 {

	ii := sort.SearchFloat64s(sf.times, t)
	if ii < len(sf.times) && sf.times[ii] == t {
		return sf.survProb[ii]
	}
	if ii == 0 {
		return 1
	}

	return sf.survProb[ii-1]
}

func (sf *SurvfuncRight) init() {

	sf.events = make(map[float64]float64)
	sf.total = make(map[float64]float64)
	sf.entry = make(map[float64]float64)

	sf.data.Reset()

	sf.timepos = -1
	sf.statuspos = -1
	sf.weightpos = -1
	sf.entrypos = -1

	for k, na := range sf.data.Names() {
		switch na {
		case sf.timeVar:
			sf.timepos = k
		case sf.statusVar:
			sf.statuspos = k
		case sf.weightVar:
			sf.weightpos = k
		case sf.entryVar:
			sf.entrypos = k
		}
	}

	if sf.timepos == -1 {
		panic(fmt.Sprintf("Time variable '%s' not found", sf.timeVar))
	}
	if sf.statuspos == -1 {
		panic(fmt.Sprintf("Status variable '%s' not found", sf.statusVar))
	}
	if sf.weightVar != "" && sf.weightpos == -1 {
		panic(fmt.Sprintf("Weight variable '%s' not found", sf.weightVar))
	}
	if sf.entryVar != "" && sf.entrypos == -1 {
		panic(fmt.Sprintf("Entry variable '%s' not found", sf.entryVar))
	}
}

func (sf *SurvfuncRight) scanData() {

	for j := 0; sf.data.Next(); j++ {

		time := sf.data.GetPos(sf.timepos).([]float64)
		status := sf.data.GetPos(sf.statuspos).([]float64)

		var entry []float64
		if sf.entrypos != -1 {
			entry = sf.data.GetPos(sf.entrypos).([]float64)
		}

		var weight []float64
		if sf.weightpos != -1 {
			weight = sf.data.GetPos(sf.weightpos).([]float64)
		}

		for i, t := range time {

			w := float64(1)
			if sf.weightpos != -1 {
				w = weight[i]
			}

			if status[i] == 1 {
				sf.events[t] += w
			}
			sf.total[t] += w

			if sf.entrypos != -1 {
				if entry[i] >= t {
					msg := fmt.Sprintf("Entry time %d in chunk %d is not before the event/censoring time", i, j)
					panic(msg)
				}
				sf.entry[entry[i]] += w
			}
		}
	}
}

func rollback(x []float64) {
	var z float64
	for i := len(x) - 1; i >= 0; i-- {
		z += x[i]
		x[i] = z
	}
}

func (sf *SurvfuncRight) eventstats() {

	// Get the sorted distinct times (event or censoring)
	sf.times = make([]float64, len(sf.total))
	var i int
	for t := range sf.total {
		sf.times[i] = t
		i++
	}
	sort.Float64s(sf.times)

	// Get the weighted event count and risk set size at each time
	// point (in same order as times).
	sf.nEvents = make([]float64, len(sf.times))
	sf.nRisk = make([]float64, len(sf.times))
	for i, t := range sf.times {
		sf.nEvents[i] = sf.events[t]
		sf.nRisk[i] = sf.total[t]
	}
	rollback(sf.nRisk)

	// Adjust for entry times
	if sf.entrypos != -1 {
		entry := make([]float64, len(sf.times))
		for t, w := range sf.entry {
			ii := sort.SearchFloat64s(sf.times, t)
			if t < sf.times[ii] {
				ii--
			}
			if ii >= 0 {
				entry[ii] += w
			}
		}
		rollback(entry)
		for i := 0; i < len(sf.nRisk); i++ {
			sf.nRisk[i] -= entry[i]
		}
	}
}

// compress removes times where no events occurred.
func (sf *SurvfuncRight) compress() {

	var ix []int
	for i := 0; i < len(sf.times); i++ {
		// Only retain events, except for the last point,
		// which is retained even if there are no events.
		if sf.nEvents[i] > 0 || i == len(sf.times)-1 {
			ix = append(ix, i)
		}
	}

	if len(ix) < len(sf.times) {
		for i, j := range ix {
			sf.times[i] = sf.times[j]
			sf.nEvents[i] = sf.nEvents[j]
			sf.nRisk[i] = sf.nRisk[j]
		}
		sf.times = sf.times[0:len(ix)]
		sf.nEvents = sf.nEvents[0:len(ix)]
		sf.nRisk = sf.nRisk[0:len(ix)]
	}
}

func (sf *SurvfuncRight) fit() {

	sf.survProb = make([]float64, len(sf.times))
	x := float64(1)
	for i := range sf.times {
		x *= 1 - sf.nEvents[i]/sf.nRisk[i]
		sf.survProb[i] = x
	}

	sf.survProbSE = make([]float64, len(sf.times))
	x = 0
	if sf.weightpos == -1 {
		for i := range sf.times {
			d := sf.nEvents[i]
			n := sf.nRisk[i]
			x += d / (n * (n - d))
			sf.survProbSE[i] = math.Sqrt(x) * sf.survProb[i]
		}
	} else {
		for i := range sf.times {
			d := sf.nEvents[i]
			n := sf.nRisk[i]
			x += d / (n * n)
			sf.survProbSE[i] = math.Sqrt(x)
		}
	}
}

// Done indicates that the survival function has been configured and can now be fit.
func (sf *SurvfuncRight) Done() *SurvfuncRight {
	sf.init()
	sf.scanData()
	sf.eventstats()
	sf.compress()
	sf.fit()
	return sf
}

// GroupLevels returns the sorted distinct values of the named variable.
func GroupLevels(data dstream.Dstream, groupvar string) []float64 {

	data.Reset()
	seen := make(map[float64]bool)
	for _, v := range dstream.GetCol(data, groupvar).([]float64) {
		seen[v] = true
	}

	var levels []float64
	for v := range seen {
		levels = append(levels, v)
	}
	sort.Float64s(levels)

	return levels
}

// SurvfuncByGroup fits a survival function separately for each level
// of a categorical grouping variable.  The returned survival
// functions are ordered as the returned levels, which are sorted.
func SurvfuncByGroup(data dstream.Dstream, timevar, statusvar, groupvar string) ([]*SurvfuncRight, []float64) {

	levels := GroupLevels(data, groupvar)

	var sfs []*SurvfuncRight
	for _, lev := range levels {
		lev := lev
		f := func(v map[string]interface{}, keep []bool) {
			g := v[groupvar].([]float64)
			for i := range g {
				if g[i] != lev {
					keep[i] = false
				}
			}
		}
		data.Reset()
		dx := dstream.Filter(dstream.Shallow(data), f)
		dx = dstream.MemCopy(dx, false)
		sfs = append(sfs, NewSurvfuncRight(dx, timevar, statusvar).Done())
	}

	return sfs, levels
}
