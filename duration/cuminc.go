package duration

import (
	"fmt"
	"math"
	"sort"

	"github.com/kshedden/dstream/dstream"
)

// CumincRight estimates cumulative incidence functions for duration
// data with competing risks, using the Aalen-Johansen approach.  The
// status variable is 0 for censoring and 1, 2, ... for the competing
// event types; separate incidence curves are estimated per type.
type CumincRight struct {

	// The data used to perform the estimation.
	data dstream.Dstream

	timeVar   string
	statusVar string
	weightVar string

	// Times at which events of any type occur, sorted.
	times []float64

	// Weighted number of events of each type at each time in
	// times; events[k] holds the counts for status k+1.
	events [][]float64

	// Weighted number of events of any type at each time in times.
	eventsAll []float64

	// Risk set size at each time in times.
	nRisk []float64

	// The all-cause Kaplan-Meier survival function.
	probsAll []float64

	// The cause specific cumulative incidence curves; probs[k]
	// holds the curve for the events with status k+1.
	probs [][]float64

	// The standard errors of the values in probs.
	probsSE [][]float64

	eventmaps []map[float64]float64
	eventsall map[float64]float64
	total     map[float64]float64

	timePos   int
	statusPos int
	weightPos int

	varPos map[string]int
}

// NewCumincRight creates a CumincRight value that can be used to
// estimate cumulative incidence functions from the given data.
func NewCumincRight(data dstream.Dstream, timevar, statusvar string) *CumincRight {

	m := make(map[string]int)
	for j, x := range data.Names() {
		m[x] = j
	}

	timepos, ok := m[timevar]
	if !ok {
		panic(fmt.Sprintf("Time variable '%s' not found", timevar))
	}

	statuspos, ok := m[statusvar]
	if !ok {
		panic(fmt.Sprintf("Status variable '%s' not found", statusvar))
	}

	return &CumincRight{
		data:      data,
		timeVar:   timevar,
		statusVar: statusvar,
		timePos:   timepos,
		statusPos: statuspos,
		weightPos: -1,
		varPos:    m,
	}
}

// Weight specifies a variable that provides case weights.
func (ci *CumincRight) Weight(weightvar string) *CumincRight {

	var ok bool
	ci.weightPos, ok = ci.varPos[weightvar]
	if !ok {
		panic(fmt.Sprintf("Weight variable '%s' not found", weightvar))
	}
	ci.weightVar = weightvar

	return ci
}

// Time returns the times at which events of any type occur.
func (ci *CumincRight) Time() []float64 {
	return ci.times
}

// NumRisk returns the risk set size at each time point.
func (ci *CumincRight) NumRisk() []float64 {
	return ci.nRisk
}

// NumCauses returns the number of competing event types present in
// the data.
func (ci *CumincRight) NumCauses() int {
	return len(ci.probs)
}

// Probs returns the estimated cumulative incidence curve for the
// events with status code k+1.
func (ci *CumincRight) Probs(k int) []float64 {
	return ci.probs[k]
}

// ProbsSE returns the standard errors for the cumulative incidence
// curve of the events with status code k+1.
func (ci *CumincRight) ProbsSE(k int) []float64 {
	return ci.probsSE[k]
}

func (ci *CumincRight) init() {
	ci.eventsall = make(map[float64]float64)
	ci.total = make(map[float64]float64)
	ci.data.Reset()
}

func (ci *CumincRight) scanData() {

	for ci.data.Next() {

		time := ci.data.GetPos(ci.timePos).([]float64)
		status := ci.data.GetPos(ci.statusPos).([]float64)

		var weight []float64
		if ci.weightPos != -1 {
			weight = ci.data.GetPos(ci.weightPos).([]float64)
		}

		for i, t := range time {

			w := float64(1)
			if ci.weightPos != -1 {
				w = weight[i]
			}

			// Make room for an event type we have not yet seen
			k := int(status[i])
			for k > len(ci.eventmaps) {
				ci.eventmaps = append(ci.eventmaps, make(map[float64]float64))
			}

			if k > 0 {
				ci.eventmaps[k-1][t] += w
				ci.eventsall[t] += w
			}
			ci.total[t] += w
		}
	}
}

func (ci *CumincRight) eventstats() {

	// Get the sorted times (event or censoring)
	ci.times = make([]float64, len(ci.total))
	var i int
	for t := range ci.total {
		ci.times[i] = t
		i++
	}
	sort.Float64s(ci.times)

	// Get the weighted event count and risk set size at each time
	// point (in same order as times).
	ci.eventsAll = make([]float64, len(ci.times))
	ci.nRisk = make([]float64, len(ci.times))
	for i, t := range ci.times {
		ci.eventsAll[i] = ci.eventsall[t]
		ci.nRisk[i] = ci.total[t]
	}
	rollback(ci.nRisk)
}

// compress removes times where no events of any type occurred.
func (ci *CumincRight) compress() {

	var ix []int
	for i := 0; i < len(ci.times); i++ {
		if ci.eventsAll[i] > 0 {
			ix = append(ix, i)
		}
	}

	if len(ix) < len(ci.times) {
		for i, j := range ix {
			ci.times[i] = ci.times[j]
			ci.eventsAll[i] = ci.eventsAll[j]
			ci.nRisk[i] = ci.nRisk[j]
		}
		ci.times = ci.times[0:len(ix)]
		ci.eventsAll = ci.eventsAll[0:len(ix)]
		ci.nRisk = ci.nRisk[0:len(ix)]
	}
}

func (ci *CumincRight) fitall() {

	ci.probsAll = make([]float64, len(ci.times))

	x := float64(1)
	for i := range ci.times {
		x *= 1 - ci.eventsAll[i]/ci.nRisk[i]
		ci.probsAll[i] = x
	}
}

func (ci *CumincRight) fit() {

	for _, ev := range ci.eventmaps {

		// Obtain the number of events of this cause at each time.
		evr := make([]float64, len(ci.times))
		for t, n := range ev {
			ii := sort.SearchFloat64s(ci.times, t)
			evr[ii] += n
		}

		cir := make([]float64, len(ci.times))
		x := float64(0)
		for i, y := range evr {
			v := y / ci.nRisk[i]
			if i > 0 {
				v *= ci.probsAll[i-1]
			}
			x += v
			cir[i] = x
		}

		ci.probs = append(ci.probs, cir)
		ci.events = append(ci.events, evr)
	}
}

func (ci *CumincRight) fitse() {

	for k := 0; k < len(ci.probs); k++ {

		var x1, x2, x3, x4, x5, x6 float64
		se := make([]float64, len(ci.times))

		for i := range ci.times {

			q := ci.probs[k][i]
			da := ci.eventsAll[i]
			d := ci.events[k][i]
			n := ci.nRisk[i]
			s := float64(1)
			if i > 0 {
				s = ci.probsAll[i-1]
			}
			s /= n

			ra := da / (n * (n - da))
			x1 += ra
			x2 += q * ra
			x3 += q * q * ra

			ra = (n - d) * d / n
			x4 += s * s * ra

			ra = s * d / n
			x5 += ra
			x6 += q * ra

			v := q*q*x1 - 2*q*x2 + x3 + x4 - 2*q*x5 + 2*x6
			se[i] = math.Sqrt(v)
		}

		ci.probsSE = append(ci.probsSE, se)
	}
}

// Done completes construction and computes all results.
func (ci *CumincRight) Done() *CumincRight {
	ci.init()
	ci.scanData()
	ci.eventstats()
	ci.compress()
	ci.fitall()
	ci.fit()
	ci.fitse()
	return ci
}
