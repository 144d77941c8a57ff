package duration

import (
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/kshedden/dstream/dstream"
)

func survData(names []string, cols ...[]float64) dstream.Dstream {
	var z [][]interface{}
	for _, c := range cols {
		z = append(z, []interface{}{c})
	}
	return dstream.NewFromArrays(z, names)
}

func TestSurvfuncAllEvents(t *testing.T) {

	var time []float64
	var status []float64
	n := 20

	for i := 0; i < n; i++ {
		time = append(time, float64(i))
		status = append(status, 1)
	}

	data := survData([]string{"Time", "Status"}, time, status)
	sf := NewSurvfuncRight(data, "Time", "Status").Done()

	times := sf.Time()
	nrisk := sf.NumRisk()
	for i := 0; i < n; i++ {
		if times[i] != float64(i) {
			t.Fail()
		}
		if nrisk[i] != float64(n-i) {
			t.Fail()
		}
	}

	// From Python Statsmodels
	se := []float64{0.04873397, 0.06708204, 0.0798436, 0.08944272,
		0.09682458, 0.10246951, 0.10665365, 0.10954451,
		0.11124298, 0.1118034, 0.11124298, 0.10954451,
		0.10665365, 0.10246951, 0.09682458, 0.08944272,
		0.0798436, 0.06708204, 0.04873397}

	sp := sf.SurvProb()
	spse := sf.SurvProbSE()
	for i := 0; i < n; i++ {
		p := 1 - float64(i+1)/float64(n)
		if math.Abs(sp[i]-p) > 1e-6 {
			t.Fail()
		}
		if i < n-1 && math.Abs(spse[i]-se[i]) > 1e-6 {
			t.Fail()
		}
	}
}

func TestSurvfuncWeighted(t *testing.T) {

	var time []float64
	var status []float64
	var weight []float64
	n := 20

	for i := 0; i < n; i++ {
		time = append(time, 10+float64(i))
		status = append(status, float64(i%2))
		weight = append(weight, float64(1+i%3))
	}

	data := survData([]string{"Time", "Status", "Weight"}, time, status, weight)
	sf := NewSurvfuncRight(data, "Time", "Status").Weight("Weight").Done()

	times := sf.Time()
	for i := 0; i < 10; i++ {
		if times[i] != float64(11+2*i) {
			t.Fail()
		}
	}

	nriskExp := []float64{38, 33, 30, 26, 21, 18, 14, 9, 6, 2}
	if !floats.EqualApprox(sf.NumRisk(), nriskExp, 1e-6) {
		t.Fail()
	}

	// From Python Statsmodels
	pr := []float64{0.94736842, 0.91866029, 0.82679426, 0.7631947, 0.7268521,
		0.60571008, 0.51918007, 0.46149339, 0.2307467, 0.}
	se := []float64{0.03721615, 0.04799287, 0.07507762, 0.09271045, 0.10422477,
		0.14185225, 0.17414403, 0.20657159, 0.35497205, 0.79120488}

	if !floats.EqualApprox(pr, sf.SurvProb(), 1e-6) {
		t.Fail()
	}
	if !floats.EqualApprox(se, sf.SurvProbSE(), 1e-6) {
		t.Fail()
	}
}

func TestSurvfuncEntry(t *testing.T) {

	var time []float64
	var status []float64
	var entry []float64
	n := 20

	for i := 0; i < n; i++ {
		time = append(time, 10+float64(i))
		status = append(status, float64(i%2))
		entry = append(entry, float64((10+i)/2))
	}

	data := survData([]string{"Time", "Status", "Entry"}, time, status, entry)
	sf := NewSurvfuncRight(data, "Time", "Status").Entry("Entry").Done()

	times := sf.Time()
	if len(times) != 10 {
		t.Fail()
	}
	for i := 0; i < 10; i++ {
		if times[i] != float64(11+2*i) {
			t.Fail()
		}
	}

	// From Python Statsmodels
	nriskExp := []float64{11, 13, 15, 13, 11, 9, 7, 5, 3, 1}
	if !floats.EqualApprox(sf.NumRisk(), nriskExp, 1e-6) {
		t.Fail()
	}

	// From Python Statsmodels
	pr := []float64{0.90909091, 0.83916084, 0.78321678, 0.72296934, 0.65724485,
		0.58421765, 0.50075798, 0.40060639, 0.26707092, 0}
	se := []float64{0.08667842, 0.10447861, 0.11148966, 0.11807514, 0.12429443,
		0.13018111, 0.13572541, 0.14076208, 0.14385416}

	if !floats.EqualApprox(sf.SurvProb(), pr, 1e-6) {
		t.Fail()
	}
	if !floats.EqualApprox(sf.SurvProbSE()[0:9], se[0:9], 1e-6) {
		t.Fail()
	}
}

func TestSurvfuncEntryWeight(t *testing.T) {

	var time []float64
	var status []float64
	var entry []float64
	var weight []float64
	n := 20

	for i := 0; i < n; i++ {
		time = append(time, 10+float64(i/2))
		status = append(status, float64(i%2))
		entry = append(entry, float64((10+i)/2))
		weight = append(weight, float64(1+(i%3)))
	}

	data := survData([]string{"Time", "Status", "Entry", "Weight"},
		time, status, entry, weight)
	sf := NewSurvfuncRight(data, "Time", "Status").Entry("Entry").Weight("Weight").Done()

	times := sf.Time()
	if len(times) != 10 {
		t.Fail()
	}
	for i := 0; i < 10; i++ {
		if times[i] != float64(10+i) {
			t.Fail()
		}
	}

	// From Python Statsmodels
	nriskExp := []float64{19, 21, 20, 19, 21, 20, 15, 12, 8, 3}
	if !floats.EqualApprox(nriskExp, sf.NumRisk(), 1e-6) {
		t.Fail()
	}

	// From Python Statsmodels
	pr := []float64{0.89473684, 0.85213033, 0.72431078, 0.64806754, 0.61720718,
		0.5246261, 0.45467595, 0.41678629, 0.26049143, 0.08683048}
	se := []float64{0.07443229, 0.08836142, 0.12372445, 0.14438804, 0.15203776,
		0.1749728, 0.19875706, 0.21551987, 0.30548946, 0.56173484}

	if !floats.EqualApprox(pr, sf.SurvProb(), 1e-6) {
		t.Fail()
	}
	if !floats.EqualApprox(se, sf.SurvProbSE(), 1e-6) {
		t.Fail()
	}
}

func TestSurvfuncCI(t *testing.T) {

	var time []float64
	var status []float64
	for i := 0; i < 30; i++ {
		time = append(time, float64(1+i))
		status = append(status, float64(i%2))
	}

	data := survData([]string{"Time", "Status"}, time, status)
	sf := NewSurvfuncRight(data, "Time", "Status").Done()

	lcb, ucb := sf.SurvProbCI(1.96)
	sp := sf.SurvProb()

	for i := range sp {
		if sp[i] <= 0 || sp[i] >= 1 {
			continue
		}
		if lcb[i] > sp[i] || ucb[i] < sp[i] {
			t.Errorf("confidence band does not bracket the estimate at %d", i)
		}
		if lcb[i] < 0 || ucb[i] > 1 {
			t.Errorf("confidence band outside [0, 1] at %d", i)
		}
	}
}

func TestSurvfuncQuantile(t *testing.T) {

	// 10 events, no censoring: S drops by 0.1 at each time 1..10.
	var time []float64
	var status []float64
	for i := 0; i < 10; i++ {
		time = append(time, float64(1+i))
		status = append(status, 1)
	}

	data := survData([]string{"Time", "Status"}, time, status)
	sf := NewSurvfuncRight(data, "Time", "Status").Done()

	if q := sf.Quantile(0.5); q != 5 {
		t.Errorf("median: got %v, want 5", q)
	}
	if q := sf.Quantile(0.25); q != 8 {
		t.Errorf("quartile: got %v, want 8", q)
	}

	if p := sf.EvalAt(3); math.Abs(p-0.7) > 1e-10 {
		t.Errorf("EvalAt(3): got %v, want 0.7", p)
	}
	if p := sf.EvalAt(0.5); p != 1 {
		t.Errorf("EvalAt before first event: got %v, want 1", p)
	}
}

func TestSurvfuncByGroup(t *testing.T) {

	// Two groups with quite different survival.
	var time, status, group []float64
	for i := 0; i < 20; i++ {
		g := float64(i % 2)
		time = append(time, float64(1+i)+10*g)
		status = append(status, 1)
		group = append(group, g)
	}

	data := survData([]string{"Time", "Status", "Group"}, time, status, group)
	sfs, levels := SurvfuncByGroup(data, "Time", "Status", "Group")

	if len(sfs) != 2 || len(levels) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(sfs))
	}
	if levels[0] != 0 || levels[1] != 1 {
		t.Errorf("unexpected group levels: %v", levels)
	}

	for k, sf := range sfs {
		if int(floats.Sum(sf.NumEvents())) != 10 {
			t.Errorf("group %d: wrong number of events", k)
		}
		// The survival function is nonincreasing.
		sp := sf.SurvProb()
		for i := 1; i < len(sp); i++ {
			if sp[i] > sp[i-1] {
				t.Errorf("group %d: survival function increases at %d", k, i)
			}
		}
	}
}

func TestPlotSurvfunc(t *testing.T) {

	dir := t.TempDir()

	time := []float64{1, 5, 7, 9, 12, 14}
	status := []float64{1, 1, 0, 1, 0, 1}
	data := survData([]string{"Time", "Status"}, time, status)

	sf := NewSurvfuncRight(data, "Time", "Status").Done()

	sp := NewSurvfuncRightPlotter()
	err := sp.AddCI(sf, "All", 1.96).Width(6).Done().Save(filepath.Join(dir, "surv.png"))
	if err != nil {
		t.Fatal(err)
	}
}
