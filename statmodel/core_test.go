package statmodel

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func data1() ([]string, [][]Dtype) {
	x := [][]Dtype{
		{0, 1, 3, 2, 1, 1, 0},
		{1, 1, 1, 1, 1, 1, 1},
		{4, 1, -1, 3, 5, -5, 3},
	}
	return []string{"y", "icept", "x"}, x
}

func data1b() ([]string, [][]Dtype) {
	x := [][]Dtype{
		{0, 1, 3, 2, 1, 1, 0},
		{1, 1, 1, 1, 1, 1, 1},
		{8, 2, -2, 6, 10, -10, 6},
	}
	return []string{"y", "icept", "x"}, x
}

// A mock model for testing
type Mock struct {
	data [][]Dtype
	xpos []int
}

func (m *Mock) Dataset() [][]Dtype {
	return m.data
}

func (m *Mock) LogLike(params Parameter, exact bool) float64 {
	return 0
}

func (m *Mock) Score(params Parameter, score []float64) {
}

func (m *Mock) Hessian(params Parameter, ht HessType, hess []float64) {
}

func (m *Mock) NumParams() int {
	return len(m.xpos)
}

func (m *Mock) NumObs() int {
	return len(m.data[0])
}

func (m *Mock) Xpos() []int {
	return m.xpos
}

func TestDataset(t *testing.T) {

	na, da := data1()
	ds := NewDataset(da, na)

	if ds.NumObs() != 7 {
		t.Fail()
	}
	if ds.Pos("x") != 2 || ds.Pos("z") != -1 {
		t.Fail()
	}

	c, err := ds.Col("icept")
	if err != nil {
		t.Fail()
	}
	for _, v := range c {
		if v != 1 {
			t.Fail()
		}
	}

	if _, err := ds.Col("z"); err == nil {
		t.Fail()
	}
}

func TestFittedValues(t *testing.T) {

	_, da := data1()
	model := &Mock{
		data: da,
		xpos: []int{1, 2},
	}

	params := []float64{1, 2}
	xnames := []string{"icept", "x"}
	vcov := []float64{0, 0, 0, 0}

	r := NewBaseResults(model, 0, params, xnames, vcov)

	// Test fitted values on the training data.
	fv := []float64{9, 3, -1, 7, 11, -9, 7}
	if !floats.Equal(fv, r.FittedValues(nil)) {
		t.Fail()
	}

	// Test fitted values when passing new data columns.
	_, da2 := data1b()
	fv = []float64{17, 5, -3, 13, 21, -19, 13}
	if !floats.Equal(fv, r.FittedValues(da2)) {
		t.Fail()
	}
}

func TestResultStats(t *testing.T) {

	_, da := data1()
	model := &Mock{
		data: da,
		xpos: []int{1, 2},
	}

	params := []float64{1, 2}
	xnames := []string{"icept", "x"}
	vcov := []float64{4, 0, 0, 0.25}

	r := NewBaseResults(model, -10, params, xnames, vcov)

	se := r.StdErr()
	if !floats.EqualApprox(se, []float64{2, 0.5}, 1e-10) {
		t.Fail()
	}

	z := r.ZScores()
	if !floats.EqualApprox(z, []float64{0.5, 4}, 1e-10) {
		t.Fail()
	}

	// 2*Phi(-|z|) for z = 0.5 and z = 4
	p := r.PValues()
	if math.Abs(p[0]-0.61708) > 1e-4 {
		t.Fail()
	}
	if math.Abs(p[1]-6.334e-5) > 1e-7 {
		t.Fail()
	}

	// 2 parameters, loglike -10
	if math.Abs(r.AIC()-24) > 1e-10 {
		t.Fail()
	}
}

func TestSummaryTable(t *testing.T) {

	s := &SummaryTable{
		Title:    "Test model",
		Top:      []string{"  Sample size: 7", "  Events: 3"},
		ColNames: []string{"Variable ", "Coefficient"},
		ColFmt:   []Fmter{FmtString, FmtFloat},
		Cols: []interface{}{
			[]string{"icept", "x"},
			[]float64{1, 2},
		},
		Msg: []string{"1 observation dropped"},
	}

	txt := s.String()

	for _, frag := range []string{"Test model", "Sample size", "icept", "2.0000", "1 observation dropped"} {
		if !strings.Contains(txt, frag) {
			t.Fail()
		}
	}
}
