// Package pbc loads and prepares the Mayo Clinic trial data on
// primary biliary cirrhosis of the liver.  The trial compared
// D-penicillamine to placebo and followed each patient to death,
// liver transplant, or the end of the study; the file layout is that
// of the 'pbc' data in the R survival package, with one row per
// patient.
package pbc

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/kshedden/dstream/dstream"

	"github.com/drtiong/parametric-surv/statmodel"
)

// Follow-up status codes.
const (
	StatusCensored   = 0
	StatusTransplant = 1
	StatusDead       = 2
)

// Treatment arm codes.
const (
	DrugDPenicillamine = 1
	DrugPlacebo        = 2
)

// missing reports whether a csv field denotes a missing value.
func missing(s string) bool {
	switch s {
	case "", ".", "NA", "na":
		return true
	}
	return false
}

// Load reads the trial data in csv format.  The first row must hold
// the variable names.  Missing values (empty, ".", or "NA") become
// NaN, and a sex variable coded m/f is recoded to 0/1.
func Load(r io.Reader) (dstream.Dstream, error) {

	rd := csv.NewReader(r)

	names, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("pbc: cannot read header: %v", err)
	}
	for j := range names {
		names[j] = strings.TrimSpace(names[j])
	}

	da := make([][]float64, len(names))

	for line := 2; ; line++ {

		row, err := rd.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("pbc: line %d: %v", line, err)
		}

		for j, f := range row {

			f = strings.TrimSpace(f)

			if missing(f) {
				da[j] = append(da[j], math.NaN())
				continue
			}

			switch strings.ToLower(f) {
			case "f":
				da[j] = append(da[j], 1)
				continue
			case "m":
				da[j] = append(da[j], 0)
				continue
			}

			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("pbc: line %d, variable %s: cannot parse '%s'",
					line, names[j], f)
			}
			da[j] = append(da[j], v)
		}
	}

	if len(da) == 0 || len(da[0]) == 0 {
		return nil, fmt.Errorf("pbc: no data rows")
	}

	var z [][]interface{}
	for j := range da {
		z = append(z, []interface{}{da[j]})
	}

	return dstream.NewFromArrays(z, names), nil
}

// Prepare derives the analysis variables from the raw data:
//
//	Died     1 if the follow-up ended in death, else 0 (transplant
//	         is treated as censoring)
//	AgeYears age in years, from the age in days
//	Female   1 for female patients, from the sex variable
//	icept    a constant 1, used as the regression intercept
//
// It then restricts to the named variables plus the derived ones and
// drops patients with a missing value in any retained variable.
func Prepare(ds dstream.Dstream, keep []string) (dstream.Dstream, error) {

	pos := make(map[string]bool)
	for _, na := range ds.Names() {
		pos[na] = true
	}
	for _, v := range []string{"status", "age"} {
		if !pos[v] {
			return nil, fmt.Errorf("pbc: variable '%s' not found", v)
		}
	}

	// The status codes are a closed vocabulary; anything else is a
	// corrupt file, not a new category.
	ds.Reset()
	status := dstream.GetCol(ds, "status").([]float64)
	for i, s := range status {
		if math.IsNaN(s) {
			continue
		}
		switch s {
		case StatusCensored, StatusTransplant, StatusDead:
		default:
			return nil, fmt.Errorf("pbc: row %d: invalid status code %v", i+1, s)
		}
	}
	ds.Reset()

	ds = dstream.Generate(ds, "Died", func(v map[string]interface{}, x interface{}) {
		died := x.([]float64)
		status := v["status"].([]float64)
		for i := range status {
			switch {
			case math.IsNaN(status[i]):
				died[i] = math.NaN()
			case status[i] == StatusDead:
				died[i] = 1
			default:
				died[i] = 0
			}
		}
	}, dstream.Float64)

	ds = dstream.Generate(ds, "AgeYears", func(v map[string]interface{}, x interface{}) {
		ay := x.([]float64)
		age := v["age"].([]float64)
		for i := range age {
			ay[i] = age[i] / 365.25
		}
	}, dstream.Float64)

	// The sex variable is recoded to 0/1 by Load with 1 for
	// female; surface it under the name used in the models.
	if pos["sex"] {
		ds = dstream.Generate(ds, "Female", func(v map[string]interface{}, x interface{}) {
			fe := x.([]float64)
			sex := v["sex"].([]float64)
			copy(fe, sex)
		}, dstream.Float64)
	}

	ds = dstream.Generate(ds, "icept", func(v map[string]interface{}, x interface{}) {
		ic := x.([]float64)
		for i := range ic {
			ic[i] = 1
		}
	}, dstream.Float64)

	derived := []string{"Died", "AgeYears", "icept"}
	if pos["sex"] {
		derived = append(derived, "Female")
	}

	have := make(map[string]bool)
	var kp []string
	for _, na := range append(keep, derived...) {
		if !have[na] {
			have[na] = true
			kp = append(kp, na)
		}
	}
	keep = kp

	dx := dstream.MemCopy(ds, false)

	// Restrict to the retained variables and drop incomplete rows.
	var z [][]interface{}
	for _, na := range keep {
		dx.Reset()
		col, err := column(dx, na)
		if err != nil {
			return nil, err
		}
		z = append(z, []interface{}{col})
	}
	out := dstream.NewFromArrays(z, keep)
	out = dstream.DropNA(out)

	return dstream.MemCopy(out, false), nil
}

func column(ds dstream.Dstream, name string) ([]float64, error) {

	for _, na := range ds.Names() {
		if na == name {
			ds.Reset()
			return dstream.GetCol(ds, name).([]float64), nil
		}
	}

	return nil, fmt.Errorf("pbc: variable '%s' not found", name)
}

// Dataset extracts the named columns into a statmodel Dataset for
// model fitting.
func Dataset(ds dstream.Dstream, names []string) (statmodel.Dataset, error) {

	var da [][]float64
	for _, na := range names {
		col, err := column(ds, na)
		if err != nil {
			return statmodel.Dataset{}, err
		}
		da = append(da, col)
	}

	return statmodel.NewDataset(da, names), nil
}
