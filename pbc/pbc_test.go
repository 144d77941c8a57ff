package pbc

import (
	"math"
	"strings"
	"testing"

	"github.com/kshedden/dstream/dstream"
)

const testCSV = `id,days,status,drug,age,sex,edema,bilirubin,albumin,prothrombin,stage
1,400,2,1,21464,f,1,14.5,2.60,12.2,4
2,4500,0,1,20617,f,0,1.1,4.14,10.6,3
3,1012,2,1,25594,m,0.5,1.4,3.48,12.0,4
4,1925,2,1,19994,f,0.5,1.8,2.54,10.3,4
5,1504,1,2,13918,f,0,3.4,3.53,10.9,3
6,2503,2,2,24201,f,0,0.8,3.98,11.0,3
7,1832,0,2,20284,f,NA,1.0,4.09,9.7,3
8,2466,2,2,19379,f,0,0.3,4.00,11.0,3
`

func TestLoad(t *testing.T) {

	ds, err := Load(strings.NewReader(testCSV))
	if err != nil {
		t.Fatal(err)
	}

	if len(ds.Names()) != 11 {
		t.Fatalf("expected 11 variables, got %d", len(ds.Names()))
	}

	ds.Reset()
	sex := dstream.GetCol(ds, "sex").([]float64)
	if sex[0] != 1 || sex[2] != 0 {
		t.Errorf("sex recode: %v", sex)
	}

	ds.Reset()
	edema := dstream.GetCol(ds, "edema").([]float64)
	if !math.IsNaN(edema[6]) {
		t.Errorf("missing edema not NaN: %v", edema[6])
	}

	ds.Reset()
	status := dstream.GetCol(ds, "status").([]float64)
	if status[0] != StatusDead || status[1] != StatusCensored || status[4] != StatusTransplant {
		t.Errorf("status: %v", status)
	}
}

func TestLoadBadValue(t *testing.T) {

	_, err := Load(strings.NewReader("a,b\n1,x\n"))
	if err == nil {
		t.Fatal("expected an error for a non-numeric field")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error does not locate the bad row: %v", err)
	}
}

func TestPrepare(t *testing.T) {

	ds, err := Load(strings.NewReader(testCSV))
	if err != nil {
		t.Fatal(err)
	}

	dx, err := Prepare(ds, []string{"days", "drug", "sex", "edema", "bilirubin"})
	if err != nil {
		t.Fatal(err)
	}

	// Patient 7 has missing edema and is dropped.
	dx.Reset()
	days := dstream.GetCol(dx, "days").([]float64)
	if len(days) != 7 {
		t.Fatalf("expected 7 patients, got %d", len(days))
	}

	dx.Reset()
	died := dstream.GetCol(dx, "Died").([]float64)
	want := []float64{1, 0, 1, 1, 0, 1, 1}
	for i := range want {
		if died[i] != want[i] {
			t.Errorf("Died[%d]: got %v, want %v", i, died[i], want[i])
		}
	}

	dx.Reset()
	ay := dstream.GetCol(dx, "AgeYears").([]float64)
	if math.Abs(ay[0]-21464.0/365.25) > 1e-10 {
		t.Errorf("AgeYears[0]: got %v", ay[0])
	}

	dx.Reset()
	icept := dstream.GetCol(dx, "icept").([]float64)
	for i := range icept {
		if icept[i] != 1 {
			t.Errorf("icept[%d]: got %v", i, icept[i])
		}
	}
}

func TestPrepareBadStatus(t *testing.T) {

	csv := "days,status,age\n100,0,20000\n200,5,21000\n300,2,22000\n"
	ds, err := Load(strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}

	_, err = Prepare(ds, []string{"days"})
	if err == nil {
		t.Fatal("expected an error for status code 5")
	}
	if !strings.Contains(err.Error(), "status") || !strings.Contains(err.Error(), "row 2") {
		t.Errorf("error does not locate the bad code: %v", err)
	}
}

func TestDataset(t *testing.T) {

	ds, err := Load(strings.NewReader(testCSV))
	if err != nil {
		t.Fatal(err)
	}

	dx, err := Prepare(ds, []string{"days", "bilirubin"})
	if err != nil {
		t.Fatal(err)
	}

	da, err := Dataset(dx, []string{"days", "Died", "icept", "bilirubin"})
	if err != nil {
		t.Fatal(err)
	}

	if da.NumObs() != 8 {
		t.Errorf("expected 8 rows, got %d", da.NumObs())
	}
	if len(da.Names()) != 4 {
		t.Errorf("expected 4 columns, got %d", len(da.Names()))
	}

	if _, err := Dataset(dx, []string{"nope"}); err == nil {
		t.Error("expected an error for an unknown variable")
	}
}
