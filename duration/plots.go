package duration

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// SurvfuncRightPlotter is used to plot one or more survival
// functions as step curves, optionally with pointwise confidence
// bands.
type SurvfuncRightPlotter struct {
	plt *plot.Plot

	labels []string

	lines []*plotter.Line

	// Confidence band lines, not included in the legend
	bands []*plotter.Line

	width  vg.Length
	height vg.Length
}

// NewSurvfuncRightPlotter returns a default SurvfuncRightPlotter.
func NewSurvfuncRightPlotter() *SurvfuncRightPlotter {

	sp := &SurvfuncRightPlotter{
		width:  4,
		height: 4,
	}

	var err error
	sp.plt, err = plot.New()
	if err != nil {
		panic(err)
	}

	return sp
}

// Width sets the width of the survival function plot in inches.
func (sp *SurvfuncRightPlotter) Width(w float64) *SurvfuncRightPlotter {
	sp.width = vg.Length(w)
	return sp
}

// Height sets the height of the survival function plot in inches.
func (sp *SurvfuncRightPlotter) Height(h float64) *SurvfuncRightPlotter {
	sp.height = vg.Length(h)
	return sp
}

// Title sets the title of the plot.
func (sp *SurvfuncRightPlotter) Title(title string) *SurvfuncRightPlotter {
	sp.plt.Title.Text = title
	return sp
}

// stepPoints converts a survival curve to the vertices of its step
// function, starting from (0, 1).
func stepPoints(ti, pr []float64) plotter.XYs {

	pts := make(plotter.XYs, 2*len(ti)+1)

	j := 0
	pts[j].X = 0
	pts[j].Y = 1
	j++

	for i := range ti {
		pts[j].X = ti[i]
		pts[j].Y = pts[j-1].Y
		j++
		pts[j].X = ti[i]
		pts[j].Y = pr[i]
		j++
	}

	return pts
}

// Add plots a given survival function to the plot.
func (sp *SurvfuncRightPlotter) Add(sf *SurvfuncRight, label string) *SurvfuncRightPlotter {

	pts := stepPoints(sf.Time(), sf.SurvProb())

	sp.labels = append(sp.labels, label)

	line, err := plotter.NewLine(pts)
	if err != nil {
		panic(err)
	}
	line.Color = plotutil.Color(len(sp.lines))
	sp.lines = append(sp.lines, line)

	return sp
}

// AddCI plots a given survival function together with a pointwise
// confidence band at the given Z score (e.g. 1.96 for 95% coverage).
func (sp *SurvfuncRightPlotter) AddCI(sf *SurvfuncRight, label string, z float64) *SurvfuncRightPlotter {

	sp.Add(sf, label)
	color := sp.lines[len(sp.lines)-1].Color

	lcb, ucb := sf.SurvProbCI(z)
	for _, b := range [][]float64{lcb, ucb} {
		line, err := plotter.NewLine(stepPoints(sf.Time(), b))
		if err != nil {
			panic(err)
		}
		line.Color = color
		line.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
		sp.bands = append(sp.bands, line)
	}

	return sp
}

// Done constructs the plot.
func (sp *SurvfuncRightPlotter) Done() *SurvfuncRightPlotter {

	sp.plt.Y.Min = 0
	sp.plt.Y.Max = 1

	sp.plt.X.Label.Text = "Time"
	sp.plt.Y.Label.Text = "Proportion surviving"

	leg, err := plot.NewLegend()
	if err != nil {
		panic(err)
	}

	for i := range sp.lines {
		sp.plt.Add(sp.lines[i])
		leg.Add(sp.labels[i], sp.lines[i])
	}
	for _, b := range sp.bands {
		sp.plt.Add(b)
	}

	if len(sp.lines) > 1 {
		leg.Top = false
		leg.Left = true
		sp.plt.Legend = leg
	}

	return sp
}

// GetPlotStruct returns the plotting structure for this plot.
func (sp *SurvfuncRightPlotter) GetPlotStruct() *plot.Plot {
	return sp.plt
}

// Save writes the plot to the given file.
func (sp *SurvfuncRightPlotter) Save(fname string) error {
	return sp.plt.Save(sp.width*vg.Inch, sp.height*vg.Inch, fname)
}

// DiagPlotter plots transformed survival curves used to assess model
// adequacy, one scatter of points per stratum together with its least
// squares line.
type DiagPlotter struct {
	plt *plot.Plot

	labels []string
	thumbs []plot.Thumbnailer

	width  vg.Length
	height vg.Length
}

// NewDiagPlotter returns a default DiagPlotter with the given y axis
// label (e.g. "log(-log S(t))").
func NewDiagPlotter(ylabel string) *DiagPlotter {

	dp := &DiagPlotter{
		width:  4,
		height: 4,
	}

	var err error
	dp.plt, err = plot.New()
	if err != nil {
		panic(err)
	}

	dp.plt.X.Label.Text = "Log time"
	dp.plt.Y.Label.Text = ylabel

	return dp
}

// Title sets the title of the plot.
func (dp *DiagPlotter) Title(title string) *DiagPlotter {
	dp.plt.Title.Text = title
	return dp
}

// Add plots the diagnostic curve for one stratum, with its least
// squares line if available.
func (dp *DiagPlotter) Add(d StratumDiag, label string) *DiagPlotter {

	k := len(dp.labels)

	pts := make(plotter.XYs, len(d.Curve.X))
	for i := range d.Curve.X {
		pts[i].X = d.Curve.X[i]
		pts[i].Y = d.Curve.Y[i]
	}

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		panic(err)
	}
	sc.GlyphStyle.Color = plotutil.Color(k)
	dp.plt.Add(sc)

	dp.labels = append(dp.labels, label)
	dp.thumbs = append(dp.thumbs, sc)

	if len(d.Curve.X) >= 2 && d.Slope == d.Slope {
		x0 := d.Curve.X[0]
		x1 := d.Curve.X[len(d.Curve.X)-1]
		lp := plotter.XYs{
			{X: x0, Y: d.Intercept + d.Slope*x0},
			{X: x1, Y: d.Intercept + d.Slope*x1},
		}
		line, err := plotter.NewLine(lp)
		if err != nil {
			panic(err)
		}
		line.Color = plotutil.Color(k)
		dp.plt.Add(line)
	}

	return dp
}

// AddAll plots the diagnostic curves for all strata, labeling each
// stratum by its level.
func (dp *DiagPlotter) AddAll(diags []StratumDiag, groupname string) *DiagPlotter {
	for _, d := range diags {
		dp.Add(d, fmt.Sprintf("%s=%g", groupname, d.Level))
	}
	return dp
}

// Done constructs the plot.
func (dp *DiagPlotter) Done() *DiagPlotter {

	leg, err := plot.NewLegend()
	if err != nil {
		panic(err)
	}

	for i := range dp.labels {
		leg.Add(dp.labels[i], dp.thumbs[i])
	}

	if len(dp.labels) > 1 {
		leg.Top = true
		leg.Left = true
		dp.plt.Legend = leg
	}

	return dp
}

// Save writes the plot to the given file.
func (dp *DiagPlotter) Save(fname string) error {
	return dp.plt.Save(dp.width*vg.Inch, dp.height*vg.Inch, fname)
}
