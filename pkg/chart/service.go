// Package chart renders the annual cycle of the reference range.
package chart

import (
	"errors"
	"image/color"
	"io"
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/aggregator"
	"github.com/NotCoffee418/staff_calibration/pkg/types"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var ErrNotEnoughMonths = errors.New("annual cycle needs more than one month")

var (
	width  = 8 * vg.Inch
	height = 4 * vg.Inch

	lineColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
)

// AnnualCyclePlot builds the deviation-per-month plot.
func AnnualCyclePlot(cycle aggregator.AnnualCycle) (*plot.Plot, error) {
	if !cycle.Chartable() {
		return nil, ErrNotEnoughMonths
	}

	p := plot.New()
	p.Title.Text = "Annual cycle of the calibration range"
	p.X.Label.Text = "Month"
	p.Y.Label.Text = "Deviation from mean (mm)"
	p.X.Min = float64(time.January) - 0.5
	p.X.Max = float64(time.December) + 0.5

	ticks := make([]plot.Tick, 0, 12)
	for m := time.January; m <= time.December; m++ {
		ticks = append(ticks, plot.Tick{Value: float64(m), Label: types.MonthName(m)})
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)

	pts := make(plotter.XYs, 0, len(cycle.Months))
	for _, m := range cycle.Months {
		pts = append(pts, plotter.XY{X: float64(m.Month), Y: m.DeviationMm})
	}

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, err
	}
	line.Color = lineColor
	line.Width = vg.Points(1.5)
	points.Color = lineColor
	p.Add(plotter.NewGrid(), line, points)

	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	zero.Color = color.Gray{Y: 128}
	p.Add(zero)

	return p, nil
}

// WriteAnnualCyclePNG renders the annual cycle as PNG into w.
func WriteAnnualCyclePNG(w io.Writer, cycle aggregator.AnnualCycle) error {
	p, err := AnnualCyclePlot(cycle)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
