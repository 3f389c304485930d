package report

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/model_selection"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// PlotLearningCurves draws the mean training and validation scores against
// the training size, each surrounded by a ±1 std band.
func PlotLearningCurves(curve *model_selection.LearningCurveResult, path string) error {
	if curve == nil || len(curve.TrainSizes) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "report.PlotLearningCurves")
	}

	p := plot.New()
	p.Title.Text = "Learning Curves"
	p.X.Label.Text = "Training Size"
	p.Y.Label.Text = "Accuracy"
	p.Legend.Top = false
	p.Legend.Left = false

	series := []struct {
		name      string
		mean, std []float64
	}{
		{"Training score", curve.TrainMean(), curve.TrainStd()},
		{"Validation score", curve.ValidationMean(), curve.ValidationStd()},
	}
	for i, s := range series {
		c := plotutil.Color(i)

		band, err := plotter.NewPolygon(stdBand(curve.TrainSizes, s.mean, s.std))
		if err != nil {
			return errors.Wrap(err, "report.PlotLearningCurves")
		}
		band.Color = fade(c)
		band.LineStyle.Width = 0

		line, points, err := plotter.NewLinePoints(meanLine(curve.TrainSizes, s.mean))
		if err != nil {
			return errors.Wrap(err, "report.PlotLearningCurves")
		}
		line.Color = c
		line.Width = vg.Points(2)
		points.GlyphStyle.Color = c

		p.Add(band, line, points)
		p.Legend.Add(s.name, line, points)
	}
	p.Add(plotter.NewGrid())

	return save(p, path)
}

func meanLine(sizes []int, mean []float64) plotter.XYs {
	xys := make(plotter.XYs, len(sizes))
	for i, n := range sizes {
		xys[i] = plotter.XY{X: float64(n), Y: mean[i]}
	}
	return xys
}

// stdBand は mean+std を左から右へ、mean-std を右から左へたどる閉じた多角形を返す
func stdBand(sizes []int, mean, std []float64) plotter.XYs {
	n := len(sizes)
	xys := make(plotter.XYs, 0, 2*n)
	for i := 0; i < n; i++ {
		xys = append(xys, plotter.XY{X: float64(sizes[i]), Y: mean[i] + std[i]})
	}
	for i := n - 1; i >= 0; i-- {
		xys = append(xys, plotter.XY{X: float64(sizes[i]), Y: mean[i] - std[i]})
	}
	return xys
}

func fade(c color.Color) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 50}
}
