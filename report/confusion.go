package report

import (
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// confusionGrid は混同行列を plotter.GridXYZ として公開する。
// 行0 (最初の真のクラス) が上に来るように Y 軸を反転している。
type confusionGrid struct {
	cm [][]int
}

func (g confusionGrid) Dims() (c, r int)   { return len(g.cm[0]), len(g.cm) }
func (g confusionGrid) Z(c, r int) float64 { return float64(g.cm[len(g.cm)-1-r][c]) }
func (g confusionGrid) X(c int) float64    { return float64(c) }
func (g confusionGrid) Y(r int) float64    { return float64(r) }

// PlotConfusionMatrix draws cm as a heatmap annotated with the counts.
// Rows are true classes and columns predicted classes.
func PlotConfusionMatrix(cm [][]int, classes []string, title, path string) error {
	n := len(cm)
	if n == 0 {
		return errors.Wrap(errors.ErrEmptyData, "report.PlotConfusionMatrix")
	}
	for _, row := range cm {
		if len(row) != n {
			return errors.NewDimensionError("report.PlotConfusionMatrix", n, len(row), 1)
		}
	}
	if classes == nil {
		classes = make([]string, n)
		for i := range classes {
			classes[i] = strconv.Itoa(i)
		}
	}
	if len(classes) != n {
		return errors.NewValueError("report.PlotConfusionMatrix",
			"number of classes does not match the confusion matrix size")
	}
	if title == "" {
		title = "Confusion Matrix"
	}

	grid := confusionGrid{cm: cm}
	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	if hm.Max == hm.Min {
		hm.Max = hm.Min + 1
	}

	labels := plotter.XYLabels{}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			labels.XYs = append(labels.XYs, plotter.XY{X: grid.X(c), Y: grid.Y(r)})
			labels.Labels = append(labels.Labels, strconv.Itoa(int(grid.Z(c, r))))
		}
	}
	lbl, err := plotter.NewLabels(labels)
	if err != nil {
		return errors.Wrap(err, "report.PlotConfusionMatrix")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Predicted Class"
	p.Y.Label.Text = "True Class"
	p.Add(hm, lbl)

	xTicks := make([]plot.Tick, n)
	yTicks := make([]plot.Tick, n)
	for i, name := range classes {
		xTicks[i] = plot.Tick{Value: float64(i), Label: name}
		yTicks[i] = plot.Tick{Value: float64(n - 1 - i), Label: name}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)

	return save(p, path)
}
