// Package report は評価結果をグラフとJSONファイルとして出力します。
//
// グラフは gonum/plot で描画し、画像形式は保存先の拡張子 (.png, .svg, .pdf) で決まります。
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/evaluation"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

var logger = log.GetLoggerWithName("report")

// 既定の画像サイズ
var (
	Width  = 10 * vg.Inch
	Height = 6 * vg.Inch
)

// CompareModels draws a horizontal bar chart of metric over results.
// Bars are sorted ascending so the best model ends up on top.
func CompareModels(results []evaluation.Result, metric, path string) error {
	if len(results) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "report.CompareModels")
	}

	type bar struct {
		name  string
		value float64
	}
	bars := make([]bar, 0, len(results))
	for _, r := range results {
		v, err := r.Value(metric)
		if err != nil {
			return err
		}
		bars = append(bars, bar{name: r.ModelName, value: v})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].value < bars[j].value })

	values := make(plotter.Values, len(bars))
	names := make([]string, len(bars))
	labels := plotter.XYLabels{
		XYs:    make(plotter.XYs, len(bars)),
		Labels: make([]string, len(bars)),
	}
	for i, b := range bars {
		values[i] = b.value
		names[i] = b.name
		labels.XYs[i] = plotter.XY{X: b.value + 0.01, Y: float64(i)}
		labels.Labels[i] = fmt.Sprintf("%.4f", b.value)
	}

	p := plot.New()
	p.Title.Text = "Model Comparison - " + metricTitle(metric)
	p.X.Label.Text = metricTitle(metric)
	p.X.Min, p.X.Max = 0, 1

	bc, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return errors.Wrap(err, "report.CompareModels")
	}
	bc.Horizontal = true
	bc.Color = plotutil.Color(0)
	bc.LineStyle.Width = 0

	lbl, err := plotter.NewLabels(labels)
	if err != nil {
		return errors.Wrap(err, "report.CompareModels")
	}
	p.Add(bc, lbl)
	p.NominalY(names...)

	return save(p, path)
}

// metricTitle は "f1_score" を "F1 Score" のような見出しに変換する
func metricTitle(metric string) string {
	switch metric {
	case "accuracy":
		return "Accuracy"
	case "precision":
		return "Precision"
	case "recall":
		return "Recall"
	case "f1_score", "f1":
		return "F1 Score"
	case "roc_auc":
		return "ROC AUC"
	}
	return metric
}

func save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	if err := p.Save(Width, Height, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	logger.Info("Plot saved", log.PathKey, path)
	return nil
}
