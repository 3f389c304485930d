package report

import (
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// ErrNoFeatureImportances is returned for models that do not expose feature importances.
var ErrNoFeatureImportances = errors.New("model does not expose feature importances")

// FeatureImportances returns the importances of m, or ErrNoFeatureImportances.
func FeatureImportances(m any) ([]float64, error) {
	fi, ok := m.(model.FeatureImportancer)
	if !ok {
		return nil, ErrNoFeatureImportances
	}
	imp := fi.GetFeatureImportances()
	if len(imp) == 0 {
		return nil, ErrNoFeatureImportances
	}
	return imp, nil
}

// PlotFeatureImportance draws the topN most important features as horizontal
// bars, most important on top. topN <= 0 draws every feature.
func PlotFeatureImportance(importances []float64, names []string, topN int, title, path string) error {
	if len(importances) == 0 {
		return ErrNoFeatureImportances
	}
	if names != nil && len(names) != len(importances) {
		return errors.NewDimensionError("report.PlotFeatureImportance", len(importances), len(names), 1)
	}

	idx := make([]int, len(importances))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return importances[idx[a]] > importances[idx[b]] })
	if topN > 0 && topN < len(idx) {
		idx = idx[:topN]
	}

	// 横棒グラフは下から描かれるので逆順に並べる
	k := len(idx)
	values := make(plotter.Values, k)
	labels := make([]string, k)
	for i, j := range idx {
		values[k-1-i] = importances[j]
		if names != nil {
			labels[k-1-i] = names[j]
		} else {
			labels[k-1-i] = "feature_" + strconv.Itoa(j)
		}
	}

	if title == "" {
		title = "Feature Importance"
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Importance"
	p.X.Min = 0

	bc, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return errors.Wrap(err, "report.PlotFeatureImportance")
	}
	bc.Horizontal = true
	bc.Color = plotutil.Color(2)
	bc.LineStyle.Width = 0
	p.Add(bc)
	p.NominalY(labels...)

	return save(p, path)
}
