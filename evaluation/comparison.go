package evaluation

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// MetricNames lists the metrics a Comparison can rank by.
var MetricNames = []string{"accuracy", "precision", "recall", "f1_score", "roc_auc"}

// Value returns the named metric. A result without ROC AUC fails for "roc_auc".
func (r Result) Value(metric string) (float64, error) {
	switch metric {
	case "accuracy":
		return r.Accuracy, nil
	case "precision":
		return r.Precision, nil
	case "recall":
		return r.Recall, nil
	case "f1_score", "f1":
		return r.F1Score, nil
	case "roc_auc":
		if r.ROCAUC == nil {
			return 0, errors.NewValueError("Result.Value", fmt.Sprintf("%s has no roc_auc", r.ModelName))
		}
		return *r.ROCAUC, nil
	}
	return 0, errors.NewValidationError("metric", "must be one of accuracy, precision, recall, f1_score, roc_auc", metric)
}

// Comparison ranks evaluation results of several models.
type Comparison struct {
	Metric  string   `json:"metric"`
	Results []Result `json:"results"`
}

// NewComparison sorts results by metric, best first. Ties keep input order.
// Model names may repeat or be empty.
func NewComparison(results []Result, metric string) (*Comparison, error) {
	type ranked struct {
		res   Result
		value float64
	}
	rows := make([]ranked, len(results))
	for i, r := range results {
		v, err := r.Value(metric)
		if err != nil {
			// roc_auc が無いモデルは最後に回す
			if metric != "roc_auc" {
				return nil, err
			}
			v = -1
		}
		rows[i] = ranked{res: r, value: v}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].value > rows[j].value })

	c := &Comparison{Metric: metric, Results: make([]Result, len(rows))}
	for i, row := range rows {
		c.Results[i] = row.res
	}
	return c, nil
}

// Best returns the top ranked result.
func (c *Comparison) Best() (Result, bool) {
	if len(c.Results) == 0 {
		return Result{}, false
	}
	return c.Results[0], true
}

// Table writes the ranking as an aligned text table.
func (c *Comparison) Table(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "model\taccuracy\tprecision\trecall\tf1_score\troc_auc")
	for _, r := range c.Results {
		auc := "-"
		if r.ROCAUC != nil {
			auc = fmt.Sprintf("%.4f", *r.ROCAUC)
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%s\n", r.ModelName, r.Accuracy, r.Precision, r.Recall, r.F1Score, auc)
	}
	return tw.Flush()
}
