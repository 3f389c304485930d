// Package dataset loads tabular data and persists the preprocessed arrays.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

// Dataset is a feature matrix with raw (string) class labels.
type Dataset struct {
	X            *mat.Dense
	Target       []string
	FeatureNames []string
}

// CSVOptions selects the columns of a CSV file.
type CSVOptions struct {
	// Target is the label column.
	Target string
	// Drop lists columns to ignore (identifiers, leakage).
	Drop []string
	// Comma defaults to ','.
	Comma rune
}

// LoadCSV reads a CSV file with a header row. Numeric columns are used as
// they are; any other column is one-hot encoded into "<column>=<value>"
// features with categories in sorted order.
func LoadCSV(path string, opts CSVOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()

	ds, err := ReadCSV(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "load dataset %s", path)
	}
	r, c := ds.X.Dims()
	log.GetLoggerWithName("dataset").Info("Dataset loaded",
		log.PathKey, path,
		log.OperationKey, log.OperationLoad,
		log.SamplesKey, r,
		log.FeaturesKey, c,
	)
	return ds, nil
}

// ReadCSV is LoadCSV on a reader.
func ReadCSV(r io.Reader, opts CSVOptions) (*Dataset, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}
	if len(records) < 2 {
		return nil, errors.Wrap(errors.ErrEmptyData, "csv has no data rows")
	}

	header := records[0]
	rows := records[1:]
	targetIdx := slices.Index(header, opts.Target)
	if targetIdx < 0 {
		return nil, errors.NewValueError("ReadCSV", fmt.Sprintf("target column %q not found", opts.Target))
	}

	var columns []column
	for j, name := range header {
		if j == targetIdx || slices.Contains(opts.Drop, name) {
			continue
		}
		col, err := parseColumn(name, j, rows)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return nil, errors.NewValueError("ReadCSV", "no feature columns left")
	}

	var names []string
	for _, c := range columns {
		names = append(names, c.names()...)
	}
	X := mat.NewDense(len(rows), len(names), nil)
	target := make([]string, len(rows))
	for i, rec := range rows {
		target[i] = strings.TrimSpace(rec[targetIdx])
		if target[i] == "" {
			return nil, errors.NewValueError("ReadCSV", fmt.Sprintf("row %d has an empty target", i+2))
		}
		k := 0
		for _, c := range columns {
			k += c.fill(X.RawRowView(i)[k:], rec[c.index])
		}
	}
	return &Dataset{X: X, Target: target, FeatureNames: names}, nil
}

// column は数値列またはone-hot化されるカテゴリ列
type column struct {
	name       string
	index      int
	categories []string // nil なら数値列
}

func parseColumn(name string, j int, rows [][]string) (column, error) {
	col := column{name: name, index: j}
	numeric := true
	for i, rec := range rows {
		v := strings.TrimSpace(rec[j])
		if v == "" {
			return column{}, errors.NewValueError("ReadCSV", fmt.Sprintf("missing value in column %q at row %d", name, i+2))
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			numeric = false
		}
	}
	if numeric {
		return col, nil
	}

	seen := map[string]bool{}
	for _, rec := range rows {
		seen[strings.TrimSpace(rec[j])] = true
	}
	for v := range seen {
		col.categories = append(col.categories, v)
	}
	sort.Strings(col.categories)
	errors.Warn(errors.NewDataConversionWarning("string", "one-hot float64",
		fmt.Sprintf("column %q has %d categories", name, len(col.categories))))
	return col, nil
}

func (c column) names() []string {
	if c.categories == nil {
		return []string{c.name}
	}
	out := make([]string, len(c.categories))
	for i, v := range c.categories {
		out[i] = c.name + "=" + v
	}
	return out
}

func (c column) fill(dst []float64, raw string) int {
	v := strings.TrimSpace(raw)
	if c.categories == nil {
		dst[0], _ = strconv.ParseFloat(v, 64)
		return 1
	}
	k := sort.SearchStrings(c.categories, v)
	dst[k] = 1
	return len(c.categories)
}
