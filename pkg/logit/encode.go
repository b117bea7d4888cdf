// pkg/logit/encode.go
package logit

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/retailscope/campaign-response/pkg/model"
)

// Encoding errors. Zero variance is fatal at fit time; an unseen level is
// fatal at scoring time (scoring schema mismatched with training schema).
var (
	ErrZeroVariance = errors.New("predictor has zero variance in training data")
	ErrUnseenLevel  = errors.New("categorical value not seen during training")
	ErrMissingAttr  = errors.New("attribute missing from row")
)

// Fixed model terms ahead of the demographic attributes.
const (
	interceptTerm = "(Intercept)"
	txnsTerm      = "txns"
	spendTerm     = "spend"
)

// Encoder maps a customer row to a design-matrix row. It is fitted on the
// training set and then applied unchanged to the scoring set, so both
// populations are encoded against the same columns and category levels.
//
// An attribute column whose values all parse as numbers enters the model as
// a single numeric predictor; any other column is categorical and is
// dummy-coded with its first (sorted) level as the reference. The customer
// identifier is not an attribute and can never appear here.
type Encoder struct {
	attrColumns []string
	numeric     map[string]bool
	levels      map[string][]string // categorical column -> sorted levels
	terms       []string
}

// FitEncoder derives the encoding from the training set. Every predictor
// (txns, spend, and each attribute) must vary across the training rows;
// a constant predictor is a fatal configuration error, not something to
// silently drop.
func FitEncoder(set model.TrainingSet) (*Encoder, error) {
	if len(set.Rows) == 0 {
		return nil, errors.New("training set is empty")
	}

	if constantTxns(set.Rows) {
		return nil, fmt.Errorf("%w: %s", ErrZeroVariance, txnsTerm)
	}
	if constantSpend(set.Rows) {
		return nil, fmt.Errorf("%w: %s", ErrZeroVariance, spendTerm)
	}

	enc := &Encoder{
		attrColumns: set.AttrColumns,
		numeric:     make(map[string]bool, len(set.AttrColumns)),
		levels:      make(map[string][]string),
	}

	for _, col := range set.AttrColumns {
		values := make([]string, 0, len(set.Rows))
		for _, row := range set.Rows {
			v, ok := row.Attrs[col]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrMissingAttr, col)
			}
			values = append(values, v)
		}

		if allNumeric(values) {
			if allEqual(values) {
				return nil, fmt.Errorf("%w: %s", ErrZeroVariance, col)
			}
			enc.numeric[col] = true
			continue
		}

		levels := distinctSorted(values)
		if len(levels) < 2 {
			return nil, fmt.Errorf("%w: %s", ErrZeroVariance, col)
		}
		enc.levels[col] = levels
	}

	enc.terms = enc.buildTerms()
	return enc, nil
}

// Terms returns the design-matrix column names: intercept, txns, spend,
// numeric attributes, then one dummy per non-reference category level.
func (e *Encoder) Terms() []string {
	out := make([]string, len(e.terms))
	copy(out, e.terms)
	return out
}

func (e *Encoder) buildTerms() []string {
	terms := []string{interceptTerm, txnsTerm, spendTerm}
	for _, col := range e.attrColumns {
		if e.numeric[col] {
			terms = append(terms, col)
			continue
		}
		// Skip the reference level.
		for _, level := range e.levels[col][1:] {
			terms = append(terms, col+"="+level)
		}
	}
	return terms
}

// Encode produces one design-matrix row for a customer.
func (e *Encoder) Encode(row model.JoinedCustomerRow) ([]float64, error) {
	x := make([]float64, 0, len(e.terms))
	x = append(x, 1, float64(row.Txns), row.Spend)

	for _, col := range e.attrColumns {
		v, ok := row.Attrs[col]
		if !ok {
			return nil, fmt.Errorf("%w: %s (customer %s)", ErrMissingAttr, col, row.ID)
		}

		if e.numeric[col] {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("non-numeric value %q in numeric column %s (customer %s)",
					v, col, row.ID)
			}
			x = append(x, f)
			continue
		}

		levels := e.levels[col]
		idx := -1
		for i, level := range levels {
			if level == v {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s=%q (customer %s)", ErrUnseenLevel, col, v, row.ID)
		}
		for i := 1; i < len(levels); i++ {
			if i == idx {
				x = append(x, 1)
			} else {
				x = append(x, 0)
			}
		}
	}

	return x, nil
}

// matrix encodes the training rows into the design matrix and label vector.
func (e *Encoder) matrix(rows []model.TrainingRow) (*mat.Dense, []float64, error) {
	n, p := len(rows), len(e.terms)
	X := mat.NewDense(n, p, nil)
	y := make([]float64, n)

	for i, row := range rows {
		x, err := e.Encode(row.JoinedCustomerRow)
		if err != nil {
			return nil, nil, err
		}
		X.SetRow(i, x)
		y[i] = row.Respond
	}

	return X, y, nil
}

func constantTxns(rows []model.TrainingRow) bool {
	for _, row := range rows[1:] {
		if row.Txns != rows[0].Txns {
			return false
		}
	}
	return true
}

func constantSpend(rows []model.TrainingRow) bool {
	for _, row := range rows[1:] {
		if row.Spend != rows[0].Spend {
			return false
		}
	}
	return true
}

func allNumeric(values []string) bool {
	for _, v := range values {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
	}
	return true
}

func allEqual(values []string) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func distinctSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
