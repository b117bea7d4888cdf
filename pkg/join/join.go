// pkg/join/join.go
package join

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/retailscope/campaign-response/pkg/model"
)

// Join-key errors. A join with a missing or wrong key predicate degenerates
// into a cross product, so the keys are validated and the output cardinality
// asserted on every join rather than left to inspection.
var (
	// ErrDuplicateKey reports a join side with more than one row per key,
	// which would multiply output rows past one-row-per-customer.
	ErrDuplicateKey = errors.New("duplicate join key")

	// ErrCardinality reports a join result larger than the keyed bound.
	ErrCardinality = errors.New("join cardinality exceeds keyed bound")
)

// Customers inner-joins the aggregated feature rows with the demographics on
// feature.CustomerID == demographics.ID. The result has exactly one row per
// customer present on both sides; its cardinality can never exceed the
// smaller input, and that bound is asserted.
func Customers(features []model.CustomerFeatureRow, demo model.DemographicsTable) (model.JoinedTable, error) {
	var out model.JoinedTable

	byID := make(map[string]model.DemographicRecord, len(demo.Records))
	for _, rec := range demo.Records {
		if _, dup := byID[rec.ID]; dup {
			return out, fmt.Errorf("%w: demographics %s %q", ErrDuplicateKey, model.IDColumn, rec.ID)
		}
		byID[rec.ID] = rec
	}

	seen := make(map[string]struct{}, len(features))
	rows := make([]model.JoinedCustomerRow, 0, len(features))
	for _, feat := range features {
		if _, dup := seen[feat.CustomerID]; dup {
			return out, fmt.Errorf("%w: feature row %s %q", ErrDuplicateKey, model.TransactionIDColumn, feat.CustomerID)
		}
		seen[feat.CustomerID] = struct{}{}

		rec, ok := byID[feat.CustomerID]
		if !ok {
			continue
		}
		rows = append(rows, model.JoinedCustomerRow{
			ID:    rec.ID,
			Attrs: rec.Attrs,
			Txns:  feat.Txns,
			Spend: feat.Spend,
		})
	}

	if err := verifyCardinality(len(rows), len(features), len(demo.Records)); err != nil {
		return out, err
	}

	zap.L().Named("join").Debug("Joined features with demographics",
		zap.Int("features", len(features)),
		zap.Int("demographics", len(demo.Records)),
		zap.Int("joined", len(rows)))

	out.AttrColumns = demo.AttrColumns
	out.Rows = rows
	return out, nil
}

// Split partitions the joined customers against the campaign sample: an
// inner join on joined.ID == sample.CustomerID yields the labeled training
// set (label cast to numeric 0/1), and the anti-join yields the unlabeled
// scoring set. The two are disjoint and together cover every joined
// customer.
func Split(joined model.JoinedTable, sample []model.CampaignSampleRecord) (model.TrainingSet, model.ScoringSet, error) {
	var training model.TrainingSet
	var scoring model.ScoringSet

	labelByID := make(map[string]float64, len(sample))
	for _, rec := range sample {
		if _, dup := labelByID[rec.CustomerID]; dup {
			return training, scoring, fmt.Errorf("%w: campaign sample %s %q",
				ErrDuplicateKey, model.TransactionIDColumn, rec.CustomerID)
		}
		labelByID[rec.CustomerID] = castLabel(rec.RespondYes)
	}

	for _, row := range joined.Rows {
		if label, ok := labelByID[row.ID]; ok {
			training.Rows = append(training.Rows, model.TrainingRow{
				JoinedCustomerRow: row,
				Respond:           label,
			})
		} else {
			scoring.Rows = append(scoring.Rows, row)
		}
	}

	if err := verifyCardinality(len(training.Rows), len(joined.Rows), len(sample)); err != nil {
		return training, scoring, err
	}
	if len(training.Rows)+len(scoring.Rows) != len(joined.Rows) {
		return training, scoring, fmt.Errorf("%w: training (%d) + scoring (%d) != joined (%d)",
			ErrCardinality, len(training.Rows), len(scoring.Rows), len(joined.Rows))
	}

	zap.L().Named("join").Debug("Split joined customers against campaign sample",
		zap.Int("joined", len(joined.Rows)),
		zap.Int("sample", len(sample)),
		zap.Int("training", len(training.Rows)),
		zap.Int("scoring", len(scoring.Rows)))

	training.AttrColumns = joined.AttrColumns
	scoring.AttrColumns = joined.AttrColumns
	return training, scoring, nil
}

// verifyCardinality asserts the invariant of a keyed inner join: the output
// can never exceed the smaller input. A violation means the key predicate
// was effectively missing.
func verifyCardinality(got, left, right int) error {
	bound := left
	if right < bound {
		bound = right
	}
	if got > bound {
		return fmt.Errorf("%w: got %d rows from inputs of %d and %d", ErrCardinality, got, left, right)
	}
	return nil
}

// castLabel converts the boolean response into the numeric 0/1 label the
// trainer expects.
func castLabel(respondYes bool) float64 {
	if respondYes {
		return 1
	}
	return 0
}
