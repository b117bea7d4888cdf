// pkg/pipeline/verifier.go
package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/retailscope/campaign-response/pkg/model"
)

// Verifier asserts the structural invariants of each stage's output. Every
// bound is checked on every run and a violation aborts the run; nothing is
// left to inspection.
type Verifier struct {
	logger *zap.Logger
}

// NewVerifier creates a verifier.
func NewVerifier(logger *zap.Logger) *Verifier {
	return &Verifier{logger: logger.Named("verifier")}
}

// VerifyAggregation checks that the aggregator produced exactly one row per
// distinct customer in the transaction input, never more.
func (v *Verifier) VerifyAggregation(transactions []model.TransactionRecord, features []model.CustomerFeatureRow) error {
	distinct := make(map[string]struct{}, len(features))
	for _, txn := range transactions {
		distinct[txn.CustomerID] = struct{}{}
	}

	if len(features) != len(distinct) {
		return fmt.Errorf("aggregation produced %d rows for %d distinct customers",
			len(features), len(distinct))
	}

	seen := make(map[string]struct{}, len(features))
	for _, feat := range features {
		if _, dup := seen[feat.CustomerID]; dup {
			return fmt.Errorf("aggregation produced duplicate row for customer %s", feat.CustomerID)
		}
		seen[feat.CustomerID] = struct{}{}
		if _, ok := distinct[feat.CustomerID]; !ok {
			return fmt.Errorf("aggregation produced row for unknown customer %s", feat.CustomerID)
		}
	}

	v.logger.Debug("Aggregation verified", zap.Int("customers", len(features)))
	return nil
}

// VerifyJoin checks the keyed-join cardinality bound: the joined output can
// never exceed the smaller input. The cross product would instead be near
// the product of the input sizes.
func (v *Verifier) VerifyJoin(featureRows, demographicRows, joinedRows int) error {
	bound := featureRows
	if demographicRows < bound {
		bound = demographicRows
	}
	if joinedRows > bound {
		return fmt.Errorf("join produced %d rows from inputs of %d and %d (cross product?)",
			joinedRows, featureRows, demographicRows)
	}

	v.logger.Debug("Join cardinality verified",
		zap.Int("features", featureRows),
		zap.Int("demographics", demographicRows),
		zap.Int("joined", joinedRows))
	return nil
}

// VerifyPartition checks that training and scoring customers are disjoint
// and together cover the full joined population.
func (v *Verifier) VerifyPartition(joined model.JoinedTable, training model.TrainingSet, scoring model.ScoringSet) error {
	trainIDs := make(map[string]struct{}, len(training.Rows))
	for _, row := range training.Rows {
		trainIDs[row.ID] = struct{}{}
	}

	for _, row := range scoring.Rows {
		if _, overlap := trainIDs[row.ID]; overlap {
			return fmt.Errorf("customer %s appears in both training and scoring sets", row.ID)
		}
	}

	if len(training.Rows)+len(scoring.Rows) != len(joined.Rows) {
		return fmt.Errorf("training (%d) and scoring (%d) sets do not cover joined population (%d)",
			len(training.Rows), len(scoring.Rows), len(joined.Rows))
	}

	v.logger.Debug("Partition verified",
		zap.Int("training", len(training.Rows)),
		zap.Int("scoring", len(scoring.Rows)))
	return nil
}

// VerifyRanking checks that the scored output is sorted by descending
// probability.
func (v *Verifier) VerifyRanking(results []model.ScoredResult) error {
	for i := 1; i < len(results); i++ {
		if results[i].Probability > results[i-1].Probability {
			return fmt.Errorf("ranking out of order at position %d: %f > %f",
				i, results[i].Probability, results[i-1].Probability)
		}
	}

	v.logger.Debug("Ranking verified", zap.Int("results", len(results)))
	return nil
}
