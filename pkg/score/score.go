// pkg/score/score.go
package score

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/retailscope/campaign-response/pkg/model"
)

// Predictor produces a response-scale probability for one customer row. The
// row's identifier travels alongside the attributes and is never part of the
// feature vector the predictor sees.
type Predictor interface {
	PredictProba(row model.JoinedCustomerRow) (float64, error)
}

// Rank scores every customer in the scoring set and returns them sorted by
// descending predicted probability. Ties keep their input order. Row
// correspondence between identifier and prediction is preserved by
// construction: each result is built from the row it was predicted on.
func Rank(p Predictor, set model.ScoringSet) ([]model.ScoredResult, error) {
	results := make([]model.ScoredResult, 0, len(set.Rows))
	for _, row := range set.Rows {
		prob, err := p.PredictProba(row)
		if err != nil {
			return nil, fmt.Errorf("failed to score customer %s: %w", row.ID, err)
		}
		results = append(results, model.ScoredResult{
			CustomerID:  row.ID,
			Probability: prob,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Probability > results[j].Probability
	})

	zap.L().Named("score").Debug("Ranked scoring population",
		zap.Int("customers", len(results)))

	return results, nil
}
