// pkg/features/aggregate.go
package features

import (
	"sort"

	"go.uber.org/zap"

	"github.com/retailscope/campaign-response/pkg/model"
)

// Aggregate groups transactions by customer and computes, per customer:
// txns, the count of distinct day numbers (shopping trips, so repeated
// purchases on the same day count once), and spend, the sum of extended
// price across all line items (same-day repeats do count here).
//
// The output has exactly one row per distinct customer in the input, sorted
// by customer id for determinism. Customers with zero transactions have no
// row; downstream joins rely on that.
func Aggregate(transactions []model.TransactionRecord) []model.CustomerFeatureRow {
	type accumulator struct {
		days  map[int64]struct{}
		spend float64
	}

	byCustomer := make(map[string]*accumulator)
	for _, txn := range transactions {
		acc, ok := byCustomer[txn.CustomerID]
		if !ok {
			acc = &accumulator{days: make(map[int64]struct{})}
			byCustomer[txn.CustomerID] = acc
		}
		acc.days[txn.DayNum] = struct{}{}
		acc.spend += txn.ExtendedPrice
	}

	features := make([]model.CustomerFeatureRow, 0, len(byCustomer))
	for custID, acc := range byCustomer {
		features = append(features, model.CustomerFeatureRow{
			CustomerID: custID,
			Txns:       int64(len(acc.days)),
			Spend:      acc.spend,
		})
	}

	sort.Slice(features, func(i, j int) bool {
		return features[i].CustomerID < features[j].CustomerID
	})

	zap.L().Named("features").Debug("Aggregated customer features",
		zap.Int("transactions", len(transactions)),
		zap.Int("customers", len(features)))

	return features
}
