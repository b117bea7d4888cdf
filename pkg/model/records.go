// pkg/model/records.go
package model

// IDColumn is the canonical customer-identifier column name used by every
// join downstream of the loader. The demographics source column is renamed
// to this exactly once, at load time.
const IDColumn = "ID"

// Source column names referenced by aggregations and joins. Everything else
// about the input schemas is discovered from the source metadata.
const (
	TransactionIDColumn = "cust_id"
	DayNumColumn        = "day_num"
	ExtendedPriceColumn = "extended_price"
	RespondColumn       = "respondYes"
)

// TransactionRecord is one line item: a customer bought something on a day.
// Many records per customer.
type TransactionRecord struct {
	CustomerID    string  `db:"cust_id"`
	DayNum        int64   `db:"day_num"`
	ExtendedPrice float64 `db:"extended_price"`
}

// DemographicRecord is one customer's demographic attributes. The attribute
// set is open; values are kept as strings and typed later by the model
// encoder. The identifier is held apart from the attributes so it can never
// leak into a feature vector.
type DemographicRecord struct {
	ID    string
	Attrs map[string]string
}

// DemographicsTable carries the demographic records together with the
// attribute column order discovered at load. Column order matters for
// deterministic model-term ordering.
type DemographicsTable struct {
	AttrColumns []string
	Records     []DemographicRecord
}

// CampaignSampleRecord is one customer who received the offer, with the
// observed response label.
type CampaignSampleRecord struct {
	CustomerID string `db:"cust_id"`
	RespondYes bool   `db:"respondyes"`
}

// CustomerFeatureRow is the aggregated transaction behavior of one customer:
// txns counts distinct shopping days, spend sums extended price across all
// line items. Customers with zero transactions have no row.
type CustomerFeatureRow struct {
	CustomerID string
	Txns       int64
	Spend      float64
}

// JoinedCustomerRow is a customer present in both the feature rows and the
// demographics: exactly one row per such customer.
type JoinedCustomerRow struct {
	ID    string
	Attrs map[string]string
	Txns  int64
	Spend float64
}

// JoinedTable is the joined customer population with its attribute columns.
type JoinedTable struct {
	AttrColumns []string
	Rows        []JoinedCustomerRow
}

// TrainingRow is a joined customer who received the offer, labeled with the
// response cast to numeric 0/1.
type TrainingRow struct {
	JoinedCustomerRow
	Respond float64
}

// TrainingSet is the labeled population the model is fitted on.
type TrainingSet struct {
	AttrColumns []string
	Rows        []TrainingRow
}

// ScoringSet is the unlabeled population: joined customers absent from the
// campaign sample. Always disjoint from the training set.
type ScoringSet struct {
	AttrColumns []string
	Rows        []JoinedCustomerRow
}

// ScoredResult is one customer with the model's predicted response
// probability, on the response scale.
type ScoredResult struct {
	CustomerID  string
	Probability float64
}
