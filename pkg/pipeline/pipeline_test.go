package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailscope/campaign-response/pkg/model"
)

// memorySource serves fixture datasets from memory.
type memorySource struct {
	transactions []model.TransactionRecord
	demographics model.DemographicsTable
	sample       []model.CampaignSampleRecord

	transactionsErr error
	demographicsErr error
	sampleErr       error
}

func (m *memorySource) Transactions(ctx context.Context) ([]model.TransactionRecord, error) {
	return m.transactions, m.transactionsErr
}

func (m *memorySource) Demographics(ctx context.Context) (model.DemographicsTable, error) {
	return m.demographics, m.demographicsErr
}

func (m *memorySource) CampaignSample(ctx context.Context) ([]model.CampaignSampleRecord, error) {
	return m.sample, m.sampleErr
}

func (m *memorySource) Close() error { return nil }

// fixtureSource builds a small population: customers C01..C08 form the
// campaign sample, C09..C12 are the holdout, C99 has transactions but no
// demographics, and C98 has demographics but no transactions. The sampled
// customers come in pairs with identical behavior and opposite labels, so
// the fitted model is exactly the base rate.
func fixtureSource() *memorySource {
	type pattern struct {
		txns    int64
		spend   float64
		channel string
	}
	patterns := map[string]pattern{
		"C01": {1, 10, "catalog"},
		"C02": {1, 10, "catalog"},
		"C03": {2, 50, "web"},
		"C04": {2, 50, "web"},
		"C05": {3, 30, "catalog"},
		"C06": {3, 30, "catalog"},
		"C07": {4, 80, "web"},
		"C08": {4, 80, "web"},
		"C09": {1, 10, "catalog"},
		"C10": {2, 50, "web"},
		"C11": {3, 30, "catalog"},
		"C12": {4, 80, "web"},
		"C99": {1, 5, ""},
	}

	src := &memorySource{}
	for _, id := range []string{"C01", "C02", "C03", "C04", "C05", "C06", "C07", "C08", "C09", "C10", "C11", "C12", "C99"} {
		p := patterns[id]
		for day := int64(1); day <= p.txns; day++ {
			src.transactions = append(src.transactions, model.TransactionRecord{
				CustomerID:    id,
				DayNum:        day,
				ExtendedPrice: p.spend / float64(p.txns),
			})
		}
	}

	src.demographics = model.DemographicsTable{AttrColumns: []string{"channel"}}
	for _, id := range []string{"C01", "C02", "C03", "C04", "C05", "C06", "C07", "C08", "C09", "C10", "C11", "C12"} {
		src.demographics.Records = append(src.demographics.Records, model.DemographicRecord{
			ID:    id,
			Attrs: map[string]string{"channel": patterns[id].channel},
		})
	}
	src.demographics.Records = append(src.demographics.Records, model.DemographicRecord{
		ID:    "C98",
		Attrs: map[string]string{"channel": "catalog"},
	})

	for i, id := range []string{"C01", "C02", "C03", "C04", "C05", "C06", "C07", "C08"} {
		src.sample = append(src.sample, model.CampaignSampleRecord{
			CustomerID: id,
			RespondYes: i%2 == 0,
		})
	}

	return src
}

func TestRun_EndToEnd(t *testing.T) {
	src := fixtureSource()

	result, err := NewRunner(src).Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 8, result.TrainingRows)
	assert.Equal(t, 4, result.ScoringRows)

	// Half of each behavior pattern responded, so every coefficient except
	// the intercept is zero and the intercept is the base-rate logit, here
	// also zero.
	terms := make([]string, 0, len(result.Coefficients))
	for _, c := range result.Coefficients {
		terms = append(terms, c.Term)
		assert.InDelta(t, 0.0, c.Estimate, 1e-9)
	}
	assert.Equal(t, []string{"(Intercept)", "txns", "spend", "channel=web"}, terms)

	// Every holdout customer scores the base rate; ranking ties keep the
	// holdout's original order. C99 and C98 never survive the join.
	require.Len(t, result.Ranked, 4)
	for i, want := range []string{"C09", "C10", "C11", "C12"} {
		assert.Equal(t, want, result.Ranked[i].CustomerID)
		assert.InDelta(t, 0.5, result.Ranked[i].Probability, 1e-12)
	}
}

func TestRun_SingleClassSampleIsModelFitError(t *testing.T) {
	src := fixtureSource()
	for i := range src.sample {
		src.sample[i].RespondYes = true
	}

	_, err := NewRunner(src).Run(context.Background())
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageFit, stageErr.Stage)
	assert.Equal(t, ErrorCategoryModelFit, stageErr.Category)
}

func TestRun_LoadFailureIsInputError(t *testing.T) {
	src := fixtureSource()
	src.demographicsErr = errors.New("table not found")

	_, err := NewRunner(src).Run(context.Background())
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageLoad, stageErr.Stage)
	assert.Equal(t, ErrorCategoryInput, stageErr.Category)
}

func TestRun_DuplicateSampleCustomerIsJoinKeyError(t *testing.T) {
	src := fixtureSource()
	src.sample = append(src.sample, model.CampaignSampleRecord{CustomerID: "C01", RespondYes: false})

	_, err := NewRunner(src).Run(context.Background())
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageSplit, stageErr.Stage)
	assert.Equal(t, ErrorCategoryJoinKey, stageErr.Category)
}
