package logit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailscope/campaign-response/pkg/model"
)

// balancedPairs builds a training set where every covariate pattern appears
// twice with opposite labels. The maximum-likelihood fit is exactly the null
// model (all coefficients zero, every prediction 0.5), which makes the
// outcome checkable without tolerating solver drift.
func balancedPairs() model.TrainingSet {
	patterns := []struct {
		txns  int64
		spend float64
	}{
		{2, 30}, {1, 50}, {3, 90}, {4, 10},
	}

	var set model.TrainingSet
	i := 0
	for _, pat := range patterns {
		for _, label := range []float64{1, 0} {
			i++
			set.Rows = append(set.Rows, trainingRow(
				idFor(i), pat.txns, pat.spend, label, map[string]string{},
			))
		}
	}
	return set
}

func idFor(i int) string {
	return string(rune('A'+i-1)) + "1"
}

func TestFit_BalancedPairsYieldNullModel(t *testing.T) {
	m, err := Fit(balancedPairs())
	require.NoError(t, err)

	coefs := m.Coefficients()
	require.Len(t, coefs, 3)
	for _, c := range coefs {
		assert.InDelta(t, 0, c.Estimate, 1e-9, "term %s", c.Term)
		assert.Greater(t, c.StdErr, 0.0, "term %s", c.Term)
	}

	p, err := m.PredictProba(model.JoinedCustomerRow{
		ID: "Z1", Txns: 5, Spend: 40, Attrs: map[string]string{},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-9)
}

func TestFit_PredictWithStdErr(t *testing.T) {
	m, err := Fit(balancedPairs())
	require.NoError(t, err)

	p, se, err := m.PredictWithStdErr(model.JoinedCustomerRow{
		ID: "Z1", Txns: 2, Spend: 30, Attrs: map[string]string{},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-9)
	assert.Greater(t, se, 0.0)
}

func TestFit_LabelValidation(t *testing.T) {
	t.Run("label outside 0/1", func(t *testing.T) {
		set := balancedPairs()
		set.Rows[0].Respond = 2
		_, err := Fit(set)
		assert.ErrorIs(t, err, ErrBadLabel)
	})

	t.Run("single-class label", func(t *testing.T) {
		set := balancedPairs()
		for i := range set.Rows {
			set.Rows[i].Respond = 1
		}
		_, err := Fit(set)
		assert.ErrorIs(t, err, ErrDegenerateData)
	})
}

func TestFit_CollinearPredictors(t *testing.T) {
	// spend is an exact multiple of txns: the information matrix is rank
	// deficient and the fit must abort rather than return garbage.
	var set model.TrainingSet
	for i, label := range []float64{1, 0, 1, 0, 0, 1} {
		txns := int64(i + 1)
		set.Rows = append(set.Rows, trainingRow(
			idFor(i+1), txns, float64(txns)*10, label, map[string]string{},
		))
	}

	_, err := Fit(set)
	assert.ErrorIs(t, err, ErrSingular)
}

func TestFit_TooFewRows(t *testing.T) {
	set := model.TrainingSet{
		Rows: []model.TrainingRow{
			trainingRow("C1", 1, 10, 1, map[string]string{}),
			trainingRow("C2", 2, 20, 0, map[string]string{}),
			trainingRow("C3", 3, 30, 1, map[string]string{}),
		},
	}
	_, err := Fit(set)
	assert.ErrorIs(t, err, ErrDegenerateData)
}
