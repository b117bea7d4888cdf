package logit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailscope/campaign-response/pkg/model"
)

func trainingRow(id string, txns int64, spend float64, respond float64, attrs map[string]string) model.TrainingRow {
	return model.TrainingRow{
		JoinedCustomerRow: model.JoinedCustomerRow{ID: id, Txns: txns, Spend: spend, Attrs: attrs},
		Respond:           respond,
	}
}

func TestFitEncoder_TermsAndTyping(t *testing.T) {
	set := model.TrainingSet{
		AttrColumns: []string{"age", "region"},
		Rows: []model.TrainingRow{
			trainingRow("C1", 1, 10, 1, map[string]string{"age": "25", "region": "north"}),
			trainingRow("C2", 2, 20, 0, map[string]string{"age": "40", "region": "south"}),
			trainingRow("C3", 3, 30, 1, map[string]string{"age": "31", "region": "west"}),
		},
	}

	enc, err := FitEncoder(set)
	require.NoError(t, err)

	// age parses as numeric; region is dummy-coded with "north" (first
	// sorted level) as the reference.
	assert.Equal(t, []string{
		"(Intercept)", "txns", "spend", "age", "region=south", "region=west",
	}, enc.Terms())

	// The customer identifier is never a model term.
	assert.NotContains(t, enc.Terms(), model.IDColumn)

	x, err := enc.Encode(set.Rows[1].JoinedCustomerRow)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 20, 40, 1, 0}, x)

	// Reference level encodes to all-zero dummies.
	x, err = enc.Encode(set.Rows[0].JoinedCustomerRow)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 10, 25, 0, 0}, x)
}

func TestFitEncoder_ZeroVariance(t *testing.T) {
	tests := []struct {
		name string
		rows []model.TrainingRow
	}{
		{
			name: "constant txns",
			rows: []model.TrainingRow{
				trainingRow("C1", 2, 10, 1, map[string]string{"region": "north"}),
				trainingRow("C2", 2, 20, 0, map[string]string{"region": "south"}),
			},
		},
		{
			name: "constant spend",
			rows: []model.TrainingRow{
				trainingRow("C1", 1, 10, 1, map[string]string{"region": "north"}),
				trainingRow("C2", 2, 10, 0, map[string]string{"region": "south"}),
			},
		},
		{
			name: "single-level categorical attribute",
			rows: []model.TrainingRow{
				trainingRow("C1", 1, 10, 1, map[string]string{"region": "north"}),
				trainingRow("C2", 2, 20, 0, map[string]string{"region": "north"}),
			},
		},
		{
			name: "constant numeric attribute",
			rows: []model.TrainingRow{
				trainingRow("C1", 1, 10, 1, map[string]string{"region": "42"}),
				trainingRow("C2", 2, 20, 0, map[string]string{"region": "42"}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := model.TrainingSet{AttrColumns: []string{"region"}, Rows: tt.rows}
			_, err := FitEncoder(set)
			assert.ErrorIs(t, err, ErrZeroVariance)
		})
	}
}

func TestFitEncoder_EmptyValueMakesColumnCategorical(t *testing.T) {
	set := model.TrainingSet{
		AttrColumns: []string{"income"},
		Rows: []model.TrainingRow{
			trainingRow("C1", 1, 10, 1, map[string]string{"income": "50000"}),
			trainingRow("C2", 2, 20, 0, map[string]string{"income": ""}),
			trainingRow("C3", 3, 30, 1, map[string]string{"income": "62000"}),
		},
	}

	enc, err := FitEncoder(set)
	require.NoError(t, err)

	// An empty cell (a null in the source) does not parse as a number, so
	// the whole column is categorical and "" is an ordinary level. Sorted
	// levels put "" first, making it the reference.
	assert.Equal(t, []string{
		"(Intercept)", "txns", "spend", "income=50000", "income=62000",
	}, enc.Terms())

	x, err := enc.Encode(set.Rows[1].JoinedCustomerRow)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 20, 0, 0}, x)
}

func TestEncode_UnseenLevel(t *testing.T) {
	set := model.TrainingSet{
		AttrColumns: []string{"region"},
		Rows: []model.TrainingRow{
			trainingRow("C1", 1, 10, 1, map[string]string{"region": "north"}),
			trainingRow("C2", 2, 20, 0, map[string]string{"region": "south"}),
		},
	}
	enc, err := FitEncoder(set)
	require.NoError(t, err)

	_, err = enc.Encode(model.JoinedCustomerRow{
		ID: "C9", Txns: 1, Spend: 5, Attrs: map[string]string{"region": "east"},
	})
	assert.ErrorIs(t, err, ErrUnseenLevel)
}

func TestEncode_MissingAttribute(t *testing.T) {
	set := model.TrainingSet{
		AttrColumns: []string{"region"},
		Rows: []model.TrainingRow{
			trainingRow("C1", 1, 10, 1, map[string]string{"region": "north"}),
			trainingRow("C2", 2, 20, 0, map[string]string{"region": "south"}),
		},
	}
	enc, err := FitEncoder(set)
	require.NoError(t, err)

	_, err = enc.Encode(model.JoinedCustomerRow{
		ID: "C9", Txns: 1, Spend: 5, Attrs: map[string]string{},
	})
	assert.ErrorIs(t, err, ErrMissingAttr)
}
