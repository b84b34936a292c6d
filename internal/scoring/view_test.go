package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorecard-insights-go/internal/types"
)

func TestBuildScoreView_MultiDimension(t *testing.T) {
	schema := types.SchemaDefinition{
		ScoreStructure: types.StructureMultiDimension,
		Dimensions:     []string{"rapport", "product_knowledge", "closing"},
		Scale:          [2]float64{0, 5},
	}
	a := decode(t, `{
		"overall_rating": {"score_0_to_100": 78},
		"dimension_ratings": {"rapport": {"score_0_to_5": 4}, "closing": {"score_0_to_5": 0}},
		"scores": {"closing": 2.5, "product_knowledge": 3}
	}`)

	v, err := BuildScoreView(a, schema, "Castrol Activ")
	require.NoError(t, err)

	assert.Equal(t, "Castrol Activ", v.ProductName)
	assert.Equal(t, "Castrol Activ - Performance Analysis", v.Title)
	assert.Equal(t, Total{Value: 78, Max: 100}, v.Total)
	require.Len(t, v.Metrics, 3)

	assert.Equal(t, SubMetric{Key: "rapport", Label: "RAPPORT", Value: 4, Max: 5, Percentage: 80, Band: BandGood}, v.Metrics[0])
	assert.Equal(t, "PRODUCT KNOWLEDGE", v.Metrics[1].Label)
	assert.Equal(t, 3.0, v.Metrics[1].Value)
	assert.Equal(t, BandWarning, v.Metrics[1].Band)
	assert.Equal(t, 2.5, v.Metrics[2].Value)
	assert.Equal(t, BandBad, v.Metrics[2].Band)
}

func TestBuildScoreView_TotalMaxQuirk(t *testing.T) {
	tests := []struct {
		scale   [2]float64
		wantMax float64
	}{
		{[2]float64{0, 5}, 100},
		{[2]float64{0, 10}, 10},
		{[2]float64{1, 100}, 100},
	}
	for _, tt := range tests {
		schema := types.SchemaDefinition{ScoreStructure: types.StructureMultiDimension, Scale: tt.scale}
		v, err := BuildScoreView(types.Analysis{}, schema, "p")
		require.NoError(t, err)
		assert.Equal(t, tt.wantMax, v.Total.Max, "scale %v", tt.scale)
	}
}

func TestBuildScoreView_MultiDimensionMissingValues(t *testing.T) {
	schema := types.SchemaDefinition{
		ScoreStructure: types.StructureMultiDimension,
		Dimensions:     []string{"rapport"},
		Scale:          [2]float64{0, 0},
	}
	v, err := BuildScoreView(types.Analysis{}, schema, "p")
	require.NoError(t, err)
	require.Len(t, v.Metrics, 1)
	assert.Equal(t, 0.0, v.Metrics[0].Value)
	assert.Equal(t, 0.0, v.Metrics[0].Percentage)
	assert.Equal(t, BandBad, v.Metrics[0].Band)
	assert.Equal(t, 0.0, v.Total.Value)
}

func TestBuildScoreView_Subscore(t *testing.T) {
	schema := types.SchemaDefinition{
		ScoreStructure: types.StructureSubscore,
		Subscores:      []string{"accuracy", "qa_handling", "disclosure"},
		Scale:          [2]float64{0, 100},
	}
	a := decode(t, `{
		"score": {"total": 71, "subscores": {"accuracy": 45, "qa_handling": 0}},
		"subscores": {"qa_handling": 15, "disclosure": 11}
	}`)

	v, err := BuildScoreView(a, schema, "SBI Card")
	require.NoError(t, err)

	assert.Equal(t, "SBI Card - Compliance Analysis", v.Title)
	assert.Equal(t, Total{Value: 71, Max: 100}, v.Total)
	assert.Equal(t, "%", v.Unit)
	require.Len(t, v.Metrics, 3)

	assert.Equal(t, 50.0, v.Metrics[0].Max)
	assert.Equal(t, 90.0, v.Metrics[0].Percentage)
	assert.Equal(t, BandGood, v.Metrics[0].Band)

	assert.Equal(t, 30.0, v.Metrics[1].Max)
	assert.Equal(t, 15.0, v.Metrics[1].Value)
	assert.Equal(t, 50.0, v.Metrics[1].Percentage)

	assert.Equal(t, 20.0, v.Metrics[2].Max)
	assert.Equal(t, 11.0, v.Metrics[2].Value)
	assert.InDelta(t, 55.0, v.Metrics[2].Percentage, 1e-9)
}

func TestBuildScoreView_SubscoreLegacyTotal(t *testing.T) {
	schema := types.SchemaDefinition{ScoreStructure: types.StructureSubscore}
	v, err := BuildScoreView(decode(t, `{"total_score":33}`), schema, "p")
	require.NoError(t, err)
	assert.Equal(t, 33.0, v.Total.Value)
}

func TestBuildScoreView_Unsupported(t *testing.T) {
	for _, s := range []types.ScoreStructure{"", "radar", "MULTI_DIMENSION"} {
		_, err := BuildScoreView(types.Analysis{}, types.SchemaDefinition{ScoreStructure: s}, "p")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsupportedSchema))

		var ue *UnsupportedSchemaError
		require.True(t, errors.As(err, &ue))
		assert.Equal(t, s, ue.Structure)
	}
}

func TestSubscoreMax(t *testing.T) {
	assert.Equal(t, 50.0, SubscoreMax("accuracy"))
	assert.Equal(t, 30.0, SubscoreMax("qa_handling"))
	assert.Equal(t, 20.0, SubscoreMax("compliance"))
	assert.Equal(t, 20.0, SubscoreMax("Accuracy"))
}

func TestBandFor(t *testing.T) {
	tests := map[float64]Band{
		100:   BandGood,
		80:    BandGood,
		79.99: BandWarning,
		60:    BandWarning,
		59.99: BandBad,
		0:     BandBad,
		-5:    BandBad,
	}
	for pct, want := range tests {
		assert.Equal(t, want, BandFor(pct), "pct %v", pct)
	}
}
