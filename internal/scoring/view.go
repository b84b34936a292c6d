package scoring

import (
	"errors"
	"fmt"
	"strings"

	"scorecard-insights-go/internal/types"
)

// ErrUnsupportedSchema is matched by errors.Is on any rendering failure caused
// by an unrecognised score_structure.
var ErrUnsupportedSchema = errors.New("unsupported schema structure")

type UnsupportedSchemaError struct {
	Structure types.ScoreStructure
}

func (e *UnsupportedSchemaError) Error() string {
	return fmt.Sprintf("unsupported schema structure %q", string(e.Structure))
}

func (e *UnsupportedSchemaError) Is(target error) bool { return target == ErrUnsupportedSchema }

// Band is the colour class for a 0-100 percentage.
type Band string

const (
	BandGood    Band = "good"
	BandWarning Band = "warning"
	BandBad     Band = "bad"
)

// BandFor applies the percentage banding. It is independent of ClassifyStatus.
func BandFor(percentage float64) Band {
	switch {
	case percentage >= 80:
		return BandGood
	case percentage >= 60:
		return BandWarning
	default:
		return BandBad
	}
}

// SubscoreMax is the fixed per-subscore maximum for subscore schemas.
func SubscoreMax(name string) float64 {
	switch name {
	case "accuracy":
		return 50
	case "qa_handling":
		return 30
	default:
		return 20
	}
}

type Total struct {
	Value float64 `json:"value"`
	Max   float64 `json:"max"`
}

type SubMetric struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Value      float64 `json:"value"`
	Max        float64 `json:"max"`
	Percentage float64 `json:"percentage"`
	Band       Band    `json:"band"`
}

// ScoreView is a schema-independent rendering of one analysis result.
type ScoreView struct {
	ProductName string               `json:"product_name"`
	Structure   types.ScoreStructure `json:"structure"`
	Title       string               `json:"title"`
	Total       Total                `json:"total"`
	Unit        string               `json:"unit,omitempty"`
	Metrics     []SubMetric          `json:"metrics"`
}

// BuildScoreView renders an analysis according to the product's schema. It
// branches only on schema.ScoreStructure and never guesses for unknown values.
func BuildScoreView(a types.Analysis, schema types.SchemaDefinition, productName string) (ScoreView, error) {
	switch schema.ScoreStructure {
	case types.StructureMultiDimension:
		return dimensionView(a, schema, productName), nil
	case types.StructureSubscore:
		return subscoreView(a, schema, productName), nil
	default:
		return ScoreView{}, &UnsupportedSchemaError{Structure: schema.ScoreStructure}
	}
}

func dimensionView(a types.Analysis, schema types.SchemaDefinition, productName string) ScoreView {
	scaleMax := schema.ScaleMax()
	// A declared per-dimension scale of 5 means the total is reported out of 100.
	totalMax := scaleMax
	if scaleMax == 5 {
		totalMax = 100
	}

	total := a.Legacy.TotalScore
	if a.Dimension != nil && a.Dimension.OverallScore != 0 {
		total = a.Dimension.OverallScore
	}

	v := ScoreView{
		ProductName: productName,
		Structure:   schema.ScoreStructure,
		Title:       productName + " - Performance Analysis",
		Total:       Total{Value: total, Max: totalMax},
		Metrics:     make([]SubMetric, 0, len(schema.Dimensions)),
	}
	for _, name := range schema.Dimensions {
		var value float64
		if r, ok := a.Dimension.Rating(name); ok && r.Score != 0 {
			value = float64(r.Score)
		} else {
			value = a.Legacy.Scores[name]
		}
		v.Metrics = append(v.Metrics, metric(name, value, scaleMax))
	}
	return v
}

func subscoreView(a types.Analysis, schema types.SchemaDefinition, productName string) ScoreView {
	total := a.Legacy.TotalScore
	if a.Subscore != nil && a.Subscore.Total != 0 {
		total = a.Subscore.Total
	}

	v := ScoreView{
		ProductName: productName,
		Structure:   schema.ScoreStructure,
		Title:       productName + " - Compliance Analysis",
		Total:       Total{Value: total, Max: 100},
		Unit:        "%",
		Metrics:     make([]SubMetric, 0, len(schema.Subscores)),
	}
	for _, name := range schema.Subscores {
		var value float64
		if a.Subscore != nil && a.Subscore.Subscores[name] != 0 {
			value = a.Subscore.Subscores[name]
		} else {
			value = a.Legacy.Subscores[name]
		}
		v.Metrics = append(v.Metrics, metric(name, value, SubscoreMax(name)))
	}
	return v
}

func metric(name string, value, max float64) SubMetric {
	pct := 0.0
	if max != 0 {
		pct = value / max * 100
	}
	return SubMetric{
		Key:        name,
		Label:      Label(name),
		Value:      value,
		Max:        max,
		Percentage: pct,
		Band:       BandFor(pct),
	}
}

// Label turns a snake_case key into a display label.
func Label(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "_", " "))
}
