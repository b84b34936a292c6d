package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AnalysisKind tags which historical payload schema a record was written in.
type AnalysisKind string

const (
	AnalysisEmpty     AnalysisKind = "empty"
	AnalysisDimension AnalysisKind = "dimension"
	AnalysisSubscore  AnalysisKind = "subscore"
	AnalysisLegacy    AnalysisKind = "legacy"
)

// RawAnalysis mirrors the analysis_result column as written by the ingestion
// path. It is only used at the decode boundary; everything downstream works on
// Analysis.
type RawAnalysis struct {
	// multi_dimension payloads
	OverallRating    *OverallRating             `json:"overall_rating,omitempty"`
	DimensionRatings map[string]DimensionRating `json:"dimension_ratings,omitempty"`
	WhatWentWell     []string                   `json:"what_went_well,omitempty"`
	Compliance       *Compliance                `json:"compliance,omitempty"`

	// subscore payloads
	Product             string      `json:"product,omitempty"`
	Score               *ScoreBlock `json:"score,omitempty"`
	Highlights          []string    `json:"highlights,omitempty"`
	QA                  []QAItem    `json:"qa,omitempty"`
	Coach               []string    `json:"coach,omitempty"`
	NextMeetingCoaching []string    `json:"next_meeting_coaching,omitempty"`

	// pre-migration flat fields
	TotalScore      *Number            `json:"total_score,omitempty"`
	Scores          map[string]float64 `json:"scores,omitempty"`
	Subscores       map[string]float64 `json:"subscores,omitempty"`
	Status          string             `json:"status,omitempty"`
	EvidenceQuotes  []EvidenceQuote    `json:"evidence_quotes,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
	Violations      []string           `json:"violations,omitempty"`
}

type OverallRating struct {
	Score            Number `json:"score_0_to_100"`
	DealReadiness    string `json:"deal_readiness,omitempty"`
	ExecutiveSummary string `json:"executive_summary,omitempty"`
}

type DimensionRating struct {
	Name           string   `json:"-"`
	Score          Number   `json:"score_0_to_5"`
	EvidenceQuotes []string `json:"evidence_quotes,omitempty"`
	Rationale      string   `json:"rationale,omitempty"`
}

type Compliance struct {
	Status           string `json:"status"`
	OverallRiskLevel string `json:"overall_risk_level,omitempty"`
}

type ScoreBlock struct {
	Total     Number             `json:"total"`
	Subscores map[string]float64 `json:"subscores,omitempty"`
	Grade     string             `json:"grade,omitempty"`
}

type QAItem struct {
	Question      Text `json:"question"`
	AnswerQuality Text `json:"answer_quality"`
}

type EvidenceQuote struct {
	Quote      string  `json:"quote"`
	Timestamp  string  `json:"timestamp,omitempty"`
	Speaker    string  `json:"speaker,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Text accepts a JSON string, number or bool and keeps its textual form.
// Model-written payloads are not consistent about quoting.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*t = Text(strconv.FormatFloat(x, 'f', -1, 64))
	default:
		*t = Text(fmt.Sprint(x))
	}
	return nil
}

// Number accepts a JSON number or a quoted number. Null, empty and
// unparseable strings read as 0, the same as an absent score.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			*n = 0
			return nil
		}
		*n = Number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("score: %w", err)
	}
	*n = Number(v)
	return nil
}

// DimensionAnalysis is the multi_dimension payload. Ratings keep the key order
// of the original payload.
type DimensionAnalysis struct {
	OverallScore     float64           `json:"overall_score"`
	DealReadiness    string            `json:"deal_readiness,omitempty"`
	ExecutiveSummary string            `json:"executive_summary,omitempty"`
	Ratings          []DimensionRating `json:"ratings,omitempty"`
	ComplianceStatus string            `json:"compliance_status,omitempty"`
	WhatWentWell     []string          `json:"what_went_well,omitempty"`
}

func (d *DimensionAnalysis) Rating(name string) (DimensionRating, bool) {
	if d == nil {
		return DimensionRating{}, false
	}
	for _, r := range d.Ratings {
		if r.Name == name {
			return r, true
		}
	}
	return DimensionRating{}, false
}

type SubscoreAnalysis struct {
	Total      float64            `json:"total"`
	Subscores  map[string]float64 `json:"subscores,omitempty"`
	Grade      string             `json:"grade,omitempty"`
	QA         []QAItem           `json:"qa,omitempty"`
	Coach      []string           `json:"coach,omitempty"`
	Highlights []string           `json:"highlights,omitempty"`
}

type LegacyFields struct {
	TotalScore      float64            `json:"total_score,omitempty"`
	Scores          map[string]float64 `json:"scores,omitempty"`
	Subscores       map[string]float64 `json:"subscores,omitempty"`
	Status          string             `json:"status,omitempty"`
	EvidenceQuotes  []EvidenceQuote    `json:"evidence_quotes,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
}

// Analysis is the decoded analysis_result. Kind names the primary variant;
// every tier that was present in the payload is kept so fallback chains can
// walk them in order.
type Analysis struct {
	Kind      AnalysisKind       `json:"kind"`
	Dimension *DimensionAnalysis `json:"dimension,omitempty"`
	Subscore  *SubscoreAnalysis  `json:"subscore,omitempty"`
	Legacy    LegacyFields       `json:"legacy"`

	raw json.RawMessage
}

// DecodeAnalysis inspects an analysis_result document once and produces the
// tagged variant. Empty and null documents decode to AnalysisEmpty.
func DecodeAnalysis(data []byte) (Analysis, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Analysis{Kind: AnalysisEmpty}, nil
	}
	var r RawAnalysis
	if err := json.Unmarshal(data, &r); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis_result: %w", err)
	}
	var shape struct {
		DimensionRatings json.RawMessage `json:"dimension_ratings"`
	}
	_ = json.Unmarshal(data, &shape)

	a := build(r, objectKeys(shape.DimensionRatings))
	a.raw = append(json.RawMessage(nil), data...)
	return a, nil
}

func build(r RawAnalysis, order []string) Analysis {
	var a Analysis

	if r.OverallRating != nil || r.DimensionRatings != nil || r.Compliance != nil || r.WhatWentWell != nil {
		d := &DimensionAnalysis{WhatWentWell: r.WhatWentWell}
		if r.OverallRating != nil {
			d.OverallScore = float64(r.OverallRating.Score)
			d.DealReadiness = r.OverallRating.DealReadiness
			d.ExecutiveSummary = r.OverallRating.ExecutiveSummary
		}
		if r.Compliance != nil {
			d.ComplianceStatus = r.Compliance.Status
		}
		seen := make(map[string]bool, len(order))
		for _, name := range order {
			if rating, ok := r.DimensionRatings[name]; ok && !seen[name] {
				rating.Name = name
				d.Ratings = append(d.Ratings, rating)
				seen[name] = true
			}
		}
		a.Dimension = d
	}

	if r.Score != nil || r.QA != nil || r.Coach != nil {
		s := &SubscoreAnalysis{QA: r.QA, Coach: r.Coach, Highlights: r.Highlights}
		if r.Score != nil {
			s.Total = float64(r.Score.Total)
			s.Subscores = r.Score.Subscores
			s.Grade = r.Score.Grade
		}
		a.Subscore = s
	}

	a.Legacy = LegacyFields{
		Scores:          r.Scores,
		Subscores:       r.Subscores,
		Status:          r.Status,
		EvidenceQuotes:  r.EvidenceQuotes,
		Recommendations: r.Recommendations,
	}
	if r.TotalScore != nil {
		a.Legacy.TotalScore = float64(*r.TotalScore)
	}

	switch {
	case a.Dimension != nil:
		a.Kind = AnalysisDimension
	case a.Subscore != nil:
		a.Kind = AnalysisSubscore
	case a.Legacy.hasData():
		a.Kind = AnalysisLegacy
	default:
		a.Kind = AnalysisEmpty
	}
	return a
}

func (l LegacyFields) hasData() bool {
	return l.TotalScore != 0 || l.Scores != nil || l.Subscores != nil || l.Status != "" ||
		l.EvidenceQuotes != nil || l.Recommendations != nil
}

// Raw returns the original document when the analysis was decoded from JSON.
func (a Analysis) Raw() json.RawMessage { return a.raw }

// MarshalJSON writes back the original payload so API consumers see the
// stored document, not the internal variant.
func (a Analysis) MarshalJSON() ([]byte, error) {
	if len(a.raw) > 0 {
		return a.raw, nil
	}
	type plain Analysis
	return json.Marshal(plain(a))
}

func (a *Analysis) UnmarshalJSON(b []byte) error {
	decoded, err := DecodeAnalysis(b)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// objectKeys lists the keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
		keys = append(keys, key)
	}
	return keys
}
