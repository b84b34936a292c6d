package processor

import (
	"errors"
	"strings"
	"time"

	"scorecard-insights-go/internal/actionable"
	"scorecard-insights-go/internal/scoring"
	"scorecard-insights-go/internal/transcription"
	"scorecard-insights-go/internal/types"
)

// Card is everything the dashboard shows for one conversation.
type Card struct {
	ID             string                `json:"id"`
	ProductID      string                `json:"product_id"`
	ProductName    string                `json:"product_name"`
	ExecutiveID    string                `json:"executive_id"`
	ExecutiveEmail string                `json:"executive_email"`
	Timestamp      time.Time             `json:"conversation_timestamp"`
	Score          float64               `json:"score"`
	Status         string                `json:"status"`
	StatusClass    scoring.StatusClass   `json:"status_class"`
	Badge          string                `json:"badge,omitempty"`
	BadgeClass     scoring.StatusClass   `json:"badge_class,omitempty"`
	View           *scoring.ScoreView    `json:"view,omitempty"`
	ViewError      string                `json:"view_error,omitempty"`
	Highlights     actionable.Highlights `json:"highlights"`
	Transcript     []transcription.Line  `json:"transcript"`
	Speakers       []string              `json:"speakers,omitempty"`
	Metadata       map[string]any        `json:"metadata,omitempty"`
}

// BuildCard renders one conversation. Conversations whose product is not in
// the catalog are skipped (ok is false).
func BuildCard(c types.Conversation, catalog types.Catalog) (Card, bool) {
	p, ok := catalog.Lookup(c.ProductID)
	if !ok {
		return Card{}, false
	}

	status := scoring.ResolveStatus(c)
	card := Card{
		ID:             c.ID,
		ProductID:      c.ProductID,
		ProductName:    p.Name,
		ExecutiveID:    c.ExecutiveID,
		ExecutiveEmail: c.ExecutiveEmail,
		Timestamp:      c.Timestamp,
		Score:          scoring.ResolveTotalScore(c),
		Status:         status,
		StatusClass:    scoring.ClassifyStatus(status),
		Highlights:     actionable.ExtractHighlights(c.Analysis),
		Transcript:     transcription.Parse(c.Transcript),
		Metadata:       c.Metadata,
	}
	card.Speakers = transcription.Speakers(card.Transcript)
	if card.ExecutiveEmail == "" {
		card.ExecutiveEmail = "Unknown"
	}
	if badge := scoring.ComplianceBadge(c); badge != "" {
		card.Badge = strings.ToUpper(badge)
		card.BadgeClass = scoring.ClassifyStatus(badge)
	}

	view, err := scoring.BuildScoreView(c.Analysis, p.Schema, p.Name)
	switch {
	case err == nil:
		card.View = &view
	case errors.Is(err, scoring.ErrUnsupportedSchema):
		card.ViewError = "Unsupported schema structure"
	default:
		card.ViewError = err.Error()
	}
	return card, true
}

// BuildCards renders convs in order, dropping those with unknown products.
func BuildCards(convs []types.Conversation, catalog types.Catalog) []Card {
	cards := make([]Card, 0, len(convs))
	for _, c := range convs {
		if card, ok := BuildCard(c, catalog); ok {
			cards = append(cards, card)
		}
	}
	return cards
}
