package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"scorecard-insights-go/internal/logger"
	"scorecard-insights-go/internal/types"
)

const conversationColumns = `c.id, c.product_id, c.executive_id, COALESCE(c.transcript, ''), c.conversation_timestamp,
	c.analysis_result, c.total_score, c.status, c.metadata, c.created_at, COALESCE(u.email, '')`

type ConversationStore struct {
	db  Querier
	log *logger.Logger
}

func NewConversationStore(db Querier, log *logger.Logger) *ConversationStore {
	return &ConversationStore{db: db, log: log.Component("conversation-store")}
}

// Fetch returns conversations newest first, optionally restricted to one
// product and/or one executive. Rows whose analysis payload cannot be decoded
// are kept with an empty analysis.
func (s *ConversationStore) Fetch(ctx context.Context, productID, executiveID string) ([]types.Conversation, error) {
	var (
		where []string
		args  []any
	)
	if productID != "" {
		args = append(args, productID)
		where = append(where, fmt.Sprintf("c.product_id = $%d", len(args)))
	}
	if executiveID != "" {
		args = append(args, executiveID)
		where = append(where, fmt.Sprintf("c.executive_id = $%d", len(args)))
	}

	q := "SELECT " + conversationColumns + " FROM conversations c LEFT JOIN user_profiles u ON u.id = c.executive_id"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY c.conversation_timestamp DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	convs := []types.Conversation{}
	for rows.Next() {
		c, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return convs, nil
}

func (s *ConversationStore) scan(rows *sql.Rows) (types.Conversation, error) {
	var (
		c        types.Conversation
		analysis []byte
		metadata []byte
		score    sql.NullFloat64
		status   sql.NullString
	)
	err := rows.Scan(&c.ID, &c.ProductID, &c.ExecutiveID, &c.Transcript, &c.Timestamp,
		&analysis, &score, &status, &metadata, &c.CreatedAt, &c.ExecutiveEmail)
	if err != nil {
		return c, fmt.Errorf("scan conversation: %w", err)
	}
	if score.Valid {
		c.TotalScore = &score.Float64
	}
	if status.Valid {
		c.Status = &status.String
	}

	a, err := types.DecodeAnalysis(analysis)
	if err != nil {
		s.log.WithError(err).WithField("conversation_id", c.ID).Warn("undecodable analysis_result, treating as empty")
		a = types.Analysis{Kind: types.AnalysisEmpty}
	}
	c.Analysis = a

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			s.log.WithError(err).WithField("conversation_id", c.ID).Warn("undecodable metadata")
		}
	}
	return c, nil
}

const insertConversation = `INSERT INTO conversations
	(id, product_id, executive_id, transcript, conversation_timestamp, analysis_result, total_score, status, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		transcript = EXCLUDED.transcript,
		analysis_result = EXCLUDED.analysis_result,
		total_score = EXCLUDED.total_score,
		status = EXCLUDED.status,
		metadata = EXCLUDED.metadata`

// Upsert writes one conversation, replacing the evaluation of an existing id.
func (s *ConversationStore) Upsert(ctx context.Context, c types.Conversation) error {
	// Only decoded payloads carry their original document; anything else is stored as NULL.
	analysis := jsonParam(c.Analysis.Raw())
	var metadata any
	if c.Metadata != nil {
		b, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadata = jsonParam(b)
	}
	var score sql.NullFloat64
	if c.TotalScore != nil {
		score = sql.NullFloat64{Float64: *c.TotalScore, Valid: true}
	}
	var status sql.NullString
	if c.Status != nil {
		status = sql.NullString{String: *c.Status, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, insertConversation,
		c.ID, c.ProductID, c.ExecutiveID, c.Transcript, c.Timestamp, analysis, score, status, metadata)
	if err != nil {
		return fmt.Errorf("upsert conversation %s: %w", c.ID, err)
	}
	return nil
}

// jsonParam passes JSON as text; lib/pq would otherwise send []byte as bytea.
func jsonParam(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
