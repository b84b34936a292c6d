package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"scorecard-insights-go/internal/types"
)

var ErrProfileNotFound = errors.New("user profile not found")

type ProfileStore struct {
	db Querier
}

func NewProfileStore(db Querier) *ProfileStore {
	return &ProfileStore{db: db}
}

const selectProfile = `SELECT id, email, role, COALESCE(domain, ''), COALESCE(supervisor_id::text, ''), created_at
	FROM user_profiles WHERE id = $1`

func (s *ProfileStore) Get(ctx context.Context, userID string) (types.UserProfile, error) {
	var p types.UserProfile
	err := s.db.QueryRowContext(ctx, selectProfile, userID).
		Scan(&p.ID, &p.Email, &p.Role, &p.Domain, &p.SupervisorID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.UserProfile{}, ErrProfileNotFound
	}
	if err != nil {
		return types.UserProfile{}, fmt.Errorf("query user profile: %w", err)
	}
	if !p.Role.Valid() {
		return types.UserProfile{}, fmt.Errorf("user profile %s has unknown role %q", p.ID, p.Role)
	}
	return p, nil
}
