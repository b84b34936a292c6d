package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"scorecard-insights-go/internal/logger"
	"scorecard-insights-go/internal/store"
	"scorecard-insights-go/internal/types"
)

type ProfileGetter interface {
	Get(ctx context.Context, userID string) (types.UserProfile, error)
}

type Session struct {
	User types.UserProfile
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// Middleware authenticates the bearer token and loads the caller's profile.
// Browsers cannot set headers on websocket upgrades, so the access_token
// query parameter is accepted as well.
func Middleware(v *Verifier, profiles ProfileGetter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLog := log.WithRequest(r)

			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing access token")
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				reqLog.WithField("error", err.Error()).Warn("token rejected")
				writeError(w, http.StatusUnauthorized, "invalid access token")
				return
			}
			profile, err := profiles.Get(r.Context(), claims.Subject)
			if errors.Is(err, store.ErrProfileNotFound) {
				reqLog.WithField("user_id", claims.Subject).Warn("no profile for authenticated user")
				writeError(w, http.StatusForbidden, "user profile not found")
				return
			}
			if err != nil {
				reqLog.WithField("error", err.Error()).WithField("user_id", claims.Subject).Error("profile lookup failed")
				writeError(w, http.StatusInternalServerError, "user profile unavailable")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), Session{User: profile})))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
