package httpapi

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"scorecard-insights-go/internal/actionable"
	"scorecard-insights-go/internal/aggregator"
	"scorecard-insights-go/internal/auth"
	"scorecard-insights-go/internal/dataset"
	"scorecard-insights-go/internal/metrics"
	"scorecard-insights-go/internal/pipeline"
	"scorecard-insights-go/internal/processor"
	"scorecard-insights-go/internal/types"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// request is one authenticated dashboard query narrowed to what the caller may
// see.
type request struct {
	snap   pipeline.Snapshot
	user   types.UserProfile
	scope  auth.Scope
	filter aggregator.Filter
}

func (q request) conversations() []types.Conversation {
	return aggregator.Apply(q.snap.Conversations, q.filter.Predicates(q.snap.Catalog)...)
}

type snapshotMeta struct {
	State      pipeline.State `json:"state"`
	Generation uint64         `json:"generation"`
	FetchedAt  time.Time      `json:"fetched_at"`
}

func metaOf(snap pipeline.Snapshot) snapshotMeta {
	return snapshotMeta{State: snap.State, Generation: snap.Generation, FetchedAt: snap.FetchedAt}
}

// resolve loads the session, the current snapshot and the requested filters.
// It writes the error response itself and returns false when the request
// cannot be served.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (request, bool) {
	sess, ok := auth.SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return request{}, false
	}
	snap := s.snapshots.Snapshot()
	if !s.servable(w, r, snap) {
		return request{}, false
	}

	q := r.URL.Query()
	scope, err := auth.ScopeFor(sess.User, auth.Scope{
		ProductID:   q.Get("product_id"),
		ExecutiveID: q.Get("executive_id"),
		Domain:      q.Get("domain"),
	}, snap.Catalog)
	if err != nil {
		if errors.Is(err, auth.ErrForbidden) {
			writeError(w, http.StatusForbidden, err.Error())
			return request{}, false
		}
		writeError(w, http.StatusInternalServerError, "scope resolution failed")
		return request{}, false
	}

	rng, err := aggregator.ParseDateRange(q.Get("range"), q.Get("start"), q.Get("end"), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return request{}, false
	}

	return request{
		snap:  snap,
		user:  sess.User,
		scope: scope,
		filter: aggregator.Filter{
			ProductID:   scope.ProductID,
			ExecutiveID: scope.ExecutiveID,
			Domain:      scope.Domain,
			Range:       rng,
			Now:         s.now(),
		},
	}, true
}

// servable keeps a loading or failed snapshot from being mistaken for an
// empty result.
func (s *Server) servable(w http.ResponseWriter, r *http.Request, snap pipeline.Snapshot) bool {
	switch snap.State {
	case pipeline.StateReady:
		return true
	case pipeline.StateFailed:
		entry := s.log.WithRequest(r).WithField("generation", snap.Generation)
		if snap.Err != nil {
			entry = entry.WithField("error", snap.Err.Error())
		}
		entry.Warn("serving failed snapshot")
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"state": string(pipeline.StateFailed),
			"error": "failed to load conversations",
		})
	default:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"state": string(pipeline.StateLoading)})
	}
	return false
}

func (s *Server) productsHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	snap := s.snapshots.Snapshot()
	// the catalog outlives a failed conversation fetch
	if snap.Catalog.Len() == 0 && !s.servable(w, r, snap) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": auth.AccessibleProducts(sess.User, snap.Catalog.Products()),
	})
}

func (s *Server) domainsHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	domains := []string{}
	if sess.User.Role.IsAdmin() {
		snap := s.snapshots.Snapshot()
		if snap.Catalog.Len() == 0 && !s.servable(w, r, snap) {
			return
		}
		domains = append(domains, snap.Catalog.Domains()...)
	} else if sess.User.Domain != "" {
		domains = append(domains, sess.User.Domain)
	}
	writeJSON(w, http.StatusOK, map[string]any{"domains": domains})
}

func (s *Server) executivesHandler(w http.ResponseWriter, r *http.Request) {
	q, ok := s.resolve(w, r)
	if !ok {
		return
	}
	var execs []aggregator.ExecutiveRef
	if q.user.Role == types.RoleExecutive {
		execs = []aggregator.ExecutiveRef{{ID: q.user.ID, Email: q.user.Email}}
	} else {
		execs = aggregator.Executives(q.snap.Conversations, q.snap.Catalog, q.scope.Domain)
	}
	writeJSON(w, http.StatusOK, map[string]any{"executives": execs})
}

type conversationsResponse struct {
	snapshotMeta
	Conversations []processor.Card `json:"conversations"`
}

func (s *Server) conversationsHandler(w http.ResponseWriter, r *http.Request) {
	q, ok := s.resolve(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, conversationsResponse{
		snapshotMeta:  metaOf(q.snap),
		Conversations: processor.BuildCards(q.conversations(), q.snap.Catalog),
	})
}

type groupRow struct {
	aggregator.GroupStats
	Rating string `json:"rating"`
}

type statsResponse struct {
	snapshotMeta
	aggregator.Overview
	Filter     aggregator.Filter     `json:"filter"`
	GroupBy    aggregator.GroupBy    `json:"group_by"`
	Groups     []groupRow            `json:"groups"`
	ActionCard actionable.ActionCard `json:"action_card"`
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) (request, aggregator.Report, bool) {
	groupBy, err := aggregator.ParseGroupBy(r.URL.Query().Get("group_by"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return request{}, aggregator.Report{}, false
	}
	q, ok := s.resolve(w, r)
	if !ok {
		return request{}, aggregator.Report{}, false
	}
	start := time.Now()
	rep := aggregator.Aggregate(q.snap.Conversations, q.snap.Catalog, q.filter, groupBy)
	metrics.AggregationDuration.WithLabelValues(string(groupBy)).Observe(time.Since(start).Seconds())
	return q, rep, true
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	q, rep, ok := s.report(w, r)
	if !ok {
		return
	}
	rows := make([]groupRow, 0, len(rep.Groups))
	for _, g := range rep.Groups {
		rows = append(rows, groupRow{GroupStats: g, Rating: actionable.Rating(g.PassRate)})
	}
	writeJSON(w, http.StatusOK, statsResponse{
		snapshotMeta: metaOf(q.snap),
		Overview:     rep.Overview,
		Filter:       q.filter,
		GroupBy:      rep.GroupBy,
		Groups:       rows,
		ActionCard:   actionable.Generate(rep),
	})
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	_, rep, ok := s.report(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := dataset.WriteReport(&buf, rep); err != nil {
		s.log.WithRequest(r).WithField("error", err.Error()).Error("report export failed")
		writeError(w, http.StatusInternalServerError, "report export failed")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="scorecard-stats.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	s.notifier.Serve(w, r, sess.User.ID)
}
