/*
handlers.go - HTTP API handlers for the activity ranking engine

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response and JSON
  serialization, and delegates everything interesting to the engine.

ENDPOINTS:
  Dashboard & rankings:
    GET    /api/dashboard              Caller dashboard (ranking + KPIs)
    GET    /api/ranking                Ranking JSON for a period
    GET    /api/ranking/export         Ranking CSV
    GET    /api/leaderboard/live       Live cache-backed leaderboard

  History:
    GET    /api/history                Filtered activity history
    GET    /api/history/export         History CSV or text export

  Activities:
    POST   /api/activities             Log an activity
    GET    /api/activity-types         Reference data
    GET    /api/users                  Known users

  Periods:
    GET    /api/periods                List periods
    GET    /api/periods/{id}/ranking   A period's frozen snapshot
    POST   /api/admin/periods/close    Close the current biweekly period

ERROR HANDLING:
  Engine errors map to HTTP status:
  - 400: invalid input (bad date on creation, unknown activity type)
  - 401: unresolved identity (middleware)
  - 403: non-admin close attempt
  - 404: missing period/user
  - 503: snapshot write failure (retryable; operator may re-close)
  Note the documented leniency: an unparseable *filter* range never
  fails a request - the filter is dropped instead.

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Identity, logging, rate limiting
  - server.go: Router setup
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apex/activity-engine/cache"
	"github.com/apex/activity-engine/engine"
	"github.com/apex/activity-engine/metrics"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Activities engine.ActivityStore
	Users      engine.IdentityProvider
	Periods    engine.PeriodStore
	Closer     *engine.Closer
	Live       *cache.Leaderboard
	Metrics    *metrics.Collector
	Logger     *zap.Logger

	// Now supplies "today"; swapped out in tests for determinism.
	Now func() engine.Date
}

// NewHandler wires a handler over the given stores.
func NewHandler(activities engine.ActivityStore, users engine.IdentityProvider, periods engine.PeriodStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Activities: activities,
		Users:      users,
		Periods:    periods,
		Closer:     engine.NewCloser(activities, periods, logger),
		Live:       cache.New(nil, logger),
		Logger:     logger,
		Now:        engine.Today,
	}
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Dashboard returns the caller's dashboard for a period (default daily).
// GET /api/dashboard?period=
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	caller := identityFrom(r.Context())
	today := h.Now()

	code := r.URL.Query().Get("period")
	if code == "" {
		code = engine.CodeDaily
	}
	rng, ok := engine.ResolveRange(code, today, "", "")
	if !ok {
		// Unknown codes land in the biweekly catch-all rather than
		// failing; only a missing parameter means daily.
		code = engine.CodeBiweekly
		rng = engine.RangeFor(engine.PeriodBiweekly, today)
	}

	activities, err := h.Activities.ActivitiesInRange(r.Context(), rng)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load activities", err)
		return
	}

	d := engine.BuildDashboard(activities, caller.ID, code, rng, today)
	writeJSON(w, http.StatusOK, DashboardResponse{
		Period:      d.PeriodCode,
		Start:       d.Range.Start.String(),
		End:         d.Range.End.String(),
		DaysLeft:    d.DaysLeft,
		Ranking:     toRankingRowDTOs(d.Ranking),
		KPIs:        toKPIsDTO(d.KPIs),
		MyBreakdown: d.MyBreakdown,
	})
}

func toKPIsDTO(k engine.KPIs) KPIsDTO {
	return KPIsDTO{
		MyPoints:     k.MyPoints,
		MyPosition:   positionLabel(k.MyPosition),
		MyActivities: k.MyActivities,
		TotalPoints:  k.TotalPoints,
		AvgPoints:    k.AvgPointsPerActivity.StringFixed(2),
	}
}

// =============================================================================
// RANKING
// =============================================================================

// rankingRange resolves the ranking surfaces' period parameter, which
// defaults to (and falls back to) the biweekly window.
func (h *Handler) rankingRange(r *http.Request, today engine.Date) (string, engine.DateRange) {
	code := r.URL.Query().Get("period")
	if code == "" {
		code = engine.CodeBiweekly
	}
	rng, ok := engine.ResolveRange(code, today, "", "")
	if !ok {
		code = engine.CodeBiweekly
		rng = engine.RangeFor(engine.PeriodBiweekly, today)
	}
	return code, rng
}

// Ranking returns the leaderboard and caller KPIs for a period.
// GET /api/ranking?period=
func (h *Handler) Ranking(w http.ResponseWriter, r *http.Request) {
	caller := identityFrom(r.Context())
	today := h.Now()
	code, rng := h.rankingRange(r, today)

	activities, err := h.Activities.ActivitiesInRange(r.Context(), rng)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load activities", err)
		return
	}

	d := engine.BuildDashboard(activities, caller.ID, code, rng, today)
	writeJSON(w, http.StatusOK, RankingResponse{
		Period:      code,
		Start:       rng.Start.String(),
		End:         rng.End.String(),
		Leaderboard: toRankingRowDTOs(d.Ranking),
		KPIs:        toKPIsDTO(d.KPIs),
	})
}

// ExportRanking streams the period ranking as CSV.
// GET /api/ranking/export?period=
func (h *Handler) ExportRanking(w http.ResponseWriter, r *http.Request) {
	today := h.Now()
	_, rng := h.rankingRange(r, today)

	activities, err := h.Activities.ActivitiesInRange(r.Context(), rng)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load activities", err)
		return
	}

	ranking := engine.BuildRanking(engine.Aggregate(activities))
	if h.Metrics != nil {
		h.Metrics.RecordExport("ranking_csv")
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="ranking.csv"`)
	w.Write([]byte(engine.ExportRanking(ranking)))
}

// LiveLeaderboard serves the cache-backed live leaderboard, falling
// back to SQL aggregation when the cache is cold or disabled.
// GET /api/leaderboard/live?period=
func (h *Handler) LiveLeaderboard(w http.ResponseWriter, r *http.Request) {
	today := h.Now()
	code, rng := h.rankingRange(r, today)
	periodType, _ := engine.PeriodTypeForCode(code)

	if entries, ok := h.Live.Top(r.Context(), periodType, today, 20); ok {
		rows := make([]RankingRowDTO, len(entries))
		names := h.userNames(r)
		for i, e := range entries {
			rows[i] = RankingRowDTO{
				Position: i + 1,
				UserID:   string(e.UserID),
				Name:     names[e.UserID],
				Points:   e.Points,
			}
		}
		writeJSON(w, http.StatusOK, LiveLeaderboardResponse{Period: code, Source: "cache", Leaderboard: rows})
		return
	}

	if h.Metrics != nil {
		h.Metrics.RecordCacheFallback()
	}

	activities, err := h.Activities.ActivitiesInRange(r.Context(), rng)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load activities", err)
		return
	}
	ranking := engine.BuildRanking(engine.Aggregate(activities))
	writeJSON(w, http.StatusOK, LiveLeaderboardResponse{
		Period:      code,
		Source:      "store",
		Leaderboard: toRankingRowDTOs(ranking),
	})
}

func (h *Handler) userNames(r *http.Request) map[engine.UserID]string {
	names := make(map[engine.UserID]string)
	users, err := h.Users.ListUsers(r.Context())
	if err != nil {
		return names
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names
}

// =============================================================================
// HISTORY
// =============================================================================

func historyParams(r *http.Request) engine.HistoryParams {
	q := r.URL.Query()
	return engine.HistoryParams{
		PeriodCode: q.Get("period"),
		Start:      q.Get("start"),
		End:        q.Get("end"),
		UserID:     engine.UserID(q.Get("user")),
		TeamID:     engine.TeamID(q.Get("team")),
	}
}

// History returns the filtered activity history, newest first.
// GET /api/history?period=&start=&end=&user=&team=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	activities, err := engine.History(r.Context(), h.Activities, historyParams(r), h.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}

	dtos := make([]ActivityDTO, len(activities))
	for i, a := range activities {
		dtos[i] = toActivityDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ExportHistory streams the history as CSV or a plain-text block.
// GET /api/history/export?format=csv|text&period=...
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	params := historyParams(r)
	if params.PeriodCode == "" && params.Start == "" {
		// The export surfaces default to the current biweekly window.
		params.PeriodCode = engine.CodeBiweekly
	}

	activities, err := engine.History(r.Context(), h.Activities, params, h.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}

	format := engine.FormatCSV
	switch r.URL.Query().Get("format") {
	case "text", "pdf": // "pdf" kept as an alias for the old text export
		format = engine.FormatText
	}

	if h.Metrics != nil {
		h.Metrics.RecordExport(string(format))
	}

	if format == engine.FormatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="activity_history.txt"`)
	} else {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="activity_history.csv"`)
	}
	w.Write([]byte(engine.ExportHistory(activities, format)))
}

// =============================================================================
// ACTIVITIES
// =============================================================================

// LogActivity records a new activity for the caller.
// POST /api/activities
func (h *Handler) LogActivity(w http.ResponseWriter, r *http.Request) {
	caller := identityFrom(r.Context())

	var req LogActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date := h.Now()
	if req.Date != "" {
		parsed, err := engine.ParseDate(req.Date)
		if err != nil {
			// Creation is strict; only filters get the silent-drop leniency.
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		date = parsed
	}

	actType, err := h.Activities.GetActivityType(r.Context(), engine.ActivityTypeID(req.ActivityTypeID))
	if err != nil {
		if errors.Is(err, engine.ErrActivityTypeNotFound) {
			writeError(w, http.StatusBadRequest, "Unknown activity type", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to resolve activity type", err)
		return
	}

	activity := engine.Activity{
		ID:        engine.ActivityID(uuid.NewString()),
		User:      caller.Ref(),
		Type:      *actType,
		Date:      date,
		Evidence:  req.Evidence,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Activities.SaveActivity(r.Context(), activity); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save activity", err)
		return
	}

	h.Live.RecordActivity(r.Context(), caller.ID, date, actType.Points)
	if h.Metrics != nil {
		h.Metrics.RecordActivityLogged()
	}

	writeJSON(w, http.StatusCreated, toActivityDTO(activity))
}

// ListActivityTypes returns the point-value reference data.
// GET /api/activity-types
func (h *Handler) ListActivityTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Activities.ListActivityTypes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list activity types", err)
		return
	}

	dtos := make([]ActivityTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = ActivityTypeDTO{ID: string(t.ID), Name: t.Name, Points: t.Points}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListUsers returns all known users.
// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = UserDTO{
			ID:       string(u.ID),
			Name:     u.Name,
			Team:     u.TeamName,
			IsActive: u.IsActive,
			IsAdmin:  u.IsAdmin,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PERIODS
// =============================================================================

// ListPeriods lists period records, optionally filtered by type.
// GET /api/periods?type=
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Periods.ListPeriods(r.Context(), engine.PeriodType(r.URL.Query().Get("type")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list periods", err)
		return
	}

	dtos := make([]PeriodDTO, len(periods))
	for i := range periods {
		dtos[i] = toPeriodDTO(&periods[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PeriodRanking returns a period and its snapshot rows.
// GET /api/periods/{id}/ranking
func (h *Handler) PeriodRanking(w http.ResponseWriter, r *http.Request) {
	id := engine.PeriodID(chi.URLParam(r, "id"))

	period, err := h.Periods.GetPeriod(r.Context(), id)
	if err != nil {
		if errors.Is(err, engine.ErrPeriodNotFound) {
			writeError(w, http.StatusNotFound, "Period not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get period", err)
		return
	}

	entries, err := h.Periods.RankingEntries(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ranking", err)
		return
	}

	writeJSON(w, http.StatusOK, ClosePeriodResponse{
		Period:        toPeriodDTO(period),
		Ranking:       entriesToDTOs(entries),
		AlreadyClosed: period.Closed,
	})
}

// ClosePeriod closes the current biweekly period and freezes its
// ranking. Admin only; repeat calls return the frozen snapshot.
// POST /api/admin/periods/close
func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	caller := identityFrom(r.Context())

	result, err := h.Closer.CloseBiweekly(r.Context(), h.Now(), caller)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrForbidden):
			writeError(w, http.StatusForbidden, "Admin privileges required", nil)
		case engine.IsRetryable(err):
			writeError(w, http.StatusServiceUnavailable, "Snapshot write failed, safe to retry", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to close period", err)
		}
		return
	}

	if h.Metrics != nil {
		h.Metrics.RecordPeriodClose(result.AlreadyClosed)
	}

	writeJSON(w, http.StatusOK, ClosePeriodResponse{
		Period:        toPeriodDTO(result.Period),
		Ranking:       entriesToDTOs(result.Entries),
		AlreadyClosed: result.AlreadyClosed,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
