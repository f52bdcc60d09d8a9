/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  engine's domain model from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

POSITION SENTINEL:
  A caller with no activity in range has no rank; the JSON carries "-"
  for position rather than 0 or null, matching what the dashboard
  renders.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"strconv"
	"time"

	"github.com/apex/activity-engine/engine"
)

// =============================================================================
// RANKING / DASHBOARD
// =============================================================================

type RankingRowDTO struct {
	Position   int    `json:"position"`
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Team       string `json:"team"`
	Points     int    `json:"points"`
	Activities int    `json:"activities"`
}

type KPIsDTO struct {
	MyPoints     int    `json:"my_points"`
	MyPosition   string `json:"my_position"` // "-" when unranked
	MyActivities int    `json:"my_activities"`
	TotalPoints  int    `json:"total_points"`
	AvgPoints    string `json:"avg_points_per_activity"`
}

type RankingResponse struct {
	Period      string          `json:"period"`
	Start       string          `json:"start"`
	End         string          `json:"end"`
	Leaderboard []RankingRowDTO `json:"leaderboard"`
	KPIs        KPIsDTO         `json:"kpis"`
}

type DashboardResponse struct {
	Period      string          `json:"period"`
	Start       string          `json:"start"`
	End         string          `json:"end"`
	DaysLeft    int             `json:"days_left"`
	Ranking     []RankingRowDTO `json:"ranking"`
	KPIs        KPIsDTO         `json:"kpis"`
	MyBreakdown map[string]int  `json:"my_breakdown"`
}

// =============================================================================
// HISTORY / ACTIVITIES
// =============================================================================

type ActivityDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	Team      string `json:"team"`
	Activity  string `json:"activity"`
	Points    int    `json:"points"`
	Evidence  string `json:"evidence,omitempty"`
	CreatedAt string `json:"created_at"`
}

type LogActivityRequest struct {
	ActivityTypeID string `json:"activity_type_id"`
	Date           string `json:"date"` // YYYY-MM-DD; empty = today
	Evidence       string `json:"evidence"`
}

type ActivityTypeDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

type UserDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Team     string `json:"team"`
	IsActive bool   `json:"is_active"`
	IsAdmin  bool   `json:"is_admin"`
}

// =============================================================================
// PERIODS / SNAPSHOTS
// =============================================================================

type PeriodDTO struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Start    string `json:"start"`
	End      string `json:"end"`
	IsClosed bool   `json:"is_closed"`
	ClosedAt string `json:"closed_at,omitempty"`
}

type ClosePeriodResponse struct {
	Period        PeriodDTO       `json:"period"`
	Ranking       []RankingRowDTO `json:"ranking"`
	AlreadyClosed bool            `json:"already_closed"`
}

type LiveLeaderboardResponse struct {
	Period      string          `json:"period"`
	Source      string          `json:"source"` // "cache" or "store"
	Leaderboard []RankingRowDTO `json:"leaderboard"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRankingRowDTOs(r *engine.Ranking) []RankingRowDTO {
	rows := make([]RankingRowDTO, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = RankingRowDTO{
			Position:   row.Position,
			UserID:     string(row.User.ID),
			Name:       row.User.Name,
			Team:       row.User.Team,
			Points:     row.TotalPoints,
			Activities: row.ActivityCount,
		}
	}
	return rows
}

func entriesToDTOs(entries []engine.RankingEntry) []RankingRowDTO {
	rows := make([]RankingRowDTO, len(entries))
	for i, e := range entries {
		rows[i] = RankingRowDTO{
			Position:   e.Position,
			UserID:     string(e.UserID),
			Name:       e.UserName,
			Team:       e.Team,
			Points:     e.TotalPoints,
			Activities: e.TotalActivities,
		}
	}
	return rows
}

func toPeriodDTO(p *engine.Period) PeriodDTO {
	dto := PeriodDTO{
		ID:       string(p.ID),
		Type:     string(p.Type),
		Start:    p.Start.String(),
		End:      p.End.String(),
		IsClosed: p.Closed,
	}
	if !p.ClosedAt.IsZero() {
		dto.ClosedAt = p.ClosedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toActivityDTO(a engine.Activity) ActivityDTO {
	return ActivityDTO{
		ID:        string(a.ID),
		Date:      a.Date.String(),
		UserID:    string(a.User.ID),
		UserName:  a.User.Name,
		Team:      a.User.Team,
		Activity:  a.Type.Name,
		Points:    a.Type.Points,
		Evidence:  a.Evidence,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// positionLabel renders the unranked sentinel the way the dashboard
// shows it.
func positionLabel(pos int) string {
	if pos == engine.Unranked {
		return "-"
	}
	return strconv.Itoa(pos)
}
