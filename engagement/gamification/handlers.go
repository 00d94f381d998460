package gamification

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"

	"lumigente_backend/main/api"
	"lumigente_backend/main/session"
)

// LeaderboardHandler: GET /api/gamification/leaderboard?topUsers=10
func LeaderboardHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	top, _ := strconv.Atoi(c.Query("topUsers"))

	board, err := Leaderboard(c.Request.Context(), top, "")
	if err != nil {
		api.Internal(c, "Erro ao buscar leaderboard.", err)
		return
	}
	rank, err := RankOf(c.Request.Context(), u.ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar leaderboard.", err)
		return
	}
	api.Print_json(c, "leaderboard", board, "userRanking", rank)
}

// PointsHandler: GET /api/recognitions/points
func PointsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	total, _, err := Total(c.Request.Context(), session.Current(c).ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar pontos.", err)
		return
	}
	api.Print_json(c, "TotalPoints", total)
}

// Action is one entry of the points table.
type Action struct {
	Action string `json:"action"`
	Points int    `json:"points"`
}

// Actions lists Points, most rewarding first.
func Actions() []Action {
	out := make([]Action, 0, len(Points))
	for action, pts := range Points {
		out = append(out, Action{Action: action, Points: pts})
	}
	slices.SortFunc(out, func(a, b Action) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(a.Action, b.Action)
	})
	return out
}

// ActionsHandler: GET /api/gamification/actions
func ActionsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	api.Print_json(c, "actions", Actions())
}
