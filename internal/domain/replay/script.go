package replay

import "github.com/okian/lasertrack/internal/domain/model"

// Column names of the scorecard.
const (
	ColScore    = "score"
	ColLives    = "lives"
	ColShots    = "shots"
	ColMissiles = "missiles"
	ColSpecial  = "sp"
	ColAccuracy = "accuracy"
	ColKD       = "kd"
	ColGoals    = "goals"
	ColAssists  = "assists"
	ColSteals   = "steals"
	ColBlocks   = "blocks"
	ColPasses   = "passes"
)

var (
	eliminationColumns = []string{ColScore, ColLives, ColShots, ColMissiles, ColSpecial, ColAccuracy, ColKD}
	ballColumns        = []string{ColScore, ColGoals, ColAssists, ColSteals, ColBlocks, ColPasses}
)

// Columns returns the scorecard columns of a mode.
func Columns(mode model.Mode) []string {
	if mode == model.ModeBall {
		return append([]string(nil), ballColumns...)
	}
	return append([]string(nil), eliminationColumns...)
}

// CellDelta changes one scorecard cell.
type CellDelta struct {
	Token  string `json:"token"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

// RowStateDelta changes a row's style class.
type RowStateDelta struct {
	Token string `json:"token"`
	Class string `json:"class"`
}

// TeamScore is one team's running total.
type TeamScore struct {
	Team  int `json:"team"`
	Score int `json:"score"`
}

// Frame is one step of the replay.
type Frame struct {
	TimeMS     int64           `json:"time_ms"`
	Message    string          `json:"message,omitempty"`
	Cells      []CellDelta     `json:"cells,omitempty"`
	Rows       []RowStateDelta `json:"rows,omitempty"`
	Audio      []string        `json:"audio,omitempty"`
	TeamScores []TeamScore     `json:"team_scores,omitempty"`
}

// TeamInfo describes a team for the front end.
type TeamInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Class string `json:"class"`
}

// Row is the initial scorecard row of an entity.
type Row struct {
	Token string   `json:"token"`
	Name  string   `json:"name"`
	Team  int      `json:"team"`
	Role  string   `json:"role"`
	Class string   `json:"class"`
	Cells []string `json:"cells"`
}

// EntityState is an entity at match end.
type EntityState struct {
	model.Entity
	Status   Status  `json:"status"`
	Accuracy float64 `json:"accuracy"`
	KD       float64 `json:"kd"`
	Goals    int     `json:"goals,omitempty"`
	Assists  int     `json:"assists,omitempty"`
	Steals   int     `json:"steals,omitempty"`
	Blocks   int     `json:"blocks,omitempty"`
	Passes   int     `json:"passes,omitempty"`
}

// Transition is a status change in the state timeline.
type Transition struct {
	TimeMS int64  `json:"time_ms"`
	Token  string `json:"token"`
	Status Status `json:"status"`
}

// ScorePoint samples team totals at a point in match time.
type ScorePoint struct {
	TimeMS int64       `json:"time_ms"`
	Scores []TeamScore `json:"scores"`
}

// Script is the full replay of a match.
type Script struct {
	MatchID     string        `json:"match_id"`
	Mode        model.Mode    `json:"mode"`
	DurationMS  int64         `json:"duration_ms"`
	ElapsedMS   int64         `json:"elapsed_ms"`
	Teams       []TeamInfo    `json:"teams"`
	Columns     []string      `json:"columns"`
	Rows        []Row         `json:"rows"`
	Frames      []Frame       `json:"frames"`
	Final       []EntityState `json:"final"`
	Timeline    []Transition  `json:"timeline"`
	ScoreSeries []ScorePoint  `json:"score_series"`
}

// FinalState returns the end state of token.
func (s *Script) FinalState(token string) (EntityState, bool) {
	for _, e := range s.Final {
		if e.Token == token {
			return e, true
		}
	}
	return EntityState{}, false
}
