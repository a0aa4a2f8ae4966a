package stats

import (
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/replay"
)

// TeamTotal is a team's score over the whole match.
type TeamTotal struct {
	Team  int    `json:"team"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Summary is the read model served for a match.
type Summary struct {
	MatchID    string               `json:"match_id"`
	Mode       string               `json:"mode"`
	Winner     int                  `json:"winner"`
	Teams      []TeamTotal          `json:"teams"`
	MVP        []MVPEntry           `json:"mvp"`
	Possession map[string]int64     `json:"possession_ms,omitempty"`
	States     map[string]Histogram `json:"states"`
}

// Summarize combines the aggregates of a match and its replay.
func Summarize(m *model.Match, s *replay.Script) Summary {
	out := Summary{
		MatchID: m.ID,
		Mode:    m.Mode.String(),
		Winner:  m.Winner,
		MVP:     MVP(m),
		States:  make(map[string]Histogram),
	}
	for _, t := range m.Teams {
		if t.Neutral() {
			continue
		}
		out.Teams = append(out.Teams, TeamTotal{Team: t.Index, Name: t.Name, Score: TeamScore(m, t.Index, 0, Open)})
	}
	if m.Mode == model.ModeBall {
		out.Possession = Possession(m)
	}
	if s != nil {
		for _, e := range m.Entities {
			if e.Player() {
				out.States[e.Token] = StateHistogram(s.Timeline, e.Token, m.ElapsedMS)
			}
		}
	}
	return out
}
