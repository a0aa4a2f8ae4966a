package stats

import (
	"math"
	"sort"

	"github.com/okian/lasertrack/internal/domain/model"
)

// MVPEntry is one entity's MVP points.
type MVPEntry struct {
	Token  string  `json:"token"`
	Name   string  `json:"name"`
	Team   int     `json:"team"`
	Role   string  `json:"role"`
	Points float64 `json:"points"`
}

// scoreBonus is the points per thousand above threshold.
func scoreBonus(score, threshold int) float64 {
	return math.Max(0, float64(score-threshold)) / 1000
}

// EliminationMVP scores one player's final block.
func EliminationMVP(role model.Role, s *model.EliminationStats, score int) float64 {
	var acc float64
	if s.ShotsFired > 0 {
		acc = float64(s.ShotsHit) / float64(s.ShotsFired)
	}
	pts := 10*acc + float64(s.MedicHits) - float64(s.OwnMedicHits) - 5*float64(s.Penalties) + 3*float64(s.NukeCancels)

	switch role {
	case model.RoleCommander:
		pts += float64(s.MissileHits) + float64(s.NukesDetonated)
		pts -= float64(s.NukesActivated - s.NukesDetonated)
		pts += scoreBonus(score, 10000)
	case model.RoleHeavy:
		pts += 2*float64(s.MissileHits) + scoreBonus(score, 7000)
	case model.RoleScout:
		pts += 0.2*float64(s.Shot3Hit) + scoreBonus(score, 6000)
	case model.RoleAmmo:
		pts += 3*float64(s.AmmoBoost) + scoreBonus(score, 3000)
	case model.RoleMedic:
		pts += 3 * float64(s.LifeBoost)
		if s.LivesLeft > 0 {
			pts += 2
		}
		pts += scoreBonus(score, 2000)
	}
	return math.Round(pts*100) / 100
}

// BallMVP scores one ball player's final block.
func BallMVP(s *model.BallStats) float64 {
	return float64((s.Goals+s.Assists)*10000 + s.Steals*100 + s.Blocks)
}

// MVP ranks the match's players, highest first; ties break on token.
func MVP(m *model.Match) []MVPEntry {
	scores := make(map[string]int, len(m.EntityEnds))
	for _, e := range m.EntityEnds {
		scores[e.Token] = e.Score
	}
	var out []MVPEntry
	for _, fs := range m.FinalStats {
		e, ok := m.Entity(fs.Token)
		if !ok || !e.Player() {
			continue
		}
		entry := MVPEntry{Token: e.Token, Name: e.Name, Team: e.Team, Role: e.Role.String()}
		switch {
		case fs.Elimination != nil:
			entry.Points = EliminationMVP(e.Role, fs.Elimination, scores[e.Token])
		case fs.Ball != nil:
			entry.Points = BallMVP(fs.Ball)
		default:
			continue
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].Token < out[j].Token
	})
	return out
}
