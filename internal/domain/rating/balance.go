package rating

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/okian/lasertrack/internal/domain/model"
)

// DefaultTrials is the number of random partitions tried by Balance.
const DefaultTrials = 500

// Lineup is a proposed team split.
type Lineup struct {
	Teams         [][]string            `json:"teams"`
	Probabilities []float64             `json:"probabilities"`
	Score         float64               `json:"score"`
	Roles         map[string]model.Role `json:"roles,omitempty"`
}

// Balance splits players into n teams (2-4) so that pairwise win chances
// stay close to even. It keeps the best of trials random deals drawn from
// rng; a fixed seed gives a fixed lineup.
func (m Model) Balance(players []model.Rating, n, trials int, rng *rand.Rand) (Lineup, error) {
	if n < 2 || n > 4 {
		return Lineup{}, fmt.Errorf("%w: %d", ErrTeamCount, n)
	}
	if len(players) < n {
		return Lineup{}, fmt.Errorf("%w: %d players for %d teams", ErrTooFewPlayers, len(players), n)
	}
	if trials <= 0 {
		trials = DefaultTrials
	}

	pool := append([]model.Rating(nil), players...)
	sort.Slice(pool, func(i, j int) bool { return pool[i].AccountID < pool[j].AccountID })

	var (
		best      [][]model.Rating
		bestScore = math.Inf(1)
	)
	for t := 0; t < trials; t++ {
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		split := deal(pool, n)
		score, err := m.fairness(split)
		if err != nil {
			return Lineup{}, err
		}
		if score < bestScore {
			best, bestScore = split, score
		}
	}

	dists := make([][]model.Distribution, n)
	out := Lineup{Teams: make([][]string, n), Score: bestScore}
	for i, team := range best {
		for _, r := range team {
			out.Teams[i] = append(out.Teams[i], r.AccountID)
			dists[i] = append(dists[i], r.General)
		}
	}
	probs, err := m.PredictWin(dists)
	if err != nil {
		return Lineup{}, err
	}
	out.Probabilities = probs
	return out, nil
}

func deal(pool []model.Rating, n int) [][]model.Rating {
	split := make([][]model.Rating, n)
	for i, r := range pool {
		split[i%n] = append(split[i%n], r)
	}
	return split
}

// fairness sums |P(win)-0.5| over every pair of teams.
func (m Model) fairness(split [][]model.Rating) (float64, error) {
	var score float64
	for i := 0; i < len(split); i++ {
		for j := i + 1; j < len(split); j++ {
			p, err := m.PredictWin([][]model.Distribution{generals(split[i]), generals(split[j])})
			if err != nil {
				return 0, err
			}
			score += math.Abs(p[0] - 0.5)
		}
	}
	return score, nil
}

func generals(team []model.Rating) []model.Distribution {
	out := make([]model.Distribution, len(team))
	for i, r := range team {
		out[i] = r.General
	}
	return out
}

var assignOrder = []model.Role{model.RoleCommander, model.RoleHeavy, model.RoleAmmo, model.RoleMedic}

// AssignRoles gives each team one Commander, Heavy, Ammo and Medic, picking
// the remaining account with the best ordinal for each role in turn. Ties go
// to the lower account id. Everyone left plays Scout.
func (m Model) AssignRoles(teams [][]string, ratings map[string]model.Rating) map[string]model.Role {
	base := m.Baseline()
	out := make(map[string]model.Role)
	for _, team := range teams {
		left := append([]string(nil), team...)
		sort.Strings(left)
		for _, role := range assignOrder {
			if len(left) == 0 {
				break
			}
			pick := 0
			for i := 1; i < len(left); i++ {
				ri, rp := ratings[left[i]], ratings[left[pick]]
				if ri.Role(role, base).Ordinal() > rp.Role(role, base).Ordinal() {
					pick = i
				}
			}
			out[left[pick]] = role
			left = append(left[:pick], left[pick+1:]...)
		}
		for _, id := range left {
			out[id] = model.RoleScout
		}
	}
	return out
}
