package rating

import (
	"fmt"
	"math"

	"github.com/okian/lasertrack/internal/domain/model"
)

// phi is the standard normal CDF.
func phi(x float64) float64 { return 0.5 * math.Erfc(-x/math.Sqrt2) }

func sums(team []model.Distribution) (mu, sigmaSq float64) {
	for _, p := range team {
		mu += p.Mu
		sigmaSq += p.Sigma * p.Sigma
	}
	return mu, sigmaSq
}

// PredictWin returns each team's win probability; the result sums to 1.
// Two teams of different sizes get the smaller team's summed mean scaled by
// 1 + zeta*|size difference|. Three or four teams use the unmodified
// pairwise model.
func (m Model) PredictWin(teams [][]model.Distribution) ([]float64, error) {
	if len(teams) < 2 || len(teams) > 4 {
		return nil, fmt.Errorf("%w: %d", ErrTeamCount, len(teams))
	}
	n := 0
	for _, t := range teams {
		if len(t) == 0 {
			return nil, ErrEmptyTeam
		}
		n += len(t)
	}
	betaSq := m.c.Beta * m.c.Beta

	if len(teams) == 2 {
		muA, sigA := sums(teams[0])
		muB, sigB := sums(teams[1])
		diff := len(teams[0]) - len(teams[1])
		factor := 1 + m.c.Zeta*math.Abs(float64(diff))
		switch {
		case diff < 0:
			muA *= factor
		case diff > 0:
			muB *= factor
		}
		p := phi((muA - muB) / math.Sqrt(float64(n)*betaSq+sigA+sigB))
		return []float64{p, 1 - p}, nil
	}

	probs := make([]float64, len(teams))
	var total float64
	for i := range teams {
		muI, sigI := sums(teams[i])
		for j := range teams {
			if i == j {
				continue
			}
			muJ, sigJ := sums(teams[j])
			probs[i] += phi((muI - muJ) / math.Sqrt(float64(n)*betaSq+sigI+sigJ))
		}
		total += probs[i]
	}
	for i := range probs {
		probs[i] /= total
	}
	return probs, nil
}
