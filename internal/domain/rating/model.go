// Package rating implements Plackett-Luce skill ratings with weighted
// per-exchange partial credit, win prediction and team balancing.
package rating

import (
	"fmt"
	"math"

	"github.com/okian/lasertrack/internal/domain/model"
)

// Constants parameterize the rating model.
type Constants struct {
	Mu    float64
	Sigma float64
	Beta  float64
	Tau   float64
	Kappa float64
	// Zeta scales the uneven-team correction of two-team predictions.
	Zeta float64
}

// DefaultConstants returns mu=25, sigma=25/3, beta=25/6, tau=25/275,
// kappa=0.0001 and zeta=0.09.
func DefaultConstants() Constants {
	return Constants{
		Mu:    25.0,
		Sigma: 25.0 / 3.0,
		Beta:  25.0 / 6.0,
		Tau:   25.0 / 275.0,
		Kappa: 0.0001,
		Zeta:  0.09,
	}
}

// Model is a Plackett-Luce rater. It is a plain value with no shared state.
type Model struct {
	c Constants
}

// NewModel creates a model with the given constants.
func NewModel(c Constants) Model { return Model{c: c} }

// Constants returns the model constants.
func (m Model) Constants() Constants { return m.c }

// Baseline is the distribution of a new account.
func (m Model) Baseline() model.Distribution {
	return model.Distribution{Mu: m.c.Mu, Sigma: m.c.Sigma}
}

type teamAgg struct {
	mu      float64
	sigmaSq float64
	rank    int
}

// Rate applies one ranked outcome. ranks[i] is team i's placing; lower is
// better and equal ranks tie. The input is not modified.
func (m Model) Rate(teams [][]model.Distribution, ranks []int) ([][]model.Distribution, error) {
	if len(teams) < 2 {
		return nil, fmt.Errorf("%w: %d", ErrTeamCount, len(teams))
	}
	if len(ranks) != len(teams) {
		return nil, ErrRankCount
	}
	tauSq := m.c.Tau * m.c.Tau
	betaSq := m.c.Beta * m.c.Beta

	// Add dynamics before the update.
	work := make([][]model.Distribution, len(teams))
	aggs := make([]teamAgg, len(teams))
	for i, team := range teams {
		if len(team) == 0 {
			return nil, ErrEmptyTeam
		}
		work[i] = make([]model.Distribution, len(team))
		for j, p := range team {
			p.Sigma = math.Sqrt(p.Sigma*p.Sigma + tauSq)
			work[i][j] = p
			aggs[i].mu += p.Mu
			aggs[i].sigmaSq += p.Sigma * p.Sigma
		}
		aggs[i].rank = ranks[i]
	}

	var cSq float64
	for _, a := range aggs {
		cSq += a.sigmaSq + betaSq
	}
	c := math.Sqrt(cSq)

	sumQ := make([]float64, len(aggs))
	count := make([]float64, len(aggs))
	for q, aq := range aggs {
		for _, ai := range aggs {
			if ai.rank >= aq.rank {
				sumQ[q] += math.Exp(ai.mu / c)
			}
			if ai.rank == aq.rank {
				count[q]++
			}
		}
	}

	for i, ai := range aggs {
		expI := math.Exp(ai.mu / c)
		var omega, delta float64
		for q, aq := range aggs {
			if aq.rank > ai.rank {
				continue
			}
			quotient := expI / sumQ[q]
			if q == i {
				omega += (1 - quotient) / count[q]
			} else {
				omega -= quotient / count[q]
			}
			delta += quotient * (1 - quotient) / count[q]
		}
		gamma := math.Sqrt(ai.sigmaSq) / c
		omega *= ai.sigmaSq / c
		delta *= gamma * ai.sigmaSq / cSq

		for j, p := range work[i] {
			share := p.Sigma * p.Sigma / ai.sigmaSq
			work[i][j] = model.Distribution{
				Mu:    p.Mu + share*omega,
				Sigma: p.Sigma * math.Sqrt(math.Max(1-share*delta, m.c.Kappa)),
			}
		}
	}
	return work, nil
}

// Partial moves old toward full by weight w in both mean and deviation.
func Partial(old, full model.Distribution, w float64) model.Distribution {
	return model.Distribution{
		Mu:    old.Mu + w*(full.Mu-old.Mu),
		Sigma: old.Sigma + w*(full.Sigma-old.Sigma),
	}
}
