// Package stats derives read-only aggregates from stored matches and their
// replay timelines.
package stats

import (
	"math"
	"sort"

	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/replay"
)

// Open is the upper bound of an unbounded window.
const Open = math.MaxInt64

// EntityScores sums score deltas per entity for deltas in [fromMS, toMS).
func EntityScores(m *model.Match, fromMS, toMS int64) map[string]int {
	out := make(map[string]int)
	for _, d := range m.ScoreDeltas {
		if d.TimeMS >= fromMS && d.TimeMS < toMS {
			out[d.Token] += d.Delta
		}
	}
	return out
}

// TeamScore sums the window's score deltas of entities on team.
func TeamScore(m *model.Match, team int, fromMS, toMS int64) int {
	onTeam := make(map[string]bool)
	for _, e := range m.Entities {
		if e.Team == team {
			onTeam[e.Token] = true
		}
	}
	total := 0
	for token, v := range EntityScores(m, fromMS, toMS) {
		if onTeam[token] {
			total += v
		}
	}
	return total
}

// DecideWinner returns the winning team index or model.NoWinner on a tie.
// Elimination matches go to the highest entity-end total; ball matches to
// the most goals.
func DecideWinner(m *model.Match) int {
	totals := make(map[int]int)
	for _, t := range m.Teams {
		if !t.Neutral() {
			totals[t.Index] = 0
		}
	}
	team := make(map[string]int, len(m.Entities))
	for _, e := range m.Entities {
		team[e.Token] = e.Team
	}

	if m.Mode == model.ModeBall {
		counted := false
		for _, fs := range m.FinalStats {
			if fs.Ball == nil {
				continue
			}
			counted = true
			if t, ok := team[fs.Token]; ok {
				if _, playing := totals[t]; playing {
					totals[t] += fs.Ball.Goals
				}
			}
		}
		if !counted {
			for _, ev := range m.Events {
				if ev.Type != model.EventGoal {
					continue
				}
				if t, ok := team[ev.Actor]; ok {
					if _, playing := totals[t]; playing {
						totals[t]++
					}
				}
			}
		}
	} else {
		for _, end := range m.EntityEnds {
			if t, ok := team[end.Token]; ok {
				if _, playing := totals[t]; playing {
					totals[t] += end.Score
				}
			}
		}
	}

	idx := make([]int, 0, len(totals))
	for t := range totals {
		idx = append(idx, t)
	}
	sort.Ints(idx)
	winner, best, tied := model.NoWinner, math.MinInt, false
	for _, t := range idx {
		switch v := totals[t]; {
		case v > best:
			winner, best, tied = t, v, false
		case v == best:
			tied = true
		}
	}
	if tied {
		return model.NoWinner
	}
	return winner
}

// Possession returns milliseconds of ball possession per entity. The holder
// changes on GETS_BALL and STEAL (actor) and PASS and CLEAR (target); GOAL,
// ROUND_END and MISSION_END drop the ball. The match end closes the last hold.
func Possession(m *model.Match) map[string]int64 {
	out := make(map[string]int64)
	holder, since := "", int64(0)
	take := func(token string, at int64) {
		if holder != "" {
			out[holder] += at - since
		}
		holder, since = token, at
	}
	for _, ev := range m.Events {
		switch ev.Type {
		case model.EventGetsBall, model.EventSteal:
			take(ev.Actor, ev.TimeMS)
		case model.EventPass, model.EventClear:
			if ev.Target != "" {
				take(ev.Target, ev.TimeMS)
			}
		case model.EventGoal, model.EventRoundEnd, model.EventMissionEnd:
			take("", ev.TimeMS)
		}
	}
	take("", m.ElapsedMS)
	return out
}

// Histogram is time spent per coarse state bucket.
type Histogram struct {
	Active     int64            `json:"active_ms"`
	Down       map[string]int64 `json:"down_ms"`
	Resettable int64            `json:"resettable_ms"`
}

// StateHistogram integrates token's timeline up to endMS. Time after
// elimination is not counted.
func StateHistogram(timeline []replay.Transition, token string, endMS int64) Histogram {
	h := Histogram{Down: make(map[string]int64)}
	var cur *replay.Transition
	add := func(until int64) {
		if cur == nil || until <= cur.TimeMS {
			return
		}
		span := until - cur.TimeMS
		switch cur.Status.State {
		case replay.StateActive:
			h.Active += span
		case replay.StateDown:
			h.Down[cur.Status.Reason.String()] += span
		case replay.StateResettable:
			h.Resettable += span
		}
	}
	for i := range timeline {
		tr := &timeline[i]
		if tr.Token != token {
			continue
		}
		if tr.TimeMS > endMS {
			break
		}
		add(tr.TimeMS)
		cur = tr
	}
	add(endMS)
	return h
}
