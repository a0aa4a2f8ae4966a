package model

import (
	"fmt"
	"time"
)

// NoWinner marks a drawn match.
const NoWinner = -1

// MatchKey identifies a match independently of its storage id.
type MatchKey struct {
	StartTime time.Time
	Arena     string
}

// String renders the key for dedupe indexes.
func (k MatchKey) String() string {
	return fmt.Sprintf("%s|%d", k.Arena, k.StartTime.UTC().Unix())
}

// EliminationStats is the 23-counter final block of an elimination match.
type EliminationStats struct {
	ShotsHit         int `json:"shots_hit"`
	ShotsFired       int `json:"shots_fired"`
	TimesZapped      int `json:"times_zapped"`
	TimesMissiled    int `json:"times_missiled"`
	MissileHits      int `json:"missile_hits"`
	NukesDetonated   int `json:"nukes_detonated"`
	NukesActivated   int `json:"nukes_activated"`
	NukeCancels      int `json:"nuke_cancels"`
	MedicHits        int `json:"medic_hits"`
	OwnMedicHits     int `json:"own_medic_hits"`
	MedicNukes       int `json:"medic_nukes"`
	ScoutRapid       int `json:"scout_rapid"`
	LifeBoost        int `json:"life_boost"`
	AmmoBoost        int `json:"ammo_boost"`
	LivesLeft        int `json:"lives_left"`
	ShotsLeft        int `json:"shots_left"`
	Penalties        int `json:"penalties"`
	Shot3Hit         int `json:"shot_3_hit"`
	OwnNukeCancels   int `json:"own_nuke_cancels"`
	ShotOpponent     int `json:"shot_opponent"`
	ShotTeam         int `json:"shot_team"`
	MissiledOpponent int `json:"missiled_opponent"`
	MissiledTeam     int `json:"missiled_team"`
}

// Fields returns pointers to the counters in log order.
func (s *EliminationStats) Fields() []*int {
	return []*int{
		&s.ShotsHit, &s.ShotsFired, &s.TimesZapped, &s.TimesMissiled, &s.MissileHits,
		&s.NukesDetonated, &s.NukesActivated, &s.NukeCancels, &s.MedicHits, &s.OwnMedicHits,
		&s.MedicNukes, &s.ScoutRapid, &s.LifeBoost, &s.AmmoBoost, &s.LivesLeft,
		&s.ShotsLeft, &s.Penalties, &s.Shot3Hit, &s.OwnNukeCancels, &s.ShotOpponent,
		&s.ShotTeam, &s.MissiledOpponent, &s.MissiledTeam,
	}
}

// BallStats is the 10-counter final block of a ball match.
type BallStats struct {
	Goals        int `json:"goals"`
	Assists      int `json:"assists"`
	Passes       int `json:"passes"`
	Steals       int `json:"steals"`
	Clears       int `json:"clears"`
	Blocks       int `json:"blocks"`
	TimesStolen  int `json:"times_stolen"`
	TimesBlocked int `json:"times_blocked"`
	FailedClears int `json:"failed_clears"`
	ShotsFired   int `json:"shots_fired"`
}

// Fields returns pointers to the counters in log order.
func (s *BallStats) Fields() []*int {
	return []*int{
		&s.Goals, &s.Assists, &s.Passes, &s.Steals, &s.Clears,
		&s.Blocks, &s.TimesStolen, &s.TimesBlocked, &s.FailedClears, &s.ShotsFired,
	}
}

// EliminationStatCount and BallStatCount are the final block widths.
const (
	EliminationStatCount = 23
	BallStatCount        = 10
)

// FinalStats is the per-mode final block for one entity. Exactly one of
// Elimination and Ball is set.
type FinalStats struct {
	Token       string            `json:"token"`
	Elimination *EliminationStats `json:"elimination,omitempty"`
	Ball        *BallStats        `json:"ball,omitempty"`
}

// Match is a fully decoded game.
type Match struct {
	ID             string    `json:"id"`
	Mode           Mode      `json:"mode"`
	Arena          string    `json:"arena"`
	FileVersion    string    `json:"file_version"`
	ProgramVersion string    `json:"program_version"`
	MissionType    int       `json:"mission_type"`
	MissionDesc    string    `json:"mission_desc"`
	StartTime      time.Time `json:"start_time"`
	DurationMS     int64     `json:"duration_ms"`
	ElapsedMS      int64     `json:"elapsed_ms"`
	EndedEarly     bool      `json:"ended_early"`
	Penalty        int       `json:"penalty"`
	Ranked         bool      `json:"ranked"`
	Winner         int       `json:"winner"`
	ImportedAt     time.Time `json:"imported_at"`

	Teams        []Team           `json:"teams"`
	Entities     []Entity         `json:"entities"`
	Events       []Event          `json:"events"`
	ScoreDeltas  []ScoreDelta     `json:"score_deltas"`
	StateChanges []StateChange    `json:"state_changes"`
	EntityEnds   []EntityEnd      `json:"entity_ends"`
	FinalStats   []FinalStats     `json:"final_stats"`
	Snapshots    []RatingSnapshot `json:"snapshots"`
}

// Key returns the dedupe key of the match.
func (m *Match) Key() MatchKey {
	return MatchKey{StartTime: m.StartTime, Arena: m.Arena}
}

// Entity returns the entity registered under token.
func (m *Match) Entity(token string) (*Entity, bool) {
	for i := range m.Entities {
		if m.Entities[i].Token == token {
			return &m.Entities[i], true
		}
	}
	return nil, false
}

// Team returns the team with the given index.
func (m *Match) Team(index int) (Team, bool) {
	for _, t := range m.Teams {
		if t.Index == index {
			return t, true
		}
	}
	return Team{}, false
}
