// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// EventType is the closed set of in-match event codes. Values are the
// hexadecimal codes written in the log.
type EventType uint16

// Mission lifecycle.
const (
	EventMissionStart EventType = 0x0100
	EventMissionEnd   EventType = 0x0101
)

// Direct combat.
const (
	EventShotEmpty       EventType = 0x0201
	EventMiss            EventType = 0x0202
	EventMissBase        EventType = 0x0203
	EventHitBase         EventType = 0x0204
	EventDestroyBase     EventType = 0x0205
	EventDamagedOpponent EventType = 0x0206
	EventDamagedTeam     EventType = 0x0207
	EventDownedOpponent  EventType = 0x0208
	EventDownedTeam      EventType = 0x0209
)

// Missiles.
const (
	EventLocking               EventType = 0x0300
	EventMissileBaseMiss       EventType = 0x0301
	EventMissileBaseDamage     EventType = 0x0302
	EventMissileBaseDestroy    EventType = 0x0303
	EventMissileMiss           EventType = 0x0304
	EventMissileDamageOpponent EventType = 0x0305
	EventMissileDownOpponent   EventType = 0x0306
	EventMissileDamageTeam     EventType = 0x0307
	EventMissileDownTeam       EventType = 0x0308
)

// Rapid fire and nukes.
const (
	EventActivateRapidFire   EventType = 0x0400
	EventDeactivateRapidFire EventType = 0x0401
	EventActivateNuke        EventType = 0x0404
	EventDetonateNuke        EventType = 0x0405
)

// Resupply and boosts.
const (
	EventResupplyShots EventType = 0x0500
	EventResupplyLives EventType = 0x0502
	EventAmmoBoost     EventType = 0x0510
	EventLifeBoost     EventType = 0x0512
)

// Penalties and achievements.
const (
	EventPenalty       EventType = 0x0600
	EventAchievement   EventType = 0x0900
	EventRewardAwarded EventType = 0x0B01
	EventBaseAwarded   EventType = 0x0B02
	EventBonusAwarded  EventType = 0x0B03
)

// Ball.
const (
	EventPass          EventType = 0x1100
	EventGoal          EventType = 0x1101
	EventAssist        EventType = 0x1102
	EventSteal         EventType = 0x1103
	EventBlock         EventType = 0x1104
	EventRoundStart    EventType = 0x1105
	EventRoundEnd      EventType = 0x1106
	EventGetsBall      EventType = 0x1107
	EventTimeViolation EventType = 0x1108
	EventClear         EventType = 0x1109
	EventFailClear     EventType = 0x110A
)

var eventNames = map[EventType]string{
	EventMissionStart:          "mission_start",
	EventMissionEnd:            "mission_end",
	EventShotEmpty:             "shot_empty",
	EventMiss:                  "miss",
	EventMissBase:              "miss_base",
	EventHitBase:               "hit_base",
	EventDestroyBase:           "destroy_base",
	EventDamagedOpponent:       "damaged_opponent",
	EventDamagedTeam:           "damaged_team",
	EventDownedOpponent:        "downed_opponent",
	EventDownedTeam:            "downed_team",
	EventLocking:               "locking",
	EventMissileBaseMiss:       "missile_base_miss",
	EventMissileBaseDamage:     "missile_base_damage",
	EventMissileBaseDestroy:    "missile_base_destroy",
	EventMissileMiss:           "missile_miss",
	EventMissileDamageOpponent: "missile_damage_opponent",
	EventMissileDownOpponent:   "missile_down_opponent",
	EventMissileDamageTeam:     "missile_damage_team",
	EventMissileDownTeam:       "missile_down_team",
	EventActivateRapidFire:     "activate_rapid_fire",
	EventDeactivateRapidFire:   "deactivate_rapid_fire",
	EventActivateNuke:          "activate_nuke",
	EventDetonateNuke:          "detonate_nuke",
	EventResupplyShots:         "resupply_shots",
	EventResupplyLives:         "resupply_lives",
	EventAmmoBoost:             "ammo_boost",
	EventLifeBoost:             "life_boost",
	EventPenalty:               "penalty",
	EventAchievement:           "achievement",
	EventRewardAwarded:         "reward_awarded",
	EventBaseAwarded:           "base_awarded",
	EventBonusAwarded:          "bonus_awarded",
	EventPass:                  "pass",
	EventGoal:                  "goal",
	EventAssist:                "assist",
	EventSteal:                 "steal",
	EventBlock:                 "block",
	EventRoundStart:            "round_start",
	EventRoundEnd:              "round_end",
	EventGetsBall:              "gets_ball",
	EventTimeViolation:         "time_violation",
	EventClear:                 "clear",
	EventFailClear:             "fail_clear",
}

// ParseEventType parses a hexadecimal log code such as "0206".
func ParseEventType(code string) (EventType, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(code), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownEventType, code)
	}
	t := EventType(v)
	if _, ok := eventNames[t]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownEventType, code)
	}
	return t, nil
}

// Code renders the type as its four digit log code.
func (t EventType) Code() string { return fmt.Sprintf("%04X", uint16(t)) }

func (t EventType) String() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "event_" + t.Code()
}

// CostsShot reports whether firing this event consumes a shot.
func (t EventType) CostsShot() bool {
	switch t {
	case EventMiss, EventMissBase, EventHitBase, EventDestroyBase,
		EventDamagedOpponent, EventDamagedTeam, EventDownedOpponent, EventDownedTeam:
		return true
	}
	return false
}

// IsHit reports whether the shot landed.
func (t EventType) IsHit() bool {
	return t.CostsShot() && t != EventMiss && t != EventMissBase
}

// CostsMissile reports whether the event spends a missile.
func (t EventType) CostsMissile() bool {
	return t >= EventMissileBaseMiss && t <= EventMissileDownTeam
}

// AgainstOpponent reports whether the target is on another team.
func (t EventType) AgainstOpponent() bool {
	switch t {
	case EventDamagedOpponent, EventDownedOpponent, EventMissileDamageOpponent, EventMissileDownOpponent:
		return true
	}
	return false
}

// IsBall reports whether the event belongs to the ball family.
func (t EventType) IsBall() bool { return t >= EventPass && t <= EventFailClear }

// Event is one timestamped in-match record. Actor and Target hold entity
// tokens; either may be empty.
type Event struct {
	TimeMS int64     `json:"time_ms"`
	Type   EventType `json:"type"`
	Actor  string    `json:"actor,omitempty"`
	Action string    `json:"action"`
	Target string    `json:"target,omitempty"`
	// Extra keeps arguments beyond the third.
	Extra []string `json:"extra,omitempty"`
	Line  int      `json:"-"`
}

// ScoreDelta is a score change reported by the arena for one entity.
type ScoreDelta struct {
	TimeMS int64  `json:"time_ms"`
	Token  string `json:"token"`
	Old    int    `json:"old"`
	Delta  int    `json:"delta"`
	New    int    `json:"new"`
}

// StateChange is a raw arena state code for one entity.
type StateChange struct {
	TimeMS int64  `json:"time_ms"`
	Token  string `json:"token"`
	Code   int    `json:"code"`
}

// EntityEnd closes an entity at match end.
type EntityEnd struct {
	TimeMS  int64  `json:"time_ms"`
	Token   string `json:"token"`
	EndType int    `json:"end_type"`
	Score   int    `json:"score"`
}
