package model

import (
	"fmt"
	"strings"
)

// Mode is the game variant a match was played in.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeElimination
	ModeBall
)

func (m Mode) String() string {
	switch m {
	case ModeElimination:
		return "elimination"
	case ModeBall:
		return "ball"
	}
	return "unknown"
}

// ParseMode accepts the names returned by String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "elimination", "sm5":
		return ModeElimination, nil
	case "ball", "laserball":
		return ModeBall, nil
	}
	return ModeUnknown, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	if string(b) == "unknown" {
		*m = ModeUnknown
		return nil
	}
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Role is a player's loadout. Elimination logs carry roles 1-5; ball
// players all share RoleBallPlayer.
type Role int

const (
	RoleNone Role = iota
	RoleCommander
	RoleHeavy
	RoleScout
	RoleAmmo
	RoleMedic
	RoleBallPlayer
)

// EliminationRoles lists the roles that carry sub-ratings, in log order.
var EliminationRoles = []Role{RoleCommander, RoleHeavy, RoleScout, RoleAmmo, RoleMedic}

func (r Role) String() string {
	switch r {
	case RoleCommander:
		return "commander"
	case RoleHeavy:
		return "heavy"
	case RoleScout:
		return "scout"
	case RoleAmmo:
		return "ammo"
	case RoleMedic:
		return "medic"
	case RoleBallPlayer:
		return "ball"
	}
	return "none"
}

// ParseRole accepts the names returned by String.
func ParseRole(s string) (Role, error) {
	for _, r := range []Role{RoleCommander, RoleHeavy, RoleScout, RoleAmmo, RoleMedic, RoleBallPlayer} {
		if strings.EqualFold(s, r.String()) {
			return r, nil
		}
	}
	return RoleNone, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	if s := string(b); s == "" || s == "none" {
		*r = RoleNone
		return nil
	}
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// HighValue reports whether downing this role weighs double.
func (r Role) HighValue() bool { return r == RoleCommander || r == RoleMedic }

// Color is the closed set of team colors.
type Color int

const (
	ColorNeutral Color = iota
	ColorRed
	ColorGreen
	ColorBlue
	ColorYellow
	ColorPurple
)

func (c Color) String() string {
	switch c {
	case ColorRed:
		return "red"
	case ColorGreen:
		return "green"
	case ColorBlue:
		return "blue"
	case ColorYellow:
		return "yellow"
	case ColorPurple:
		return "purple"
	}
	return "neutral"
}

// Team is one side of a match.
type Team struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Color Color  `json:"color"`
}

// Neutral reports whether the team is not a playing side.
func (t Team) Neutral() bool { return t.Color == ColorNeutral }

// Kind distinguishes players from stationary targets.
type Kind int

const (
	KindPlayer Kind = iota
	KindBase
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindBase:
		return "base"
	case KindObject:
		return "object"
	}
	return "player"
}

// Entity is a match participant. Resource and cumulative counters hold the
// starting values when read from a stored match.
type Entity struct {
	Token      string `json:"token"`
	AccountID  string `json:"account_id,omitempty"`
	MemberID   string `json:"member_id,omitempty"`
	Name       string `json:"name"`
	Team       int    `json:"team"`
	Role       Role   `json:"role"`
	Kind       Kind   `json:"kind"`
	Level      int    `json:"level"`
	Battlesuit string `json:"battlesuit,omitempty"`
	JoinedMS   int64  `json:"joined_ms"`

	Lives         int `json:"lives"`
	Shots         int `json:"shots"`
	Missiles      int `json:"missiles"`
	SpecialPoints int `json:"special_points"`

	ShotsFired        int  `json:"shots_fired"`
	ShotsHit          int  `json:"shots_hit"`
	TimesDownedOthers int  `json:"times_downed_others"`
	TimesDowned       int  `json:"times_downed"`
	Score             int  `json:"score"`
	Eliminated        bool `json:"eliminated"`
}

// Guest reports whether the entity has no persistent account.
func (e *Entity) Guest() bool { return e.AccountID == "" }

// Player reports whether the entity is a person rather than a base or object.
func (e *Entity) Player() bool { return e.Kind == KindPlayer }
