package registry

import "github.com/okian/lasertrack/internal/domain/model"

// Profile is a role's starting resources, caps and resupply amounts.
type Profile struct {
	Lives         int `json:"lives"`
	MaxLives      int `json:"max_lives"`
	Shots         int `json:"shots"`
	MaxShots      int `json:"max_shots"`
	Missiles      int `json:"missiles"`
	MaxMissiles   int `json:"max_missiles"`
	ResupplyShots int `json:"resupply_shots"`
	ResupplyLives int `json:"resupply_lives"`
}

// Tables is the display layer contract: starting resources per role and
// styling per team color.
type Tables struct {
	Profiles  map[model.Role]Profile
	TeamClass map[model.Color]string
}

// DefaultTables returns the standard five-role loadouts.
func DefaultTables() Tables {
	return Tables{
		Profiles: map[model.Role]Profile{
			model.RoleCommander: {Lives: 15, MaxLives: 30, Shots: 30, MaxShots: 60, Missiles: 5, MaxMissiles: 5, ResupplyShots: 5, ResupplyLives: 4},
			model.RoleHeavy:     {Lives: 10, MaxLives: 20, Shots: 20, MaxShots: 40, Missiles: 5, MaxMissiles: 5, ResupplyShots: 5, ResupplyLives: 3},
			model.RoleScout:     {Lives: 15, MaxLives: 30, Shots: 30, MaxShots: 60, ResupplyShots: 10, ResupplyLives: 5},
			model.RoleAmmo:      {Lives: 10, MaxLives: 20, Shots: 15, MaxShots: 15, ResupplyLives: 3},
			model.RoleMedic:     {Lives: 20, MaxLives: 20, Shots: 15, MaxShots: 30, ResupplyShots: 5},
		},
		TeamClass: map[model.Color]string{
			model.ColorNeutral: "team-neutral",
			model.ColorRed:     "team-red",
			model.ColorGreen:   "team-green",
			model.ColorBlue:    "team-blue",
			model.ColorYellow:  "team-yellow",
			model.ColorPurple:  "team-purple",
		},
	}
}

// Profile returns the loadout for role; unknown roles get no resources.
func (t Tables) Profile(role model.Role) Profile {
	return t.Profiles[role]
}

// Class returns the CSS class for a team color.
func (t Tables) Class(c model.Color) string {
	if cls, ok := t.TeamClass[c]; ok {
		return cls
	}
	return "team-" + c.String()
}
