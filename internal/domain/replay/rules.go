package replay

import "github.com/okian/lasertrack/internal/domain/model"

// combatRule is the fixed outcome of a combat event.
type combatRule struct {
	actorScore  int
	targetScore int
	lifeCost    int
	reason      Reason
	damage      bool // target becomes resettable instead of losing lives
	destroys    bool // target base is destroyed
	special     int  // special points earned by the actor
	downsOther  bool // counts toward the actor's K/D
}

var combatRules = map[model.EventType]combatRule{
	model.EventDamagedOpponent:       {actorScore: 100, targetScore: -20, damage: true, special: 1},
	model.EventDamagedTeam:           {actorScore: -100, targetScore: -20, damage: true},
	model.EventDownedOpponent:        {actorScore: 100, targetScore: -20, lifeCost: 1, reason: ReasonZapped, special: 1, downsOther: true},
	model.EventDownedTeam:            {actorScore: -100, targetScore: -20, lifeCost: 1, reason: ReasonZapped},
	model.EventMissileDamageOpponent: {actorScore: 500, targetScore: -100, lifeCost: 2, reason: ReasonMissiled, special: 2, downsOther: true},
	model.EventMissileDownOpponent:   {actorScore: 500, targetScore: -100, lifeCost: 2, reason: ReasonMissiled, special: 2, downsOther: true},
	model.EventMissileDamageTeam:     {actorScore: -500, targetScore: -100, lifeCost: 2, reason: ReasonMissiled},
	model.EventMissileDownTeam:       {actorScore: -500, targetScore: -100, lifeCost: 2, reason: ReasonMissiled},
	model.EventDestroyBase:           {actorScore: 1001, destroys: true, special: 5},
	model.EventMissileBaseDestroy:    {actorScore: 1001, destroys: true, special: 5},
}

// Point values outside the combat table.
const (
	nukeScore    = 500
	penaltyScore = -1000
	goalScore    = 1
	nukeLifeCost = 3
)

// Special point costs.
const (
	rapidFireCost = 10
	nukeCost      = 20
	ammoBoostCost = 15
	lifeBoostCost = 10
)

// audioCues maps events to the sound the front end plays.
var audioCues = map[model.EventType]string{
	model.EventMissionStart:          "start",
	model.EventMissionEnd:            "end",
	model.EventDownedOpponent:        "zap",
	model.EventDownedTeam:            "zap",
	model.EventDestroyBase:           "base-destroyed",
	model.EventMissileBaseDestroy:    "base-destroyed",
	model.EventLocking:               "missile-lock",
	model.EventMissileDamageOpponent: "missile",
	model.EventMissileDownOpponent:   "missile",
	model.EventMissileDamageTeam:     "missile",
	model.EventMissileDownTeam:       "missile",
	model.EventActivateRapidFire:     "rapid-fire",
	model.EventActivateNuke:          "nuke-armed",
	model.EventDetonateNuke:          "nuke",
	model.EventResupplyShots:         "resupply",
	model.EventResupplyLives:         "resupply",
	model.EventAmmoBoost:             "boost",
	model.EventLifeBoost:             "boost",
	model.EventPenalty:               "penalty",
	model.EventGoal:                  "goal",
	model.EventSteal:                 "steal",
	model.EventBlock:                 "block",
	model.EventRoundStart:            "round-start",
	model.EventRoundEnd:              "round-end",
}

const eliminatedCue = "eliminated"
