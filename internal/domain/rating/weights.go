package rating

import "github.com/okian/lasertrack/internal/domain/model"

// exchangeWeights is the fraction of a full 1v1 update applied per event.
var exchangeWeights = map[model.EventType]float64{
	model.EventDamagedOpponent:       0.02,
	model.EventDownedOpponent:        0.05,
	model.EventMissileDamageOpponent: 0.08,
	model.EventMissileDownOpponent:   0.10,
	model.EventSteal:                 0.05,
	model.EventBlock:                 0.03,
	model.EventGoal:                  0.10,
	model.EventAssist:                0.05,
}

// roleMultipliers inflate role uncertainty for roles with weak combat signal.
var roleMultipliers = map[model.Role]float64{
	model.RoleCommander: 1.0,
	model.RoleHeavy:     1.0,
	model.RoleScout:     1.2,
	model.RoleAmmo:      2.0,
	model.RoleMedic:     2.0,
}

// Weight returns the partial-credit weight of an exchange of type t against
// a target playing role. ok is false for events that carry no credit.
func Weight(t model.EventType, role model.Role) (w float64, ok bool) {
	w, ok = exchangeWeights[t]
	if !ok {
		return 0, false
	}
	if role.HighValue() {
		w *= 2
	}
	return w, true
}

// RoleMultiplier returns the uncertainty multiplier for role.
func RoleMultiplier(role model.Role) float64 {
	if m, ok := roleMultipliers[role]; ok {
		return m
	}
	return 1.0
}
