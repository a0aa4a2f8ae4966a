package model

import "time"

// Distribution is a Gaussian skill estimate.
type Distribution struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
}

// Ordinal is the conservative point estimate used for display and matchmaking.
func (d Distribution) Ordinal() float64 { return d.Mu - 3*d.Sigma }

// Rating is one account's skill in one mode. Roles is only populated for
// elimination ratings.
type Rating struct {
	AccountID string                `json:"account_id"`
	Mode      Mode                  `json:"mode"`
	General   Distribution          `json:"general"`
	Roles     map[Role]Distribution `json:"roles,omitempty"`
	Matches   int                   `json:"matches"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Role returns the sub-rating for r, falling back to base when absent.
func (r *Rating) Role(role Role, base Distribution) Distribution {
	if d, ok := r.Roles[role]; ok {
		return d
	}
	return base
}

// Clone returns a deep copy.
func (r Rating) Clone() Rating {
	out := r
	if r.Roles != nil {
		out.Roles = make(map[Role]Distribution, len(r.Roles))
		for k, v := range r.Roles {
			out.Roles[k] = v
		}
	}
	return out
}

// RatingSnapshot records an account's rating around one match.
type RatingSnapshot struct {
	AccountID  string       `json:"account_id"`
	Role       Role         `json:"role"`
	Before     Distribution `json:"before"`
	After      Distribution `json:"after"`
	RoleBefore Distribution `json:"role_before"`
	RoleAfter  Distribution `json:"role_after"`
}
