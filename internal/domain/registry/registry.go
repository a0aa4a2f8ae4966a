// Package registry maps per-match entity tokens to entities with team, role
// and account metadata.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/lasertrack/internal/domain/eventlog"
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/pkg/logger"
)

// Registry is the token -> entity map of one match. Entities hold starting
// state and are not mutated after Build.
type Registry struct {
	mode     model.Mode
	tables   Tables
	teams    []model.Team
	entities []*model.Entity
	byToken  map[string]*model.Entity
	logger   logger.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for unknown target tokens.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTables overrides the default role and team tables.
func WithTables(t Tables) Option {
	return func(r *Registry) {
		if t.Profiles != nil {
			r.tables = t
		}
	}
}

func newRegistry(mode model.Mode, teams []model.Team, opts []Option) *Registry {
	r := &Registry{
		mode:    mode,
		tables:  DefaultTables(),
		teams:   append([]model.Team(nil), teams...),
		byToken: make(map[string]*model.Entity),
		logger:  logger.GetOrNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	sort.SliceStable(r.teams, func(i, j int) bool { return r.teams[i].Index < r.teams[j].Index })
	return r
}

// Build creates the registry from decoded entity-start records. Accounts are
// resolved through dir; a resolution error leaves the entity a guest.
func Build(ctx context.Context, l *eventlog.Log, dir AccountDirectory, opts ...Option) (*Registry, error) {
	if dir == nil {
		dir = IdentityDirectory{}
	}
	r := newRegistry(l.Mode, l.Teams, opts)
	for _, st := range l.Entities {
		e := &model.Entity{
			Token:      st.Token,
			MemberID:   st.MemberID,
			Name:       st.Name,
			Team:       st.Team,
			Kind:       parseKind(st.Kind),
			Role:       r.roleFor(st.Role),
			Level:      st.Level,
			Battlesuit: st.Battlesuit,
			JoinedMS:   st.TimeMS,
		}
		if e.Player() {
			account, err := dir.Resolve(ctx, st.Token, st.MemberID)
			if err != nil {
				r.logger.Warn(ctx, "account resolution failed, treating as guest",
					logger.String("token", st.Token), logger.Error(err))
				account = ""
			}
			e.AccountID = account
			p := r.tables.Profile(e.Role)
			e.Lives, e.Shots, e.Missiles = p.Lives, p.Shots, p.Missiles
		} else {
			e.Role = model.RoleNone
		}
		if err := r.add(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// FromMatch rebuilds the registry of a stored match.
func FromMatch(m *model.Match, opts ...Option) (*Registry, error) {
	r := newRegistry(m.Mode, m.Teams, opts)
	for i := range m.Entities {
		e := m.Entities[i]
		if err := r.add(&e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(e *model.Entity) error {
	if _, dup := r.byToken[e.Token]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateToken, e.Token)
	}
	r.byToken[e.Token] = e
	r.entities = append(r.entities, e)
	return nil
}

func (r *Registry) roleFor(code int) model.Role {
	if r.mode == model.ModeBall {
		return model.RoleBallPlayer
	}
	role := model.Role(code)
	if role < model.RoleCommander || role > model.RoleMedic {
		return model.RoleNone
	}
	return role
}

func parseKind(s string) model.Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "player", "":
		return model.KindPlayer
	case "base", "standard-target":
		return model.KindBase
	}
	return model.KindObject
}

// Mode returns the match variant.
func (r *Registry) Mode() model.Mode { return r.mode }

// Tables returns the display tables in use.
func (r *Registry) Tables() Tables { return r.tables }

// Teams returns the teams ordered by index.
func (r *Registry) Teams() []model.Team { return r.teams }

// Team returns the team with the given index.
func (r *Registry) Team(index int) (model.Team, bool) {
	for _, t := range r.teams {
		if t.Index == index {
			return t, true
		}
	}
	return model.Team{}, false
}

// Entities returns entities in registration order. Callers must not modify them.
func (r *Registry) Entities() []*model.Entity { return r.entities }

// Snapshot copies the entities for storage.
func (r *Registry) Snapshot() []model.Entity {
	out := make([]model.Entity, len(r.entities))
	for i, e := range r.entities {
		out[i] = *e
	}
	return out
}

// Lookup returns the entity for token.
func (r *Registry) Lookup(token string) (*model.Entity, bool) {
	e, ok := r.byToken[token]
	return e, ok
}

// MustActor resolves an actor slot. Unknown tokens are a data-integrity error.
func (r *Registry) MustActor(token string) (*model.Entity, error) {
	e, ok := r.byToken[token]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActor, token)
	}
	return e, nil
}

// Target resolves a target slot. Unknown tokens are logged and reported as
// absent so the caller can skip the target side.
func (r *Registry) Target(ctx context.Context, token string) (*model.Entity, bool) {
	if token == "" {
		return nil, false
	}
	e, ok := r.byToken[token]
	if !ok {
		r.logger.Warn(ctx, "unknown target token", logger.String("token", token))
	}
	return e, ok
}

// TeamMembers returns the entities on team in registration order.
func (r *Registry) TeamMembers(team int) []*model.Entity {
	var out []*model.Entity
	for _, e := range r.entities {
		if e.Team == team {
			out = append(out, e)
		}
	}
	return out
}

// Accounts returns the sorted distinct account ids of player entities.
func (r *Registry) Accounts() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range r.entities {
		if e.Guest() || !e.Player() {
			continue
		}
		if _, ok := seen[e.AccountID]; ok {
			continue
		}
		seen[e.AccountID] = struct{}{}
		out = append(out, e.AccountID)
	}
	sort.Strings(out)
	return out
}

// Opponents reports whether a and b play on different non-neutral teams.
func (r *Registry) Opponents(a, b *model.Entity) bool {
	if a == nil || b == nil || a.Team == b.Team {
		return false
	}
	ta, okA := r.Team(a.Team)
	tb, okB := r.Team(b.Team)
	if okA && ta.Neutral() || okB && tb.Neutral() {
		return false
	}
	return true
}

// PlayingTeams returns indexes of non-neutral teams with at least one player.
func (r *Registry) PlayingTeams() []int {
	var out []int
	for _, t := range r.teams {
		if t.Neutral() {
			continue
		}
		for _, e := range r.entities {
			if e.Team == t.Index && e.Player() {
				out = append(out, t.Index)
				break
			}
		}
	}
	return out
}
