package rating

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/registry"
	"github.com/okian/lasertrack/pkg/logger"
	"github.com/okian/lasertrack/pkg/metrics"
)

// Store persists ratings. GetRating returns ErrRatingNotFound for accounts
// that have never been rated in mode.
type Store interface {
	GetRating(ctx context.Context, accountID string, mode model.Mode) (model.Rating, error)
	PutRatings(ctx context.Context, ratings []model.Rating) error
	ResetRatings(ctx context.Context) error
}

// Engine applies matches to persisted ratings.
type Engine struct {
	model  Model
	store  Store
	locks  *AccountLocks
	logger logger.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithConstants overrides the model constants.
func WithConstants(c Constants) Option {
	return func(e *Engine) { e.model = NewModel(c) }
}

// WithLocks shares a lock table between engines over the same store.
func WithLocks(l *AccountLocks) Option {
	return func(e *Engine) {
		if l != nil {
			e.locks = l
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the time source for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		model:  NewModel(DefaultConstants()),
		store:  store,
		locks:  NewAccountLocks(),
		logger: logger.GetOrNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the engine's rating model.
func (e *Engine) Model() Model { return e.model }

// pass is the in-memory state of one match's rating run.
type pass struct {
	mode    model.Mode
	reg     *registry.Registry
	ratings map[string]*model.Rating
	before  map[string]model.Rating
}

// ApplyMatch runs the exchange updates and the end-of-match team update for
// a ranked match and persists the result. Unranked matches only produce
// snapshots with equal before and after values.
func (e *Engine) ApplyMatch(ctx context.Context, m *model.Match) ([]model.RatingSnapshot, error) {
	reg, err := registry.FromMatch(m, registry.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	accounts := reg.Accounts()
	if len(accounts) == 0 {
		return nil, nil
	}

	unlock := e.locks.Lock(accounts)
	defer unlock()

	p := &pass{
		mode:    m.Mode,
		reg:     reg,
		ratings: make(map[string]*model.Rating, len(accounts)),
		before:  make(map[string]model.Rating, len(accounts)),
	}
	for _, id := range accounts {
		r, err := e.load(ctx, id, m.Mode)
		if err != nil {
			metrics.RecordRatingFailure()
			e.logger.Error(ctx, "rating load failed; skipping account",
				logger.String("match_id", m.ID),
				logger.String("account_id", id),
				logger.Error(err))
			continue
		}
		p.ratings[id] = &r
		p.before[id] = r.Clone()
	}

	if !m.Ranked {
		return e.snapshots(p), nil
	}

	if err := e.exchanges(ctx, m, p); err != nil {
		return nil, err
	}
	if err := e.teamUpdate(ctx, m, p); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	out := make([]model.Rating, 0, len(p.ratings))
	for _, id := range accounts {
		r, ok := p.ratings[id]
		if !ok {
			continue
		}
		r.Matches++
		r.UpdatedAt = now
		out = append(out, *r)
	}
	if err := e.store.PutRatings(ctx, out); err != nil {
		return nil, fmt.Errorf("persist ratings for match %s: %w", m.ID, err)
	}
	return e.snapshots(p), nil
}

func (e *Engine) load(ctx context.Context, id string, mode model.Mode) (model.Rating, error) {
	r, err := e.store.GetRating(ctx, id, mode)
	if errors.Is(err, ErrRatingNotFound) {
		return model.Rating{AccountID: id, Mode: mode, General: e.model.Baseline()}, nil
	}
	if err != nil {
		return model.Rating{}, err
	}
	return r, nil
}

func (e *Engine) exchanges(ctx context.Context, m *model.Match, p *pass) error {
	holders := newHolderTracker()
	for i := range m.Events {
		ev := &m.Events[i]
		if ev.Type.IsBall() {
			holders.observe(p.reg, ev)
		}
		if _, ok := exchangeWeights[ev.Type]; !ok {
			continue
		}
		actor, err := p.reg.MustActor(ev.Actor)
		if err != nil {
			return fmt.Errorf("rate match %s at %dms: %w", m.ID, ev.TimeMS, err)
		}

		var target *model.Entity
		switch ev.Type {
		case model.EventGoal, model.EventAssist:
			target = holders.lastOpponent(p.reg, actor)
		default:
			t, ok := p.reg.Target(ctx, ev.Target)
			if !ok {
				continue
			}
			target = t
		}
		if target == nil || !p.reg.Opponents(actor, target) {
			continue
		}
		winner, okW := p.ratings[actor.AccountID]
		loser, okL := p.ratings[target.AccountID]
		if actor.Guest() || target.Guest() || !okW || !okL || winner == loser {
			continue
		}

		w, _ := Weight(ev.Type, target.Role)
		if err := e.partial(winner, loser, actor.Role, target.Role, w, p.mode); err != nil {
			return err
		}
		metrics.RecordRatingUpdate("partial")
	}
	return nil
}

func (e *Engine) partial(winner, loser *model.Rating, winRole, loseRole model.Role, w float64, mode model.Mode) error {
	full, err := e.model.Rate([][]model.Distribution{{winner.General}, {loser.General}}, []int{1, 2})
	if err != nil {
		return err
	}
	winner.General = Partial(winner.General, full[0][0], w)
	loser.General = Partial(loser.General, full[1][0], w)

	if mode != model.ModeElimination || !ratedRole(winRole) || !ratedRole(loseRole) {
		return nil
	}
	base := e.model.Baseline()
	wOld, lOld := winner.Role(winRole, base), loser.Role(loseRole, base)
	wMul, lMul := RoleMultiplier(winRole), RoleMultiplier(loseRole)
	full, err = e.model.Rate([][]model.Distribution{
		{{Mu: wOld.Mu, Sigma: wOld.Sigma * wMul}},
		{{Mu: lOld.Mu, Sigma: lOld.Sigma * lMul}},
	}, []int{1, 2})
	if err != nil {
		return err
	}
	wFull := model.Distribution{Mu: full[0][0].Mu, Sigma: full[0][0].Sigma / wMul}
	lFull := model.Distribution{Mu: full[1][0].Mu, Sigma: full[1][0].Sigma / lMul}
	setRole(winner, winRole, Partial(wOld, wFull, w))
	setRole(loser, loseRole, Partial(lOld, lFull, w))
	return nil
}

func (e *Engine) teamUpdate(ctx context.Context, m *model.Match, p *pass) error {
	var (
		teams   [][]model.Distribution
		members [][]*model.Rating
		ranks   []int
	)
	for _, idx := range p.reg.PlayingTeams() {
		var dists []model.Distribution
		var rs []*model.Rating
		seen := make(map[string]bool)
		for _, ent := range p.reg.TeamMembers(idx) {
			r, ok := p.ratings[ent.AccountID]
			if ent.Guest() || !ent.Player() || !ok || seen[ent.AccountID] {
				continue
			}
			seen[ent.AccountID] = true
			dists = append(dists, r.General)
			rs = append(rs, r)
		}
		if len(rs) == 0 {
			continue
		}
		rank := 2
		if m.Winner == model.NoWinner || m.Winner == idx {
			rank = 1
		}
		teams = append(teams, dists)
		members = append(members, rs)
		ranks = append(ranks, rank)
	}
	if len(teams) < 2 {
		e.logger.Debug(ctx, "team update skipped", logger.String("match_id", m.ID), logger.Int("teams", len(teams)))
		return nil
	}
	updated, err := e.model.Rate(teams, ranks)
	if err != nil {
		return fmt.Errorf("team update for match %s: %w", m.ID, err)
	}
	for i := range members {
		for j, r := range members[i] {
			r.General = updated[i][j]
		}
	}
	metrics.RecordRatingUpdate("match")
	return nil
}

func (e *Engine) snapshots(p *pass) []model.RatingSnapshot {
	ids := make([]string, 0, len(p.ratings))
	for id := range p.ratings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	roles := make(map[string]model.Role, len(ids))
	for _, ent := range p.reg.Entities() {
		if _, ok := roles[ent.AccountID]; !ok && !ent.Guest() && ent.Player() {
			roles[ent.AccountID] = ent.Role
		}
	}

	base := e.model.Baseline()
	out := make([]model.RatingSnapshot, 0, len(ids))
	for _, id := range ids {
		before, after := p.before[id], p.ratings[id]
		s := model.RatingSnapshot{
			AccountID: id,
			Role:      roles[id],
			Before:    before.General,
			After:     after.General,
		}
		if ratedRole(s.Role) {
			s.RoleBefore = before.Role(s.Role, base)
			s.RoleAfter = after.Role(s.Role, base)
		}
		out = append(out, s)
	}
	return out
}

func ratedRole(r model.Role) bool {
	return r >= model.RoleCommander && r <= model.RoleMedic
}

func setRole(r *model.Rating, role model.Role, d model.Distribution) {
	if r.Roles == nil {
		r.Roles = make(map[model.Role]model.Distribution)
	}
	r.Roles[role] = d
}

// holderTracker remembers the latest ball holder of each team so goals and
// assists can be credited against the defending side.
type holderTracker struct {
	last map[int]holder
	n    int
}

type holder struct {
	token string
	at    int64
	seq   int
}

func newHolderTracker() *holderTracker {
	return &holderTracker{last: make(map[int]holder)}
}

func (h *holderTracker) observe(reg *registry.Registry, ev *model.Event) {
	var token string
	switch ev.Type {
	case model.EventGetsBall, model.EventSteal:
		token = ev.Actor
	case model.EventPass, model.EventClear:
		token = ev.Target
	default:
		return
	}
	ent, ok := reg.Lookup(token)
	if !ok {
		return
	}
	h.n++
	h.last[ent.Team] = holder{token: token, at: ev.TimeMS, seq: h.n}
}

// lastOpponent returns the most recent holder on a team opposing actor.
func (h *holderTracker) lastOpponent(reg *registry.Registry, actor *model.Entity) *model.Entity {
	var best holder
	found := false
	teams := make([]int, 0, len(h.last))
	for t := range h.last {
		teams = append(teams, t)
	}
	sort.Ints(teams)
	for _, t := range teams {
		if t == actor.Team {
			continue
		}
		c := h.last[t]
		if !found || c.at > best.at || c.at == best.at && c.seq > best.seq {
			best, found = c, true
		}
	}
	if !found {
		return nil
	}
	ent, _ := reg.Lookup(best.token)
	return ent
}
