// Package replay walks a match's events and rebuilds per-entity state as an
// ordered script of UI frames.
package replay

import (
	"context"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/registry"
	"github.com/okian/lasertrack/pkg/logger"
	"github.com/okian/lasertrack/pkg/metrics"
)

const ctxCheckEvery = 256

// Machine builds replay scripts. It holds configuration only and is safe
// for concurrent use.
type Machine struct {
	reupMS int64
	tickMS int64
	logger logger.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithReup sets the down-to-active cooldown.
func WithReup(ms int64) Option {
	return func(m *Machine) {
		if ms > 0 {
			m.reupMS = ms
		}
	}
}

// WithScoreTick sets the team score sampling interval.
func WithScoreTick(ms int64) Option {
	return func(m *Machine) {
		if ms > 0 {
			m.tickMS = ms
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Machine with an 8s reup and 30s score ticks.
func New(opts ...Option) *Machine {
	m := &Machine{reupMS: 8000, tickMS: 30000, logger: logger.GetOrNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// live is the mutable replay state of one entity.
type live struct {
	model.Entity
	index     int
	profile   registry.Profile
	status    Status
	seq       uint64
	rapidFire bool
	nukeArmed bool

	goals, assists, steals, blocks, passes int
}

func (e *live) accuracy() float64 {
	if e.ShotsFired == 0 {
		return 0
	}
	return math.Round(float64(e.ShotsHit)/float64(e.ShotsFired)*100) / 100
}

func (e *live) kd() float64 {
	if e.TimesDowned == 0 {
		return 0
	}
	return math.Round(float64(e.TimesDownedOthers)/float64(e.TimesDowned)*100) / 100
}

func (e *live) cell(col string) string {
	switch col {
	case ColScore:
		return strconv.Itoa(e.Score)
	case ColLives:
		return strconv.Itoa(e.Lives)
	case ColShots:
		return strconv.Itoa(e.Shots)
	case ColMissiles:
		return strconv.Itoa(e.Missiles)
	case ColSpecial:
		return strconv.Itoa(e.SpecialPoints)
	case ColAccuracy:
		return strconv.FormatFloat(e.accuracy(), 'f', 2, 64)
	case ColKD:
		return strconv.FormatFloat(e.kd(), 'f', 2, 64)
	case ColGoals:
		return strconv.Itoa(e.goals)
	case ColAssists:
		return strconv.Itoa(e.assists)
	case ColSteals:
		return strconv.Itoa(e.steals)
	case ColBlocks:
		return strconv.Itoa(e.blocks)
	case ColPasses:
		return strconv.Itoa(e.passes)
	}
	return ""
}

func (e *live) alive() bool { return e.status.State != StateEliminated }

// run is the state of one Run call.
type run struct {
	m        *Machine
	ctx      context.Context
	reg      *registry.Registry
	mode     model.Mode
	columns  []string
	entities []*live
	byToken  map[string]*live
	queue    reupQueue

	lastCells  [][]string
	lastRows   []string
	lastScores []TeamScore

	frames   []Frame
	timeline []Transition
	series   []ScorePoint
	nextTick int64
}

// Run replays match against its registry.
func (m *Machine) Run(ctx context.Context, match *model.Match, reg *registry.Registry) (*Script, error) {
	if match == nil || reg == nil {
		return nil, ErrNilMatch
	}
	if match.Mode == model.ModeUnknown {
		return nil, ErrModeMissing
	}
	started := time.Now()

	r := m.newRun(ctx, match, reg)
	for i := range match.Events {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ev := &match.Events[i]
		r.fireReups(ev.TimeMS)
		r.sampleUntil(ev.TimeMS)
		if err := r.apply(ev); err != nil {
			metrics.RecordReplayError()
			m.logger.Error(ctx, "replay aborted",
				logger.String("match", match.ID),
				logger.Int("line", ev.Line),
				logger.Int64("time_ms", ev.TimeMS),
				logger.Error(err))
			return nil, err
		}
	}
	r.fireReups(match.ElapsedMS)
	r.finishSeries(match.ElapsedMS)

	s := r.script(match)
	metrics.RecordReplayFrames(len(s.Frames))
	metrics.RecordReplayLatency(float64(time.Since(started).Microseconds()) / 1000)
	return s, nil
}

func (m *Machine) newRun(ctx context.Context, match *model.Match, reg *registry.Registry) *run {
	r := &run{
		m:       m,
		ctx:     ctx,
		reg:     reg,
		mode:    match.Mode,
		columns: Columns(match.Mode),
		byToken: make(map[string]*live),
	}
	tables := reg.Tables()
	for i, e := range reg.Entities() {
		l := &live{Entity: *e, index: i, profile: tables.Profile(e.Role)}
		r.entities = append(r.entities, l)
		r.byToken[e.Token] = l
		r.timeline = append(r.timeline, Transition{TimeMS: 0, Token: e.Token, Status: l.status})
	}
	r.lastCells = make([][]string, len(r.entities))
	r.lastRows = make([]string, len(r.entities))
	for i, e := range r.entities {
		r.lastCells[i] = r.cells(e)
		r.lastRows[i] = e.status.Class()
	}
	r.lastScores = r.teamScores()
	return r
}

func (r *run) cells(e *live) []string {
	out := make([]string, len(r.columns))
	for i, c := range r.columns {
		out[i] = e.cell(c)
	}
	return out
}

func (r *run) teamScores() []TeamScore {
	var out []TeamScore
	for _, t := range r.reg.Teams() {
		if t.Neutral() {
			continue
		}
		total := 0
		for _, e := range r.entities {
			if e.Team == t.Index {
				total += e.Score
			}
		}
		out = append(out, TeamScore{Team: t.Index, Score: total})
	}
	return out
}

func (r *run) setStatus(e *live, s Status, at int64) {
	if e.status == s {
		return
	}
	e.status = s
	r.timeline = append(r.timeline, Transition{TimeMS: at, Token: e.Token, Status: s})
}

func (r *run) scheduleReup(e *live, now int64) {
	e.seq++
	r.queue.schedule(pendingReup{at: now + r.m.reupMS, order: e.index, seq: e.seq})
}

// fireReups returns due entities to ACTIVE. Reups sharing a timestamp are
// grouped into one frame.
func (r *run) fireReups(upTo int64) {
	for {
		head, ok := r.queue.peek()
		if !ok || head.at > upTo {
			return
		}
		at := head.at
		for {
			p, ok := r.queue.peek()
			if !ok || p.at != at {
				break
			}
			r.queue.next()
			e := r.entities[p.order]
			if p.seq != e.seq {
				continue
			}
			if e.status.State == StateDown || e.status.State == StateResettable {
				r.setStatus(e, Status{State: StateActive}, at)
			}
		}
		f := Frame{TimeMS: at}
		r.diff(&f)
		if len(f.Rows) > 0 {
			r.frames = append(r.frames, f)
		}
	}
}

// sampleUntil records team totals for every tick strictly before t.
func (r *run) sampleUntil(t int64) {
	for r.nextTick < t {
		r.series = append(r.series, ScorePoint{TimeMS: r.nextTick, Scores: r.teamScores()})
		r.nextTick += r.m.tickMS
	}
}

func (r *run) finishSeries(elapsed int64) {
	for r.nextTick <= elapsed {
		r.series = append(r.series, ScorePoint{TimeMS: r.nextTick, Scores: r.teamScores()})
		r.nextTick += r.m.tickMS
	}
	if n := len(r.series); n == 0 || r.series[n-1].TimeMS != elapsed {
		r.series = append(r.series, ScorePoint{TimeMS: elapsed, Scores: r.teamScores()})
	}
}

func (r *run) apply(ev *model.Event) error {
	var actor, target *live
	if ev.Actor != "" {
		a, err := r.reg.MustActor(ev.Actor)
		if err != nil {
			return fmt.Errorf("replay %s at %dms: %w", ev.Type, ev.TimeMS, err)
		}
		actor = r.byToken[a.Token]
	}
	if t, ok := r.reg.Target(r.ctx, ev.Target); ok {
		target = r.byToken[t.Token]
	}

	f := Frame{TimeMS: ev.TimeMS, Message: r.render(ev)}
	if cue, ok := audioCues[ev.Type]; ok {
		f.Audio = append(f.Audio, cue)
	}
	eliminatedBefore := r.eliminatedCount()

	if actor != nil {
		r.applyActor(ev, actor, target)
	}

	if r.eliminatedCount() > eliminatedBefore {
		f.Audio = append(f.Audio, eliminatedCue)
	}
	r.diff(&f)
	r.frames = append(r.frames, f)
	return nil
}

// eliminatedCount counts eliminated players. Destroyed bases have their own cue.
func (r *run) eliminatedCount() int {
	n := 0
	for _, e := range r.entities {
		if e.Player() && !e.alive() {
			n++
		}
	}
	return n
}

func (r *run) elimination() bool { return r.mode == model.ModeElimination }

func (r *run) applyActor(ev *model.Event, a, t *live) {
	if ev.Type.CostsShot() {
		a.ShotsFired++
		if a.Role != model.RoleAmmo {
			a.Shots = max(0, a.Shots-1)
		}
		if ev.Type.IsHit() {
			a.ShotsHit++
		}
	}
	if ev.Type.CostsMissile() && r.elimination() {
		a.Missiles = max(0, a.Missiles-1)
	}

	if rule, ok := combatRules[ev.Type]; ok {
		r.applyCombat(ev, rule, a, t)
		return
	}

	switch ev.Type {
	case model.EventActivateRapidFire:
		r.spend(a, rapidFireCost)
		a.rapidFire = true
	case model.EventDeactivateRapidFire:
		a.rapidFire = false
	case model.EventActivateNuke:
		r.spend(a, nukeCost)
		a.nukeArmed = true
	case model.EventDetonateNuke:
		r.detonate(ev.TimeMS, a)
	case model.EventResupplyShots, model.EventResupplyLives:
		r.resupply(ev, t)
	case model.EventAmmoBoost:
		r.spend(a, ammoBoostCost)
		r.boost(a, func(e *live) { e.Shots = min(e.profile.MaxShots, e.Shots+e.profile.ResupplyShots) })
	case model.EventLifeBoost:
		r.spend(a, lifeBoostCost)
		r.boost(a, func(e *live) { e.Lives = min(e.profile.MaxLives, e.Lives+e.profile.ResupplyLives) })
	case model.EventPenalty:
		a.Score += penaltyScore
	case model.EventGoal:
		a.Score += goalScore
		a.goals++
	case model.EventAssist:
		a.assists++
	case model.EventSteal:
		a.steals++
	case model.EventPass:
		a.passes++
	case model.EventBlock:
		a.blocks++
		if t != nil {
			r.down(t, 0, ReasonOther, ev.TimeMS)
		}
	}
}

func (r *run) applyCombat(ev *model.Event, rule combatRule, a, t *live) {
	a.Score += rule.actorScore
	if rule.special > 0 && r.elimination() && a.Role != model.RoleHeavy && !a.rapidFire {
		a.SpecialPoints += rule.special
	}
	if t == nil {
		return
	}
	t.Score += rule.targetScore
	switch {
	case rule.destroys:
		r.setStatus(t, Status{State: StateEliminated}, ev.TimeMS)
		t.Eliminated = true
	case rule.damage:
		r.damage(t, ev.TimeMS)
	case rule.lifeCost > 0:
		if t.alive() && rule.downsOther {
			a.TimesDownedOthers++
		}
		r.down(t, rule.lifeCost, rule.reason, ev.TimeMS)
	}
}

func (r *run) spend(a *live, cost int) {
	if r.elimination() {
		a.SpecialPoints = max(0, a.SpecialPoints-cost)
	}
}

// down removes lives and schedules a reup; reaching zero lives eliminates.
func (r *run) down(t *live, cost int, reason Reason, now int64) {
	if !t.alive() {
		return
	}
	t.TimesDowned++
	t.rapidFire = false
	if t.nukeArmed {
		t.nukeArmed = false
		r.m.logger.Debug(r.ctx, "nuke cancelled", logger.String("token", t.Token), logger.Int64("time_ms", now))
	}
	if r.elimination() && t.Player() && cost > 0 {
		t.Lives = max(0, t.Lives-cost)
		if t.Lives == 0 {
			t.Eliminated = true
			r.setStatus(t, Status{State: StateEliminated}, now)
			return
		}
	}
	r.setStatus(t, Status{State: StateDown, Reason: reason}, now)
	r.scheduleReup(t, now)
}

// damage makes an active target resettable until its reup timer expires.
func (r *run) damage(t *live, now int64) {
	switch t.status.State {
	case StateActive, StateResettable:
		r.setStatus(t, Status{State: StateResettable}, now)
		r.scheduleReup(t, now)
	}
}

func (r *run) detonate(now int64, a *live) {
	a.nukeArmed = false
	a.Score += nukeScore
	for _, e := range r.entities {
		if !e.Player() || !r.reg.Opponents(&a.Entity, &e.Entity) {
			continue
		}
		if e.status.State == StateActive || e.status.State == StateResettable {
			a.TimesDownedOthers++
			r.down(e, nukeLifeCost, ReasonNuked, now)
		}
	}
}

func (r *run) resupply(ev *model.Event, t *live) {
	if t == nil || !t.alive() {
		return
	}
	if ev.Type == model.EventResupplyShots {
		t.Shots = min(t.profile.MaxShots, t.Shots+t.profile.ResupplyShots)
	} else {
		t.Lives = min(t.profile.MaxLives, t.Lives+t.profile.ResupplyLives)
	}
	r.setStatus(t, Status{State: StateDown, Reason: ReasonResupply}, ev.TimeMS)
	r.scheduleReup(t, ev.TimeMS)
}

// boost applies fn to every living teammate of a.
func (r *run) boost(a *live, fn func(*live)) {
	for _, e := range r.entities {
		if e == a || e.Team != a.Team || !e.Player() || !e.alive() {
			continue
		}
		fn(e)
	}
}

// diff appends every changed cell, row class and team total to f.
func (r *run) diff(f *Frame) {
	for i, e := range r.entities {
		cells := r.cells(e)
		for c, v := range cells {
			if r.lastCells[i][c] != v {
				f.Cells = append(f.Cells, CellDelta{Token: e.Token, Column: r.columns[c], Value: v})
			}
		}
		r.lastCells[i] = cells
		if cls := e.status.Class(); cls != r.lastRows[i] {
			f.Rows = append(f.Rows, RowStateDelta{Token: e.Token, Class: cls})
			r.lastRows[i] = cls
		}
	}
	scores := r.teamScores()
	if !sameScores(scores, r.lastScores) {
		f.TeamScores = scores
		r.lastScores = scores
	}
}

func sameScores(a, b []TeamScore) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// render substitutes entity tokens with styled names.
func (r *run) render(ev *model.Event) string {
	if ev.Actor == "" {
		return html.EscapeString(ev.Action)
	}
	var b strings.Builder
	b.WriteString(r.name(ev.Actor))
	b.WriteString(html.EscapeString(ev.Action))
	if ev.Target != "" {
		b.WriteString(r.name(ev.Target))
	}
	return b.String()
}

func (r *run) name(token string) string {
	e, ok := r.byToken[token]
	if !ok {
		return html.EscapeString(token)
	}
	team, _ := r.reg.Team(e.Team)
	return fmt.Sprintf(`<span class="%s">%s</span>`, r.reg.Tables().Class(team.Color), html.EscapeString(e.Name))
}

func (r *run) script(match *model.Match) *Script {
	s := &Script{
		MatchID:     match.ID,
		Mode:        match.Mode,
		DurationMS:  match.DurationMS,
		ElapsedMS:   match.ElapsedMS,
		Columns:     r.columns,
		Frames:      r.frames,
		Timeline:    r.timeline,
		ScoreSeries: r.series,
	}
	tables := r.reg.Tables()
	for _, t := range r.reg.Teams() {
		s.Teams = append(s.Teams, TeamInfo{Index: t.Index, Name: t.Name, Color: t.Color.String(), Class: tables.Class(t.Color)})
	}
	for i, e := range r.reg.Entities() {
		start := &live{Entity: *e, profile: tables.Profile(e.Role)}
		s.Rows = append(s.Rows, Row{
			Token: e.Token, Name: e.Name, Team: e.Team, Role: e.Role.String(),
			Class: start.status.Class(), Cells: r.cells(start),
		})
		l := r.entities[i]
		s.Final = append(s.Final, EntityState{
			Entity:   l.Entity,
			Status:   l.status,
			Accuracy: l.accuracy(),
			KD:       l.kd(),
			Goals:    l.goals,
			Assists:  l.assists,
			Steals:   l.steals,
			Blocks:   l.blocks,
			Passes:   l.passes,
		})
	}
	return s
}
