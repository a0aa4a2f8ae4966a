// Package loggen produces synthetic arena logs and drives them through a
// running service.
package loggen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/lasertrack/internal/domain/eventlog"
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/pkg/logger"
)

// matchSeedStride separates the per-match seeds of neighbouring run seeds.
const matchSeedStride = 1_000_003

var eliminationRoles = []model.Role{
	model.RoleCommander, model.RoleHeavy, model.RoleScout, model.RoleAmmo, model.RoleMedic,
}

// Player is one account in the generated pool.
type Player struct {
	AccountID string
	Name      string
	Skill     float64
}

// Match is one generated log plus the facts needed to check its import.
type Match struct {
	Index int
	Mode  model.Mode
	Start time.Time
	Arena string
	// Teams lists the account ids per team. Guests are left out.
	Teams [][]string
	// Totals are the team scores (elimination) or goals (ball) in the log.
	Totals []int
	Raw    []byte
}

// Winner returns the index of the team with the higher total, or
// model.NoWinner on a tie.
func (m Match) Winner() int {
	winner, best, tied := model.NoWinner, 0, false
	for i, v := range m.Totals {
		switch {
		case i == 0 || v > best:
			winner, best, tied = i, v, false
		case v == best:
			tied = true
		}
	}
	if tied {
		return model.NoWinner
	}
	return winner
}

// FileName is the name WriteFiles uses for m.
func (m Match) FileName() string {
	return fmt.Sprintf("%s-%s.tdf", m.Mode, eventlog.FormatStart(m.Start))
}

// Generator builds deterministic match logs. The same config always yields
// the same bytes.
type Generator struct {
	cfg    Config
	roster []Player
	logger logger.Logger
}

// NewGenerator validates cfg and draws the player pool.
func NewGenerator(cfg Config, l logger.Logger) (*Generator, error) {
	if cfg.Seed == 0 {
		return nil, fmt.Errorf("%w: seed must be non-zero", ErrInvalidConfig)
	}
	if cfg.Roster < 2 || cfg.TeamSize < 1 {
		return nil, fmt.Errorf("%w: roster %d, team size %d", ErrInvalidConfig, cfg.Roster, cfg.TeamSize)
	}
	if cfg.Matches < 0 {
		return nil, fmt.Errorf("%w: negative match count", ErrInvalidConfig)
	}
	if cfg.Arena == "" {
		cfg.Arena = DefaultArena
	}
	if cfg.Start.IsZero() {
		cfg.Start = DefaultStart
	}
	if l == nil {
		l = logger.GetOrNop()
	}

	faker := gofakeit.New(uint64(cfg.Seed))
	roster := make([]Player, cfg.Roster)
	for i := range roster {
		roster[i] = Player{
			AccountID: fmt.Sprintf("acc-%04d", i+1),
			Name:      faker.FirstName(),
			Skill:     faker.Float64Range(0.5, 1.5),
		}
	}
	return &Generator{cfg: cfg, roster: roster, logger: l}, nil
}

// Roster returns a copy of the player pool.
func (g *Generator) Roster() []Player { return append([]Player(nil), g.roster...) }

// Generate builds every configured match.
func (g *Generator) Generate(ctx context.Context) ([]Match, error) {
	g.logger.Info(ctx, "generating match logs",
		logger.Int("matches", g.cfg.Matches),
		logger.Int("roster", len(g.roster)),
		logger.Int64("seed", g.cfg.Seed))

	out := make([]Match, 0, g.cfg.Matches)
	for i := range g.cfg.Matches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation cancelled: %w", err)
		}
		m, err := g.Match(i)
		if err != nil {
			return nil, fmt.Errorf("match %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Match builds the i-th match. Each match has its own seed so any one of
// them can be rebuilt alone.
func (g *Generator) Match(i int) (Match, error) {
	faker := gofakeit.New(uint64(g.cfg.Seed)*matchSeedStride + uint64(i) + 1)
	mode := g.cfg.Mode
	if mode == model.ModeUnknown {
		mode = model.ModeElimination
		if i%2 == 1 {
			mode = model.ModeBall
		}
	}

	pool := g.Roster()
	faker.ShuffleAnySlice(pool)
	size := min(g.cfg.TeamSize, len(pool)/2)

	s := &sim{faker: faker, mode: mode}
	for team := range 2 {
		for j := range size {
			p := pool[team*size+j]
			s.slots = append(s.slots, &slot{
				token:  fmt.Sprintf("#%c%d", 'a'+team, j+1),
				team:   team,
				player: p,
				guest:  faker.Number(1, guestOneIn) == 1,
				role:   roleFor(mode, j),
			})
		}
	}

	m := Match{
		Index: i,
		Mode:  mode,
		Start: g.cfg.Start.Add(time.Duration(i) * DefaultMatchGap),
		Arena: g.cfg.Arena,
		Teams: make([][]string, 2),
	}
	for _, sl := range s.slots {
		if !sl.guest {
			m.Teams[sl.team] = append(m.Teams[sl.team], sl.player.AccountID)
		}
	}

	var buf bytes.Buffer
	w := eventlog.NewWriter(&buf)
	s.w = w
	s.header(m)
	if mode == model.ModeBall {
		s.playBall(ballDurationMS)
	} else {
		s.playElimination(matchDurationMS)
	}
	m.Totals = s.finish()
	if err := w.Close(); err != nil {
		return Match{}, err
	}
	m.Raw = buf.Bytes()
	return m, nil
}

// WriteFiles stores each match log under dir and returns the paths.
func WriteFiles(dir string, matches []Match) ([]string, error) {
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		p := filepath.Join(dir, m.FileName())
		if err := os.WriteFile(p, m.Raw, logFilePermission); err != nil {
			return paths, fmt.Errorf("write %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func roleFor(mode model.Mode, seat int) model.Role {
	if mode == model.ModeBall {
		return model.RoleBallPlayer
	}
	return eliminationRoles[seat%len(eliminationRoles)]
}

type slot struct {
	token  string
	team   int
	player Player
	guest  bool
	role   model.Role

	score  int
	downs  int
	goals  int
	passes int
	steals int
	stolen int
}

// sim plays one match and writes its records as it goes.
type sim struct {
	faker *gofakeit.Faker
	mode  model.Mode
	w     *eventlog.Writer
	slots []*slot
	now   int64
	endMS int64
}

func (s *sim) header(m Match) {
	desc, typ, durMS := eliminationDesc, 3, int64(matchDurationMS)
	second := model.Team{Index: 1, Name: "Earth", Color: model.ColorGreen}
	if m.Mode == model.ModeBall {
		desc, typ, durMS = ballDesc, 23, ballDurationMS
		second = model.Team{Index: 1, Name: "Ice", Color: model.ColorBlue}
	}
	s.w.System(eventlog.SystemHeader{FileVersion: "4", ProgramVersion: "1.2.0", Arena: m.Arena})
	s.w.Mission(eventlog.MissionHeader{Type: typ, Desc: desc, Start: m.Start, DurationMS: durMS})
	s.w.Team(model.Team{Index: 0, Name: "Fire", Color: model.ColorRed})
	s.w.Team(second)
	for i, sl := range s.slots {
		member := sl.player.AccountID
		if sl.guest {
			member = ""
		}
		s.w.Entity(eventlog.EntityStart{
			Token:      sl.token,
			Kind:       "player",
			Name:       sl.player.Name,
			Team:       sl.team,
			Level:      s.faker.Number(1, 5),
			Role:       int(sl.role),
			Battlesuit: fmt.Sprintf("S%02d", i+1),
			MemberID:   member,
		})
	}
	s.w.Event(model.Event{TimeMS: 0, Type: model.EventMissionStart, Action: "* Mission Start *"})
}

// tick advances the clock and reports whether play continues.
func (s *sim) tick(durationMS int64) bool {
	s.now += int64(s.faker.Number(minEventGapMS, maxEventGapMS))
	return s.now < durationMS
}

func (s *sim) pick(from []*slot) *slot { return from[s.faker.Number(0, len(from)-1)] }

func (s *sim) others(team int, keep func(*slot) bool) []*slot {
	var out []*slot
	for _, sl := range s.slots {
		if sl.team != team && keep(sl) {
			out = append(out, sl)
		}
	}
	return out
}

func (s *sim) mates(sl *slot) []*slot {
	var out []*slot
	for _, o := range s.slots {
		if o.team == sl.team && o != sl {
			out = append(out, o)
		}
	}
	return out
}

func (s *sim) award(sl *slot, delta int) {
	s.w.ScoreDelta(model.ScoreDelta{TimeMS: s.now, Token: sl.token, Old: sl.score, Delta: delta, New: sl.score + delta})
	sl.score += delta
}

// chance reports whether a is favoured over b in one exchange.
func (s *sim) chance(a, b float64) bool { return s.faker.Float64Range(0, 1) < a/(a+b) }

func (s *sim) playElimination(durationMS int64) {
	for s.tick(durationMS) {
		a := s.pick(s.slots)
		targets := s.others(a.team, func(o *slot) bool { return o.downs < maxDownsPerPlayer })
		if len(targets) == 0 || !s.chance(a.player.Skill, 1) {
			s.w.Event(model.Event{TimeMS: s.now, Type: model.EventMiss, Actor: a.token, Action: " misses"})
			continue
		}
		t := s.pick(targets)
		typ := model.EventDamagedOpponent
		if s.chance(a.player.Skill, t.player.Skill) {
			typ = model.EventDownedOpponent
			t.downs++
		}
		s.w.Event(model.Event{TimeMS: s.now, Type: typ, Actor: a.token, Action: " zaps ", Target: t.token})
		s.award(a, downedScore)
		s.award(t, downedTargetScore)
	}
	s.endMS = durationMS
}

func (s *sim) playBall(durationMS int64) {
	var holder *slot
	for s.tick(durationMS) {
		if holder == nil {
			holder = s.pick(s.slots)
			s.w.Event(model.Event{TimeMS: s.now, Type: model.EventGetsBall, Actor: holder.token, Action: " gets the ball"})
			continue
		}
		switch roll := s.faker.Number(1, 100); {
		case roll <= 45 && len(s.mates(holder)) > 0:
			to := s.pick(s.mates(holder))
			s.w.Event(model.Event{TimeMS: s.now, Type: model.EventPass, Actor: holder.token, Action: " passes to ", Target: to.token})
			holder.passes++
			holder = to
		case roll <= 70:
			keeper := s.pick(s.others(holder.team, func(*slot) bool { return true }))
			if s.chance(holder.player.Skill, keeper.player.Skill*2) {
				s.w.Event(model.Event{TimeMS: s.now, Type: model.EventGoal, Actor: holder.token, Action: " scores!"})
				holder.goals++
				s.award(holder, goalScore)
				holder = nil
				continue
			}
			s.w.Event(model.Event{TimeMS: s.now, Type: model.EventGetsBall, Actor: keeper.token, Action: " gets the ball"})
			holder = keeper
		default:
			thief := s.pick(s.others(holder.team, func(*slot) bool { return true }))
			if s.chance(thief.player.Skill, holder.player.Skill) {
				s.w.Event(model.Event{TimeMS: s.now, Type: model.EventSteal, Actor: thief.token, Action: " steals from ", Target: holder.token})
				thief.steals++
				holder.stolen++
				holder = thief
			}
		}
	}
	s.endMS = durationMS
}

// finish writes the closing records and returns the team totals.
func (s *sim) finish() []int {
	s.w.Event(model.Event{TimeMS: s.endMS, Type: model.EventMissionEnd, Action: "* Mission End *"})
	totals := make([]int, 2)
	for _, sl := range s.slots {
		s.w.EntityEnd(model.EntityEnd{TimeMS: s.endMS, Token: sl.token, EndType: 1, Score: sl.score})
		if s.mode == model.ModeBall {
			s.w.FinalStats(model.FinalStats{Token: sl.token, Ball: &model.BallStats{
				Goals:       sl.goals,
				Passes:      sl.passes,
				Steals:      sl.steals,
				TimesStolen: sl.stolen,
			}})
			totals[sl.team] += sl.goals
			continue
		}
		totals[sl.team] += sl.score
	}
	return totals
}
