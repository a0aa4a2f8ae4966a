package replay_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/lasertrack/internal/domain/eventlog"
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/registry"
	"github.com/okian/lasertrack/internal/domain/replay"
)

var teams = []model.Team{
	{Index: 0, Name: "Fire", Color: model.ColorRed},
	{Index: 1, Name: "Earth", Color: model.ColorGreen},
}

func player(token, name string, team int, role model.Role) eventlog.EntityStart {
	return eventlog.EntityStart{Token: token, Kind: "player", Name: name, Team: team, Role: int(role), MemberID: "m" + token}
}

func build(mode model.Mode, roster []eventlog.EntityStart, events []model.Event) (*model.Match, *registry.Registry) {
	l := &eventlog.Log{Mode: mode, Teams: teams, Entities: roster, Events: events}
	l.Mission.DurationMS = 900000
	reg, err := registry.Build(context.Background(), l, registry.IdentityDirectory{})
	if err != nil {
		panic(err)
	}
	m := l.Match()
	m.ID = "match-1"
	m.Entities = reg.Snapshot()
	return m, reg
}

func ev(t int64, typ model.EventType, actor, action, target string) model.Event {
	return model.Event{TimeMS: t, Type: typ, Actor: actor, Action: action, Target: target}
}

func end(t int64) model.Event {
	return model.Event{TimeMS: t, Type: model.EventMissionEnd, Action: "* Mission End *"}
}

func cellsFor(f replay.Frame, token string) map[string]string {
	out := map[string]string{}
	for _, c := range f.Cells {
		if c.Token == token {
			out[c.Column] = c.Value
		}
	}
	return out
}

func run(m *model.Match, reg *registry.Registry) *replay.Script {
	s, err := replay.New().Run(context.Background(), m, reg)
	So(err, ShouldBeNil)
	return s
}

func TestDownedTwice(t *testing.T) {
	Convey("Given a commander who downs an opposing scout twice 100ms apart", t, func() {
		m, reg := build(model.ModeElimination,
			[]eventlog.EntityStart{player("#a", "Ace", 0, model.RoleCommander), player("#b", "Bo", 1, model.RoleScout)},
			[]model.Event{
				ev(1000, model.EventDownedOpponent, "#a", " zaps ", "#b"),
				ev(1100, model.EventDownedOpponent, "#a", " zaps ", "#b"),
				end(20000),
			})
		s := run(m, reg)

		Convey("Then each down costs one life and counts a shot", func() {
			a, _ := s.FinalState("#a")
			b, _ := s.FinalState("#b")
			So(b.Lives, ShouldEqual, 13)
			So(b.TimesDowned, ShouldEqual, 2)
			So(a.ShotsFired, ShouldEqual, 2)
			So(a.ShotsHit, ShouldEqual, 2)
			So(a.Shots, ShouldEqual, 28)
			So(a.Accuracy, ShouldEqual, 1.0)
			So(a.TimesDownedOthers, ShouldEqual, 2)
			So(a.KD, ShouldEqual, 0)
			So(a.Score, ShouldEqual, 200)
			So(b.Score, ShouldEqual, -40)
			So(a.SpecialPoints, ShouldEqual, 2)
		})

		Convey("Then the first frame carries the recomputed accuracy and the down", func() {
			f := s.Frames[0]
			So(f.TimeMS, ShouldEqual, 1000)
			So(cellsFor(f, "#a"), ShouldResemble, map[string]string{"score": "100", "shots": "29", "sp": "1", "accuracy": "1.00"})
			So(cellsFor(f, "#b"), ShouldResemble, map[string]string{"score": "-20", "lives": "14"})
			So(f.Rows, ShouldResemble, []replay.RowStateDelta{{Token: "#b", Class: "down-zapped"}})
			So(f.TeamScores, ShouldResemble, []replay.TeamScore{{Team: 0, Score: 100}, {Team: 1, Score: -20}})
			So(f.Audio, ShouldResemble, []string{"zap"})
			So(f.Message, ShouldEqual, `<span class="team-red">Ace</span> zaps <span class="team-green">Bo</span>`)
		})

		Convey("Then only the latest reup fires", func() {
			So(s.Frames, ShouldHaveLength, 4)
			reup := s.Frames[2]
			So(reup.TimeMS, ShouldEqual, 9100)
			So(reup.Message, ShouldBeEmpty)
			So(reup.Rows, ShouldResemble, []replay.RowStateDelta{{Token: "#b", Class: "active"}})
			b, _ := s.FinalState("#b")
			So(b.Status.State, ShouldEqual, replay.StateActive)
		})
	})
}

func TestNukeDetonation(t *testing.T) {
	Convey("Given three living opponents when a nuke detonates", t, func() {
		m, reg := build(model.ModeElimination,
			[]eventlog.EntityStart{
				player("#r1", "Red Cmdr", 0, model.RoleCommander),
				player("#r2", "Red Heavy", 0, model.RoleHeavy),
				player("#g1", "Green Scout", 1, model.RoleScout),
				player("#g2", "Green Heavy", 1, model.RoleHeavy),
				player("#g3", "Green Medic", 1, model.RoleMedic),
			},
			[]model.Event{
				ev(4000, model.EventActivateNuke, "#r1", " activates nuke", ""),
				ev(5000, model.EventDetonateNuke, "#r1", " detonates nuke", ""),
				end(60000),
			})
		s := run(m, reg)

		Convey("Then each opponent loses exactly three lives in one frame", func() {
			f := s.Frames[1]
			So(f.TimeMS, ShouldEqual, 5000)
			So(f.Rows, ShouldResemble, []replay.RowStateDelta{
				{Token: "#g1", Class: "down-nuked"},
				{Token: "#g2", Class: "down-nuked"},
				{Token: "#g3", Class: "down-nuked"},
			})
			for tok, lives := range map[string]int{"#g1": 12, "#g2": 7, "#g3": 17} {
				st, _ := s.FinalState(tok)
				So(st.Lives, ShouldEqual, lives)
			}
			r2, _ := s.FinalState("#r2")
			So(r2.Lives, ShouldEqual, 10)
			r1, _ := s.FinalState("#r1")
			So(r1.Score, ShouldEqual, 500)
			So(r1.SpecialPoints, ShouldEqual, 0)
		})

		Convey("Then all three reup together 8s later", func() {
			f := s.Frames[2]
			So(f.TimeMS, ShouldEqual, 13000)
			So(f.Rows, ShouldHaveLength, 3)
			for _, row := range f.Rows {
				So(row.Class, ShouldEqual, "active")
			}
		})
	})
}

func TestResettableAndElimination(t *testing.T) {
	Convey("Given damage and repeated missiles", t, func() {
		events := []model.Event{ev(1000, model.EventDamagedOpponent, "#a", " hits ", "#h")}
		for i := int64(0); i < 6; i++ {
			events = append(events, ev(2000+i*100, model.EventMissileDownOpponent, "#a", " missiles ", "#h"))
		}
		events = append(events, end(30000))
		m, reg := build(model.ModeElimination,
			[]eventlog.EntityStart{player("#a", "Ace", 0, model.RoleCommander), player("#h", "Hal", 1, model.RoleHeavy)},
			events)
		s := run(m, reg)

		Convey("Then damage makes the target resettable without a life loss", func() {
			f := s.Frames[0]
			So(f.Rows, ShouldResemble, []replay.RowStateDelta{{Token: "#h", Class: "resettable"}})
			So(cellsFor(f, "#h")["lives"], ShouldEqual, "")
		})

		Convey("Then lives clamp at zero and elimination is terminal", func() {
			h, _ := s.FinalState("#h")
			So(h.Lives, ShouldEqual, 0)
			So(h.Eliminated, ShouldBeTrue)
			So(h.Status.State, ShouldEqual, replay.StateEliminated)
			a, _ := s.FinalState("#a")
			So(a.Missiles, ShouldEqual, 0)
			So(a.TimesDownedOthers, ShouldEqual, 5)
			So(s.Frames[5].Audio, ShouldContain, "eliminated")
			for _, f := range s.Frames[6:] {
				for _, row := range f.Rows {
					So(row.Token == "#h" && row.Class == "active", ShouldBeFalse)
				}
			}
		})
	})
}

func TestBaseDestroyedCue(t *testing.T) {
	Convey("Given a commander who destroys the opposing base", t, func() {
		m, reg := build(model.ModeElimination,
			[]eventlog.EntityStart{
				player("#a", "Ace", 0, model.RoleCommander),
				player("#b", "Bo", 1, model.RoleScout),
				{Token: "@b1", Kind: "base", Name: "Earth Base", Team: 1},
			},
			[]model.Event{
				ev(1000, model.EventDestroyBase, "#a", " destroys ", "@b1"),
				end(20000),
			})
		s := run(m, reg)

		Convey("Then only the base cue plays", func() {
			So(s.Frames[0].Audio, ShouldContain, "base-destroyed")
			So(s.Frames[0].Audio, ShouldNotContain, "eliminated")
		})
	})
}

func TestResourcesAndSpecials(t *testing.T) {
	Convey("Given resupplies, boosts and rapid fire", t, func() {
		events := []model.Event{
			ev(500, model.EventMiss, "#m", " misses", ""),
			ev(600, model.EventMiss, "#m", " misses", ""),
			ev(700, model.EventDownedOpponent, "#hv", " zaps ", "#x"),
		}
		for i := int64(0); i < 7; i++ {
			events = append(events, ev(1000+i*10000, model.EventResupplyShots, "#m", " resupplies ", "#c"))
		}
		events = append(events,
			ev(80000, model.EventDownedOpponent, "#c", " zaps ", "#x"),
			ev(80100, model.EventActivateRapidFire, "#c", " rapid fire", ""),
			ev(80200, model.EventDownedOpponent, "#c", " zaps ", "#x"),
			ev(80300, model.EventResupplyLives, "#md", " heals ", "#x2"),
			ev(80400, model.EventLifeBoost, "#md", " life boost", ""),
			end(120000),
		)
		m, reg := build(model.ModeElimination,
			[]eventlog.EntityStart{
				player("#c", "Cmdr", 0, model.RoleCommander),
				player("#m", "Ammo", 0, model.RoleAmmo),
				player("#hv", "Heavy", 0, model.RoleHeavy),
				player("#x", "Scout", 1, model.RoleScout),
				player("#md", "Medic", 1, model.RoleMedic),
				player("#x2", "Medic2", 1, model.RoleMedic),
			}, events)
		s := run(m, reg)

		Convey("Then the ammo role fires without spending shots", func() {
			am, _ := s.FinalState("#m")
			So(am.ShotsFired, ShouldEqual, 2)
			So(am.Shots, ShouldEqual, 15)
			So(am.Accuracy, ShouldEqual, 0)
		})

		Convey("Then shot resupplies clamp to the role maximum", func() {
			c, _ := s.FinalState("#c")
			So(c.Shots, ShouldEqual, 58)
			So(c.Shots, ShouldBeLessThanOrEqualTo, 60)
		})

		Convey("Then heavies and rapid fire earn no special points", func() {
			hv, _ := s.FinalState("#hv")
			So(hv.SpecialPoints, ShouldEqual, 0)
			c, _ := s.FinalState("#c")
			So(c.SpecialPoints, ShouldEqual, 0)
		})

		Convey("Then medics gain no lives from resupply and boosts reach teammates", func() {
			x2, _ := s.FinalState("#x2")
			So(x2.Lives, ShouldEqual, 20)
			x, _ := s.FinalState("#x")
			So(x.Lives, ShouldEqual, 12+5)
			md, _ := s.FinalState("#md")
			So(md.SpecialPoints, ShouldEqual, 0)
		})
	})
}

func TestTokenPolicies(t *testing.T) {
	roster := []eventlog.EntityStart{player("#a", "<Ace>", 0, model.RoleCommander), player("#b", "Bo", 1, model.RoleScout)}

	Convey("Given an event whose actor is not registered", t, func() {
		m, reg := build(model.ModeElimination, roster, []model.Event{ev(1000, model.EventDownedOpponent, "#ghost", " zaps ", "#b")})

		Convey("Then the replay aborts", func() {
			_, err := replay.New().Run(context.Background(), m, reg)
			So(errors.Is(err, registry.ErrUnknownActor), ShouldBeTrue)
		})
	})

	Convey("Given an event whose target is not registered", t, func() {
		m, reg := build(model.ModeElimination, roster, []model.Event{ev(1000, model.EventDownedOpponent, "#a", " zaps ", "#ghost"), end(2000)})
		s := run(m, reg)

		Convey("Then only the actor side applies and names are escaped", func() {
			a, _ := s.FinalState("#a")
			So(a.Score, ShouldEqual, 100)
			So(s.Frames[0].Message, ShouldEqual, `<span class="team-red">&lt;Ace&gt;</span> zaps #ghost`)
		})
	})
}

func TestBallReplay(t *testing.T) {
	Convey("Given a ball match", t, func() {
		m, reg := build(model.ModeBall,
			[]eventlog.EntityStart{player("#a", "Ace", 0, 0), player("#b", "Bo", 1, 0)},
			[]model.Event{
				ev(1000, model.EventGetsBall, "#a", " gets the ball", ""),
				ev(2000, model.EventBlock, "#b", " blocks ", "#a"),
				ev(3000, model.EventSteal, "#b", " steals from ", "#a"),
				ev(4000, model.EventGoal, "#b", " scores!", ""),
				ev(5000, model.EventDownedOpponent, "#a", " zaps ", "#b"),
				end(61000),
			})
		s := run(m, reg)

		Convey("Then ball columns and counters are tracked", func() {
			So(s.Columns, ShouldResemble, []string{"score", "goals", "assists", "steals", "blocks", "passes"})
			b, _ := s.FinalState("#b")
			So(b.Goals, ShouldEqual, 1)
			So(b.Steals, ShouldEqual, 1)
			So(b.Blocks, ShouldEqual, 1)
			So(b.Score, ShouldEqual, -20+1)
			So(b.Lives, ShouldEqual, 0)
			So(b.Eliminated, ShouldBeFalse)
			So(s.Frames[1].Rows, ShouldResemble, []replay.RowStateDelta{{Token: "#a", Class: "down-other"}})
			So(s.Frames[3].Audio, ShouldResemble, []string{"goal"})
		})

		Convey("Then the score series is sampled every 30s through the end", func() {
			var times []int64
			for _, p := range s.ScoreSeries {
				times = append(times, p.TimeMS)
			}
			So(times, ShouldResemble, []int64{0, 30000, 60000, 61000})
			last := s.ScoreSeries[len(s.ScoreSeries)-1]
			So(last.Scores, ShouldResemble, []replay.TeamScore{{Team: 0, Score: 100}, {Team: 1, Score: -19}})
		})
	})
}

func TestDeterminism(t *testing.T) {
	Convey("Given the same match replayed twice", t, func() {
		m, reg := build(model.ModeElimination,
			[]eventlog.EntityStart{
				player("#a", "Ace", 0, model.RoleCommander),
				player("#b", "Bo", 1, model.RoleScout),
				player("#c", "Cy", 1, model.RoleMedic),
			},
			[]model.Event{
				ev(1000, model.EventDamagedOpponent, "#a", " hits ", "#b"),
				ev(1500, model.EventDownedOpponent, "#b", " zaps ", "#a"),
				ev(2000, model.EventDetonateNuke, "#a", " nukes", ""),
				ev(9000, model.EventMiss, "#c", " misses", ""),
				end(45000),
			})
		first := run(m, reg)
		second := run(m, reg)

		Convey("Then the scripts are identical", func() {
			So(cmp.Diff(first, second), ShouldBeEmpty)
		})
	})
}
