package registry_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/lasertrack/internal/domain/eventlog"
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/registry"
)

type failingDirectory struct{}

func (failingDirectory) Resolve(context.Context, string, string) (string, error) {
	return "", errors.New("directory offline")
}

func sampleLog(mode model.Mode) *eventlog.Log {
	return &eventlog.Log{
		Mode: mode,
		Teams: []model.Team{
			{Index: 1, Name: "Earth", Color: model.ColorGreen},
			{Index: 0, Name: "Fire", Color: model.ColorRed},
			{Index: 2, Name: "Neutral", Color: model.ColorNeutral},
		},
		Entities: []eventlog.EntityStart{
			{Token: "#c", Kind: "player", Name: "Cmdr", Team: 0, Role: 1, MemberID: "m-zed"},
			{Token: "#s", Kind: "player", Name: "Scout", Team: 1, Role: 3, MemberID: "m-amy"},
			{Token: "#g", Kind: "player", Name: "Guest", Team: 1, Role: 4},
			{Token: "@b1", Kind: "base", Name: "Red Base", Team: 0},
			{Token: "#n", Kind: "player", Name: "Ref", Team: 2, Role: 5, MemberID: "m-ref"},
		},
	}
}

func TestBuildElimination(t *testing.T) {
	Convey("Given an elimination roster", t, func() {
		ctx := context.Background()
		reg, err := registry.Build(ctx, sampleLog(model.ModeElimination), nil)
		So(err, ShouldBeNil)

		Convey("Then roles get their starting resources", func() {
			c, ok := reg.Lookup("#c")
			So(ok, ShouldBeTrue)
			So(c.Role, ShouldEqual, model.RoleCommander)
			So(c.Lives, ShouldEqual, 15)
			So(c.Shots, ShouldEqual, 30)
			So(c.Missiles, ShouldEqual, 5)

			g, _ := reg.Lookup("#g")
			So(g.Role, ShouldEqual, model.RoleAmmo)
			So(g.Guest(), ShouldBeTrue)
			So(g.Shots, ShouldEqual, 15)

			b, _ := reg.Lookup("@b1")
			So(b.Kind, ShouldEqual, model.KindBase)
			So(b.Role, ShouldEqual, model.RoleNone)
			So(b.Lives, ShouldEqual, 0)
		})

		Convey("Then member ids resolve to accounts", func() {
			So(reg.Accounts(), ShouldResemble, []string{"m-amy", "m-ref", "m-zed"})
		})

		Convey("Then teams are ordered and membership is queryable", func() {
			So(reg.Teams()[0].Name, ShouldEqual, "Fire")
			So(reg.TeamMembers(1), ShouldHaveLength, 2)
			So(reg.PlayingTeams(), ShouldResemble, []int{0, 1})
		})

		Convey("Then actor and target slots follow their policies", func() {
			_, err := reg.MustActor("#zz")
			So(errors.Is(err, registry.ErrUnknownActor), ShouldBeTrue)
			_, ok := reg.Target(ctx, "#zz")
			So(ok, ShouldBeFalse)
			_, ok = reg.Target(ctx, "")
			So(ok, ShouldBeFalse)
		})

		Convey("Then opposition ignores teammates and neutrals", func() {
			c, _ := reg.Lookup("#c")
			s, _ := reg.Lookup("#s")
			g, _ := reg.Lookup("#g")
			n, _ := reg.Lookup("#n")
			So(reg.Opponents(c, s), ShouldBeTrue)
			So(reg.Opponents(s, g), ShouldBeFalse)
			So(reg.Opponents(c, n), ShouldBeFalse)
		})

		Convey("Then a stored snapshot rebuilds the same registry", func() {
			m := &model.Match{Mode: model.ModeElimination, Teams: reg.Teams(), Entities: reg.Snapshot()}
			again, err := registry.FromMatch(m)
			So(err, ShouldBeNil)
			So(again.Accounts(), ShouldResemble, reg.Accounts())
			c, _ := again.Lookup("#c")
			So(c.Lives, ShouldEqual, 15)
		})
	})
}

func TestBuildBallAndDirectories(t *testing.T) {
	Convey("Given a ball roster and a mapped directory", t, func() {
		ctx := context.Background()
		dir := registry.NewMapDirectory(map[string]string{"m-zed": "acc-1"})
		dir.Link("m-amy", "acc-2")

		reg, err := registry.Build(ctx, sampleLog(model.ModeBall), dir)
		So(err, ShouldBeNil)

		Convey("Then every player is a ball player without resources", func() {
			s, _ := reg.Lookup("#s")
			So(s.Role, ShouldEqual, model.RoleBallPlayer)
			So(s.Lives, ShouldEqual, 0)
		})

		Convey("Then unmapped members become guests", func() {
			So(reg.Accounts(), ShouldResemble, []string{"acc-1", "acc-2"})
			n, _ := reg.Lookup("#n")
			So(n.Guest(), ShouldBeTrue)
		})
	})

	Convey("Given a directory that fails", t, func() {
		reg, err := registry.Build(context.Background(), sampleLog(model.ModeElimination), failingDirectory{})

		Convey("Then everyone is a guest", func() {
			So(err, ShouldBeNil)
			So(reg.Accounts(), ShouldBeEmpty)
		})
	})

	Convey("Given a roster with a repeated token", t, func() {
		l := sampleLog(model.ModeElimination)
		l.Entities = append(l.Entities, eventlog.EntityStart{Token: "#c", Kind: "player", Role: 2})

		Convey("Then building fails", func() {
			_, err := registry.Build(context.Background(), l, nil)
			So(errors.Is(err, registry.ErrDuplicateToken), ShouldBeTrue)
		})
	})
}
