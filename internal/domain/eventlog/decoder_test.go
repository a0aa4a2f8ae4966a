package eventlog_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/text/encoding/unicode"

	"github.com/okian/lasertrack/internal/domain/eventlog"
	"github.com/okian/lasertrack/internal/domain/model"
)

var start = time.Date(2024, 5, 4, 18, 0, 0, 0, time.UTC)

func writeLog(events []model.Event, extra func(w *eventlog.Writer)) []byte {
	var buf bytes.Buffer
	w := eventlog.NewWriter(&buf)
	w.System(eventlog.SystemHeader{FileVersion: "4", ProgramVersion: "1.2.0", Arena: "Northside"})
	w.Mission(eventlog.MissionHeader{Type: 3, Desc: "Space Marines 5 Tournament", Start: start, DurationMS: 900000})
	w.Team(model.Team{Index: 0, Name: "Fire", Color: model.ColorRed})
	w.Team(model.Team{Index: 1, Name: "Earth", Color: model.ColorGreen})
	w.Entity(eventlog.EntityStart{Token: "#a", Kind: "player", Name: "Ace", Team: 0, Level: 3, Role: 1, Battlesuit: "S01", MemberID: "m-1"})
	w.Entity(eventlog.EntityStart{Token: "#b", Kind: "player", Name: "Bo", Team: 1, Level: 1, Role: 3, Battlesuit: "S02"})
	for _, ev := range events {
		w.Event(ev)
	}
	if extra != nil {
		extra(w)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func TestDecodeUTF16Log(t *testing.T) {
	Convey("Given a UTF-16 log written in arena format", t, func() {
		raw := writeLog([]model.Event{
			{TimeMS: 0, Type: model.EventMissionStart, Action: "* Mission Start *"},
			{TimeMS: 2000, Type: model.EventDownedOpponent, Actor: "#a", Action: " zaps ", Target: "#b"},
			{TimeMS: 1500, Type: model.EventMiss, Actor: "#b", Action: " misses"},
			{TimeMS: 900000, Type: model.EventMissionEnd, Action: "* Mission End *"},
		}, func(w *eventlog.Writer) {
			w.Comment("scores follow")
			w.ScoreDelta(model.ScoreDelta{TimeMS: 2000, Token: "#a", Old: 0, Delta: 100, New: 100})
			w.EntityEnd(model.EntityEnd{TimeMS: 900000, Token: "#a", EndType: 1, Score: 100})
			w.FinalStats(model.FinalStats{Token: "#a", Elimination: &model.EliminationStats{ShotsHit: 1, ShotsFired: 1, MissiledTeam: 4}})
			w.FinalStats(model.FinalStats{Token: "#b", Ball: &model.BallStats{Goals: 2, ShotsFired: 9}})
			w.StateChange(model.StateChange{TimeMS: 2000, Token: "#b", Code: 2})
		})
		So(raw[:2], ShouldResemble, []byte{0xFF, 0xFE})

		Convey("When decoding", func() {
			l, err := eventlog.NewDecoder().Decode(context.Background(), bytes.NewReader(raw))
			So(err, ShouldBeNil)

			Convey("Then headers and rosters are typed", func() {
				So(l.System.Arena, ShouldEqual, "Northside")
				So(l.Mission.Start, ShouldEqual, start)
				So(l.Mission.DurationMS, ShouldEqual, 900000)
				So(l.Mode, ShouldEqual, model.ModeElimination)
				So(l.Teams, ShouldHaveLength, 2)
				So(l.Teams[1].Color, ShouldEqual, model.ColorGreen)
				So(l.Entities, ShouldHaveLength, 2)
				So(l.Entities[0].MemberID, ShouldEqual, "m-1")
				So(l.Entities[1].MemberID, ShouldBeEmpty)
				So(l.Skipped, ShouldEqual, 0)
			})

			Convey("Then events are time ordered with decomposed slots", func() {
				So(l.Events, ShouldHaveLength, 4)
				So(l.Events[1].Type, ShouldEqual, model.EventMiss)
				So(l.Events[1].Actor, ShouldEqual, "#b")
				So(l.Events[1].Target, ShouldBeEmpty)
				So(l.Events[2].Actor, ShouldEqual, "#a")
				So(l.Events[2].Action, ShouldEqual, " zaps ")
				So(l.Events[2].Target, ShouldEqual, "#b")
				So(l.Events[0].Actor, ShouldBeEmpty)
				So(l.Events[0].Action, ShouldEqual, "* Mission Start *")
			})

			Convey("Then trailing records are decoded by kind", func() {
				So(l.ScoreDeltas[0].New, ShouldEqual, 100)
				So(l.EntityEnds[0].Score, ShouldEqual, 100)
				So(l.FinalStats[0].Elimination.MissiledTeam, ShouldEqual, 4)
				So(l.FinalStats[1].Ball.Goals, ShouldEqual, 2)
				So(l.FinalStats[1].Ball.ShotsFired, ShouldEqual, 9)
				So(l.StateChanges[0].Code, ShouldEqual, 2)
			})

			Convey("Then elapsed time comes from the mission end", func() {
				So(l.ElapsedMS(), ShouldEqual, 900000)
				So(l.EndedEarly(), ShouldBeFalse)
				m := l.Match()
				So(m.Arena, ShouldEqual, "Northside")
				So(m.Winner, ShouldEqual, model.NoWinner)
				So(m.Events, ShouldHaveLength, 4)
			})
		})
	})
}

func TestDecodeSkipsBadLines(t *testing.T) {
	Convey("Given a UTF-8 log with malformed and unknown lines", t, func() {
		text := strings.Join([]string{
			"0\t4\t1.2.0\tNorthside",
			"1\t3\tLaserball League\t20240504180000\t600000\t0",
			"; a comment",
			"2\t0\tFire\t1\tred",
			"2\t1\tEarth\t9\tmystery",
			"8\tunknown\trecord",
			"4\tabc\t0202\t#a\t misses",
			"4\t100\t0FFF\t#a\tx",
			"4\t200\t1101\t#a\t scores!\t#x\tbonus",
			"5\t200\t#a\t0\t1",
			"7\t#a\t1\t2",
			"",
		}, "\r\n")

		Convey("When decoding", func() {
			l, err := eventlog.NewDecoder().Decode(context.Background(), strings.NewReader(text))

			Convey("Then bad lines are skipped and counted", func() {
				So(err, ShouldBeNil)
				So(l.Mode, ShouldEqual, model.ModeBall)
				So(l.Teams, ShouldHaveLength, 1)
				So(l.Events, ShouldHaveLength, 1)
				So(l.Events[0].Extra, ShouldResemble, []string{"bonus"})
				So(l.Skipped, ShouldEqual, 6)
			})
		})
	})

	Convey("Given UTF-16 without a byte order mark", t, func() {
		enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
		raw, err := enc.Bytes([]byte("0\t4\t1\tEast\r\n1\t1\tSpace Marines 5\t20240504180000\t900000\t0\r\n"))
		So(err, ShouldBeNil)

		l, err := eventlog.NewDecoder().Decode(context.Background(), bytes.NewReader(raw))
		So(err, ShouldBeNil)
		So(l.System.Arena, ShouldEqual, "East")
		So(l.Mode, ShouldEqual, model.ModeElimination)
	})
}

func TestDecodeMissingHeader(t *testing.T) {
	Convey("Given a log without a match header", t, func() {
		text := "0\t4\t1.2.0\tNorthside\r\n4\t100\t0202\t#a\t misses\r\n"

		Convey("Then decoding aborts", func() {
			l, err := eventlog.NewDecoder().Decode(context.Background(), strings.NewReader(text))
			So(l, ShouldBeNil)
			So(errors.Is(err, eventlog.ErrMissingHeader), ShouldBeTrue)
		})
	})

	Convey("Given a log whose match header is malformed", t, func() {
		text := "0\t4\t1.2.0\tNorthside\r\n1\t3\tSpace Marines 5\tyesterday\t900000\t0\r\n"

		Convey("Then the header counts as absent", func() {
			_, err := eventlog.NewDecoder().Decode(context.Background(), strings.NewReader(text))
			So(errors.Is(err, eventlog.ErrMissingHeader), ShouldBeTrue)
		})
	})
}

func TestImportPolicies(t *testing.T) {
	Convey("Given decoded logs", t, func() {
		ctx := context.Background()

		Convey("When a match ended early under the floor", func() {
			raw := writeLog([]model.Event{
				{TimeMS: 0, Type: model.EventMissionStart, Action: "start"},
				{TimeMS: 119000, Type: model.EventMissionEnd, Action: "end"},
			}, nil)
			l, err := eventlog.NewDecoder().Decode(ctx, bytes.NewReader(raw))
			So(err, ShouldBeNil)

			Convey("Then no match is produced", func() {
				So(l.EndedEarly(), ShouldBeTrue)
				So(l.ElapsedMS(), ShouldEqual, 119000)
				So(errors.Is(l.Check(model.ModeElimination, 180000), eventlog.ErrFalseStart), ShouldBeTrue)
			})
		})

		Convey("When a match ended early above the floor", func() {
			raw := writeLog([]model.Event{
				{TimeMS: 0, Type: model.EventMissionStart, Action: "start"},
				{TimeMS: 400000, Type: model.EventMiss, Actor: "#a", Action: " misses"},
			}, nil)
			l, err := eventlog.NewDecoder().Decode(ctx, bytes.NewReader(raw))
			So(err, ShouldBeNil)

			Convey("Then the last event sets elapsed time and the match is kept", func() {
				So(l.ElapsedMS(), ShouldEqual, 400000)
				So(l.EndedEarly(), ShouldBeTrue)
				So(l.Check(model.ModeUnknown, 180000), ShouldBeNil)
			})
		})

		Convey("When the mode tag does not match", func() {
			raw := writeLog(nil, nil)
			l, err := eventlog.NewDecoder().Decode(ctx, bytes.NewReader(raw))
			So(err, ShouldBeNil)

			Convey("Then the match is rejected", func() {
				So(errors.Is(l.Check(model.ModeBall, 0), eventlog.ErrModeMismatch), ShouldBeTrue)
			})
		})

		Convey("When custom mode tags are configured", func() {
			raw := writeLog(nil, nil)
			l, err := eventlog.NewDecoder(eventlog.WithModeTags("Nope", "Tournament")).Decode(ctx, bytes.NewReader(raw))
			So(err, ShouldBeNil)
			So(l.Mode, ShouldEqual, model.ModeBall)
		})
	})
}
