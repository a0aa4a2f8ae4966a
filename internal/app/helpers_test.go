package service_test

import (
	"bytes"
	"time"

	"github.com/okian/lasertrack/internal/domain/eventlog"
	"github.com/okian/lasertrack/internal/domain/model"
)

var epoch = time.Date(2024, 3, 1, 19, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return epoch.Add(24 * time.Hour) }

// duel describes a two-player elimination log where the red player downs
// the green one and wins on score.
type duel struct {
	start     time.Time
	arena     string
	red       string
	green     string
	elapsedMS int64
	ghostShot bool
}

func newDuel(start time.Time, red, green string) duel {
	return duel{start: start, arena: "Northside", red: red, green: green, elapsedMS: 900_000}
}

func (d duel) bytes() []byte {
	var buf bytes.Buffer
	w := eventlog.NewWriter(&buf)
	w.System(eventlog.SystemHeader{FileVersion: "4", ProgramVersion: "1.2.0", Arena: d.arena})
	w.Mission(eventlog.MissionHeader{Type: 3, Desc: "Space Marines 5 Tournament", Start: d.start, DurationMS: 900_000})
	w.Team(model.Team{Index: 0, Name: "Fire", Color: model.ColorRed})
	w.Team(model.Team{Index: 1, Name: "Earth", Color: model.ColorGreen})
	w.Entity(eventlog.EntityStart{Token: "#r", Kind: "player", Name: "Red", Team: 0, Level: 3, Role: int(model.RoleCommander), Battlesuit: "S01", MemberID: d.red})
	w.Entity(eventlog.EntityStart{Token: "#g", Kind: "player", Name: "Green", Team: 1, Level: 2, Role: int(model.RoleHeavy), Battlesuit: "S02", MemberID: d.green})
	w.Event(model.Event{TimeMS: 0, Type: model.EventMissionStart, Action: "* Mission Start *"})
	w.Event(model.Event{TimeMS: 10_000, Type: model.EventDamagedOpponent, Actor: "#r", Action: " zaps ", Target: "#g"})
	w.Event(model.Event{TimeMS: 20_000, Type: model.EventDownedOpponent, Actor: "#r", Action: " zaps ", Target: "#g"})
	if d.ghostShot {
		w.Event(model.Event{TimeMS: 30_000, Type: model.EventDownedOpponent, Actor: "#ghost", Action: " zaps ", Target: "#r"})
	}
	w.ScoreDelta(model.ScoreDelta{TimeMS: 20_000, Token: "#r", Old: 0, Delta: 100, New: 100})
	w.Event(model.Event{TimeMS: d.elapsedMS, Type: model.EventMissionEnd, Action: "* Mission End *"})
	w.EntityEnd(model.EntityEnd{TimeMS: d.elapsedMS, Token: "#r", EndType: 1, Score: 100})
	w.EntityEnd(model.EntityEnd{TimeMS: d.elapsedMS, Token: "#g", EndType: 1, Score: -20})
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
