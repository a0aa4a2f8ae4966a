package eventlog

import (
	"fmt"

	"github.com/okian/lasertrack/internal/domain/model"
)

// Log is a decoded event log. Events, score deltas and state changes are in
// non-decreasing time order.
type Log struct {
	System       SystemHeader
	Mission      MissionHeader
	Mode         model.Mode
	Teams        []model.Team
	Entities     []EntityStart
	Events       []model.Event
	ScoreDeltas  []model.ScoreDelta
	StateChanges []model.StateChange
	EntityEnds   []model.EntityEnd
	FinalStats   []model.FinalStats
	// Skipped counts malformed or unknown lines.
	Skipped int

	hasSystem  bool
	hasMission bool
}

// Key returns the dedupe key of the logged match.
func (l *Log) Key() model.MatchKey {
	return model.MatchKey{StartTime: l.Mission.Start, Arena: l.System.Arena}
}

// ElapsedMS is the mission end time, or the last event time when the log
// has no mission end.
func (l *Log) ElapsedMS() int64 {
	var last int64
	for _, ev := range l.Events {
		if ev.Type == model.EventMissionEnd {
			return ev.TimeMS
		}
		if ev.TimeMS > last {
			last = ev.TimeMS
		}
	}
	return last
}

// EndedEarly reports whether play stopped before the scheduled duration.
func (l *Log) EndedEarly() bool { return l.ElapsedMS() < l.Mission.DurationMS }

// Check applies the import policies. expected may be ModeUnknown to accept
// either variant.
func (l *Log) Check(expected model.Mode, minMatchMS int64) error {
	if l.Mode == model.ModeUnknown {
		return fmt.Errorf("%w: no mode tag in %q", ErrModeMismatch, l.Mission.Desc)
	}
	if expected != model.ModeUnknown && expected != l.Mode {
		return fmt.Errorf("%w: got %s, want %s", ErrModeMismatch, l.Mode, expected)
	}
	if elapsed := l.ElapsedMS(); l.EndedEarly() && elapsed < minMatchMS {
		return fmt.Errorf("%w: ended after %dms", ErrFalseStart, elapsed)
	}
	return nil
}

// Match builds the match record without entities; the registry fills those
// in once accounts are resolved.
func (l *Log) Match() *model.Match {
	elapsed := l.ElapsedMS()
	return &model.Match{
		Mode:           l.Mode,
		Arena:          l.System.Arena,
		FileVersion:    l.System.FileVersion,
		ProgramVersion: l.System.ProgramVersion,
		MissionType:    l.Mission.Type,
		MissionDesc:    l.Mission.Desc,
		StartTime:      l.Mission.Start,
		DurationMS:     l.Mission.DurationMS,
		ElapsedMS:      elapsed,
		EndedEarly:     elapsed < l.Mission.DurationMS,
		Penalty:        l.Mission.Penalty,
		Winner:         model.NoWinner,
		Teams:          append([]model.Team(nil), l.Teams...),
		Events:         append([]model.Event(nil), l.Events...),
		ScoreDeltas:    append([]model.ScoreDelta(nil), l.ScoreDeltas...),
		StateChanges:   append([]model.StateChange(nil), l.StateChanges...),
		EntityEnds:     append([]model.EntityEnd(nil), l.EntityEnds...),
		FinalStats:     append([]model.FinalStats(nil), l.FinalStats...),
	}
}
