package eventlog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/lasertrack/internal/domain/model"
)

const startLayout = "20060102150405"

// SystemHeader is the `0` record.
type SystemHeader struct {
	FileVersion    string
	ProgramVersion string
	Arena          string
}

// MissionHeader is the `1` record.
type MissionHeader struct {
	Type       int
	Desc       string
	Start      time.Time
	DurationMS int64
	Penalty    int
}

// EntityStart is the `3` record.
type EntityStart struct {
	TimeMS     int64
	Token      string
	Kind       string
	Name       string
	Team       int
	Level      int
	Role       int
	Battlesuit string
	MemberID   string
}

// record is one decoded line. Each kind knows how to fold itself into a Log.
type record interface {
	apply(l *Log)
}

type recordDecoder func(fields []string) (record, error)

// decoders maps the first field of a line to its decoder.
var decoders = map[string]recordDecoder{
	"0": decodeSystem,
	"1": decodeMission,
	"2": decodeTeam,
	"3": decodeEntityStart,
	"4": decodeEvent,
	"5": decodeScoreDelta,
	"6": decodeEntityEnd,
	"7": decodeFinalStats,
	"9": decodeStateChange,
}

type (
	systemRecord  SystemHeader
	missionRecord MissionHeader
	teamRecord    model.Team
	entityRecord  EntityStart
	eventRecord   model.Event
	scoreRecord   model.ScoreDelta
	endRecord     model.EntityEnd
	statsRecord   model.FinalStats
	stateRecord   model.StateChange
)

func (r systemRecord) apply(l *Log) {
	l.System = SystemHeader(r)
	l.hasSystem = true
}

func (r missionRecord) apply(l *Log) {
	l.Mission = MissionHeader(r)
	l.hasMission = true
}

func (r teamRecord) apply(l *Log)   { l.Teams = append(l.Teams, model.Team(r)) }
func (r entityRecord) apply(l *Log) { l.Entities = append(l.Entities, EntityStart(r)) }
func (r eventRecord) apply(l *Log)  { l.Events = append(l.Events, model.Event(r)) }
func (r scoreRecord) apply(l *Log)  { l.ScoreDeltas = append(l.ScoreDeltas, model.ScoreDelta(r)) }
func (r endRecord) apply(l *Log)    { l.EntityEnds = append(l.EntityEnds, model.EntityEnd(r)) }
func (r statsRecord) apply(l *Log)  { l.FinalStats = append(l.FinalStats, model.FinalStats(r)) }
func (r stateRecord) apply(l *Log)  { l.StateChanges = append(l.StateChanges, model.StateChange(r)) }

func expect(fields []string, min, max int) error {
	if len(fields) < min || (max > 0 && len(fields) > max) {
		return fmt.Errorf("%w: %d fields", ErrMalformedLine, len(fields))
	}
	return nil
}

func atoi(s, name string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformedLine, name, s)
	}
	return v, nil
}

func atoi64(s, name string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformedLine, name, s)
	}
	return v, nil
}

func decodeSystem(f []string) (record, error) {
	if err := expect(f, 3, 0); err != nil {
		return nil, err
	}
	return systemRecord{FileVersion: f[0], ProgramVersion: f[1], Arena: f[2]}, nil
}

func decodeMission(f []string) (record, error) {
	if err := expect(f, 4, 0); err != nil {
		return nil, err
	}
	typ, err := atoi(f[0], "mission_type")
	if err != nil {
		return nil, err
	}
	start, err := time.ParseInLocation(startLayout, strings.TrimSpace(f[2]), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: start %q", ErrMalformedLine, f[2])
	}
	dur, err := atoi64(f[3], "duration")
	if err != nil {
		return nil, err
	}
	r := missionRecord{Type: typ, Desc: f[1], Start: start, DurationMS: dur}
	if len(f) > 4 {
		if r.Penalty, err = atoi(f[4], "penalty"); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func decodeTeam(f []string) (record, error) {
	if err := expect(f, 3, 0); err != nil {
		return nil, err
	}
	idx, err := atoi(f[0], "team_index")
	if err != nil {
		return nil, err
	}
	color, err := atoi(f[2], "color")
	if err != nil {
		return nil, err
	}
	if color < int(model.ColorNeutral) || color > int(model.ColorPurple) {
		return nil, fmt.Errorf("%w: color %d", ErrMalformedLine, color)
	}
	return teamRecord{Index: idx, Name: f[1], Color: model.Color(color)}, nil
}

func decodeEntityStart(f []string) (record, error) {
	if err := expect(f, 8, 9); err != nil {
		return nil, err
	}
	t, err := atoi64(f[0], "time")
	if err != nil {
		return nil, err
	}
	team, err := atoi(f[4], "team")
	if err != nil {
		return nil, err
	}
	level, err := atoi(f[5], "level")
	if err != nil {
		return nil, err
	}
	role, err := atoi(f[6], "role")
	if err != nil {
		return nil, err
	}
	r := entityRecord{
		TimeMS: t, Token: f[1], Kind: f[2], Name: f[3],
		Team: team, Level: level, Role: role, Battlesuit: f[7],
	}
	if len(f) == 9 {
		r.MemberID = strings.TrimSpace(f[8])
	}
	return r, nil
}

// decodeEvent splits the free-form arguments: one argument is a global
// action, two or more are actor then action, the third is the target.
func decodeEvent(f []string) (record, error) {
	if err := expect(f, 2, 0); err != nil {
		return nil, err
	}
	t, err := atoi64(f[0], "time")
	if err != nil {
		return nil, err
	}
	typ, err := model.ParseEventType(f[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedLine, err)
	}
	ev := eventRecord{TimeMS: t, Type: typ}
	args := f[2:]
	switch {
	case len(args) == 1:
		ev.Action = args[0]
	case len(args) >= 2:
		ev.Actor, ev.Action = args[0], args[1]
		if len(args) >= 3 {
			ev.Target = args[2]
		}
		if len(args) > 3 {
			ev.Extra = append([]string(nil), args[3:]...)
		}
	}
	return ev, nil
}

func decodeScoreDelta(f []string) (record, error) {
	if err := expect(f, 5, 5); err != nil {
		return nil, err
	}
	t, err := atoi64(f[0], "time")
	if err != nil {
		return nil, err
	}
	vals := make([]int, 3)
	for i, name := range []string{"old", "delta", "new"} {
		if vals[i], err = atoi(f[2+i], name); err != nil {
			return nil, err
		}
	}
	return scoreRecord{TimeMS: t, Token: f[1], Old: vals[0], Delta: vals[1], New: vals[2]}, nil
}

func decodeEntityEnd(f []string) (record, error) {
	if err := expect(f, 4, 4); err != nil {
		return nil, err
	}
	t, err := atoi64(f[0], "time")
	if err != nil {
		return nil, err
	}
	endType, err := atoi(f[2], "end_type")
	if err != nil {
		return nil, err
	}
	score, err := atoi(f[3], "score")
	if err != nil {
		return nil, err
	}
	return endRecord{TimeMS: t, Token: f[1], EndType: endType, Score: score}, nil
}

// decodeFinalStats picks the block layout from the counter count.
func decodeFinalStats(f []string) (record, error) {
	if len(f) < 1 {
		return nil, fmt.Errorf("%w: empty stat block", ErrMalformedLine)
	}
	r := statsRecord{Token: f[0]}
	var targets []*int
	switch len(f) - 1 {
	case model.EliminationStatCount:
		r.Elimination = &model.EliminationStats{}
		targets = r.Elimination.Fields()
	case model.BallStatCount:
		r.Ball = &model.BallStats{}
		targets = r.Ball.Fields()
	default:
		return nil, fmt.Errorf("%w: %d stat counters", ErrMalformedLine, len(f)-1)
	}
	for i, p := range targets {
		v, err := atoi(f[i+1], "counter")
		if err != nil {
			return nil, err
		}
		*p = v
	}
	return r, nil
}

func decodeStateChange(f []string) (record, error) {
	if err := expect(f, 3, 3); err != nil {
		return nil, err
	}
	t, err := atoi64(f[0], "time")
	if err != nil {
		return nil, err
	}
	code, err := atoi(f[2], "state")
	if err != nil {
		return nil, err
	}
	return stateRecord{TimeMS: t, Token: f[1], Code: code}, nil
}
