package eventlog

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/okian/lasertrack/internal/domain/model"
)

// Writer emits logs in the arena format: tab separated, CRLF terminated,
// UTF-16LE with a BOM.
type Writer struct {
	w   io.WriteCloser
	err error
}

// NewWriter wraps w. Close flushes the encoder but does not close w.
func NewWriter(w io.Writer) *Writer {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	return &Writer{w: transform.NewWriter(w, enc)}
}

func (w *Writer) line(kind string, fields ...string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, kind+"\t"+strings.Join(fields, "\t")+"\r\n")
}

func itoa(v int) string { return strconv.Itoa(v) }

func i64(v int64) string { return strconv.FormatInt(v, 10) }

// Comment writes a `;` line.
func (w *Writer) Comment(text string) { w.line(";", text) }

// System writes the `0` header.
func (w *Writer) System(h SystemHeader) { w.line("0", h.FileVersion, h.ProgramVersion, h.Arena) }

// Mission writes the `1` header.
func (w *Writer) Mission(h MissionHeader) {
	w.line("1", itoa(h.Type), h.Desc, h.Start.UTC().Format(startLayout), i64(h.DurationMS), itoa(h.Penalty))
}

// Team writes a `2` record.
func (w *Writer) Team(t model.Team) {
	w.line("2", itoa(t.Index), t.Name, itoa(int(t.Color)), t.Color.String())
}

// Entity writes a `3` record.
func (w *Writer) Entity(e EntityStart) {
	fields := []string{i64(e.TimeMS), e.Token, e.Kind, e.Name, itoa(e.Team), itoa(e.Level), itoa(e.Role), e.Battlesuit}
	if e.MemberID != "" {
		fields = append(fields, e.MemberID)
	}
	w.line("3", fields...)
}

// Event writes a `4` record using the same argument layout the decoder reads.
func (w *Writer) Event(ev model.Event) {
	fields := []string{i64(ev.TimeMS), ev.Type.Code()}
	if ev.Actor == "" {
		fields = append(fields, ev.Action)
	} else {
		fields = append(fields, ev.Actor, ev.Action)
		if ev.Target != "" {
			fields = append(fields, ev.Target)
		}
	}
	w.line("4", fields...)
}

// ScoreDelta writes a `5` record.
func (w *Writer) ScoreDelta(s model.ScoreDelta) {
	w.line("5", i64(s.TimeMS), s.Token, itoa(s.Old), itoa(s.Delta), itoa(s.New))
}

// EntityEnd writes a `6` record.
func (w *Writer) EntityEnd(e model.EntityEnd) {
	w.line("6", i64(e.TimeMS), e.Token, itoa(e.EndType), itoa(e.Score))
}

// FinalStats writes a `7` record.
func (w *Writer) FinalStats(s model.FinalStats) {
	var ptrs []*int
	switch {
	case s.Elimination != nil:
		ptrs = s.Elimination.Fields()
	case s.Ball != nil:
		ptrs = s.Ball.Fields()
	}
	fields := []string{s.Token}
	for _, p := range ptrs {
		fields = append(fields, itoa(*p))
	}
	w.line("7", fields...)
}

// StateChange writes a `9` record.
func (w *Writer) StateChange(s model.StateChange) {
	w.line("9", i64(s.TimeMS), s.Token, itoa(s.Code))
}

// Close flushes pending output and returns the first write error.
func (w *Writer) Close() error {
	if err := w.w.Close(); err != nil && w.err == nil {
		w.err = err
	}
	if w.err != nil {
		return fmt.Errorf("write log: %w", w.err)
	}
	return nil
}

// FormatStart renders t the way mission headers store it.
func FormatStart(t time.Time) string { return t.UTC().Format(startLayout) }
