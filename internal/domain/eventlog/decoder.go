// Package eventlog decodes arena event logs into typed records.
package eventlog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/pkg/logger"
	"github.com/okian/lasertrack/pkg/metrics"
)

const maxLineBytes = 1 << 20

// Decoder turns raw logs into a Log.
type Decoder struct {
	logger         logger.Logger
	eliminationTag string
	ballTag        string
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger used for skipped lines.
func WithLogger(l logger.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithModeTags sets the mission description substrings identifying each mode.
func WithModeTags(elimination, ball string) Option {
	return func(d *Decoder) {
		if elimination != "" {
			d.eliminationTag = elimination
		}
		if ball != "" {
			d.ballTag = ball
		}
	}
}

// NewDecoder creates a decoder with default mode tags.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		logger:         logger.GetOrNop(),
		eliminationTag: "Space Marines 5",
		ballTag:        "Laserball",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode reads a whole log. Malformed lines are logged and skipped; a log
// without both header records fails with ErrMissingHeader.
func (d *Decoder) Decode(ctx context.Context, r io.Reader) (*Log, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	l := &Log{}
	sc := bufio.NewScanner(textReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ";") {
			continue
		}
		fields := strings.Split(line, "\t")
		rec, err := d.decodeLine(fields)
		if err != nil {
			l.Skipped++
			d.logger.Warn(ctx, "skipping log line",
				logger.Int("line", lineNo),
				logger.String("reason", err.Error()))
			metrics.RecordLogLineSkipped(skipReason(err))
			continue
		}
		if ev, ok := rec.(eventRecord); ok {
			ev.Line = lineNo
			if len(ev.Extra) > 0 {
				d.logger.Warn(ctx, "event has more than three arguments",
					logger.Int("line", lineNo),
					logger.String("type", ev.Type.String()),
					logger.Int("extra", len(ev.Extra)))
			}
			rec = ev
		}
		rec.apply(l)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan log: %w", err)
	}
	if !l.hasSystem || !l.hasMission {
		return nil, ErrMissingHeader
	}

	sort.SliceStable(l.Events, func(i, j int) bool { return l.Events[i].TimeMS < l.Events[j].TimeMS })
	sort.SliceStable(l.ScoreDeltas, func(i, j int) bool { return l.ScoreDeltas[i].TimeMS < l.ScoreDeltas[j].TimeMS })
	sort.SliceStable(l.StateChanges, func(i, j int) bool { return l.StateChanges[i].TimeMS < l.StateChanges[j].TimeMS })
	l.Mode = d.detectMode(l.Mission.Desc)

	metrics.RecordLogDecoded()
	return l, nil
}

func (d *Decoder) decodeLine(fields []string) (record, error) {
	dec, ok := decoders[strings.TrimSpace(fields[0])]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecord, fields[0])
	}
	return dec(fields[1:])
}

func (d *Decoder) detectMode(desc string) model.Mode {
	lower := strings.ToLower(desc)
	switch {
	case strings.Contains(lower, strings.ToLower(d.eliminationTag)):
		return model.ModeElimination
	case strings.Contains(lower, strings.ToLower(d.ballTag)):
		return model.ModeBall
	}
	return model.ModeUnknown
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownRecord):
		return "unknown_record"
	case errors.Is(err, model.ErrUnknownEventType):
		return "unknown_event"
	}
	return "malformed"
}

// textReader returns a UTF-8 view of raw. A BOM selects the encoding;
// without one, NUL bytes in the first line mean little-endian UTF-16.
func textReader(raw []byte) io.Reader {
	utf16 := bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) || bytes.HasPrefix(raw, []byte{0xFE, 0xFF})
	if !utf16 {
		head := raw
		if len(head) > 64 {
			head = head[:64]
		}
		utf16 = bytes.IndexByte(head, 0) >= 0
	}
	if !utf16 {
		return bytes.NewReader(bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF}))
	}
	dec := unicode.BOMOverride(unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder())
	return transform.NewReader(bytes.NewReader(raw), dec)
}
