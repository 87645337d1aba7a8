// ===============================
// File: internal/logger/ring.go
// ===============================
package logger

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

const defaultRingSize = 256

// Entry is one captured log record, pre-rendered for display.
type Entry struct {
	Time    time.Time
	Level   zapcore.Level
	Message string
	Fields  string
}

// Ring keeps the most recent log entries in a fixed-size buffer. It is
// attached to the logger as an extra core, so every emitted record is
// captured without a second formatting pass at read time.
type Ring struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
	seen    uint64
}

// NewRing creates a ring holding up to size entries.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = defaultRingSize
	}
	return &Ring{entries: make([]Entry, size)}
}

// Core returns a zapcore.Core that records entries at or above enab.
func (r *Ring) Core(enab zapcore.LevelEnabler) zapcore.Core {
	return &ringCore{
		LevelEnabler: enab,
		enc:          newFieldsEncoder(),
		ring:         r,
	}
}

// Recent returns up to limit entries, oldest first. A non-positive
// limit returns everything buffered.
func (r *Ring) Recent(limit int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.next
	if r.full {
		n = len(r.entries)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Entry, 0, limit)
	start := n - limit
	for i := start; i < n; i++ {
		idx := i
		if r.full {
			idx = (r.next + i) % len(r.entries)
		}
		out = append(out, r.entries[idx])
	}
	return out
}

// Len reports how many entries are currently buffered.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}

// Seen reports the total number of entries pushed since creation,
// including ones already overwritten.
func (r *Ring) Seen() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seen
}

func (r *Ring) push(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = e
	r.next++
	r.seen++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

// ringCore adapts a Ring into a zap core. Context fields accumulated
// via With are carried in the cloned encoder.
type ringCore struct {
	zapcore.LevelEnabler
	enc  zapcore.Encoder
	ring *Ring
}

func (c *ringCore) With(fields []zapcore.Field) zapcore.Core {
	clone := c.enc.Clone()
	for i := range fields {
		fields[i].AddTo(clone)
	}
	return &ringCore{LevelEnabler: c.LevelEnabler, enc: clone, ring: c.ring}
}

func (c *ringCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *ringCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	rendered := strings.TrimSpace(buf.String())
	buf.Free()

	c.ring.push(Entry{
		Time:    ent.Time,
		Level:   ent.Level,
		Message: ent.Message,
		Fields:  rendered,
	})
	return nil
}

func (c *ringCore) Sync() error { return nil }

// newFieldsEncoder builds a console encoder that renders only the
// structured fields. Time, level and message are stored on the Entry
// itself so the UI can style them per line.
func newFieldsEncoder() zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
	}
	return zapcore.NewConsoleEncoder(cfg)
}
