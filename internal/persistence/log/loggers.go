package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"

	"roguecloud.ai/internal/sim/world"
)

// DefaultSegmentTicks is how many ticks share one log segment.
const DefaultSegmentTicks = 1000

// SegmentWriter appends JSON lines to zstd segments of a round's log, one segment per
// segmentTicks ticks, named <prefix>-<first tick, 10 digits>.jsonl.zst so that names sort in
// tick order. A tick that goes backwards reopens its segment in append mode; each reopen adds
// a new zstd frame.
type SegmentWriter struct {
	dir          string
	prefix       string
	segmentTicks uint64

	mu    sync.Mutex
	start uint64
	open  bool
	f     *os.File
	enc   *zstd.Encoder
	buf   *bufio.Writer
}

func NewSegmentWriter(dir, prefix string, segmentTicks uint64) *SegmentWriter {
	if segmentTicks == 0 {
		segmentTicks = DefaultSegmentTicks
	}
	return &SegmentWriter{dir: dir, prefix: prefix, segmentTicks: segmentTicks}
}

// Write appends v as one line of the segment holding tick.
func (w *SegmentWriter) Write(tick uint64, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	start := tick - tick%w.segmentTicks
	if !w.open || start != w.start {
		if err := w.openLocked(start); err != nil {
			return err
		}
	}
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	return w.buf.Flush()
}

func (w *SegmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *SegmentWriter) openLocked(start uint64) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(SegmentPath(w.dir, w.prefix, start), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.enc = f, enc
	w.buf = bufio.NewWriterSize(enc, 64*1024)
	w.start, w.open = start, true
	return nil
}

func (w *SegmentWriter) closeLocked() error {
	if !w.open {
		return nil
	}
	w.open = false
	err := w.buf.Flush()
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.f, w.enc, w.buf = nil, nil, nil
	return err
}

// SegmentPath names the segment that starts at tick start.
func SegmentPath(dir, prefix string, start uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%010d.jsonl.zst", prefix, start))
}

// Files lists a log's segments in tick order.
func Files(dir, prefix string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// RoundDir is where a round's logs live under the data directory.
func RoundDir(dataDir string, roundID int64) string {
	return filepath.Join(dataDir, fmt.Sprintf("round-%d", roundID))
}

// TickLogger writes one entry per tick: joins, leaves, resolved actions and the state digest.
type TickLogger struct{ w *SegmentWriter }

func NewTickLogger(roundDir string) *TickLogger {
	return &TickLogger{w: NewSegmentWriter(filepath.Join(roundDir, "ticks"), "ticks", DefaultSegmentTicks)}
}

func (l *TickLogger) WriteTick(e world.TickLogEntry) error { return l.w.Write(e.Tick, e) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// EventLogger writes the events of each tick that produced any.
type EventLogger struct{ w *SegmentWriter }

func NewEventLogger(roundDir string) *EventLogger {
	return &EventLogger{w: NewSegmentWriter(filepath.Join(roundDir, "events"), "events", DefaultSegmentTicks)}
}

func (l *EventLogger) WriteEvents(e world.EventLogEntry) error { return l.w.Write(e.Tick, e) }
func (l *EventLogger) Close() error                            { return l.w.Close() }
