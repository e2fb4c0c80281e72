// Package buildlog writes build events as hourly, zstd-compressed JSONL files.
package buildlog

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelshelter.ai/internal/shelter"
)

const hourLayout = "2006-01-02-15"

// segmentWriter appends records to one file per hour. A file holds one or
// more zstd frames: the open frame is sealed when the hour turns, when a
// session writes its result and on close, so a finished session can be read
// back while the daemon keeps logging.
type segmentWriter struct {
	dir    string
	prefix string
	now    func() time.Time
	logger *log.Logger

	mu  sync.Mutex
	cur *segment
}

type segment struct {
	hour     string
	path     string
	f        *os.File
	zw       *zstd.Encoder
	enc      *json.Encoder
	sessions map[string]struct{}
}

func newSegmentWriter(dir, prefix string, logger *log.Logger) *segmentWriter {
	return &segmentWriter{dir: dir, prefix: prefix, now: time.Now, logger: logger}
}

func segmentName(prefix, hour string) string {
	return prefix + "-" + hour + ".jsonl.zst"
}

func (w *segmentWriter) append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format(hourLayout)
	if w.cur != nil && w.cur.hour != hour {
		if err := w.sealLocked("rotate"); err != nil {
			return err
		}
	}
	if w.cur == nil {
		seg, err := w.openSegment(hour)
		if err != nil {
			return err
		}
		w.cur = seg
	}
	if err := w.cur.enc.Encode(rec); err != nil {
		return err
	}
	w.cur.sessions[rec.Session] = struct{}{}
	if rec.Kind == shelter.EventResult {
		return w.sealLocked("result")
	}
	return nil
}

func (w *segmentWriter) openSegment(hour string) (*segment, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(w.dir, segmentName(w.prefix, hour))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{
		hour:     hour,
		path:     path,
		f:        f,
		zw:       zw,
		enc:      json.NewEncoder(zw),
		sessions: map[string]struct{}{},
	}, nil
}

func (w *segmentWriter) sealLocked(why string) error {
	seg := w.cur
	if seg == nil {
		return nil
	}
	w.cur = nil
	err := seg.zw.Close()
	if cerr := seg.f.Close(); err == nil {
		err = cerr
	}
	w.logger.Printf("BUILDLOG_SEAL file=%s why=%s sessions=%d", filepath.Base(seg.path), why, len(seg.sessions))
	return err
}

func (w *segmentWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sealLocked("close")
}
