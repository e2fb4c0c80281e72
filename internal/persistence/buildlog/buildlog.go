package buildlog

import (
	"io"
	"log"
	"path/filepath"
	"sync/atomic"

	"voxelshelter.ai/internal/shelter"
)

// Record is one logged build event tagged with its session.
type Record struct {
	Session string `json:"session"`
	shelter.Event
}

// Log owns the event writer shared by every session of a daemon.
type Log struct {
	w      *segmentWriter
	logger *log.Logger

	written atomic.Uint64
	failed  atomic.Uint64
}

func Open(dir string, logger *log.Logger) *Log {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Log{
		w:      newSegmentWriter(filepath.Join(dir, "events"), "events", logger),
		logger: logger,
	}
}

func (l *Log) Close() error { return l.w.close() }

// Stats returns the number of records written and the number that failed.
func (l *Log) Stats() (written, failed uint64) { return l.written.Load(), l.failed.Load() }

// Session returns an EventSink that tags events with id.
func (l *Log) Session(id string) *Sink { return &Sink{log: l, session: id} }

type Sink struct {
	log     *Log
	session string
}

func (s *Sink) Emit(ev shelter.Event) {
	if err := s.log.w.append(Record{Session: s.session, Event: ev}); err != nil {
		s.log.failed.Add(1)
		s.log.logger.Printf("BUILDLOG_WRITE_ERR session=%s kind=%s err=%v", s.session, ev.Kind, err)
		return
	}
	s.log.written.Add(1)
}
