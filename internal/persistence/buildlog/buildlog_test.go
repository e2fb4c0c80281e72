package buildlog

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voxelshelter.ai/internal/shelter"
	"voxelshelter.ai/internal/shelter/geom"
)

func TestSinkWritesReadableRecords(t *testing.T) {
	dir := t.TempDir()
	l := Open(dir, nil)
	t0 := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	l.w.now = func() time.Time { return t0 }

	p := geom.Pos{X: 1, Y: 65, Z: 2}
	s := l.Session("s1")
	s.Emit(shelter.Event{Time: t0, Agent: "a1", Kind: shelter.EventPhase, Phase: "walls", OK: true, Detail: "walls"})
	s.Emit(shelter.Event{Time: t0.Add(time.Second), Agent: "a1", Kind: shelter.EventPlace, Phase: "walls", Pos: &p, OK: true})
	l.Session("s2").Emit(shelter.Event{Time: t0.Add(2 * time.Second), Agent: "a2", Kind: shelter.EventResult, OK: true, Detail: "Burrow complete."})
	if written, failed := l.Stats(); written != 3 || failed != 0 {
		t.Fatalf("stats: got written=%d failed=%d want 3/0", written, failed)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := Files(dir)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "events-2026-03-04-10.jsonl.zst" {
		t.Fatalf("files: got %v", files)
	}
	recs, err := ReadFile(files[0])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records: got %d want 3", len(recs))
	}
	if recs[1].Session != "s1" || recs[1].Kind != shelter.EventPlace || recs[1].Pos == nil || *recs[1].Pos != p {
		t.Fatalf("record 1: got %+v", recs[1])
	}
}

func TestWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := newSegmentWriter(dir, "events", log.New(io.Discard, "", 0))
	now := time.Date(2026, 3, 4, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	if err := w.append(Record{Session: "s", Event: shelter.Event{Kind: shelter.EventPlace}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.append(Record{Session: "s", Event: shelter.Event{Kind: shelter.EventPlace}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Fatalf("files: got %d want 2", len(entries))
	}
	if entries[1].Name() != "events-2026-03-04-11.jsonl.zst" {
		t.Fatalf("second file: got %s", entries[1].Name())
	}
}

func TestFinishedSessionReadableWhileOpen(t *testing.T) {
	dir := t.TempDir()
	l := Open(dir, nil)
	defer l.Close()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	l.w.now = func() time.Time { return now }

	done := l.Session("done")
	done.Emit(shelter.Event{Time: now, Kind: shelter.EventPhase, Phase: "walls"})
	done.Emit(shelter.Event{Time: now, Kind: shelter.EventResult, OK: true, Detail: "Hovel complete!"})

	files, _ := Files(dir)
	if len(files) != 1 {
		t.Fatalf("files: got %v", files)
	}
	recs, err := ReadFile(files[0])
	if err != nil {
		t.Fatalf("ReadFile before Close: %v", err)
	}
	if len(recs) != 2 || recs[1].Kind != shelter.EventResult {
		t.Fatalf("records: got %+v", recs)
	}

	// Logging continues in a new frame of the same hour file.
	l.Session("next").Emit(shelter.Event{Time: now, Kind: shelter.EventMine, OK: true})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if recs, err := ReadFile(files[0]); err != nil || len(recs) != 3 {
		t.Fatalf("after Close: got %d records err=%v want 3", len(recs), err)
	}
}

func TestReopenAppendsFrame(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		l := Open(dir, nil)
		l.w.now = func() time.Time { return now }
		l.Session("s").Emit(shelter.Event{Time: now, Kind: shelter.EventMine, OK: true})
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	files, _ := Files(dir)
	recs, err := ReadFile(files[0])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records across frames: got %d want 2", len(recs))
	}
}

func TestSummarize(t *testing.T) {
	t0 := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	ev := func(sess, kind, phase string, ok bool, dt int) Record {
		return Record{Session: sess, Event: shelter.Event{Time: t0.Add(time.Duration(dt) * time.Second), Agent: "a", Kind: kind, Phase: phase, OK: ok, Detail: phase}}
	}
	recs := []Record{
		ev("b", shelter.EventPhase, "descent1", true, 5),
		ev("a", shelter.EventPhase, "level", true, 0),
		ev("a", shelter.EventPlace, "level", true, 1),
		ev("a", shelter.EventPlace, "level", false, 2),
		ev("a", shelter.EventPhase, "walls", true, 3),
		ev("a", shelter.EventMine, "walls", true, 4),
		ev("a", shelter.EventResult, "done", true, 6),
	}
	got := Summarize(recs)
	if len(got) != 2 || got[0].Session != "a" || got[1].Session != "b" {
		t.Fatalf("order: got %+v", got)
	}
	a := got[0]
	if a.Places != 2 || a.PlaceOK != 1 || a.Mines != 1 || a.MineOK != 1 {
		t.Fatalf("counts: got %+v", a)
	}
	if len(a.Phases) != 2 || a.Phases[0] != "level" || a.Phases[1] != "walls" {
		t.Fatalf("phases: got %v", a.Phases)
	}
	if !a.Success || a.Result != "done" || !a.Last.Equal(t0.Add(6*time.Second)) {
		t.Fatalf("result: got %+v", a)
	}
}
