package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"voxelshelter.ai/internal/persistence/buildlog"
	"voxelshelter.ai/internal/shelter"
)

func TestFilterAndSummaries(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recs := []buildlog.Record{
		{Session: "s1", Event: shelter.Event{Time: t0, Agent: "a1", Kind: shelter.EventPhase, Phase: "walls"}},
		{Session: "s1", Event: shelter.Event{Time: t0.Add(time.Second), Agent: "a1", Kind: shelter.EventPlace, OK: true}},
		{Session: "s2", Event: shelter.Event{Time: t0, Agent: "a2", Kind: shelter.EventPlace}},
		{Session: "s1", Event: shelter.Event{Time: t0.Add(2 * time.Second), Agent: "a1", Kind: shelter.EventResult, OK: true, Detail: "Hovel complete!"}},
	}

	if got := filter(recs, "", "a2"); len(got) != 1 || got[0].Session != "s2" {
		t.Fatalf("filter by agent: got %+v", got)
	}
	if got := filter(recs, "s1", ""); len(got) != 3 {
		t.Fatalf("filter by session: got %d want 3", len(got))
	}

	var buf bytes.Buffer
	printSummaries(&buf, buildlog.Summarize(filter(recs, "s1", "")))
	out := buf.String()
	for _, want := range []string{"session=s1", "status=ok", "took=2s", "phases=walls", "place=1/1", `result="Hovel complete!"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary %q missing %q", out, want)
		}
	}
}
