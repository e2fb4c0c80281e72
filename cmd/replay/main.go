package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"voxelshelter.ai/internal/persistence/buildlog"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "shelterd data directory (reads <data>/events)")
		file    = flag.String("file", "", "read a single events-*.jsonl.zst file instead")
		session = flag.String("session", "", "only this session id")
		agent   = flag.String("agent", "", "only this agent id")
		events  = flag.Bool("events", false, "print every event, not just summaries")
	)
	flag.Parse()

	files := []string{*file}
	if *file == "" {
		var err error
		files, err = buildlog.Files(*dataDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list events:", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			fmt.Fprintln(os.Stderr, "no events files found under", *dataDir)
			os.Exit(1)
		}
	}

	var recs []buildlog.Record
	for _, path := range files {
		rs, err := buildlog.ReadFile(path)
		if err != nil {
			// A file still being written ends mid-frame; keep what decoded.
			fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		}
		recs = append(recs, rs...)
	}
	recs = filter(recs, *session, *agent)

	if *events {
		printEvents(os.Stdout, recs)
	}
	sums := buildlog.Summarize(recs)
	printSummaries(os.Stdout, sums)
	fmt.Printf("sessions=%d events=%d files=%d\n", len(sums), len(recs), len(files))
}

func filter(recs []buildlog.Record, session, agent string) []buildlog.Record {
	if session == "" && agent == "" {
		return recs
	}
	out := recs[:0:0]
	for _, r := range recs {
		if session != "" && r.Session != session {
			continue
		}
		if agent != "" && r.Agent != agent {
			continue
		}
		out = append(out, r)
	}
	return out
}

func printEvents(w io.Writer, recs []buildlog.Record) {
	for _, r := range recs {
		pos := "-"
		if r.Pos != nil {
			pos = fmt.Sprintf("%d,%d,%d", r.Pos.X, r.Pos.Y, r.Pos.Z)
		}
		fmt.Fprintf(w, "%s %s %-9s phase=%s pos=%s ok=%v %s\n",
			r.Time.Format(time.RFC3339Nano), short(r.Session), r.Kind, r.Phase, pos, r.OK, r.Detail)
	}
}

func printSummaries(w io.Writer, sums []buildlog.Summary) {
	for _, s := range sums {
		status := "running"
		if s.Result != "" {
			status = "failed"
			if s.Success {
				status = "ok"
			}
		}
		fmt.Fprintf(w, "session=%s agent=%s status=%s took=%s phases=%s place=%d/%d mine=%d/%d pillars=%d watchdog=%d result=%q\n",
			s.Session, s.Agent, status, s.Last.Sub(s.First).Round(time.Millisecond),
			strings.Join(s.Phases, ">"), s.PlaceOK, s.Places, s.MineOK, s.Mines, s.Pillars, s.Watchdog, s.Result)
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
