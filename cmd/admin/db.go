package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"voxelshelter.ai/internal/persistence/statedb"
	"voxelshelter.ai/internal/runner"
	"voxelshelter.ai/internal/shelter/buildstate"
)

func openDB(dataDir string) *statedb.DB {
	path := filepath.Join(dataDir, "state.sqlite")
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "state db:", err)
		os.Exit(1)
	}
	db, err := statedb.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open state db:", err)
		os.Exit(1)
	}
	return db
}

func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	agent := fs.String("agent", "", "agent id")
	limit := fs.Int("limit", 20, "max records")
	_ = fs.Parse(args)
	must(fs, "agent", *agent)

	db := openDB(*dataDir)
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	recs, err := db.Builds(ctx, *agent, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "history:", err)
		os.Exit(1)
	}
	printHistory(os.Stdout, recs)
}

func printHistory(w io.Writer, recs []statedb.BuildRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "no builds")
		return
	}
	for _, r := range recs {
		fmt.Fprintf(w, "%s %s %-6s success=%v resumed=%v took=%s msg=%q counters=%s\n",
			r.FinishedAt.Format(time.RFC3339), r.SessionID, r.Kind, r.Success, r.Resumed,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond), r.Message, string(r.Counters))
	}
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	agent := fs.String("agent", "", "agent id (optional; all agents when empty)")
	_ = fs.Parse(args)

	db := openDB(*dataDir)
	defer db.Close()

	prefixes := []string{"shelter."}
	if *agent != "" {
		prefixes = []string{
			buildstate.Namespace(buildstate.KindHovel, *agent),
			buildstate.Namespace(buildstate.KindBurrow, *agent),
		}
	}
	if err := dumpState(os.Stdout, db, prefixes); err != nil {
		fmt.Fprintln(os.Stderr, "state:", err)
		os.Exit(1)
	}
}

func dumpState(w io.Writer, bag buildstate.Bag, prefixes []string) error {
	n := 0
	for _, p := range prefixes {
		keys, err := bag.Keys(p)
		if err != nil {
			return err
		}
		for _, k := range keys {
			v, _, err := bag.Get(k)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s=%s\n", k, v)
			n++
		}
	}
	if n == 0 {
		fmt.Fprintln(w, "no saved state")
	}
	return nil
}

func resetCmd(args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	agent := fs.String("agent", "", "agent id")
	kind := fs.String("kind", "hovel", "build kind: hovel or burrow")
	_ = fs.Parse(args)
	must(fs, "agent", *agent)

	k, err := runner.ParseKind(*kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	db := openDB(*dataDir)
	defer db.Close()
	st := buildstate.NewStore(db, buildstate.Kind(k), *agent, nil)
	if err := st.Clear(); err != nil {
		fmt.Fprintln(os.Stderr, "reset:", err)
		os.Exit(1)
	}
	fmt.Printf("cleared %s*\n", st.Prefix())
}
