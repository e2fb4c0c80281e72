package buildlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelshelter.ai/internal/shelter"
)

// Files lists the event log files under dir in chronological order.
func Files(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "events", "events-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadFile decodes every record of one log file.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func Read(r io.Reader) ([]Record, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Record
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return out, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}

// Summary aggregates the records of one session.
type Summary struct {
	Session  string
	Agent    string
	First    time.Time
	Last     time.Time
	Phases   []string
	Places   int
	PlaceOK  int
	Mines    int
	MineOK   int
	Pillars  int
	Watchdog int
	Result   string
	Success  bool
}

// Summarize groups records by session, ordered by first event time.
func Summarize(recs []Record) []Summary {
	idx := map[string]int{}
	var out []Summary
	for _, r := range recs {
		i, ok := idx[r.Session]
		if !ok {
			i = len(out)
			idx[r.Session] = i
			out = append(out, Summary{Session: r.Session, Agent: r.Agent, First: r.Time})
		}
		s := &out[i]
		if r.Time.Before(s.First) {
			s.First = r.Time
		}
		if r.Time.After(s.Last) {
			s.Last = r.Time
		}
		switch r.Kind {
		case shelter.EventPhase:
			if n := len(s.Phases); n == 0 || s.Phases[n-1] != r.Phase {
				s.Phases = append(s.Phases, r.Phase)
			}
		case shelter.EventPlace:
			s.Places++
			if r.OK {
				s.PlaceOK++
			}
		case shelter.EventMine:
			s.Mines++
			if r.OK {
				s.MineOK++
			}
		case shelter.EventPillar:
			s.Pillars++
		case shelter.EventWatchdog:
			s.Watchdog++
		case shelter.EventResult:
			s.Result = r.Detail
			s.Success = r.OK
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].First.Before(out[j].First) })
	return out
}
