// Package statedb keeps agent build state and build history in SQLite.
package statedb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// DB is a buildstate.Bag backed by a single SQLite connection. State writes are
// synchronous; build history is appended by a writer goroutine.
type DB struct {
	db *sql.DB

	ch   chan BuildRecord
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

// BuildRecord is one finished build invocation.
type BuildRecord struct {
	SessionID  string          `json:"session_id"`
	Agent      string          `json:"agent"`
	Kind       string          `json:"kind"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Success    bool            `json:"success"`
	Resumed    bool            `json:"resumed"`
	Message    string          `json:"message"`
	Counters   json.RawMessage `json:"counters,omitempty"`
}

var ErrClosed = errors.New("statedb closed")

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &DB{
		db: db,
		ch: make(chan BuildRecord, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS builds (
			session_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			success INTEGER NOT NULL,
			resumed INTEGER NOT NULL,
			message TEXT NOT NULL,
			counters_json TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_builds_agent_finished ON builds(agent_id, finished_at);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *DB) Get(key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrClosed
	}
	var v string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *DB) Put(key, value string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO kv(key,value,updated_at) VALUES(?,?,?)`, key, value, now); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *DB) Delete(keys ...string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.Prepare(`DELETE FROM kv WHERE key=?`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, k := range keys {
		if _, err := stmt.Exec(k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *DB) Keys(prefix string) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(`SELECT key FROM kv WHERE substr(key,1,?)=? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("keys %s: %w", prefix, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// RecordBuild queues a build record. Records are dropped if the writer falls behind.
func (s *DB) RecordBuild(rec BuildRecord) {
	if s == nil || s.closed.Load() || rec.SessionID == "" {
		return
	}
	select {
	case s.ch <- rec:
	default:
		s.dropped.Add(1)
	}
}

// Dropped is the number of build records discarded because the queue was full.
func (s *DB) Dropped() uint64 { return s.dropped.Load() }

// Builds returns the latest build records for an agent, newest first.
func (s *DB) Builds(ctx context.Context, agentID string, limit int) ([]BuildRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id,agent_id,kind,started_at,finished_at,success,resumed,message,counters_json
		 FROM builds WHERE agent_id=? ORDER BY finished_at DESC LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BuildRecord
	for rows.Next() {
		var (
			r                 BuildRecord
			started, finished string
			success, resumed  int
			counters          sql.NullString
		)
		if err := rows.Scan(&r.SessionID, &r.Agent, &r.Kind, &started, &finished, &success, &resumed, &r.Message, &counters); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		r.Success = success != 0
		r.Resumed = resumed != 0
		if counters.Valid && counters.String != "" {
			r.Counters = json.RawMessage(counters.String)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertConfig stores the canonical JSON of an applied configuration under name.
func (s *DB) UpsertConfig(name string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	digest := hex.EncodeToString(sum[:])
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`, name, digest, string(b), now); err != nil {
		return "", fmt.Errorf("upsert config %s: %w", name, err)
	}
	return digest, nil
}

func (s *DB) loop() {
	ctx := context.Background()

	insertBuild, _ := s.db.Prepare(`INSERT OR REPLACE INTO builds(session_id,agent_id,kind,started_at,finished_at,success,resumed,message,counters_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertBuild != nil {
			_ = insertBuild.Close()
		}
	}()

	var tx *sql.Tx
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
	}

	for r := range s.ch {
		begin()
		if tx == nil || insertBuild == nil {
			continue
		}
		var counters any
		if len(r.Counters) > 0 {
			counters = string(r.Counters)
		}
		if _, err := tx.Stmt(insertBuild).Exec(
			r.SessionID,
			r.Agent,
			r.Kind,
			r.StartedAt.UTC().Format(time.RFC3339Nano),
			r.FinishedAt.UTC().Format(time.RFC3339Nano),
			boolInt(r.Success),
			boolInt(r.Resumed),
			r.Message,
			counters,
		); err != nil {
			_ = tx.Rollback()
			tx = nil
			continue
		}
		// Batch while more records are queued.
		if len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
