package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"voxelshelter.ai/internal/persistence/buildlog"
	"voxelshelter.ai/internal/persistence/statedb"
	"voxelshelter.ai/internal/protocol"
	"voxelshelter.ai/internal/runner"
	"voxelshelter.ai/internal/shelter"
	"voxelshelter.ai/internal/sim/catalogs"
	"voxelshelter.ai/internal/sim/tuning"
	"voxelshelter.ai/internal/sim/voxel"
	"voxelshelter.ai/internal/transport/ws"
)

func main() {
	_ = godotenv.Load()

	var (
		addr       = flag.String("addr", envString("SHELTERD_ADDR", ":8080"), "http listen address")
		configDir  = flag.String("configs", envString("SHELTERD_CONFIGS", ""), "directory with blocks.json/items.json (empty: embedded defaults)")
		tuningPath = flag.String("tuning", envString("SHELTERD_TUNING", ""), "path to tuning.yaml (empty: defaults)")
		dataDir    = flag.String("data", envString("SHELTERD_DATA", "./data"), "runtime data directory")
		seed       = flag.Int64("seed", 0, "world seed override (0: tuning value)")
		terrain    = flag.String("terrain", "", "terrain override: flat or rolling")
		starter    = flag.String("starter", envString("SHELTERD_STARTER_ITEMS", "DIRT:256,TORCH:8,OAK_DOOR:1"), "inventory for agents that bring none (ITEM:N,...)")
		disableDB  = flag.Bool("disable_db", envBool("SHELTERD_DISABLE_DB", false), "keep build state in memory only")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[shelterd] ", log.LstdFlags|log.Lmicroseconds)

	tune := tuning.Defaults()
	if tp := strings.TrimSpace(*tuningPath); tp != "" {
		t, err := tuning.Load(tp)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = t
	}
	if *seed != 0 {
		tune.Sim.Seed = *seed
	}
	if *terrain != "" {
		tune.Sim.Terrain = *terrain
	}
	if err := tune.Validate(); err != nil {
		logger.Fatalf("tuning: %v", err)
	}

	cats, err := loadCatalogs(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	inventory, err := parseInventory(*starter)
	if err == nil {
		err = cats.CheckInventory(inventory)
	}
	if err != nil {
		logger.Fatalf("starter items: %v", err)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	deps := runner.Deps{Config: tune.ShelterConfig(), Logger: logger}
	digest := ""
	var db *statedb.DB
	if !*disableDB {
		db, err = statedb.Open(filepath.Join(*dataDir, "state.sqlite"))
		if err != nil {
			logger.Fatalf("open state db: %v", err)
		}
		defer db.Close()
		if digest, err = db.UpsertConfig("tuning", tune); err != nil {
			logger.Printf("state db: upsert tuning: %v", err)
		}
		deps.Bag = db
		deps.History = db
	}

	events := buildlog.Open(*dataDir, logger)
	defer events.Close()
	deps.Events = func(id string) shelter.EventSink { return events.Session(id) }

	w, err := voxel.New(tune.VoxelConfig(), cats)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	deps.World = w
	deps.Clock = w.Clock()
	manager := runner.NewManager(deps)

	validator, err := protocol.NewValidator()
	if err != nil {
		logger.Fatalf("protocol schemas: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world stopped: %v", err)
		}
	}()

	wsSrv := ws.NewServer(w, manager, validator, logger, ws.Options{
		Inventory:    inventory,
		TuningDigest: digest,
		BaseContext:  ctx,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP shelterd_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE shelterd_world_tick gauge\n")
		fmt.Fprintf(rw, "shelterd_world_tick %d\n", w.Tick())

		fmt.Fprintf(rw, "# HELP shelterd_agents Agents in the world.\n")
		fmt.Fprintf(rw, "# TYPE shelterd_agents gauge\n")
		fmt.Fprintf(rw, "shelterd_agents %d\n", len(w.Agents()))

		fmt.Fprintf(rw, "# HELP shelterd_sessions_active Builds in progress.\n")
		fmt.Fprintf(rw, "# TYPE shelterd_sessions_active gauge\n")
		fmt.Fprintf(rw, "shelterd_sessions_active %d\n", manager.ActiveCount())

		written, failed := events.Stats()
		fmt.Fprintf(rw, "# HELP shelterd_buildlog_records Build events written to the event log.\n")
		fmt.Fprintf(rw, "# TYPE shelterd_buildlog_records counter\n")
		fmt.Fprintf(rw, "shelterd_buildlog_records{result=\"ok\"} %d\n", written)
		fmt.Fprintf(rw, "shelterd_buildlog_records{result=\"error\"} %d\n", failed)

		if db != nil {
			fmt.Fprintf(rw, "# HELP shelterd_history_dropped Build records dropped by the history writer.\n")
			fmt.Fprintf(rw, "# TYPE shelterd_history_dropped counter\n")
			fmt.Fprintf(rw, "shelterd_history_dropped %d\n", db.Dropped())
		}
	})
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
		if err := manager.Shutdown(ctx2); err != nil {
			logger.Printf("sessions still running at shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s (seed=%d terrain=%s db=%v catalogs=%s)", *addr, tune.Sim.Seed, tune.Sim.Terrain, db != nil, cats.Digest()[:12])
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	ctx3, cancel3 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel3()
	_ = manager.Shutdown(ctx3)
}

func loadCatalogs(dir string) (*catalogs.Catalogs, error) {
	if strings.TrimSpace(dir) == "" {
		return catalogs.Default()
	}
	return catalogs.Load(dir)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
