// Command matcherd runs the account-actor subsystem: the Directory, the
// process-wide BalanceOracle, the WAL-backed store sink, the PostgreSQL
// order store and the subscriber websocket server.
//
// Grounded on the teacher's cmd/trader entrypoint idiom — signal-driven
// context cancellation, a single flag for the config file path, an
// optional pyroscope profiler (the teacher guards it with a literal
// `if false` in pkg/websocket/example/main.go) — here behind the -profile
// flag so profiling can be toggled without a rebuild.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"github.com/BitFinance-Co/dex/internal/account"
	"github.com/BitFinance-Co/dex/internal/balance"
	"github.com/BitFinance-Co/dex/internal/config"
	"github.com/BitFinance-Co/dex/internal/directory"
	"github.com/BitFinance-Co/dex/internal/domain"
	"github.com/BitFinance-Co/dex/internal/obs"
	"github.com/BitFinance-Co/dex/internal/orderdb"
	"github.com/BitFinance-Co/dex/internal/storesink"
	"github.com/BitFinance-Co/dex/internal/wsfeed"
)

func main() {
	configPath := flag.String("config", "matcherd.json", "path to the JSON configuration file")
	enableProfiling := flag.Bool("profile", false, "enable continuous profiling via pyroscope")
	configReload := flag.Duration("config-reload-interval", 2*time.Second, "account config reload poll interval (0=disable)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("matcherd: load config: %v", err)
	}

	if *enableProfiling {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "matcherd",
			ServerAddress:   envOr("PYROSCOPE_SERVER", "http://localhost:4040"),
			Tags:            map[string]string{"env": envOr("ENV", "local")},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("matcherd: pyroscope start failed: %v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	db, err := orderdb.Open(cfg.Postgres)
	if err != nil {
		log.Fatalf("matcherd: open order db: %v", err)
	}
	defer db.Close()

	sink, err := storesink.Open(cfg.Wal)
	if err != nil {
		log.Fatalf("matcherd: open store sink: %v", err)
	}
	defer sink.Close()

	node := &unimplementedNodeClient{}
	oracle := balance.New(node)
	metrics := obs.NewMetrics()

	dir := directory.New(ctx, oracle, node, sink, db, cfg.Account, metrics)
	defer dir.Shutdown()

	if *configReload > 0 {
		go watchConfig(ctx, *configPath, *configReload, dir.SetAccountConfig)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/subscribe", subscribeHandler(dir, cfg.Ws))
	mux.HandleFunc("/metrics", metricsHandler(metrics))
	server := &http.Server{Addr: cfg.Listen, Handler: mux}

	go func() {
		logs.Infof("matcherd: listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("matcherd: http server: %v", err)
		}
	}()

	// History replay would load each known account's remaining orders from
	// orderdb here and Dispatch them into freshly spawned actors before
	// enabling expiry scheduling; the replay driver itself is out of scope
	// (spec.md §1 excludes the persistence store's history-load ordering
	// logic beyond the actor-level StartSchedules gate it is followed by).
	dir.StartSchedules(ctx)

	<-ctx.Done()
	logs.Infof("matcherd: shutting down")
	_ = server.Close()
}

func subscribeHandler(dir *directory.Directory, wsCfg wsfeed.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addrHex := r.URL.Query().Get("address")
		var addr domain.Address
		if err := addr.UnmarshalText([]byte(addrHex)); err != nil {
			http.Error(w, "invalid address", http.StatusBadRequest)
			return
		}
		sub, err := wsfeed.Accept(w, r, wsCfg)
		if err != nil {
			logs.Errorf("matcherd: websocket upgrade failed: %+v", err)
			return
		}
		if err := dir.Dispatch(r.Context(), addr, account.WsSubscribe{Subscriber: sub}); err != nil {
			logs.Errorf("matcherd: failed to register subscriber for %s: %+v", addr, err)
		}
	}
}

func metricsHandler(metrics *obs.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(metrics.Snapshot())
	}
}

// watchConfig polls path for a newer mtime every interval and, on change,
// reloads it and hands the account section to update — the teacher's
// watchConfig idiom from cmd/trader/main.go, narrowed to the one config
// slice that's safe to swap into an already-running Directory without
// tearing anything down.
func watchConfig(ctx context.Context, path string, interval time.Duration, update func(account.Config)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Errorf("matcherd: config stat failed: %+v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			loaded, err := config.Load(path)
			if err != nil {
				logs.Errorf("matcherd: config reload failed: %+v", err)
				continue
			}
			update(loaded.Account)
			lastMod = info.ModTime()
			logs.Infof("matcherd: config reloaded from %s", path)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// unimplementedNodeClient is the wiring seam for the on-chain node client,
// explicitly out of scope per spec.md §1. A real deployment swaps this for
// a client talking to the blockchain node's gRPC/REST surface.
type unimplementedNodeClient struct{}

func (*unimplementedNodeClient) HasOrder(ctx context.Context, id domain.OrderID) (bool, error) {
	return false, errNodeClientUnimplemented
}

func (*unimplementedNodeClient) SpendableBalance(ctx context.Context, addr domain.Address, assets []domain.Asset) (map[domain.Asset]int64, error) {
	return nil, errNodeClientUnimplemented
}

func (*unimplementedNodeClient) SpendableBalanceSnapshot(ctx context.Context, addr domain.Address) (map[domain.Asset]int64, error) {
	return nil, errNodeClientUnimplemented
}

var errNodeClientUnimplemented = &domain.MatcherError{Code: domain.WavesNodeConnectionBroken, Detail: "node client not wired in this deployment"}
