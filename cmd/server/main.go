package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"roguecloud.ai/internal/logging"
	"roguecloud.ai/internal/persistence/db"
	"roguecloud.ai/internal/sim/catalogs"
	"roguecloud.ai/internal/sim/rounds"
	"roguecloud.ai/internal/sim/tuning"
	"roguecloud.ai/internal/transport/observer"
	"roguecloud.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory (tick/event logs, snapshots); empty disables")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Int64("seed", 0, "world seed for every round (0 derives one from the round id)")
		dbDriver   = flag.String("db", "", "database driver: memory, sqlite or postgres (default: tuning database.driver)")
		dbDSN      = flag.String("dsn", "", "database dsn (default: tuning database.dsn)")
	)
	flag.Parse()

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil && os.IsNotExist(tuneErr) {
		tune, tuneErr = tuning.Defaults(), nil
	}

	logger, err := logging.New(tune.Logging)
	if err != nil {
		logger = zap.Must(zap.NewDevelopment())
		logger.Warn("logging config rejected; using development logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("server")

	if tuneErr != nil {
		logger.Fatal("load tuning", zap.String("path", tp), zap.Error(tuneErr))
	}
	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatal("load catalogs", zap.Error(err))
	}

	driver, dsn := tune.Database.Driver, tune.Database.DSN
	if *dbDriver != "" {
		driver = *dbDriver
	}
	if *dbDSN != "" {
		dsn = *dbDSN
	}
	if driver == "sqlite" && dsn == "" {
		dsn = filepath.Join(*dataDir, "index", "roguecloud.sqlite")
	}
	database, err := db.Open(driver, dsn, logger)
	if err != nil {
		logger.Fatal("open database", zap.String("driver", driver), zap.Error(err))
	}
	defer database.Close()

	ctx, cancel := signalContext()
	defer cancel()

	mgr := rounds.NewManager(rounds.ConfigFromTuning(*dataDir, *seed, tune), cats, database, logger)
	roundsDone := make(chan struct{})
	go func() {
		defer close(roundsDone)
		if err := mgr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("round manager stopped", zap.Error(err))
			cancel()
		}
	}()

	agents := ws.NewServer(mgr, database, ws.Options{AutoRegister: tune.AutoRegister, CatalogDigest: cats.Digest}, logger)
	spectators := observer.NewServer(mgr, time.Duration(tune.TickMs)*time.Millisecond/2, logger)
	h := &handlers{rounds: mgr, db: database, agents: agents, spectators: spectators, catalogDigest: cats.Digest, log: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", agents.Handler())
	mux.HandleFunc("/v1/browser/ws", spectators.Handler())
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /metrics", h.metrics)
	mux.HandleFunc("GET /v1/leaderboard", h.leaderboard)
	mux.HandleFunc("GET /v1/users/{username}/best", h.userBest)

	if envBool("ROGUECLOUD_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("GET /admin/v1/state", loopbackOnly(h.adminState))
		mux.HandleFunc("POST /admin/v1/round/end", loopbackOnly(h.adminEndRound))
	} else {
		logger.Info("admin endpoints disabled (ROGUECLOUD_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("ROGUECLOUD_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening",
		zap.String("addr", *addr),
		zap.String("db", driver),
		zap.String("catalog_digest", cats.Digest))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("ListenAndServe", zap.Error(err))
	}
	cancel()
	<-roundsDone
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
