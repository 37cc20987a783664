package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/runbookd/runbookd/internal/cache"
	"github.com/runbookd/runbookd/internal/compiler"
	"github.com/runbookd/runbookd/internal/config"
	"github.com/runbookd/runbookd/internal/dsl"
	"github.com/runbookd/runbookd/internal/events"
	"github.com/runbookd/runbookd/internal/gate"
	"github.com/runbookd/runbookd/internal/locks"
	"github.com/runbookd/runbookd/internal/logging"
	"github.com/runbookd/runbookd/internal/metrics"
	"github.com/runbookd/runbookd/internal/observability"
	"github.com/runbookd/runbookd/internal/pack"
	"github.com/runbookd/runbookd/internal/registry"
	"github.com/runbookd/runbookd/internal/runstore"
	"github.com/runbookd/runbookd/internal/searchindex"
	"github.com/runbookd/runbookd/internal/stepexec"
	"github.com/runbookd/runbookd/internal/validator"
)

// defaultEntityTypes are the ref kinds the search index serves out of the
// box; a real deployment registers whatever ref kinds its pack manifests
// reference.
var defaultEntityTypes = []searchindex.EntityTypeConfig{
	{EntityType: "entity", Mode: searchindex.ModeSubstringFuzzy},
	{EntityType: "cbu", Mode: searchindex.ModeSubstringFuzzy},
	{EntityType: "account", Mode: searchindex.ModeSubstringFuzzy},
	{EntityType: "instrument", Mode: searchindex.ModeExactToken},
	{EntityType: "approval", Mode: searchindex.ModeSubstringFuzzy},
}

func serveCmd() *cobra.Command {
	var packsDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the runbookd control-plane daemon",
		Long:  "Runs runbookd as a daemon exposing compile/execute/search endpoints and a Prometheus metrics scrape target.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configFile != "" {
				var err error
				cfg, err = config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			config.LoadFromEnv(cfg)

			if cmd.Flags().Changed("pg-dsn") {
				cfg.Postgres.DSN = pgDSN
			}
			if cmd.Flags().Changed("redis") {
				cfg.Redis.Addr = redisAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
				cfg.Observability.Logging.Level = logLevel
			}

			logging.SetLevelFromString(cfg.Daemon.LogLevel)
			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     cfg.Observability.Tracing.Enabled,
				ServiceName: cfg.Observability.Tracing.ServiceName,
				SampleRate:  cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			if cfg.Observability.Metrics.Enabled {
				metrics.Init(cfg.Observability.Metrics.Namespace, cfg.Observability.Metrics.HistogramBuckets)
			}

			var warmCache cache.Cache
			var invalidator *cache.CacheInvalidator
			if cfg.SearchIndex.WarmCacheEnabled {
				l1 := cache.NewInMemoryCache()
				l2 := cache.NewRedisCache(cache.RedisCacheConfig{
					Addr:      cfg.Redis.Addr,
					Password:  cfg.Redis.Password,
					DB:        cfg.Redis.DB,
					KeyPrefix: "runbookd:cache:",
				})
				tiered := cache.NewTieredCache(l1, l2, 10*time.Second)
				warmCache = tiered

				invalidator = cache.NewCacheInvalidator(l1, redisClient(cfg.Redis))
				go invalidator.Start(context.Background())
			}

			idxManager := searchindex.NewManager(
				cfg.SearchIndex.FuzzyPrefixMaxLen,
				cfg.SearchIndex.MaxEditDistance,
				cfg.SearchIndex.DefaultLimit,
				warmCache,
			)
			for _, et := range defaultEntityTypes {
				idxManager.Register(et)
				if warmCache != nil {
					if err := idxManager.RestoreFromWarmCache(context.Background(), et.EntityType); err != nil {
						logging.Op().Debug("no warm cache snapshot to restore", "entity_type", et.EntityType, "error", err)
					}
				}
			}

			packManager := pack.NewManager()
			if packsDir != "" {
				manifests, err := loadPackManifests(packsDir)
				if err != nil {
					return fmt.Errorf("load pack manifests: %w", err)
				}
				for _, m := range manifests {
					packManager.Register(m)
				}
				logging.Op().Info("registered packs", "count", len(manifests), "dir", packsDir)
			}

			pipeline := events.New(packManager)
			reg := registry.Default()

			var pool *pgxpool.Pool
			var store runstore.RunbookStore = runstore.New()
			if cfg.Postgres.DSN != "" {
				p, err := pgxpool.New(context.Background(), cfg.Postgres.DSN)
				if err != nil {
					logging.Op().Warn("failed to connect to Postgres; running in-memory store without write-set locking", "error", err)
				} else {
					pool = p
					defer pool.Close()
					pgStore, err := runstore.NewPostgresStoreFromPool(context.Background(), pool)
					if err != nil {
						logging.Op().Warn("failed to initialize Postgres runbook store; falling back to in-memory", "error", err)
					} else {
						store = pgStore
					}
				}
			}

			srv := &daemonServer{
				cfg:         cfg,
				registry:    reg,
				idxManager:  idxManager,
				packManager: packManager,
				pipeline:    pipeline,
				store:       store,
				pool:        pool,
				executor:    stepexec.SuccessExecutor{},
				lockMode:    parseLockMode(cfg.Gate.LockMode),
			}

			mux := http.NewServeMux()
			mux.HandleFunc("/healthz", srv.handleHealthz)
			mux.Handle("/metrics", metrics.Handler())
			mux.HandleFunc("/v1/runbooks", srv.handleCompile)
			mux.HandleFunc("/v1/runbooks/execute", srv.handleExecute)
			mux.HandleFunc("/v1/search", srv.handleSearch)

			httpServer := &http.Server{Addr: cfg.Daemon.HTTPAddr, Handler: observability.HTTPMiddleware(mux)}
			go func() {
				logging.Op().Info("HTTP API started", "addr", cfg.Daemon.HTTPAddr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logging.Op().Error("HTTP server error", "error", err)
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			logging.Op().Info("shutdown signal received")

			if invalidator != nil {
				_ = invalidator.Close()
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(ctx)
		},
	}

	cmd.Flags().StringVar(&packsDir, "packs-dir", "", "directory of pack manifest YAML files to register at startup")
	return cmd
}

// daemonServer holds the wired services the HTTP handlers dispatch to.
type daemonServer struct {
	cfg         *config.Config
	registry    *registry.Registry
	idxManager  *searchindex.Manager
	packManager *pack.Manager
	pipeline    *events.Pipeline
	store       runstore.RunbookStore
	pool        *pgxpool.Pool
	executor    stepexec.StepExecutor
	lockMode    locks.AcquireMode
}

func (s *daemonServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type compileRequest struct {
	Source    string `json:"source"`
	SessionID string `json:"session_id"`
}

func (s *daemonServer) handleCompile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req compileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}

	ast, err := dsl.Parse(req.Source)
	if err != nil {
		http.Error(w, fmt.Sprintf("parse: %v", err), http.StatusBadRequest)
		return
	}

	vctx := validator.ValidationContext{Resolver: s.idxManager}
	validated, report := validator.Validate(ast, s.registry, vctx)
	if report.HasErrors() {
		for _, e := range report.Errors {
			metrics.RecordValidationError(e.Kind.String())
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(report)
		return
	}

	constraints := s.packManager.EffectiveConstraints()
	for _, call := range validated.Calls {
		if !constraints.IsVerbAllowed(call.Verb) {
			http.Error(w, fmt.Sprintf("verb %q is not permitted under the active pack set", call.Verb), http.StatusForbidden)
			return
		}
	}

	rb := compiler.Compile(validated, s.registry, compiler.ExpansionContext{
		SessionID:    req.SessionID,
		TraceContext: observability.ExtractTraceContext(r.Context()),
	}, req.Source)
	s.store.Put(r.Context(), rb)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rb)
}

type executeRequest struct {
	RunbookID string `json:"runbook_id"`
}

func (s *daemonServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}
	id, err := parseRunbookID(req.RunbookID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := gate.ExecuteRunbookWithLockMode(r.Context(), s.store, id, nil, s.executor, s.pool, s.pipeline, s.lockMode)
	if err != nil {
		if execErr, ok := err.(*gate.ExecutionError); ok && execErr.Kind == gate.LockContention {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (s *daemonServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	query := r.URL.Query().Get("q")
	matches, err := s.idxManager.Search(entityType, query, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(matches)
}
