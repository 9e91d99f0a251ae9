package wire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/alanyang/interview-router/internal/adapter/memory"
	pgdb "github.com/alanyang/interview-router/internal/adapter/postgres"
	pgeventbus "github.com/alanyang/interview-router/internal/adapter/postgres/eventbus"
	pgidempotency "github.com/alanyang/interview-router/internal/adapter/postgres/idempotency"
	pglocker "github.com/alanyang/interview-router/internal/adapter/postgres/locker"
	pgtranscript "github.com/alanyang/interview-router/internal/adapter/postgres/transcript"
	rediscache "github.com/alanyang/interview-router/internal/adapter/redis"
	"github.com/alanyang/interview-router/internal/adapter/retrieval/cached"
	"github.com/alanyang/interview-router/internal/adapter/retrieval/keyword"
	"github.com/alanyang/interview-router/internal/adapter/retrieval/traced"
	"github.com/alanyang/interview-router/internal/backoff"
	"github.com/alanyang/interview-router/internal/config"
	domainretrieval "github.com/alanyang/interview-router/internal/domain/retrieval"
	domainworker "github.com/alanyang/interview-router/internal/domain/worker"
	"github.com/alanyang/interview-router/internal/observability"
	portcache "github.com/alanyang/interview-router/internal/port/cache"
	porteventbus "github.com/alanyang/interview-router/internal/port/eventbus"
	portretrieval "github.com/alanyang/interview-router/internal/port/retrieval"

	"github.com/alanyang/interview-router/internal/service/dispatcher"
	"github.com/alanyang/interview-router/internal/service/lifecycle"
	"github.com/alanyang/interview-router/internal/service/monitor"

	"github.com/alanyang/interview-router/internal/transport"
	mcptransport "github.com/alanyang/interview-router/internal/transport/mcp"
	"github.com/alanyang/interview-router/internal/transport/ratelimit"
)

const shutdownGrace = 10 * time.Second

// App holds the top-level resources needed to run and gracefully stop the
// router.
type App struct {
	Config     *config.Config
	Registry   *memory.Registry
	Dispatcher *dispatcher.Service
	Tracker    *lifecycle.Tracker
	Monitor    *monitor.Monitor
	Server     *http.Server

	pool     *pgxpool.Pool
	redis    *goredis.Client
	memCache *memory.Cache
	requests *pgidempotency.Repository
	closers  []func()
}

// Build is the composition root: the only place concrete types are wired to
// their interface dependencies. A nil cfg loads ROUTER_CONFIG or the defaults.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		var err error
		if cfg, err = loadConfig(); err != nil {
			return nil, err
		}
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	app := &App{Config: cfg}

	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	seeds := newSeeder(cfg.Seed)
	now := time.Now

	// ── Database (optional) ──────────────────────────────────────────────────
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgdb.Connect(ctx, dbURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		app.pool = pool
		app.closers = append(app.closers, pool.Close)
		if err := pgdb.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("migrating database: %w", err)
		}
	}

	// ── Adapters ─────────────────────────────────────────────────────────────
	var eventBus porteventbus.EventBus
	if app.pool != nil {
		eventBus = pgeventbus.New(app.pool)
	} else {
		eventBus = memory.NewEventBus(256)
	}

	store, err := app.buildCache(ctx)
	if err != nil {
		return nil, err
	}

	retriever, err := app.buildRetriever(ctx, store)
	if err != nil {
		return nil, err
	}

	// Without Redis, replayable responses live in Postgres so they survive
	// a restart.
	requests := store
	if app.pool != nil && app.redis == nil {
		app.requests = pgidempotency.New(app.pool)
		requests = app.requests
	}

	registry := memory.NewRegistry()
	draw := seeds.next()
	for _, seed := range cfg.Seeds() {
		w := domainworker.FromSeed(seed, func(lo, hi float64) float64 { return lo + draw.Float64()*(hi-lo) }, now())
		if err := registry.Register(w); err != nil {
			return nil, fmt.Errorf("registering worker: %w", err)
		}
	}
	app.Registry = registry

	metrics := observability.NewRecorder()

	// ── Services ─────────────────────────────────────────────────────────────
	tracker := lifecycle.NewTracker(lifecycle.Config{
		MinDelay: cfg.Lifecycle.MinDelay,
		MaxDelay: cfg.Lifecycle.MaxDelay,
		Rand:     seeds.next(),
	}, registry, eventBus, metrics)

	var strategy backoff.Strategy
	if cfg.Dispatcher.BackoffInitial > 0 {
		strategy = backoff.NewExponential(cfg.Dispatcher.BackoffInitial, max(cfg.Dispatcher.BackoffMax, cfg.Dispatcher.BackoffInitial))
	}
	svc := dispatcher.NewService(dispatcher.Config{
		RetrievalTimeout: cfg.Dispatcher.RetrievalTimeout,
		MaxMatchAttempts: cfg.Dispatcher.MaxMatchAttempts,
		StartOffsetMin:   cfg.Dispatcher.StartOffsetMin,
		StartOffsetMax:   cfg.Dispatcher.StartOffsetMax,
		Backoff:          strategy,
		Rand:             seeds.next(),
	}, registry, retriever, tracker, eventBus, metrics)

	mon := monitor.New(monitorConfig(cfg.Monitor, seeds.next()), registry, tracker, svc, eventBus, metrics)
	mon.OnAvailable(func(string) { svc.Wake() })

	app.Tracker = tracker
	app.Dispatcher = svc
	app.Monitor = mon

	// ── Transport ─────────────────────────────────────────────────────────────
	limiter := ratelimit.New(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	mcpServer := mcptransport.New(mcptransport.NewSessionRegistry(), svc, limiter)

	router, err := transport.NewRouter(ctx, svc, registry, limiter, requests, mcpServer, eventBus)
	if err != nil {
		return nil, fmt.Errorf("building router: %w", err)
	}
	app.Server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("application wired",
		"port", cfg.Port,
		"workers", len(registry.List()),
		"postgres", app.pool != nil,
		"redis", app.redis != nil,
	)
	ok = true
	return app, nil
}

func loadConfig() (*config.Config, error) {
	path := os.Getenv("ROUTER_CONFIG")
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// buildCache picks Redis when REDIS_ADDR is set so replicas share entries,
// otherwise an in-process cache swept in the background.
func (a *App) buildCache(ctx context.Context) (portcache.Cache, error) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client, err := rediscache.Connect(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.redis = client
		a.closers = append(a.closers, func() { _ = client.Close() })
		return rediscache.NewCache(client, "interview-router:"), nil
	}
	a.memCache = memory.NewCache()
	return a.memCache, nil
}

// buildRetriever uses Postgres full-text search when a database is configured,
// seeding an empty table from the corpus, and the keyword index otherwise.
func (a *App) buildRetriever(ctx context.Context, store portcache.Cache) (portretrieval.Retriever, error) {
	cfg := a.Config.Retrieval
	chunks, err := a.Config.LoadCorpus()
	if err != nil {
		return nil, err
	}

	var base portretrieval.Retriever
	if a.pool != nil {
		opts := []pgtranscript.Option{pgtranscript.WithTopK(cfg.TopK)}
		if cfg.MinScore != nil {
			opts = append(opts, pgtranscript.WithMinScore(*cfg.MinScore))
		}
		repo := pgtranscript.New(a.pool, opts...)
		err := pglocker.New(a.pool).WithLock(ctx, pglocker.CorpusLock, func(ctx context.Context) error {
			return ensureCorpus(ctx, repo, chunks)
		})
		if err != nil {
			return nil, err
		}
		base = traced.New(repo, "postgres")
	} else {
		opts := []keyword.Option{keyword.WithTopK(cfg.TopK)}
		if cfg.MinScore != nil {
			opts = append(opts, keyword.WithMinScore(*cfg.MinScore))
		}
		base = traced.New(keyword.New(chunks, opts...), "keyword")
	}

	if cfg.CacheTTL < 0 {
		return base, nil
	}
	return cached.New(base, store, cfg.CacheTTL), nil
}

func ensureCorpus(ctx context.Context, repo *pgtranscript.Repository, chunks []domainretrieval.Chunk) error {
	n, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting transcripts: %w", err)
	}
	if n > 0 || len(chunks) == 0 {
		return nil
	}
	inserted, err := repo.Insert(ctx, chunks)
	if err != nil {
		return fmt.Errorf("seeding transcripts: %w", err)
	}
	slog.Info("seeded transcript corpus", "chunks", inserted)
	return nil
}

func monitorConfig(c config.MonitorConfig, rnd *rand.Rand) monitor.Config {
	mc := monitor.DefaultConfig()
	mc.Interval = c.Interval
	mc.Disabled = c.DisableChurn
	mc.Rand = rnd
	if c.ChurnGate != nil {
		mc.ChurnGate = *c.ChurnGate
	}
	if c.BreakProbability != nil {
		mc.BreakProbability = *c.BreakProbability
	}
	if c.ReturnProbability != nil {
		mc.ReturnProbability = *c.ReturnProbability
	}
	if c.ShedProbability != nil {
		mc.ShedProbability = *c.ShedProbability
	}
	return mc
}

// Run starts the processing loop, the monitor and the HTTP server and blocks
// until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	return a.run(ctx, true)
}

// RunHeadless runs the router without the HTTP server.
func (a *App) RunHeadless(ctx context.Context) error {
	return a.run(ctx, false)
}

func (a *App) run(ctx context.Context, serveHTTP bool) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.Dispatcher.Run(gctx) })
	g.Go(func() error { return a.Monitor.Run(gctx) })
	sweepEvery := envDuration("CACHE_SWEEP_SECONDS", time.Minute)
	if a.memCache != nil {
		g.Go(func() error {
			runSweeper(gctx, "memory", sweepEvery, memorySweep(a.memCache))
			return nil
		})
	}
	if a.requests != nil {
		g.Go(func() error {
			runSweeper(gctx, "processed_requests", sweepEvery, a.requests.Purge)
			return nil
		})
	}

	if serveHTTP {
		g.Go(func() error {
			slog.Info("HTTP + MCP server listening", "addr", a.Server.Addr)
			if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := a.Server.Shutdown(shutdownCtx); err != nil {
				slog.Error("HTTP server shutdown error", "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	a.Tracker.Shutdown()
	return err
}

// Close releases external connections. Safe to call more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
