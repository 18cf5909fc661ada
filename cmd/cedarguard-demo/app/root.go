// Package app wires cedarguard's components into a runnable demo:
// a CLI that loads Cedar policies, an optional Postgres/SQLite entity
// store, and an optional Redis cache, then serves authorization checks
// either as a one-shot command or a long-running process with hot
// policy reload and a Prometheus metrics endpoint.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"cedarguard/internal/audit"
	"cedarguard/internal/authzerr"
	"cedarguard/internal/batcher"
	"cedarguard/internal/cache"
	"cedarguard/internal/config"
	"cedarguard/internal/db"
	"cedarguard/internal/engine"
	"cedarguard/internal/entity"
	"cedarguard/internal/entitycache"
	"cedarguard/internal/fetcher"
	"cedarguard/internal/interceptor"
	"cedarguard/internal/logger"
	"cedarguard/internal/metrics"
	"cedarguard/internal/observability"
	"cedarguard/internal/session"
	"cedarguard/internal/store"
	"cedarguard/internal/trace"
)

var rootCmd = &cobra.Command{
	Use:               "cedarguard-demo",
	DisableAutoGenTag: true,
	Short:             "Run and exercise the cedarguard authorization runtime",
	Long: `cedarguard-demo wires the entity store, Cedar engine, session runner,
and interceptor pipeline together against a policy directory and an
optional SQL/Redis backing store. It exists to exercise the runtime end
to end, not as a production deployment.`,
}

// NewRootCmd builds the cedarguard-demo root command.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().String("policy-dir", "", "directory containing .cedar policy files (overrides CEDARGUARD_POLICY_DIR)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	return rootCmd
}

// runtime holds every wired component a command needs.
type runtime struct {
	cfg     config.Config
	eng     *engine.Engine
	watcher *engine.Watcher
	st      *store.Store
	sess    func(principal entity.UID) *session.Session
	metrics *metrics.Collector
	recent  *trace.Store
	closers []func() error
}

func bootstrap(cmd *cobra.Command) (*runtime, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	logger.Init(logger.DefaultConfig())
	log := logger.WithComponent("cedarguard-demo")

	cfg := config.Load()
	if dir, _ := cmd.Root().PersistentFlags().GetString("policy-dir"); dir != "" {
		cfg.PolicyDir = dir
	}

	rt := &runtime{cfg: cfg, metrics: metrics.NewCollector(), recent: trace.NewStore(4000)}

	if cfg.OTLPEndpoint != "" {
		tp, err := observability.InitTracer(cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			log.Warn("OpenTelemetry tracer unavailable, tracing interceptor becomes a no-op", "error", err)
		} else {
			rt.closers = append(rt.closers, func() error { return tp.Shutdown(context.Background()) })
		}
	}

	rt.eng = engine.New()
	policyFile := cfg.PolicyDir + "/authorization.cedar"
	watcher, err := engine.Watch(rt.eng, policyFile,
		engine.WithDebounce(500*time.Millisecond),
		engine.OnReload(func(err error) {
			if err != nil {
				log.Warn("policy reload failed", "error", err)
				return
			}
			log.Info("policy set reloaded", "path", policyFile)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("cedarguard-demo: watching policy file: %w", err)
	}
	rt.watcher = watcher

	registry, database, closers, err := buildRegistry(cfg, log)
	if err != nil {
		rt.watcher.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, closers...)

	rt.st = store.New(registry)

	ics := []session.Interceptor{interceptor.NewTrace(), interceptor.NewMetrics(rt.metrics), interceptor.NewRecent(rt.recent)}

	if database != nil {
		auditLogger := audit.NewLogger(database.AuditLog(), audit.DefaultConfig())
		ics = append(ics, interceptor.NewAudit(auditLogger, 256))
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := interceptor.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Warn("kafka producer unavailable, decision stream disabled", "error", err)
		} else {
			ics = append(ics, interceptor.NewKafka(producer))
			rt.closers = append(rt.closers, producer.Close)
		}
	}

	chained := interceptor.New(ics...)

	rt.sess = func(principal entity.UID) *session.Session {
		return session.New(principal, rt.eng, rt.st, session.WithInterceptor(chained))
	}

	return rt, nil
}

func (rt *runtime) Close() {
	rt.watcher.Close()
	for _, c := range rt.closers {
		_ = c()
	}
}

// entityTypes lists the Cedar entity types the demo's SQL fetchers serve.
// A real embedding registers whatever types its own policies reference;
// this is a fixed example set for the demo database schema.
var entityTypes = []string{"User", "Photo", "Album", "Document"}

// buildRegistry registers one Fetcher per entity type the demo database
// knows about. Each registered fetcher is a cache+batcher pipeline in
// front of a raw SQLFetcher: entitycache.Cache provides the coalescing
// read cache and batcher.Batcher provides the per-type batch window.
// The composition lives here, in the wiring layer, rather than
// inside internal/fetcher, because batcher already depends on
// fetcher.Registry and a Fetcher implementation embedding *batcher.Batcher
// would close that import cycle.
func buildRegistry(cfg config.Config, log *slog.Logger) (*fetcher.Registry, db.Database, []func() error, error) {
	var closers []func() error

	database, driver, err := db.NewWithFallback(db.Config{Driver: "postgres", DSN: cfg.DatabaseDSN})
	if err != nil {
		log.Warn("database unavailable, running with an empty entity registry", "error", err)
		entCache, cerr := entitycache.New(entitycache.DefaultConfig())
		if cerr != nil {
			return nil, nil, nil, authzerr.Wrap(authzerr.ConfigurationError, "building entity cache", cerr)
		}
		return fetcher.NewRegistry(), nil, []func() error{func() error { entCache.Close(); return nil }}, nil
	}
	log.Info("entity database connected", "driver", driver)
	closers = append(closers, database.Close)

	if err := database.RunMigrations(); err != nil {
		log.Warn("database migrations failed", "error", err)
	}

	raw := fetcher.NewRegistry()
	for _, entityType := range entityTypes {
		raw.Register(entityType, fetcher.NewSQLFetcher(entityType, database.Entities()))
	}

	registeredTypes := append([]string{}, entityTypes...)
	if cfg.RedisAddr != "" {
		redisCache, rerr := cache.NewGoRedis(&cache.GoRedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			KeyPrefix: "cedarguard:",
		})
		if rerr != nil {
			log.Warn("redis unavailable, Session entities will not resolve", "error", rerr)
		} else {
			closers = append(closers, redisCache.Close)
			raw.Register("Session", fetcher.NewRedisFetcher("Session", redisCache))
			registeredTypes = append(registeredTypes, "Session")
			log.Info("redis session fetcher registered", "addr", cfg.RedisAddr)
		}
	}

	entCache, err := entitycache.New(entitycache.DefaultConfig())
	if err != nil {
		return nil, nil, nil, authzerr.Wrap(authzerr.ConfigurationError, "building entity cache", err)
	}
	closers = append(closers, func() error { entCache.Close(); return nil })

	bat := batcher.New(raw, batcher.DefaultConfig())
	closers = append(closers, func() error { bat.Shutdown(); return nil })

	composed := fetcher.NewRegistry()
	for _, entityType := range registeredTypes {
		composed.Register(entityType, &cachedFetcher{entityType: entityType, cache: entCache, batcher: bat})
	}

	return composed, database, closers, nil
}

// cachedFetcher implements fetcher.Fetcher for a single entityType,
// routing every load through the coalescing cache (which builds via the
// batcher on a miss); FetchBatch fans out over Fetch, so batch loads take
// the same cache-then-batcher path one id at a time.
type cachedFetcher struct {
	entityType string
	cache      *entitycache.Cache
	batcher    *batcher.Batcher
}

func (c *cachedFetcher) Fetch(ctx context.Context, id string) (*entity.Entity, error) {
	uid := entity.NewUID(c.entityType, id)
	return c.cache.GetOrBuild(ctx, uid, func(ctx context.Context, key entity.UID) (*entity.Entity, error) {
		return c.batcher.Load(ctx, key)
	})
}

func (c *cachedFetcher) FetchBatch(ctx context.Context, ids []string) (map[string]*entity.Entity, error) {
	return fetcher.DefaultFetchBatch(ctx, c, ids)
}
