package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/gatehouse-io/gatehouse/cmd/gatehouse/cli"
	"github.com/gatehouse-io/gatehouse/internal/app"
	"github.com/gatehouse-io/gatehouse/internal/audit"
	audithttp "github.com/gatehouse-io/gatehouse/internal/audit/http"
	"github.com/gatehouse-io/gatehouse/internal/auth"
	"github.com/gatehouse-io/gatehouse/internal/authz"
	"github.com/gatehouse-io/gatehouse/internal/observability"
	"github.com/gatehouse-io/gatehouse/internal/platform/cache"
	"github.com/gatehouse-io/gatehouse/internal/platform/db"
	"github.com/gatehouse-io/gatehouse/internal/rbac"
	"github.com/gatehouse-io/gatehouse/internal/resources"
	"github.com/gatehouse-io/gatehouse/internal/users"
	"github.com/gatehouse-io/gatehouse/jobs"
)

const usage = `usage: gatehouse <command> [flags]

commands:
  serve        run the HTTP API (default)
  migrate      apply the database schema
  policy       print the role policy table
  audit-queue  inspect the audit task queue
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "serve":
		return serve()
	case "migrate":
		return migrate()
	case "policy":
		return policy(args)
	case "audit-queue":
		return auditQueue(args)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
}

func policy(args []string) int {
	fs := flag.NewFlagSet("policy", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	file := fs.String("file", "", "validate and print this policy file instead of the active policy")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	p := authz.DefaultPolicy()
	var err error
	switch {
	case *file != "":
		p, err = app.LoadPolicyFile(*file)
	case os.Getenv("AUTHZ_POLICY_FILE") != "":
		p, err = app.LoadPolicyFile(os.Getenv("AUTHZ_POLICY_FILE"))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "policy: %v\n", err)
		return 1
	}
	if err := cli.PrintPolicy(os.Stdout, p, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "policy: %v\n", err)
		return 1
	}
	return 0
}

func auditQueue(args []string) int {
	fs := flag.NewFlagSet("audit-queue", flag.ContinueOnError)
	opts := cli.AuditQueueOptions{}
	fs.BoolVar(&opts.JSONOutput, "json", false, "print JSON")
	fs.BoolVar(&opts.Requeue, "requeue", false, "move archived tasks back to pending")
	fs.IntVar(&opts.Archived, "archived", 0, "list up to N archived tasks")
	fs.IntVar(&opts.Purge, "purge", 0, "enqueue a purge of entries older than N days")
	redisAddr := fs.String("redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "redis address")
	redisDB := fs.Int("db", 0, "redis database")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	redis := cache.Options{Addr: *redisAddr, Password: os.Getenv("REDIS_PASSWORD"), DB: *redisDB}
	c := cli.NewAuditQueueCLI(redis.Asynq())
	defer func() { _ = c.Close() }()
	return c.Command(context.Background(), opts)
}

func migrate() int {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		return 1
	}
	logger.Info("schema applied")
	return 0
}

func serve() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	rolePolicy, err := app.LoadPolicy(cfg)
	if err != nil {
		logger.Error("load policy", slog.Any("error", err))
		return 1
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer dbpool.Close()
	if err := db.Migrate(ctx, dbpool); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		return 1
	}

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	revocations := auth.NewRevocationList(redisClient)
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret: []byte(cfg.TokenSecret),
		Issuer: cfg.TokenIssuer,
		TTL:    cfg.TokenTTL,
	}, revocations)
	if err != nil {
		logger.Error("init tokens", slog.Any("error", err))
		return 1
	}
	authService := auth.NewService(auth.NewRepository(dbpool), tokens, revocations)
	authHandler := auth.NewHandler(logger, authService)

	usersRepo := users.NewRepository(dbpool)
	roleCache := users.NewRoleCache(redisClient, usersRepo, cfg.RoleCacheTTL, logger)
	resourcesRepo := resources.NewRepository(dbpool)

	engine := authz.NewEngine(
		authz.NewResolver(tokens, roleCache),
		authz.RecordStores{
			authz.EntityResource: resourcesRepo,
			authz.EntityUser:     usersRepo,
		},
		authz.WithPolicy(rolePolicy),
	)

	auditStore := audit.NewStore(dbpool)
	var asyncClient *asynq.Client
	var inspector *asynq.Inspector
	var persist audit.Recorder = auditStore
	if cfg.AuditAsync {
		redisOpt := cfg.Redis().Asynq()
		asyncClient = asynq.NewClient(redisOpt)
		inspector = asynq.NewInspector(redisOpt)
		persist = audit.NewQueue(asyncClient)
	}
	if cfg.AuditDeniesOnly {
		persist = audit.DeniesOnly{Next: persist}
	}
	recorder := audit.Fanout{audit.LogRecorder{Logger: logger}, persist}

	guard := &rbac.Guard{
		Engine:            engine,
		Logger:            logger,
		Audit:             recorder,
		Metrics:           metrics,
		DistinctForbidden: cfg.DistinctForbidden,
	}

	usersHandler := users.NewHandler(logger, users.NewService(usersRepo, roleCache, logger), guard)
	resourcesHandler := resources.NewHandler(logger, resources.NewService(resourcesRepo), guard)
	auditHandler := audithttp.NewHandler(logger, audit.NewService(auditStore))

	checks := map[string]app.HealthCheck{
		"postgres": dbpool.Ping,
		"redis":    cache.PingCheck(redisClient),
	}
	if inspector != nil {
		checks["audit_queue"] = jobs.QueueCheck(inspector)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Guard:            guard,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		ResourcesHandler: resourcesHandler,
		AuditHandler:     auditHandler,
		Metrics:          metrics,
		HealthChecks:     checks,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	code := 0
	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		code = 1
	}
	if inspector != nil {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}
	if asyncClient != nil {
		if err := asyncClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}
	return code
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
