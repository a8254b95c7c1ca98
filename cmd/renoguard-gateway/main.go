package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/davidahmann/renoguard/internal/api"
	"github.com/davidahmann/renoguard/internal/audit"
	"github.com/davidahmann/renoguard/internal/config"
	"github.com/davidahmann/renoguard/internal/decision"
	"github.com/davidahmann/renoguard/internal/ledger"
	"github.com/davidahmann/renoguard/internal/ledger/filestore"
	"github.com/davidahmann/renoguard/internal/ledger/pgstore"
	"github.com/davidahmann/renoguard/internal/ledger/sqlstore"
	"github.com/davidahmann/renoguard/internal/policy"
	"github.com/davidahmann/renoguard/internal/ratelimit"
	"github.com/davidahmann/renoguard/internal/risk"
	"github.com/davidahmann/renoguard/internal/rules"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := loadDotenv(".env"); err != nil {
		log.Printf("dotenv: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runFn(ctx, os.Args[1:], os.Getenv, serve, newGateway); err != nil {
		fatalf("server error: %v", err)
	}
}

var runFn = run
var fatalf = log.Fatalf

type envFn func(string) string
type listenFn func(ctx context.Context, server *http.Server) error
type gatewayFactory func(cfg config.Config, logger *slog.Logger) (*gateway, error)

// gateway is a wired server plus the resources to release after it stops.
type gateway struct {
	server  *http.Server
	closers []func(context.Context) error
}

func (g *gateway) close(ctx context.Context) error {
	var errs []error
	for i := len(g.closers) - 1; i >= 0; i-- {
		if err := g.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, args []string, getenv envFn, listen listenFn, factory gatewayFactory) error {
	flags := flag.NewFlagSet("renoguard-gateway", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to renoguard config file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfgFile := firstNonEmpty(*configPath, getenv("RENOGUARD_CONFIG_PATH"))

	cfg := config.Default()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	cfg.ListenAddr = firstNonEmpty(getenv("RENOGUARD_LISTEN_ADDR"), cfg.ListenAddr, ":8080")
	cfg.PolicyPath = firstNonEmpty(getenv("RENOGUARD_POLICY_PATH"), cfg.PolicyPath)
	cfg.RateLimit.RedisAddr = firstNonEmpty(getenv("RENOGUARD_REDIS_ADDR"), cfg.RateLimit.RedisAddr)
	if dsn := getenv("RENOGUARD_AUDIT_DSN"); dsn != "" {
		cfg.Audit.DSN = dsn
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.Log, os.Stderr)
	gw, err := factory(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("renoguard-gateway listening", "addr", cfg.ListenAddr, "audit_driver", cfg.Audit.Driver)
	serveErr := listen(ctx, gw.server)
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, gw.close(closeCtx))
}

func newGateway(cfg config.Config, logger *slog.Logger) (*gateway, error) {
	gw := &gateway{}

	engine := risk.Default()
	if cfg.PolicyPath != "" {
		loaded, err := policy.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("policy: %w", err)
		}
		engine = risk.NewEngine(loaded)
	}
	dispatcher := decision.NewDispatcher(engine, rules.Default(), decision.Options{
		Timeout: cfg.Evaluation.Timeout,
		Logger:  logger,
	})

	store, closeStore, err := openAuditStore(cfg.Audit)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		gw.closers = append(gw.closers, func(context.Context) error { return closeStore() })
	}

	auditLog := audit.NewLogger(store, audit.Options{QueueSize: cfg.Audit.QueueSize, Logger: logger})
	gw.closers = append(gw.closers, auditLog.Close)

	h := &api.Handler{
		Decisions: &api.DecisionService{Dispatcher: dispatcher, Audit: auditLog, Logger: logger},
		AuditLog:  store,
		Logger:    logger,
	}

	bg, stopBackground := context.WithCancel(context.Background())
	gw.closers = append(gw.closers, func(context.Context) error { stopBackground(); return nil })

	if cfg.RateLimit.RPS > 0 {
		h.Limiter = ratelimit.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, ratelimit.DefaultIdleTTL)
		go h.Limiter.Run(bg, time.Minute)
	}
	if cfg.RateLimit.SessionQuota > 0 {
		var counters ratelimit.CounterStore
		if cfg.RateLimit.RedisAddr != "" {
			redisStore, client := ratelimit.NewRedisStoreFromAddr(cfg.RateLimit.RedisAddr)
			counters = redisStore
			gw.closers = append(gw.closers, func(context.Context) error { return client.Close() })
		} else {
			memory := ratelimit.NewMemoryStore()
			counters = memory
			go sweepEvery(bg, memory, time.Minute)
		}
		h.Quota = ratelimit.NewQuota(counters, cfg.RateLimit.SessionQuota, cfg.RateLimit.QuotaWindow)
	}

	gw.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return gw, nil
}

func openAuditStore(cfg config.AuditConfig) (ledger.Store, func() error, error) {
	switch cfg.Driver {
	case config.AuditDriverSQLite:
		s, err := sqlstore.OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("audit sqlite: %w", err)
		}
		return s, s.Close, nil
	case config.AuditDriverPostgres:
		s, err := pgstore.OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("audit postgres: %w", err)
		}
		return s, s.Close, nil
	case config.AuditDriverMemory:
		return ledger.NewInMemoryStore(), nil, nil
	default:
		return filestore.New(cfg.Dir), nil, nil
	}
}

func sweepEvery(ctx context.Context, store *ratelimit.MemoryStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Sweep()
		}
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// serve runs server until ctx ends, then drains in-flight requests.
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// loadDotenv fills unset variables from path. A missing file is not an error.
func loadDotenv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
