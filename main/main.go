package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lumigente_backend/engagement/avaliacoes"
	"lumigente_backend/engagement/historico"
	"lumigente_backend/engagement/objetivos"
	"lumigente_backend/engagement/pesquisas"
	"lumigente_backend/main/api"
	"lumigente_backend/main/config"
	"lumigente_backend/main/database"
	"lumigente_backend/main/logger"
	"lumigente_backend/main/mailer"
	"lumigente_backend/main/metrics"
	"lumigente_backend/main/ratelimit"
	"lumigente_backend/main/scheduler"
	"lumigente_backend/main/session"
	"lumigente_backend/users/auth"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "lumigente:", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuração e logger
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.Init(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	api.AllowOrigin(cfg.CORSOrigin)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Banco de dados
	database.Configure(cfg.Database())
	conn, err := database.Open()
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(ctx, conn, database.Driver()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	auth.Configure(auth.Settings{SpecialCPFs: cfg.SpecialCPFs(), BcryptCost: cfg.BcryptSaltRounds})
	mailer.SetDefault(mailer.New(mailer.Config{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}), cfg.AppURL)
	if cfg.SMTPHost == "" {
		log.Warn("SMTP_HOST not set, e-mails are disabled")
	}

	if err := setupHistorico(cfg); err != nil {
		return err
	}

	// 3. Sessões e rate limit
	store, closeStore, err := sessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	manager := session.NewManager(store, session.Options{
		CookieName: cfg.SessionCookieName,
		Secret:     cfg.SessionSecret,
		MaxAge:     cfg.SessionMaxAge(),
		Secure:     cfg.SessionSecure,
		HTTPOnly:   cfg.SessionHTTPOnly,
	})

	limits := ratelimit.FromConfig(cfg)
	janitors := limits.StartJanitors(ctx)

	// 4. Jobs
	jobs, err := startScheduler(cfg, store)
	if err != nil {
		return err
	}

	// 5. Router
	r := newRouter(manager, limits, cfg.FrontendDir)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.String("db_driver", database.Driver()),
			zap.String("session_store", cfg.SessionStore),
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			stop()
			<-janitors
			_ = jobs.Shutdown()
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if err := jobs.Shutdown(); err != nil {
		log.Error("scheduler shutdown", zap.Error(err))
	}
	stop()
	<-janitors
	return nil
}

func newRouter(manager *session.Manager, limits *ratelimit.Set, frontendDir string) *gin.Engine {
	r := gin.New()
	r.RemoveExtraSlash = true
	r.Use(api.Recovery(), logger.Requests(), metrics.Middleware())
	r.Use(func(c *gin.Context) {
		api.SetHeaders(c)
		if api.Preflight(c) {
			c.Abort()
			return
		}
		c.Next()
	})
	r.Use(manager.Load())
	registerRoutes(r, limits, frontendDir)
	return r
}

func setupHistorico(cfg *config.Config) error {
	dir := cfg.HistoricoDir
	var files map[string]string
	if cfg.HistoricoFiles != "" {
		d, f, err := historico.LoadFiles(cfg.HistoricoFiles)
		if err != nil {
			return err
		}
		if d != "" {
			dir = d
		}
		files = f
	}
	historico.SetDefault(historico.NewLoader(dir, historico.WithFiles(files)))
	return nil
}

// sessionStore builds the configured store. The returned func releases it.
func sessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	if cfg.SessionStore != "redis" {
		return session.NewMemoryStore(), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	return session.NewRedisStore(rdb), func() { _ = rdb.Close() }, nil
}

func startScheduler(cfg *config.Config, store session.Store) (*scheduler.Scheduler, error) {
	jobsCfg, err := scheduler.LoadConfig(cfg.SchedulerConfig)
	if err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	tasks := map[string]scheduler.Task{
		"pesquisa_status":  pesquisas.UpdateStatus,
		"objetivo_status":  objetivos.UpdateStatus,
		"pdi_status":       objetivos.ExpirePDIs,
		"avaliacao_status": avaliacoes.UpdateStatus,
		"avaliacao_criar":  avaliacoes.CreateJob,
		"session_cleanup": func(ctx context.Context) error {
			// Redis expires keys on its own.
			if mem, ok := store.(*session.MemoryStore); ok {
				if n := mem.Cleanup(); n > 0 {
					logger.L().Debug("expired sessions removed", zap.Int("count", n))
				}
			}
			return nil
		},
	}
	s, err := scheduler.New(jobsCfg, tasks)
	if err != nil {
		return nil, err
	}
	s.Start()
	return s, nil
}
