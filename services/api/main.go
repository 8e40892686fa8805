package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tenantdesk/internal/audit"
	"github.com/tenantdesk/internal/broker"
	"github.com/tenantdesk/internal/config"
	"github.com/tenantdesk/internal/handler"
	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/push"
	"github.com/tenantdesk/internal/repository"
	"github.com/tenantdesk/internal/startup"
	"github.com/tenantdesk/internal/storage"
	"github.com/tenantdesk/internal/storage/memory"
	"github.com/tenantdesk/internal/stream"
	"github.com/tenantdesk/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "embedded PostgreSQL, in-memory sessions and broker, demo users")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 2

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	defer pool.Close()

	if err := runMigrations(pool); err != nil {
		logger.Errorf("migrations: %v", err)
		os.Exit(1)
	}
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	userRepo := repository.NewUserRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)

	var (
		sessions storage.SessionStore
		bus      broker.Broker
	)
	if *dev {
		mem := memory.New()
		if err := seedDev(context.Background(), userRepo, mem); err != nil {
			logger.Errorf("dev seed: %v", err)
			os.Exit(1)
		}
		sessions = mem
		bus = broker.NewMemory(cfg.Stream.BufferSize)
	} else {
		rc := startup.ConnectRedisWithRetry(cfg.RedisURL, 60*time.Second, "")
		sessions = rc
		bus = broker.NewRedis(rc.Redis())
	}
	defer sessions.Close()
	defer bus.Close()

	auditPub := audit.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer auditPub.Close()
	logger.Infof("audit mode=%s %s", audit.Mode(auditPub), audit.NoopReason(auditPub))

	pushClient := push.NewClient(cfg.PushServiceURL, cfg.InternalSecret)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := stream.NewHub(cfg.Stream.MaxConnections)
	var hubWg sync.WaitGroup
	hubWg.Add(2)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()
	go func() {
		defer hubWg.Done()
		if err := bus.Consume(hubCtx, hub.Deliver); err != nil && hubCtx.Err() == nil {
			logger.Errorf("broker consume: %v", err)
		}
	}()

	r := newRouter(cfg, routerDeps{
		sessions: sessions,
		chat:     handler.NewChatHandler(userRepo, msgRepo, bus, hub, pushClient, auditPub),
		stream:   handler.NewStreamHandler(hub, userRepo, sessions, cfg.Stream.Heartbeat, cfg.Stream.BufferSize),
		files:    handler.NewFileHandler(cfg.UploadDir, cfg.MaxUploadSize, cfg.FileServiceURL),
		push:     handler.NewPushHandler(pushClient),
		config:   handler.NewConfigHandler(cfg),
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	// стримы держат соединения: сначала гасим хаб, чтобы обработчики стримов вышли
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	srvWg.Wait()
	logger.Info("server stopped")
}

func runMigrations(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	names, err := migrations.Names()
	if err != nil {
		return err
	}
	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			return err
		}
		logger.Debugf("migration %s applied", name)
	}
	return nil
}
