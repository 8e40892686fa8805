// Микросервис пуш-уведомлений (Web Push): подписки в Redis, отправка через VAPID.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/middleware"
	"github.com/tenantdesk/internal/push"
	"github.com/tenantdesk/internal/startup"
)

type Config struct {
	ServerAddr     string
	RedisURL       string
	VAPIDKeysFile  string
	Subscriber     string
	InternalSecret string
	LogLevel       string
}

func loadConfig() *Config {
	if os.Getenv("APP_ENV") != "production" {
		// .env необязателен
		_ = godotenv.Load()
	}
	return &Config{
		ServerAddr:     getEnv("SERVER_ADDR", ":8082"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379"),
		VAPIDKeysFile:  os.Getenv("VAPID_KEYS_FILE"),
		Subscriber:     getEnv("VAPID_SUBSCRIBER", "mailto:ops@tenantdesk.local"),
		InternalSecret: os.Getenv("INTERNAL_SECRET"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	logger.SetPrefix("push")
	genVAPID := flag.Bool("gen-vapid", false, "generate a VAPID key pair, print it and exit")
	flag.Parse()

	if *genVAPID {
		keys, err := push.GenerateVAPIDKeys()
		if err != nil {
			logger.Errorf("generate VAPID: %v", err)
			os.Exit(1)
		}
		logger.Infof("VAPID_PUBLIC_KEY=%s", keys.PublicKey)
		logger.Infof("VAPID_PRIVATE_KEY=%s", keys.PrivateKey)
		return
	}

	cfg := loadConfig()
	logger.SetLevel(cfg.LogLevel)
	logger.Info("starting push service")

	keys, err := push.EnsureVAPIDKeys(cfg.VAPIDKeysFile)
	if err != nil {
		logger.Errorf("vapid keys unavailable, sending disabled (subscriptions still stored): %v", err)
	}

	rc := startup.ConnectRedisWithRetry(cfg.RedisURL, 60*time.Second, "")
	defer rc.Close()

	s := push.NewServer(push.NewRedisSubscriptions(rc.Redis()), keys, cfg.Subscriber)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Group(func(r chi.Router) {
		r.Use(middleware.InternalOnly(cfg.InternalSecret))
		s.Routes(r)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("push server listening on %s", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("push server: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	logger.Info("push server stopped")
}
