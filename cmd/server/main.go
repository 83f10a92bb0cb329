package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	emailPkg "rancho/internal/adapters/email"
	web "rancho/internal/adapters/http"
	"rancho/internal/adapters/http/perf"
	"rancho/internal/adapters/storage"
	itemStore "rancho/internal/adapters/storage/item"
	sessionStore "rancho/internal/adapters/storage/session"
	"rancho/internal/adapters/upload"
	"rancho/internal/config"
	"rancho/internal/domain/credential"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// shutdownGrace is how long in-flight requests get after SIGINT/SIGTERM.
const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	setupLogging(cfg)

	// WAL mode and busy timeout so concurrent requests don't trip over each other
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.MigrateDB(db, cfg.DBPath); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQuery)

	uploads, err := upload.NewDiskStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("failed to prepare uploads: %v", err)
	}

	stopSweeper := make(chan struct{})
	defer close(stopSweeper)
	sessions := openSessionStore(cfg, stopSweeper)

	secret, err := loadSecret(cfg)
	if err != nil {
		log.Fatalf("admin password: %v", err)
	}

	stores := &web.Stores{
		ItemStore:    itemStore.NewSQLiteStore(timedDB),
		SessionStore: sessions,
		UploadStore:  uploads,
	}
	handler := web.NewMux(stores, web.Options{
		StaticDir:   cfg.StaticDir,
		UploadDir:   cfg.UploadDir,
		Secret:      secret,
		CSRFKey:     loadCSRFKey(cfg),
		Secure:      cfg.IsProduction(),
		SessionTTL:  cfg.SessionTTL,
		LoginRate:   cfg.LoginRate,
		LoginBurst:  cfg.LoginBurst,
		Mailer:      newMailer(cfg),
		AlertEmail:  cfg.AlertEmail,
		SlowRequest: cfg.SlowRequest,
		Ping:        timedDB.PingContext,
	}, collector)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Rancho %s starting on %s (env=%s, schema=%d)", version, cfg.Addr, cfg.Env, storage.LatestSchemaVersion())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown_started", "grace", shutdownGrace.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown_failed", "error", err)
	}
}

// setupLogging installs the default slog handler: JSON in production, text otherwise.
func setupLogging(cfg *config.Config) {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(h))
}

// openSessionStore picks Redis when RANCHO_REDIS_URL is set, else process memory.
func openSessionStore(cfg *config.Config, stop <-chan struct{}) sessionStore.Store {
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := sessionStore.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis unreachable: %v", err)
		}
		log.Println("Session store configured (Redis)")
		return sessionStore.NewRedisStore(client, sessionStore.DefaultKeyPrefix)
	}
	mem := sessionStore.NewMemoryStore()
	mem.StartSweeper(time.Minute, stop)
	log.Println("Session store configured (memory; sessions end on restart)")
	return mem
}

// loadSecret prefers the configured hash; the plaintext fallback only exists outside production.
func loadSecret(cfg *config.Config) (credential.Secret, error) {
	if cfg.AdminPasswordHash != "" {
		return credential.ParseHash(cfg.AdminPasswordHash)
	}
	if cfg.AdminPassword == config.DevAdminPassword {
		log.Printf("WARNING: using the default admin password %q. Set RANCHO_ADMIN_PASSWORD_HASH (see cmd/hashpass).", config.DevAdminPassword)
	}
	return credential.FromPassword(cfg.AdminPassword)
}

// loadCSRFKey returns the configured key, or a random one per process in development.
func loadCSRFKey(cfg *config.Config) []byte {
	if cfg.CSRFKey != nil {
		return cfg.CSRFKey
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate CSRF key: %v", err)
	}
	log.Println("WARNING: using random CSRF key (open forms break on restart). Set RANCHO_CSRF_KEY for production.")
	return key
}

// newMailer returns the Resend sender when a key is configured.
func newMailer(cfg *config.Config) emailPkg.Sender {
	if cfg.ResendKey != "" {
		log.Println("Email sender configured (Resend)")
		return emailPkg.NewResendSender(cfg.ResendKey, cfg.ResendFrom)
	}
	if cfg.AlertEmail != "" {
		log.Println("RANCHO_ALERT_EMAIL is set but RANCHO_RESEND_KEY is not; login alerts are logged only")
	}
	return emailPkg.NewNoopSender()
}
