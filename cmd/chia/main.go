package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/antoniostano/chia/internal/classify"
	"github.com/antoniostano/chia/internal/config"
	"github.com/antoniostano/chia/internal/counsel"
	"github.com/antoniostano/chia/internal/dialog"
	"github.com/antoniostano/chia/internal/flows"
	"github.com/antoniostano/chia/internal/httpapi"
	"github.com/antoniostano/chia/internal/logging"
	"github.com/antoniostano/chia/internal/memory"
	"github.com/antoniostano/chia/internal/notify"
	"github.com/antoniostano/chia/internal/observability"
	"github.com/antoniostano/chia/internal/oracle"
	"github.com/antoniostano/chia/internal/providers"
	"github.com/antoniostano/chia/internal/session"
	"github.com/antoniostano/chia/internal/storage"
	"github.com/antoniostano/chia/internal/watch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.Init(cfg.LogFile)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := storage.New(ctx, storage.Config{
		DatabaseURL:     cfg.DatabaseURL,
		SupabaseURL:     cfg.SupabaseURL,
		SupabaseAnonKey: cfg.SupabaseAnonKey,
	})
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer store.Close()

	memos, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("memory store init failed: %v", err)
	}
	defer memos.Close()

	answerOracle, err := oracle.New(oracle.Config{
		Mode:    cfg.OracleMode,
		HTTPURL: cfg.OracleHTTPURL,
	})
	if err != nil {
		log.Fatalf("oracle init failed: %v", err)
	}
	logger.Info("oracle configured", "mode", cfg.OracleMode)

	classifier := classify.NewService(answerOracle, cfg.DefaultLanguage, logger)

	locator, err := providers.New(providers.Config{
		LookupURL: cfg.ProviderLookupURL,
		CacheMode: cfg.ProviderCacheMode,
		CacheTTL:  cfg.ProviderCacheTTL,
		RedisAddr: cfg.RedisAddr,
	})
	if err != nil {
		log.Fatalf("provider locator init failed: %v", err)
	}

	policy, err := dialog.NewPolicy(cfg.PolicyMode)
	if err != nil {
		log.Fatalf("policy init failed: %v", err)
	}

	engine := flows.NewEngine(classifier, answerOracle, store, cfg.ClarifyDepth, logger)

	notifier := notify.New(notifierConfig(cfg), logger)

	counselSvc := counsel.NewService(counsel.ServiceDeps{
		Oracle:     answerOracle,
		Classifier: classifier,
		Engine:     engine,
		Locator:    locator,
		Memos:      memos,
		Notifier:   notifier,
		Store:      store,
		Metrics:    metrics,
		Policy:     policy,
		MaxRounds:  cfg.MaxRounds,
		Log:        logger,
	})

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	api := httpapi.New(cfg, sessions, counselSvc, metrics, logger)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	watcher := watch.New(store, notifier, cfg.SweepInterval, cfg.SupportInactivity, logger)
	watcher.Start(runCtx)

	go func() {
		logger.Info("server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
}

// notifierConfig splits the combined SMTP address into the notifier's
// host and port. An unset sender address disables mail delivery.
func notifierConfig(cfg config.Config) notify.Config {
	if strings.TrimSpace(cfg.SMTPFrom) == "" || strings.TrimSpace(cfg.SupportEmail) == "" {
		return notify.Config{}
	}

	host, portStr, err := net.SplitHostPort(cfg.SMTPAddr)
	if err != nil {
		host = cfg.SMTPAddr
		portStr = ""
	}
	port, _ := strconv.Atoi(portStr)

	return notify.Config{
		SMTPHost:     host,
		SMTPPort:     port,
		SMTPUsername: cfg.SMTPFrom,
		SMTPPassword: cfg.SMTPPassword,
		FromAddress:  cfg.SMTPFrom,
		ToAddress:    cfg.SupportEmail,
	}
}
