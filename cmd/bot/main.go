package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ad/go-telegram-autoreply/internal/config"
	"github.com/ad/go-telegram-autoreply/internal/db"
	"github.com/ad/go-telegram-autoreply/internal/filestore"
	"github.com/ad/go-telegram-autoreply/internal/handlers"
	"github.com/ad/go-telegram-autoreply/internal/services"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}

	sqlDB, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	if err := db.InitSchema(sqlDB); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	dbQueue := db.NewDBQueue(sqlDB)
	defer dbQueue.Close()

	var settingsStore services.SettingsStore = db.NewSettingsRepository(dbQueue)
	if cfg.SettingsFile != "" {
		settingsStore = filestore.NewSettingsFile(cfg.SettingsFile)
	}
	replyStateRepo := db.NewReplyStateRepository(dbQueue)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	b, err := bot.New(cfg.BotToken,
		bot.WithHTTPClient(15*time.Second, httpClient),
		bot.WithAllowedUpdates(bot.AllowedUpdates{"message", "business_connection", "business_message"}),
	)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	botInfo, err := getMeWithRetry(b)
	if err != nil {
		log.Fatalf("Failed to get bot info after 3 attempts: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry)

	errorManager := services.NewErrorManager(b, cfg.OwnerID)
	transport := services.NewTelegramTransport(b, errorManager, services.TransportConfig{
		OwnerID:              cfg.OwnerID,
		BusinessConnectionID: cfg.BusinessConnectionID,
		SendRate:             cfg.SendRate,
	})

	coordinator, err := services.NewCoordinator(transport, settingsStore, services.CoordinatorOptions{
		ReplyStore:     replyStateRepo,
		Metrics:        metrics,
		StateCacheSize: cfg.StateCacheSize,
	})
	if err != nil {
		log.Fatalf("Failed to create coordinator: %v", err)
	}
	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	err = coordinator.Start(startCtx)
	startCancel()
	if err != nil {
		log.Fatalf("Failed to start auto-reply: %v", err)
	}
	defer coordinator.Stop()

	handler := handlers.NewBotHandler(coordinator, b, errorManager)
	b.RegisterHandlerMatchFunc(handlers.MatchUpdate, handler.HandleUpdate, logMiddleware)

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, registry)
	}

	log.Printf("Bot @%s started. Owner ID: %d, DB: %s", botInfo.Username, coordinator.OwnerID(), cfg.DBPath)

	b.Start(ctx)
}

func getMeWithRetry(b *bot.Bot) (*tgmodels.User, error) {
	var botInfo *tgmodels.User
	var err error
	for i := 0; i < 3; i++ {
		log.Printf("Attempting to connect to Telegram API (attempt %d/3)...", i+1)
		getMeCtx, getMeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		botInfo, err = b.GetMe(getMeCtx)
		getMeCancel()
		if err == nil {
			log.Printf("Successfully connected to Telegram API")
			return botInfo, nil
		}
		log.Printf("Failed to get bot info (attempt %d/3): %v", i+1, err)
		if i < 2 {
			log.Printf("Retrying in 2 seconds...")
			time.Sleep(2 * time.Second)
		}
	}
	return nil, err
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Metrics server stopped: %v", err)
	}
}

func logMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
		if m := update.BusinessMessage; m != nil && m.From != nil {
			log.Printf("[BIZ] chat=%d from=%s", m.Chat.ID, services.FormatUser(*m.From))
		}
		if update.Message != nil && update.Message.From != nil {
			log.Printf("[MSG] from=%s text=%q", services.FormatUser(*update.Message.From), update.Message.Text)
		}
		next(ctx, b, update)
	}
}
