package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	appoutbox "innkeep/internal/app/outbox"
	"innkeep/internal/app/policies"
	bookingapp "innkeep/internal/app/services/booking"
	"innkeep/internal/app/services/payments"
	"innkeep/internal/domain/rates"
	"innkeep/internal/infra/broker/kafka"
	"innkeep/internal/infra/config"
	mongodb "innkeep/internal/infra/db/mongo"
	"innkeep/internal/infra/gateway"
	ginserver "innkeep/internal/infra/http/gin"
	"innkeep/internal/infra/obs"
	infraoutbox "innkeep/internal/infra/outbox"
	"innkeep/internal/infra/storage/memory"
	redisstore "innkeep/internal/infra/storage/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	fixturesPath := getenv("OFFERINGS_FIXTURES", "")
	if fixturesPath == "" {
		fixturesPath = defaultOfferingFixturesPath()
	}
	if err := app.loadOfferingFixtures(fixturesPath, logger); err != nil {
		logger.Warn("offering fixtures load failed", "error", err, "path", fixturesPath)
	}

	if app.outboxWorker != nil {
		go func() {
			if err := app.outboxWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", "error", err)
			}
		}()
	}
	go app.runSweep(ctx, cfg.SweepInterval, logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers     ginserver.Handlers
	coordinator  *payments.Coordinator
	outboxWorker *infraoutbox.Worker
	offerings    *memory.OfferingCatalog
	ready        func() error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (application, error) {
	var (
		bookingRepo bookingapp.Repository
		ledgerRepo  payments.Repository
		bank        policies.BankLedger
		ready       = func() error { return nil }
	)

	switch cfg.StorageMode {
	case "mongo":
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return application{}, fmt.Errorf("mongo connect: %w", err)
		}
		bookingRepo = mongodb.NewBookingRepository(client)
		ledgerRepo = mongodb.NewLedgerRepository(client)
		bank = mongodb.NewBankLedger(client)
		ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
	default:
		bookingRepo = memory.NewBookingRepository()
		ledgerRepo = memory.NewLedgerRepository()
		bank = memory.NewBankLedger()
	}

	inventory := memory.NewInventory()
	outboxStore := memory.NewOutboxStore()
	offerings := memory.NewOfferingCatalog()
	encoder := appoutbox.JSONEventEncoder{}

	var registry payments.PendingRegistry = memory.NewPendingRegistry()
	if cfg.RedisAddr != "" {
		registry = redisstore.NewPendingRegistry(goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr}))
	}

	bookings := &bookingapp.Service{
		Repo:      bookingRepo,
		Inventory: inventory,
		Offerings: offerings,
		Outbox:    outboxStore,
		Encoder:   encoder,
		Logger:    logger,
	}
	ledger := &payments.Service{
		Repo:    ledgerRepo,
		Payable: bookings,
		Outbox:  outboxStore,
		Encoder: encoder,
		Logger:  logger,
	}
	coordinator := &payments.Coordinator{
		Gateway: &gateway.Client{
			HTTP:    &http.Client{Timeout: cfg.GatewayCallTimeout},
			BaseURL: cfg.GatewayBaseURL,
			APIKey:  cfg.GatewayAPIKey,
			Logger:  logger,
		},
		Ledger:   ledger,
		Bank:     bank,
		Registry: registry,
		Outbox:   outboxStore,
		Encoder:  encoder,
		Logger:   logger,
		Config: payments.CoordinatorConfig{
			PollInterval: cfg.PollInterval,
			PollBudget:   cfg.PollBudget,
			CallTimeout:  cfg.GatewayCallTimeout,
			BankAccount:  cfg.BankAccount,
		},
	}

	var worker *infraoutbox.Worker
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return application{}, fmt.Errorf("kafka connect: %w", err)
		}
		worker = &infraoutbox.Worker{
			Store:       outboxStore,
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Backoff:     cfg.RetryBackoff,
		}
	}

	return application{
		handlers: ginserver.Handlers{
			Booking: ginserver.BookingHandler{Bookings: bookings},
			Payment: ginserver.PaymentHandler{Payments: ledger, Coordinator: coordinator},
		},
		coordinator:  coordinator,
		outboxWorker: worker,
		offerings:    offerings,
		ready:        ready,
	}, nil
}

func (a application) runSweep(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			settled, err := a.coordinator.Sweep(ctx)
			if err != nil {
				logger.Error("reconciliation sweep failed", "error", err)
				continue
			}
			if settled > 0 {
				logger.Info("reconciliation sweep settled payments", "count", settled)
			}
		}
	}
}

type offeringFixture struct {
	Name            string  `json:"name"`
	PropertyType    string  `json:"property_type"`
	DiscountPercent float64 `json:"discount_percent"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
}

func (a application) loadOfferingFixtures(path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("offering fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []offeringFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	seeded := make([]rates.SpecialOffering, 0, len(fixtures))
	for _, fx := range fixtures {
		start, err := parseFixtureDate(fx.StartDate)
		if err != nil {
			logger.Error("fixture invalid", "offering", fx.Name, "error", err)
			continue
		}
		end, err := parseFixtureDate(fx.EndDate)
		if err != nil {
			logger.Error("fixture invalid", "offering", fx.Name, "error", err)
			continue
		}
		seeded = append(seeded, rates.SpecialOffering{
			Name:            fx.Name,
			PropertyType:    rates.PropertyType(fx.PropertyType),
			DiscountPercent: fx.DiscountPercent,
			StartDate:       start,
			EndDate:         end,
		})
	}
	a.offerings.Seed(seeded)
	if len(seeded) > 0 {
		logger.Info("offering fixtures imported", "count", len(seeded))
	}
	return nil
}

func parseFixtureDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func defaultOfferingFixturesPath() string {
	return filepath.Join("data", "offerings.json")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
