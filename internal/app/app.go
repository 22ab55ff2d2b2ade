// Package app assembles the engine from configuration. Both binaries build
// the same graph so the API and the scheduler share one set of rules.
package app

import (
	"context"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"vehicle-booking-engine/internal/config"
	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/jobs"
	"vehicle-booking-engine/internal/lock"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/notifier"
	"vehicle-booking-engine/internal/payment"
	"vehicle-booking-engine/internal/repository"
	"vehicle-booking-engine/internal/repository/postgres"
	"vehicle-booking-engine/internal/service"
	"vehicle-booking-engine/internal/utils"
	"vehicle-booking-engine/internal/worker"
)

// App holds the connections and services of one process.
type App struct {
	Config *config.Config
	DB     *sqlx.DB
	Redis  *redis.Client

	Availability service.AvailabilityService
	Conflicts    service.ConflictChecker
	Bookings     service.BookingService
	Inspections  service.InspectionService
	Refunds      service.RefundService
	Queue        service.WaitingQueueService
	Release      service.ReleaseService
	Contracts    service.ContractService
	Jobs         *jobs.JobRunner

	closers []io.Closer
}

// New connects to PostgreSQL (and Redis when configured) and wires every
// service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
	db, err := postgres.Open(ctx, cfg.GetDatabaseConnectionString(), cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db)
	logger.Info("Database connection established")

	store := postgres.NewStore(db)
	tx, err := a.transactor(ctx, store)
	if err != nil {
		a.Close()
		return nil, err
	}

	clock := utils.NewRealClock()
	notify, err := a.notifier(ctx, clock)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.wire(tx, store.Repositories, notify, Gateway(cfg.Payment), clock)
	return a, nil
}

func (a *App) transactor(ctx context.Context, store *postgres.Store) (repository.Transactor, error) {
	cfg := a.Config
	if cfg.Booking.LockBackend != "redis" {
		logger.Info("Using postgres advisory locks for vehicle serialization")
		return store, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to redis")
	}
	a.Redis = client
	a.closers = append(a.closers, client)
	logger.Info("Using redis locks for vehicle serialization", "addr", cfg.Redis.Addr)

	return lock.NewRedisTransactor(client, store,
		time.Duration(cfg.Booking.LockTTLSeconds)*time.Second,
		time.Duration(cfg.Booking.LockWaitSeconds)*time.Second,
	), nil
}

// notifier registers a deliverer for every channel with credentials.
func (a *App) notifier(ctx context.Context, clock utils.Clock) (*notifier.Router, error) {
	cfg := a.Config
	router := notifier.NewRouter()

	switch {
	case cfg.SendGrid.APIKey != "":
		router.Register(domain.ChannelEmail, notifier.NewEmailChannel(
			notifier.NewSendGridMailer(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)))
		logger.Info("Email notifications via SendGrid")
	case cfg.SMTP.Host != "":
		router.Register(domain.ChannelEmail, notifier.NewEmailChannel(
			notifier.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)))
		logger.Info("Email notifications via SMTP", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port)
	}

	if cfg.Firebase.CredentialsFile != "" {
		push, err := notifier.NewFirebasePushChannel(ctx, cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, err
		}
		router.Register(domain.ChannelPush, push)
		logger.Info("Push notifications via Firebase")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := notifier.NewKafkaProducer(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		inApp := notifier.NewInAppChannel(producer, cfg.Kafka.Topic, clock)
		a.closers = append(a.closers, inApp)
		router.Register(domain.ChannelInApp, inApp)
		logger.Info("In-app notifications via Kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	for _, channel := range []domain.Channel{domain.ChannelEmail, domain.ChannelPush, domain.ChannelInApp} {
		if !router.Configured(channel) {
			logger.Warn("Notification channel disabled", "channel", channel)
		}
	}
	return router, nil
}

// Gateway returns the payment client, or a gateway that refuses every
// refund when no payment service is configured.
func Gateway(cfg config.PaymentConfig) service.PaymentGateway {
	if cfg.BaseURL == "" {
		logger.Warn("Payment gateway not configured, refunds will fail until it is")
		return payment.Disabled()
	}
	return payment.NewClient(cfg.BaseURL, cfg.APIKey, time.Duration(cfg.TimeoutSeconds)*time.Second)
}

func (a *App) wire(tx repository.Transactor, repos repository.Repositories, notify service.Notifier, gateway service.PaymentGateway, clock utils.Clock) {
	cfg := a.Config
	policy := service.Policy{
		SameDayTurnover:        cfg.Booking.SameDayTurnover,
		HoldOnApproval:         cfg.Booking.HoldOnApproval,
		AutoCreateContract:     cfg.Booking.AutoCreateContract,
		RequireOwnerInspection: cfg.Inspection.RequireOwnerInspection,
	}
	pool := worker.NewPool(
		cfg.Queue.NotifyWorkers,
		time.Duration(cfg.Queue.NotifyTimeoutSeconds)*time.Second,
		worker.WithRetries(1, 500*time.Millisecond),
	)

	a.Contracts = service.NewContractRegistry(repos, clock)
	a.Queue = service.NewWaitingQueueService(repos, notify, pool)
	a.Refunds = service.NewRefundService(tx, repos, gateway, notify, clock)
	a.Bookings = service.NewBookingService(tx, repos, a.Contracts, a.Refunds, a.Queue, notify, clock, policy)
	a.Inspections = service.NewInspectionService(tx, repos, a.Bookings, clock)
	a.Availability = service.NewAvailabilityService(tx, repos, a.Queue, policy)
	a.Conflicts = service.NewConflictChecker(repos, policy)
	a.Release = service.NewReleaseService(tx, repos, a.Queue, clock, policy)
	a.Jobs = jobs.NewJobRunner(&jobs.Services{
		Release: a.Release,
		Booking: a.Bookings,
		Refund:  a.Refunds,
	}, cfg)
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Warn("Close failed", "error", err)
		}
	}
	a.closers = nil
}
