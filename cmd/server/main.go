package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	api "vehicle-booking-engine/internal/api/grpc"
	httpapi "vehicle-booking-engine/internal/api/http"
	"vehicle-booking-engine/internal/app"
	"vehicle-booking-engine/internal/config"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/security"
	"vehicle-booking-engine/internal/utils"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Optional dotenv file loaded before the configuration")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("Ignoring env file %s: %v", *envFile, err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting booking engine API...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress(), "grpc_port", cfg.GRPC.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer engine.Close()

	// Initialize Security
	tokenManager := security.NewTokenManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute,
		utils.NewRealClock(),
	)
	operatorKey := security.NewOperatorKey(cfg.Admin.OperatorKeyHash)
	if !operatorKey.Enabled() {
		logger.Warn("Operator key not configured, administrative triggers need an admin token")
	}

	handler := httpapi.NewHandler(httpapi.Services{
		Bookings:     engine.Bookings,
		Inspections:  engine.Inspections,
		Queue:        engine.Queue,
		Availability: engine.Availability,
		Conflicts:    engine.Conflicts,
		Refunds:      engine.Refunds,
		Release:      engine.Jobs,
	})
	router := httpapi.NewRouter(handler, httpapi.NewAuthMiddleware(tokenManager, operatorKey))

	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	// Set up gRPC health server
	var grpcServer *api.Server
	if cfg.GRPC.Port > 0 {
		pingers := map[string]api.Pinger{"postgres": engine.DB}
		if engine.Redis != nil {
			pingers["redis"] = api.PingFunc(func(ctx context.Context) error {
				return engine.Redis.Ping(ctx).Err()
			})
		}
		grpcServer = api.NewServer(pingers)
		grpcAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.GRPC.Port)
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			logger.Error("Failed to listen", "error", err, "address", grpcAddr)
			log.Fatalf("Failed to listen: %v", err)
		}
		go grpcServer.Watch(ctx, 15*time.Second)
		go func() {
			logger.Info("gRPC health server listening", "address", grpcAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	logger.Info("Server stopped")
}
