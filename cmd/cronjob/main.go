package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/joho/godotenv"

	"vehicle-booking-engine/internal/app"
	"vehicle-booking-engine/internal/config"
	"vehicle-booking-engine/internal/jobs"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/scheduler"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Optional dotenv file loaded before the configuration")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'release-expired-holds', 'retry-failed-refunds')")
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
	logger.Info("Starting booking engine cronjob runner...", "log_level", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer engine.Close()

	// Check if running a single job
	if *runOnce != "" {
		code := runJobOnce(ctx, engine.Jobs, *runOnce)
		engine.Close()
		stop()
		os.Exit(code)
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(engine.Jobs)
	for _, entry := range cronScheduler.Entries() {
		logger.Info("Scheduled job", "entry_id", entry.ID, "next_run", entry.Next)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and returns the process exit code.
func runJobOnce(ctx context.Context, jobRunner *jobs.JobRunner, jobName string) int {
	if !slices.Contains(jobRunner.Names(), jobName) {
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		for _, name := range jobRunner.Names() {
			fmt.Printf("  - %s\n", name)
		}
		return 1
	}

	logger.Info("Running job once", "job", jobName)
	if err := jobRunner.Run(ctx, jobName); err != nil {
		logger.Error("Job failed", "job", jobName, "error", err)
		return 1
	}
	logger.Info("Job execution completed", "job", jobName)
	return 0
}
