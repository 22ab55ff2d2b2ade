package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	SendGrid   SendGridConfig   `yaml:"sendgrid"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Firebase   FirebaseConfig   `yaml:"firebase"`
	Payment    PaymentConfig    `yaml:"payment"`
	JWT        JWTConfig        `yaml:"jwt"`
	Admin      AdminConfig      `yaml:"admin"`
	Log        LogConfig        `yaml:"log"`
	Booking    BookingConfig    `yaml:"booking"`
	Inspection InspectionConfig `yaml:"inspection"`
	Queue      QueueConfig      `yaml:"queue"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

// GRPCConfig contains the gRPC health endpoint settings. Port 0 disables it.
type GRPCConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	Topic      string   `yaml:"topic"`
	RetryMax   int      `yaml:"retry_max"`
	Idempotent bool     `yaml:"idempotent"`
}

type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// SMTPConfig is used for email when no SendGrid key is configured.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type FirebaseConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

// PaymentConfig points at the payment service that issues refunds
type PaymentConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	Issuer            string `yaml:"issuer"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// AdminConfig holds the bcrypt hash of the operator key accepted by
// administrative triggers in place of an admin token.
type AdminConfig struct {
	OperatorKeyHash string `yaml:"operator_key_hash"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// BookingConfig tunes the booking state machine
type BookingConfig struct {
	// SameDayTurnover lets a booking start on the day another one ends.
	SameDayTurnover    bool   `yaml:"same_day_turnover"`
	HoldOnApproval     bool   `yaml:"hold_on_approval"`
	AutoCreateContract bool   `yaml:"auto_create_contract"`
	LockBackend        string `yaml:"lock_backend"` // "postgres" or "redis"
	LockTTLSeconds     int    `yaml:"lock_ttl_seconds"`
	LockWaitSeconds    int    `yaml:"lock_wait_seconds"`
}

type InspectionConfig struct {
	RequireOwnerInspection bool `yaml:"require_owner_inspection"`
}

// QueueConfig bounds waiting-queue notification fan-out
type QueueConfig struct {
	NotifyWorkers        int `yaml:"notify_workers"`
	NotifyTimeoutSeconds int `yaml:"notify_timeout_seconds"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ReleaseExpiredHolds     string `yaml:"release_expired_holds"`
	ReconcileCompletedHolds string `yaml:"reconcile_completed_holds"`
	ReleaseTimeoutSeconds   int    `yaml:"release_timeout_seconds"`
}

// envOverrides lists the settings that may come from the environment.
type envOverrides struct {
	DBHost          string `envconfig:"DB_HOST"`
	DBPort          int    `envconfig:"DB_PORT"`
	DBUser          string `envconfig:"DB_USER"`
	DBPassword      string `envconfig:"DB_PASSWORD"`
	DBName          string `envconfig:"DB_NAME"`
	DBSSLMode       string `envconfig:"DB_SSL_MODE"`
	ServerHost      string `envconfig:"SERVER_HOST"`
	ServerPort      int    `envconfig:"SERVER_PORT"`
	RedisAddr       string `envconfig:"REDIS_ADDR"`
	RedisPassword   string `envconfig:"REDIS_PASSWORD"`
	KafkaBrokers    string `envconfig:"KAFKA_BROKERS"`
	SendGridAPIKey  string `envconfig:"SENDGRID_API_KEY"`
	SMTPHost        string `envconfig:"SMTP_HOST"`
	SMTPPassword    string `envconfig:"SMTP_PASSWORD"`
	FirebaseCreds   string `envconfig:"FIREBASE_CREDENTIALS_FILE"`
	PaymentBaseURL  string `envconfig:"PAYMENT_BASE_URL"`
	PaymentAPIKey   string `envconfig:"PAYMENT_API_KEY"`
	JWTSecret       string `envconfig:"JWT_SECRET"`
	OperatorKeyHash string `envconfig:"OPERATOR_KEY_HASH"`
	LogLevel        string `envconfig:"LOG_LEVEL"`
	LogFormat       string `envconfig:"LOG_FORMAT"`
	LockBackend     string `envconfig:"BOOKING_LOCK_BACKEND"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes, applies environment
// overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.overrideWithEnv(); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used for keys the YAML file omits.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080, ReadTimeoutSeconds: 15, WriteTimeoutSeconds: 30},
		Database: DatabaseConfig{Port: 5432, SSLMode: "disable", MaxOpenConns: 20},
		Kafka:    KafkaConfig{Topic: "booking-notifications", RetryMax: 3, Idempotent: true},
		SMTP:     SMTPConfig{Port: 587},
		Payment:  PaymentConfig{TimeoutSeconds: 10},
		JWT:      JWTConfig{Issuer: "auth-service", AccessTokenExpiry: 60},
		Booking: BookingConfig{
			HoldOnApproval:  true,
			LockBackend:     "postgres",
			LockTTLSeconds:  30,
			LockWaitSeconds: 5,
		},
		Inspection: InspectionConfig{RequireOwnerInspection: false},
		Queue:      QueueConfig{NotifyWorkers: 4, NotifyTimeoutSeconds: 10},
	}
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return err
	}

	setString(&c.Database.Host, env.DBHost)
	setInt(&c.Database.Port, env.DBPort)
	setString(&c.Database.User, env.DBUser)
	setString(&c.Database.Password, env.DBPassword)
	setString(&c.Database.Database, env.DBName)
	setString(&c.Database.SSLMode, env.DBSSLMode)

	setString(&c.Server.Host, env.ServerHost)
	setInt(&c.Server.Port, env.ServerPort)

	setString(&c.Redis.Addr, env.RedisAddr)
	setString(&c.Redis.Password, env.RedisPassword)
	if env.KafkaBrokers != "" {
		c.Kafka.Brokers = strings.Split(env.KafkaBrokers, ",")
	}
	setString(&c.SendGrid.APIKey, env.SendGridAPIKey)
	setString(&c.SMTP.Host, env.SMTPHost)
	setString(&c.SMTP.Password, env.SMTPPassword)
	setString(&c.Firebase.CredentialsFile, env.FirebaseCreds)
	setString(&c.Payment.BaseURL, env.PaymentBaseURL)
	setString(&c.Payment.APIKey, env.PaymentAPIKey)

	setString(&c.JWT.Secret, env.JWTSecret)
	setString(&c.Admin.OperatorKeyHash, env.OperatorKeyHash)
	setString(&c.Log.Level, env.LogLevel)
	setString(&c.Log.Format, env.LogFormat)
	setString(&c.Booking.LockBackend, env.LockBackend)

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	return nil
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

func setInt(dst *int, val int) {
	if val != 0 {
		*dst = val
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Port < 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.GRPC.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}

	switch c.Booking.LockBackend {
	case "postgres":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis lock backend")
		}
	default:
		return fmt.Errorf("unknown lock backend: %q", c.Booking.LockBackend)
	}
	if c.Booking.LockTTLSeconds <= 0 {
		c.Booking.LockTTLSeconds = 30
	}
	if c.Booking.LockWaitSeconds <= 0 {
		c.Booking.LockWaitSeconds = 5
	}

	if c.Queue.NotifyWorkers <= 0 {
		c.Queue.NotifyWorkers = 4
	}
	if c.Queue.NotifyTimeoutSeconds <= 0 {
		c.Queue.NotifyTimeoutSeconds = 10
	}

	// Scheduler defaults
	if c.Scheduler.ReleaseExpiredHolds == "" {
		c.Scheduler.ReleaseExpiredHolds = "0 0 3 * * *" // 3 AM UTC
	}
	if c.Scheduler.ReconcileCompletedHolds == "" {
		c.Scheduler.ReconcileCompletedHolds = "0 */15 * * * *" // every 15 minutes
	}
	if c.Scheduler.ReleaseTimeoutSeconds <= 0 {
		c.Scheduler.ReleaseTimeoutSeconds = 300
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string. The
// session runs in UTC so calendar-date casts do not depend on the server.
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&timezone=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetGRPCAddress returns the gRPC listen address
func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.GRPC.Port)
}
