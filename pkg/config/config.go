package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"roombooking/pkg/client"
	"roombooking/pkg/logger"

	"github.com/spf13/viper"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port           string
	StorageBackend string

	JWTSecret string
	JWTIssuer string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	CORSAllowedOrigins []string

	// Approvals of one resource are serialized by a lock document that lives
	// at most LockTTL, which must outlive RequestTimeout. An approval commits
	// only while it still holds the lock. Waiters poll every LockPollInterval
	// up to LockWaitTimeout.
	LockTTL          time.Duration
	LockWaitTimeout  time.Duration
	LockPollInterval time.Duration

	KafkaEnabled       bool
	BookingEventsTopic string

	LogLevel string
	LogFile  string

	Log    *logger.Logger
	Client *client.Client
}

// Load reads configuration from the environment, optionally layered over the
// file named by CONFIG_FILE. Invalid configuration is fatal.
func Load(serviceName string) *Config {
	src, fileErr := newSource()

	cfg := &Config{
		MongoURI:          src.str(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: src.str(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  src.duration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port:           src.str(EnvPort, DefaultPort),
		StorageBackend: src.str(EnvStorageBackend, DefaultStorageBackend),

		JWTSecret: src.str(EnvJWTSecret, ""),
		JWTIssuer: src.str(EnvJWTIssuer, DefaultJWTIssuer),

		RateLimitRequests: src.num(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   src.duration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: src.duration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: src.duration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: src.num(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     src.duration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    src.duration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     src.duration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: src.duration(EnvShutdownTimeout, DefaultShutdownTimeout),

		CORSAllowedOrigins: src.list(EnvCORSAllowedOrigins, DefaultCORSAllowedOrigins),

		LockTTL:          src.duration(EnvLockTTL, DefaultLockTTL),
		LockWaitTimeout:  src.duration(EnvLockWaitTimeout, DefaultLockWaitTimeout),
		LockPollInterval: src.duration(EnvLockPollInterval, DefaultLockPollInterval),

		KafkaEnabled:       src.boolean(EnvKafkaEnabled, false),
		BookingEventsTopic: src.str(EnvBookingEventsTopic, DefaultBookingEventsTopic),

		LogLevel: src.str(EnvLogLevel, DefaultLogLevel),
		LogFile:  src.str(EnvLogFile, ""),

		Client: client.NewClient(),
	}

	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
		File:      cfg.LogFile,
	})

	if fileErr != nil {
		cfg.Log.Fatal("Failed to read config file", "error", fileErr)
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) UsesMongo() bool {
	return cfg.StorageBackend == StorageMongo
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageBackend {
	case StorageMongo, StorageMemory:
	default:
		errors = append(errors, fmt.Sprintf("StorageBackend must be %q or %q, got: %s", StorageMongo, StorageMemory, cfg.StorageBackend))
	}

	if cfg.StorageBackend == StorageMongo {
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	}

	if len(cfg.JWTSecret) < 32 {
		errors = append(errors, "JWTSecret must be at least 32 characters")
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.LockTTL <= cfg.RequestTimeout {
		errors = append(errors, fmt.Sprintf("LockTTL (%s) must be > RequestTimeout (%s)", cfg.LockTTL, cfg.RequestTimeout))
	}
	if cfg.LockPollInterval <= 0 {
		errors = append(errors, fmt.Sprintf("LockPollInterval must be positive, got: %s", cfg.LockPollInterval))
	}
	if cfg.LockWaitTimeout < cfg.LockPollInterval {
		errors = append(errors, fmt.Sprintf("LockWaitTimeout (%s) must be >= LockPollInterval (%s)", cfg.LockWaitTimeout, cfg.LockPollInterval))
	}

	if cfg.KafkaEnabled && cfg.BookingEventsTopic == "" {
		errors = append(errors, "BookingEventsTopic cannot be empty when Kafka is enabled")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"storage_backend", cfg.StorageBackend,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"jwt_secret_set", cfg.JWTSecret != "",
		"jwt_issuer", cfg.JWTIssuer,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"cors_allowed_origins", cfg.CORSAllowedOrigins,
		"lock_ttl", cfg.LockTTL,
		"lock_wait_timeout", cfg.LockWaitTimeout,
		"lock_poll_interval", cfg.LockPollInterval,
		"kafka_enabled", cfg.KafkaEnabled,
		"booking_events_topic", cfg.BookingEventsTopic,
		"log_file", cfg.LogFile,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

// source resolves keys from the environment first and then from the
// optional config file.
type source struct {
	v *viper.Viper
}

func newSource() (source, error) {
	v := viper.New()
	v.AutomaticEnv()

	if file := os.Getenv(EnvConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return source{v: v}, fmt.Errorf("read %s: %w", file, err)
		}
	}
	return source{v: v}, nil
}

func (s source) str(key, fallback string) string {
	if value := strings.TrimSpace(s.v.GetString(key)); value != "" {
		return value
	}
	return fallback
}

func (s source) num(key string, fallback int) int {
	if value := s.str(key, ""); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func (s source) duration(key string, fallback time.Duration) time.Duration {
	if value := s.str(key, ""); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (s source) boolean(key string, fallback bool) bool {
	if value := s.str(key, ""); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func (s source) list(key, fallback string) []string {
	var out []string
	for _, item := range strings.Split(s.str(key, fallback), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultPageSize
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
