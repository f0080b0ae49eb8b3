package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "roombooking"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultStorageBackend = StorageMongo

	DefaultJWTIssuer = "roombooking"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultCORSAllowedOrigins = "*"

	DefaultLockTTL          = 45 * time.Second // must outlive RequestTimeout
	DefaultLockWaitTimeout  = 5 * time.Second
	DefaultLockPollInterval = 50 * time.Millisecond

	DefaultBookingEventsTopic = "booking-events"

	DefaultPageSize        = 10
	DefaultPaginationLimit = 100
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)
