package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Matching configuration
	MatchTimeout     time.Duration
	MaxClaimRetries  int
	WaitingListLimit int
	OpenRoomsLimit   int

	// Queue cleanup configuration
	StaleEntryMaxAge time.Duration
	CleanupInterval  time.Duration

	// RTC configuration
	RtcGatewayURL       string
	TokenServiceURL     string
	TokenRequestTimeout time.Duration
	RtcJoinTimeout      time.Duration
	RtcJoinRetries      int
	EngineReleaseGrace  time.Duration

	// Rate limiting
	EnqueueRateLimit  int
	EnqueueRateWindow time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Matching
		MatchTimeout:     getEnvAsDuration("MATCH_TIMEOUT", "4m"),
		MaxClaimRetries:  getEnvAsInt("MAX_CLAIM_RETRIES", 3),
		WaitingListLimit: getEnvAsInt("WAITING_LIST_LIMIT", 10),
		OpenRoomsLimit:   getEnvAsInt("OPEN_ROOMS_LIMIT", 20),

		// Cleanup
		StaleEntryMaxAge: getEnvAsDuration("STALE_ENTRY_MAX_AGE", "10m"),
		CleanupInterval:  getEnvAsDuration("CLEANUP_INTERVAL", "5m"),

		// RTC
		RtcGatewayURL:       getEnv("RTC_GATEWAY_URL", "http://localhost:8091/offer"),
		TokenServiceURL:     getEnv("TOKEN_SERVICE_URL", "http://localhost:8092/token"),
		TokenRequestTimeout: getEnvAsDuration("TOKEN_REQUEST_TIMEOUT", "10s"),
		RtcJoinTimeout:      getEnvAsDuration("RTC_JOIN_TIMEOUT", "20s"),
		RtcJoinRetries:      getEnvAsInt("RTC_JOIN_RETRIES", 3),
		EngineReleaseGrace:  getEnvAsDuration("ENGINE_RELEASE_GRACE", "5s"),

		// Rate limiting
		EnqueueRateLimit:  getEnvAsInt("ENQUEUE_RATE_LIMIT", 10),
		EnqueueRateWindow: getEnvAsDuration("ENQUEUE_RATE_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, fall back to the default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
