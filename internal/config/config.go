package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string
	LogLevel   string
	GinMode    string

	ParkingAPIURL     string
	ParkingAPITimeout time.Duration

	MapsAPIURL      string
	MapsAccessToken string
	MapsCountry     string

	DefaultLatitude  float64
	DefaultLongitude float64

	// Realtime sources. Each one is enabled when its URL is set.
	RealtimeWSURL    string
	AWSRegion        string
	SQSEventQueueURL string
	RabbitMQURL      string
	RealtimeQueue    string

	// Optional realtime event audit log.
	DBDriver   string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	// Optional geocode cache.
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	GeocodeTTL    time.Duration

	JWTSecret          string
	CORSAllowedOrigins []string

	EventLogRetentionDays int
	EventLogCleanupCron   string
	SessionIdleTimeout    time.Duration
	SessionSweepCron      string
}

// AuditLogEnabled reports whether a database is configured for the event log.
func (c *Config) AuditLogEnabled() bool {
	return c.DBHost != ""
}

func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		GinMode:    getEnv("GIN_MODE", "release"),

		ParkingAPIURL:     getEnv("PARKING_API_URL", "http://localhost:5000/api"),
		ParkingAPITimeout: time.Duration(getEnvInt("PARKING_API_TIMEOUT_SECONDS", 15)) * time.Second,

		MapsAPIURL:      getEnv("MAPS_API_URL", "https://api.mapbox.com"),
		MapsAccessToken: getEnv("MAPS_ACCESS_TOKEN", ""),
		MapsCountry:     getEnv("MAPS_COUNTRY", ""),

		DefaultLatitude:  getEnvFloat("DEFAULT_LATITUDE", 10.7769),
		DefaultLongitude: getEnvFloat("DEFAULT_LONGITUDE", 106.7009),

		RealtimeWSURL:    getEnv("REALTIME_WS_URL", ""),
		AWSRegion:        getEnv("AWS_REGION", "ap-southeast-1"),
		SQSEventQueueURL: getEnv("SQS_EVENT_QUEUE_URL", ""),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RealtimeQueue:    getEnv("REALTIME_QUEUE", "parking.realtime"),

		DBDriver:   getEnv("DB_DRIVER", "pgx"),
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "parking_market"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		GeocodeTTL:    time.Duration(getEnvInt("GEOCODE_CACHE_TTL_MINUTES", 1440)) * time.Minute,

		JWTSecret:          getEnv("JWT_SECRET", "change-me"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		EventLogRetentionDays: getEnvInt("EVENT_LOG_RETENTION_DAYS", 30),
		EventLogCleanupCron:   getEnv("EVENT_LOG_CLEANUP_CRON", "0 0 3 * * *"),
		SessionIdleTimeout:    time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,
		SessionSweepCron:      getEnv("SESSION_SWEEP_CRON", "0 */5 * * * *"),
	}
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
