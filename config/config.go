package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Redis     RedisConfig
	S3        S3Config
	Services  ServicesConfig
	Outbox    OutboxConfig
	Dashboard DashboardConfig
}

type ServerConfig struct {
	GatewayPort  string
	ProductsPort string
	CartPort     string
	GinMode      string
	Environment  string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxIdleConns int
	MaxOpenConns int
}

// JWTConfig keeps the single shared signing secret used by every service.
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
}

// ServicesConfig describes how the cart service reaches the product directory.
type ServicesConfig struct {
	ProductsURL     string
	RequestTimeout  time.Duration
	ProductCacheTTL time.Duration
}

type OutboxConfig struct {
	RelaySpec   string
	BatchSize   int
	MaxAttempts int
}

type DashboardConfig struct {
	PushInterval time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			GatewayPort:  getEnv("GATEWAY_PORT", "5000"),
			ProductsPort: getEnv("PRODUCTS_PORT", "3001"),
			CartPort:     getEnv("CART_PORT", "3002"),
			GinMode:      getEnv("GIN_MODE", "debug"),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			DBName:       getEnv("DB_NAME", "carrito_compras"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 50),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "mi_secreto"),
			Expiry: parseDuration(getEnv("JWT_EXPIRY", "1h"), time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "*")),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Bucket:          getEnv("AWS_S3_BUCKET", "tienda-productos"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BaseURL:         getEnv("AWS_S3_BASE_URL", ""),
		},
		Services: ServicesConfig{
			ProductsURL:     getEnv("PRODUCTS_SERVICE_URL", "http://localhost:3001"),
			RequestTimeout:  parseDuration(getEnv("PRODUCTS_SERVICE_TIMEOUT", "5s"), 5*time.Second),
			ProductCacheTTL: parseDuration(getEnv("PRODUCT_CACHE_TTL", "30s"), 30*time.Second),
		},
		Outbox: OutboxConfig{
			RelaySpec:   getEnv("OUTBOX_RELAY_SPEC", "@every 1m"),
			BatchSize:   getEnvInt("OUTBOX_BATCH_SIZE", 100),
			MaxAttempts: getEnvInt("OUTBOX_MAX_ATTEMPTS", 10),
		},
		Dashboard: DashboardConfig{
			PushInterval: parseDuration(getEnv("DASHBOARD_PUSH_INTERVAL", "10s"), 10*time.Second),
		},
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Invalid integer %s for %s, using default %d", value, key, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
