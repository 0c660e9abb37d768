package global

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds every setting the API reads from the environment.
type Config struct {
	Port           string
	Env            string
	MongoURI       string
	MongoDatabase  string
	RedisAddress   string
	RedisPassword  string
	JWTSecret      string
	JWTExpiry      time.Duration
	RazorpayKeyID  string
	RazorpaySecret string
	GatewayTimeout time.Duration
	Currency       string
	PlatformFee    float64
	TaxRate        float64
	KafkaBrokers   []string
	KafkaTopic     string
	JaegerEndpoint string
	AIBaseURL      string
	AIAPIKey       string
	AIModel        string
	CORSOrigins    []string
}

func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetDefaultTimer() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// LoadConfig reads the environment. Call godotenv.Load first if a .env file should be honoured.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:           GetEnvOrDefault("PORT", "8000"),
		Env:            GetEnvOrDefault("ENV", "development"),
		MongoURI:       os.Getenv("MONGODB_URI"),
		MongoDatabase:  GetEnvOrDefault("MONGODB_DATABASE", "marketplace"),
		RedisAddress:   GetEnvOrDefault("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:  GetEnvOrDefault("REDIS_PASSWORD", ""),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RazorpayKeyID:  os.Getenv("RAZORPAY_KEY_ID"),
		RazorpaySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		Currency:       GetEnvOrDefault("CURRENCY", "INR"),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     GetEnvOrDefault("KAFKA_TOPIC", "settlement_events"),
		JaegerEndpoint: os.Getenv("JAEGER_ENDPOINT"),
		AIBaseURL:      os.Getenv("AI_BASE_URL"),
		AIAPIKey:       os.Getenv("AI_API_KEY"),
		AIModel:        GetEnvOrDefault("AI_MODEL", "gemini-2.0-flash"),
		CORSOrigins:    splitList(GetEnvOrDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
	}

	var missing []string
	for key, value := range map[string]string{
		"MONGODB_URI":         cfg.MongoURI,
		"JWT_SECRET":          cfg.JWTSecret,
		"RAZORPAY_KEY_ID":     cfg.RazorpayKeyID,
		"RAZORPAY_KEY_SECRET": cfg.RazorpaySecret,
	} {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	var err error
	if cfg.JWTExpiry, err = time.ParseDuration(GetEnvOrDefault("JWT_EXPIRY", "24h")); err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY: %w", err)
	}
	if cfg.GatewayTimeout, err = time.ParseDuration(GetEnvOrDefault("GATEWAY_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
	}
	if cfg.PlatformFee, err = strconv.ParseFloat(GetEnvOrDefault("PLATFORM_FEE", "10"), 64); err != nil || cfg.PlatformFee <= 0 {
		return nil, fmt.Errorf("invalid PLATFORM_FEE: must be a positive number")
	}
	if cfg.TaxRate, err = strconv.ParseFloat(GetEnvOrDefault("TAX_RATE", "0.18"), 64); err != nil || cfg.TaxRate < 0 {
		return nil, fmt.Errorf("invalid TAX_RATE: must be a non-negative number")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
