package api

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries environment-driven settings for the API process. Worker-only
// settings (Temporal, Kafka) live with cmd/worker.
type Config struct {
	Port                  string
	PostgresDSN           string
	JWTSigningKey         string
	JWTTTL                time.Duration
	PaymentGatewayURL     string
	PaymentGatewayAPIKey  string
	PaymentChargeTimeout  time.Duration
	WebhookSecret         string
	ExposeInternalDetails bool
}

// LoadConfig reads environment variables, applies defaults, and validates
// basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:                  envDefault("PORT", "8080"),
		PostgresDSN:           strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		JWTSigningKey:         strings.TrimSpace(os.Getenv("JWT_SIGNING_KEY")),
		JWTTTL:                time.Hour,
		PaymentGatewayURL:     strings.TrimSpace(os.Getenv("PAYMENT_GATEWAY_URL")),
		PaymentGatewayAPIKey:  strings.TrimSpace(os.Getenv("PAYMENT_GATEWAY_API_KEY")),
		PaymentChargeTimeout:  10 * time.Second,
		WebhookSecret:         strings.TrimSpace(os.Getenv("WEBHOOK_SECRET")),
		ExposeInternalDetails: isTruthy(os.Getenv("DEBUG_ERRORS")),
	}
	if cfg.JWTSigningKey == "" {
		return Config{}, fmt.Errorf("JWT_SIGNING_KEY is required")
	}
	if raw := strings.TrimSpace(os.Getenv("JWT_TTL_MINUTES")); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			return Config{}, fmt.Errorf("JWT_TTL_MINUTES must be a positive integer")
		}
		cfg.JWTTTL = time.Duration(minutes) * time.Minute
	}
	if raw := strings.TrimSpace(os.Getenv("PAYMENT_CHARGE_TIMEOUT_SECONDS")); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("PAYMENT_CHARGE_TIMEOUT_SECONDS must be a positive integer")
		}
		cfg.PaymentChargeTimeout = time.Duration(seconds) * time.Second
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}
