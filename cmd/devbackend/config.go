package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/International-Combat-Archery-Alliance/checkin/api"
	"github.com/International-Combat-Archery-Alliance/checkin/validate"
)

type Config struct {
	Env               api.Environment
	Host              string        `validate:"required"`
	Port              string        `validate:"required,numeric"`
	TableName         string        `validate:"required"`
	DynamoEndpoint    string        `validate:"omitempty,url"`
	JWTSecret         string        `validate:"required,min=16"`
	TokenTTL          time.Duration `validate:"gt=0"`
	AdminName         string        `validate:"required"`
	AdminEmail        string        `validate:"required,email"`
	AdminPasswordHash string        `validate:"required"`
	RateLimitRPS      float64       `validate:"gte=0"`
	AllowedOrigins    []string
}

// loadConfig reads the environment. Staff credentials are only required for
// serving, so seeding can run against a fresh checkout.
func loadConfig(requireStaff bool) (Config, error) {
	env, err := api.ParseEnvironment(getEnvOrDefault("ENV", "LOCAL"))
	if err != nil {
		return Config{}, err
	}

	rps, err := strconv.ParseFloat(getEnvOrDefault("RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("RATE_LIMIT_RPS must be a number: %w", err)
	}

	ttl, err := time.ParseDuration(getEnvOrDefault("TOKEN_TTL", "12h"))
	if err != nil {
		return Config{}, fmt.Errorf("TOKEN_TTL must be a duration: %w", err)
	}

	cfg := Config{
		Env:               env,
		Host:              getEnvOrDefault("HOST", "0.0.0.0"),
		Port:              getEnvOrDefault("PORT", "8080"),
		TableName:         getEnvOrDefault("TABLE_NAME", "Checkin"),
		DynamoEndpoint:    getEnvOrDefault("DYNAMO_ENDPOINT", ""),
		JWTSecret:         getEnvOrDefault("JWT_SECRET", ""),
		TokenTTL:          ttl,
		AdminName:         getEnvOrDefault("ADMIN_NAME", "Check-in Staff"),
		AdminEmail:        getEnvOrDefault("ADMIN_EMAIL", ""),
		AdminPasswordHash: getEnvOrDefault("ADMIN_PASSWORD_HASH", ""),
		RateLimitRPS:      rps,
		AllowedOrigins:    splitList(getEnvOrDefault("ALLOWED_ORIGINS", "")),
	}

	if requireStaff {
		err = validate.Struct(cfg)
	} else {
		err = validate.StructExcept(cfg, "JWTSecret", "AdminEmail", "AdminPasswordHash")
	}
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvOrDefault(key string, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	return defaultVal
}
