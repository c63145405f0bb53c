package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/International-Combat-Archery-Alliance/checkin/api"
	"github.com/International-Combat-Archery-Alliance/checkin/gateway"
	"github.com/International-Combat-Archery-Alliance/checkin/validate"
)

type Config struct {
	Env                 api.Environment
	Host                string        `validate:"required"`
	Port                string        `validate:"required,numeric"`
	BackendURL          string        `validate:"required,url"`
	BackendAdminPath    string        `validate:"required"`
	SessionStore        string        `validate:"oneof=file ssm"`
	SessionFile         string        `validate:"required_if=SessionStore file"`
	SessionSSMParameter string        `validate:"required_if=SessionStore ssm"`
	Decoder             string        `validate:"oneof=push line"`
	DecoderFPS          int           `validate:"gt=0,lte=60"`
	RequestTimeout      time.Duration `validate:"gt=0"`
	AllowedOrigins      []string
}

func loadConfig() (Config, error) {
	env, err := api.ParseEnvironment(getEnvOrDefault("ENV", "LOCAL"))
	if err != nil {
		return Config{}, err
	}

	fps, err := strconv.Atoi(getEnvOrDefault("DECODER_FPS", "10"))
	if err != nil {
		return Config{}, fmt.Errorf("DECODER_FPS must be an integer: %w", err)
	}

	timeout, err := time.ParseDuration(getEnvOrDefault("REQUEST_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("REQUEST_TIMEOUT must be a duration: %w", err)
	}

	cfg := Config{
		Env:                 env,
		Host:                getEnvOrDefault("HOST", "127.0.0.1"),
		Port:                getEnvOrDefault("PORT", "8090"),
		BackendURL:          getEnvOrDefault("BACKEND_URL", "http://localhost:8080"),
		BackendAdminPath:    getEnvOrDefault("BACKEND_ADMIN_PATH", gateway.DefaultAdminPath),
		SessionStore:        getEnvOrDefault("SESSION_STORE", "file"),
		SessionFile:         getEnvOrDefault("SESSION_FILE", defaultSessionFile()),
		SessionSSMParameter: getEnvOrDefault("SESSION_SSM_PARAMETER", ""),
		Decoder:             getEnvOrDefault("DECODER", "push"),
		DecoderFPS:          fps,
		RequestTimeout:      timeout,
		AllowedOrigins:      splitList(getEnvOrDefault("ALLOWED_ORIGINS", "")),
	}

	err = validate.Struct(cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".checkin-session"
	}
	return filepath.Join(dir, "icaa-checkin", "session")
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
