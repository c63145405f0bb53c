package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/International-Combat-Archery-Alliance/checkin/api"
	"github.com/International-Combat-Archery-Alliance/checkin/backend"
	"github.com/International-Combat-Archery-Alliance/checkin/dynamo"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

const usage = `usage: devbackend [command]

commands:
  serve          run the backend (default)
  seed           create the table and a sample attendee with registrations
  hash-password  read a password from stdin and print its bcrypt hash for ADMIN_PASSWORD_HASH
`

func main() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %s\n", err)
		os.Exit(1)
	}

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	if cmd == "hash-password" {
		err = hashPassword()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(cmd == "serve")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	logger := api.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dynamoClient, err := newDynamoClient(ctx, cfg)
	if err != nil {
		logger.Error("Failed to create dynamo client", "error", err)
		os.Exit(1)
	}
	db := dynamo.NewDB(dynamoClient, cfg.TableName)

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, db, logger)
	case "seed":
		err = seed(ctx, db, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("devbackend failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// newDynamoClient talks to DYNAMO_ENDPOINT with dummy credentials when it's
// set, such as for dynamodb-local, and to AWS otherwise.
func newDynamoClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	if cfg.DynamoEndpoint == "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("aws config error: %w", err)
		}
		return dynamodb.NewFromConfig(awsCfg), nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("localhost"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config error: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
	}), nil
}

func serve(ctx context.Context, cfg Config, db *dynamo.DB, logger *slog.Logger) error {
	auth := backend.NewAuthenticator(
		backend.StaffUser{Name: cfg.AdminName, Email: cfg.AdminEmail},
		cfg.AdminPasswordHash,
		cfg.JWTSecret,
		cfg.TokenTTL,
	)

	opts := []backend.Option{backend.WithAllowedOrigins(cfg.AllowedOrigins)}
	if cfg.RateLimitRPS > 0 {
		limiter := backend.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), max(1, int(cfg.RateLimitRPS*2)))
		go limiter.SweepEvery(5*time.Minute, ctx.Done())
		opts = append(opts, backend.WithRateLimiter(limiter))
	}

	handler, err := backend.NewAPI(db, auth, logger, cfg.Env, opts...).Handler()
	if err != nil {
		return fmt.Errorf("failed to build backend handler: %w", err)
	}

	s := &http.Server{
		Handler:           handler,
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("devbackend listening", "addr", s.Addr, "table", cfg.TableName)
		serveErr <- s.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.Shutdown(shutdownCtx)
}

func hashPassword() error {
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("failed to read password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimRight(line, "\r\n")), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	fmt.Println(string(hash))
	return nil
}
