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
	"github.com/International-Combat-Archery-Alliance/checkin/checkin"
	"github.com/International-Combat-Archery-Alliance/checkin/decoder"
	"github.com/International-Combat-Archery-Alliance/checkin/gateway"
	"github.com/International-Combat-Archery-Alliance/checkin/kiosk"
	"github.com/International-Combat-Archery-Alliance/checkin/session"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
)

const usage = `usage: kiosk [command]

commands:
  serve          run the check-in kiosk (default)
  login <email>  log in as staff; the password is read from CHECKIN_PASSWORD or stdin
  logout         forget the stored session token
`

func main() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %s\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	logger := api.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "login":
		if len(args) != 1 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		err = login(ctx, cfg, logger, args[0])
	case "logout":
		err = logout(ctx, cfg, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("kiosk failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func newSessionStore(ctx context.Context, cfg Config) (session.Store, error) {
	switch cfg.SessionStore {
	case "ssm":
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return session.NewSSMStore(ssm.NewFromConfig(awsCfg), cfg.SessionSSMParameter), nil
	default:
		return session.NewFileStore(cfg.SessionFile), nil
	}
}

func newGateway(ctx context.Context, cfg Config, logger *slog.Logger) (*gateway.Client, error) {
	store, err := newSessionStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return gateway.NewClient(cfg.BackendURL, store, logger,
		gateway.WithAdminPath(cfg.BackendAdminPath),
		gateway.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	), nil
}

func login(ctx context.Context, cfg Config, logger *slog.Logger, email string) error {
	client, err := newGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}

	password, ok := os.LookupEnv("CHECKIN_PASSWORD")
	if !ok {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	user, err := client.Login(ctx, email, password)
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %s <%s>\n", user.Name, user.Email)
	return nil
}

func logout(ctx context.Context, cfg Config, logger *slog.Logger) error {
	client, err := newGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}

	return client.Logout(ctx)
}

func serve(ctx context.Context, cfg Config, logger *slog.Logger) error {
	client, err := newGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}

	decoderCfg := checkin.DefaultDecoderConfig()
	decoderCfg.FramesPerSecond = cfg.DecoderFPS

	kioskOpts := []kiosk.Option{kiosk.WithAllowedOrigins(cfg.AllowedOrigins)}

	var dec checkin.Decoder
	switch cfg.Decoder {
	case "line":
		lineDecoder := decoder.NewLineDecoder(os.Stdin, logger)
		defer lineDecoder.Close()
		dec = lineDecoder
	default:
		push := decoder.NewPushDecoder()
		kioskOpts = append(kioskOpts, kiosk.WithPushDecoder(push))
		dec = push
	}

	controller := checkin.NewController(client, dec, logger, checkin.WithDecoderConfig(decoderCfg))

	// a scanner that fails to start is shown to the operator, who can retry
	err = controller.Start(ctx)
	if err != nil {
		logger.Warn("scanner did not start", "error", err)
	}

	kioskAPI := kiosk.NewAPI(controller, logger, cfg.Env, kioskOpts...)
	handler, err := kioskAPI.Handler()
	if err != nil {
		return fmt.Errorf("failed to build kiosk handler: %w", err)
	}

	s := &http.Server{
		Handler:           handler,
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("kiosk listening", "addr", s.Addr, "decoder", cfg.Decoder, "backend", cfg.BackendURL)
		serveErr <- s.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := s.Shutdown(shutdownCtx)
	kioskAPI.CloseStreams()
	closeErr := controller.Close(shutdownCtx)
	controller.Wait()

	return errors.Join(err, shutdownErr, closeErr)
}
