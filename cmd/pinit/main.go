// Command pinit serves the PinIt map feed API.
//
// @title PinIt Map API
// @version 1.0
// @description Clustered, privacy-filtered event map for PinIt.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"pinit/config"
	"pinit/internal/adapters/auth"
	"pinit/internal/adapters/email"
	"pinit/internal/cluster"
	deliveryhttp "pinit/internal/delivery/http"
	"pinit/internal/delivery/http/controllers"
	"pinit/internal/feed"
	"pinit/internal/repository/postgres"
	"pinit/internal/scheduler"
	"pinit/internal/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	issueFor := flag.String("issue-token", "", "print a signed access token for this username and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the token printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Environment, cfg.LogLevel)

	if *issueFor != "" {
		token, err := auth.NewJWTIssuer(cfg.JWTSecret).Issue(*issueFor, *tokenTTL)
		if err != nil {
			logger.Error("failed to issue token", "err", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		SES: email.SESConfig{
			Region:          cfg.Email.AWSRegion,
			AccessKeyID:     cfg.Email.AWSAccessKeyID,
			SecretAccessKey: cfg.Email.AWSSecretAccessKey,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}
	emailService := services.NewEmailService(mailer, email.NewTemplateRenderer())

	clusterOpts := cluster.DefaultOptions()
	clusterOpts.RadiusPx = cfg.Cluster.RadiusPx
	clusterOpts.FullRadiusZoom = cfg.Cluster.FullRadiusZoom
	clusterOpts.MaxZoom = cfg.Cluster.MaxZoom

	mapService := services.NewMapService(
		postgres.NewEventRepository(db),
		postgres.NewEventInvitationRepository(db),
		postgres.NewUserRepository(db),
		emailService,
		feed.NewStore(),
		cluster.New(clusterOpts, logger),
		logger,
		cfg.RequestTimeout,
		cfg.FeedIdleTTL,
	)

	sched, err := scheduler.New(cfg.RefreshSchedule, mapService, logger, 2*time.Minute)
	if err != nil {
		return err
	}

	router := deliveryhttp.NewRouter(
		controllers.NewMapController(logger, mapService),
		&controllers.HealthController{Logger: logger, DB: db},
		deliveryhttp.RouterConfig{
			Verifier:       auth.NewJWTVerifier(cfg.JWTSecret),
			Logger:         logger,
			AllowedOrigins: cfg.CORSAllowedOrigins,
		},
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("pinit listening", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("signal received, shutting down")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler did not stop in time", "err", err)
	}
	// Hijacked websocket connections are not tracked by Shutdown and close with the process.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("pinit exiting")
	return nil
}
