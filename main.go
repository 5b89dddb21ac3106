package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"citycal/auth"
	"citycal/calendar"
	"citycal/config"
	"citycal/logger"
	"citycal/metrics"
	"citycal/middleware"
	"citycal/ratelim"
	"citycal/routes"
	"citycal/statistics"
	"citycal/utils"
	"citycal/weather"
)

const requestTimeout = 10 * time.Second

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.SetGlobal(logger.New("citycal", cfg.LogLevel, cfg.IsDevelopment()))
	return cfg, nil
}

// setupRouter mounts every route on a fresh router.
func setupRouter(a *app, rateLimiter *ratelim.RateLimiter) *httprouter.Router {
	cfg := a.cfg

	var github *auth.GitHubProvider
	if cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(auth.GitHubConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURL,
		})
	}

	health := routes.NewHealth()
	if a.mongo != nil {
		health.Register("mongo", a.mongo)
	}
	if a.redis != nil {
		health.Register("redis", a.redis)
	}

	secret := []byte(cfg.JWTSecret)
	router := httprouter.New()
	routes.RoutesWrapper(router, routes.Handlers{
		Authn: middleware.NewAuthenticator(secret, a.revoked),
		Auth: auth.NewHandler(auth.Options{
			Users:      a.users,
			Tokens:     auth.NewTokenIssuer(secret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
			Revoked:    a.revoked,
			BcryptCost: cfg.BcryptCost,
			GitHub:     github,
			Timeout:    requestTimeout,
		}),
		Calendar:   calendar.NewHandler(calendar.NewService(a.events), requestTimeout),
		Statistics: statistics.NewHandler(statistics.NewAggregator(a.events), requestTimeout),
		Weather: weather.NewHandler(
			weather.NewClient(cfg.WeatherBaseURL, cfg.WeatherAPIKey, a.redis, cfg.WeatherCacheTTL),
			requestTimeout,
		),
		Health: health,
	}, rateLimiter)
	return router
}

func runServer(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	a, err := newApp(startCtx, cfg)
	cancel()
	if err != nil {
		return err
	}

	rateLimiter := ratelim.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	scheduler, err := newScheduler(a, rateLimiter)
	if err != nil {
		a.close(ctx)
		return err
	}
	scheduler.Start()

	router := setupRouter(a, rateLimiter)

	// metrics, then logging, then security headers, then CORS in front of the router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	handler := metrics.Instrument(middleware.Logging(middleware.SecurityHeaders(corsHandler)))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		<-scheduler.Stop().Done()
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Port).Str("environment", string(cfg.Environment)).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info().Msg("shutdown signal received; shutting down gracefully")
	case err := <-errCh:
		<-scheduler.Stop().Done()
		a.close(context.Background())
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	a.close(shutdownCtx)
	if err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info().Msg("server stopped cleanly")
	return nil
}

func runStats(ctx context.Context, userID, start, end, keywords string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	result, err := statistics.NewAggregator(a.events).Compute(ctx, userID, start, end, utils.SplitKeywords(keywords))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "citycal",
		Short: "City calendar backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
	rootCmd.AddCommand(serveCmd)

	var userFlag, startFlag, endFlag, keywordsFlag string
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print city durations and keyword counts for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), userFlag, startFlag, endFlag, keywordsFlag)
		},
	}
	statsCmd.Flags().StringVarP(&userFlag, "user", "u", "", "User ID (required)")
	statsCmd.Flags().StringVarP(&startFlag, "start", "s", "", "Start date, YYYY-MM-DD (required)")
	statsCmd.Flags().StringVarP(&endFlag, "end", "e", "", "End date, YYYY-MM-DD (required)")
	statsCmd.Flags().StringVarP(&keywordsFlag, "keywords", "k", "", "Comma separated keywords")
	_ = statsCmd.MarkFlagRequired("user")
	_ = statsCmd.MarkFlagRequired("start")
	_ = statsCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(statsCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
