package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eyecare/clinic/internal/config"
	"github.com/eyecare/clinic/internal/domain/clinic"
	"github.com/eyecare/clinic/internal/platform/auth"
	"github.com/eyecare/clinic/internal/platform/db"
	"github.com/eyecare/clinic/internal/platform/middleware"
	"github.com/eyecare/clinic/internal/platform/snapshot"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clinic-server",
		Short: "Eye clinic records API server",
	}

	root.AddCommand(serveCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(snapshotCmd())
	root.AddCommand(tokenCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Print the sample data set as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(clinic.SampleData(time.Now()))
		},
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export store contents",
	}

	billingCmd := &cobra.Command{
		Use:   "billing",
		Short: "Write the billing statement as an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			patientID, _ := cmd.Flags().GetString("patient")
			if out == "" {
				return fmt.Errorf("--out is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, backend, err := openStore(ctx, cfg, zerolog.Nop())
			if err != nil {
				return err
			}
			defer backend.Close()

			svc := clinic.NewService(store.Repositories(), zerolog.Nop())
			data, err := svc.ExportBilling(ctx, patientID)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote billing statement to %s\n", out)
			return nil
		},
	}
	billingCmd.Flags().String("out", "", "Path of the XLSX file to write")
	billingCmd.Flags().String("patient", "", "Limit the statement to one patient id")
	cmd.AddCommand(billingCmd)
	return cmd
}

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect or initialise the configured snapshot backend",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "Write the sample data set to the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			backend, err := openBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			if err := clinic.NewMemoryStore(backend).Seed(ctx, clinic.SampleData(time.Now())); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved sample data to the %s backend\n", cfg.StoreBackend)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the buckets held by the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			backend, err := openBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			buckets, err := backend.Load(ctx)
			if err != nil {
				return err
			}
			return printBuckets(cmd.OutOrStdout(), buckets)
		},
	})
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with AUTH_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			roles, _ := cmd.Flags().GetStringSlice("role")
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			for _, r := range roles {
				if !auth.ValidRole(r) {
					return fmt.Errorf("unknown role %q", r)
				}
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.AuthSigningKey == "" {
				return fmt.Errorf("AUTH_SIGNING_KEY must be set to mint tokens")
			}
			key, _, err := resolveSigningKey(cfg.AuthSigningKey)
			if err != nil {
				return err
			}
			issuer := auth.NewTokenIssuer(auth.JWTConfig{Issuer: auth.DefaultIssuer, SigningKey: key}, cfg.TokenTTL)
			token, exp, err := issuer.Issue(user, roles)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().String("user", "", "Subject of the token")
	cmd.Flags().StringSlice("role", []string{auth.RoleFrontDesk}, "Roles carried by the token")
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		logger = logger.Level(level)
	}
	return logger
}

func openBackend(ctx context.Context, cfg *config.Config) (snapshot.Backend, error) {
	return snapshot.Open(ctx, snapshot.Options{
		Backend:  cfg.StoreBackend,
		DSN:      cfg.StoreDSN,
		RedisURL: cfg.RedisURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}

// openStore restores the store from the backend, seeding the sample data
// into an empty backend when configured to.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*clinic.MemoryStore, snapshot.Backend, error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store := clinic.NewMemoryStore(backend)
	loaded, err := store.Load(ctx)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	switch {
	case loaded:
		logger.Info().Str("backend", cfg.StoreBackend).Msg("restored store snapshot")
	case cfg.SeedSampleData:
		if err := store.Seed(ctx, clinic.SampleData(time.Now())); err != nil {
			backend.Close()
			return nil, nil, err
		}
		logger.Info().Str("backend", cfg.StoreBackend).Msg("seeded sample data")
	default:
		logger.Info().Str("backend", cfg.StoreBackend).Msg("starting with an empty store")
	}
	return store, backend, nil
}

// resolveSigningKey decodes the hex AUTH_SIGNING_KEY or generates a random
// 32-byte key. The second return value is true when a key was generated.
func resolveSigningKey(envValue string) ([]byte, bool, error) {
	if envValue != "" {
		decoded, err := hex.DecodeString(envValue)
		if err != nil {
			return nil, false, fmt.Errorf("invalid AUTH_SIGNING_KEY hex value: %w", err)
		}
		return decoded, false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random signing key: %w", err)
	}
	return key, true, nil
}

func outcomeClassifier() func(error) string {
	return middleware.OutcomeClassifier(map[string]error{
		"validation": clinic.ErrValidation,
		"not_found":  clinic.ErrNotFound,
	})
}

// newServer wires middleware, auth and routes around svc.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *clinic.Service, backend snapshot.Backend, signingKey []byte) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := middleware.NewMetrics(outcomeClassifier())
	svc.SetObserver(metrics)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(metrics.Middleware())

	// Auth middleware
	jwtCfg := auth.JWTConfig{Issuer: auth.DefaultIssuer, SigningKey: signingKey, Skipper: auth.AuthSkipper}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.GET("/health", db.HealthHandler(cfg.StoreBackend, backend, 5*time.Second))
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1")
	auth.NewTokenIssuer(jwtCfg, cfg.TokenTTL).RegisterRoutes(apiV1)
	clinic.NewHandler(svc).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	// Config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if cfg.IsDev() {
		logger.Warn().Msg("development mode: requests without a bearer token get admin access")
	}

	// Store
	ctx := context.Background()
	store, backend, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer backend.Close()

	signingKey, generated, err := resolveSigningKey(cfg.AuthSigningKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve signing key")
	}
	if generated {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set; tokens are signed with a random key and will not survive a restart")
	}

	svc := clinic.NewService(store.Repositories(), logger)
	e := newServer(cfg, logger, svc, backend, signingKey)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("backend", cfg.StoreBackend).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func printBuckets(w io.Writer, buckets map[string][]byte) error {
	if len(buckets) == 0 {
		_, err := fmt.Fprintln(w, "backend is empty")
		return err
	}
	names := make([]string, 0, len(buckets))
	for name := range buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "%-14s %10s %s\n", "BUCKET", "BYTES", "ROWS")
	for _, name := range names {
		rows := "-"
		var list []json.RawMessage
		if json.Unmarshal(buckets[name], &list) == nil {
			rows = fmt.Sprint(len(list))
		}
		fmt.Fprintf(w, "%-14s %10d %s\n", name, len(buckets[name]), rows)
	}
	return nil
}
