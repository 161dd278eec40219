// Command ricohd is the Ricoh fleet manager backend service. It initializes
// the database, discovery scanner, provisioning services, and HTTP API
// server, and handles graceful shutdown when terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Seiiyes/ricoh/internal/api"
	"github.com/Seiiyes/ricoh/internal/config"
	"github.com/Seiiyes/ricoh/internal/database"
	"github.com/Seiiyes/ricoh/internal/provision"
	"github.com/Seiiyes/ricoh/internal/scanner"
	"github.com/Seiiyes/ricoh/internal/secrets"
	"github.com/Seiiyes/ricoh/internal/telemetry"
	"github.com/Seiiyes/ricoh/internal/webui"
)

var logLevelFlag string

// parseFlags parses command line flags and returns the config path
func parseFlags() string {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.StringVar(&logLevelFlag, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()
	return *configPath
}

func main() {
	configPath := parseFlags()

	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(logLevelFlag)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting Ricoh fleet manager")

	// Load configuration
	cfg := config.GetConfig()
	if err := cfg.LoadConfig(configPath); err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
	}

	if cfg.Logging.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	// Initialize database
	log.Info().Str("path", cfg.Database.Path).Msg("Initializing database")
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Initialize password encryption
	var cipher *secrets.Cipher
	if cfg.Encryption.Passphrase != "" {
		cipher, err = secrets.NewCipher(cfg.Encryption.Passphrase)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize encryption")
		}
	} else {
		log.Warn().Msg("No encryption passphrase configured, user passwords cannot be stored")
	}

	// Initialize telemetry enrichment
	var enricher telemetry.Enricher = telemetry.Noop{}
	if cfg.Telemetry.Enabled {
		log.Info().Str("community", cfg.Telemetry.Community).Msg("SNMP telemetry enabled")
		enricher = telemetry.NewSNMPEnricher(
			cfg.Telemetry.Community,
			time.Duration(cfg.Telemetry.Timeout)*time.Second,
			cfg.Telemetry.Retries,
		)
	}

	// Initialize scan service
	log.Info().Msg("Initializing scan service")
	scanService := scanner.New(cfg, db, enricher)

	if err := scanService.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scan service")
	}

	// Initialize provisioning services
	webuiClient := webui.NewClient(
		cfg.Provisioning.AdminUser,
		cfg.Provisioning.AdminPassword,
		cfg.ProvisioningTimeout(),
	)
	provisionService := provision.New(db, webuiClient, cipher, provision.RetryPolicy{
		MaxAttempts: cfg.Provisioning.MaxAttempts,
		Delay:       cfg.RetryDelay(),
	})

	// Initialize router and API handlers
	router := mux.NewRouter()
	events := api.NewEventHub()

	api.NewDiscoveryHandler(scanService, db, events).RegisterRoutes(router)
	api.NewPrinterHandler(db).RegisterRoutes(router)
	api.NewUserHandler(db, cipher).RegisterRoutes(router)
	api.NewProvisionHandler(provisionService, db, events).RegisterRoutes(router)
	api.NewStatusHandler(db).RegisterRoutes(router)
	events.RegisterRoutes(router)

	// Set up CORS
	corsMiddleware := handlers.CORS(
		handlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	// Set up HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      corsMiddleware(router),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for termination signal
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	log.Info().Str("signal", sig.String()).Msg("Received termination signal")

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	log.Info().Msg("Shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Stopping scan service")
	if err := scanService.Stop(); err != nil {
		log.Error().Err(err).Msg("Scan service shutdown failed")
	}

	log.Info().Msg("Optimizing database before exit")
	if err := db.OptimizeDatabase(); err != nil {
		log.Error().Err(err).Msg("Database optimization failed")
	}

	log.Info().Msg("Ricoh fleet manager has been shut down gracefully")
}
