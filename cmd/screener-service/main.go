package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/rmpcap/screener-be/internal/api/handler"
	"github.com/rmpcap/screener-be/internal/api/router"
	"github.com/rmpcap/screener-be/internal/api/storage"
	"github.com/rmpcap/screener-be/internal/config"
	"github.com/rmpcap/screener-be/internal/geocode"
	"github.com/rmpcap/screener-be/internal/gis"
	"github.com/rmpcap/screener-be/internal/ledger"
	"github.com/rmpcap/screener-be/internal/parcels"
	"github.com/rmpcap/screener-be/internal/registry"
	"github.com/rmpcap/screener-be/internal/report"
	"github.com/rmpcap/screener-be/internal/screener"
	"github.com/rmpcap/screener-be/shared/logger"
	"github.com/rmpcap/screener-be/shared/postgresql"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("SCREENER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/screener-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting screener service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Build the GIS endpoint registry: built-in entries plus config extras
	reg, err := registry.New(append(registry.DefaultEntries(), cfg.GIS.Endpoints...))
	if err != nil {
		return fmt.Errorf("failed to build endpoint registry: %w", err)
	}

	// Open the missing-jurisdiction ledger
	missingLedger, err := ledger.Open(cfg.Screener.LedgerPath, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to open missing-jurisdiction ledger: %w", err)
	}

	// Assemble the screener engine and its collaborators
	propertyStorage := storage.NewStorage(dbClient)
	parcelStore := parcels.NewStore(dbClient.GetDB(), appLogger.Logger)

	engine := screener.NewEngine(screener.Dependencies{
		Properties: propertyStorage,
		Geocoder:   geocode.NewGeocoder(cfg.GIS.GeocoderURL, cfg.GIS.RequestTimeout, appLogger.Logger),
		Locator:    geocode.NewLocator(cfg.GIS.FCCAreaURL, cfg.GIS.RequestTimeout, appLogger.Logger),
		Resolver:   gis.NewResolver(reg, cfg.GIS.RequestTimeout, appLogger.Logger),
		Parcels:    parcelStore,
		Ledger:     missingLedger,
		Reporter:   report.NewExcelRenderer(cfg.Screener.ReportDir, appLogger.Logger),
		Logger:     appLogger.Logger,
	})

	// Interactive capture is not wired in the HTTP service; overrides
	// arrive pre-captured through the parcel endpoint.
	fixer := screener.NewManualFixer(parcelStore, nil, appLogger.Logger)

	// Initialize router
	r := initRouter(cfg.App.Environment, &handler.Dependencies{
		Logger:  appLogger.Logger,
		DB:      dbClient,
		Storage: propertyStorage,
		Engine:  engine,
		Parcels: parcelStore,
		Fixer:   fixer,
	})

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Screener service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)

	// Cleanup function to close all resources
	cleanup := func() {
		cancel()
		if dbClient != nil {
			dbClient.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	// Set Gin mode based on environment
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Setup router
	return router.SetupRouter(deps)
}
