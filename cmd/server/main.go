// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "card-print-service/docs"
	"card-print-service/internal/config"
	"card-print-service/internal/database"
	"card-print-service/internal/discovery"
	"card-print-service/internal/discovery/serial"
	"card-print-service/internal/discovery/system"
	"card-print-service/internal/discovery/usb"
	"card-print-service/internal/handler"
	"card-print-service/internal/model"
	"card-print-service/internal/printer"
	"card-print-service/internal/protocol"
	"card-print-service/internal/repository"
	"card-print-service/internal/routes"
	"card-print-service/internal/service"
	"card-print-service/internal/tempfile"
	"card-print-service/internal/utils"
)

// staleArtifactAge is how old a leftover temp artifact must be before the sweeper removes it
const staleArtifactAge = time.Hour

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB

	rosterRepo repository.RosterRepository

	printEvents *utils.PrintLogger
	eventBus    *handler.EventBus
	scanners    *discovery.ScannerManager
	queues      *system.Scanner
	temp        *tempfile.Manager
	backends    []printer.PrinterBackend

	printService *service.PrintService
	wsHandler    *handler.WebSocketHandler

	cancelBackground context.CancelFunc
}

// @title Card Print Service API
// @version 1.0.0
// @description Player identification card printing on thermal card printers and document printers

// @contact.name Card Print Service Support

// @host localhost:5000
// @BasePath /api/v1
func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(os.Args[2:]); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "card-print-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg.Printer)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.rosterRepo = repository.NewRosterRepository(app.database, app.logger)

	app.initializeEvents()
	app.initializeDiscovery()
	app.initializePrinters()

	app.printService = service.NewPrintService(
		app.rosterRepo,
		app.backends,
		service.PrintOptions{
			DefaultBackend: model.BackendKind(cfg.Printer.DefaultBackend),
			BatchDelay:     cfg.Printer.BatchDelay,
			ConnectTimeout: cfg.Printer.DiscoveryTimeout + 2*cfg.Printer.HandshakeTimeout,
			CardTimeout:    cfg.Printer.RenderTimeout + cfg.Printer.DispatchTimeout,
		},
		app.logger,
		app.printEvents,
	)

	app.initializeServer()

	return app, nil
}

// runMigrate handles "migrate up|down|version" without starting the server
func runMigrate(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer utils.CloseLogger(logger)

	db, err := database.NewConnection(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger, &cfg.Database)

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	switch command {
	case "up":
		return migrator.Up()
	case "down":
		return migrator.Down()
	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate command %q (want up, down or version)", command)
	}
}

// initializeDatabase sets up the roster connection and runs migrations when enabled
func (app *Application) initializeDatabase() error {
	db, err := database.NewConnection(app.config, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	if app.config.Database.AutoMigrate {
		migrator := database.NewMigrator(db, app.logger, &app.config.Database)
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeEvents connects the print event log to the websocket event bus
func (app *Application) initializeEvents() {
	app.printEvents = utils.NewPrintLogger(app.logger)
	app.eventBus = handler.NewEventBus(app.logger)
	app.printEvents.AddPublisher(app.eventBus)
}

// initializeDiscovery registers the device sources of each backend
func (app *Application) initializeDiscovery() {
	cfg := app.config.Printer
	app.scanners = discovery.NewScannerManager(app.logger, cfg.DiscoveryTimeout)
	app.scanners.SetFingerprints(model.BackendThermal, cfg.ThermalFingerprints)
	app.scanners.SetFingerprints(model.BackendDocument, cfg.DocumentFingerprints)

	// OS queues are listed for both backends; queue entries carry no raw channel
	// and the thermal backend skips them when opening devices
	app.queues = system.NewScanner(app.logger, system.ExecRunner{})
	app.scanners.RegisterScanner(model.BackendThermal, app.queues)

	if cfg.USB.Enabled {
		app.scanners.RegisterScanner(model.BackendThermal, usb.NewScanner(app.logger, &usb.Config{
			ScanTimeout: cfg.DiscoveryTimeout,
			EnableDebug: cfg.USB.Debug,
			VendorIDs:   usb.ParseVendorIDs(cfg.USB.VendorIDs),
		}))
	}
	if cfg.Serial.Enabled {
		app.scanners.RegisterScanner(model.BackendThermal, serial.NewScanner(app.logger))
	}
	app.scanners.RegisterScanner(model.BackendDocument, app.queues)
}

// initializePrinters builds both printer backends
func (app *Application) initializePrinters() {
	cfg := app.config.Printer
	app.temp = tempfile.NewManager(cfg.TempDir, app.logger, app.printEvents)

	thermal := printer.NewThermalCardPrinter(
		app.scanners,
		protocol.NewFactory(cfg.Serial, cfg.HandshakeTimeout, app.logger),
		printer.ThermalOptions{
			HandshakeTimeout: cfg.HandshakeTimeout,
			DispatchTimeout:  cfg.DispatchTimeout,
			Width:            cfg.CardWidthChars,
		},
		app.logger,
		app.printEvents,
	)

	document := printer.NewDocumentPrinter(
		app.scanners,
		printer.NewChromedpRenderer(app.logger, os.Geteuid() == 0),
		printer.NewCommandSpooler(system.ExecRunner{}, cfg.PrintCommand),
		app.temp,
		printer.DocumentOptions{
			RendererPath:       cfg.RendererPath,
			RendererCandidates: cfg.RendererCandidates,
			RenderTimeout:      cfg.RenderTimeout,
			DispatchTimeout:    cfg.DispatchTimeout,
			CleanupGrace:       cfg.CleanupGrace,
		},
		app.logger,
		app.printEvents,
	).WithDefaultQueue(app.queues)

	app.backends = []printer.PrinterBackend{thermal, document}
	app.logger.Info("Printer backends initialized",
		zap.String("default_backend", cfg.DefaultBackend),
		zap.String("temp_dir", cfg.TempDir),
	)
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	app.wsHandler = handler.NewWebSocketHandler(app.eventBus, app.printService, app.config.Security.AllowedOrigins, app.logger)

	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		handler.NewHealthHandler(app.database, app.scanners, app.temp, app.config, app.logger),
		handler.NewPrinterHandler(app.printService, app.logger),
		app.wsHandler,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)
}

// startBackgroundServices starts event distribution and the temp sweeper
func (app *Application) startBackgroundServices() {
	ctx, cancel := context.WithCancel(context.Background())
	app.cancelBackground = cancel

	go app.eventBus.Start()
	go app.wsHandler.Run(ctx)
	go app.startTempSweeper(ctx)

	app.logger.Info("Background services started")
}

// startTempSweeper removes artifacts left behind by a previous process
func (app *Application) startTempSweeper(ctx context.Context) {
	ticker := time.NewTicker(staleArtifactAge / 2)
	defer ticker.Stop()

	for {
		if _, err := app.temp.SweepStale(ctx, staleArtifactAge); err != nil {
			app.logger.Error("Temp sweep failed", zap.Error(err))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "card-print-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if app.cancelBackground != nil {
		app.cancelBackground()
	}
	app.eventBus.Stop()

	for _, b := range app.backends {
		if err := b.Disconnect(); err != nil {
			app.logger.Warn("Printer disconnect error", zap.String("backend", string(b.Kind())), zap.Error(err))
		}
	}

	// artifacts still inside their grace period are removed now
	app.temp.Flush()

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start serves HTTP until a shutdown signal arrives
func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(
				app.config.Server.TLS.CertFile,
				app.config.Server.TLS.KeyFile,
			)
		} else {
			err = app.server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()

	app.waitForShutdown()

	return nil
}
