package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/rpattn/drawvault/internal/config"
	"github.com/rpattn/drawvault/internal/db"
	"github.com/rpattn/drawvault/internal/export"
	"github.com/rpattn/drawvault/internal/files"
	"github.com/rpattn/drawvault/internal/ingestion"
	"github.com/rpattn/drawvault/internal/lifecycle"
	"github.com/rpattn/drawvault/internal/lock"
	"github.com/rpattn/drawvault/internal/logging"
	"github.com/rpattn/drawvault/internal/middleware"
	"github.com/rpattn/drawvault/internal/oracle"
	"github.com/rpattn/drawvault/internal/pdf"
	"github.com/rpattn/drawvault/internal/repository"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	loggers, err := logging.Setup(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	conn, err := db.NewConnection(ctx, cfg.Database, loggers.Error)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(ctx, conn.Pool, "./migrations", loggers.Operation); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	store, err := files.NewStore(cfg.StorageRoot)
	if err != nil {
		log.Fatalf("Failed to prepare storage: %v", err)
	}

	// Repositories
	drawingRepo := repository.NewDrawingRepository(conn.Pool)
	lockRepo := repository.NewLockRepository(conn.Pool)
	recordRepo := repository.NewRecordRepository(conn.Pool)

	// The rotation oracle is optional; without a URL the decision engine
	// runs metadata-only.
	var rotationOracle pdf.Oracle
	if cfg.OracleURL != "" {
		rotationOracle = oracle.NewClient(cfg.OracleURL, cfg.OracleTimeout)
	}

	rewriter := pdf.NewRewriter(cfg.RetryAttempts, cfg.RetryBaseDelay, loggers.Operation)
	rotation := pdf.NewDecisionEngine(rewriter, rotationOracle, cfg.ConfidenceThreshold, loggers.Operation)

	// Services
	locks := lock.NewManager(lockRepo, time.Duration(cfg.LockTTLSeconds)*time.Second, loggers.Operation)
	lifecycleSvc := lifecycle.NewService(drawingRepo, recordRepo, locks, store, loggers.Operation)
	intake := ingestion.NewService(store, drawingRepo, rotation, loggers.Operation)
	exporter := export.NewService(drawingRepo, recordRepo, store, loggers.Operation,
		export.WithExportDirectory(cfg.ExportDir))

	// HTTP surface
	lifecycleHandler := lifecycle.NewHTTPHandler(lifecycleSvc, locks, drawingRepo)
	exportHandler := export.NewHTTPHandler(exporter)

	mux := http.NewServeMux()
	mux.Handle("POST /drawings", ingestion.NewHTTPHandler(intake))
	mux.HandleFunc("GET /drawings/{id}", lifecycleHandler.Get)
	mux.HandleFunc("PATCH /drawings/{id}", lifecycleHandler.UpdateFields)
	mux.HandleFunc("DELETE /drawings/{id}", lifecycleHandler.Delete)
	mux.HandleFunc("GET /drawings/{id}/history", lifecycleHandler.History)
	mux.HandleFunc("POST /drawings/{id}/lock", lifecycleHandler.AcquireLock)
	mux.HandleFunc("DELETE /drawings/{id}/lock", lifecycleHandler.ReleaseLock)
	mux.HandleFunc("GET /drawings/{id}/lock", lifecycleHandler.LockStatus)
	mux.HandleFunc("POST /drawings/{id}/analysis", lifecycleHandler.BeginAnalysis)
	mux.HandleFunc("PUT /drawings/{id}/analysis", lifecycleHandler.CompleteAnalysis)
	mux.HandleFunc("POST /drawings/{id}/resubmit", lifecycleHandler.Resubmit)
	mux.HandleFunc("POST /drawings/{id}/reopen", lifecycleHandler.Reopen)
	mux.HandleFunc("GET /storage/status", files.NewHTTPHandler(store).Status)
	mux.HandleFunc("GET /export/register", exportHandler.Register)
	mux.HandleFunc("POST /export/pdf", exportHandler.PDF)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      corsHandler.Handler(middleware.LoggingMiddleware(loggers.Access, mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		loggers.Operation.Info("drawing vault listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	loggers.Operation.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
}
