package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"github.com/testdeckhq/testdeck/agent"
	"github.com/testdeckhq/testdeck/cmd/backend/handlers"
	"github.com/testdeckhq/testdeck/database"
	"github.com/testdeckhq/testdeck/execution"
	"github.com/testdeckhq/testdeck/integration"
	"github.com/testdeckhq/testdeck/job"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/nocodetest"
	"github.com/testdeckhq/testdeck/notifier"
	"github.com/testdeckhq/testdeck/reconciler"
	"github.com/testdeckhq/testdeck/session"
	"github.com/testdeckhq/testdeck/storage"
	"github.com/testdeckhq/testdeck/suite"
	"github.com/testdeckhq/testdeck/user"
)

var configFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServer,
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.AddCommand(serveCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewLogrusLogger(cfg.Log.Level)
	log.Info(ctx, "starting server", map[string]interface{}{
		"version": Version,
		"commit":  Commit,
		"date":    BuildDate,
	})

	// Connect to database
	dbCfg := database.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}

	db, err := database.Connect(dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	defer sqlDB.Close()

	log.Info(ctx, "database connected", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Database,
	})

	// Blob storage for execution artifacts
	blobStorage, err := storage.New(storage.Config{
		Type:          cfg.Storage.Type,
		BaseDir:       cfg.Storage.BaseDir,
		S3Bucket:      cfg.Storage.S3Bucket,
		S3Region:      cfg.Storage.S3Region,
		PresignExpiry: cfg.Storage.S3PresignExpiry,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Event bus for real-time updates
	bus := notifier.NewBus(log)

	// Stores
	userStore := user.NewMySQLStore(db, log)
	testStore := nocodetest.NewMySQLStore(db, log)
	agentStore := agent.NewMySQLStore(db, log)
	jobStore := job.NewMySQLStore(db, log)
	executionStore := execution.NewMySQLStore(db, log)
	suiteStore := suite.NewMySQLStore(db, log)
	integrationStore := integration.NewMySQLStore(db, log)

	// Agent presence view
	tracker := agent.NewTracker(agentStore, log)

	// Runners
	stepExecutor := &execution.SimulatedExecutor{Artifacts: blobStorage}
	executionRunner := execution.NewRunner(executionStore, testStore, stepExecutor, bus, log)
	suiteRunner := suite.NewRunner(suiteStore, testStore, executionStore, jobStore, executionRunner, bus, log)

	// Background reconciliation
	recon := reconciler.New(reconciler.Config{
		SweepInterval:     cfg.Reconciler.SweepInterval,
		ExecutionDeadline: cfg.Reconciler.ExecutionDeadline,
		OrphanGracePeriod: cfg.Reconciler.OrphanGracePeriod,
	}, agentStore, executionStore, suiteStore, jobStore, bus, log)
	if err := recon.Start(); err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}
	defer recon.Stop()

	// Session manager
	sessionManager := session.NewManager(cfg.Session.Duration, log)
	sessionManager.StartCleanup(5 * time.Minute)
	defer sessionManager.StopCleanup()

	log.Info(ctx, "session manager initialized", map[string]interface{}{
		"duration": cfg.Session.Duration.String(),
	})

	// Setup router
	router := mux.NewRouter()

	// Health check endpoint (public)
	router.HandleFunc("/health", handlers.HealthHandler).Methods("GET")

	// Auth handlers (public)
	authHandler := handlers.NewAuthHandler(
		userStore,
		sessionManager,
		cfg.Session.CookieSecret,
		cfg.Session.CookieName,
		cfg.Session.Secure,
		log,
	)

	router.HandleFunc("/api/v1/auth/register", authHandler.Register).Methods("POST")
	router.HandleFunc("/api/v1/auth/login", authHandler.Login).Methods("POST")
	router.HandleFunc("/api/v1/auth/logout", authHandler.Logout).Methods("POST")

	// Handlers
	agentHandler := handlers.NewAgentHandler(agentStore, tracker, jobStore, testStore, suiteStore, bus, log)
	testHandler := handlers.NewTestHandler(testStore, log)
	jobHandler := handlers.NewJobHandler(jobStore, testStore, bus, log)
	executionHandler := handlers.NewExecutionHandler(executionStore, testStore, executionRunner, bus, log)
	suiteHandler := handlers.NewSuiteHandler(suiteStore, suiteRunner, log)
	userHandler := handlers.NewUserHandler(userStore, log)
	integrationHandler := handlers.NewIntegrationHandler(integrationStore, integration.DeriveKey(cfg.Secrets.CredentialPassphrase), log)
	wsHandler := handlers.NewWSHandler(bus, log)

	// Agent registration is public: the one-time token issued here is what
	// authenticates every later agent call.
	router.HandleFunc("/api/v1/agents/register", agentHandler.Register).Methods("POST")

	// Agent routes (bearer token auth)
	agentAuth := handlers.NewAgentAuthMiddleware(agentStore, log)
	agentRouter := router.PathPrefix("/api/v1/agents").Subrouter()
	agentRouter.Use(agentAuth.Handler)
	agentRouter.HandleFunc("/heartbeat", agentHandler.Heartbeat).Methods("POST")
	agentRouter.HandleFunc("/poll", agentHandler.Poll).Methods("POST")
	agentRouter.HandleFunc("/jobs/{id}/result", agentHandler.Result).Methods("POST")

	// Dashboard routes (session auth)
	authMiddleware := handlers.NewAuthMiddleware(sessionManager, cfg.Session.CookieSecret, cfg.Session.CookieName, log)
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMiddleware.Handler)

	apiRouter.HandleFunc("/users", userHandler.List).Methods("GET")
	apiRouter.HandleFunc("/users/{id}", userHandler.GetByID).Methods("GET")
	apiRouter.HandleFunc("/users/{id}", userHandler.Update).Methods("PUT")
	apiRouter.HandleFunc("/users/{id}", userHandler.Delete).Methods("DELETE")

	apiRouter.HandleFunc("/tests", testHandler.Create).Methods("POST")
	apiRouter.HandleFunc("/tests", testHandler.List).Methods("GET")
	apiRouter.HandleFunc("/tests/{id}", testHandler.GetByID).Methods("GET")
	apiRouter.HandleFunc("/tests/{id}", testHandler.Update).Methods("PUT")
	apiRouter.HandleFunc("/tests/{id}", testHandler.Delete).Methods("DELETE")

	apiRouter.HandleFunc("/agents", agentHandler.List).Methods("GET")
	apiRouter.HandleFunc("/agents/local/activate", agentHandler.ActivateLocal).Methods("POST")
	apiRouter.HandleFunc("/agents/local/{agent_id}", agentHandler.DeactivateLocal).Methods("DELETE")
	apiRouter.HandleFunc("/agents/{agent_id}", agentHandler.Delete).Methods("DELETE")

	apiRouter.HandleFunc("/jobs", jobHandler.Create).Methods("POST")
	apiRouter.HandleFunc("/jobs", jobHandler.List).Methods("GET")
	apiRouter.HandleFunc("/jobs/{id}", jobHandler.GetByID).Methods("GET")
	apiRouter.HandleFunc("/jobs/{id}", jobHandler.Delete).Methods("DELETE")
	apiRouter.HandleFunc("/jobs/{id}/cancel", jobHandler.Cancel).Methods("POST")
	apiRouter.HandleFunc("/jobs/{id}/retry", jobHandler.Retry).Methods("POST")

	apiRouter.HandleFunc("/executions", executionHandler.Run).Methods("POST")
	apiRouter.HandleFunc("/executions", executionHandler.List).Methods("GET")
	apiRouter.HandleFunc("/executions/{id}", executionHandler.GetByID).Methods("GET")
	apiRouter.HandleFunc("/executions/{id}/cancel", executionHandler.Cancel).Methods("POST")

	apiRouter.HandleFunc("/suites", suiteHandler.Create).Methods("POST")
	apiRouter.HandleFunc("/suites", suiteHandler.List).Methods("GET")
	apiRouter.HandleFunc("/suites/{id}", suiteHandler.GetByID).Methods("GET")
	apiRouter.HandleFunc("/suites/{id}", suiteHandler.Update).Methods("PUT")
	apiRouter.HandleFunc("/suites/{id}", suiteHandler.Delete).Methods("DELETE")
	apiRouter.HandleFunc("/suites/{id}/tests", suiteHandler.AddTest).Methods("POST")
	apiRouter.HandleFunc("/suites/{id}/tests/{test_id}", suiteHandler.RemoveTest).Methods("DELETE")
	apiRouter.HandleFunc("/suites/{id}/run", suiteHandler.Run).Methods("POST")
	apiRouter.HandleFunc("/suites/{id}/executions", suiteHandler.ListExecutions).Methods("GET")
	apiRouter.HandleFunc("/suite-executions/{execution_id}", suiteHandler.GetExecution).Methods("GET")

	apiRouter.HandleFunc("/integrations", integrationHandler.Create).Methods("POST")
	apiRouter.HandleFunc("/integrations", integrationHandler.List).Methods("GET")
	apiRouter.HandleFunc("/integrations/{id}", integrationHandler.GetByID).Methods("GET")
	apiRouter.HandleFunc("/integrations/{id}", integrationHandler.Update).Methods("PUT")
	apiRouter.HandleFunc("/integrations/{id}", integrationHandler.Delete).Methods("DELETE")

	// Websocket event stream (public; carries no secrets)
	router.HandleFunc("/api/v1/ws", wsHandler.Stream).Methods("GET")

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info(ctx, "server listening", map[string]interface{}{
			"address": addr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "shutting down server", nil)

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info(ctx, "server stopped", nil)
	return nil
}
