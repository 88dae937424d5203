// Package main is the entry point for the dtgate aggregation gateway.
// It initializes the upstream client, database, and HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dtgate/core/cache"
	"dtgate/core/models"
	"dtgate/core/repository"
	"dtgate/core/service"
	"dtgate/database"
	"dtgate/handler"
	"dtgate/utils/config"
	"dtgate/utils/dynatrace"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const version = "1.2.0"

// retentionSweepInterval is how often expired operational logs are purged.
const retentionSweepInterval = 24 * time.Hour

func main() {
	log.Println("Starting dtgate aggregation gateway...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	if err := database.Initialize(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Initialize upstream client
	client := dynatrace.NewClient(cfg.Upstream)

	// Test upstream connection. The gateway still starts when the upstream
	// is down; requests will surface the failure per endpoint.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := client.Ping(ctx); err != nil {
		log.Printf("Warning: upstream not reachable at startup: %v", err)
	} else {
		log.Println("Upstream client initialized successfully")
	}
	cancel()

	// Create repository instances
	checkLogRepo := repository.NewUpstreamCheckLogRepository(database.GetDB())
	actionLogRepo := repository.NewActionLogRepository(database.GetDB())
	eventLogRepo := repository.NewEventLogRepository(database.GetDB())

	// Create service instances
	responseCache := cache.New(cfg.Aggregation.CacheTTL)
	selection := service.NewSelectionStore(cfg.Selection.FilePath, cfg.Selection.DefaultZone, responseCache)
	dispatcher := service.NewDispatcher(client, responseCache, cfg.Aggregation.ChunkSize)
	technology := service.NewTechnologyResolver(client, responseCache)
	zoneService := service.NewZoneService(client, responseCache, cfg.Selection.VFGZones)
	problemService := service.NewProblemService(client, responseCache, cfg.Upstream.EnvURL, cfg.Aggregation.TimezoneOffset)
	serviceAggregator := service.NewServiceAggregator(client, dispatcher, responseCache, selection, technology,
		cfg.Upstream.EnvURL, cfg.Aggregation.MaxMetricsEntities, cfg.Aggregation.HistoryEntityLimit)
	hostAggregator := service.NewHostAggregator(client, dispatcher, responseCache, selection,
		cfg.Upstream.EnvURL, cfg.Aggregation.MaxMetricsEntities, cfg.Aggregation.HistoryEntityLimit)
	processAggregator := service.NewProcessAggregator(client, dispatcher, responseCache, selection, technology,
		cfg.Upstream.EnvURL, cfg.Aggregation.MaxMetricsEntities)
	summaryService := service.NewSummaryService(client, dispatcher, responseCache, selection, problemService,
		cfg.Aggregation.MaxMetricsEntities, cfg.Aggregation.CriticalCPUThreshold)

	// Start upstream checker if enabled
	if cfg.UpstreamCheck.Enabled {
		go startUpstreamChecker(client, checkLogRepo, eventLogRepo, &cfg.UpstreamCheck)
	}

	// Start retention sweeper
	go startRetentionSweeper(cfg.LogRetention.Days, actionLogRepo, eventLogRepo, checkLogRepo)

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
		log.Println("Running in RELEASE mode")
	} else {
		gin.SetMode(gin.DebugMode)
		log.Println("Running in DEBUG mode")
	}

	// Create Gin engine
	engine := gin.New()
	engine.Use(gin.Recovery())
	if cfg.Server.Mode != "release" {
		engine.Use(gin.Logger())
	}

	// Add CORS middleware
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Create handler instances
	zoneHandler := handler.NewZoneHandler(zoneService, selection, actionLogRepo)
	entityHandler := handler.NewEntityHandler(serviceAggregator, hostAggregator, processAggregator)
	problemHandler := handler.NewProblemHandler(problemService, selection)
	summaryHandler := handler.NewSummaryHandler(summaryService)
	statusHandler := handler.NewStatusHandler(responseCache, client, checkLogRepo, actionLogRepo, version)
	auditHandler := handler.NewAuditHandler(actionLogRepo, eventLogRepo)
	streamHandler := handler.NewStreamHandler(summaryService)

	api := engine.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "healthy",
				"time":   time.Now(),
			})
		})

		// Management zone selection
		api.GET("/vital-for-group-mzs", zoneHandler.GetVitalForGroupMZs)
		api.GET("/management-zones", zoneHandler.ListManagementZones)
		api.GET("/current-management-zone", zoneHandler.GetCurrentManagementZone)
		api.POST("/set-management-zone", zoneHandler.SetManagementZone)

		// Aggregated entity views
		api.GET("/services", entityHandler.GetServices)
		api.GET("/hosts", entityHandler.GetHosts)
		api.GET("/processes", entityHandler.GetProcesses)
		api.GET("/problems", problemHandler.ListProblems)
		api.GET("/summary", summaryHandler.GetSummary)
		api.GET("/stream/summary", streamHandler.StreamSummary)

		// Introspection and cache control
		api.GET("/status", statusHandler.GetStatus)
		api.POST("/refresh/:cache_type", statusHandler.RefreshCache)

		// Operational logs
		audit := api.Group("/audit")
		{
			audit.GET("/actions", auditHandler.GetRecentActions)
			audit.GET("/events", auditHandler.GetRecentEvents)
		}
	}

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("dtgate server listening on %s", addr)
		log.Println("API available at: /api")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}

// startUpstreamChecker probes the upstream at the configured interval and
// records latency and reachability.
func startUpstreamChecker(client *dynatrace.Client, repo *repository.UpstreamCheckLogRepository, events *repository.EventLogRepository, cfg *config.UpstreamCheckConfig) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Printf("Upstream checker started (interval: %v)", cfg.Interval)

	wasReachable := true
	for {
		<-ticker.C

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		start := time.Now()
		err := client.Ping(ctx)
		latency := time.Since(start)
		cancel()

		entry := &models.UpstreamCheckLog{
			Status:       "reachable",
			LatencyMs:    latency.Milliseconds(),
			RequestCount: client.RequestCount(),
			CheckedAt:    time.Now(),
		}
		if err != nil {
			entry.Status = "unreachable"
			entry.ErrorMessage = err.Error()
			log.Printf("Upstream check failed: %v", err)
		}

		if createErr := repo.Create(entry); createErr != nil {
			log.Printf("Failed to store upstream check log: %v", createErr)
		}

		// Record reachability transitions as events
		reachable := err == nil
		if reachable != wasReachable {
			level := "info"
			message := "Upstream connection restored"
			if !reachable {
				level = "error"
				message = "Upstream became unreachable: " + err.Error()
			}
			event := &models.EventLog{
				EventType: "upstream",
				Level:     level,
				Message:   message,
				CreatedAt: time.Now(),
			}
			if createErr := events.Create(event); createErr != nil {
				log.Printf("Failed to store event log: %v", createErr)
			}
		}
		wasReachable = reachable
	}
}

// startRetentionSweeper purges operational logs older than the retention
// window once a day.
func startRetentionSweeper(days int, actions *repository.ActionLogRepository, events *repository.EventLogRepository, checks *repository.UpstreamCheckLogRepository) {
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	log.Printf("Log retention sweeper started (retention: %d days)", days)

	for {
		<-ticker.C

		total := int64(0)
		if n, err := actions.DeleteOlderThan(days); err != nil {
			log.Printf("Failed to purge action logs: %v", err)
		} else {
			total += n
		}
		if n, err := events.DeleteOlderThan(days); err != nil {
			log.Printf("Failed to purge event logs: %v", err)
		} else {
			total += n
		}
		if n, err := checks.DeleteOlderThan(days); err != nil {
			log.Printf("Failed to purge upstream check logs: %v", err)
		} else {
			total += n
		}

		if total > 0 {
			log.Printf("Retention sweep removed %d log entries", total)
		}
	}
}
