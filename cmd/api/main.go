package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pd-shop-api/internal/cache"
	"pd-shop-api/internal/config"
	"pd-shop-api/internal/docstore"
	"pd-shop-api/internal/handler"
	"pd-shop-api/internal/middleware"
	"pd-shop-api/internal/notify"
	"pd-shop-api/internal/repository"
	"pd-shop-api/internal/router"
	"pd-shop-api/internal/service"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting PD Shop API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize document store based on config
	var store docstore.Store
	switch cfg.Docstore.Type {
	case "memory":
		store = docstore.NewMemoryStore()
		log.Println("In-memory document store initialized")
	default: // sqlite
		sqliteStore, err := docstore.NewSQLiteStore(cfg.Docstore.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite docstore: %v", err)
		}
		store = sqliteStore
		log.Println("SQLite document store initialized")
	}
	defer store.Close()

	collections := repository.NewCollections(cfg.App.IsProduction())

	// Initialize repositories
	itemRepo := repository.NewDocstoreItemRepository(store, collections)
	statsRepo := repository.NewDocstoreStatsRepository(store, collections)

	// Initialize activity recorder based on config
	var activityRepo repository.ActivityRecorder
	switch cfg.Activity.Backend {
	case "mysql":
		mysqlDB, err := sql.Open("mysql", cfg.Database.DSN())
		if err != nil {
			log.Fatalf("Failed to open MySQL: %v", err)
		}
		mysqlDB.SetMaxOpenConns(10)
		mysqlDB.SetMaxIdleConns(5)
		mysqlDB.SetConnMaxLifetime(5 * time.Minute)

		if err := mysqlDB.Ping(); err != nil {
			log.Fatalf("Failed to ping MySQL: %v", err)
		}
		activityRepo = repository.NewMySQLActivityRecorder(mysqlDB)
		log.Println("MySQL activity recorder initialized")
	default: // docstore
		activityRepo = repository.NewDocstoreActivityRecorder(store)
		log.Println("Docstore activity recorder initialized")
	}
	defer activityRepo.Close()

	// Initialize Redis write-behind buffer in front of the recorder (optional)
	var redisBuffer *cache.RedisActivityBuffer
	var sink service.ActivitySink = activityRepo
	if cfg.Cache.RedisHost != "" {
		bufferCfg := cache.RedisBufferConfig{
			Addr:          cfg.Cache.RedisAddress(),
			Password:      cfg.Cache.RedisPassword,
			DB:            cfg.Cache.RedisDB,
			FlushInterval: cfg.Activity.FlushInterval,
		}
		buffer, err := cache.NewRedisActivityBuffer(bufferCfg, activityRepo.RecordBatch)
		if err != nil {
			log.Printf("Warning: Redis buffer initialization failed, recording directly: %v", err)
		} else {
			redisBuffer = buffer
			sink = buffer
			log.Println("Redis activity buffer initialized")
		}
	}

	// Discord purchase notifications (optional)
	notifier := notify.NewDiscordNotifier(cfg.Discord.WebhookURL)
	if notifier.Enabled() {
		log.Println("Discord notifier initialized")
	}

	// Catalog cache
	var catalogCache cache.Cache
	if cfg.Cache.Type == "memory" {
		catalogCache = cache.NewMemoryCache()
	}

	// Initialize services
	shopService := service.NewShopService(service.ShopServiceConfig{
		Store:        store,
		Collections:  collections,
		Items:        itemRepo,
		Sink:         sink,
		Notifier:     notifier,
		CatalogCache: catalogCache,
		CacheTTL:     cfg.Cache.TTL,
		WeeklyWindow: cfg.Shop.StatsWeeklyWindow,
	})
	if shopService == nil {
		log.Fatal("Failed to initialize shop service")
	}

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Version)
	shopHandler := handler.NewShopHandler(shopService)
	adminHandler := handler.NewAdminHandler(itemRepo, statsRepo, activityRepo, redisBuffer, cfg.Docstore.Type)

	// Create auth middleware with injected dependencies
	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		APIKeys: cfg.App.APIKeys,
	})

	// Create router
	r := router.New(router.Config{
		Handler:        healthHandler,
		ShopHandler:    shopHandler,
		AdminHandler:   adminHandler,
		AuthMiddleware: authMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Close Redis buffer first (flushes pending activity)
	if redisBuffer != nil {
		log.Println("Closing Redis buffer...")
		redisBuffer.Close()
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
