package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/camden-git/photosorter/config"
	"github.com/camden-git/photosorter/database"
	"github.com/camden-git/photosorter/handlers"
	"github.com/camden-git/photosorter/media"
	"github.com/camden-git/photosorter/realtime"
	"github.com/camden-git/photosorter/repository"
	"github.com/camden-git/photosorter/services"
	"github.com/camden-git/photosorter/session"
	"github.com/camden-git/photosorter/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.ThumbnailsPath, cfg.ArchivesPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	defer db.Close()

	gormDB, err := database.InitGormDB(cfg.DatabasePath, false)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize export ledger: %v", err)
	}
	if err := database.AutoMigrateModels(gormDB); err != nil {
		log.Fatalf("FATAL: Failed to migrate export ledger: %v", err)
	}

	mediaSubDirs := map[media.AssetType]string{
		media.AssetTypeThumbnail: cfg.ThumbnailsSubDir,
		media.AssetTypeArchive:   cfg.ArchivesSubDir,
	}
	mediaStore, err := media.NewLocalStorage(cfg.MediaStoragePath, mediaSubDirs)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media store: %v", err)
	}
	mediaProcessor := media.NewProcessor(mediaStore, media.ThumbnailOptions{
		MaxSize: cfg.ThumbnailMaxSize,
		Quality: cfg.ThumbnailJPEGQuality,
	})

	hub := realtime.NewHub()
	go hub.Run()

	ctrl := session.NewController(nil, hub.Publish)

	log.Printf("Initializing image processor worker pool (Workers: %d, Queue Size: %d)...", cfg.NumThumbnailWorkers, cfg.ThumbnailQueueSize)
	imageProcessor := workers.NewImageProcessor(ctrl, mediaProcessor, mediaStore, db, cfg.ThumbnailQueueSize, cfg.NumThumbnailWorkers)

	sessionHandler := &handlers.SessionHandler{
		Ctrl:           ctrl,
		Batches:        services.NewBatchService(ctrl, imageProcessor, mediaStore, db, cfg.RootDirectory),
		Imports:        services.NewImportService(ctrl),
		Exports:        services.NewExportService(ctrl, mediaStore, repository.NewExportRepository(gormDB)),
		Store:          mediaStore,
		ThumbDB:        db,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	log.Printf("Loading directories from root: %s", cfg.RootDirectory)
	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing thumbnails in: %s", cfg.ThumbnailsPath)
	log.Printf("Thumbnail max size (longest side): %dpx", cfg.ThumbnailMaxSize)

	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Photo-Count", "X-Unpatched-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ws", hub.ServeWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(5 * time.Minute))
			sessionHandler.Mount(r)

			thumbnailPrefix := fmt.Sprintf("/api/%s/", cfg.ThumbnailsSubDir)
			r.Get(fmt.Sprintf("/%s/*", cfg.ThumbnailsSubDir), handlers.AssetServer(cfg.MediaStoragePath, cfg.ThumbnailsSubDir, thumbnailPrefix))
			log.Printf("Registered thumbnail server at %s*", thumbnailPrefix)
		})
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	fmt.Printf("Server starting on http://localhost:%d\n", cfg.Port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute, // batch uploads
		WriteTimeout:      5 * time.Minute, // archive downloads
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	imageProcessor.Stop()
	ctrl.Stop()
	hub.Close()
	log.Printf("Stopped")
}
