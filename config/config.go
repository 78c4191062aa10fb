package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultThumbnailsSubDir = "thumbnails"
	DefaultArchivesSubDir   = "exports"
)

const (
	defaultThumbnailQueueSize  = 200
	defaultNumThumbnailWorkers = 4
	defaultThumbnailMaxSize    = 200
	defaultThumbnailQuality    = 75
	defaultMaxUploadMB         = 512
	defaultPort                = 8080
)

type Config struct {
	// directory that POST /api/batch/directory paths are resolved against
	RootDirectory string

	// sqlite file for the thumbnail index and the export ledger
	DatabasePath string

	// media storage configuration
	MediaStoragePath string // root for generated assets (thumbnails, exports)
	ThumbnailsSubDir string
	ArchivesSubDir   string
	ThumbnailsPath   string // full-calculated path for thumbnails
	ArchivesPath     string // full-calculated path for exports

	// thumbnail generation settings
	ThumbnailMaxSize     int
	ThumbnailJPEGQuality int

	// worker settings
	ThumbnailQueueSize  int
	NumThumbnailWorkers int

	// http
	MaxUploadBytes int64
	CORSOrigins    []string
	Port           int
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func LoadConfig() (Config, error) {
	root := getEnvOrDefault("ROOT_DIRECTORY", ".")
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for root directory '%s': %w", root, err)
	}

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	thumbSubDir := getEnvOrDefault("THUMBNAILS_SUBDIR", DefaultThumbnailsSubDir)
	archiveSubDir := getEnvOrDefault("ARCHIVES_SUBDIR", DefaultArchivesSubDir)
	if filepath.Clean(thumbSubDir) == filepath.Clean(archiveSubDir) {
		return Config{}, fmt.Errorf("THUMBNAILS_SUBDIR and ARCHIVES_SUBDIR must differ (both '%s')", thumbSubDir)
	}

	quality := getEnvIntOrDefault("THUMBNAIL_JPEG_QUALITY", defaultThumbnailQuality)
	if quality > 100 {
		log.Printf("Warning: THUMBNAIL_JPEG_QUALITY %d above 100. Using default %d.", quality, defaultThumbnailQuality)
		quality = defaultThumbnailQuality
	}

	cfg := Config{
		RootDirectory:        absRoot,
		DatabasePath:         getEnvOrDefault("DATABASE_PATH", "sorter.db"),
		MediaStoragePath:     absMediaStorage,
		ThumbnailsSubDir:     thumbSubDir,
		ArchivesSubDir:       archiveSubDir,
		ThumbnailsPath:       filepath.Join(absMediaStorage, thumbSubDir),
		ArchivesPath:         filepath.Join(absMediaStorage, archiveSubDir),
		ThumbnailMaxSize:     getEnvIntOrDefault("THUMBNAIL_MAX_SIZE", defaultThumbnailMaxSize),
		ThumbnailJPEGQuality: quality,
		ThumbnailQueueSize:   getEnvIntOrDefault("THUMBNAIL_QUEUE_SIZE", defaultThumbnailQueueSize),
		NumThumbnailWorkers:  getEnvIntOrDefault("NUM_THUMBNAIL_WORKERS", defaultNumThumbnailWorkers),
		MaxUploadBytes:       int64(getEnvIntOrDefault("MAX_UPLOAD_MB", defaultMaxUploadMB)) << 20,
		CORSOrigins:          splitList(getEnvOrDefault("CORS_ORIGINS", "http://localhost:5173")),
		Port:                 getEnvIntOrDefault("PORT", defaultPort),
	}

	return cfg, nil
}
