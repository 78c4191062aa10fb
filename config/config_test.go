package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/photosorter/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ROOT_DIRECTORY", "DATABASE_PATH", "MEDIA_STORAGE_PATH", "THUMBNAILS_SUBDIR", "ARCHIVES_SUBDIR",
		"THUMBNAIL_MAX_SIZE", "THUMBNAIL_JPEG_QUALITY", "THUMBNAIL_QUEUE_SIZE", "NUM_THUMBNAIL_WORKERS",
		"MAX_UPLOAD_MB", "CORS_ORIGINS", "PORT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.RootDirectory))
	assert.Equal(t, "sorter.db", cfg.DatabasePath)
	assert.Equal(t, filepath.Join(cfg.MediaStoragePath, "thumbnails"), cfg.ThumbnailsPath)
	assert.Equal(t, filepath.Join(cfg.MediaStoragePath, "exports"), cfg.ArchivesPath)
	assert.Equal(t, 200, cfg.ThumbnailMaxSize)
	assert.Equal(t, 75, cfg.ThumbnailJPEGQuality)
	assert.Equal(t, 200, cfg.ThumbnailQueueSize)
	assert.Equal(t, 4, cfg.NumThumbnailWorkers)
	assert.EqualValues(t, 512<<20, cfg.MaxUploadBytes)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("MEDIA_STORAGE_PATH", dir)
	t.Setenv("THUMBNAIL_MAX_SIZE", "320")
	t.Setenv("THUMBNAIL_JPEG_QUALITY", "250")
	t.Setenv("NUM_THUMBNAIL_WORKERS", "-3")
	t.Setenv("CORS_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("PORT", "nope")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.MediaStoragePath)
	assert.Equal(t, 320, cfg.ThumbnailMaxSize)
	assert.Equal(t, 75, cfg.ThumbnailJPEGQuality, "out of range quality falls back")
	assert.Equal(t, 4, cfg.NumThumbnailWorkers, "negative count falls back")
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoadConfig_SameSubDirs(t *testing.T) {
	clearEnv(t)
	t.Setenv("THUMBNAILS_SUBDIR", "out")
	t.Setenv("ARCHIVES_SUBDIR", "out/")

	_, err := config.LoadConfig()
	assert.Error(t, err)
}
