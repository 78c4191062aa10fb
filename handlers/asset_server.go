package handlers

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func setCacheHeaders(w http.ResponseWriter, d time.Duration) {
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(d.Seconds())))
	w.Header().Set("Expires", time.Now().Add(d).Format(http.TimeFormat))
}

// AssetServer serves files from one subdirectory of the media store.
// routePrefix is the mount point, e.g.
//
//	r.Get("/api/thumbnails/*", AssetServer(cfg.MediaStoragePath, cfg.ThumbnailsSubDir, "/api/thumbnails/"))
//
// Thumbnail names are random, so files are cached for a day.
func AssetServer(baseStoragePath, subDir, routePrefix string) http.HandlerFunc {
	base := filepath.Clean(baseStoragePath)
	assetDir := filepath.Clean(filepath.Join(base, subDir))
	log.Printf("Serving assets for '%s*' from directory: %s", routePrefix, assetDir)

	if assetDir == base || !strings.HasPrefix(assetDir, base+string(os.PathSeparator)) {
		log.Fatalf("FATAL: Asset subdirectory '%s' resolved outside base storage path '%s'. Resolved path: '%s'", subDir, base, assetDir)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := strings.TrimPrefix(r.URL.Path, routePrefix)
		if relativePath == "" || strings.Contains(relativePath, "..") {
			http.Error(w, "Invalid asset path", http.StatusBadRequest)
			return
		}

		cleaned := filepath.Clean(filepath.Join(assetDir, relativePath))
		if !strings.HasPrefix(cleaned, assetDir+string(os.PathSeparator)) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			log.Printf("SECURITY: Attempted asset access outside designated directory: Request='%s', Resolved='%s', Allowed Base='%s'",
				r.URL.Path, cleaned, assetDir)
			return
		}

		info, err := os.Stat(cleaned)
		if os.IsNotExist(err) || (err == nil && info.IsDir()) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			log.Printf("Error stating asset file %s: %v", cleaned, err)
			return
		}

		setCacheHeaders(w, 24*time.Hour)
		http.ServeFile(w, r, cleaned)
	}
}
