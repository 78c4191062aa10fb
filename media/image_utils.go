package media

import (
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

var supportedImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// IsRasterImage checks if the filename has a common raster image extension
func IsRasterImage(filename string) bool {
	return supportedImageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// DetectContentType sniffs data and falls back to the file extension when
// sniffing gives nothing specific.
func DetectContentType(filename string, data []byte) string {
	ct := http.DetectContentType(data)
	if ct != "application/octet-stream" && !strings.HasPrefix(ct, "text/plain") {
		return ct
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return byExt
	}
	return ct
}
