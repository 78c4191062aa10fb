package utils

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log"
	"time"
)

// MinZipTime is the earliest modification time a ZIP header can carry; the DOS
// date field starts in 1980 and earlier extended timestamps wrap around.
var MinZipTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// ZipEntry is one file to place in an archive.
type ZipEntry struct {
	Name     string
	Data     []byte
	Modified time.Time // zero means now; clamped to MinZipTime
}

// WriteZip writes entries to w as a deflated ZIP archive, in order. Names are
// used as given, so repeated names produce repeated entries.
func WriteZip(w io.Writer, entries []ZipEntry) error {
	zw := zip.NewWriter(w)

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Name] {
			log.Printf("zipper: archive already has an entry named %s, adding another", e.Name)
		}
		seen[e.Name] = true

		hdr := &zip.FileHeader{Name: e.Name, Method: zip.Deflate, Modified: e.Modified}
		if hdr.Modified.IsZero() {
			hdr.Modified = time.Now()
		} else if hdr.Modified.Before(MinZipTime) {
			hdr.Modified = MinZipTime
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			zw.Close()
			return fmt.Errorf("failed to create zip entry %s: %w", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			zw.Close()
			return fmt.Errorf("failed to write zip entry %s: %w", e.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize zip writer: %w", err)
	}
	return nil
}

// CreateZip builds the archive in memory.
func CreateZip(entries []ZipEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteZip(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
