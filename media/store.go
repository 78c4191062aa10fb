package media

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Store persists generated assets (thumbnails, export artifacts).
type Store interface {
	// Save writes data as filename under the asset type's directory and
	// returns the path relative to the store root.
	Save(assetType AssetType, filename string, data io.Reader) (string, error)
	Get(relativePath string) (io.ReadCloser, os.FileInfo, error)
	Delete(relativePath string) error
	// Clear removes every file of one asset type.
	Clear(assetType AssetType) error
	GetFullPath(relativePath string) (string, error)
	EnsureDir(assetType AssetType) (string, error)
}

// LocalStorage is a Store on the local filesystem.
type LocalStorage struct {
	basePath string
	dirs     map[AssetType]string // absolute directory per asset type
}

// NewLocalStorage creates basePath and maps each asset type to a sub
// directory of it.
func NewLocalStorage(basePath string, subDirs map[AssetType]string) (*LocalStorage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid storage path '%s': %w", basePath, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory '%s': %w", abs, err)
	}

	dirs := make(map[AssetType]string, len(subDirs))
	for assetType, sub := range subDirs {
		dir := filepath.Join(abs, sub)
		if !within(abs, dir) || dir == abs {
			return nil, fmt.Errorf("sub directory '%s' for %s must be inside '%s'", sub, assetType, abs)
		}
		dirs[assetType] = dir
	}

	log.Printf("media.store: using %s", abs)
	return &LocalStorage{basePath: abs, dirs: dirs}, nil
}

func within(base, path string) bool {
	path = filepath.Clean(path)
	return path == base || strings.HasPrefix(path, base+string(filepath.Separator))
}

func (ls *LocalStorage) dir(assetType AssetType) (string, error) {
	d, ok := ls.dirs[assetType]
	if !ok {
		return "", fmt.Errorf("asset type '%s' is not configured", assetType)
	}
	return d, nil
}

func (ls *LocalStorage) EnsureDir(assetType AssetType) (string, error) {
	d, err := ls.dir(assetType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", d, err)
	}
	return d, nil
}

func (ls *LocalStorage) Save(assetType AssetType, filename string, data io.Reader) (string, error) {
	if filename == "" || filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid asset filename '%s'", filename)
	}
	d, err := ls.EnsureDir(assetType)
	if err != nil {
		return "", err
	}

	full := filepath.Join(d, filename)
	out, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("failed to create '%s': %w", full, err)
	}
	if _, err := io.Copy(out, data); err != nil {
		out.Close()
		os.Remove(full)
		return "", fmt.Errorf("failed to write '%s': %w", full, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("failed to close '%s': %w", full, err)
	}

	rel, err := filepath.Rel(ls.basePath, full)
	if err != nil {
		return "", fmt.Errorf("relative path for '%s': %w", full, err)
	}
	return filepath.ToSlash(rel), nil
}

func (ls *LocalStorage) Get(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	full, err := ls.GetFullPath(relativePath)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open asset '%s': %w", relativePath, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat asset '%s': %w", relativePath, err)
	}
	return f, info, nil
}

// Delete removes one asset. A missing file is not an error.
func (ls *LocalStorage) Delete(relativePath string) error {
	full, err := ls.GetFullPath(relativePath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	return nil
}

func (ls *LocalStorage) Clear(assetType AssetType) error {
	d, err := ls.dir(assetType)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(d)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list '%s': %w", d, err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(d, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove '%s': %w", e.Name(), err)
		}
		removed++
	}
	if removed > 0 {
		log.Printf("media.store: cleared %d %s file(s)", removed, assetType)
	}
	return nil
}

// GetFullPath resolves a store-relative path, refusing anything outside the root.
func (ls *LocalStorage) GetFullPath(relativePath string) (string, error) {
	full := filepath.Join(ls.basePath, filepath.Clean("/"+relativePath))
	if !within(ls.basePath, full) || full == ls.basePath {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}
	return full, nil
}
