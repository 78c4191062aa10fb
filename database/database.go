package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// ThumbnailInfo is one row of the thumbnail index: where the generated
// thumbnail of a photo in the current batch lives in the media store.
type ThumbnailInfo struct {
	PhotoID       string
	BatchID       string
	ThumbnailPath string
	CreatedAt     int64
}

func InitDB(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Printf("warning: failed to set WAL mode: %v", err)
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS thumbnails (
		photo_id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		thumbnail_path TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_thumbnails_batch ON thumbnails(batch_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create thumbnails table: %w", err)
	}

	log.Println("database initialized successfully at", dataSourceName)
	return db, nil
}

// GetThumbnailInfo looks up a photo's thumbnail. Returns sql.ErrNoRows when
// none has been generated.
func GetThumbnailInfo(db *sql.DB, photoID string) (ThumbnailInfo, error) {
	sqlStr, args, err := psql.Select("photo_id", "batch_id", "thumbnail_path", "created_at").
		From("thumbnails").
		Where(sq.Eq{"photo_id": photoID}).
		Limit(1).
		ToSql()
	if err != nil {
		return ThumbnailInfo{}, fmt.Errorf("failed to build SQL query for GetThumbnailInfo: %w", err)
	}

	var info ThumbnailInfo
	err = db.QueryRow(sqlStr, args...).Scan(&info.PhotoID, &info.BatchID, &info.ThumbnailPath, &info.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ThumbnailInfo{}, sql.ErrNoRows
	}
	if err != nil {
		return ThumbnailInfo{}, fmt.Errorf("failed to query thumbnail info for %s: %w", photoID, err)
	}
	return info, nil
}

// SetThumbnailInfo inserts or replaces the thumbnail of a photo.
func SetThumbnailInfo(db *sql.DB, batchID, photoID, thumbnailPath string) error {
	sqlStr, args, err := psql.Insert("thumbnails").
		Columns("photo_id", "batch_id", "thumbnail_path", "created_at").
		Values(photoID, batchID, thumbnailPath, time.Now().Unix()).
		Suffix("ON CONFLICT(photo_id) DO UPDATE SET").
		Suffix("batch_id = excluded.batch_id,").
		Suffix("thumbnail_path = excluded.thumbnail_path,").
		Suffix("created_at = excluded.created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for SetThumbnailInfo: %w", err)
	}

	if _, err := db.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to set thumbnail info for %s: %w", photoID, err)
	}
	return nil
}

// ClearThumbnails drops every row not belonging to keepBatchID. An empty
// keepBatchID clears the table.
func ClearThumbnails(db *sql.DB, keepBatchID string) (int64, error) {
	del := psql.Delete("thumbnails")
	if keepBatchID != "" {
		del = del.Where(sq.NotEq{"batch_id": keepBatchID})
	}
	sqlStr, args, err := del.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for ClearThumbnails: %w", err)
	}

	res, err := db.Exec(sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear thumbnails: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountThumbnails reports how many thumbnails a batch has.
func CountThumbnails(db *sql.DB, batchID string) (int, error) {
	sqlStr, args, err := psql.Select("COUNT(*)").
		From("thumbnails").
		Where(sq.Eq{"batch_id": batchID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for CountThumbnails: %w", err)
	}
	var n int
	if err := db.QueryRow(sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count thumbnails for batch %s: %w", batchID, err)
	}
	return n, nil
}
