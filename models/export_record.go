package models

import "time"

// Export kinds.
const (
	ExportKindCSV     = "csv"
	ExportKindArchive = "archive"
)

// ExportRecord is one produced export artifact. It corresponds to the
// 'export_records' table.
type ExportRecord struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Kind       string `gorm:"not null;index" json:"kind"`
	Filename   string `gorm:"not null" json:"filename"`
	StoredPath string `gorm:"not null" json:"stored_path"` // relative to the media store root
	SizeBytes  int64  `gorm:"not null" json:"size_bytes"`
	PhotoCount int    `gorm:"not null" json:"photo_count"`
	Unpatched  int    `gorm:"not null;default:0" json:"unpatched,omitempty"` // archive entries stored without new EXIF
	BatchID    string `gorm:"index" json:"batch_id"`
	CreatedAt  int64  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ExportRecord) TableName() string {
	return "export_records"
}

// CreatedAtTime returns CreatedAt as a time.Time.
func (e *ExportRecord) CreatedAtTime() time.Time {
	return time.Unix(e.CreatedAt, 0)
}
