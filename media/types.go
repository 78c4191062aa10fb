package media

// AssetType selects the storage sub directory for something the server writes.
type AssetType string

const (
	AssetTypeThumbnail AssetType = "thumbnail"
	AssetTypeArchive   AssetType = "archive" // exported CSVs and zips
)

// ThumbnailOptions controls thumbnail generation.
type ThumbnailOptions struct {
	MaxSize int // longest side, in pixels
	Quality int // JPEG quality 1-100
}

// Metadata is what the server reads back from a photo's own EXIF.
type Metadata struct {
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	CameraMake  *string `json:"camera_make,omitempty"`
	CameraModel *string `json:"camera_model,omitempty"`
	TakenAt     *int64  `json:"taken_at,omitempty"`
}
