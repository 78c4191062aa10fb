package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/camden-git/photosorter/models"
)

// ExportRepository handles database operations for ExportRecord entities
type ExportRepository struct {
	DB *gorm.DB
}

func NewExportRepository(db *gorm.DB) *ExportRepository {
	return &ExportRepository{DB: db}
}

func (r *ExportRepository) Create(record *models.ExportRecord) error {
	if err := r.DB.Create(record).Error; err != nil {
		return fmt.Errorf("failed to record %s export %s: %w", record.Kind, record.Filename, err)
	}
	return nil
}

// ListAll returns every export, newest first.
func (r *ExportRepository) ListAll() ([]models.ExportRecord, error) {
	var records []models.ExportRecord
	if err := r.DB.Order("created_at DESC, id DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	return records, nil
}

func (r *ExportRepository) ListByKind(kind string) ([]models.ExportRecord, error) {
	var records []models.ExportRecord
	err := r.DB.Where("kind = ?", kind).Order("created_at DESC, id DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s exports: %w", kind, err)
	}
	return records, nil
}

// GetByID returns gorm.ErrRecordNotFound unwrapped when the id is unknown.
func (r *ExportRepository) GetByID(id uint) (*models.ExportRecord, error) {
	var record models.ExportRecord
	err := r.DB.First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export %d: %w", id, err)
	}
	return &record, nil
}
