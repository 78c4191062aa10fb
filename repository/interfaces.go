package repository

import "github.com/camden-git/photosorter/models"

// ExportRepositoryInterface defines the methods for the export ledger
type ExportRepositoryInterface interface {
	Create(record *models.ExportRecord) error
	ListAll() ([]models.ExportRecord, error)
	ListByKind(kind string) ([]models.ExportRecord, error)
	GetByID(id uint) (*models.ExportRecord, error)
}
