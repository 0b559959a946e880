package repository

import (
	"errors"

	"qrscan/internal/models"
)

var ErrNotFound = errors.New("record not found")

// ScanRepository defines the interface for scan history operations.
type ScanRepository interface {
	// Create operations
	Insert(rec *models.ScanRecord) (int64, error)
	InsertBatch(records []models.ScanRecord) error

	// Read operations
	GetByID(id int64) (*models.ScanRecord, error)
	GetAll(filter *models.ScanFilter) ([]models.ScanRecord, error)
	GetTotalCount(filter *models.ScanFilter) (int, error)
	GetStats() (*models.ScanStats, error)

	// Delete operations
	Delete(id int64) error
	DeleteAll() error
}
