package database

import "database/sql"

// DatabaseService persists corpus records. Enumeration order is insertion order.
type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// CreateImage inserts a record. An empty ID is replaced by a generated one and
	// a zero CreatedAt by the current time. The stored ID is returned.
	CreateImage(image *Image) (string, error)
	// GetImages returns all records in insertion order. If fields are provided,
	// only those columns are populated; the rest keep their zero values.
	GetImages(fields ...string) ([]*Image, error)
	// GetLatestImages returns up to limit records, newest first, with id and created_at populated.
	GetLatestImages(limit int) ([]*Image, error)
	// GetImageByID returns nil and no error when the record does not exist.
	GetImageByID(id string) (*Image, error)
	DeleteImage(id string) error
	CountImages() (int, error)
}
