package store

import (
	"gorm.io/gorm"
)

// Store groups the relational state owned by the service.
type Store interface {
	Lease() Lease
	Close() error
}

type DataStore struct {
	db    *gorm.DB
	lease Lease
}

var _ Store = (*DataStore)(nil)

func NewStore(db *gorm.DB) *DataStore {
	return &DataStore{
		db:    db,
		lease: NewLeaseStore(db),
	}
}

func (s *DataStore) Lease() Lease {
	return s.lease
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
