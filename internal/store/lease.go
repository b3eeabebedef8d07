package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/urbanlab/popforecast/internal/store/model"
)

// Lease is the per-(territory, scenario) mutual-exclusion token a
// restore job acquires before touching the working databases and
// releases on completion or failure.
type Lease interface {
	Acquire(ctx context.Context, territoryID int64, scenario string, jobID int64) error
	Release(ctx context.Context, territoryID int64, scenario string) error
}

type LeaseStore struct {
	db *gorm.DB
}

var _ Lease = (*LeaseStore)(nil)

func NewLeaseStore(db *gorm.DB) *LeaseStore {
	return &LeaseStore{db: db}
}

func (s *LeaseStore) Acquire(ctx context.Context, territoryID int64, scenario string, jobID int64) error {
	lease := model.RestoreLease{
		TerritoryID: territoryID,
		Scenario:    scenario,
		JobID:       jobID,
		AcquiredAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&lease).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrLeaseHeld
		}
		return err
	}
	return nil
}

func (s *LeaseStore) Release(ctx context.Context, territoryID int64, scenario string) error {
	return s.db.WithContext(ctx).
		Where("territory_id = ? AND scenario = ?", territoryID, scenario).
		Delete(&model.RestoreLease{}).Error
}
