package repository

import (
	"context"

	"friendmap/internal/changefeed"
	"friendmap/internal/models"
	apperrors "friendmap/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LocationRepository owns live_locations and announces every change on the feed.
type LocationRepository struct {
	db   *gorm.DB
	feed changefeed.Publisher
}

func NewLocationRepository(db *gorm.DB, feed changefeed.Publisher) *LocationRepository {
	return &LocationRepository{db: db, feed: feed}
}

// Upsert overwrites lat/lng/updated_at unconditionally (last write wins).
// The existence check and the write share a transaction so the published
// event is INSERT for a new row and UPDATE otherwise; the event goes out only
// after commit.
func (r *LocationRepository) Upsert(ctx context.Context, loc *models.LiveLocation) error {
	evType := changefeed.Insert
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.LiveLocation{}).Where("firebase_uid = ?", loc.FirebaseUID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			evType = changefeed.Update
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "firebase_uid"}},
			DoUpdates: clause.AssignmentColumns([]string{"latitude", "longitude", "updated_at"}),
		}).Create(loc).Error
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackend, "failed to save location")
	}

	row := *loc
	r.publish(changefeed.Event{Type: evType, New: &row})
	return nil
}

// Delete removes the owner's row. Deleting an absent row is not an error and
// publishes nothing.
func (r *LocationRepository) Delete(ctx context.Context, uid string) error {
	res := r.db.WithContext(ctx).Where("firebase_uid = ?", uid).Delete(&models.LiveLocation{})
	if res.Error != nil {
		return apperrors.Wrap(res.Error, apperrors.ErrCodeBackend, "failed to delete location")
	}
	if res.RowsAffected > 0 {
		r.publish(changefeed.Event{Type: changefeed.Delete, Old: &models.LiveLocation{FirebaseUID: uid}})
	}
	return nil
}

func (r *LocationRepository) GetByUID(ctx context.Context, uid string) (*models.LiveLocation, error) {
	var loc models.LiveLocation
	if err := r.db.WithContext(ctx).Where("firebase_uid = ?", uid).First(&loc).Error; err != nil {
		return nil, notFoundOr(err, "location not found", "failed to load location")
	}
	return &loc, nil
}

func (r *LocationRepository) ListByUIDs(ctx context.Context, uids []string) ([]models.LiveLocation, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	var list []models.LiveLocation
	if err := r.db.WithContext(ctx).Where("firebase_uid IN ?", uids).Find(&list).Error; err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackend, "failed to load locations")
	}
	return list, nil
}

func (r *LocationRepository) publish(ev changefeed.Event) {
	if r.feed != nil {
		r.feed.Publish(ev)
	}
}
