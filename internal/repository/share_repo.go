package repository

import (
	"context"
	"errors"

	"friendmap/internal/changefeed"
	"friendmap/internal/domain"
	"friendmap/internal/models"
	apperrors "friendmap/pkg/errors"

	"gorm.io/gorm"
)

// ShareRepository owns location_shares and announces every change on the feed.
type ShareRepository struct {
	db   *gorm.DB
	feed changefeed.Publisher
}

func NewShareRepository(db *gorm.DB, feed changefeed.Publisher) *ShareRepository {
	return &ShareRepository{db: db, feed: feed}
}

// ExistsBetween checks both orderings of the pair.
func (r *ShareRepository) ExistsBetween(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ShareLink{}).Where(
		"(owner_uid = ? AND viewer_uid = ?) OR (owner_uid = ? AND viewer_uid = ?)",
		a, b, b, a,
	).Count(&count).Error
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeBackend, "failed to check existing connection")
	}
	return count > 0, nil
}

// Create inserts a link. A concurrent insert for the same pair loses on the
// pair_key unique index and is reported as AlreadyExists.
func (r *ShareRepository) Create(ctx context.Context, s *models.ShareLink) error {
	if err := r.db.WithContext(ctx).Omit("Owner", "Viewer").Create(s).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Wrap(err, apperrors.ErrCodeAlreadyExists, "a connection with this user already exists")
		}
		return apperrors.Wrap(err, apperrors.ErrCodeBackend, "failed to create request")
	}
	row := *s
	r.publish(changefeed.Event{Type: changefeed.Insert, New: &row})
	return nil
}

func (r *ShareRepository) GetByID(ctx context.Context, id string) (*models.ShareLink, error) {
	var s models.ShareLink
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, notFoundOr(err, "request not found", "failed to load request")
	}
	return &s, nil
}

// Approve moves a pending link owned by ownerUID to approved. It matches on
// all three conditions so a stale or foreign id changes nothing.
func (r *ShareRepository) Approve(ctx context.Context, id, ownerUID string) (*models.ShareLink, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.ShareLink{}).
		Where("id = ? AND owner_uid = ? AND status = ?", id, ownerUID, domain.ShareStatusPending).
		Update("status", domain.ShareStatusApproved)
	if res.Error != nil {
		return nil, apperrors.Wrap(res.Error, apperrors.ErrCodeBackend, "failed to approve request")
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "request not found or already processed")
	}
	updated, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	old := *updated
	old.Status = domain.ShareStatusPending
	row := *updated
	r.publish(changefeed.Event{Type: changefeed.Update, New: &row, Old: &old})
	return updated, nil
}

// Delete removes the link whatever its status.
func (r *ShareRepository) Delete(ctx context.Context, s *models.ShareLink) error {
	res := r.db.WithContext(ctx).Where("id = ?", s.ID).Delete(&models.ShareLink{})
	if res.Error != nil {
		return apperrors.Wrap(res.Error, apperrors.ErrCodeBackend, "failed to delete connection")
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrCodeNotFound, "connection not found")
	}
	old := *s
	old.Owner, old.Viewer = nil, nil
	r.publish(changefeed.Event{Type: changefeed.Delete, Old: &old})
	return nil
}

// ListTouching returns every link where uid is owner or viewer, with both
// parties preloaded.
func (r *ShareRepository) ListTouching(ctx context.Context, uid string) ([]models.ShareLink, error) {
	var list []models.ShareLink
	err := r.db.WithContext(ctx).
		Where("owner_uid = ? OR viewer_uid = ?", uid, uid).
		Preload("Owner").
		Preload("Viewer").
		Order("created_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackend, "failed to load connections")
	}
	return list, nil
}

func (r *ShareRepository) publish(ev changefeed.Event) {
	if r.feed != nil {
		r.feed.Publish(ev)
	}
}
