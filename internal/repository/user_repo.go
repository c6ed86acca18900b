package repository

import (
	"context"
	"errors"
	"strings"

	"friendmap/internal/models"
	apperrors "friendmap/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert creates the user or refreshes name and email, keyed by firebase_uid.
// The FCM token is left alone so re-signing in does not clear it.
func (r *UserRepository) Upsert(ctx context.Context, u *models.User) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "firebase_uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "updated_at"}),
	}).Create(u).Error
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackend, "failed to save user")
	}
	return nil
}

func (r *UserRepository) GetByUID(ctx context.Context, uid string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("firebase_uid = ?", uid).First(&u).Error
	if err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	return &u, nil
}

// GetByEmail is a case-insensitive exact match.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "user not found")
	}
	var u models.User
	err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&u).Error
	if err != nil {
		return nil, notFoundOr(err, "user not found", "failed to look up user")
	}
	return &u, nil
}

func (r *UserRepository) ListByUIDs(ctx context.Context, uids []string) ([]models.User, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	var list []models.User
	if err := r.db.WithContext(ctx).Where("firebase_uid IN ?", uids).Find(&list).Error; err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackend, "failed to load users")
	}
	return list, nil
}

func (r *UserRepository) SetFCMToken(ctx context.Context, uid, token string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("firebase_uid = ?", uid).Update("fcm_token", token)
	if res.Error != nil {
		return apperrors.Wrap(res.Error, apperrors.ErrCodeBackend, "failed to save push token")
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrCodeNotFound, "user not found")
	}
	return nil
}

func notFoundOr(err error, notFoundMsg, backendMsg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, notFoundMsg)
	}
	return apperrors.Wrap(err, apperrors.ErrCodeBackend, backendMsg)
}
