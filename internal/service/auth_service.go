package service

import (
	"context"
	"time"

	"friendmap/config"
	"friendmap/internal/auth"
	"friendmap/internal/domain"
	"friendmap/internal/identity"
	"friendmap/internal/models"
	"friendmap/internal/repository"
	"friendmap/internal/security"
	apperrors "friendmap/pkg/errors"
	"friendmap/pkg/logger"
)

// SignInResult is what a successful sign-in returns to the client.
type SignInResult struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

type AuthService struct {
	cfg      *config.Config
	verifier identity.Verifier
	userRepo *repository.UserRepository
}

func NewAuthService(cfg *config.Config, verifier identity.Verifier, userRepo *repository.UserRepository) *AuthService {
	return &AuthService{cfg: cfg, verifier: verifier, userRepo: userRepo}
}

// SignInWithIDToken verifies a provider ID token and signs the user in.
func (s *AuthService) SignInWithIDToken(ctx context.Context, rawIDToken string) (*SignInResult, error) {
	if rawIDToken == "" {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "id_token is required")
	}
	id, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	return s.SignIn(ctx, id)
}

// SignIn upserts the users row for a verified identity and issues an access
// token. Name and email are refreshed on every sign-in.
func (s *AuthService) SignIn(ctx context.Context, id *identity.Identity) (*SignInResult, error) {
	if id == nil || id.UID == "" {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "identity has no uid")
	}
	email, ok := security.NormalizeEmail(id.Email)
	if !ok {
		email = ""
	}
	name := security.SanitizeDisplayName(id.Name)
	if name == "" {
		name = domain.DefaultDisplayName
	}
	u := &models.User{
		FirebaseUID: id.UID,
		Name:        name,
		Email:       email,
	}
	if err := s.userRepo.Upsert(ctx, u); err != nil {
		return nil, err
	}
	saved, err := s.userRepo.GetByUID(ctx, id.UID)
	if err != nil {
		return nil, err
	}

	token, expires, err := auth.GenerateAccessToken(&s.cfg.JWT, saved.FirebaseUID, saved.Email)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackend, "failed to issue access token")
	}
	logger.Info("user signed in", "uid", saved.FirebaseUID)
	return &SignInResult{User: saved, AccessToken: token, ExpiresAt: expires}, nil
}

func (s *AuthService) Me(ctx context.Context, uid string) (*models.User, error) {
	return s.userRepo.GetByUID(ctx, uid)
}

func (s *AuthService) SetFCMToken(ctx context.Context, uid, token string) error {
	token = security.SanitizeString(token)
	if token == "" {
		return apperrors.New(apperrors.ErrCodeValidation, "fcm_token is required")
	}
	return s.userRepo.SetFCMToken(ctx, uid, token)
}
