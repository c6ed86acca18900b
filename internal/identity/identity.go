// Package identity verifies ID tokens issued by the external identity
// provider and reduces them to the three fields the service stores.
package identity

import (
	"context"
	"fmt"

	"friendmap/config"
	apperrors "friendmap/pkg/errors"

	firebase "firebase.google.com/go/v4"
)

// Identity is the provider-verified account behind a request.
type Identity struct {
	UID   string
	Name  string
	Email string
}

type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (*Identity, error)
}

// NewVerifier returns the verifier for the configured provider. app is only
// used by the firebase provider.
func NewVerifier(ctx context.Context, cfg *config.Config, app *firebase.App) (Verifier, error) {
	switch cfg.Identity.Provider {
	case config.ProviderFirebase:
		return NewFirebaseVerifier(ctx, app)
	case config.ProviderGoogle:
		return NewOIDCVerifier(ctx, GoogleIssuer, cfg.OAuth.GoogleClientID)
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.Identity.Provider)
	}
}

func unauthorized(err error) error {
	return apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "invalid or expired sign-in token")
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
