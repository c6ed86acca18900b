package identity

import (
	"context"
	"errors"
	"fmt"

	"friendmap/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// NewFirebaseApp initialises the Firebase app shared by ID-token verification
// and FCM. Without a service-account file it falls back to application
// default credentials.
func NewFirebaseApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.ServiceAccountPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.ServiceAccountPath))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	return app, nil
}

// FirebaseVerifier checks Firebase Auth ID tokens.
type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	if app == nil {
		return nil, errors.New("firebase provider needs a firebase app")
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, rawIDToken string) (*Identity, error) {
	tok, err := v.client.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, unauthorized(err)
	}
	return &Identity{
		UID:   tok.UID,
		Name:  claimString(tok.Claims, "name"),
		Email: claimString(tok.Claims, "email"),
	}, nil
}
