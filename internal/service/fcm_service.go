package service

import (
	"context"

	"friendmap/pkg/logger"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
)

// FCMService sends push notifications via Firebase Cloud Messaging.
type FCMService struct {
	client *messaging.Client
}

// NewFCMService creates an FCM service from an initialised Firebase app.
// Returns nil if app is nil or messaging cannot be set up; a nil service
// sends nothing.
func NewFCMService(ctx context.Context, app *firebase.App) *FCMService {
	if app == nil {
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		logger.Warn("FCM disabled: failed to get messaging client", "error", err)
		return nil
	}
	return &FCMService{client: client}
}

// Send sends a push notification to the given FCM token.
func (s *FCMService) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if s == nil || token == "" {
		return nil
	}
	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:  data,
		Token: token,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
	if _, err := s.client.Send(ctx, msg); err != nil {
		logger.Warn("FCM send failed", "error", err)
		return err
	}
	return nil
}
