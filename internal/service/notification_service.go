package service

import (
	"context"

	"friendmap/internal/domain"
	"friendmap/internal/models"
)

// Pusher delivers one push message to a device token.
type Pusher interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// NotificationService tells the other party about share-link changes. Pushes
// are best effort: a missing token or a failed send never fails the caller.
type NotificationService struct {
	push Pusher
}

func NewNotificationService(push Pusher) *NotificationService {
	return &NotificationService{push: push}
}

// ShareRequested notifies the owner that viewer wants to see their location.
func (s *NotificationService) ShareRequested(ctx context.Context, owner, viewer *models.User, shareID string) {
	s.send(ctx, owner, domain.NotifyShareRequested, "New location request",
		displayName(viewer)+" wants to share locations with you", shareID)
}

// ShareApproved notifies the requester that the owner approved.
func (s *NotificationService) ShareApproved(ctx context.Context, viewer, owner *models.User, shareID string) {
	s.send(ctx, viewer, domain.NotifyShareApproved, "Request approved",
		displayName(owner)+" approved your request. You can now see each other on the map", shareID)
}

func (s *NotificationService) send(ctx context.Context, to *models.User, notifType, title, body, shareID string) {
	if s == nil || s.push == nil || to == nil || to.FCMToken == "" {
		return
	}
	_ = s.push.Send(ctx, to.FCMToken, title, body, map[string]string{
		"type":     notifType,
		"share_id": shareID,
	})
}

func displayName(u *models.User) string {
	if u == nil {
		return domain.DefaultDisplayName
	}
	if n := u.DisplayName(); n != "" {
		return n
	}
	return domain.DefaultDisplayName
}
