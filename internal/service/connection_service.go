package service

import (
	"context"
	"sort"
	"time"

	"friendmap/internal/domain"
	"friendmap/internal/models"
	"friendmap/internal/repository"
	"friendmap/internal/security"
	apperrors "friendmap/pkg/errors"
	"friendmap/pkg/logger"
)

// Notifier is told about share-link transitions that the other party should hear about.
type Notifier interface {
	ShareRequested(ctx context.Context, owner, viewer *models.User, shareID string)
	ShareApproved(ctx context.Context, viewer, owner *models.User, shareID string)
}

// Connection is one ShareLink seen from the caller's side.
type Connection struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	Other     *models.User `json:"other"`
	IsOwner   bool         `json:"is_owner"`
	CreatedAt time.Time    `json:"created_at"`
}

// Connections partitions every link touching the caller.
type Connections struct {
	PendingReceived []Connection `json:"pending_received"`
	PendingSent     []Connection `json:"pending_sent"`
	Mutual          []Connection `json:"mutual"`
}

// ConnectionService drives the ShareLink state machine:
// none -> pending (viewer asks), pending -> approved (owner),
// pending or approved -> deleted (either party).
type ConnectionService struct {
	users     *repository.UserRepository
	shares    *repository.ShareRepository
	locations *repository.LocationRepository
	notifier  Notifier
}

func NewConnectionService(users *repository.UserRepository, shares *repository.ShareRepository, locations *repository.LocationRepository, notifier Notifier) *ConnectionService {
	return &ConnectionService{users: users, shares: shares, locations: locations, notifier: notifier}
}

// SendRequest asks the user registered under targetEmail to share locations
// with the caller. The target becomes the owner; the caller the viewer.
func (s *ConnectionService) SendRequest(ctx context.Context, callerUID, targetEmail string) (*models.ShareLink, error) {
	email, ok := security.NormalizeEmail(targetEmail)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "no user found with that email")
	}
	target, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrCodeNotFound {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeNotFound, "no user found with that email")
		}
		return nil, err
	}
	if target.FirebaseUID == callerUID {
		return nil, apperrors.New(apperrors.ErrCodeSelfRequest, "you cannot send a request to yourself")
	}

	exists, err := s.shares.ExistsBetween(ctx, callerUID, target.FirebaseUID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.New(apperrors.ErrCodeAlreadyExists, "a connection with this user already exists")
	}

	link := &models.ShareLink{
		OwnerUID:  target.FirebaseUID,
		ViewerUID: callerUID,
		Status:    domain.ShareStatusPending,
	}
	if err := s.shares.Create(ctx, link); err != nil {
		return nil, err
	}
	logger.Info("share requested", "share_id", link.ID, "owner", link.OwnerUID, "viewer", link.ViewerUID)

	if s.notifier != nil {
		viewer, err := s.users.GetByUID(ctx, callerUID)
		if err != nil {
			viewer = nil
		}
		s.notifier.ShareRequested(ctx, target, viewer, link.ID)
	}
	link.Owner = target
	return link, nil
}

// Approve lets the owner accept a pending request. A single approval grants
// visibility both ways.
func (s *ConnectionService) Approve(ctx context.Context, callerUID, shareID string) (*models.ShareLink, error) {
	link, err := s.shares.GetByID(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if !link.Involves(callerUID) {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "request not found")
	}
	if link.OwnerUID != callerUID {
		return nil, apperrors.New(apperrors.ErrCodeForbidden, "only the person being asked can approve a request")
	}
	if !link.IsPending() {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "request not found or already processed")
	}

	approved, err := s.shares.Approve(ctx, shareID, callerUID)
	if err != nil {
		return nil, err
	}
	logger.Info("share approved", "share_id", shareID, "owner", approved.OwnerUID, "viewer", approved.ViewerUID)

	if s.notifier != nil {
		viewer, verr := s.users.GetByUID(ctx, approved.ViewerUID)
		owner, oerr := s.users.GetByUID(ctx, callerUID)
		if verr == nil && oerr == nil {
			s.notifier.ShareApproved(ctx, viewer, owner, shareID)
		}
	}
	return approved, nil
}

// Remove deletes a link the caller is part of, whatever its status, and
// reports what the removal means from the caller's side.
func (s *ConnectionService) Remove(ctx context.Context, callerUID, shareID string) (string, error) {
	link, err := s.shares.GetByID(ctx, shareID)
	if err != nil {
		return "", err
	}
	if !link.Involves(callerUID) {
		return "", apperrors.New(apperrors.ErrCodeNotFound, "connection not found")
	}

	kind := domain.RemovalDisconnected
	if link.IsPending() {
		if link.OwnerUID == callerUID {
			kind = domain.RemovalRejected
		} else {
			kind = domain.RemovalCancelled
		}
	}
	if err := s.shares.Delete(ctx, link); err != nil {
		return "", err
	}
	logger.Info("share removed", "share_id", shareID, "by", callerUID, "kind", kind)
	return kind, nil
}

func (s *ConnectionService) ListConnections(ctx context.Context, callerUID string) (*Connections, error) {
	links, err := s.shares.ListTouching(ctx, callerUID)
	if err != nil {
		return nil, err
	}
	out := &Connections{
		PendingReceived: []Connection{},
		PendingSent:     []Connection{},
		Mutual:          []Connection{},
	}
	for i := range links {
		l := &links[i]
		c := Connection{
			ID:        l.ID,
			Status:    l.Status,
			Other:     otherParty(l, callerUID),
			IsOwner:   l.OwnerUID == callerUID,
			CreatedAt: l.CreatedAt,
		}
		switch {
		case l.IsApproved():
			out.Mutual = append(out.Mutual, c)
		case c.IsOwner:
			out.PendingReceived = append(out.PendingReceived, c)
		default:
			out.PendingSent = append(out.PendingSent, c)
		}
	}
	return out, nil
}

// MutualFriends returns the caller's approved peers keyed by uid, with
// their display names.
func (s *ConnectionService) MutualFriends(ctx context.Context, callerUID string) (map[string]string, error) {
	links, err := s.shares.ListTouching(ctx, callerUID)
	if err != nil {
		return nil, err
	}
	friends := make(map[string]string)
	for i := range links {
		l := &links[i]
		if !l.IsApproved() {
			continue
		}
		peer := l.OtherParty(callerUID)
		if peer == "" || peer == callerUID {
			continue
		}
		friends[peer] = displayName(otherParty(l, callerUID))
	}
	return friends, nil
}

// ResolveFriendLocations returns the last published position of every mutual
// friend. Friends with no row (never published, or private) are omitted.
func (s *ConnectionService) ResolveFriendLocations(ctx context.Context, callerUID string) ([]models.FriendLocation, error) {
	friends, err := s.MutualFriends(ctx, callerUID)
	if err != nil {
		return nil, err
	}
	if len(friends) == 0 {
		return []models.FriendLocation{}, nil
	}
	peers := make([]string, 0, len(friends))
	for uid := range friends {
		peers = append(peers, uid)
	}
	sort.Strings(peers)

	rows, err := s.locations.ListByUIDs(ctx, peers)
	if err != nil {
		return nil, err
	}
	out := make([]models.FriendLocation, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.FriendLocation{
			UID:       r.FirebaseUID,
			Name:      friends[r.FirebaseUID],
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

func otherParty(l *models.ShareLink, uid string) *models.User {
	if l.OwnerUID == uid {
		return l.Viewer
	}
	return l.Owner
}
