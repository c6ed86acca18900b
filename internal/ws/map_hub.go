package ws

import (
	"context"
	"encoding/json"
	"time"

	"friendmap/internal/models"
	"friendmap/internal/publisher"
	"friendmap/internal/session"
	apperrors "friendmap/pkg/errors"
)

// Message types on the map channel.
const (
	TypeFriends = "friends"
	TypeSelf    = "self"
	TypeSample  = "sample"
	TypeError   = "error"
	TypeGhost   = "ghost"
)

// FriendsMessage is pushed whenever the live view changes.
type FriendsMessage struct {
	Type    string                  `json:"type"`
	Friends []models.FriendLocation `json:"friends"`
}

// SelfMessage echoes the caller's own publisher state after they send something.
type SelfMessage struct {
	Type string             `json:"type"`
	Self publisher.Snapshot `json:"self"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ClientMessage is anything the device sends: a position sample, a position
// error kind, or a ghost-mode toggle.
type ClientMessage struct {
	Type           string    `json:"type"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	Timestamp      time.Time `json:"timestamp"`
	Error          string    `json:"error"`
	Enabled        bool      `json:"enabled"`
}

// Submitter is the slice of the session manager the socket feeds.
type Submitter interface {
	Submit(ctx context.Context, uid string, r publisher.Reading) error
}

const submitTimeout = 5 * time.Second

// handleClientMessage applies one inbound message to the user's session.
func handleClientMessage(ctx context.Context, raw []byte, sess *session.Session, sub Submitter) error {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "message is not valid JSON")
	}
	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	switch msg.Type {
	case TypeSample:
		s := publisher.Sample{
			Lat:            msg.Latitude,
			Lng:            msg.Longitude,
			AccuracyMeters: msg.AccuracyMeters,
			Timestamp:      msg.Timestamp,
		}
		if err := s.Validate(); err != nil {
			return err
		}
		return sub.Submit(ctx, sess.UID, publisher.Reading{Sample: &s})
	case TypeError:
		streamErr := publisher.StreamError(msg.Error)
		if streamErr == nil {
			return apperrors.New(apperrors.ErrCodeValidation, "unknown position error "+msg.Error)
		}
		return sub.Submit(ctx, sess.UID, publisher.Reading{Err: streamErr})
	case TypeGhost:
		return sess.Publisher.SetPrivate(ctx, msg.Enabled)
	default:
		return apperrors.New(apperrors.ErrCodeValidation, "unknown message type "+msg.Type)
	}
}

func errorMessage(err error) ErrorMessage {
	return ErrorMessage{Type: TypeError, Error: apperrors.MessageOf(err), Code: apperrors.CodeOf(err)}
}
