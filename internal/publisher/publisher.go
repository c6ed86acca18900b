package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	"friendmap/internal/domain"
	"friendmap/internal/metrics"
	"friendmap/internal/models"
	apperrors "friendmap/pkg/errors"
	"friendmap/pkg/location"
	"friendmap/pkg/logger"

	"go.uber.org/zap"
)

// Sample is one position fix from the device.
type Sample struct {
	Lat            float64   `json:"latitude"`
	Lng            float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	Timestamp      time.Time `json:"timestamp"`
}

// Reading is one element of the position stream: a sample or an error
// (apperrors.ErrPermissionDenied, ErrUnavailable or ErrTimeout).
type Reading struct {
	Sample *Sample
	Err    error
}

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Status is the user-visible state of the position stream.
type Status struct {
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

// Snapshot is what the device's own map shows.
type Snapshot struct {
	Position        *Sample    `json:"position"`
	Trail           []Point    `json:"trail"`
	Private         bool       `json:"private"`
	Status          Status     `json:"status"`
	LastPublishedAt *time.Time `json:"last_published_at,omitempty"`
}

// LocationStore is the slice of the location repository the publisher writes to.
type LocationStore interface {
	Upsert(ctx context.Context, loc *models.LiveLocation) error
	Delete(ctx context.Context, uid string) error
}

type Options struct {
	AccuracyThresholdMeters float64
	TrailLength             int
	Now                     func() time.Time
}

// Publisher turns one user's position stream into writes of their single
// live_locations row.
type Publisher struct {
	uid       string
	store     LocationStore
	threshold float64
	trailLen  int
	now       func() time.Time
	log       *zap.SugaredLogger

	// writeMu orders store writes against ghost-mode toggles so a sample
	// accepted just before going private cannot land after the delete.
	writeMu sync.Mutex

	mu              sync.Mutex
	private         bool
	current         *Sample
	lastAccepted    *Sample
	trail           []Point
	status          Status
	lastPublishedAt *time.Time
}

func New(uid string, store LocationStore, opts Options) *Publisher {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Publisher{
		uid:       uid,
		store:     store,
		threshold: opts.AccuracyThresholdMeters,
		trailLen:  opts.TrailLength,
		now:       now,
		log:       logger.With("uid", uid, "component", "publisher"),
		status:    Status{State: domain.PositionOK},
	}
}

// HandleSample updates the local position and trail, then publishes unless the
// sample is too inaccurate or the user is private. Reports whether an upsert
// was issued; a failed upsert still counts as issued and is dropped.
func (p *Publisher) HandleSample(ctx context.Context, s Sample) bool {
	p.mu.Lock()
	sample := s
	p.current = &sample
	p.appendTrail(Point{Lat: s.Lat, Lng: s.Lng})
	if p.status.State == domain.PositionTimeout {
		p.status = Status{State: domain.PositionOK}
	}
	if p.status.State == domain.PositionPermissionDenied || p.status.State == domain.PositionUnavailable {
		// A fix arriving means the device recovered.
		p.status = Status{State: domain.PositionOK}
	}

	if s.AccuracyMeters > p.threshold {
		p.mu.Unlock()
		metrics.ObserveSample(metrics.SampleRejectedAccuracy)
		p.log.Debugw("sample above accuracy threshold, not publishing", "accuracy", s.AccuracyMeters, "threshold", p.threshold)
		return false
	}
	p.lastAccepted = &sample
	p.mu.Unlock()

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.Private() {
		metrics.ObserveSample(metrics.SampleSuppressedPrivate)
		return false
	}
	p.publish(ctx, sample)
	return true
}

// HandleError records a position-stream error as the visible status.
func (p *Publisher) HandleError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case errors.Is(err, apperrors.ErrPermissionDenied):
		p.status = Status{State: domain.PositionPermissionDenied, Message: "Location permission denied. Enable it in your browser or device settings."}
	case errors.Is(err, apperrors.ErrUnavailable):
		p.status = Status{State: domain.PositionUnavailable, Message: "Location unavailable. Reload to try again."}
	case errors.Is(err, apperrors.ErrTimeout):
		p.status = Status{State: domain.PositionTimeout, Message: "Still waiting for a location fix."}
	default:
		p.status = Status{State: domain.PositionUnavailable, Message: apperrors.MessageOf(err)}
	}
	p.log.Infow("position stream error", "state", p.status.State)
}

// SetPrivate toggles ghost mode. Going private deletes the published row;
// going public republishes the last accepted sample straight away. If the
// delete fails the previous mode is restored, so Private never reports true
// while the row is still visible.
func (p *Publisher) SetPrivate(ctx context.Context, private bool) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	was := p.private
	p.private = private
	last := p.lastAccepted
	p.mu.Unlock()

	if private {
		if err := p.store.Delete(ctx, p.uid); err != nil {
			p.mu.Lock()
			p.private = was
			p.mu.Unlock()
			return err
		}
		p.log.Infow("ghost mode on, location removed")
		return nil
	}
	if was && last != nil {
		p.publish(ctx, *last)
	}
	return nil
}

// Run consumes readings until the stream closes, ctx is cancelled, or an
// unrecoverable Unavailable error arrives (returned so the caller can surface it).
func (p *Publisher) Run(ctx context.Context, readings <-chan Reading) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-readings:
			if !ok {
				return nil
			}
			if r.Err != nil {
				p.HandleError(r.Err)
				if errors.Is(r.Err, apperrors.ErrUnavailable) {
					return r.Err
				}
				continue
			}
			if r.Sample != nil {
				p.HandleSample(ctx, *r.Sample)
			}
		}
	}
}

func (p *Publisher) Private() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.private
}

// Current returns the last displayed position, accepted or not.
func (p *Publisher) Current() *Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	s := *p.current
	return &s
}

func (p *Publisher) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := Snapshot{
		Trail:   append([]Point(nil), p.trail...),
		Private: p.private,
		Status:  p.status,
	}
	if p.current != nil {
		s := *p.current
		snap.Position = &s
	}
	if p.lastPublishedAt != nil {
		t := *p.lastPublishedAt
		snap.LastPublishedAt = &t
	}
	return snap
}

// publish writes with the publish-time clock, not the device timestamp, and
// drops failures: the next sample simply tries again.
func (p *Publisher) publish(ctx context.Context, s Sample) {
	now := p.now().UTC()
	err := p.store.Upsert(ctx, &models.LiveLocation{
		FirebaseUID: p.uid,
		Latitude:    s.Lat,
		Longitude:   s.Lng,
		UpdatedAt:   now,
	})
	if err != nil {
		metrics.ObserveSample(metrics.SampleWriteFailed)
		p.log.Warnw("location write failed, dropping sample", "error", err)
		return
	}
	metrics.ObserveSample(metrics.SamplePublished)
	p.mu.Lock()
	p.lastPublishedAt = &now
	p.mu.Unlock()
}

func (p *Publisher) appendTrail(pt Point) {
	if p.trailLen <= 0 {
		return
	}
	p.trail = append(p.trail, pt)
	if over := len(p.trail) - p.trailLen; over > 0 {
		p.trail = append(p.trail[:0:0], p.trail[over:]...)
	}
}

// StreamError maps a client-reported position error kind to its error
// value, or nil for an unknown kind.
func StreamError(kind string) error {
	switch kind {
	case domain.PositionPermissionDenied:
		return apperrors.ErrPermissionDenied
	case domain.PositionUnavailable:
		return apperrors.ErrUnavailable
	case domain.PositionTimeout:
		return apperrors.ErrTimeout
	}
	return nil
}

// Validate rejects samples the map cannot place.
func (s Sample) Validate() error {
	if !location.ValidCoordinates(s.Lat, s.Lng) {
		return apperrors.New(apperrors.ErrCodeValidation, "latitude must be within ±90 and longitude within ±180")
	}
	if s.AccuracyMeters < 0 {
		return apperrors.New(apperrors.ErrCodeValidation, "accuracy_meters must not be negative")
	}
	return nil
}
