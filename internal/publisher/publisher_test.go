package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"friendmap/internal/domain"
	"friendmap/internal/models"
	apperrors "friendmap/pkg/errors"
)

type fakeStore struct {
	mu      sync.Mutex
	upserts []models.LiveLocation
	deletes []string
	failUp  error
	failDel error
}

func (f *fakeStore) Upsert(_ context.Context, loc *models.LiveLocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUp != nil {
		return f.failUp
	}
	f.upserts = append(f.upserts, *loc)
	return nil
}

func (f *fakeStore) Delete(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDel != nil {
		return f.failDel
	}
	f.deletes = append(f.deletes, uid)
	return nil
}

func (f *fakeStore) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts), len(f.deletes)
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestPublisher(store LocationStore, trail int) *Publisher {
	return New("u1", store, Options{
		AccuracyThresholdMeters: 150,
		TrailLength:             trail,
		Now:                     func() time.Time { return fixedNow },
	})
}

func TestHandleSample_AccuracyThreshold(t *testing.T) {
	tests := []struct {
		name     string
		accuracy float64
		want     bool
	}{
		{name: "precise", accuracy: 5, want: true},
		{name: "at threshold", accuracy: 150, want: true},
		{name: "just above threshold", accuracy: 150.5, want: false},
		{name: "cell tower fix", accuracy: 2000, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			p := newTestPublisher(store, 10)
			got := p.HandleSample(context.Background(), Sample{Lat: 1, Lng: 2, AccuracyMeters: tt.accuracy})
			if got != tt.want {
				t.Errorf("HandleSample() = %v, want %v", got, tt.want)
			}
			ups, _ := store.counts()
			if (ups == 1) != tt.want {
				t.Errorf("upserts = %d, want published=%v", ups, tt.want)
			}
			// The local map always follows the device.
			if cur := p.Current(); cur == nil || cur.AccuracyMeters != tt.accuracy {
				t.Errorf("Current() = %+v, want accuracy %v", cur, tt.accuracy)
			}
		})
	}
}

func TestHandleSample_UsesPublishClock(t *testing.T) {
	store := &fakeStore{}
	p := newTestPublisher(store, 0)
	deviceTime := fixedNow.Add(-10 * time.Minute)
	p.HandleSample(context.Background(), Sample{Lat: 40.7, Lng: -74, AccuracyMeters: 10, Timestamp: deviceTime})

	if len(store.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(store.upserts))
	}
	got := store.upserts[0]
	if got.FirebaseUID != "u1" || got.Latitude != 40.7 || got.Longitude != -74 {
		t.Errorf("upsert = %+v", got)
	}
	if !got.UpdatedAt.Equal(fixedNow) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, fixedNow)
	}
	if snap := p.Snapshot(); snap.LastPublishedAt == nil || !snap.LastPublishedAt.Equal(fixedNow) {
		t.Errorf("LastPublishedAt = %v, want %v", snap.LastPublishedAt, fixedNow)
	}
}

func TestSetPrivate(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	p := newTestPublisher(store, 10)

	p.HandleSample(ctx, Sample{Lat: 1, Lng: 1, AccuracyMeters: 10})
	if err := p.SetPrivate(ctx, true); err != nil {
		t.Fatalf("SetPrivate(true) error = %v", err)
	}
	if _, dels := store.counts(); dels != 1 {
		t.Fatalf("deletes = %d, want 1", dels)
	}

	if p.HandleSample(ctx, Sample{Lat: 2, Lng: 2, AccuracyMeters: 10}) {
		t.Error("HandleSample() published while private")
	}
	if ups, _ := store.counts(); ups != 1 {
		t.Errorf("upserts while private = %d, want 1", ups)
	}
	if !p.Snapshot().Private {
		t.Error("Snapshot().Private = false")
	}

	if err := p.SetPrivate(ctx, false); err != nil {
		t.Fatalf("SetPrivate(false) error = %v", err)
	}
	ups, _ := store.counts()
	if ups != 2 {
		t.Fatalf("upserts after going public = %d, want 2", ups)
	}
	// The republished row is the latest accepted sample, taken while private.
	if last := store.upserts[1]; last.Latitude != 2 || last.Longitude != 2 {
		t.Errorf("republished %+v, want (2,2)", last)
	}
}

func TestSetPrivate_PublicToPublicIsNoop(t *testing.T) {
	store := &fakeStore{}
	p := newTestPublisher(store, 10)
	p.HandleSample(context.Background(), Sample{Lat: 1, Lng: 1, AccuracyMeters: 10})

	if err := p.SetPrivate(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if ups, dels := store.counts(); ups != 1 || dels != 0 {
		t.Errorf("upserts=%d deletes=%d, want 1 and 0", ups, dels)
	}
}

func TestSetPrivate_DeleteFailureStaysPublic(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{failDel: errors.New("connection reset")}
	p := newTestPublisher(store, 10)
	p.HandleSample(ctx, Sample{Lat: 1, Lng: 1, AccuracyMeters: 10})

	if err := p.SetPrivate(ctx, true); err == nil {
		t.Fatal("SetPrivate(true) error = nil, want the delete failure")
	}
	if p.Private() || p.Snapshot().Private {
		t.Error("publisher reports private while its row is still published")
	}

	// Still public, so the next fix is published as usual.
	if !p.HandleSample(ctx, Sample{Lat: 2, Lng: 2, AccuracyMeters: 10}) {
		t.Error("HandleSample() did not publish after the failed toggle")
	}
	if ups, _ := store.counts(); ups != 2 {
		t.Errorf("upserts = %d, want 2", ups)
	}
}

func TestHandleSample_WriteFailureIsDropped(t *testing.T) {
	store := &fakeStore{failUp: errors.New("connection reset")}
	p := newTestPublisher(store, 10)

	if !p.HandleSample(context.Background(), Sample{Lat: 1, Lng: 1, AccuracyMeters: 10}) {
		t.Error("HandleSample() = false, want true for an issued write")
	}
	if snap := p.Snapshot(); snap.LastPublishedAt != nil {
		t.Errorf("LastPublishedAt = %v after failed write", snap.LastPublishedAt)
	}

	store.mu.Lock()
	store.failUp = nil
	store.mu.Unlock()
	p.HandleSample(context.Background(), Sample{Lat: 3, Lng: 3, AccuracyMeters: 10})
	if ups, _ := store.counts(); ups != 1 {
		t.Errorf("upserts = %d, want 1 (no retry of the dropped sample)", ups)
	}
}

func TestTrailIsCapped(t *testing.T) {
	p := newTestPublisher(&fakeStore{}, 3)
	for i := 0; i < 5; i++ {
		p.HandleSample(context.Background(), Sample{Lat: float64(i), Lng: 0, AccuracyMeters: 10})
	}
	trail := p.Snapshot().Trail
	if len(trail) != 3 {
		t.Fatalf("len(trail) = %d, want 3", len(trail))
	}
	if trail[0].Lat != 2 || trail[2].Lat != 4 {
		t.Errorf("trail = %+v, want lats 2..4", trail)
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name      string
		readings  []Reading
		wantErr   error
		wantState string
		wantUps   int
	}{
		{
			name: "timeout keeps listening",
			readings: []Reading{
				{Err: apperrors.ErrTimeout},
				{Sample: &Sample{Lat: 1, Lng: 1, AccuracyMeters: 10}},
			},
			wantState: domain.PositionOK,
			wantUps:   1,
		},
		{
			name:      "permission denied keeps listening",
			readings:  []Reading{{Err: apperrors.ErrPermissionDenied}},
			wantState: domain.PositionPermissionDenied,
		},
		{
			name: "unavailable stops the stream",
			readings: []Reading{
				{Err: apperrors.ErrUnavailable},
				{Sample: &Sample{Lat: 1, Lng: 1, AccuracyMeters: 10}},
			},
			wantErr:   apperrors.ErrUnavailable,
			wantState: domain.PositionUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			p := newTestPublisher(store, 10)
			ch := make(chan Reading, len(tt.readings))
			for _, r := range tt.readings {
				ch <- r
			}
			close(ch)

			err := p.Run(context.Background(), ch)
			if !errors.Is(err, tt.wantErr) && !(err == nil && tt.wantErr == nil) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if got := p.Snapshot().Status.State; got != tt.wantState {
				t.Errorf("status = %q, want %q", got, tt.wantState)
			}
			if ups, _ := store.counts(); ups != tt.wantUps {
				t.Errorf("upserts = %d, want %d", ups, tt.wantUps)
			}
		})
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	p := newTestPublisher(&fakeStore{}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, make(chan Reading)) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSampleValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       Sample
		wantErr bool
	}{
		{name: "ok", s: Sample{Lat: 51.5, Lng: -0.1, AccuracyMeters: 20}},
		{name: "lat out of range", s: Sample{Lat: 91, Lng: 0}, wantErr: true},
		{name: "lng out of range", s: Sample{Lat: 0, Lng: -181}, wantErr: true},
		{name: "negative accuracy", s: Sample{Lat: 0, Lng: 0, AccuracyMeters: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.s.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStreamError(t *testing.T) {
	if !errors.Is(StreamError(domain.PositionTimeout), apperrors.ErrTimeout) {
		t.Error("timeout not mapped")
	}
	if StreamError("bogus") != nil {
		t.Error("unknown kind mapped to an error")
	}
}
