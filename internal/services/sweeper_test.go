package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thereayou/artem-chat/internal/logger"
)

type fakeSweepStore struct {
	bans, mutes, sessions int64
	modErr, sessErr       error
	calls                 atomic.Int32
	lastNow               time.Time
}

func (f *fakeSweepStore) ExpireModeration(_ context.Context, now time.Time) (int64, int64, error) {
	f.calls.Add(1)
	f.lastNow = now
	return f.bans, f.mutes, f.modErr
}

func (f *fakeSweepStore) PurgeExpiredSessions(context.Context, time.Time) (int64, error) {
	return f.sessions, f.sessErr
}

func TestSweeper_Sweep(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name  string
		store *fakeSweepStore
		want  SweepResult
	}{
		{
			name:  "counts",
			store: &fakeSweepStore{bans: 2, mutes: 1, sessions: 5},
			want:  SweepResult{Bans: 2, Mutes: 1, Sessions: 5},
		},
		{
			name:  "nothing expired",
			store: &fakeSweepStore{},
			want:  SweepResult{},
		},
		{
			name:  "moderation failure does not stop session purge",
			store: &fakeSweepStore{bans: 9, modErr: errors.New("db down"), sessions: 3},
			want:  SweepResult{Sessions: 3},
		},
		{
			name:  "session failure keeps moderation counts",
			store: &fakeSweepStore{bans: 1, sessErr: errors.New("db down")},
			want:  SweepResult{Bans: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSweeper(tt.store, time.Minute, logger.Nop())
			s.now = func() time.Time { return fixed }

			assert.Equal(t, tt.want, s.Sweep(context.Background()))
			assert.Equal(t, fixed, tt.store.lastNow)
		})
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	store := &fakeSweepStore{}
	s := NewSweeper(store, 10*time.Millisecond, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
