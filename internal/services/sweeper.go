package services

import (
	"context"
	"time"

	"github.com/thereayou/artem-chat/internal/logger"
	"github.com/thereayou/artem-chat/internal/metrics"
)

// SweepStore - часть Store, нужная фоновой очистке.
type SweepStore interface {
	ExpireModeration(ctx context.Context, now time.Time) (bans, mutes int64, err error)
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper периодически снимает истёкшие баны и муты и гасит
// просроченные сессии. Проверки при входе работают и без него.
type Sweeper struct {
	store    SweepStore
	interval time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func NewSweeper(store SweepStore, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{store: store, interval: interval, log: log, now: time.Now}
}

// Run выполняет проход сразу и затем по тикеру, пока ctx не отменён.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// SweepResult - сколько записей снял один проход.
type SweepResult struct {
	Bans     int64
	Mutes    int64
	Sessions int64
}

func (s *Sweeper) Sweep(ctx context.Context) SweepResult {
	now := s.now()
	var res SweepResult

	bans, mutes, err := s.store.ExpireModeration(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("expire moderation")
	} else {
		res.Bans, res.Mutes = bans, mutes
	}

	sessions, err := s.store.PurgeExpiredSessions(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("purge sessions")
	} else {
		res.Sessions = sessions
	}

	metrics.SweepExpired.WithLabelValues("ban").Add(float64(res.Bans))
	metrics.SweepExpired.WithLabelValues("mute").Add(float64(res.Mutes))
	metrics.SweepExpired.WithLabelValues("session").Add(float64(res.Sessions))
	if res != (SweepResult{}) {
		s.log.Info().
			Int64("bans", res.Bans).
			Int64("mutes", res.Mutes).
			Int64("sessions", res.Sessions).
			Msg("expired records swept")
	}
	return res
}
