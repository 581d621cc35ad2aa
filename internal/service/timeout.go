package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/superghost/internal/game"
	"github.com/robalobadob/superghost/internal/notify"
	"github.com/robalobadob/superghost/internal/stats"
)

const sweepConcurrency = 8

// SweepReport counts what one sweep resolved.
type SweepReport struct {
	Forfeited int
	Expired   int
}

// ExpireStale forfeits matches whose awaited player has been idle for
// longer than the move timeout, and removes open or finished matches that
// outlived their TTL. Each match is resolved only if it has not changed
// since it was inspected.
func (s *Service) ExpireStale(ctx context.Context) (SweepReport, error) {
	now := s.now()
	var forfeited, expired atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)

	for _, snap := range s.registry.Snapshot(ctx) {
		switch st := snap.Status(); {
		case snap.AwaitedPlayerID() != "":
			if now.Sub(snap.LastMoveAt) < s.opts.MoveTimeout {
				continue
			}
			g.Go(func() error {
				ok, err := s.forfeit(ctx, snap)
				if ok {
					forfeited.Add(1)
				}
				return err
			})
		case st == game.StatusOpen && s.opts.OpenMatchTTL > 0:
			if now.Sub(snap.CreatedAt) < s.opts.OpenMatchTTL {
				continue
			}
			g.Go(func() error {
				if s.expire(ctx, snap) {
					expired.Add(1)
				}
				return nil
			})
		case (st.IsFinished() || st == game.StatusRematch) && s.opts.FinishedMatchTTL > 0:
			if now.Sub(snap.LastMoveAt) < s.opts.FinishedMatchTTL {
				continue
			}
			g.Go(func() error {
				if s.expire(ctx, snap) {
					expired.Add(1)
				}
				return nil
			})
		}
	}

	err := g.Wait()
	return SweepReport{Forfeited: int(forfeited.Load()), Expired: int(expired.Load())}, err
}

// forfeit resolves snap by timeout unless a move landed in the meantime.
func (s *Service) forfeit(ctx context.Context, snap game.Match) (bool, error) {
	m, finished, err := s.apply(ctx, snap.ID, "timeout", func(m *game.Match) error {
		if m.Version != snap.Version {
			return errStale
		}
		return m.Forfeit(s.now())
	})
	switch {
	case errors.Is(err, errStale), errors.Is(err, game.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	if finished {
		s.record(ctx, m, stats.ReasonTimeout, "")
	}
	return true, nil
}

// expire deletes snap unless it changed since it was inspected.
func (s *Service) expire(ctx context.Context, snap game.Match) bool {
	_, err := s.registry.DeleteIf(ctx, snap.ID,
		func(m game.Match) bool { return m.Version != snap.Version },
		func(last game.Match) {
			s.publisher.Publish(ctx, notify.Event{MatchID: last.ID, Kind: notify.EventDeleted, Reason: notify.ReasonExpired})
		})
	if err != nil {
		return false
	}
	s.logger.Info().Str("match_id", snap.ID).Str("status", string(snap.Status())).Msg("match expired")
	return true
}

var errStale = errors.New("match changed since inspection")

// Sweeper runs ExpireStale on a fixed interval.
type Sweeper struct {
	svc       *Service
	interval  time.Duration
	scheduler gocron.Scheduler
	cancel    context.CancelFunc
	logger    zerolog.Logger
}

func NewSweeper(svc *Service, interval time.Duration, logger zerolog.Logger) (*Sweeper, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Sweeper{
		svc:       svc,
		interval:  interval,
		scheduler: sched,
		logger:    logger.With().Str("component", "sweeper").Logger(),
	}, nil
}

// Start schedules the sweep. Overlapping runs are skipped.
func (sw *Sweeper) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	sw.cancel = cancel

	_, err := sw.scheduler.NewJob(
		gocron.DurationJob(sw.interval),
		gocron.NewTask(func() { sw.run(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		return err
	}
	sw.scheduler.Start()
	sw.logger.Info().Dur("interval", sw.interval).Msg("sweeper started")
	return nil
}

// Stop cancels a running sweep and shuts the scheduler down.
func (sw *Sweeper) Stop() error {
	if sw.cancel != nil {
		sw.cancel()
	}
	return sw.scheduler.Shutdown()
}

func (sw *Sweeper) run(ctx context.Context) {
	report, err := sw.svc.ExpireStale(ctx)
	if err != nil {
		sw.logger.Error().Err(err).Msg("sweep failed")
		return
	}
	if report.Forfeited > 0 || report.Expired > 0 {
		sw.logger.Info().
			Int("forfeited", report.Forfeited).
			Int("expired", report.Expired).
			Msg("sweep finished")
	}
}
