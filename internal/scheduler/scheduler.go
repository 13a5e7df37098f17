package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/storefront/internal/clock"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler runs the periodic maintenance jobs, chiefly the sweep that
// cancels pending orders whose payment window has lapsed.
type Scheduler struct {
	cfg    Config
	log    *zap.Logger
	clock  clock.Clock
	orders orderdomain.Service
	locker *ratelimit.Locker
}

type Params struct {
	fx.In

	Config Config
	Log    *zap.Logger
	Clock  clock.Clock
	Orders orderdomain.Service
	Locker *ratelimit.Locker `optional:"true"`
}

func New(p Params) *Scheduler {
	return &Scheduler{
		cfg:    p.Config.withDefaults(),
		log:    p.Log.Named("scheduler"),
		clock:  p.Clock,
		orders: p.Orders,
		locker: p.Locker,
	}
}

// RunOnce executes every enabled job a single time.
func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"expire_orders", s.ExpireOrdersJob},
	}

	var err error
	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

// RunForever runs RunOnce on a fixed interval until ctx is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ExpireOrdersJob cancels pending orders older than the payment window
// and returns their reservations to stock.
func (s *Scheduler) ExpireOrdersJob(ctx context.Context) error {
	swept, err := s.orders.ExpireStale(ctx)
	if swept > 0 {
		s.log.Info("scheduler.orders.expired", zap.Int("swept", swept))
	}
	return err
}

// runJob wraps a job with a deadline and, when redis is configured, an
// advisory lock so overlapping instances do not sweep concurrently.
func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	if s.locker != nil {
		lease, err := s.locker.TryLock(ctx, "scheduler:"+name, timeout)
		if err != nil {
			s.log.Warn("scheduler.lock.failed", zap.String("job", name), zap.Error(err))
		} else if lease == nil {
			s.log.Debug("scheduler.job.skipped", zap.String("job", name))
			return nil
		} else {
			defer func() {
				if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
					s.log.Warn("scheduler.lock.release_failed", zap.String("job", name), zap.Error(err))
				}
			}()
		}
	}

	started := s.clock.Now()
	err := fn(ctx)
	elapsed := s.clock.Now().Sub(started)

	fields := []zap.Field{
		zap.String("job", name),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if err != nil {
		s.log.Error("scheduler.job.failed", append(fields, zap.Error(err))...)
		return err
	}
	s.log.Debug("scheduler.job.finished", fields...)
	return nil
}

func (s *Scheduler) isJobEnabled(name string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, name) {
			return true
		}
	}
	return false
}
