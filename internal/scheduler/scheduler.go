package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/ppdb-chunks/internal/promote"
)

// Promoter выполняет один запуск промоушена.
type Promoter interface {
	Promote(ctx context.Context, dryRun bool) (*promote.Result, error)
}

// Scheduler запускает промоушен по cron-расписанию.
type Scheduler struct {
	promoter Promoter
	locker   Locker
	logger   *slog.Logger
	spec     string
	loc      *time.Location
}

// Config — конфигурация Scheduler.
type Config struct {
	Promoter Promoter
	Locker   Locker // опционально: без него каждый экземпляр — лидер
	Logger   *slog.Logger
	Spec     string // default: DefaultSpec
	Timezone string // default: DefaultTimezone
}

// New создаёт Scheduler.
func New(cfg Config) (*Scheduler, error) {
	spec := cfg.Spec
	if spec == "" {
		spec = DefaultSpec
	}
	if err := ValidateCronExpr(spec); err != nil {
		return nil, err
	}

	tz := cfg.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := LoadLocation(tz)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		promoter: cfg.Promoter,
		locker:   cfg.Locker,
		logger:   cfg.Logger.With("component", "scheduler", "cron", spec, "timezone", tz),
		spec:     spec,
		loc:      loc,
	}, nil
}

// Run блокирует до отмены ctx, вызывая Tick по расписанию.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.spec, func() {
		if err := s.Tick(ctx); err != nil {
			s.logger.Error("scheduled promotion failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}

	if next, err := NextRun(s.spec, s.loc, time.Now()); err == nil {
		s.logger.Info("scheduler started", "next_run", next)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	if s.locker != nil {
		if err := s.locker.Unlock(context.Background()); err != nil {
			s.logger.Warn("failed to release leader lock", "error", err)
		}
	}
	return ctx.Err()
}

// Tick выполняет один запуск, если процесс — лидер.
func (s *Scheduler) Tick(ctx context.Context) error {
	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx)
		if err != nil {
			return fmt.Errorf("leader election: %w", err)
		}
		if !ok {
			s.logger.Debug("not a leader, skipping tick")
			return nil
		}
	}

	res, err := s.promoter.Promote(ctx, false)
	switch {
	case errors.Is(err, promote.ErrNoPromotableChunks):
		s.logger.Info("no promotable chunks found")
		return nil
	case err != nil:
		return err
	}

	s.logger.Info("scheduler tick completed", "chunks_promoted", res.Promoted)
	return nil
}
