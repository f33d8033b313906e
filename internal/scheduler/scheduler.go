// Package scheduler drives pot lifecycle transitions off the wall
// clock: open at window start, close at window end, reveal after the
// configured delay, then wait for the next day.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"luckydrop/entity"
	"luckydrop/lib/clock"
	"luckydrop/lib/sl"
)

// Engine is the slice of the core the scheduler drives. Every
// transition it invokes is idempotent, so racing a concurrent operator
// override is harmless.
type Engine interface {
	CurrentPot(ctx context.Context) (*entity.Pot, error)
	CreateDailyPot(ctx context.Context) (*entity.Pot, error)
	ClosePot(ctx context.Context, potId string) error
	RevealPot(ctx context.Context, potId string) error
	OpenPots(ctx context.Context) ([]*entity.Pot, error)
	ClosedPots(ctx context.Context) ([]*entity.Pot, error)
	Window(day time.Time) (start, end time.Time)
	RevealDelay() time.Duration
}

// maxSleep caps the poll interval: however far the next boundary is,
// the loop re-evaluates at least once per minute.
const maxSleep = time.Minute

const minSleep = time.Second

type Scheduler struct {
	engine Engine
	clk    clock.Clock
	log    *slog.Logger
}

func New(engine Engine, clk clock.Clock, log *slog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.System()
	}
	return &Scheduler{
		engine: engine,
		clk:    clk,
		log:    log.With(sl.Module("scheduler")),
	}
}

// Run executes the recovery scan and then the polling loop until the
// context is cancelled. Transitions are single atomic writes, so
// cancellation mid-iteration cannot leave a pot half-transitioned; the
// next startup's recovery scan completes anything missed.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Recover(ctx)
	s.log.Info("scheduler started")

	for {
		next := s.tick(ctx)

		sleep := next.Sub(s.clk.Now())
		if sleep > maxSleep {
			sleep = maxSleep
		}
		if sleep < minSleep {
			sleep = minSleep
		}
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-s.clk.After(sleep):
		}
	}
}

// Recover completes any transition a crash left behind: pots still OPEN
// past their end time are closed, and pots still CLOSED past their
// reveal boundary are revealed, whatever day they belong to. A pot
// closed here falls through to the reveal pass when its boundary has
// also passed, so money never stays locked across an outage.
func (s *Scheduler) Recover(ctx context.Context) {
	now := s.clk.Now()

	pots, err := s.engine.OpenPots(ctx)
	if err != nil {
		s.log.With(sl.Err(err)).Error("recovery scan")
		return
	}
	for _, pot := range pots {
		if now.Before(pot.EndTime) {
			continue
		}
		s.log.With(
			sl.Pot(pot.Id),
			slog.String("date", pot.Date),
			slog.Time("end_time", pot.EndTime),
		).Warn("closing overdue pot")
		if err = s.engine.ClosePot(ctx, pot.Id); err != nil && !transitionDone(err) {
			s.log.With(sl.Pot(pot.Id), sl.Err(err)).Error("recovery close")
		}
	}

	s.revealOverdue(ctx, now)
}

// revealOverdue reveals every CLOSED pot whose reveal boundary has
// passed. CurrentPot only resolves today's date key, so a pot stranded
// from a previous day is only reachable through this scan.
func (s *Scheduler) revealOverdue(ctx context.Context, now time.Time) {
	pots, err := s.engine.ClosedPots(ctx)
	if err != nil {
		s.log.With(sl.Err(err)).Error("closed pots scan")
		return
	}
	for _, pot := range pots {
		if now.Before(pot.EndTime.Add(s.engine.RevealDelay())) {
			continue
		}
		if err = s.engine.RevealPot(ctx, pot.Id); err != nil && !transitionDone(err) {
			s.log.With(sl.Pot(pot.Id), sl.Err(err)).Error("overdue reveal")
		}
	}
}

// tick inspects the current pot, applies any due transition, and
// returns the instant of the next scheduled boundary.
func (s *Scheduler) tick(ctx context.Context) time.Time {
	now := s.clk.Now()
	windowStart, windowEnd := s.engine.Window(now)

	// Sweep before inspecting today's pot: an operator close near
	// midnight can leave yesterday's pot CLOSED where CurrentPot no
	// longer sees it.
	s.revealOverdue(ctx, now)

	pot, err := s.engine.CurrentPot(ctx)
	if errors.Is(err, entity.ErrPotNotFound) {
		if now.Before(windowStart) {
			return windowStart
		}
		if now.Before(windowEnd) {
			if _, err = s.engine.CreateDailyPot(ctx); err != nil && !errors.Is(err, entity.ErrDuplicatePot) {
				s.log.With(sl.Err(err)).Error("create daily pot")
				return now.Add(maxSleep)
			}
			return windowEnd
		}
		// Past today's window with no pot; wait for tomorrow.
		nextStart, _ := s.engine.Window(now.Add(24 * time.Hour))
		return nextStart
	}
	if err != nil {
		// StorageUnavailable and friends: fatal to this tick only.
		s.log.With(sl.Err(err)).Error("inspect current pot")
		return now.Add(maxSleep)
	}

	switch pot.Status {
	case entity.PotOpen:
		if now.Before(pot.EndTime) {
			return pot.EndTime
		}
		if err = s.engine.ClosePot(ctx, pot.Id); err != nil && !transitionDone(err) {
			s.log.With(sl.Pot(pot.Id), sl.Err(err)).Error("close pot")
			return now.Add(maxSleep)
		}
		return pot.EndTime.Add(s.engine.RevealDelay())

	case entity.PotClosed:
		revealAt := pot.EndTime.Add(s.engine.RevealDelay())
		if now.Before(revealAt) {
			return revealAt
		}
		if err = s.engine.RevealPot(ctx, pot.Id); err != nil && !transitionDone(err) {
			s.log.With(sl.Pot(pot.Id), sl.Err(err)).Error("reveal pot")
			return now.Add(maxSleep)
		}
		nextStart, _ := s.engine.Window(now.Add(24 * time.Hour))
		return nextStart

	default: // revealed
		nextStart, _ := s.engine.Window(now.Add(24 * time.Hour))
		return nextStart
	}
}

// transitionDone recognizes the idempotent no-op outcomes: another
// caller already performed the transition, which counts as success here.
func transitionDone(err error) bool {
	return errors.Is(err, entity.ErrAlreadyClosed) || errors.Is(err, entity.ErrAlreadyRevealed)
}
