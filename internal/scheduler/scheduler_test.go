package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luckydrop/entity"
	"luckydrop/impl/core"
	"luckydrop/internal/config"
	"luckydrop/internal/database/memstore"
	"luckydrop/lib/clock"
)

func testConfig() config.PotConfig {
	return config.PotConfig{
		Timezone:           "UTC",
		OpenHour:           17,
		CloseHour:          19,
		RevealDelayMinutes: 10,
		MaxUsers:           3,
		TicketPrice:        50,
		FirstPrize:         500,
		SecondPrize:        200,
		ThirdPrize:         100,
		MinParticipants:    2,
	}
}

func newScheduler(t *testing.T, start time.Time) (*Scheduler, *core.Core, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(start)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := core.New(memstore.New(), testConfig(), clk, log)
	return New(engine, clk, log), engine, clk
}

func TestTickWalksThePotThroughItsDay(t *testing.T) {
	ctx := context.Background()
	morning := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	s, engine, clk := newScheduler(t, morning)

	// Before the window: nothing to do until it opens.
	next := s.tick(ctx)
	assert.Equal(t, time.Date(2026, 8, 29, 17, 0, 0, 0, time.UTC), next)
	_, err := engine.CurrentPot(ctx)
	assert.ErrorIs(t, err, entity.ErrPotNotFound)

	// Inside the window: the pot appears, next stop is the close.
	clk.Advance(7*time.Hour + 30*time.Minute)
	next = s.tick(ctx)
	assert.Equal(t, time.Date(2026, 8, 29, 19, 0, 0, 0, time.UTC), next)
	pot, err := engine.CurrentPot(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.PotOpen, pot.Status)

	// While open and not yet due, the tick is a no-op.
	next = s.tick(ctx)
	assert.Equal(t, pot.EndTime, next)

	// Past the end time: close, then wait out the reveal delay.
	clk.Advance(2 * time.Hour)
	next = s.tick(ctx)
	assert.Equal(t, pot.EndTime.Add(10*time.Minute), next)
	pot, err = engine.CurrentPot(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.PotClosed, pot.Status)

	// Past the reveal instant: reveal and park until tomorrow's window.
	next = s.tick(ctx)
	assert.Equal(t, time.Date(2026, 8, 30, 17, 0, 0, 0, time.UTC), next)
	pot, err = engine.CurrentPot(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.PotRevealed, pot.Status)

	// Revealed pots leave nothing to do today.
	next = s.tick(ctx)
	assert.Equal(t, time.Date(2026, 8, 30, 17, 0, 0, 0, time.UTC), next)
}

func TestTickSkipsMissedWindow(t *testing.T) {
	ctx := context.Background()
	lateEvening := time.Date(2026, 8, 29, 22, 0, 0, 0, time.UTC)
	s, engine, _ := newScheduler(t, lateEvening)

	// The whole window was missed; no pot is opened retroactively.
	next := s.tick(ctx)
	assert.Equal(t, time.Date(2026, 8, 30, 17, 0, 0, 0, time.UTC), next)
	_, err := engine.CurrentPot(ctx)
	assert.ErrorIs(t, err, entity.ErrPotNotFound)
}

func TestRecoverClosesOverduePot(t *testing.T) {
	ctx := context.Background()
	inWindow := time.Date(2026, 8, 29, 17, 30, 0, 0, time.UTC)
	s, engine, clk := newScheduler(t, inWindow)

	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)

	// Simulate a crash across the close boundary, restarting before the
	// reveal is due.
	clk.Advance(95 * time.Minute)
	s.Recover(ctx)

	recovered, err := engine.PotById(ctx, pot.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.PotClosed, recovered.Status)
}

// buyTickets registers and funds users and has each buy one ticket.
func buyTickets(t *testing.T, engine *core.Core, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		id := int64(1000 + i)
		_, _, err := engine.RegisterUser(ctx, id, "player", "")
		require.NoError(t, err)
		_, err = engine.AdjustBalance(ctx, id, 50, 0)
		require.NoError(t, err)
		_, err = engine.BuyTicket(ctx, id)
		require.NoError(t, err)
	}
}

func TestRecoverRevealsStrandedClosedPot(t *testing.T) {
	ctx := context.Background()
	inWindow := time.Date(2026, 8, 29, 17, 30, 0, 0, time.UTC)
	s, engine, clk := newScheduler(t, inWindow)

	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)
	buyTickets(t, engine, 2)
	require.NoError(t, engine.ClosePot(ctx, pot.Id))

	// Crash while CLOSED; restart the next morning, when CurrentPot no
	// longer resolves this pot.
	clk.Advance(15 * time.Hour)
	s.Recover(ctx)

	recovered, err := engine.PotById(ctx, pot.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.PotRevealed, recovered.Status)

	payouts, err := engine.PendingPayouts(ctx)
	require.NoError(t, err)
	assert.Len(t, payouts, 2)
}

func TestRecoverClosesAndRevealsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	inWindow := time.Date(2026, 8, 29, 17, 30, 0, 0, time.UTC)
	s, engine, clk := newScheduler(t, inWindow)

	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)
	buyTickets(t, engine, 2)

	// Crash while still OPEN; the restart lands past both boundaries, so
	// a single scan must carry the pot all the way to REVEALED.
	clk.Advance(15 * time.Hour)
	s.Recover(ctx)

	recovered, err := engine.PotById(ctx, pot.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.PotRevealed, recovered.Status)
}

func TestTickRevealsPreviousDaysPot(t *testing.T) {
	ctx := context.Background()
	inWindow := time.Date(2026, 8, 29, 17, 30, 0, 0, time.UTC)
	s, engine, clk := newScheduler(t, inWindow)

	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)
	buyTickets(t, engine, 2)
	require.NoError(t, engine.ClosePot(ctx, pot.Id))

	// The process keeps running into the next day without revealing;
	// the tick must still find yesterday's pot.
	clk.Advance(15 * time.Hour)
	next := s.tick(ctx)
	assert.Equal(t, time.Date(2026, 8, 30, 17, 0, 0, 0, time.UTC), next)

	recovered, err := engine.PotById(ctx, pot.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.PotRevealed, recovered.Status)
}

func TestRecoverLeavesCurrentPotAlone(t *testing.T) {
	ctx := context.Background()
	inWindow := time.Date(2026, 8, 29, 17, 30, 0, 0, time.UTC)
	s, engine, _ := newScheduler(t, inWindow)

	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)

	s.Recover(ctx)

	fresh, err := engine.PotById(ctx, pot.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.PotOpen, fresh.Status)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	morning := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	s, _, _ := newScheduler(t, morning)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))
}
