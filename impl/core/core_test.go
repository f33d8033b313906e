package core_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
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
		MaxUsers:           5,
		TicketPrice:        50,
		FirstPrize:         500,
		SecondPrize:        200,
		ThirdPrize:         100,
		MinParticipants:    2,
		ReferralBonus:      10,
		MaxBonusPerTicket:  30,
	}
}

// windowTime is inside the default sales window of the test config.
var windowTime = time.Date(2026, 8, 29, 17, 30, 0, 0, time.UTC)

func newEngine(t *testing.T) (*core.Core, *memstore.MemStore, *clock.Manual) {
	t.Helper()
	store := memstore.New()
	clk := clock.NewManual(windowTime)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return core.New(store, testConfig(), clk, log), store, clk
}

func fundUser(t *testing.T, engine *core.Core, id int64, name string, amount float64) {
	t.Helper()
	ctx := context.Background()
	_, _, err := engine.RegisterUser(ctx, id, name, "")
	require.NoError(t, err)
	_, err = engine.AdjustBalance(ctx, id, amount, 0)
	require.NoError(t, err)
}

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	user, created, err := engine.RegisterUser(ctx, 1, "alice", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "LUCKY1", user.ReferralCode)

	// second registration returns the stored record
	again, created, err := engine.RegisterUser(ctx, 1, "alice", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.TelegramId, again.TelegramId)
}

func TestRegisterUserResolvesReferrer(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	referrer, _, err := engine.RegisterUser(ctx, 1, "alice", "")
	require.NoError(t, err)

	referred, _, err := engine.RegisterUser(ctx, 2, "bob", referrer.ReferralCode)
	require.NoError(t, err)
	assert.Equal(t, int64(1), referred.ReferredBy)

	// unknown and self codes are ignored
	other, _, err := engine.RegisterUser(ctx, 3, "carol", "LUCKY3")
	require.NoError(t, err)
	assert.Zero(t, other.ReferredBy)

	stray, _, err := engine.RegisterUser(ctx, 4, "dave", "NOSUCH")
	require.NoError(t, err)
	assert.Zero(t, stray.ReferredBy)
}

func TestCreateDailyPot(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-29", pot.Date)
	assert.Equal(t, entity.PotOpen, pot.Status)
	assert.Len(t, pot.Tickets, 5)
	assert.Equal(t, time.Date(2026, 8, 29, 17, 0, 0, 0, time.UTC), pot.StartTime)
	assert.Equal(t, time.Date(2026, 8, 29, 19, 0, 0, 0, time.UTC), pot.EndTime)

	codes := make(map[string]bool)
	for _, ticket := range pot.Tickets {
		assert.Len(t, ticket.Code, 6)
		assert.False(t, ticket.Claimed)
		assert.False(t, codes[ticket.Code])
		codes[ticket.Code] = true
	}

	// one pot per date
	_, err = engine.CreateDailyPot(ctx)
	assert.ErrorIs(t, err, entity.ErrDuplicatePot)

	current, err := engine.CurrentPot(ctx)
	require.NoError(t, err)
	assert.Equal(t, pot.Id, current.Id)
}

func TestBuyTicket(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)
	fundUser(t, engine, 1, "alice", 100)

	// no pot yet
	_, err := engine.BuyTicket(ctx, 1)
	assert.ErrorIs(t, err, entity.ErrPotNotOpen)

	_, err = engine.CreateDailyPot(ctx)
	require.NoError(t, err)

	purchase, err := engine.BuyTicket(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, purchase.TicketCode, 6)
	assert.Equal(t, 50.0, purchase.RealPaid)
	assert.Zero(t, purchase.BonusPaid)
	assert.Equal(t, 50.0, purchase.User.RealBalance)
	assert.True(t, purchase.Pot.HasParticipant(1))

	// one ticket per user per pot
	_, err = engine.BuyTicket(ctx, 1)
	assert.ErrorIs(t, err, entity.ErrAlreadyPurchased)

	user, err := engine.User(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 50.0, user.RealBalance)
	assert.Equal(t, purchase.TicketCode, user.LastTicketCode)
}

func TestBuyTicketInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)
	fundUser(t, engine, 1, "alice", 20)

	_, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)

	_, err = engine.BuyTicket(ctx, 1)
	assert.ErrorIs(t, err, entity.ErrInsufficientFunds)

	user, err := engine.User(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 20.0, user.RealBalance)
}

func TestBuyTicketSpendsBonusFirst(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := newEngine(t)
	fundUser(t, engine, 1, "alice", 100)
	_, err := store.AdjustBalance(ctx, 1, 0, 45)
	require.NoError(t, err)

	_, err = engine.CreateDailyPot(ctx)
	require.NoError(t, err)

	purchase, err := engine.BuyTicket(ctx, 1)
	require.NoError(t, err)
	// bonus use is capped per ticket
	assert.Equal(t, 30.0, purchase.BonusPaid)
	assert.Equal(t, 20.0, purchase.RealPaid)
	assert.Equal(t, 80.0, purchase.User.RealBalance)
	assert.Equal(t, 15.0, purchase.User.BonusBalance)
}

func TestBuyTicketClosedPot(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)
	fundUser(t, engine, 1, "alice", 100)

	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)
	require.NoError(t, engine.ClosePot(ctx, pot.Id))

	_, err = engine.BuyTicket(ctx, 1)
	assert.ErrorIs(t, err, entity.ErrPotNotOpen)
}

// reloadFailStore fails pot reads from the given call on, simulating a
// storage outage that strikes after a claim has committed.
type reloadFailStore struct {
	*memstore.MemStore
	potReads int
	failFrom int
}

func (s *reloadFailStore) PotById(ctx context.Context, id string) (*entity.Pot, error) {
	s.potReads++
	if s.potReads >= s.failFrom {
		return nil, entity.ErrStorageUnavailable
	}
	return s.MemStore.PotById(ctx, id)
}

func TestBuyTicketSurvivesReloadFailure(t *testing.T) {
	ctx := context.Background()
	// BuyTicket reads the pot once inside the claim loop; the next read
	// is the post-claim reload.
	store := &reloadFailStore{MemStore: memstore.New(), failFrom: 2}
	clk := clock.NewManual(windowTime)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := core.New(store, testConfig(), clk, log)
	fundUser(t, engine, 1, "alice", 100)

	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)

	purchase, err := engine.BuyTicket(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, purchase)
	assert.Len(t, purchase.TicketCode, 6)
	assert.Equal(t, pot.Id, purchase.Pot.Id)

	// The claim and the debit both stand.
	stored, err := store.MemStore.PotById(ctx, pot.Id)
	require.NoError(t, err)
	assert.True(t, stored.HasParticipant(1))
	user, err := engine.User(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 50.0, user.Balance())
}

func TestConcurrentBuyersFillThePot(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	const buyers = 12 // more than the five slots
	for i := 1; i <= buyers; i++ {
		fundUser(t, engine, int64(i), "", 100)
	}
	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = engine.BuyTicket(ctx, int64(i+1))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range results {
		if err == nil {
			won++
		}
	}
	assert.Equal(t, 5, won)

	final, err := engine.PotById(ctx, pot.Id)
	require.NoError(t, err)
	require.Len(t, final.Participants, 5)

	// every sold code is unique and every loser kept their money
	codes := make(map[string]bool)
	for _, p := range final.Participants {
		assert.False(t, codes[p.TicketCode])
		codes[p.TicketCode] = true
	}
	for i := 0; i < buyers; i++ {
		user, err := engine.User(ctx, int64(i+1))
		require.NoError(t, err)
		if final.HasParticipant(int64(i + 1)) {
			assert.Equal(t, 50.0, user.RealBalance)
		} else {
			assert.Equal(t, 100.0, user.RealBalance)
		}
	}
}

func TestClosePotIdempotent(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)

	require.NoError(t, engine.ClosePot(ctx, pot.Id))
	assert.ErrorIs(t, engine.ClosePot(ctx, pot.Id), entity.ErrAlreadyClosed)

	// reveal before close is refused
	fresh, err := engine.PotById(ctx, pot.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.PotClosed, fresh.Status)
}

func TestRevealRequiresClosedPot(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, engine.RevealPot(ctx, pot.Id), entity.ErrPotStillOpen)
}

func TestRevealRefundsBelowMinimum(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)
	fundUser(t, engine, 1, "alice", 100)

	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)
	_, err = engine.BuyTicket(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, engine.ClosePot(ctx, pot.Id))
	require.NoError(t, engine.RevealPot(ctx, pot.Id))

	final, err := engine.PotById(ctx, pot.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.PotRevealed, final.Status)
	assert.Empty(t, final.Winners)
	assert.Zero(t, final.PrizePool)

	// the ticket price came back to the real balance
	user, err := engine.User(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, user.RealBalance)

	pending, err := engine.PendingPayouts(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRevealAwardsScaledPrizes(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)
	for i := int64(1); i <= 3; i++ {
		fundUser(t, engine, i, "", 100)
		require.NoError(t, engine.SetUpi(ctx, i, "winner@upi"))
		_, err = engine.BuyTicket(ctx, i)
		require.NoError(t, err)
	}

	require.NoError(t, engine.ClosePot(ctx, pot.Id))
	require.NoError(t, engine.RevealPot(ctx, pot.Id))

	final, err := engine.PotById(ctx, pot.Id)
	require.NoError(t, err)
	require.Len(t, final.Winners, 3)
	// three of five slots sold: amounts scale by 0.6
	assert.Equal(t, 300.0, final.Winners[0].Prize)
	assert.Equal(t, 120.0, final.Winners[1].Prize)
	assert.Equal(t, 60.0, final.Winners[2].Prize)
	assert.Equal(t, 480.0, final.PrizePool)

	pending, err := engine.PendingPayouts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	byId := make(map[string]*entity.PayoutRecord)
	for _, record := range pending {
		byId[record.Id] = record
		assert.Equal(t, "winner@upi", record.UpiId)
		assert.Equal(t, pot.Id, record.PotId)
	}
	// payout ids are derived from the pot and rank
	assert.Contains(t, byId, pot.Id+"-1st")
	assert.Contains(t, byId, pot.Id+"-2nd")
	assert.Contains(t, byId, pot.Id+"-3rd")

	// winners never receive balance directly; disbursement is external
	for i := int64(1); i <= 3; i++ {
		user, err := engine.User(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, 50.0, user.RealBalance)
	}
}

func TestRevealIdempotent(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)
	for i := int64(1); i <= 2; i++ {
		fundUser(t, engine, i, "", 100)
		_, err = engine.BuyTicket(ctx, i)
		require.NoError(t, err)
	}
	require.NoError(t, engine.ClosePot(ctx, pot.Id))
	require.NoError(t, engine.RevealPot(ctx, pot.Id))

	assert.ErrorIs(t, engine.RevealPot(ctx, pot.Id), entity.ErrAlreadyRevealed)

	pending, err := engine.PendingPayouts(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestReferralBonusOnFirstTicketOnly(t *testing.T) {
	ctx := context.Background()
	engine, _, clk := newEngine(t)

	fundUser(t, engine, 1, "alice", 0)
	_, _, err := engine.RegisterUser(ctx, 2, "bob", "LUCKY1")
	require.NoError(t, err)
	_, err = engine.AdjustBalance(ctx, 2, 200, 0)
	require.NoError(t, err)

	_, err = engine.CreateDailyPot(ctx)
	require.NoError(t, err)
	_, err = engine.BuyTicket(ctx, 2)
	require.NoError(t, err)

	referrer, err := engine.User(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, referrer.BonusBalance)
	assert.Equal(t, 1, referrer.ReferralCount)

	// the next day's purchase pays nothing again
	clk.Advance(24 * time.Hour)
	_, err = engine.CreateDailyPot(ctx)
	require.NoError(t, err)
	_, err = engine.BuyTicket(ctx, 2)
	require.NoError(t, err)

	referrer, err = engine.User(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, referrer.BonusBalance)
	assert.Equal(t, 1, referrer.ReferralCount)
}

func TestSettlePayout(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	pot, err := engine.CreateDailyPot(ctx)
	require.NoError(t, err)
	for i := int64(1); i <= 2; i++ {
		fundUser(t, engine, i, "", 100)
		_, err = engine.BuyTicket(ctx, i)
		require.NoError(t, err)
	}
	require.NoError(t, engine.ClosePot(ctx, pot.Id))
	require.NoError(t, engine.RevealPot(ctx, pot.Id))

	record, err := engine.SettlePayout(ctx, pot.Id+"-1st", entity.PayoutPaid)
	require.NoError(t, err)
	assert.Equal(t, entity.PayoutPaid, record.Status)
	assert.False(t, record.ProcessedAt.IsZero())

	_, err = engine.SettlePayout(ctx, pot.Id+"-1st", entity.PayoutFailed)
	assert.ErrorIs(t, err, entity.ErrPayoutSettled)

	_, err = engine.SettlePayout(ctx, "missing", entity.PayoutPaid)
	assert.ErrorIs(t, err, entity.ErrPayoutNotFound)

	pending, err := engine.PendingPayouts(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)
	fundUser(t, engine, 1, "alice", 100)
	fundUser(t, engine, 2, "bob", 30)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Users)
	assert.Equal(t, 130.0, stats.TotalReal)
	assert.Equal(t, "none", stats.PotStatus)

	_, err = engine.CreateDailyPot(ctx)
	require.NoError(t, err)
	_, err = engine.BuyTicket(ctx, 1)
	require.NoError(t, err)

	stats, err = engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "open", stats.PotStatus)
	assert.Equal(t, "1/5", stats.PotFill)
	assert.Equal(t, 50.0, stats.LockedFunds)
}
