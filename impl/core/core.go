// Package core implements the pot lifecycle engine: daily pot creation
// with its pre-generated ticket pool, race-safe ticket purchase, the
// prize draw with its refund branch, and the payout ledger.
//
// The engine owns no storage of its own; every mutation goes through
// the Store contract, whose implementations guarantee that claims,
// balance adjustments and status transitions are single atomic
// conditional updates. Multiple process instances may therefore run
// this engine against the same database.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"luckydrop/entity"
	"luckydrop/internal/config"
	"luckydrop/lib/clock"
	"luckydrop/lib/sl"
)

// Store is the storage contract of the engine. Implemented by
// internal/database (MongoDB) and internal/database/memstore.
type Store interface {
	GetUser(ctx context.Context, telegramId int64) (*entity.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*entity.User, error)
	CreateUser(ctx context.Context, user *entity.User) error
	AdjustBalance(ctx context.Context, telegramId int64, realDelta, bonusDelta float64) (*entity.User, error)
	SetUpi(ctx context.Context, telegramId int64, upiId string) error
	SetLastTicket(ctx context.Context, telegramId int64, code string, at time.Time) error
	CreditReferral(ctx context.Context, referrerId, referredId int64, bonus float64) (bool, error)
	CountUsers(ctx context.Context) (int64, error)
	TotalBalances(ctx context.Context) (real, bonus float64, err error)

	InsertPot(ctx context.Context, pot *entity.Pot) error
	PotByDate(ctx context.Context, date string) (*entity.Pot, error)
	PotById(ctx context.Context, id string) (*entity.Pot, error)
	OpenPots(ctx context.Context) ([]*entity.Pot, error)
	ClosedPots(ctx context.Context) ([]*entity.Pot, error)
	TicketCodeInUse(ctx context.Context, code string) (bool, error)
	ClaimTicket(ctx context.Context, potId string, telegramId int64, code string) error
	ClosePot(ctx context.Context, potId string) error
	RevealPot(ctx context.Context, potId string, winners []entity.Winner, prizePool float64) error

	InsertPayout(ctx context.Context, record *entity.PayoutRecord) error
	PayoutsByStatus(ctx context.Context, status entity.PayoutStatus) ([]*entity.PayoutRecord, error)
	SettlePayout(ctx context.Context, id string, status entity.PayoutStatus, at time.Time) (*entity.PayoutRecord, error)
}

// Notifier receives fire-and-forget event notifications. Implementations
// log delivery failures and never retry; the engine does not wait for
// delivery.
type Notifier interface {
	PotOpened(pot *entity.Pot)
	PotClosed(pot *entity.Pot)
	PotRevealed(pot *entity.Pot)
	PotRefunded(pot *entity.Pot)
	TicketPurchased(pot *entity.Pot, user *entity.User, code string)
	ReferralCredited(referrerId int64, referred *entity.User, bonus float64)
	PayoutPending(record *entity.PayoutRecord)
}

type Core struct {
	store    Store
	conf     config.PotConfig
	clk      clock.Clock
	notifier Notifier
	log      *slog.Logger

	// rng backs ticket selection for concurrent buyers; rand.Rand is not
	// goroutine-safe, hence the mutex.
	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(store Store, conf config.PotConfig, clk clock.Clock, log *slog.Logger) *Core {
	if store == nil {
		panic("store is nil")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Core{
		store: store,
		conf:  conf,
		clk:   clk,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		log:   log.With(sl.Module("core")),
	}
}

// SetNotifier connects the outbound notification sink; nil disables
// notifications entirely.
func (c *Core) SetNotifier(n Notifier) {
	c.notifier = n
}

// notify dispatches one notification off the calling goroutine; the
// engine never blocks on delivery.
func (c *Core) notify(fn func(Notifier)) {
	if c.notifier == nil {
		return
	}
	go fn(c.notifier)
}

// DateKey formats an instant as the calendar-day key of the configured
// timezone.
func (c *Core) DateKey(t time.Time) string {
	return t.In(c.conf.Location()).Format("2006-01-02")
}

// Window returns the default sales window of the given calendar day,
// normalized to UTC.
func (c *Core) Window(day time.Time) (start, end time.Time) {
	loc := c.conf.Location()
	local := day.In(loc)
	start = time.Date(local.Year(), local.Month(), local.Day(), c.conf.OpenHour, 0, 0, 0, loc).UTC()
	end = time.Date(local.Year(), local.Month(), local.Day(), c.conf.CloseHour, 0, 0, 0, loc).UTC()
	return start, end
}

// RevealDelay is the gap between close and automatic reveal.
func (c *Core) RevealDelay() time.Duration {
	return c.conf.RevealDelay()
}

// CurrentPot returns today's pot, if any.
func (c *Core) CurrentPot(ctx context.Context) (*entity.Pot, error) {
	return c.store.PotByDate(ctx, c.DateKey(c.clk.Now()))
}

// PotById returns a pot by its identifier.
func (c *Core) PotById(ctx context.Context, id string) (*entity.Pot, error) {
	return c.store.PotById(ctx, id)
}

// PotByDate returns a pot by its calendar-day key.
func (c *Core) PotByDate(ctx context.Context, date string) (*entity.Pot, error) {
	return c.store.PotByDate(ctx, date)
}

// OpenPots lists every pot still in OPEN state; the scheduler's startup
// recovery scan closes the overdue ones.
func (c *Core) OpenPots(ctx context.Context) ([]*entity.Pot, error) {
	return c.store.OpenPots(ctx)
}

// ClosedPots lists every pot awaiting its reveal; the scheduler reveals
// the overdue ones.
func (c *Core) ClosedPots(ctx context.Context) ([]*entity.Pot, error) {
	return c.store.ClosedPots(ctx)
}

// Stats is the admin overview report.
type Stats struct {
	Users       int64   `json:"users"`
	TotalReal   float64 `json:"total_real"`
	TotalBonus  float64 `json:"total_bonus"`
	LockedFunds float64 `json:"locked_funds"`
	PotStatus   string  `json:"pot_status"`
	PotFill     string  `json:"pot_fill"`
}

func (c *Core) Stats(ctx context.Context) (*Stats, error) {
	users, err := c.store.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	real, bonus, err := c.store.TotalBalances(ctx)
	if err != nil {
		return nil, err
	}
	stats := fmtStats(users, real, bonus)
	pot, err := c.CurrentPot(ctx)
	if err == nil {
		stats.PotStatus = string(pot.Status)
		stats.PotFill = fmt.Sprintf("%d/%d", len(pot.Participants), pot.MaxUsers)
		if pot.IsOpen() {
			stats.LockedFunds = entity.Round2(float64(len(pot.Participants)) * pot.TicketPrice)
		}
	}
	return stats, nil
}

func fmtStats(users int64, real, bonus float64) *Stats {
	return &Stats{
		Users:      users,
		TotalReal:  entity.Round2(real),
		TotalBonus: entity.Round2(bonus),
		PotStatus:  "none",
	}
}
