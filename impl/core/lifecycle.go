package core

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"luckydrop/entity"
	"luckydrop/internal/prize"
	"luckydrop/internal/tickets"
	"luckydrop/lib/sl"
)

// CreateDailyPot opens the pot for "today" with the configured defaults.
// Called by the scheduler at window start.
func (c *Core) CreateDailyPot(ctx context.Context) (*entity.Pot, error) {
	now := c.clk.Now()
	start, end := c.Window(now)
	return c.CreatePot(ctx, c.DateKey(now), c.conf.MaxUsers, c.conf.TicketPrice, start, end)
}

// CreateTodayPot opens today's pot with operator-supplied overrides.
func (c *Core) CreateTodayPot(ctx context.Context, maxUsers int, ticketPrice float64) (*entity.Pot, error) {
	now := c.clk.Now()
	start, end := c.Window(now)
	return c.CreatePot(ctx, c.DateKey(now), maxUsers, ticketPrice, start, end)
}

// CreatePot creates a pot and its full ticket pool as one logical unit:
// the pool is embedded in the pot document, so either both exist or
// neither does. A duplicate date fails with DuplicatePot.
func (c *Core) CreatePot(ctx context.Context, date string, maxUsers int, ticketPrice float64, start, end time.Time) (*entity.Pot, error) {
	rng := rand.New(rand.NewSource(c.clk.Now().UnixNano()))
	codes, err := tickets.Generate(ctx, maxUsers, c.store, rng)
	if err != nil {
		return nil, fmt.Errorf("ticket pool: %w", err)
	}

	pool := make([]entity.Ticket, len(codes))
	for i, code := range codes {
		pool[i] = entity.Ticket{Code: code}
	}
	pot := &entity.Pot{
		Id:           uuid.NewString(),
		Date:         date,
		StartTime:    start,
		EndTime:      end,
		MaxUsers:     maxUsers,
		TicketPrice:  ticketPrice,
		Status:       entity.PotOpen,
		Tickets:      pool,
		Participants: []entity.Participant{},
		Winners:      []entity.Winner{},
	}
	if err = c.store.InsertPot(ctx, pot); err != nil {
		return nil, err
	}
	c.log.With(
		sl.Pot(pot.Id),
		slog.String("date", date),
		slog.Int("max_users", maxUsers),
		slog.Float64("ticket_price", ticketPrice),
	).Info("pot created")

	c.notify(func(n Notifier) { n.PotOpened(pot) })
	return pot, nil
}

// ClosePot transitions the pot out of its sales window. Safe to invoke
// concurrently from the scheduler and an operator: a pot that is
// already past OPEN reports AlreadyClosed/AlreadyRevealed and nothing
// else happens.
func (c *Core) ClosePot(ctx context.Context, potId string) error {
	if err := c.store.ClosePot(ctx, potId); err != nil {
		return err
	}
	c.log.With(sl.Pot(potId)).Info("pot closed")

	pot, err := c.store.PotById(ctx, potId)
	if err == nil {
		c.notify(func(n Notifier) { n.PotClosed(pot) })
	}
	return nil
}

// RevealPot computes and publishes winners for a CLOSED pot.
//
// The draw is seeded from the pot's identity and participant sequence,
// so a reveal interrupted between its side effects and the final status
// transition recomputes the identical winners on retry; the status
// transition itself is the idempotence marker that stops a second full
// run. Refund credits and payout records are therefore at-least-once,
// the winner set exactly-once.
func (c *Core) RevealPot(ctx context.Context, potId string) error {
	pot, err := c.store.PotById(ctx, potId)
	if err != nil {
		return err
	}
	if err = entity.RevealDenied(pot.Status); err != nil {
		return err
	}

	table := prize.Table{
		First:           c.conf.FirstPrize,
		Second:          c.conf.SecondPrize,
		Third:           c.conf.ThirdPrize,
		FullPotSize:     c.conf.MaxUsers,
		MinParticipants: c.conf.MinParticipants,
	}
	rng := rand.New(rand.NewSource(drawSeed(pot)))
	result := prize.Compute(pot.Participants, table, rng)

	if result.Refund {
		return c.refundPot(ctx, pot)
	}
	return c.awardPot(ctx, pot, result)
}

// refundPot returns every participant's ticket price to their real
// balance; no winners are drawn.
func (c *Core) refundPot(ctx context.Context, pot *entity.Pot) error {
	for _, participant := range pot.Participants {
		_, err := c.store.AdjustBalance(ctx, participant.TelegramId, pot.TicketPrice, 0)
		if err != nil {
			return fmt.Errorf("refund user %d: %w", participant.TelegramId, err)
		}
	}
	if err := c.store.RevealPot(ctx, pot.Id, nil, 0); err != nil {
		return err
	}
	c.log.With(
		sl.Pot(pot.Id),
		slog.Int("participants", len(pot.Participants)),
	).Info("pot refunded")

	pot.Status = entity.PotRevealed
	c.notify(func(n Notifier) { n.PotRefunded(pot) })
	return nil
}

// awardPot writes one PENDING payout record per winner with the user's
// currently registered payout destination, then publishes the result.
// Winners are not credited directly; disbursement is external.
func (c *Core) awardPot(ctx context.Context, pot *entity.Pot, result prize.Result) error {
	now := c.clk.Now().UTC()
	records := make([]*entity.PayoutRecord, 0, len(result.Winners))
	for i := range result.Winners {
		winner := &result.Winners[i]
		if user, err := c.store.GetUser(ctx, winner.TelegramId); err == nil {
			winner.UpiId = user.UpiId
		}
		records = append(records, &entity.PayoutRecord{
			// Deterministic id: a reveal retry upserts, not duplicates.
			Id:         fmt.Sprintf("%s-%s", pot.Id, winner.Rank),
			TelegramId: winner.TelegramId,
			PotId:      pot.Id,
			PotDate:    pot.Date,
			Rank:       winner.Rank,
			Amount:     winner.Prize,
			UpiId:      winner.UpiId,
			Status:     entity.PayoutPending,
			CreatedAt:  now,
		})
	}
	for _, record := range records {
		if err := c.store.InsertPayout(ctx, record); err != nil {
			return fmt.Errorf("payout record %s: %w", record.Id, err)
		}
	}

	if err := c.store.RevealPot(ctx, pot.Id, result.Winners, result.PrizePool); err != nil {
		if errors.Is(err, entity.ErrAlreadyRevealed) {
			// Lost the reveal race after writing identical records.
			return entity.ErrAlreadyRevealed
		}
		return err
	}
	c.log.With(
		sl.Pot(pot.Id),
		slog.Int("winners", len(result.Winners)),
		slog.Float64("prize_pool", result.PrizePool),
	).Info("pot revealed")

	pot.Status = entity.PotRevealed
	pot.Winners = result.Winners
	pot.PrizePool = result.PrizePool
	c.notify(func(n Notifier) { n.PotRevealed(pot) })
	for _, record := range records {
		rec := record
		c.notify(func(n Notifier) { n.PayoutPending(rec) })
	}
	return nil
}

// drawSeed derives the shuffle seed from the pot identity and its
// participant sequence. Fixed inputs reproduce the draw exactly, which
// keeps an interrupted reveal one-shot fair across retries.
func drawSeed(pot *entity.Pot) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(pot.Id))
	for _, p := range pot.Participants {
		_, _ = h.Write([]byte(p.TicketCode))
	}
	return int64(h.Sum64())
}
