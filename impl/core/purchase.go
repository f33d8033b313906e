package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"luckydrop/entity"
	"luckydrop/lib/sl"
)

// claimRetries bounds how many alternative codes a single purchase tries
// when racing other buyers for the same slots.
const claimRetries = 5

// RegisterUser creates the user on first interaction. refCode optionally
// names the referrer; self-referrals and unknown codes are ignored.
// Returns the stored user and whether it was newly created.
func (c *Core) RegisterUser(ctx context.Context, telegramId int64, username, refCode string) (*entity.User, bool, error) {
	if user, err := c.store.GetUser(ctx, telegramId); err == nil {
		return user, false, nil
	} else if !errors.Is(err, entity.ErrUserNotFound) {
		return nil, false, err
	}

	var referrerId int64
	if refCode != "" {
		referrer, err := c.store.GetUserByReferralCode(ctx, refCode)
		if err == nil && referrer.TelegramId != telegramId {
			referrerId = referrer.TelegramId
		}
	}

	user := entity.NewUser(telegramId, username, referrerId)
	if err := c.store.CreateUser(ctx, user); err != nil {
		return nil, false, err
	}
	c.log.With(sl.User(telegramId)).Info("user registered")
	return user, true, nil
}

// User returns the stored user record.
func (c *Core) User(ctx context.Context, telegramId int64) (*entity.User, error) {
	return c.store.GetUser(ctx, telegramId)
}

// SetUpi stores the user's payout destination.
func (c *Core) SetUpi(ctx context.Context, telegramId int64, upiId string) error {
	return c.store.SetUpi(ctx, telegramId, upiId)
}

// AdjustBalance applies a manual operator credit or debit.
func (c *Core) AdjustBalance(ctx context.Context, telegramId int64, realDelta, bonusDelta float64) (*entity.User, error) {
	return c.store.AdjustBalance(ctx, telegramId, realDelta, bonusDelta)
}

// Purchase is the result of a successful ticket buy.
type Purchase struct {
	Pot        *entity.Pot
	TicketCode string
	RealPaid   float64
	BonusPaid  float64
	User       *entity.User
}

// BuyTicket acquires one ticket in today's pot for the user: splits the
// price across bonus and real balance, debits atomically, then claims a
// random available code. A claim lost to a concurrent buyer retries
// with another code; any terminal claim failure refunds the debit.
func (c *Core) BuyTicket(ctx context.Context, telegramId int64) (*Purchase, error) {
	user, err := c.store.GetUser(ctx, telegramId)
	if err != nil {
		return nil, err
	}

	pot, err := c.CurrentPot(ctx)
	if errors.Is(err, entity.ErrPotNotFound) {
		return nil, entity.ErrPotNotOpen
	}
	if err != nil {
		return nil, err
	}
	if !pot.IsOpen() {
		return nil, entity.ErrPotNotOpen
	}
	if pot.HasParticipant(telegramId) {
		return nil, entity.ErrAlreadyPurchased
	}

	realPart, bonusPart := user.SplitPrice(pot.TicketPrice, c.conf.MaxBonusPerTicket)
	user, err = c.store.AdjustBalance(ctx, telegramId, -realPart, -bonusPart)
	if err != nil {
		return nil, err
	}

	code, err := c.claimAny(ctx, pot, telegramId)
	if err != nil {
		// Undo the debit; the claim never happened.
		if _, refundErr := c.store.AdjustBalance(ctx, telegramId, realPart, bonusPart); refundErr != nil {
			c.log.With(sl.User(telegramId), sl.Err(refundErr)).Error("refund after failed claim")
		}
		return nil, err
	}

	if err = c.store.SetLastTicket(ctx, telegramId, code, c.clk.Now().UTC()); err != nil {
		c.log.With(sl.User(telegramId), sl.Err(err)).Warn("record last ticket")
	}

	c.creditReferrer(ctx, user)

	// The claim is committed at this point; a failed reload downgrades
	// the response to the pre-claim snapshot instead of failing the
	// purchase.
	if fresh, freshErr := c.store.PotById(ctx, pot.Id); freshErr == nil {
		pot = fresh
	} else {
		c.log.With(sl.Pot(pot.Id), sl.Err(freshErr)).Warn("reload pot after claim")
	}
	c.log.With(
		sl.User(telegramId),
		sl.Pot(pot.Id),
		slog.String("code", code),
		slog.Int("sold", len(pot.Participants)),
	).Info("ticket purchased")

	purchase := &Purchase{
		Pot:        pot,
		TicketCode: code,
		RealPaid:   realPart,
		BonusPaid:  bonusPart,
		User:       user,
	}
	c.notify(func(n Notifier) { n.TicketPurchased(pot, user, code) })
	return purchase, nil
}

// claimAny picks random available codes and races for them until one
// claim wins. Only AlreadySold is retried; every other outcome is
// terminal for this purchase.
func (c *Core) claimAny(ctx context.Context, pot *entity.Pot, telegramId int64) (string, error) {
	for attempt := 0; attempt < claimRetries; attempt++ {
		fresh, err := c.store.PotById(ctx, pot.Id)
		if err != nil {
			return "", err
		}
		available := fresh.AvailableCodes()
		if len(available) == 0 {
			return "", entity.ErrPotFull
		}
		code := available[c.pickIndex(len(available))]

		err = c.store.ClaimTicket(ctx, pot.Id, telegramId, code)
		if err == nil {
			return code, nil
		}
		if errors.Is(err, entity.ErrAlreadySold) {
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("claim contention: %w", entity.ErrAlreadySold)
}

// pickIndex spreads concurrent buyers across the pool to keep claim
// collisions rare.
func (c *Core) pickIndex(n int) int {
	if n <= 1 {
		return 0
	}
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Intn(n)
}

// creditReferrer pays the referral bonus on the referred user's first
// ticket. The store call is atomic and idempotent per pair, so a repeat
// purchase or a concurrent duplicate never double-credits.
func (c *Core) creditReferrer(ctx context.Context, user *entity.User) {
	if user.ReferredBy == 0 {
		return
	}
	credited, err := c.store.CreditReferral(ctx, user.ReferredBy, user.TelegramId, c.conf.ReferralBonus)
	if err != nil {
		c.log.With(sl.User(user.ReferredBy), sl.Err(err)).Warn("credit referral")
		return
	}
	if !credited {
		return
	}
	c.log.With(
		sl.User(user.ReferredBy),
		slog.Int64("referred", user.TelegramId),
		slog.Float64("bonus", c.conf.ReferralBonus),
	).Info("referral credited")

	referrerId := user.ReferredBy
	c.notify(func(n Notifier) { n.ReferralCredited(referrerId, user, c.conf.ReferralBonus) })
}
