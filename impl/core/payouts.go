package core

import (
	"context"
	"log/slog"

	"luckydrop/entity"
	"luckydrop/lib/sl"
)

// PendingPayouts lists the records awaiting manual disbursement.
func (c *Core) PendingPayouts(ctx context.Context) ([]*entity.PayoutRecord, error) {
	return c.store.PayoutsByStatus(ctx, entity.PayoutPending)
}

// Payouts lists the records in the given state.
func (c *Core) Payouts(ctx context.Context, status entity.PayoutStatus) ([]*entity.PayoutRecord, error) {
	return c.store.PayoutsByStatus(ctx, status)
}

// SettlePayout records the operator's manual disbursement outcome.
// Legal only from PENDING; terminal records are immutable.
func (c *Core) SettlePayout(ctx context.Context, id string, status entity.PayoutStatus) (*entity.PayoutRecord, error) {
	if status != entity.PayoutPaid && status != entity.PayoutFailed {
		return nil, entity.ErrPayoutSettled
	}
	record, err := c.store.SettlePayout(ctx, id, status, c.clk.Now().UTC())
	if err != nil {
		return nil, err
	}
	c.log.With(
		slog.String("payout", record.Id),
		sl.User(record.TelegramId),
		slog.String("status", string(record.Status)),
		slog.Float64("amount", record.Amount),
	).Info("payout settled")
	return record, nil
}
