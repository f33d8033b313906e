package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"luckydrop/entity"
)

// openPot creates today's pot manually, optionally overriding pool size
// and ticket price: /openpot [maxUsers] [ticketPrice].
func (t *TgBot) openPot(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	args := strings.Fields(ctx.EffectiveMessage.Text)
	bg := context.Background()

	var pot *entity.Pot
	var err error
	if len(args) >= 3 {
		maxUsers, convErr := strconv.Atoi(args[1])
		if convErr != nil || maxUsers < 1 {
			t.plainResponse(chatId, "Usage: `/openpot [maxUsers] [ticketPrice]`")
			return nil
		}
		price, convErr := strconv.ParseFloat(args[2], 64)
		if convErr != nil || price <= 0 {
			t.plainResponse(chatId, "Usage: `/openpot [maxUsers] [ticketPrice]`")
			return nil
		}
		pot, err = t.core.CreateTodayPot(bg, maxUsers, price)
	} else {
		pot, err = t.core.CreateDailyPot(bg)
	}

	if errors.Is(err, entity.ErrDuplicatePot) {
		t.plainResponse(chatId, "A pot already exists for today\\.")
		return nil
	}
	if err != nil {
		t.reportError(chatId, "/openpot", err)
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf(
		"🔔 Pot opened for %s: %d tickets at %s\\.",
		Sanitize(pot.Date), pot.MaxUsers, money(pot.TicketPrice)))
	return nil
}

// closePot ends the sales window early. Idempotence outcomes are shown
// to the operator rather than swallowed.
func (t *TgBot) closePot(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	bg := context.Background()
	pot, err := t.core.CurrentPot(bg)
	if errors.Is(err, entity.ErrPotNotFound) {
		t.plainResponse(chatId, "No pot exists for today\\.")
		return nil
	}
	if err != nil {
		t.reportError(chatId, "/closepot", err)
		return nil
	}

	err = t.core.ClosePot(bg, pot.Id)
	switch {
	case err == nil:
		t.plainResponse(chatId, fmt.Sprintf(
			"✅ Pot closed with %d participants\\. Reveal follows in %d minutes or via /reveal\\.",
			len(pot.Participants), int(t.core.RevealDelay().Minutes())))
	case errors.Is(err, entity.ErrAlreadyClosed):
		t.plainResponse(chatId, "Pot is already closed\\.")
	case errors.Is(err, entity.ErrAlreadyRevealed):
		t.plainResponse(chatId, "Pot is already revealed\\.")
	default:
		t.reportError(chatId, "/closepot", err)
	}
	return nil
}

// reveal triggers the draw for today's closed pot.
func (t *TgBot) reveal(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	bg := context.Background()
	pot, err := t.core.CurrentPot(bg)
	if errors.Is(err, entity.ErrPotNotFound) {
		t.plainResponse(chatId, "No pot exists for today\\.")
		return nil
	}
	if err != nil {
		t.reportError(chatId, "/reveal", err)
		return nil
	}

	err = t.core.RevealPot(bg, pot.Id)
	switch {
	case err == nil:
		t.plainResponse(chatId, "🥁 Draw complete\\. Results announced\\.")
	case errors.Is(err, entity.ErrAlreadyRevealed):
		t.plainResponse(chatId, "📣 Winners for this pot have already been revealed\\.")
	case errors.Is(err, entity.ErrPotStillOpen):
		t.plainResponse(chatId, "Pot is still open\\. Close it first with /closepot\\.")
	default:
		t.reportError(chatId, "/reveal", err)
	}
	return nil
}

// payouts lists pending payout records with their settle commands.
func (t *TgBot) payouts(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	records, err := t.core.PendingPayouts(context.Background())
	if err != nil {
		t.reportError(chatId, "/payouts", err)
		return nil
	}
	if len(records) == 0 {
		t.plainResponse(chatId, "No pending payouts\\. 🎉")
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Pending payouts* \\(%d\\):\n", len(records)))
	for _, record := range records {
		upi := record.UpiId
		if upi == "" {
			upi = "not set"
		}
		sb.WriteString(fmt.Sprintf(
			"`%s` \\| %s \\| user %d \\| %s \\| UPI: `%s`\n",
			Sanitize(record.Id), Sanitize(record.Rank), record.TelegramId,
			money(record.Amount), Sanitize(upi)))
	}
	sb.WriteString("\nSettle with `/paid <id>` or `/failed <id>`\\.")
	t.plainResponse(chatId, sb.String())
	return nil
}

func (t *TgBot) paid(_ *tgbotapi.Bot, ctx *ext.Context) error {
	return t.settle(ctx, entity.PayoutPaid, "/paid")
}

func (t *TgBot) failed(_ *tgbotapi.Bot, ctx *ext.Context) error {
	return t.settle(ctx, entity.PayoutFailed, "/failed")
}

func (t *TgBot) settle(ctx *ext.Context, status entity.PayoutStatus, command string) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	args := strings.Fields(ctx.EffectiveMessage.Text)
	if len(args) < 2 {
		t.plainResponse(chatId, fmt.Sprintf("Usage: `%s <payout id>`", command))
		return nil
	}

	record, err := t.core.SettlePayout(context.Background(), args[1], status)
	switch {
	case err == nil:
		t.plainResponse(chatId, fmt.Sprintf(
			"Payout `%s` marked %s\\.", Sanitize(record.Id), Sanitize(string(record.Status))))
		if status == entity.PayoutPaid {
			t.plainResponse(record.TelegramId, fmt.Sprintf(
				"💸 Your prize of %s has been paid out\\. Congratulations\\!", money(record.Amount)))
		}
	case errors.Is(err, entity.ErrPayoutNotFound):
		t.plainResponse(chatId, "No payout record with that id\\.")
	case errors.Is(err, entity.ErrPayoutSettled):
		t.plainResponse(chatId, "That payout is already settled\\.")
	default:
		t.reportError(chatId, command, err)
	}
	return nil
}

// stats shows the operator overview.
func (t *TgBot) stats(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.requireAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return nil
	}

	stats, err := t.core.Stats(context.Background())
	if err != nil {
		t.reportError(chatId, "/stats", err)
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf(
		"*LuckyDrop stats*\n"+
			"Users: %d\n"+
			"Total real: %s\n"+
			"Total bonus: %s\n"+
			"Locked in pot: %s\n"+
			"Pot: %s \\(%s\\)",
		stats.Users, money(stats.TotalReal), money(stats.TotalBonus),
		money(stats.LockedFunds), Sanitize(stats.PotStatus), Sanitize(stats.PotFill)))
	return nil
}
