package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"luckydrop/entity"
)

func (t *TgBot) start(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	username := ctx.EffectiveUser.Username

	// Referral code via deep link (/start LUCKY123)
	refCode := ""
	args := strings.Fields(ctx.EffectiveMessage.Text)
	if len(args) > 1 {
		refCode = args[1]
	}

	user, created, err := t.core.RegisterUser(context.Background(), chatId, username, refCode)
	if err != nil {
		t.reportError(chatId, "/start", err)
		return nil
	}

	if created {
		t.plainResponse(chatId, fmt.Sprintf(
			"Welcome to LuckyDrop\\! 🎉\n"+
				"A new pot opens every day\\. Grab a ticket with /buyticket and check /pot for today's round\\.\n"+
				"Your referral code: `%s`", Sanitize(user.ReferralCode)))
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf(
		"Welcome back\\! Balance: %s real \\+ %s bonus\\. Try /buyticket\\.",
		money(user.RealBalance), money(user.BonusBalance)))
	return nil
}

func (t *TgBot) buyTicket(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id

	purchase, err := t.core.BuyTicket(context.Background(), chatId)
	switch {
	case err == nil:
	case errors.Is(err, entity.ErrUserNotFound):
		t.plainResponse(chatId, "Please use /start to register before buying a ticket\\.")
		return nil
	case errors.Is(err, entity.ErrPotNotOpen):
		t.plainResponse(chatId, "🎟️ The pot is currently closed\\! Check /pot for today's sales window\\.")
		return nil
	case errors.Is(err, entity.ErrAlreadyPurchased):
		t.plainResponse(chatId, "🚫 You've already bought your ticket for today's pot\\. Good luck\\!")
		return nil
	case errors.Is(err, entity.ErrInsufficientFunds):
		t.plainResponse(chatId, "💸 Not enough balance for this ticket\\. Top up your wallet and try again\\.")
		return nil
	case errors.Is(err, entity.ErrPotFull), errors.Is(err, entity.ErrAlreadySold):
		t.plainResponse(chatId, "😔 Today's pot is sold out\\. Better luck tomorrow\\!")
		return nil
	default:
		t.reportError(chatId, "/buyticket", err)
		return nil
	}

	closeAt := purchase.Pot.EndTime.In(t.location())
	revealAt := closeAt.Add(t.core.RevealDelay())
	t.plainResponse(chatId, fmt.Sprintf(
		"🥳 *Ticket secured\\!*\n"+
			"Your code: `%s`\n"+
			"Paid: %s real \\+ %s bonus\n"+
			"Pot closes at %s, winners at %s\\. Good luck\\! ✨",
		purchase.TicketCode,
		money(purchase.RealPaid), money(purchase.BonusPaid),
		Sanitize(closeAt.Format("03:04 PM")),
		Sanitize(revealAt.Format("03:04 PM")),
	))
	return nil
}

func (t *TgBot) wallet(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id

	user, err := t.core.User(context.Background(), chatId)
	if errors.Is(err, entity.ErrUserNotFound) {
		t.plainResponse(chatId, "Please use /start to register first\\.")
		return nil
	}
	if err != nil {
		t.reportError(chatId, "/wallet", err)
		return nil
	}

	upi := "not set"
	if user.UpiId != "" {
		upi = user.UpiId
	}
	t.plainResponse(chatId, fmt.Sprintf(
		"💰 *Your wallet*\n"+
			"Real: %s\nBonus: %s\nUPI: `%s`",
		money(user.RealBalance), money(user.BonusBalance), Sanitize(upi)))
	return nil
}

func (t *TgBot) pot(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id

	pot, err := t.core.CurrentPot(context.Background())
	if errors.Is(err, entity.ErrPotNotFound) {
		t.plainResponse(chatId, "No active pot at the moment\\. ⏳")
		return nil
	}
	if err != nil {
		t.reportError(chatId, "/pot", err)
		return nil
	}
	t.plainResponse(chatId, t.potSummary(pot))
	return nil
}

func (t *TgBot) refer(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id

	user, err := t.core.User(context.Background(), chatId)
	if errors.Is(err, entity.ErrUserNotFound) {
		t.plainResponse(chatId, "Please use /start to register first\\.")
		return nil
	}
	if err != nil {
		t.reportError(chatId, "/refer", err)
		return nil
	}

	link := fmt.Sprintf("https://t.me/%s?start=%s", t.api.User.Username, user.ReferralCode)
	t.plainResponse(chatId, fmt.Sprintf(
		"🎁 Share your link and earn a bonus when a friend buys their first ticket\\!\n"+
			"%s\nFriends referred so far: %d",
		Sanitize(link), user.ReferralCount))
	return nil
}

func (t *TgBot) setUpi(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id

	args := strings.Fields(ctx.EffectiveMessage.Text)
	if len(args) < 2 {
		t.plainResponse(chatId, "Usage: `/setupi yourname@bank`")
		return nil
	}
	upiId := args[1]
	if !strings.Contains(upiId, "@") {
		t.plainResponse(chatId, "That doesn't look like a UPI ID\\. Usage: `/setupi yourname@bank`")
		return nil
	}

	if err := t.core.SetUpi(context.Background(), chatId, upiId); err != nil {
		t.reportError(chatId, "/setupi", err)
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf("✅ UPI ID saved: `%s`\\. Winnings will be sent there\\.", Sanitize(upiId)))
	return nil
}

func (t *TgBot) help(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	t.plainResponse(chatId,
		"*LuckyDrop commands*\n"+
			"/buyticket \\- buy a ticket in today's pot\n"+
			"/pot \\- today's pot status\n"+
			"/wallet \\- your balances\n"+
			"/refer \\- your referral link\n"+
			"/setupi \\- register your payout UPI ID")
	return nil
}

// potSummary renders the shared pot status block used by /pot and the
// channel announcements.
func (t *TgBot) potSummary(pot *entity.Pot) string {
	statusText := map[entity.PotStatus]string{
		entity.PotOpen:     "🟢 OPEN for tickets\\!",
		entity.PotClosed:   "🔴 CLOSED\\. Awaiting winner reveal\\!",
		entity.PotRevealed: "✨ REVEALED\\! Winners announced\\!",
	}[pot.Status]

	loc := t.location()
	return fmt.Sprintf(
		"📅 Pot date: %s\n"+
			"⏰ Window: %s \\- %s\n"+
			"🎟️ Tickets sold: *%d/%d* \\(%s\\)\n"+
			"💸 Ticket price: %s",
		Sanitize(pot.Date),
		Sanitize(pot.StartTime.In(loc).Format("03:04 PM")),
		Sanitize(pot.EndTime.In(loc).Format("03:04 PM")),
		len(pot.Participants), pot.MaxUsers, statusText,
		money(pot.TicketPrice),
	)
}
