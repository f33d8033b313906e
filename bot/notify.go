package bot

import (
	"fmt"
	"strings"

	"luckydrop/entity"
)

// The bot implements core.Notifier. All sends are fire-and-forget:
// plainResponse logs failures and the engine never learns about them.

func (t *TgBot) PotOpened(pot *entity.Pot) {
	t.announce(fmt.Sprintf(
		"🔔 *POT ALERT\\!* A new LuckyDrop pot is open for tickets\\! 🚀\n%s\nUse /buyticket now\\! 🎫",
		t.potSummary(pot)))
	t.AlertAdmin(fmt.Sprintf("🔔 Pot opened for %s\\.", Sanitize(pot.Date)))
}

func (t *TgBot) PotClosed(pot *entity.Pot) {
	t.announce(fmt.Sprintf(
		"⏳ *Time's up\\!* The pot is closed with *%d participants*\\. Results follow shortly\\! 🎲",
		len(pot.Participants)))
	t.AlertAdmin(fmt.Sprintf(
		"Pot %s closed with %d participants\\. Reveal via scheduler or /reveal\\.",
		Sanitize(pot.Date), len(pot.Participants)))
}

func (t *TgBot) PotRevealed(pot *entity.Pot) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🎉 *LUCKYDROP RESULTS FOR %s\\!* 🎉\n\n🏆 Winners \\(drawn fairly at random\\):\n", Sanitize(pot.Date)))
	for _, winner := range pot.Winners {
		sb.WriteString(fmt.Sprintf(
			"🏅 %s: ticket `%s` \\- %s\n",
			Sanitize(winner.Rank), winner.TicketCode, money(winner.Prize)))
	}
	sb.WriteString("\nCongratulations\\! A new pot opens daily\\. 🚀\nPayouts go to registered UPI IDs; set yours with /setupi\\.")
	t.announce(sb.String())

	for _, winner := range pot.Winners {
		msg := fmt.Sprintf(
			"🥳 *YOU WON\\!* Your ticket `%s` took the %s prize: %s\\!\n",
			winner.TicketCode, Sanitize(winner.Rank), money(winner.Prize))
		if winner.UpiId != "" {
			msg += fmt.Sprintf("Winnings go to `%s` within 12 hours\\. 🎉", Sanitize(winner.UpiId))
		} else {
			msg += "❗️ You have no UPI ID registered\\. Use /setupi so we can send your winnings\\."
		}
		t.plainResponse(winner.TelegramId, msg)
	}
}

func (t *TgBot) PotRefunded(pot *entity.Pot) {
	t.announce(fmt.Sprintf(
		"😔 Today's pot had too few participants \\(%d\\)\\. All tickets refunded\\! Better luck next time\\! 🍀",
		len(pot.Participants)))
	for _, participant := range pot.Participants {
		t.plainResponse(participant.TelegramId, fmt.Sprintf(
			"😢 Today's pot didn't fill up\\. Your %s ticket price is back in your real wallet\\. 🍀",
			money(pot.TicketPrice)))
	}
	t.AlertAdmin(fmt.Sprintf(
		"Pot %s refunded: %d participants below the minimum\\.",
		Sanitize(pot.Date), len(pot.Participants)))
}

// TicketPurchased keeps the admin informed about pot fill; the buyer
// already got a direct confirmation from the command flow.
func (t *TgBot) TicketPurchased(pot *entity.Pot, _ *entity.User, _ string) {
	sold := len(pot.Participants)
	switch {
	case sold == pot.MaxUsers:
		t.AlertAdmin(fmt.Sprintf("🔔 The pot is now FULL\\! \\(%d/%d\\)", sold, pot.MaxUsers))
	case sold*10 >= pot.MaxUsers*9:
		t.AlertAdmin(fmt.Sprintf("📢 The pot is almost full\\! \\(%d/%d\\)", sold, pot.MaxUsers))
	}
}

func (t *TgBot) ReferralCredited(referrerId int64, referred *entity.User, bonus float64) {
	t.plainResponse(referrerId, fmt.Sprintf(
		"🎉 *Referral bonus\\!* %s just bought their first ticket\\. You earned %s\\! 🥳",
		Sanitize(referred.DisplayName()), money(bonus)))
}

func (t *TgBot) PayoutPending(record *entity.PayoutRecord) {
	upi := record.UpiId
	if upi == "" {
		upi = "not set"
	}
	t.AlertAdmin(fmt.Sprintf(
		"💸 Payout pending: `%s` %s %s to user %d \\(UPI: `%s`\\)\\.",
		Sanitize(record.Id), Sanitize(record.Rank), money(record.Amount),
		record.TelegramId, Sanitize(upi)))
}

// announce posts to the public channel, when one is configured.
func (t *TgBot) announce(msg string) {
	if t.config.ChannelId == 0 {
		return
	}
	t.plainResponse(t.config.ChannelId, msg)
}
