package entity

import (
	"fmt"
	"time"
)

// User is a registered lottery player. Balances carry two-decimal
// semantics and are mutated only through the store's atomic adjustment;
// ReferredTickets is the idempotence marker for referral credits, one
// entry per referred user whose first ticket already earned the bonus.
type User struct {
	TelegramId      int64     `json:"telegram_id" bson:"telegram_id" validate:"required"`
	Username        string    `json:"username" bson:"username"`
	RealBalance     float64   `json:"real_balance" bson:"real_balance"`
	BonusBalance    float64   `json:"bonus_balance" bson:"bonus_balance"`
	ReferralCode    string    `json:"referral_code" bson:"referral_code"`
	ReferredBy      int64     `json:"referred_by,omitempty" bson:"referred_by,omitempty"`
	ReferralCount   int       `json:"referral_count" bson:"referral_count"`
	ReferredTickets []int64   `json:"referred_tickets,omitempty" bson:"referred_tickets,omitempty"`
	UpiId           string    `json:"upi_id,omitempty" bson:"upi_id,omitempty"`
	LastTicketCode  string    `json:"last_ticket_code,omitempty" bson:"last_ticket_code,omitempty"`
	LastTicketDate  time.Time `json:"last_ticket_date,omitempty" bson:"last_ticket_date,omitempty"`
	JoinedDate      time.Time `json:"joined_date" bson:"joined_date"`
}

func NewUser(telegramId int64, username string, referrerId int64) *User {
	return &User{
		TelegramId:   telegramId,
		Username:     username,
		ReferralCode: fmt.Sprintf("LUCKY%d", telegramId),
		ReferredBy:   referrerId,
		JoinedDate:   time.Now().UTC(),
	}
}

func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("user %d", u.TelegramId)
}

// Balance returns the total spendable amount.
func (u *User) Balance() float64 {
	return Round2(u.RealBalance + u.BonusBalance)
}

// SplitPrice decides how much of the ticket price is covered from the
// bonus balance (capped at maxBonus per ticket) and how much must come
// from the real balance.
func (u *User) SplitPrice(price, maxBonus float64) (real, bonus float64) {
	bonus = u.BonusBalance
	if bonus > maxBonus {
		bonus = maxBonus
	}
	if bonus > price {
		bonus = price
	}
	return Round2(price - bonus), Round2(bonus)
}
