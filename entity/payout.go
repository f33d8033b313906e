package entity

import (
	"net/http"
	"time"

	"luckydrop/lib/validate"
)

// PayoutStatus tracks external disbursement of a prize.
// PENDING is the only mutable state; PAID and FAILED are terminal and
// set by an operator action, never by the engine.
type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
	PayoutFailed  PayoutStatus = "failed"
)

// PayoutRecord is created by the prize engine for each winner at reveal
// time. Funds movement happens out of band; the record only tracks it.
type PayoutRecord struct {
	Id          string       `json:"id" bson:"_id"`
	TelegramId  int64        `json:"telegram_id" bson:"telegram_id"`
	PotId       string       `json:"pot_id" bson:"pot_id"`
	PotDate     string       `json:"pot_date" bson:"pot_date"`
	Rank        string       `json:"rank" bson:"rank"`
	Amount      float64      `json:"amount" bson:"amount"`
	UpiId       string       `json:"upi_id,omitempty" bson:"upi_id,omitempty"`
	Status      PayoutStatus `json:"status" bson:"status"`
	CreatedAt   time.Time    `json:"created_at" bson:"created_at"`
	ProcessedAt time.Time    `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
}

// PayoutSettle is the operator request body moving a PENDING record to a
// terminal state.
type PayoutSettle struct {
	Status PayoutStatus `json:"status" validate:"required,oneof=paid failed"`
}

func (s *PayoutSettle) Bind(_ *http.Request) error {
	return validate.Struct(s)
}
