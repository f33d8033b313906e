package entity

import (
	"fmt"
	"time"
)

// PotStatus is the lifecycle state of a pot.
// The only legal edges are OPEN→CLOSED and CLOSED→REVEALED; REVEALED is
// terminal. The store applies every transition as a conditional update
// on the current status, so the enum doubles as the idempotence marker
// after a crash mid-transition.
type PotStatus string

const (
	PotOpen     PotStatus = "open"     // selling tickets
	PotClosed   PotStatus = "closed"   // sales ended, awaiting reveal
	PotRevealed PotStatus = "revealed" // winners computed, terminal
)

// Ticket is one pre-generated entry slot of a pot. Codes are created in
// bulk at pot creation and flip to claimed exactly once.
type Ticket struct {
	Code    string `json:"code" bson:"code"`
	Claimed bool   `json:"claimed" bson:"claimed"`
}

// Participant is an entry in the pot's append-only purchase sequence.
type Participant struct {
	TelegramId int64  `json:"telegram_id" bson:"telegram_id"`
	TicketCode string `json:"ticket_code" bson:"ticket_code"`
}

// Winner is one row of the reveal result, written once.
type Winner struct {
	Rank       string  `json:"rank" bson:"rank"`
	TelegramId int64   `json:"telegram_id" bson:"telegram_id"`
	TicketCode string  `json:"ticket_code" bson:"ticket_code"`
	Prize      float64 `json:"prize" bson:"prize"`
	UpiId      string  `json:"upi_id,omitempty" bson:"upi_id,omitempty"`
}

// Pot is one lottery round for a calendar date. It exclusively owns its
// ticket pool and participant list; both are embedded so a claim is a
// single conditional update on one document.
type Pot struct {
	Id           string        `json:"id" bson:"_id"`
	Date         string        `json:"date" bson:"date"`
	StartTime    time.Time     `json:"start_time" bson:"start_time"`
	EndTime      time.Time     `json:"end_time" bson:"end_time"`
	MaxUsers     int           `json:"max_users" bson:"max_users"`
	TicketPrice  float64       `json:"ticket_price" bson:"ticket_price"`
	Status       PotStatus     `json:"status" bson:"status"`
	Tickets      []Ticket      `json:"tickets" bson:"tickets"`
	Participants []Participant `json:"participants" bson:"participants"`
	TotalTickets int           `json:"total_tickets" bson:"total_tickets"`
	Winners      []Winner      `json:"winners" bson:"winners"`
	PrizePool    float64       `json:"prize_pool" bson:"prize_pool"`
}

func (p *Pot) IsOpen() bool {
	return p.Status == PotOpen
}

func (p *Pot) IsFull() bool {
	return len(p.Participants) >= p.MaxUsers
}

// HasParticipant reports whether the user already holds a ticket.
func (p *Pot) HasParticipant(telegramId int64) bool {
	for _, part := range p.Participants {
		if part.TelegramId == telegramId {
			return true
		}
	}
	return false
}

// AvailableCodes lists the unclaimed ticket codes in creation order.
func (p *Pot) AvailableCodes() []string {
	codes := make([]string, 0, len(p.Tickets))
	for _, t := range p.Tickets {
		if !t.Claimed {
			codes = append(codes, t.Code)
		}
	}
	return codes
}

// CloseDenied maps an observed status to the close-transition outcome.
// Returns nil only for OPEN.
func CloseDenied(observed PotStatus) error {
	switch observed {
	case PotOpen:
		return nil
	case PotClosed:
		return ErrAlreadyClosed
	case PotRevealed:
		return ErrAlreadyRevealed
	default:
		return fmt.Errorf("close: unknown pot status %q", observed)
	}
}

// RevealDenied maps an observed status to the reveal-transition outcome.
// Returns nil only for CLOSED.
func RevealDenied(observed PotStatus) error {
	switch observed {
	case PotClosed:
		return nil
	case PotOpen:
		return ErrPotStillOpen
	case PotRevealed:
		return ErrAlreadyRevealed
	default:
		return fmt.Errorf("reveal: unknown pot status %q", observed)
	}
}
