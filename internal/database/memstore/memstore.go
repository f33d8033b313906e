// Package memstore is an in-memory implementation of the storage
// contract, used by tests and the local environment. A single mutex
// stands in for the document-level atomicity the Mongo store gets from
// conditional updates; the observable outcomes are identical.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"luckydrop/entity"
)

type MemStore struct {
	mu      sync.Mutex
	users   map[int64]*entity.User
	pots    map[string]*entity.Pot
	byDate  map[string]string
	payouts map[string]*entity.PayoutRecord
}

func New() *MemStore {
	return &MemStore{
		users:   make(map[int64]*entity.User),
		pots:    make(map[string]*entity.Pot),
		byDate:  make(map[string]string),
		payouts: make(map[string]*entity.PayoutRecord),
	}
}

// -------- users --------

func (s *MemStore) GetUser(_ context.Context, telegramId int64) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[telegramId]
	if !ok {
		return nil, entity.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (s *MemStore) GetUserByReferralCode(_ context.Context, code string) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ReferralCode == code {
			u := *user
			return &u, nil
		}
	}
	return nil, entity.ErrUserNotFound
}

func (s *MemStore) CreateUser(_ context.Context, user *entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.TelegramId]; ok {
		return nil
	}
	u := *user
	s.users[user.TelegramId] = &u
	return nil
}

func (s *MemStore) AdjustBalance(_ context.Context, telegramId int64, realDelta, bonusDelta float64) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[telegramId]
	if !ok {
		return nil, entity.ErrUserNotFound
	}
	if user.RealBalance+realDelta < 0 || user.BonusBalance+bonusDelta < 0 {
		return nil, entity.ErrInsufficientFunds
	}
	user.RealBalance = entity.Round2(user.RealBalance + realDelta)
	user.BonusBalance = entity.Round2(user.BonusBalance + bonusDelta)
	u := *user
	return &u, nil
}

func (s *MemStore) SetUpi(_ context.Context, telegramId int64, upiId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[telegramId]
	if !ok {
		return entity.ErrUserNotFound
	}
	user.UpiId = upiId
	return nil
}

func (s *MemStore) SetLastTicket(_ context.Context, telegramId int64, code string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[telegramId]
	if !ok {
		return entity.ErrUserNotFound
	}
	user.LastTicketCode = code
	user.LastTicketDate = at
	return nil
}

func (s *MemStore) CreditReferral(_ context.Context, referrerId, referredId int64, bonus float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[referrerId]
	if !ok {
		return false, nil
	}
	for _, id := range user.ReferredTickets {
		if id == referredId {
			return false, nil
		}
	}
	user.ReferredTickets = append(user.ReferredTickets, referredId)
	user.BonusBalance = entity.Round2(user.BonusBalance + bonus)
	user.ReferralCount++
	return true, nil
}

func (s *MemStore) CountUsers(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

func (s *MemStore) TotalBalances(_ context.Context) (real, bonus float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		real += user.RealBalance
		bonus += user.BonusBalance
	}
	return entity.Round2(real), entity.Round2(bonus), nil
}

// -------- pots --------

func (s *MemStore) InsertPot(_ context.Context, pot *entity.Pot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byDate[pot.Date]; ok {
		return entity.ErrDuplicatePot
	}
	p := clonePot(pot)
	s.pots[pot.Id] = p
	s.byDate[pot.Date] = pot.Id
	return nil
}

func (s *MemStore) PotByDate(_ context.Context, date string) (*entity.Pot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byDate[date]
	if !ok {
		return nil, entity.ErrPotNotFound
	}
	return clonePot(s.pots[id]), nil
}

func (s *MemStore) PotById(_ context.Context, id string) (*entity.Pot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pot, ok := s.pots[id]
	if !ok {
		return nil, entity.ErrPotNotFound
	}
	return clonePot(pot), nil
}

func (s *MemStore) OpenPots(_ context.Context) ([]*entity.Pot, error) {
	return s.potsByStatus(entity.PotOpen), nil
}

func (s *MemStore) ClosedPots(_ context.Context) ([]*entity.Pot, error) {
	return s.potsByStatus(entity.PotClosed), nil
}

func (s *MemStore) potsByStatus(status entity.PotStatus) []*entity.Pot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*entity.Pot
	for _, pot := range s.pots {
		if pot.Status == status {
			matched = append(matched, clonePot(pot))
		}
	}
	return matched
}

func (s *MemStore) TicketCodeInUse(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.LastTicketCode == code {
			return true, nil
		}
	}
	for _, pot := range s.pots {
		if pot.Status == entity.PotRevealed {
			continue
		}
		for _, t := range pot.Tickets {
			if t.Code == code {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *MemStore) ClaimTicket(_ context.Context, potId string, telegramId int64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pot, ok := s.pots[potId]
	if !ok {
		return entity.ErrPotNotFound
	}
	if !pot.IsOpen() {
		return entity.ErrPotNotOpen
	}
	if pot.HasParticipant(telegramId) {
		return entity.ErrAlreadyPurchased
	}
	if pot.IsFull() {
		return entity.ErrPotFull
	}
	for i := range pot.Tickets {
		if pot.Tickets[i].Code != code {
			continue
		}
		if pot.Tickets[i].Claimed {
			return entity.ErrAlreadySold
		}
		pot.Tickets[i].Claimed = true
		pot.Participants = append(pot.Participants, entity.Participant{
			TelegramId: telegramId,
			TicketCode: code,
		})
		pot.TotalTickets++
		return nil
	}
	return fmt.Errorf("ticket code %s is not in pot %s", code, potId)
}

func (s *MemStore) ClosePot(_ context.Context, potId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pot, ok := s.pots[potId]
	if !ok {
		return entity.ErrPotNotFound
	}
	if err := entity.CloseDenied(pot.Status); err != nil {
		return err
	}
	pot.Status = entity.PotClosed
	return nil
}

func (s *MemStore) RevealPot(_ context.Context, potId string, winners []entity.Winner, prizePool float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pot, ok := s.pots[potId]
	if !ok {
		return entity.ErrPotNotFound
	}
	if err := entity.RevealDenied(pot.Status); err != nil {
		return err
	}
	if winners == nil {
		winners = []entity.Winner{}
	}
	pot.Status = entity.PotRevealed
	pot.Winners = winners
	pot.PrizePool = prizePool
	return nil
}

// -------- payouts --------

func (s *MemStore) InsertPayout(_ context.Context, record *entity.PayoutRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payouts[record.Id]; ok {
		return nil
	}
	r := *record
	s.payouts[record.Id] = &r
	return nil
}

func (s *MemStore) PayoutsByStatus(_ context.Context, status entity.PayoutStatus) ([]*entity.PayoutRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []*entity.PayoutRecord
	for _, record := range s.payouts {
		if record.Status == status {
			r := *record
			records = append(records, &r)
		}
	}
	return records, nil
}

func (s *MemStore) SettlePayout(_ context.Context, id string, status entity.PayoutStatus, at time.Time) (*entity.PayoutRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.payouts[id]
	if !ok {
		return nil, entity.ErrPayoutNotFound
	}
	if record.Status != entity.PayoutPending {
		return nil, entity.ErrPayoutSettled
	}
	record.Status = status
	record.ProcessedAt = at
	r := *record
	return &r, nil
}

func clonePot(pot *entity.Pot) *entity.Pot {
	p := *pot
	p.Tickets = append([]entity.Ticket(nil), pot.Tickets...)
	p.Participants = append([]entity.Participant(nil), pot.Participants...)
	p.Winners = append([]entity.Winner(nil), pot.Winners...)
	return &p
}
