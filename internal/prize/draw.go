// Package prize computes the outcome of a closed pot.
//
// The draw is a pure function over the participant list and an injected
// random source, so a fixed seed reproduces a draw exactly. Fairness
// comes from the uniform shuffle: every participant has equal
// probability of any rank. Unpredictability hardening is explicitly not
// a goal here.
package prize

import (
	"math/rand"

	"luckydrop/entity"
)

// Table is the prize configuration of a draw.
type Table struct {
	First           float64
	Second          float64
	Third           float64
	FullPotSize     int
	MinParticipants int
}

var rankNames = []string{"1st", "2nd", "3rd"}

// Result is the computed outcome of a reveal. When Refund is set there
// are no winners and every participant gets the ticket price back.
type Result struct {
	Refund  bool
	Winners []entity.Winner
	// PrizePool is the sum awarded across all ranks.
	PrizePool float64
}

// Compute draws winners for the given participants. Below the minimum
// the refund branch is taken. Otherwise the participants are uniformly
// shuffled and the first entries of the permutation take ranks
// 1st, 2nd, 3rd in draw order; prize amounts scale linearly with the
// fill ratio below a full pot, rounded to two decimals.
func Compute(participants []entity.Participant, table Table, rng *rand.Rand) Result {
	count := len(participants)
	if count < table.MinParticipants {
		return Result{Refund: true}
	}

	drawn := make([]entity.Participant, count)
	copy(drawn, participants)
	rng.Shuffle(count, func(i, j int) {
		drawn[i], drawn[j] = drawn[j], drawn[i]
	})

	amounts := scaled(table, count)
	ranks := len(amounts)
	if count < ranks {
		ranks = count
	}

	result := Result{Winners: make([]entity.Winner, 0, ranks)}
	for i := 0; i < ranks; i++ {
		result.Winners = append(result.Winners, entity.Winner{
			Rank:       rankNames[i],
			TelegramId: drawn[i].TelegramId,
			TicketCode: drawn[i].TicketCode,
			Prize:      amounts[i],
		})
		result.PrizePool = entity.Round2(result.PrizePool + amounts[i])
	}
	return result
}

// scaled returns the per-rank amounts for the participant count. At or
// above the full pot size the base table applies unscaled.
func scaled(table Table, count int) []float64 {
	base := []float64{table.First, table.Second, table.Third}
	if count >= table.FullPotSize {
		return base
	}
	factor := float64(count) / float64(table.FullPotSize)
	out := make([]float64, len(base))
	for i, amount := range base {
		out[i] = entity.Round2(amount * factor)
	}
	return out
}
