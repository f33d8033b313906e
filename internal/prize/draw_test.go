package prize_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luckydrop/entity"
	"luckydrop/internal/prize"
)

func testTable() prize.Table {
	return prize.Table{
		First:           500,
		Second:          200,
		Third:           100,
		FullPotSize:     30,
		MinParticipants: 2,
	}
}

func participants(n int) []entity.Participant {
	out := make([]entity.Participant, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, entity.Participant{
			TelegramId: int64(1000 + i),
			TicketCode: fmt.Sprintf("%06d", 100000+i),
		})
	}
	return out
}

func TestComputeRefundBelowMinimum(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	result := prize.Compute(participants(1), testTable(), rng)
	require.True(t, result.Refund)
	assert.Empty(t, result.Winners)
	assert.Zero(t, result.PrizePool)

	result = prize.Compute(nil, testTable(), rng)
	assert.True(t, result.Refund)
}

func TestComputeFullPotUnscaled(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	result := prize.Compute(participants(30), testTable(), rng)
	require.False(t, result.Refund)
	require.Len(t, result.Winners, 3)

	assert.Equal(t, "1st", result.Winners[0].Rank)
	assert.Equal(t, "2nd", result.Winners[1].Rank)
	assert.Equal(t, "3rd", result.Winners[2].Rank)
	assert.Equal(t, 500.0, result.Winners[0].Prize)
	assert.Equal(t, 200.0, result.Winners[1].Prize)
	assert.Equal(t, 100.0, result.Winners[2].Prize)
	assert.Equal(t, 800.0, result.PrizePool)
}

func TestComputeScalesWithFill(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	// 15 of 30: every amount is half of the base table.
	result := prize.Compute(participants(15), testTable(), rng)
	require.Len(t, result.Winners, 3)
	assert.Equal(t, 250.0, result.Winners[0].Prize)
	assert.Equal(t, 100.0, result.Winners[1].Prize)
	assert.Equal(t, 50.0, result.Winners[2].Prize)
	assert.Equal(t, 400.0, result.PrizePool)
}

func TestComputeFewerParticipantsThanRanks(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	result := prize.Compute(participants(2), testTable(), rng)
	require.False(t, result.Refund)
	require.Len(t, result.Winners, 2)
	assert.Equal(t, "1st", result.Winners[0].Rank)
	assert.Equal(t, "2nd", result.Winners[1].Rank)
}

func TestComputeWinnersAreDistinct(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	result := prize.Compute(participants(10), testTable(), rng)
	require.Len(t, result.Winners, 3)
	seen := make(map[int64]bool)
	for _, w := range result.Winners {
		assert.False(t, seen[w.TelegramId], "user %d won twice", w.TelegramId)
		seen[w.TelegramId] = true
	}
}

func TestComputeDeterministicForSeed(t *testing.T) {
	pool := participants(20)

	first := prize.Compute(pool, testTable(), rand.New(rand.NewSource(42)))
	second := prize.Compute(pool, testTable(), rand.New(rand.NewSource(42)))
	assert.Equal(t, first, second)

	// The input slice itself is never reordered.
	assert.Equal(t, participants(20), pool)
}

func TestComputeScalingMonotonic(t *testing.T) {
	table := testTable()

	var prevFirst, prevPool float64
	for count := table.MinParticipants; count <= table.FullPotSize; count++ {
		rng := rand.New(rand.NewSource(int64(count)))
		result := prize.Compute(participants(count), table, rng)
		require.False(t, result.Refund, "count %d", count)

		first := result.Winners[0].Prize
		assert.GreaterOrEqual(t, first, prevFirst, "count %d", count)
		assert.LessOrEqual(t, first, table.First, "count %d", count)
		assert.GreaterOrEqual(t, result.PrizePool, prevPool, "count %d", count)
		prevFirst, prevPool = first, result.PrizePool
	}
	assert.Equal(t, table.First, prevFirst)
}
