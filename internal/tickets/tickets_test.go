package tickets_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luckydrop/internal/tickets"
)

type fakeHistory struct {
	inUse map[string]bool
	err   error
}

func (f *fakeHistory) TicketCodeInUse(_ context.Context, code string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.inUse[code], nil
}

func TestGenerateUniqueFixedWidthCodes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	hist := &fakeHistory{inUse: map[string]bool{}}

	codes, err := tickets.Generate(context.Background(), 100, hist, rng)
	require.NoError(t, err)
	require.Len(t, codes, 100)

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.Len(t, code, tickets.CodeWidth)
		assert.False(t, seen[code], "code %s repeated", code)
		seen[code] = true
	}
}

func TestGenerateSkipsHistory(t *testing.T) {
	// Pre-compute what an unconstrained run with this seed would produce,
	// then forbid those codes; the second run must avoid all of them.
	rng := rand.New(rand.NewSource(2))
	free := &fakeHistory{inUse: map[string]bool{}}
	burned, err := tickets.Generate(context.Background(), 10, free, rng)
	require.NoError(t, err)

	inUse := make(map[string]bool, len(burned))
	for _, code := range burned {
		inUse[code] = true
	}

	rng = rand.New(rand.NewSource(2))
	codes, err := tickets.Generate(context.Background(), 10, &fakeHistory{inUse: inUse}, rng)
	require.NoError(t, err)
	for _, code := range codes {
		assert.False(t, inUse[code], "code %s is already in use", code)
	}
}

func TestGeneratePropagatesHistoryError(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	hist := &fakeHistory{err: fmt.Errorf("storage down")}

	_, err := tickets.Generate(context.Background(), 5, hist, rng)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage down")
}
