// Package tickets generates the pre-allocated code pool of a pot.
package tickets

import (
	"context"
	"fmt"
	"math/rand"
)

// CodeWidth is the fixed width of a ticket code.
const CodeWidth = 6

// maxAttempts bounds the retry loop per code against a pathological
// history; the digit space is six orders of magnitude wider than any
// realistic pool.
const maxAttempts = 1000

// History answers whether a candidate code is still visible to users:
// in a non-terminal pot's pool or as someone's most recent ticket.
// Codes are unique within a pool by construction; the history check only
// avoids visual confusion across adjacent pots.
type History interface {
	TicketCodeInUse(ctx context.Context, code string) (bool, error)
}

// Generate produces n unique fixed-width digit codes, none colliding
// with each other or with the recent history. The rng is injected so
// pool creation is reproducible in tests.
func Generate(ctx context.Context, n int, hist History, rng *rand.Rand) ([]string, error) {
	codes := make([]string, 0, n)
	seen := make(map[string]bool, n)
	for len(codes) < n {
		code, err := next(ctx, seen, hist, rng)
		if err != nil {
			return nil, err
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes, nil
}

func next(ctx context.Context, seen map[string]bool, hist History, rng *rand.Rand) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := format(rng.Intn(1000000))
		if seen[code] {
			continue
		}
		inUse, err := hist.TicketCodeInUse(ctx, code)
		if err != nil {
			return "", fmt.Errorf("ticket code history: %w", err)
		}
		if inUse {
			continue
		}
		return code, nil
	}
	return "", fmt.Errorf("could not generate a unique ticket code in %d attempts", maxAttempts)
}

func format(n int) string {
	return fmt.Sprintf("%0*d", CodeWidth, n)
}
