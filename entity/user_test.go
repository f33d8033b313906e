package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPrice(t *testing.T) {
	cases := []struct {
		name     string
		bonus    float64
		price    float64
		maxBonus float64
		wantReal float64
		wantBon  float64
	}{
		{"no bonus", 0, 50, 30, 50, 0},
		{"bonus below cap", 20, 50, 30, 30, 20},
		{"bonus at cap", 30, 50, 30, 20, 30},
		{"bonus above cap", 80, 50, 30, 20, 30},
		{"bonus covers whole price", 80, 20, 30, 0, 20},
		{"fractional", 10.5, 50, 30, 39.5, 10.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := &User{BonusBalance: tc.bonus}
			real, bonus := u.SplitPrice(tc.price, tc.maxBonus)
			assert.Equal(t, tc.wantReal, real)
			assert.Equal(t, tc.wantBon, bonus)
		})
	}
}

func TestNewUser(t *testing.T) {
	u := NewUser(42, "alice", 7)
	assert.Equal(t, int64(42), u.TelegramId)
	assert.Equal(t, "LUCKY42", u.ReferralCode)
	assert.Equal(t, int64(7), u.ReferredBy)
	assert.Equal(t, "@alice", u.DisplayName())

	anon := NewUser(43, "", 0)
	assert.Equal(t, "user 43", anon.DisplayName())
}
