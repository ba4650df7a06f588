package decision_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/acmedemos/choreo/pkg/choreo/decision"
)

func TestRandomDeciderBounds(t *testing.T) {
	never := decision.NewRandomDecider(0)
	always := decision.NewRandomDecider(1)

	for i := 0; i < 100; i++ {
		assert.False(t, never.IsFraud())
		assert.True(t, always.IsFraud())
	}
}

func TestRandomDeciderClamps(t *testing.T) {
	assert.False(t, decision.NewRandomDecider(-5).IsFraud())
	assert.True(t, decision.NewRandomDecider(5).IsFraud())
}

func TestStaticDecider(t *testing.T) {
	assert.True(t, decision.StaticDecider(true).IsFraud())
	assert.False(t, decision.StaticDecider(false).IsFraud())
}

func TestOneOf(t *testing.T) {
	choices := []string{"John Doe", "Jane Doe", "Comptroller"}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		v := decision.OneOf(choices)
		assert.Contains(t, choices, v)
		seen[v] = true
	}
	assert.Len(t, seen, 3, "all choices should appear over 200 draws")
}

func TestAccountNumberIsTenDigits(t *testing.T) {
	for i := 0; i < 100; i++ {
		n := decision.AccountNumber()
		s := strconv.FormatInt(n, 10)
		assert.Len(t, s, 10)
		assert.NotEqual(t, byte('0'), s[0])
	}
}

func TestIntBetween(t *testing.T) {
	for i := 0; i < 100; i++ {
		n := decision.IntBetween(1, 5)
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 5)
	}
	assert.Equal(t, 7, decision.IntBetween(7, 7))
}

func TestAmountRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		a := decision.Amount()
		assert.GreaterOrEqual(t, a, 0.0)
		assert.Less(t, a, 100.0)
	}
}
