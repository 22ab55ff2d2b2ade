package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundAmount(t *testing.T) {
	tests := []struct {
		in       float64
		expected float64
	}{
		{1.005, 1.01},
		{2.675, 2.68},
		{1.004, 1.00},
		{0.125, 0.13},
		{100, 100},
		{333.3333, 333.33},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, RoundAmount(tt.in), "round %v", tt.in)
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 750.0, Round2(Percent(Rat(1000), RatInt(75))))
	assert.Equal(t, 0.3, Round2(Percent(Rat(0.1), Rat(300))))
}

func TestMinRat(t *testing.T) {
	a, b := Rat(10), Rat(12.5)
	assert.Equal(t, a, MinRat(a, b))
	assert.Equal(t, a, MinRat(b, a))
}
