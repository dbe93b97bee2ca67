package config

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRange_SetLo(t *testing.T) {
	r := Range{Lo: 0, Hi: 10}

	r.SetLo(5)
	assert.Equal(t, 5.0, r.Lo)

	r.SetLo(20)
	assert.InDelta(t, 10-MinSpan, r.Lo, 1e-9)
	assert.NoError(t, r.Validate())
}

func TestRange_SetHi(t *testing.T) {
	r := Range{Lo: 0, Hi: 10}

	r.SetHi(3)
	assert.Equal(t, 3.0, r.Hi)

	r.SetHi(-5)
	assert.InDelta(t, MinSpan, r.Hi, 1e-9)
	assert.NoError(t, r.Validate())
}

func TestRange_Union(t *testing.T) {
	a := Range{Lo: 0, Hi: 1024}
	b := Range{Lo: -1, Hi: 3.3}
	assert.Equal(t, Range{Lo: -1, Hi: 1024}, a.Union(b))
}

func TestRange_ValidateNonFinite(t *testing.T) {
	r := Range{Lo: 0, Hi: 1024}
	r.SetLo(math.Inf(-1))
	assert.ErrorIs(t, r.Validate(), ErrInvalidRange)

	r = Range{Lo: 0, Hi: 1024}
	r.SetHi(math.Inf(1))
	assert.ErrorIs(t, r.Validate(), ErrInvalidRange)

	assert.ErrorIs(t, Range{Lo: math.NaN(), Hi: 1}.Validate(), ErrInvalidRange)
}
