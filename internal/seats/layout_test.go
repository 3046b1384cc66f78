package seats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bookmyseat/internal/model"
)

func TestNumber(t *testing.T) {
	assert.Equal(t, "G-01", Number(0, 1))
	assert.Equal(t, "F2-15", Number(2, 15))
	assert.Equal(t, "F3-50", Number(3, 50))
}

func TestLayout(t *testing.T) {
	all := Layout()
	require.Len(t, all, Floors*PerFloor)

	seen := map[string]bool{}
	perFloor := map[int]int{}
	for _, s := range all {
		assert.False(t, seen[s.Number], "duplicate %s", s.Number)
		seen[s.Number] = true
		perFloor[s.Floor]++
		assert.True(t, s.Consistent())
		assert.Equal(t, model.SeatFree, s.Status)
	}
	for f := 0; f < Floors; f++ {
		assert.Equal(t, PerFloor, perFloor[f])
	}
	assert.True(t, seen["G-50"])
	assert.True(t, seen["F1-01"])
}
