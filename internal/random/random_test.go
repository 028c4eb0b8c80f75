package random

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rias-glitch/casino-backend/internal/models"
)

func TestSeededSource_Deterministic(t *testing.T) {
	a := NewSeededSource(7)
	b := NewSeededSource(7)

	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Side(), b.Side())
	}
}

func TestSeededSource_Intn_Range(t *testing.T) {
	s := NewSeededSource(1)
	for i := 0; i < 1000; i++ {
		v := s.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

func TestCryptoSource_Side(t *testing.T) {
	s := NewCryptoSource()

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		side := s.Side()
		assert.Contains(t, []string{models.SideHeads, models.SideTails}, side)
		seen[side] = true
	}
	// За 200 бросков обе стороны почти наверняка выпадут.
	assert.Len(t, seen, 2)
}
