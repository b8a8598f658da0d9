package vesting

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func secondsGrant(value uint64, start, cliff, end, installment int64) *Grant {
	return &Grant{
		Value:       uint256.NewInt(value),
		Start:       time.Unix(start, 0).UTC(),
		Cliff:       time.Unix(cliff, 0).UTC(),
		End:         time.Unix(end, 0).UTC(),
		Installment: time.Duration(installment) * time.Second,
		Transferred: uint256.NewInt(0),
	}
}

func TestVestedAmount(t *testing.T) {
	// One month cliff, one year total, per-second installments.
	g := secondsGrant(1000, 0, 2628000, 31536000, 1)

	tests := []struct {
		name string
		at   int64
		want uint64
	}{
		{"before start", -1, 0},
		{"at start", 0, 0},
		{"just before cliff", 2627999, 0},
		{"at cliff", 2628000, 83}, // 1000 * 2628000 / 31536000, truncated
		{"mid schedule", 15768000, 500},
		{"just before end", 31535999, 999},
		{"at end", 31536000, 1000},
		{"long after end", 99999999, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VestedAmount(g, time.Unix(tt.at, 0).UTC())
			assert.Equal(t, tt.want, got.Uint64())
		})
	}
}

func TestVestedAmountFourYearSchedule(t *testing.T) {
	// 1M tokens over four years, monthly installments, one year cliff.
	const (
		month = int64(2628000)
		year  = 12 * month
	)
	g := secondsGrant(1_000_000, 0, year, 4*year, month)

	assert.Zero(t, VestedAmount(g, time.Unix(year-1, 0)).Uint64())
	assert.Equal(t, uint64(250_000), VestedAmount(g, time.Unix(year, 0)).Uint64())
	assert.Equal(t, uint64(500_000), VestedAmount(g, time.Unix(2*year, 0)).Uint64())
	assert.Equal(t, uint64(1_000_000), VestedAmount(g, time.Unix(4*year, 0)).Uint64())
}

func TestVestedAmountInstallmentTruncation(t *testing.T) {
	// Four installments with no cliff: the amount holds flat between
	// installment boundaries and steps up only when one completes.
	g := secondsGrant(400, 0, 0, 400, 100)

	assert.Equal(t, uint64(0), VestedAmount(g, time.Unix(99, 0)).Uint64())
	assert.Equal(t, uint64(100), VestedAmount(g, time.Unix(100, 0)).Uint64())
	assert.Equal(t, uint64(100), VestedAmount(g, time.Unix(199, 0)).Uint64())
	assert.Equal(t, uint64(200), VestedAmount(g, time.Unix(200, 0)).Uint64())
	assert.Equal(t, uint64(400), VestedAmount(g, time.Unix(400, 0)).Uint64())
}

func TestVestedAmountSingleInstallment(t *testing.T) {
	// installment == span degenerates to a step function at the end.
	g := secondsGrant(1000, 0, 0, 1000, 1000)

	assert.Zero(t, VestedAmount(g, time.Unix(999, 0)).Uint64())
	assert.Equal(t, uint64(1000), VestedAmount(g, time.Unix(1000, 0)).Uint64())
}

func TestVestedAmountMonotonic(t *testing.T) {
	g := secondsGrant(777, 0, 300, 1000, 7)

	prev := uint256.NewInt(0)
	for at := int64(0); at <= 1100; at += 13 {
		got := VestedAmount(g, time.Unix(at, 0))
		require.False(t, got.Lt(prev), "vested amount decreased at t=%d", at)
		prev = got
	}
	assert.Equal(t, uint64(777), prev.Uint64())
}

func TestReadyAmount(t *testing.T) {
	g := secondsGrant(400, 0, 0, 400, 100)

	t.Run("nothing transferred yet", func(t *testing.T) {
		assert.Equal(t, uint64(200), ReadyAmount(g, time.Unix(200, 0)).Uint64())
	})

	t.Run("partially transferred", func(t *testing.T) {
		g := secondsGrant(400, 0, 0, 400, 100)
		g.Transferred = uint256.NewInt(150)
		assert.Equal(t, uint64(50), ReadyAmount(g, time.Unix(200, 0)).Uint64())
	})

	t.Run("fully caught up", func(t *testing.T) {
		g := secondsGrant(400, 0, 0, 400, 100)
		g.Transferred = uint256.NewInt(200)
		assert.True(t, ReadyAmount(g, time.Unix(200, 0)).IsZero())
	})
}
