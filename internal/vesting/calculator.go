package vesting

import (
	"time"

	"github.com/holiman/uint256"

	id "trustee/pkg/domain"
)

// VestedAmount computes how much of the grant has vested at the given
// instant. Deterministic and side-effect-free.
//
// Before the cliff nothing vests. At or after the end the full value is
// released unconditionally. In between, elapsed time is truncated to whole
// installments and the value scaled proportionally with floor division, so
// the running total may sit marginally below the exact fraction until the
// end clears the remainder.
func VestedAmount(g *Grant, at time.Time) *id.Amount {
	if at.Before(g.Cliff) {
		return uint256.NewInt(0)
	}
	if !at.Before(g.End) {
		return g.Value.Clone()
	}

	// Integer seconds throughout; all divisions truncate toward zero.
	span := g.End.Unix() - g.Start.Unix()
	installment := int64(g.Installment / time.Second)
	elapsed := at.Unix() - g.Start.Unix()
	vestedSpan := (elapsed / installment) * installment

	// value * vestedSpan / span with a 512-bit intermediate; the result
	// never exceeds value, so overflow cannot occur.
	vested, _ := new(uint256.Int).MulDivOverflow(
		g.Value,
		uint256.NewInt(uint64(vestedSpan)),
		uint256.NewInt(uint64(span)),
	)
	return vested
}

// ReadyAmount returns how much the beneficiary could claim right now:
// vested minus already transferred. Monotonic time and monotonic progress
// keep this non-negative; a clamp guards against a store regression.
func ReadyAmount(g *Grant, at time.Time) *id.Amount {
	vested := VestedAmount(g, at)
	if vested.Lt(g.Transferred) {
		return uint256.NewInt(0)
	}
	return vested.Sub(vested, g.Transferred)
}
