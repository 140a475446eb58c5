// Package config holds the tunable constants of the automata core that
// are not card-shaped (those live in internal/card): energy behavior,
// the cost clock, bounty coefficients, and the embedded admin key.
package config

import (
	_ "embed"
	"encoding/binary"
)

// EnergyInit is the energy a freshly installed player starts with.
const EnergyInit uint16 = 256

// EnergyRefillPerPayCost is added (saturating at 0xFFFF) every time
// pay_cost succeeds (spec §4.3).
const EnergyRefillPerPayCost uint16 = 20

// CostClockPeriod is the initial and reset value of cost_info (spec §3).
const CostClockPeriod uint16 = 5

// BountyCostBase and BountyRewardBase parameterize the cost/reward
// curves in spec §4.5: cost(r) = BountyCostBase * 2^r,
// reward(r) = BountyRewardBase * (r+1).
const (
	BountyCostBase   uint32 = 20
	BountyRewardBase uint32 = 4
)

// BountyResourceCount is the number of redeemable resource slots
// (len(redeem_info), spec §3).
const BountyResourceCount = 8

// SupplierInit is the global economic counter's starting value (spec §3).
const SupplierInit uint64 = 1000

// PreemptInterval: the host may break a processing batch every time
// counter % PreemptInterval == 0 (spec §4.6).
const PreemptInterval uint64 = 30

//go:embed admin_key.bin
var adminKeyBytes []byte

// DefaultAdminPubKey decodes the embedded 32-byte admin public key into
// four little-endian 64-bit words, matching spec §6's envelope
// authentication scheme. Hosts/tests that need a different admin key
// pass their own to automata.New instead of using this default.
func DefaultAdminPubKey() [4]uint64 {
	var out [4]uint64
	for i := 0; i < 4; i++ {
		out[i] = binary.LittleEndian.Uint64(adminKeyBytes[i*8 : i*8+8])
	}
	return out
}
