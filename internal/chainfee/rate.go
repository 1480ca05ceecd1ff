// Package chainfee holds the small fee-rate conversion helpers for the tx
// builder, generalized from the teacher's
// lnwallet/chainfee.AtomPerKByte to Elements' sat/kvB convention.
package chainfee

// SatPerKVByte is a fee rate expressed in satoshis per kilo-virtual-byte,
// the unit spec.md §4.6 uses for TxBuilder.FeeRate.
type SatPerKVByte uint64

// DefaultFeeRate is the engine's configured floor, matching spec.md §4.6.
const DefaultFeeRate SatPerKVByte = 100

// FeeForVSize returns the fee, in satoshis, required to pay for a
// transaction of the given virtual size at this rate, rounding up.
func (r SatPerKVByte) FeeForVSize(vsize uint64) uint64 {
	return (uint64(r)*vsize + 999) / 1000
}

// VSizeFromWeight converts a transaction's weight units to virtual bytes,
// rounding up per BIP141.
func VSizeFromWeight(weight uint64) uint64 {
	return (weight + 3) / 4
}
