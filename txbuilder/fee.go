package txbuilder

// placeholderFeeSatoshi is the dummy fee-output value used for the first
// sizing pass, spec.md §4.6 step 1.
const placeholderFeeSatoshi = 1000

// estimatedWitnessWeightPerInput is the per-input witness weight added on
// top of the real (unsigned) extracted weight to account for a signature
// the two-pass algorithm cannot yet measure, spec.md §4.6 step 2: "add the
// summed input script-witness weight estimate". It matches the constant
// the teacher's lnwallet/input package uses for a compressed signature +
// pubkey witness stack — the only script kind a watch-only wallet ever
// spends from (descriptor.ScriptWPKH; elwsh is rejected at Parse).
const estimatedWitnessWeightPerInput = 108

func estimatedWitnessWeight(inputs []UTXO) uint64 {
	var total uint64
	for range inputs {
		total += estimatedWitnessWeightPerInput
	}
	return total
}
