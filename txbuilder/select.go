package txbuilder

import "sort"

// selectGreedy picks UTXOs of asset by descending value until amt is
// covered, stopping at first cover, spec.md §4.6: "Non-policy assets:
// greedy by value descending, stop at first cover".
func selectGreedy(utxos []UTXO, asset [32]byte, amt uint64) ([]UTXO, uint64, error) {
	var candidates []UTXO
	for _, u := range utxos {
		if u.Secrets.Asset == asset {
			candidates = append(candidates, u)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Secrets.Value > candidates[j].Secrets.Value })

	var total uint64
	for i, u := range candidates {
		total += u.Secrets.Value
		if total >= amt {
			return candidates[:i+1], total, nil
		}
	}
	return nil, 0, &ErrInsufficientFunds{Asset: asset, MissingSat: amt - total}
}

// filterAsset returns every utxo holding asset, in no particular order.
func filterAsset(utxos []UTXO, asset [32]byte) []UTXO {
	var out []UTXO
	for _, u := range utxos {
		if u.Secrets.Asset == asset {
			out = append(out, u)
		}
	}
	return out
}

// sumAsset totals the value of every utxo holding asset.
func sumAsset(utxos []UTXO, asset [32]byte) uint64 {
	var total uint64
	for _, u := range utxos {
		if u.Secrets.Asset == asset {
			total += u.Secrets.Value
		}
	}
	return total
}

// dedupe removes duplicate outpoints, keeping the first occurrence, used
// when the reissuance token input might already be present in a greedy
// selection for another asset.
func dedupe(utxos []UTXO) []UTXO {
	seen := map[[40]byte]bool{}
	var out []UTXO
	for _, u := range utxos {
		var key [40]byte
		copy(key[:32], u.OutPoint.Txid[:])
		key[32] = byte(u.OutPoint.Vout)
		key[33] = byte(u.OutPoint.Vout >> 8)
		key[34] = byte(u.OutPoint.Vout >> 16)
		key[35] = byte(u.OutPoint.Vout >> 24)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, u)
	}
	return out
}
