package store

import (
	"encoding/hex"

	"github.com/vulpemventures/go-elements/transaction"
)

// decodeInputs parses a raw serialized transaction and returns the set of
// outpoints it spends, used by Spent() to compute the wallet's view of
// consumed coins (spec.md §4.2).
func decodeInputs(raw []byte) ([]OutPoint, error) {
	tx, err := transaction.NewTxFromHex(hex.EncodeToString(raw))
	if err != nil {
		return nil, err
	}
	out := make([]OutPoint, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		var txid [32]byte
		// in.Hash is internal (reversed) byte order; txid maps are kept in
		// the same reversed order throughout this package for consistency
		// with AllTxs keys, so no reversal is applied here.
		copy(txid[:], in.Hash)
		out = append(out, OutPoint{Txid: txid, Vout: in.Index})
	}
	return out, nil
}
