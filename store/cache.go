// Package store is the durable, authenticated-encrypted wallet cache
// described in spec.md §3/§4.2, grounded on lwk_wollet/src/store.rs's
// RawCache/Store split (one in-memory struct, one persister) and on the
// teacher's watchtower/wtdb encrypted-db-per-client layout for the
// on-disk envelope shape.
package store

import (
	"sort"

	"github.com/lwk-go/lwk/descriptor"
	"github.com/lwk-go/lwk/unblind"
)

// BatchSize is the number of consecutive derivations scanned per gap-limit
// batch, spec.md §4.2.
const BatchSize = 20

type Height = uint32
type Timestamp = uint32

// ScriptKey identifies a derived script by its chain and child index,
// the inverse-map key of RawCache.Scripts.
type ScriptKey struct {
	Chain      descriptor.Chain
	ChildIndex uint32
}

// OutPoint is the (txid, vout) pair used as Unblinded's key.
type OutPoint struct {
	Txid [32]byte
	Vout uint32
}

// RawCache is the serializable payload persisted to disk, field for field
// matching lwk_wollet::store::RawCache (spec.md §3.1).
type RawCache struct {
	// AllTxs holds every transaction the wallet has observed, keyed by
	// txid, including transactions referenced only as prevouts.
	AllTxs map[[32]byte][]byte // txid -> raw serialized transaction

	// Paths is the forward map: script -> (chain, child index).
	Paths map[string]ScriptKey

	// Scripts is the inverse of Paths: (chain, child index) -> script.
	Scripts map[ScriptKey]string

	// Heights holds only wallet-relevant txids; a nil/absent value in
	// the map pointer slot means unconfirmed (mempool).
	Heights map[[32]byte]*Height

	// Unblinded holds the recovered secrets for every output we could
	// decrypt.
	Unblinded map[OutPoint]unblind.TxOutSecrets

	// Timestamps holds unix seconds for every height with a wallet tx.
	Timestamps map[Height]Timestamp

	TipHeight    Height
	TipBlockHash [32]byte

	LastUnusedExternal uint32
	LastUnusedInternal uint32
}

func newRawCache() *RawCache {
	return &RawCache{
		AllTxs:     map[[32]byte][]byte{},
		Paths:      map[string]ScriptKey{},
		Scripts:    map[ScriptKey]string{},
		Heights:    map[[32]byte]*Height{},
		Unblinded:  map[OutPoint]unblind.TxOutSecrets{},
		Timestamps: map[Height]Timestamp{},
	}
}

// insertScript is the single insertion point for the Paths/Scripts
// bijection, per spec.md §9 ("Implementations MUST keep them in sync at a
// single insertion point").
func (c *RawCache) insertScript(script []byte, key ScriptKey) {
	c.Paths[string(script)] = key
	c.Scripts[key] = string(script)
}

// sortedTxids returns every txid in AllTxs in ascending byte order, used
// both for deterministic serialization review and for Checksum.
func (c *RawCache) sortedTxids() [][32]byte {
	out := make([][32]byte, 0, len(c.AllTxs))
	for k := range c.AllTxs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		for b := 0; b < 32; b++ {
			if out[i][b] != out[j][b] {
				return out[i][b] < out[j][b]
			}
		}
		return false
	})
	return out
}
