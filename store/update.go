package store

import (
	"github.com/lwk-go/lwk/descriptor"
	"github.com/lwk-go/lwk/unblind"
)

// UpdateVersion is the wire version of Update, spec.md §4.5.
const UpdateVersion = 2

// NewTx pairs a txid with its raw serialized transaction.
type NewTx struct {
	Txid [32]byte
	Raw  []byte
}

// NewUnblind pairs an outpoint with its recovered secrets.
type NewUnblind struct {
	OutPoint OutPoint
	Secrets  unblind.TxOutSecrets
}

// TxidHeight pairs a txid with its observed height (nil = mempool).
type TxidHeight struct {
	Txid   [32]byte
	Height *Height
}

// TimestampEntry pairs a height with its observed unix timestamp.
type TimestampEntry struct {
	Height    Height
	Timestamp Timestamp
}

// ScriptEntry carries a newly discovered script and its blinding pubkey,
// spec.md §4.5 ("scripts_with_blinding_pubkey").
type ScriptEntry struct {
	Chain           descriptor.Chain
	ChildIndex      uint32
	Script          []byte
	BlindingPubKey  []byte // nil if none could be derived
}

// Update is the immutable batch the Scanner produces and Wollet.ApplyUpdate
// consumes exactly once, spec.md §3.1/§4.5.
type Update struct {
	Version      uint8
	WolletStatus uint64

	NewTxs      []NewTx
	NewUnblinds []NewUnblind

	TxidHeightNew    []TxidHeight
	TxidHeightDelete [][32]byte

	Timestamps []TimestampEntry

	Scripts []ScriptEntry

	// LastUnusedExternal/LastUnusedInternal are the gap-limit cursors the
	// scanner computed for this Update: the smallest index with no
	// observed history on each chain (spec.md §3.2), not derived from
	// Scripts — a non-cached batch's Scripts entries span every derived
	// index in the batch, used or not, and cannot stand in for the
	// cursor (spec.md §4.5, TESTABLE property 4).
	LastUnusedExternal uint32
	LastUnusedInternal uint32

	TipHeight    Height
	TipBlockHash [32]byte
}
