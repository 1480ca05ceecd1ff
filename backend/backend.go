// Package backend defines the narrow, transport-agnostic interface the
// scanner consumes (spec.md §4.4), grounded on lwk_wollet's
// BlockchainBackend trait (clients/mod.rs) and on the teacher's
// SPVSyncer/NetworkBackend split (lnwallet/dcrwallet/spvsync.go): a small
// swappable backend behind a config-selected concrete implementation.
package backend

import (
	"context"
	"errors"

	"github.com/lwk-go/lwk/descriptor"
	"github.com/vulpemventures/go-elements/transaction"
)

// Capability is a bitmask of optional backend features, spec.md §4.4
// ("capabilities() → set<{Waterfalls}>").
type Capability uint8

const (
	// CapabilityWaterfalls marks support for the bulk descriptor-scan fast
	// path (GetHistoryWaterfalls).
	CapabilityWaterfalls Capability = 1 << iota
)

func (c Capability) Has(flag Capability) bool { return c&flag != 0 }

// HeightTag distinguishes confirmation states for a HistoryEntry, spec.md
// §4.4: -1 unconfirmed-with-unconfirmed-parent, 0
// unconfirmed-with-confirmed-parents, >0 confirmed height.
type HeightTag int32

const (
	HeightUnconfirmedUnconfirmedParent HeightTag = -1
	HeightUnconfirmedConfirmedParent   HeightTag = 0
)

// BlockHeader is the minimal header shape the scanner needs.
type BlockHeader struct {
	Height    uint32
	BlockHash [32]byte
	Time      uint32
}

// HistoryEntry is one row of a script's history, spec.md §4.4.
type HistoryEntry struct {
	Txid      [32]byte
	Height    HeightTag
	BlockHash *[32]byte
}

// WaterfallsPage is the per-round-trip bundle a waterfalls-capable backend
// returns for GetHistoryWaterfalls, spec.md §4.4's "Waterfalls fast path".
type WaterfallsPage struct {
	// ExternalHistory/InternalHistory are indexed by child index, up to
	// (and including) ToIndex.
	ExternalHistory [][]HistoryEntry
	InternalHistory [][]HistoryEntry

	NewTxs             []*transaction.Transaction
	HeightBlockHash    map[uint32][32]byte
	LastUnusedExternal uint32
	LastUnusedInternal uint32
}

var (
	// ErrUnavailable is returned when a backend cannot be reached at all,
	// spec.md §7 ("Backend / transport" kind, BackendUnavailable).
	ErrUnavailable = errors.New("backend unavailable")

	// ErrWaterfallsUnsupported is returned by GetHistoryWaterfalls when the
	// backend did not advertise CapabilityWaterfalls.
	ErrWaterfallsUnsupported = errors.New("backend does not support waterfalls")

	// ErrUsingWaterfallsWithElip151 guards spec.md §4.4's refusal rule: an
	// ELIP151 descriptor must never be sent to a waterfalls endpoint.
	ErrUsingWaterfallsWithElip151 = errors.New("refusing to use waterfalls fast path with an ELIP151 descriptor")
)

// Backend is the scanner's sole dependency on the outside world, spec.md
// §4.4. Implementations may be purely blocking (the electrum package) or
// wrap an asynchronous transport; the context is the caller's
// suspension/cancellation point in either case.
type Backend interface {
	// Tip returns the current chain tip.
	Tip(ctx context.Context) (BlockHeader, error)

	// Broadcast relays tx to the network and returns its txid.
	Broadcast(ctx context.Context, tx *transaction.Transaction) ([32]byte, error)

	// GetTransactions returns one transaction per txid, in the same order.
	GetTransactions(ctx context.Context, txids [][32]byte) ([]*transaction.Transaction, error)

	// GetHeaders returns headers for the requested heights. known lets the
	// caller supply already-known block hashes to avoid a round trip.
	GetHeaders(ctx context.Context, heights []uint32, known map[uint32][32]byte) ([]BlockHeader, error)

	// GetScriptsHistory returns, for each script (same order as input),
	// its known history entries.
	GetScriptsHistory(ctx context.Context, scripts [][]byte) ([][]HistoryEntry, error)

	// Capabilities reports which optional fast paths this backend supports.
	Capabilities() Capability

	// GetHistoryWaterfalls performs the bulk descriptor scan fast path.
	// Callers MUST check Capabilities().Has(CapabilityWaterfalls) and MUST
	// NOT call this for an ELIP151 descriptor (spec.md §4.4).
	GetHistoryWaterfalls(ctx context.Context, desc *descriptor.Descriptor, toIndex uint32) (*WaterfallsPage, error)

	// UtxoOnly reports whether this backend only exposes live UTXOs rather
	// than full history (spec.md §4.4).
	UtxoOnly() bool
}
