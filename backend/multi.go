package backend

import (
	"context"
	"errors"

	"github.com/decred/slog"
	"github.com/lwk-go/lwk/descriptor"
	"github.com/lwk-go/lwk/internal/logmgr"
	"github.com/vulpemventures/go-elements/transaction"
)

var log = logmgr.NewPkgLogger("BKND")

// UseLogger configures the package-level logger.
func UseLogger(l slog.Logger) { log = l }

// Multi fronts a primary Backend and falls back to a secondary on
// ErrUnavailable, grounded on the teacher's SPVSyncer reconnect loop
// (lnwallet/dcrwallet/spvsync.go): rather than retrying the same backend
// forever, each suspension point tries the next backend in line.
type Multi struct {
	backends []Backend
}

// NewMulti returns a Multi that tries each backend in order, per call,
// falling through to the next only when the previous returns
// ErrUnavailable (or, for GetHistoryWaterfalls, ErrWaterfallsUnsupported).
// Any other error is returned at once.
func NewMulti(backends ...Backend) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) each(fn func(Backend) error) error {
	var lastErr error
	for _, b := range m.backends {
		err := fn(b)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, ErrUnavailable) && !errors.Is(err, ErrWaterfallsUnsupported) {
			return err
		}
		log.Warnf("backend call failed, trying next: %v", err)
	}
	return lastErr
}

func (m *Multi) Tip(ctx context.Context) (BlockHeader, error) {
	var out BlockHeader
	err := m.each(func(b Backend) error {
		var e error
		out, e = b.Tip(ctx)
		return e
	})
	return out, err
}

func (m *Multi) Broadcast(ctx context.Context, tx *transaction.Transaction) ([32]byte, error) {
	var out [32]byte
	err := m.each(func(b Backend) error {
		var e error
		out, e = b.Broadcast(ctx, tx)
		return e
	})
	return out, err
}

func (m *Multi) GetTransactions(ctx context.Context, txids [][32]byte) ([]*transaction.Transaction, error) {
	var out []*transaction.Transaction
	err := m.each(func(b Backend) error {
		var e error
		out, e = b.GetTransactions(ctx, txids)
		return e
	})
	return out, err
}

func (m *Multi) GetHeaders(ctx context.Context, heights []uint32, known map[uint32][32]byte) ([]BlockHeader, error) {
	var out []BlockHeader
	err := m.each(func(b Backend) error {
		var e error
		out, e = b.GetHeaders(ctx, heights, known)
		return e
	})
	return out, err
}

func (m *Multi) GetScriptsHistory(ctx context.Context, scripts [][]byte) ([][]HistoryEntry, error) {
	var out [][]HistoryEntry
	err := m.each(func(b Backend) error {
		var e error
		out, e = b.GetScriptsHistory(ctx, scripts)
		return e
	})
	return out, err
}

// Capabilities is the union of every backend's capabilities: a consumer
// that honors Capabilities() correctly will still route waterfalls calls
// only to a backend that advertised it (GetHistoryWaterfalls tries each in
// turn and only the capable ones will succeed).
func (m *Multi) Capabilities() Capability {
	var c Capability
	for _, b := range m.backends {
		c |= b.Capabilities()
	}
	return c
}

func (m *Multi) GetHistoryWaterfalls(ctx context.Context, desc *descriptor.Descriptor, toIndex uint32) (*WaterfallsPage, error) {
	var out *WaterfallsPage
	err := m.each(func(b Backend) error {
		if !b.Capabilities().Has(CapabilityWaterfalls) {
			return ErrWaterfallsUnsupported
		}
		var e error
		out, e = b.GetHistoryWaterfalls(ctx, desc, toIndex)
		return e
	})
	return out, err
}

// UtxoOnly reports the primary backend's mode; Multi assumes its backends
// agree on this (mixing a full-history and a utxo-only backend behind one
// Multi is a misconfiguration).
func (m *Multi) UtxoOnly() bool {
	if len(m.backends) == 0 {
		return false
	}
	return m.backends[0].UtxoOnly()
}
