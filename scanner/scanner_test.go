package scanner

import (
	"context"
	"testing"

	"github.com/lwk-go/lwk/backend"
	"github.com/lwk-go/lwk/descriptor"
	"github.com/lwk-go/lwk/store"
	"github.com/vulpemventures/go-elements/transaction"
)

const testDescriptor = "ct(slip77(ab0000000000000000000000000000000000000000000000000000000000cd),elwpkh([00000000/84'/1'/0']tpubD6NzVbkrYhZ4WZaiWHz59q5EQ61an4tQciAqg9YcqRF8B5AnrFhWHhT3nu4HvuuhSNn5uNgy4Szgh94rvrvt3x3jR8cKaRPkoDqZPqeSLuz/0/*))"

// fakeBackend is an in-memory Backend used to exercise the gap-limit scan
// loop without any real network, grounded on the teacher's own pattern of
// testing SPV/backend consumers against an in-process fake rather than a
// live server.
type fakeBackend struct {
	tip          backend.BlockHeader
	history      map[string][]backend.HistoryEntry
	capabilities backend.Capability
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tip:     backend.BlockHeader{Height: 100, BlockHash: [32]byte{1}},
		history: map[string][]backend.HistoryEntry{},
	}
}

func (f *fakeBackend) Tip(ctx context.Context) (backend.BlockHeader, error) { return f.tip, nil }

func (f *fakeBackend) Broadcast(ctx context.Context, tx *transaction.Transaction) ([32]byte, error) {
	return [32]byte{}, nil
}

func (f *fakeBackend) GetTransactions(ctx context.Context, txids [][32]byte) ([]*transaction.Transaction, error) {
	return nil, nil
}

func (f *fakeBackend) GetHeaders(ctx context.Context, heights []uint32, known map[uint32][32]byte) ([]backend.BlockHeader, error) {
	out := make([]backend.BlockHeader, 0, len(heights))
	for _, h := range heights {
		out = append(out, backend.BlockHeader{Height: h, Time: h * 10})
	}
	return out, nil
}

func (f *fakeBackend) GetScriptsHistory(ctx context.Context, scripts [][]byte) ([][]backend.HistoryEntry, error) {
	out := make([][]backend.HistoryEntry, len(scripts))
	for i, s := range scripts {
		out[i] = f.history[string(s)]
	}
	return out, nil
}

func (f *fakeBackend) Capabilities() backend.Capability { return f.capabilities }

func (f *fakeBackend) GetHistoryWaterfalls(ctx context.Context, desc *descriptor.Descriptor, toIndex uint32) (*backend.WaterfallsPage, error) {
	return nil, backend.ErrWaterfallsUnsupported
}

func (f *fakeBackend) UtxoOnly() bool { return false }

func TestScanChainStopsAtGapLimit(t *testing.T) {
	desc, err := descriptor.Parse(testDescriptor)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	st := store.OpenEphemeral()
	be := newFakeBackend()
	s := &Scanner{be: be}

	acc, err := s.scanChain(context.Background(), st, desc, descriptor.External, 0)
	if err != nil {
		t.Fatalf("scanChain: %v", err)
	}
	if acc.lastUnused != 0 {
		t.Fatalf("expected lastUnused 0 with no history, got %d", acc.lastUnused)
	}
	if len(acc.newScripts) != int(store.BatchSize) {
		t.Fatalf("expected exactly one batch (%d scripts) to be derived, got %d", store.BatchSize, len(acc.newScripts))
	}
}

func TestFullScanOrWaterfallsRefusesElip151(t *testing.T) {
	elip151Descriptor := "ct(elip151,elwpkh([00000000/84'/1'/0']tpubD6NzVbkrYhZ4WZaiWHz59q5EQ61an4tQciAqg9YcqRF8B5AnrFhWHhT3nu4HvuuhSNn5uNgy4Szgh94rvrvt3x3jR8cKaRPkoDqZPqeSLuz/0/*))"
	desc, err := descriptor.Parse(elip151Descriptor)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	st := store.OpenEphemeral()
	be := newFakeBackend()
	be.capabilities = backend.CapabilityWaterfalls
	s := New(be)

	// A successful call (nil error, possibly nil update) indicates the
	// per-script path ran; GetHistoryWaterfalls on this fake always fails,
	// so if it had been used the call would have propagated that error.
	if _, err := s.FullScanOrWaterfalls(context.Background(), st, desc, 0); err != nil {
		t.Fatalf("expected the ELIP151 guard to force the per-script path, got: %v", err)
	}
}
