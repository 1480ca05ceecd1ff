package backend

import (
	"context"
	"testing"

	"github.com/lwk-go/lwk/descriptor"
	"github.com/vulpemventures/go-elements/transaction"
)

type stubBackend struct {
	tip          BlockHeader
	tipErr       error
	capabilities Capability
}

func (s *stubBackend) Tip(ctx context.Context) (BlockHeader, error) { return s.tip, s.tipErr }
func (s *stubBackend) Broadcast(ctx context.Context, tx *transaction.Transaction) ([32]byte, error) {
	return [32]byte{}, nil
}
func (s *stubBackend) GetTransactions(ctx context.Context, txids [][32]byte) ([]*transaction.Transaction, error) {
	return nil, nil
}
func (s *stubBackend) GetHeaders(ctx context.Context, heights []uint32, known map[uint32][32]byte) ([]BlockHeader, error) {
	return nil, nil
}
func (s *stubBackend) GetScriptsHistory(ctx context.Context, scripts [][]byte) ([][]HistoryEntry, error) {
	return nil, nil
}
func (s *stubBackend) Capabilities() Capability { return s.capabilities }
func (s *stubBackend) GetHistoryWaterfalls(ctx context.Context, desc *descriptor.Descriptor, toIndex uint32) (*WaterfallsPage, error) {
	return nil, ErrWaterfallsUnsupported
}
func (s *stubBackend) UtxoOnly() bool { return false }

func TestMultiFallsBackOnUnavailable(t *testing.T) {
	primary := &stubBackend{tipErr: ErrUnavailable}
	secondary := &stubBackend{tip: BlockHeader{Height: 42}}
	m := NewMulti(primary, secondary)

	tip, err := m.Tip(context.Background())
	if err != nil {
		t.Fatalf("Tip: %v", err)
	}
	if tip.Height != 42 {
		t.Fatalf("expected fallback to secondary backend's tip, got height %d", tip.Height)
	}
}

func TestMultiCapabilitiesUnion(t *testing.T) {
	m := NewMulti(&stubBackend{}, &stubBackend{capabilities: CapabilityWaterfalls})
	if !m.Capabilities().Has(CapabilityWaterfalls) {
		t.Fatalf("expected union capabilities to include Waterfalls")
	}
}

func TestCapabilityHas(t *testing.T) {
	var c Capability
	if c.Has(CapabilityWaterfalls) {
		t.Fatalf("zero-value capability should not report Waterfalls support")
	}
	c |= CapabilityWaterfalls
	if !c.Has(CapabilityWaterfalls) {
		t.Fatalf("expected Has to report the set bit")
	}
}
