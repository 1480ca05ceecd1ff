package wollet

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/lwk-go/lwk/backend"
	"github.com/lwk-go/lwk/descriptor"
	"github.com/lwk-go/lwk/scanner"
	"github.com/lwk-go/lwk/store"
	"github.com/lwk-go/lwk/unblind"
	"github.com/vulpemventures/go-elements/transaction"
)

const testDescriptor = "ct(slip77(ab0000000000000000000000000000000000000000000000000000000000cd),elwpkh([00000000/84'/1'/0']tpubD6NzVbkrYhZ4WZaiWHz59q5EQ61an4tQciAqg9YcqRF8B5AnrFhWHhT3nu4HvuuhSNn5uNgy4Szgh94rvrvt3x3jR8cKaRPkoDqZPqeSLuz/0/*))"

func mustParse(t *testing.T) *descriptor.Descriptor {
	t.Helper()
	d, err := descriptor.Parse(testDescriptor)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return d
}

func TestAddressUsesLastUnusedCursorByDefault(t *testing.T) {
	w := New(descriptor.LiquidTestnet, mustParse(t))
	w.store.AdvanceCursors(3, 0)

	res, err := w.Address(nil)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if res.Index != 3 {
		t.Fatalf("expected default address index 3, got %d", res.Index)
	}
}

func TestAddressExplicitIndexOverridesCursor(t *testing.T) {
	w := New(descriptor.LiquidTestnet, mustParse(t))
	w.store.AdvanceCursors(3, 0)

	idx := uint32(7)
	res, err := w.Address(&idx)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if res.Index != 7 {
		t.Fatalf("expected explicit address index 7, got %d", res.Index)
	}
}

func TestBalanceSumsUnspentOutputsByAsset(t *testing.T) {
	w := New(descriptor.LiquidTestnet, mustParse(t))

	lbtc := [32]byte{1}
	otherAsset := [32]byte{2}

	w.store.Cache().Unblinded[store.OutPoint{Txid: [32]byte{9}, Vout: 0}] = unblind.TxOutSecrets{Asset: lbtc, Value: 100000}
	w.store.Cache().Unblinded[store.OutPoint{Txid: [32]byte{9}, Vout: 1}] = unblind.TxOutSecrets{Asset: lbtc, Value: 50000}
	w.store.Cache().Unblinded[store.OutPoint{Txid: [32]byte{10}, Vout: 0}] = unblind.TxOutSecrets{Asset: otherAsset, Value: 7}

	balances, err := w.Balance()
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balances[lbtc] != 150000 {
		t.Fatalf("expected lbtc balance 150000, got %d", balances[lbtc])
	}
	if balances[otherAsset] != 7 {
		t.Fatalf("expected other-asset balance 7, got %d", balances[otherAsset])
	}
}

func TestUtxosExcludesSpentOutpoints(t *testing.T) {
	w := New(descriptor.LiquidTestnet, mustParse(t))

	unspentOp := store.OutPoint{Txid: [32]byte{1}, Vout: 0}
	spentOp := store.OutPoint{Txid: [32]byte{2}, Vout: 0}

	w.store.Cache().Unblinded[unspentOp] = unblind.TxOutSecrets{Asset: [32]byte{1}, Value: 1000}
	w.store.Cache().Unblinded[spentOp] = unblind.TxOutSecrets{Asset: [32]byte{1}, Value: 2000}

	spendingTx := &transaction.Transaction{
		Version: 2,
		Inputs: []*transaction.TxInput{
			{Hash: spentOp.Txid[:], Index: spentOp.Vout},
		},
	}
	raw, err := spendingTx.ToHex()
	if err != nil {
		t.Fatalf("ToHex: %v", err)
	}
	rawBytes, err := hex.DecodeString(raw)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	w.store.Cache().AllTxs[[32]byte{3}] = rawBytes

	utxos, err := w.Utxos()
	if err != nil {
		t.Fatalf("Utxos: %v", err)
	}
	if len(utxos) != 1 {
		t.Fatalf("expected 1 unspent utxo, got %d", len(utxos))
	}
	if utxos[0].OutPoint != unspentOp {
		t.Fatalf("expected the surviving utxo to be the unspent one, got %+v", utxos[0].OutPoint)
	}
}

func TestApplyUpdateRejectsStaleStatus(t *testing.T) {
	w := New(descriptor.LiquidTestnet, mustParse(t))

	u := &store.Update{Version: store.UpdateVersion, WolletStatus: w.store.Checksum() + 1, TipHeight: 5}
	if err := w.ApplyUpdate(u); err == nil {
		t.Fatalf("expected ApplyUpdate to reject a stale wollet_status")
	}
}

// fakeBackend is an in-memory backend.Backend double keyed by raw script
// bytes, used to drive Scanner against a wallet without any network or
// Elements node, spec.md §8's "end-to-end against an in-memory fake
// backend" scenarios.
type fakeBackend struct {
	tip     backend.BlockHeader
	history map[string][]backend.HistoryEntry
	txs     map[[32]byte]*transaction.Transaction
}

func (f *fakeBackend) Tip(ctx context.Context) (backend.BlockHeader, error) { return f.tip, nil }

func (f *fakeBackend) Broadcast(ctx context.Context, tx *transaction.Transaction) ([32]byte, error) {
	return [32]byte{}, nil
}

func (f *fakeBackend) GetTransactions(ctx context.Context, txids [][32]byte) ([]*transaction.Transaction, error) {
	out := make([]*transaction.Transaction, len(txids))
	for i, id := range txids {
		out[i] = f.txs[id]
	}
	return out, nil
}

func (f *fakeBackend) GetHeaders(ctx context.Context, heights []uint32, known map[uint32][32]byte) ([]backend.BlockHeader, error) {
	return nil, nil
}

func (f *fakeBackend) GetScriptsHistory(ctx context.Context, scripts [][]byte) ([][]backend.HistoryEntry, error) {
	out := make([][]backend.HistoryEntry, len(scripts))
	for i, s := range scripts {
		out[i] = f.history[string(s)]
	}
	return out, nil
}

func (f *fakeBackend) Capabilities() backend.Capability { return 0 }

func (f *fakeBackend) GetHistoryWaterfalls(ctx context.Context, desc *descriptor.Descriptor, toIndex uint32) (*backend.WaterfallsPage, error) {
	return nil, backend.ErrWaterfallsUnsupported
}

func (f *fakeBackend) UtxoOnly() bool { return false }

// TestScanToApplySetsCursorToFirstUnusedIndex funds only child index 25 on
// the external chain, then runs a real Scanner.FullScanToIndex against a
// fake backend and applies the resulting Update. The gap-limit cursor
// must land on 26, the smallest index with no observed history, not 60
// (the end of the last scanned 20-wide batch) or any other batch-derived
// value — spec.md §3.2, TESTABLE property 4.
func TestScanToApplySetsCursorToFirstUnusedIndex(t *testing.T) {
	w := New(descriptor.LiquidTestnet, mustParse(t))
	desc := w.Descriptor()

	const fundedIndex = 25
	script, err := desc.ScriptPubKeyAt(descriptor.External, fundedIndex)
	if err != nil {
		t.Fatalf("ScriptPubKeyAt: %v", err)
	}

	fundingTx := &transaction.Transaction{
		Version: 2,
		Outputs: []*transaction.TxOutput{{Script: script}},
	}
	txHash := fundingTx.TxHash()
	var txid [32]byte
	copy(txid[:], txHash[:])

	be := &fakeBackend{
		tip: backend.BlockHeader{Height: 100},
		history: map[string][]backend.HistoryEntry{
			string(script): {{Txid: txid, Height: 10}},
		},
		txs: map[[32]byte]*transaction.Transaction{txid: fundingTx},
	}

	s := scanner.New(be)
	update, err := s.FullScanToIndex(context.Background(), w.Store(), desc, fundedIndex)
	if err != nil {
		t.Fatalf("FullScanToIndex: %v", err)
	}
	if update == nil {
		t.Fatalf("expected a non-nil Update")
	}
	if update.LastUnusedExternal != fundedIndex+1 {
		t.Fatalf("expected Update.LastUnusedExternal %d, got %d", fundedIndex+1, update.LastUnusedExternal)
	}

	if err := w.ApplyUpdate(update); err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	if got := w.store.Cache().LastUnusedExternal; got != fundedIndex+1 {
		t.Fatalf("expected last_unused_external %d, got %d", fundedIndex+1, got)
	}
}
