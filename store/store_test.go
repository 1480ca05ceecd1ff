package store

import (
	"os"
	"testing"

	"github.com/lwk-go/lwk/descriptor"
)

const testWpkhDescriptor = "ct(slip77(ab0000000000000000000000000000000000000000000000000000000000cd),elwpkh([00000000/84'/1'/0']tpubD6NzVbkrYhZ4WZaiWHz59q5EQ61an4tQciAqg9YcqRF8B5AnrFhWHhT3nu4HvuuhSNn5uNgy4Szgh94rvrvt3x3jR8cKaRPkoDqZPqeSLuz/<0;1>/*))"

func mustParse(t *testing.T, s string) *descriptor.Descriptor {
	t.Helper()
	d, err := descriptor.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", s, err)
	}
	return d
}

func TestOpenEphemeralStartsEmpty(t *testing.T) {
	s := OpenEphemeral()
	snap := s.StatsSnapshot()
	if snap.TxCount != 0 || snap.ScriptCount != 0 || snap.UnblindCount != 0 {
		t.Fatalf("expected empty store, got %+v", snap)
	}
}

func TestGetScriptBatchDerivesThenCaches(t *testing.T) {
	desc := mustParse(t, testWpkhDescriptor)
	s := OpenEphemeral()

	batch, err := s.GetScriptBatch(0, descriptor.External, desc)
	if err != nil {
		t.Fatalf("GetScriptBatch: %v", err)
	}
	if batch.Cached {
		t.Fatalf("expected a fresh batch to report Cached=false")
	}
	if len(batch.Entries) != int(BatchSize) {
		t.Fatalf("expected %d entries, got %d", BatchSize, len(batch.Entries))
	}

	for _, e := range batch.Entries {
		s.cache.insertScript(e.Script, ScriptKey{Chain: e.Chain, ChildIndex: e.ChildIndex})
	}

	again, err := s.GetScriptBatch(0, descriptor.External, desc)
	if err != nil {
		t.Fatalf("GetScriptBatch (second call): %v", err)
	}
	if !again.Cached {
		t.Fatalf("expected the second identical batch to be served from cache")
	}
	for i, e := range again.Entries {
		if string(e.Script) != string(batch.Entries[i].Script) {
			t.Fatalf("cached script %d differs from derived script", i)
		}
	}
}

func TestInsertUpdateRejectsStaleStatus(t *testing.T) {
	s := OpenEphemeral()
	u := &Update{Version: UpdateVersion, WolletStatus: s.Checksum() + 1, TipHeight: 1}

	err := s.InsertUpdate(u)
	if err == nil {
		t.Fatalf("expected ErrUpdateOnDifferentStatus, got nil")
	}
	if _, ok := err.(*ErrUpdateOnDifferentStatus); !ok {
		t.Fatalf("expected *ErrUpdateOnDifferentStatus, got %T: %v", err, err)
	}
}

func TestInsertUpdateRejectsRegressingTip(t *testing.T) {
	s := OpenEphemeral()

	first := &Update{Version: UpdateVersion, WolletStatus: s.Checksum(), TipHeight: 100}
	if err := s.InsertUpdate(first); err != nil {
		t.Fatalf("first InsertUpdate: %v", err)
	}

	stale := &Update{Version: UpdateVersion, WolletStatus: s.Checksum(), TipHeight: 50}
	err := s.InsertUpdate(stale)
	if err == nil {
		t.Fatalf("expected ErrUpdateHeightTooOld, got nil")
	}
	if _, ok := err.(*ErrUpdateHeightTooOld); !ok {
		t.Fatalf("expected *ErrUpdateHeightTooOld, got %T: %v", err, err)
	}
}

func TestInsertUpdateMergesState(t *testing.T) {
	s := OpenEphemeral()

	txid := [32]byte{1, 2, 3}
	u := &Update{
		Version:      UpdateVersion,
		WolletStatus: s.Checksum(),
		NewTxs:       []NewTx{{Txid: txid, Raw: []byte("raw-tx")}},
		TipHeight:    10,
	}
	if err := s.InsertUpdate(u); err != nil {
		t.Fatalf("InsertUpdate: %v", err)
	}
	if s.cache.TipHeight != 10 {
		t.Fatalf("expected tip height 10, got %d", s.cache.TipHeight)
	}
	if string(s.cache.AllTxs[txid]) != "raw-tx" {
		t.Fatalf("expected raw tx to be stored")
	}
}

func TestChecksumStableAcrossEquivalentMapOrdering(t *testing.T) {
	s1 := OpenEphemeral()
	s2 := OpenEphemeral()

	entries := []struct {
		txid [32]byte
		raw  string
	}{
		{[32]byte{1}, "a"},
		{[32]byte{2}, "b"},
		{[32]byte{3}, "c"},
	}

	for _, e := range entries {
		s1.cache.AllTxs[e.txid] = []byte(e.raw)
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		s2.cache.AllTxs[e.txid] = []byte(e.raw)
	}

	if s1.Checksum() != s2.Checksum() {
		t.Fatalf("expected checksum to be independent of insertion order")
	}
}

func TestOpenRecoversFromCorruptFile(t *testing.T) {
	dir, err := os.MkdirTemp("", "lwk-store-test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(dir+"/cache", []byte("not a valid envelope"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	desc := mustParse(t, testWpkhDescriptor)
	s, err := Open(dir, desc)
	if err != nil {
		t.Fatalf("Open should recover from a corrupt cache file, got error: %v", err)
	}
	if snap := s.StatsSnapshot(); snap.TxCount != 0 {
		t.Fatalf("expected recovered store to start empty, got %+v", snap)
	}
}

func TestOpenFlushRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "lwk-store-test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	desc := mustParse(t, testWpkhDescriptor)
	s, err := Open(dir, desc)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.cache.AllTxs[[32]byte{9}] = []byte("persisted")
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reopened, err := Open(dir, desc)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if string(reopened.cache.AllTxs[[32]byte{9}]) != "persisted" {
		t.Fatalf("expected reopened store to recover flushed transaction")
	}
}
