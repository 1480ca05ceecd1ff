package store

import (
	"hash/fnv"
	"sort"

	"github.com/decred/slog"
	"github.com/lwk-go/lwk/descriptor"
	"github.com/lwk-go/lwk/internal/logmgr"
)

var log = logmgr.NewPkgLogger("STOR")

// UseLogger configures the package-level logger, per the teacher's
// per-subsystem UseLogger convention.
func UseLogger(l slog.Logger) { log = l }

// ScriptBatch is the result of a single BatchSize-wide derivation request,
// spec.md §4.2.
type ScriptBatch struct {
	Cached  bool
	Entries []ScriptBatchEntry
}

// ScriptBatchEntry is one derived (or cached) script within a batch.
type ScriptBatchEntry struct {
	Script     []byte
	Chain      descriptor.Chain
	ChildIndex uint32
}

// Store is the in-memory cache plus its (optional) on-disk persister.
// A nil persister means an ephemeral, in-memory-only store (used by tests
// and by callers who explicitly opt out of persistence).
type Store struct {
	cache     *RawCache
	persister *persister
}

// Open loads (or creates) the encrypted cache rooted at dir, keyed by
// desc's string form. A decryption or deserialization failure resets the
// cache to empty rather than propagating an error, per spec.md §4.2's
// load semantics.
func Open(dir string, desc *descriptor.Descriptor) (*Store, error) {
	p, err := newPersister(dir, desc.Raw())
	if err != nil {
		return nil, err
	}
	cache, err := p.load()
	if err != nil {
		log.Warnf("initializing cache as empty: %v", err)
		cache = newRawCache()
	}
	return &Store{cache: cache, persister: p}, nil
}

// OpenEphemeral returns a Store with no on-disk backing; Flush is then a
// no-op. Useful for tests and for callers running against a read-only
// snapshot.
func OpenEphemeral() *Store {
	return &Store{cache: newRawCache()}
}

// Flush persists the current cache state, spec.md §4.2.
func (s *Store) Flush() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.flush(s.cache)
}

// Close flushes and releases the store, mirroring the Rust Store's Drop
// impl (spec.md §5: "flushed on drop").
func (s *Store) Close() error {
	return s.Flush()
}

// Cache exposes the underlying RawCache for read-only inspection by the
// scanner and wollet packages. Mutation outside InsertUpdate/insertScript
// would violate the paths/scripts bijection invariant (spec.md §9) and
// must not be done by callers.
func (s *Store) Cache() *RawCache { return s.cache }

// GetScriptBatch derives (or returns cached) scripts for
// [batch*BatchSize, (batch+1)*BatchSize) on chain, spec.md §4.2.
func (s *Store) GetScriptBatch(batch uint32, chain descriptor.Chain, desc *descriptor.Descriptor) (*ScriptBatch, error) {
	result := &ScriptBatch{Cached: true}
	start := batch * BatchSize
	for i := uint32(0); i < BatchSize; i++ {
		idx := start + i
		key := ScriptKey{Chain: chain, ChildIndex: idx}
		if cached, ok := s.cache.Scripts[key]; ok {
			result.Entries = append(result.Entries, ScriptBatchEntry{
				Script: []byte(cached), Chain: chain, ChildIndex: idx,
			})
			continue
		}
		result.Cached = false
		script, err := desc.ScriptPubKeyAt(chain, idx)
		if err != nil {
			return nil, err
		}
		result.Entries = append(result.Entries, ScriptBatchEntry{
			Script: script, Chain: chain, ChildIndex: idx,
		})
	}
	return result, nil
}

// Spent returns the union of previous-output references over every stored
// transaction, spec.md §4.2.
func (s *Store) Spent() (map[OutPoint]struct{}, error) {
	result := map[OutPoint]struct{}{}
	for _, raw := range s.cache.AllTxs {
		ins, err := decodeInputs(raw)
		if err != nil {
			return nil, err
		}
		for _, op := range ins {
			result[op] = struct{}{}
		}
	}
	return result, nil
}

// InsertUpdate applies u atomically, rejecting it if its base status or
// tip height are stale, per spec.md §3.2/§4.5.
func (s *Store) InsertUpdate(u *Update) error {
	current := s.Checksum()
	if u.WolletStatus != current {
		return &ErrUpdateOnDifferentStatus{UpdateStatus: u.WolletStatus, StoreStatus: current}
	}
	if u.TipHeight < s.cache.TipHeight {
		return &ErrUpdateHeightTooOld{UpdateHeight: u.TipHeight, StoreHeight: s.cache.TipHeight}
	}

	for _, tx := range u.NewTxs {
		s.cache.AllTxs[tx.Txid] = tx.Raw
	}
	for _, ub := range u.NewUnblinds {
		s.cache.Unblinded[ub.OutPoint] = ub.Secrets
	}
	for _, se := range u.Scripts {
		s.cache.insertScript(se.Script, ScriptKey{Chain: se.Chain, ChildIndex: se.ChildIndex})
	}
	for _, th := range u.TxidHeightNew {
		if th.Height == nil {
			s.cache.Heights[th.Txid] = nil
		} else {
			h := *th.Height
			s.cache.Heights[th.Txid] = &h
		}
	}
	for _, txid := range u.TxidHeightDelete {
		delete(s.cache.Heights, txid)
	}
	for _, ts := range u.Timestamps {
		s.cache.Timestamps[ts.Height] = ts.Timestamp
	}

	s.cache.TipHeight = u.TipHeight
	s.cache.TipBlockHash = u.TipBlockHash

	return nil
}

// AdvanceCursors bumps the gap-limit cursors to max(old, new), spec.md
// §4.5's apply semantics. Exposed separately from InsertUpdate so the
// wollet can set them: Wollet.ApplyUpdate applies an Update's cursor
// values, and the tx builder's change-cursor bump advances the internal
// one.
func (s *Store) AdvanceCursors(lastUnusedExternal, lastUnusedInternal uint32) {
	if lastUnusedExternal > s.cache.LastUnusedExternal {
		s.cache.LastUnusedExternal = lastUnusedExternal
	}
	if lastUnusedInternal > s.cache.LastUnusedInternal {
		s.cache.LastUnusedInternal = lastUnusedInternal
	}
}

// Checksum computes wollet_status: a stable hash of the store's logical
// content (every map in sorted order, the tip, and the cursors), with the
// blinding pubkey deliberately excluded for backward compatibility with
// version-1 updates, per spec.md §4.5.
func (s *Store) Checksum() uint64 {
	h := fnv.New64a()

	for _, txid := range s.cache.sortedTxids() {
		h.Write(txid[:])
		h.Write(s.cache.AllTxs[txid])
	}

	type scriptKV struct {
		key ScriptKey
		val string
	}
	scripts := make([]scriptKV, 0, len(s.cache.Scripts))
	for k, v := range s.cache.Scripts {
		scripts = append(scripts, scriptKV{k, v})
	}
	sort.Slice(scripts, func(i, j int) bool {
		if scripts[i].key.Chain != scripts[j].key.Chain {
			return scripts[i].key.Chain < scripts[j].key.Chain
		}
		return scripts[i].key.ChildIndex < scripts[j].key.ChildIndex
	})
	for _, kv := range scripts {
		writeUint32(h, uint32(kv.key.Chain))
		writeUint32(h, kv.key.ChildIndex)
		h.Write([]byte(kv.val))
	}

	heightTxids := make([][32]byte, 0, len(s.cache.Heights))
	for k := range s.cache.Heights {
		heightTxids = append(heightTxids, k)
	}
	sort.Slice(heightTxids, func(i, j int) bool {
		for b := 0; b < 32; b++ {
			if heightTxids[i][b] != heightTxids[j][b] {
				return heightTxids[i][b] < heightTxids[j][b]
			}
		}
		return false
	})
	for _, txid := range heightTxids {
		h.Write(txid[:])
		if v := s.cache.Heights[txid]; v != nil {
			writeUint32(h, *v)
		} else {
			writeUint32(h, 0xffffffff)
		}
	}

	heights := make([]Height, 0, len(s.cache.Timestamps))
	for ht := range s.cache.Timestamps {
		heights = append(heights, ht)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	for _, ht := range heights {
		writeUint32(h, ht)
		writeUint32(h, s.cache.Timestamps[ht])
	}

	writeUint32(h, s.cache.TipHeight)
	h.Write(s.cache.TipBlockHash[:])
	writeUint32(h, s.cache.LastUnusedExternal)
	writeUint32(h, s.cache.LastUnusedInternal)

	return h.Sum64()
}

func writeUint32(h interface{ Write([]byte) (int, error) }, v uint32) {
	h.Write([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// Stats is a diagnostic snapshot of cache sizes, supplementing spec.md per
// SPEC_FULL.md §3 (grounded on lwk_wollet/src/cache.rs, dropped by the
// distillation).
type Stats struct {
	TxCount      int
	ScriptCount  int
	UnblindCount int
}

func (s *Store) StatsSnapshot() Stats {
	return Stats{
		TxCount:      len(s.cache.AllTxs),
		ScriptCount:  len(s.cache.Scripts),
		UnblindCount: len(s.cache.Unblinded),
	}
}
