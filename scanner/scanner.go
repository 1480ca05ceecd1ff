// Package scanner reconciles backend observations against Store state and
// produces Updates, spec.md §4.5. It is grounded on lwk_wollet's
// BlockchainBackend::full_scan (clients/mod.rs) and on the teacher's
// SPVSyncer (lnwallet/dcrwallet/spvsync.go) for the single-owner,
// no-internal-concurrency scan loop shape.
package scanner

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/decred/slog"
	"github.com/lwk-go/lwk/backend"
	"github.com/lwk-go/lwk/descriptor"
	"github.com/lwk-go/lwk/internal/logmgr"
	"github.com/lwk-go/lwk/store"
	"github.com/lwk-go/lwk/unblind"
	"github.com/vulpemventures/go-elements/transaction"
)

var log = logmgr.NewPkgLogger("SCAN")

// UseLogger configures the package-level logger.
func UseLogger(l slog.Logger) { log = l }

// Options configures a Scanner, spec.md §4.5/§6.4.
type Options struct {
	// Metrics, if non-nil, receives per-scan counters (SPEC_FULL.md §6,
	// opt-in prometheus wiring absent from the distilled spec).
	Metrics *Metrics
}

// Option mutates Options.
type Option func(*Options)

// WithMetrics attaches a prometheus-backed Metrics collector to a scan.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// Scanner runs gap-limit scans against a single Backend.
type Scanner struct {
	be backend.Backend
}

// New returns a Scanner fronting be.
func New(be backend.Backend) *Scanner {
	return &Scanner{be: be}
}

// FullScan runs the default gap-limit scan (spec.md §4.5 algorithm,
// to_index = the Store's own cursors, i.e. no forced deepening).
func (s *Scanner) FullScan(ctx context.Context, st *store.Store, desc *descriptor.Descriptor, opts ...Option) (*store.Update, error) {
	toIndex := st.Cache().LastUnusedExternal
	if in := st.Cache().LastUnusedInternal; in > toIndex {
		toIndex = in
	}
	return s.scan(ctx, st, desc, toIndex, opts...)
}

// FullScanToIndex forces scanning at least to index n on both chains
// regardless of emptiness, spec.md §4.5 "Gap limit override".
func (s *Scanner) FullScanToIndex(ctx context.Context, st *store.Store, desc *descriptor.Descriptor, n uint32, opts ...Option) (*store.Update, error) {
	return s.scan(ctx, st, desc, n, opts...)
}

// FullScanOrWaterfalls uses the backend's bulk descriptor-scan fast path
// when available and safe, falling back to the per-script path otherwise.
// An ELIP151 descriptor MUST NOT be sent to waterfalls (spec.md §4.4, S6).
func (s *Scanner) FullScanOrWaterfalls(ctx context.Context, st *store.Store, desc *descriptor.Descriptor, toIndex uint32, opts ...Option) (*store.Update, error) {
	if desc.BlindingKind() == descriptor.BlindingELIP151 {
		log.Debugf("refusing waterfalls fast path for an ELIP151 descriptor, using per-script scan")
		return s.scan(ctx, st, desc, toIndex, opts...)
	}
	if !s.be.Capabilities().Has(backend.CapabilityWaterfalls) {
		return s.scan(ctx, st, desc, toIndex, opts...)
	}
	return s.scanWaterfalls(ctx, st, desc, toIndex, opts...)
}

type chainAccum struct {
	txidHeight      map[[32]byte]*uint32
	heightBlockHash map[uint32][32]byte
	newScripts      []store.ScriptEntry
	lastUnused      uint32
}

func (s *Scanner) scan(ctx context.Context, st *store.Store, desc *descriptor.Descriptor, toIndex uint32, opts ...Option) (*store.Update, error) {
	o := &Options{}
	for _, fn := range opts {
		fn(o)
	}

	baseStatus := st.Checksum()
	txidHeight := map[[32]byte]*uint32{}
	heightBlockHash := map[uint32][32]byte{}
	var newScripts []store.ScriptEntry
	lastUnusedExternal := st.Cache().LastUnusedExternal
	lastUnusedInternal := st.Cache().LastUnusedInternal

	for _, chain := range desc.SingleChainDescriptors() {
		acc, err := s.scanChain(ctx, st, desc, chain, toIndex)
		if err != nil {
			return nil, fmt.Errorf("scanning %s chain: %w", chain, err)
		}
		for k, v := range acc.txidHeight {
			txidHeight[k] = v
		}
		for k, v := range acc.heightBlockHash {
			heightBlockHash[k] = v
		}
		newScripts = append(newScripts, acc.newScripts...)
		switch chain {
		case descriptor.External:
			if acc.lastUnused > lastUnusedExternal {
				lastUnusedExternal = acc.lastUnused
			}
		case descriptor.Internal:
			if acc.lastUnused > lastUnusedInternal {
				lastUnusedInternal = acc.lastUnused
			}
		}
	}

	historyTxids := make([][32]byte, 0, len(txidHeight))
	for txid := range txidHeight {
		historyTxids = append(historyTxids, txid)
	}

	newTxs, unblinds, err := s.downloadTxs(ctx, st, desc, historyTxids, newScripts)
	if err != nil {
		return nil, err
	}

	historyHeights := map[uint32]struct{}{}
	for _, h := range txidHeight {
		if h != nil {
			historyHeights[*h] = struct{}{}
		}
	}
	timestamps, err := s.downloadHeaders(ctx, st, historyHeights, heightBlockHash)
	if err != nil {
		return nil, err
	}

	tip, err := s.be.Tip(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}

	lastUnusedChanged := lastUnusedExternal != st.Cache().LastUnusedExternal ||
		lastUnusedInternal != st.Cache().LastUnusedInternal
	tipChanged := tip.Height != st.Cache().TipHeight || tip.BlockHash != st.Cache().TipBlockHash
	changed := len(newTxs) > 0 || lastUnusedChanged || len(newScripts) > 0 || len(timestamps) > 0 || tipChanged
	if !changed {
		if o.Metrics != nil {
			o.Metrics.observeScan(false, 0)
		}
		return nil, nil
	}

	var txidHeightNew []store.TxidHeight
	for txid, h := range txidHeight {
		existing, ok := st.Cache().Heights[txid]
		if ok && heightEqual(existing, h) {
			continue
		}
		txidHeightNew = append(txidHeightNew, store.TxidHeight{Txid: txid, Height: h})
	}

	var txidHeightDelete [][32]byte
	for txid := range st.Cache().Heights {
		if _, ok := txidHeight[txid]; !ok {
			txidHeightDelete = append(txidHeightDelete, txid)
		}
	}

	update := &store.Update{
		Version:            store.UpdateVersion,
		WolletStatus:       baseStatus,
		NewTxs:             newTxs,
		NewUnblinds:        unblinds,
		TxidHeightNew:      txidHeightNew,
		TxidHeightDelete:   txidHeightDelete,
		Timestamps:         timestamps,
		Scripts:            newScripts,
		LastUnusedExternal: lastUnusedExternal,
		LastUnusedInternal: lastUnusedInternal,
		TipHeight:          tip.Height,
		TipBlockHash:       tip.BlockHash,
	}

	if o.Metrics != nil {
		o.Metrics.observeScan(true, len(newTxs))
	}
	return update, nil
}

func heightEqual(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *Scanner) scanChain(ctx context.Context, st *store.Store, desc *descriptor.Descriptor, chain descriptor.Chain, toIndex uint32) (*chainAccum, error) {
	acc := &chainAccum{
		txidHeight:      map[[32]byte]*uint32{},
		heightBlockHash: map[uint32][32]byte{},
	}

	var batch uint32
	for {
		sb, err := st.GetScriptBatch(batch, chain, desc)
		if err != nil {
			return nil, err
		}

		scripts := make([][]byte, len(sb.Entries))
		for i, e := range sb.Entries {
			scripts[i] = e.Script
		}
		histories, err := s.be.GetScriptsHistory(ctx, scripts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
		}

		if !sb.Cached {
			for _, e := range sb.Entries {
				pub, _ := desc.BlindingPubKeyForScript(e.Script)
				var pubBytes []byte
				if pub != nil {
					pubBytes = pub.SerializeCompressed()
				}
				acc.newScripts = append(acc.newScripts, store.ScriptEntry{
					Chain: e.Chain, ChildIndex: e.ChildIndex, Script: e.Script, BlindingPubKey: pubBytes,
				})
			}
		}

		maxUsed := -1
		var flattenedCount int
		for i, h := range histories {
			if len(h) == 0 {
				continue
			}
			flattenedCount += len(h)
			if i > maxUsed {
				maxUsed = i
			}
			for _, entry := range h {
				height := int32(entry.Height)
				if height <= 0 {
					acc.txidHeight[entry.Txid] = nil
				} else {
					v := uint32(height)
					acc.txidHeight[entry.Txid] = &v
					if entry.BlockHash != nil {
						acc.heightBlockHash[v] = *entry.BlockHash
					}
				}
			}
		}
		if maxUsed >= 0 {
			acc.lastUnused = uint32(maxUsed) + 1 + batch*store.BatchSize
		}

		if flattenedCount == 0 {
			if batch*store.BatchSize >= toIndex {
				break
			}
		}
		batch++
	}

	return acc, nil
}

func (s *Scanner) downloadTxs(ctx context.Context, st *store.Store, desc *descriptor.Descriptor, historyTxids [][32]byte, newScripts []store.ScriptEntry) ([]store.NewTx, []store.NewUnblind, error) {
	toDownload := make([][32]byte, 0, len(historyTxids))
	for _, txid := range historyTxids {
		if _, ok := st.Cache().AllTxs[txid]; !ok {
			toDownload = append(toDownload, txid)
		}
	}
	if len(toDownload) == 0 {
		return nil, nil, nil
	}

	knownScripts := map[string]struct{}{}
	for script := range st.Cache().Paths {
		knownScripts[script] = struct{}{}
	}
	for _, e := range newScripts {
		knownScripts[string(e.Script)] = struct{}{}
	}

	txs, err := s.be.GetTransactions(ctx, toDownload)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}

	var newTxs []store.NewTx
	var unblinds []store.NewUnblind
	for i, tx := range txs {
		txid := toDownload[i]
		raw, err := tx.ToHex()
		if err != nil {
			return nil, nil, err
		}
		rawBytes, err := hexDecode(raw)
		if err != nil {
			return nil, nil, err
		}
		newTxs = append(newTxs, store.NewTx{Txid: txid, Raw: rawBytes})

		for vout, out := range tx.Outputs {
			if _, ok := knownScripts[string(out.Script)]; !ok {
				continue
			}
			secrets, err := unblind.Unblind(out, desc)
			if err != nil {
				log.Infof("cannot unblind output %x:%d, ignoring: %v", txid, vout, err)
				continue
			}
			unblinds = append(unblinds, store.NewUnblind{
				OutPoint: store.OutPoint{Txid: txid, Vout: uint32(vout)},
				Secrets:  *secrets,
			})
		}
	}

	return newTxs, unblinds, nil
}

func (s *Scanner) downloadHeaders(ctx context.Context, st *store.Store, historyHeights map[uint32]struct{}, heightBlockHash map[uint32][32]byte) ([]store.TimestampEntry, error) {
	var toDownload []uint32
	for h := range historyHeights {
		if _, ok := st.Cache().Timestamps[h]; !ok {
			toDownload = append(toDownload, h)
		}
	}
	if len(toDownload) == 0 {
		return nil, nil
	}

	headers, err := s.be.GetHeaders(ctx, toDownload, heightBlockHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}

	result := make([]store.TimestampEntry, 0, len(headers))
	for _, h := range headers {
		result = append(result, store.TimestampEntry{Height: h.Height, Timestamp: h.Time})
	}
	return result, nil
}

func (s *Scanner) scanWaterfalls(ctx context.Context, st *store.Store, desc *descriptor.Descriptor, toIndex uint32, opts ...Option) (*store.Update, error) {
	o := &Options{}
	for _, fn := range opts {
		fn(o)
	}

	baseStatus := st.Checksum()
	page, err := s.be.GetHistoryWaterfalls(ctx, desc, toIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrWaterfallsUnsupported, err)
	}

	txidHeight := map[[32]byte]*uint32{}
	extScripts, lastUnusedExternal := collectWaterfallsScripts(desc, descriptor.External, page.ExternalHistory, txidHeight)
	intScripts, lastUnusedInternal := collectWaterfallsScripts(desc, descriptor.Internal, page.InternalHistory, txidHeight)
	newScripts := append(extScripts, intScripts...)

	if lastUnusedExternal < st.Cache().LastUnusedExternal {
		lastUnusedExternal = st.Cache().LastUnusedExternal
	}
	if lastUnusedInternal < st.Cache().LastUnusedInternal {
		lastUnusedInternal = st.Cache().LastUnusedInternal
	}

	historyTxids := make([][32]byte, 0, len(txidHeight))
	for txid := range txidHeight {
		historyTxids = append(historyTxids, txid)
	}

	var newTxs []store.NewTx
	var unblinds []store.NewUnblind
	for _, tx := range page.NewTxs {
		raw, err := tx.ToHex()
		if err != nil {
			return nil, err
		}
		rawBytes, err := hexDecode(raw)
		if err != nil {
			return nil, err
		}
		txid := txIDBytes(tx)
		newTxs = append(newTxs, store.NewTx{Txid: txid, Raw: rawBytes})
		for vout, out := range tx.Outputs {
			secrets, err := unblind.Unblind(out, desc)
			if err != nil {
				continue
			}
			unblinds = append(unblinds, store.NewUnblind{
				OutPoint: store.OutPoint{Txid: txid, Vout: uint32(vout)},
				Secrets:  *secrets,
			})
		}
	}

	tip, err := s.be.Tip(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}

	var txidHeightNew []store.TxidHeight
	for txid, h := range txidHeight {
		txidHeightNew = append(txidHeightNew, store.TxidHeight{Txid: txid, Height: h})
	}

	update := &store.Update{
		Version:            store.UpdateVersion,
		WolletStatus:       baseStatus,
		NewTxs:             newTxs,
		NewUnblinds:        unblinds,
		TxidHeightNew:      txidHeightNew,
		Scripts:            newScripts,
		LastUnusedExternal: lastUnusedExternal,
		LastUnusedInternal: lastUnusedInternal,
		TipHeight:          tip.Height,
		TipBlockHash:       tip.BlockHash,
	}
	if o.Metrics != nil {
		o.Metrics.observeScan(true, len(newTxs))
	}
	return update, nil
}

// collectWaterfallsScripts derives the script at every index covered by
// histories, recording txid/height pairs and returning the ScriptEntry set
// a waterfalls page implies (spec.md §4.4's bundle shape) together with the
// smallest index with no observed history on chain (spec.md §3.2's
// last-unused cursor), not the index of the last entry with history.
func collectWaterfallsScripts(desc *descriptor.Descriptor, chain descriptor.Chain, histories [][]backend.HistoryEntry, txidHeight map[[32]byte]*uint32) ([]store.ScriptEntry, uint32) {
	var entries []store.ScriptEntry
	maxUsed := -1
	for idx, h := range histories {
		if len(h) == 0 {
			continue
		}
		if idx > maxUsed {
			maxUsed = idx
		}
		script, err := desc.ScriptPubKeyAt(chain, uint32(idx))
		if err != nil {
			continue
		}
		pub, _ := desc.BlindingPubKeyForScript(script)
		var pubBytes []byte
		if pub != nil {
			pubBytes = pub.SerializeCompressed()
		}
		entries = append(entries, store.ScriptEntry{
			Chain: chain, ChildIndex: uint32(idx), Script: script, BlindingPubKey: pubBytes,
		})
		for _, entry := range h {
			height := int32(entry.Height)
			if height <= 0 {
				txidHeight[entry.Txid] = nil
			} else {
				v := uint32(height)
				txidHeight[entry.Txid] = &v
			}
		}
	}
	var lastUnused uint32
	if maxUsed >= 0 {
		lastUnused = uint32(maxUsed) + 1
	}
	return entries, lastUnused
}

func txIDBytes(tx *transaction.Transaction) [32]byte {
	h := tx.TxHash()
	var out [32]byte
	copy(out[:], h[:])
	return out
}

func hexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
