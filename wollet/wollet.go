// Package wollet is the watch-only wallet façade, spec.md §4.7: it owns a
// Store and a Descriptor and exposes address derivation, balance, UTXO and
// transaction history views, and update application. Grounded on
// lwk_wollet's Wollet struct (referenced throughout store.rs/cache.rs and
// spec.md §4.7) and on the teacher's LightningWallet-style façade
// (lnwallet/interface.go) for the "one owning struct wraps store +
// chain-params" shape.
package wollet

import (
	"context"
	"errors"
	"sort"

	"github.com/decred/slog"
	"github.com/lwk-go/lwk/backend"
	"github.com/lwk-go/lwk/descriptor"
	"github.com/lwk-go/lwk/internal/logmgr"
	"github.com/lwk-go/lwk/scanner"
	"github.com/lwk-go/lwk/store"
	"github.com/lwk-go/lwk/unblind"
	"github.com/vulpemventures/go-elements/transaction"
)

var log = logmgr.NewPkgLogger("WLET")

// UseLogger configures the package-level logger.
func UseLogger(l slog.Logger) { log = l }

// AddressResult is the return of Address/Change, spec.md §4.7.
type AddressResult struct {
	Address string
	Index   uint32
}

// WalletTxOut is one unspent, unblinded output owned by the wallet.
type WalletTxOut struct {
	OutPoint   store.OutPoint
	Chain      descriptor.Chain
	ChildIndex uint32
	Secrets    unblind.TxOutSecrets
}

// TxSummary is one row of Transactions' paged listing, spec.md §4.7.
type TxSummary struct {
	Txid      [32]byte
	Height    *uint32 // nil = mempool
	Timestamp uint32  // 0 if unknown
	Balances  map[[32]byte]int64
}

// TxDetail is the full detail behind one TxSummary.
type TxDetail struct {
	Summary TxSummary
	Tx      *transaction.Transaction
}

// IssuanceDetail describes one issuance or reissuance this wallet observed,
// as returned by Issuance.
type IssuanceDetail struct {
	Txid         [32]byte
	Vin          uint32
	AssetAmount  uint64
	TokenAmount  uint64
	IsReissuance bool
}

var (
	// ErrUnknownTransaction is returned by Transaction for an unknown txid.
	ErrUnknownTransaction = errors.New("transaction not found in wallet store")

	// ErrUnknownAsset is returned by Issuance for an asset never issued by
	// a transaction this wallet has observed.
	ErrUnknownAsset = errors.New("no issuance found for asset")
)

// Wollet is the watch-only wallet façade.
type Wollet struct {
	network descriptor.Network
	params  descriptor.AddressParams
	desc    *descriptor.Descriptor
	store   *store.Store
}

// New constructs a Wollet backed by an ephemeral (in-memory-only) Store.
func New(network descriptor.Network, desc *descriptor.Descriptor) *Wollet {
	return &Wollet{network: network, params: network.Params(), desc: desc, store: store.OpenEphemeral()}
}

// NewRegtest constructs a Wollet for ElementsRegtest with a caller-supplied
// policy asset, spec.md §6.4.
func NewRegtest(desc *descriptor.Descriptor, policyAsset [32]byte) *Wollet {
	return &Wollet{
		network: descriptor.ElementsRegtest,
		params:  descriptor.RegtestParams(policyAsset),
		desc:    desc,
		store:   store.OpenEphemeral(),
	}
}

// Open constructs a Wollet backed by the encrypted on-disk Store rooted at
// dir, spec.md §4.2/§6.1.
func Open(dir string, network descriptor.Network, desc *descriptor.Descriptor) (*Wollet, error) {
	st, err := store.Open(dir, desc)
	if err != nil {
		return nil, err
	}
	return &Wollet{network: network, params: network.Params(), desc: desc, store: st}, nil
}

// Network returns the wallet's network.
func (w *Wollet) Network() descriptor.Network { return w.network }

// PolicyAsset returns the network's fee-paying asset id.
func (w *Wollet) PolicyAsset() [32]byte { return w.params.PolicyAsset }

// Descriptor returns the wallet's descriptor.
func (w *Wollet) Descriptor() *descriptor.Descriptor { return w.desc }

// Store exposes the underlying Store for the scanner and txbuilder
// packages.
func (w *Wollet) Store() *store.Store { return w.store }

// Address derives the external-chain address at index, or the current
// last-unused-external cursor if index is nil, spec.md §4.7.
func (w *Wollet) Address(index *uint32) (AddressResult, error) {
	idx := w.store.Cache().LastUnusedExternal
	if index != nil {
		idx = *index
	}
	addr, err := w.desc.Address(idx, w.network)
	if err != nil {
		return AddressResult{}, err
	}
	return AddressResult{Address: addr, Index: idx}, nil
}

// Change derives the internal-chain (change) address at index, or the
// current last-unused-internal cursor if index is nil.
func (w *Wollet) Change(index *uint32) (AddressResult, error) {
	idx := w.store.Cache().LastUnusedInternal
	if index != nil {
		idx = *index
	}
	addr, err := w.desc.Change(idx, w.network)
	if err != nil {
		return AddressResult{}, err
	}
	return AddressResult{Address: addr, Index: idx}, nil
}

// Utxos returns every unspent, unblinded output the wallet owns, spec.md
// §4.7: "for each output in an unspent wallet transaction with a known
// unblind, excluding any outpoint in Store.spent()".
func (w *Wollet) Utxos() ([]WalletTxOut, error) {
	spent, err := w.store.Spent()
	if err != nil {
		return nil, err
	}

	var out []WalletTxOut
	for op, secrets := range w.store.Cache().Unblinded {
		if _, isSpent := spent[op]; isSpent {
			continue
		}
		wtxo := WalletTxOut{OutPoint: op, Secrets: secrets}
		if key, ok := w.scriptKeyForOutpoint(op); ok {
			wtxo.Chain = key.Chain
			wtxo.ChildIndex = key.ChildIndex
		}
		out = append(out, wtxo)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OutPoint.Txid != out[j].OutPoint.Txid {
			return lessTxid(out[i].OutPoint.Txid, out[j].OutPoint.Txid)
		}
		return out[i].OutPoint.Vout < out[j].OutPoint.Vout
	})
	return out, nil
}

func (w *Wollet) scriptKeyForOutpoint(op store.OutPoint) (store.ScriptKey, bool) {
	raw, ok := w.store.Cache().AllTxs[op.Txid]
	if !ok {
		return store.ScriptKey{}, false
	}
	tx, err := decodeTxForWollet(raw)
	if err != nil || int(op.Vout) >= len(tx.Outputs) {
		return store.ScriptKey{}, false
	}
	key, ok := w.store.Cache().Paths[string(tx.Outputs[op.Vout].Script)]
	return key, ok
}

func lessTxid(a, b [32]byte) bool {
	for i := 0; i < 32; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Balance sums every UTXO's value by asset id, spec.md §4.7.
func (w *Wollet) Balance() (map[[32]byte]uint64, error) {
	utxos, err := w.Utxos()
	if err != nil {
		return nil, err
	}
	balances := map[[32]byte]uint64{}
	for _, u := range utxos {
		balances[u.Secrets.Asset] += u.Secrets.Value
	}
	return balances, nil
}

// Transactions lists every transaction touching the wallet, sorted by
// height descending with unconfirmed transactions first, spec.md §4.7.
func (w *Wollet) Transactions() ([]TxSummary, error) {
	cache := w.store.Cache()
	summaries := make([]TxSummary, 0, len(cache.AllTxs))
	for txid := range cache.AllTxs {
		height, ok := cache.Heights[txid]
		if !ok {
			continue
		}
		var ts uint32
		if height != nil {
			ts = cache.Timestamps[*height]
		}
		summaries = append(summaries, TxSummary{
			Txid:      txid,
			Height:    height,
			Timestamp: ts,
			Balances:  w.netBalanceForTx(txid),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if (a.Height == nil) != (b.Height == nil) {
			return a.Height == nil
		}
		if a.Height == nil {
			return false
		}
		return *a.Height > *b.Height
	})
	return summaries, nil
}

// netBalanceForTx computes this wallet's net value change per asset for
// txid, using every unblinded output/input it recognizes. Best-effort:
// inputs whose previous output this wallet never unblinded are ignored.
func (w *Wollet) netBalanceForTx(txid [32]byte) map[[32]byte]int64 {
	cache := w.store.Cache()
	result := map[[32]byte]int64{}

	raw, ok := cache.AllTxs[txid]
	if !ok {
		return result
	}
	ins, err := decodeInputsForWollet(raw)
	if err != nil {
		return result
	}
	for _, in := range ins {
		if secrets, ok := cache.Unblinded[in]; ok {
			result[secrets.Asset] -= int64(secrets.Value)
		}
	}
	for vout := uint32(0); ; vout++ {
		op := store.OutPoint{Txid: txid, Vout: vout}
		secrets, ok := cache.Unblinded[op]
		if !ok {
			if vout > 256 {
				break
			}
			continue
		}
		result[secrets.Asset] += int64(secrets.Value)
	}
	return result
}

// Transaction returns the full detail for txid.
func (w *Wollet) Transaction(txid [32]byte) (*TxDetail, error) {
	cache := w.store.Cache()
	raw, ok := cache.AllTxs[txid]
	if !ok {
		return nil, ErrUnknownTransaction
	}
	tx, err := decodeTxForWollet(raw)
	if err != nil {
		return nil, err
	}
	height := cache.Heights[txid]
	var ts uint32
	if height != nil {
		ts = cache.Timestamps[*height]
	}
	return &TxDetail{
		Summary: TxSummary{Txid: txid, Height: height, Timestamp: ts, Balances: w.netBalanceForTx(txid)},
		Tx:      tx,
	}, nil
}

// Issuance returns the issuance detail for assetID, scanning every stored
// transaction for an issuance input producing it.
func (w *Wollet) Issuance(assetID [32]byte) (*IssuanceDetail, error) {
	for txid, raw := range w.store.Cache().AllTxs {
		tx, err := decodeTxForWollet(raw)
		if err != nil {
			continue
		}
		for vin, in := range tx.Inputs {
			detail, ok := issuanceAssetID(in, txid, uint32(vin))
			if ok && detail.assetID == assetID {
				return &IssuanceDetail{
					Txid:         txid,
					Vin:          uint32(vin),
					AssetAmount:  detail.assetAmount,
					TokenAmount:  detail.tokenAmount,
					IsReissuance: detail.isReissuance,
				}, nil
			}
		}
	}
	return nil, ErrUnknownAsset
}

// ApplyUpdate applies an Update produced by the scanner, spec.md §4.5's
// apply semantics, flushing the Store on success. The gap-limit cursors
// are taken from the Update's own LastUnusedExternal/LastUnusedInternal
// (the scanner's computed "smallest index with no observed history",
// spec.md §3.2) rather than re-derived from u.Scripts: a non-cached scan
// batch lists every derived script in the batch, used or not, so the
// max ChildIndex across Scripts is the end of the last scanned batch,
// not the cursor.
func (w *Wollet) ApplyUpdate(u *store.Update) error {
	if err := w.store.InsertUpdate(u); err != nil {
		return err
	}
	w.store.AdvanceCursors(u.LastUnusedExternal, u.LastUnusedInternal)
	return w.store.Flush()
}

// Scan runs a full_scan against be and applies the resulting Update, a
// convenience wrapper over scanner.Scanner + ApplyUpdate for callers that
// don't need to inspect the Update before applying it.
func (w *Wollet) Scan(ctx context.Context, be backend.Backend) error {
	s := scanner.New(be)
	update, err := s.FullScan(ctx, w.store, w.desc)
	if err != nil {
		return err
	}
	if update == nil {
		return nil
	}
	return w.ApplyUpdate(update)
}
