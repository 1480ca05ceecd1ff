package wollet

import (
	"fmt"

	"github.com/lwk-go/lwk/descriptor"
	"github.com/lwk-go/lwk/store"
	"github.com/lwk-go/lwk/txbuilder"
	"github.com/vulpemventures/go-elements/transaction"
)

// TxBuilder returns a fresh txbuilder.Builder backed by this wallet's
// network/descriptor/store, spec.md §4.7's Wollet.tx_builder(). Call
// Finish on the returned pair to assemble and blind the PSET.
func (w *Wollet) TxBuilder() (*txbuilder.Builder, txbuilder.WalletView) {
	return txbuilder.New(w.network, w.params), &txBuilderView{w: w}
}

// IssuanceEntropy returns the issuance entropy behind assetID, scanning
// every stored transaction's issuance inputs the same way Issuance does,
// used by txbuilder to reuse entropy on a reissuance, spec.md §4.6.
func (w *Wollet) IssuanceEntropy(assetID [32]byte) ([32]byte, bool) {
	for txid, raw := range w.store.Cache().AllTxs {
		tx, err := decodeTxForWollet(raw)
		if err != nil {
			continue
		}
		for vin, in := range tx.Inputs {
			detail, ok := issuanceAssetID(in, txid, uint32(vin))
			if ok && detail.assetID == assetID {
				return detail.entropy, true
			}
		}
	}
	return [32]byte{}, false
}

// txBuilderView adapts *Wollet to txbuilder.WalletView, the dependency
// inversion that lets txbuilder stay ignorant of the wollet package while
// Wollet.TxBuilder hands out a live view over itself, spec.md §4.7.
type txBuilderView struct {
	w *Wollet
}

func (v *txBuilderView) Network() descriptor.Network { return v.w.network }

func (v *txBuilderView) PolicyAsset() [32]byte { return v.w.params.PolicyAsset }

func (v *txBuilderView) Utxos() ([]txbuilder.UTXO, error) {
	utxos, err := v.w.Utxos()
	if err != nil {
		return nil, err
	}
	out := make([]txbuilder.UTXO, len(utxos))
	for i, u := range utxos {
		out[i] = txbuilder.UTXO{
			OutPoint:   u.OutPoint,
			Secrets:    u.Secrets,
			Chain:      u.Chain,
			ChildIndex: u.ChildIndex,
		}
	}
	return out, nil
}

func (v *txBuilderView) WitnessUtxo(op store.OutPoint) (*transaction.TxOutput, error) {
	raw, ok := v.w.store.Cache().AllTxs[op.Txid]
	if !ok {
		return nil, fmt.Errorf("wollet: unknown transaction for outpoint %x:%d", op.Txid, op.Vout)
	}
	tx, err := decodeTxForWollet(raw)
	if err != nil {
		return nil, err
	}
	if int(op.Vout) >= len(tx.Outputs) {
		return nil, fmt.Errorf("wollet: outpoint %x:%d out of range", op.Txid, op.Vout)
	}
	return tx.Outputs[op.Vout], nil
}

func (v *txBuilderView) BlindingPrivKeyForScript(script []byte) ([]byte, error) {
	priv, err := v.w.desc.BlindingPrivKeyForScript(script)
	if err != nil {
		return nil, err
	}
	return priv.Serialize(), nil
}

func (v *txBuilderView) NextChangeIndex() uint32 {
	return v.w.store.Cache().LastUnusedInternal
}

func (v *txBuilderView) DeriveChangeScript(index uint32) ([]byte, []byte, error) {
	script, err := v.w.desc.ScriptPubKeyAt(descriptor.Internal, index)
	if err != nil {
		return nil, nil, err
	}
	var blindingPub []byte
	if pub, err := v.w.desc.BlindingPubKeyForScript(script); err == nil {
		blindingPub = pub.SerializeCompressed()
	}

	u := &store.Update{
		Version:      store.UpdateVersion,
		WolletStatus: v.w.store.Checksum(),
		TipHeight:    v.w.store.Cache().TipHeight,
		TipBlockHash: v.w.store.Cache().TipBlockHash,
		Scripts: []store.ScriptEntry{
			{Chain: descriptor.Internal, ChildIndex: index, Script: script, BlindingPubKey: blindingPub},
		},
	}
	if err := v.w.store.InsertUpdate(u); err != nil {
		return nil, nil, err
	}
	return script, blindingPub, nil
}

func (v *txBuilderView) BumpChangeCursor(next uint32) {
	v.w.store.AdvanceCursors(0, next)
}

func (v *txBuilderView) IssuanceEntropy(assetID [32]byte) ([32]byte, bool) {
	return v.w.IssuanceEntropy(assetID)
}
