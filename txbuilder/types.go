package txbuilder

import (
	"github.com/lwk-go/lwk/descriptor"
	"github.com/lwk-go/lwk/store"
	"github.com/lwk-go/lwk/unblind"
	"github.com/vulpemventures/go-elements/transaction"
)

// Recipient is one payment target, spec.md §4.6. An empty Address produces
// the sentinel unspendable "burn" output.
type Recipient struct {
	Address string
	Asset   [32]byte
	Satoshi uint64
}

// IsBurn reports whether r is the sentinel burn form.
func (r Recipient) IsBurn() bool { return r.Address == "" }

// IssuanceRequest describes a single asset issuance, spec.md §4.6.
// AddressAsset (and AddressToken, when SatoshiToken > 0) are required: the
// caller must supply a destination for the newly issued asset/token.
type IssuanceRequest struct {
	SatoshiAsset   uint64
	SatoshiToken   uint64
	AddressAsset   string
	AddressToken   string
	Contract       []byte
	IsConfidential bool
}

// ReissuanceRequest describes a reissuance of an existing asset, spec.md
// §4.6.
type ReissuanceRequest struct {
	Asset        [32]byte
	SatoshiAsset uint64
	AddressAsset string
}

// UTXO is the builder's own view of one spendable wallet output: the same
// shape as wollet.WalletTxOut, restated here (rather than importing the
// wollet package) so that package can in turn import txbuilder to implement
// spec.md §4.7's Wollet.tx_builder() without an import cycle — the
// dependency inversion is carried by the WalletView interface below.
type UTXO struct {
	OutPoint   store.OutPoint
	Secrets    unblind.TxOutSecrets
	Chain      descriptor.Chain
	ChildIndex uint32
}

// WalletView is the subset of *wollet.Wollet the builder consults, spec.md
// §4.6's "select UTXOs from Store" and "change script is derived at the
// current last_unused_internal". Implemented by the wollet package's
// adapter returned from Wollet.TxBuilder.
type WalletView interface {
	// Network reports the wallet's network (spec.md §6.4).
	Network() descriptor.Network

	// PolicyAsset reports the network's fee-paying asset id.
	PolicyAsset() [32]byte

	// Utxos returns every unspent, unblinded output the wallet owns.
	Utxos() ([]UTXO, error)

	// WitnessUtxo returns the confidential TxOutput at op, used to
	// populate the PSET input's witness_utxo field.
	WitnessUtxo(op store.OutPoint) (*transaction.TxOutput, error)

	// BlindingPrivKeyForScript derives the blinding secret for an input's
	// previous output script, spec.md §4.3.
	BlindingPrivKeyForScript(script []byte) ([]byte, error)

	// NextChangeIndex returns the current last_unused_internal cursor.
	NextChangeIndex() uint32

	// DeriveChangeScript derives (and registers in the Store, so future
	// scans recognize it) the internal-chain script and blinding pubkey
	// at index.
	DeriveChangeScript(index uint32) (script []byte, blindingPubKey []byte, err error)

	// BumpChangeCursor advances last_unused_internal to max(old, next),
	// spec.md §4.6: "that cursor is bumped within the build".
	BumpChangeCursor(next uint32)

	// IssuanceEntropy returns the issuance entropy behind assetID, so a
	// reissuance can reuse it, spec.md §4.6.
	IssuanceEntropy(assetID [32]byte) ([32]byte, bool)
}
