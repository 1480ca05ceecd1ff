package wollet

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/lwk-go/lwk/store"
	"github.com/vulpemventures/go-elements/transaction"
)

func decodeTxForWollet(raw []byte) (*transaction.Transaction, error) {
	return transaction.NewTxFromHex(hex.EncodeToString(raw))
}

func decodeInputsForWollet(raw []byte) ([]store.OutPoint, error) {
	tx, err := decodeTxForWollet(raw)
	if err != nil {
		return nil, err
	}
	out := make([]store.OutPoint, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		var txid [32]byte
		copy(txid[:], in.Hash)
		out = append(out, store.OutPoint{Txid: txid, Vout: in.Index})
	}
	return out, nil
}

type issuanceInfo struct {
	assetID      [32]byte
	entropy      [32]byte
	assetAmount  uint64
	tokenAmount  uint64
	isReissuance bool
}

// issuanceAssetID derives the asset id an issuance (or reissuance) input
// produces, following the Elements issuance entropy/asset-tag algorithm:
// entropy = SHA256d(outpoint || contract_hash), where outpoint is the
// input's own prevout, asset_tag = SHA256d(entropy || 0^32). Reissuance
// reuses the entropy carried in the input's asset entropy field rather
// than recomputing it from the (spent, no-longer-available) original
// issuance outpoint.
//
// Confidential (blinded) issuance amounts are not decoded here: recovering
// them requires the same unblinding path as any other confidential value
// and is out of scope for this best-effort lookup.
func issuanceAssetID(in *transaction.TxInput, txid [32]byte, vin uint32) (issuanceInfo, bool) {
	if in.Issuance == nil {
		return issuanceInfo{}, false
	}
	iss := in.Issuance

	reissuance := !isZero(iss.AssetBlindingNonce)

	var entropy [32]byte
	if reissuance {
		copy(entropy[:], iss.AssetEntropy)
	} else {
		op := append(append([]byte{}, in.Hash...), leUint32(in.Index)...)
		contractHash := iss.AssetEntropy
		if len(contractHash) == 0 {
			contractHash = make([]byte, 32)
		}
		entropy = doubleSHA256(append(op, contractHash...))
	}

	assetTag := doubleSHA256(append(append([]byte{}, entropy[:]...), make([]byte, 32)...))

	var assetAmount, tokenAmount uint64
	if !isConfidentialAmount(iss.AssetAmount) {
		assetAmount = decodeExplicitAmount(iss.AssetAmount)
	}
	if !isConfidentialAmount(iss.TokenAmount) {
		tokenAmount = decodeExplicitAmount(iss.TokenAmount)
	}

	return issuanceInfo{
		assetID:      assetTag,
		entropy:      entropy,
		assetAmount:  assetAmount,
		tokenAmount:  tokenAmount,
		isReissuance: reissuance,
	}, true
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func isConfidentialAmount(b []byte) bool {
	return len(b) == 33 && (b[0] == 0x08 || b[0] == 0x09)
}

func decodeExplicitAmount(b []byte) uint64 {
	if len(b) != 9 || b[0] != 0x01 {
		return 0
	}
	var v uint64
	for i := 1; i < 9; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

func leUint32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func doubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}
