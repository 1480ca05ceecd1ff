package txbuilder

import (
	"crypto/sha256"
	"encoding/binary"
)

// doubleSHA256 matches the Elements issuance entropy/asset-tag algorithm
// used throughout the engine (wollet/txdecode.go applies the same formula
// for issuance discovery).
func doubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// entropyFromPrevout computes the issuance entropy for a fresh issuance
// spending prevout, with contractHash defaulting to the zero hash when no
// asset contract is attached.
func entropyFromPrevout(prevoutTxidLE [32]byte, vout uint32, contractHash []byte) [32]byte {
	if len(contractHash) == 0 {
		contractHash = make([]byte, 32)
	}
	buf := make([]byte, 0, 36+32)
	buf = append(buf, prevoutTxidLE[:]...)
	var voutLE [4]byte
	binary.LittleEndian.PutUint32(voutLE[:], vout)
	buf = append(buf, voutLE[:]...)
	buf = append(buf, contractHash...)
	return doubleSHA256(buf)
}

// assetTagFromEntropy derives the issued asset id from entropy, spec.md
// §4.6 ("Compute (asset_id, token_id) from contract hash and issuance
// prevout").
func assetTagFromEntropy(entropy [32]byte) [32]byte {
	return doubleSHA256(append(append([]byte{}, entropy[:]...), make([]byte, 32)...))
}

// tokenTagFromEntropy derives the reissuance token id from entropy. The
// token tag differs from the asset tag by a leading flag byte in the
// second hash input.
func tokenTagFromEntropy(entropy [32]byte) [32]byte {
	flagged := make([]byte, 32)
	flagged[0] = 1
	return doubleSHA256(append(append([]byte{}, entropy[:]...), flagged...))
}

// elip100Subtype is the ELIP100 proprietary-field subtype spec.md §6.3
// fixes for the issuance-contract field.
const elip100Subtype = 0x00

// elip100Value builds the ELIP100 value payload: compact-size-prefixed
// contract JSON, followed by the 32-byte prevout txid and little-endian
// 32-bit vout, spec.md §6.3.
func elip100Value(contractJSON []byte, prevoutTxid [32]byte, prevoutVout uint32) []byte {
	out := appendCompactSize(nil, uint64(len(contractJSON)))
	out = append(out, contractJSON...)
	out = append(out, prevoutTxid[:]...)
	var voutLE [4]byte
	binary.LittleEndian.PutUint32(voutLE[:], prevoutVout)
	return append(out, voutLE[:]...)
}

// appendCompactSize appends a Bitcoin/Elements compact-size (varint)
// encoding of n to buf.
func appendCompactSize(buf []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(buf, byte(n))
	case n <= 0xffff:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(n))
		return append(append(buf, 0xfd), b...)
	case n <= 0xffffffff:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(n))
		return append(append(buf, 0xfe), b...)
	default:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, n)
		return append(append(buf, 0xff), b...)
	}
}

// elip100Key builds the proprietary field key: consensus-encoded asset id
// (the 32-byte asset tag, as Elements consensus-encodes an asset id —
// i.e. verbatim), per spec.md §6.3.
func elip100Key(assetID [32]byte) []byte {
	return append([]byte{}, assetID[:]...)
}
