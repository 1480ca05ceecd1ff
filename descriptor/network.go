package descriptor

import "encoding/hex"

// Network selects the policy asset and address parameter set, per
// spec.md §6.4.
type Network uint8

const (
	Liquid Network = iota
	LiquidTestnet
	ElementsRegtest
)

// AddressParams mirrors the handful of network constants the descriptor and
// address-derivation code needs: the confidential/unconfidential prefixes
// used for base58 P2PKH/P2SH addresses and the bech32 HRP used for segwit
// addresses, plus the blinding-prefix byte prepended to confidential
// addresses.
type AddressParams struct {
	Bech32HRP        string
	Blech32HRP       string
	PubKeyHashPrefix byte
	ScriptHashPrefix byte
	BlindPrefix      byte
	PolicyAsset      [32]byte
}

var (
	liquidMainnetAsset, _ = hexAssetID("6f0279e9ed041c3d710a9f57d0c02928416460c4b722ae3457a11eec381c5266")
	liquidTestnetAsset, _ = hexAssetID("144c654344aa716d6f3abcc1ca90e5641e4e2a7f633bc09fe3baf64585819a49")
)

// Params returns the AddressParams for n. ElementsRegtest's policy asset is
// caller-supplied (spec.md §6.4) and must be set by the caller after
// construction; Params returns the zero asset for it.
func (n Network) Params() AddressParams {
	switch n {
	case Liquid:
		return AddressParams{
			Bech32HRP:        "ex",
			Blech32HRP:       "lq",
			PubKeyHashPrefix: 0x39,
			ScriptHashPrefix: 0x27,
			BlindPrefix:      0x0c,
			PolicyAsset:      liquidMainnetAsset,
		}
	case LiquidTestnet:
		return AddressParams{
			Bech32HRP:        "tex",
			Blech32HRP:       "tlq",
			PubKeyHashPrefix: 0x24,
			ScriptHashPrefix: 0x13,
			BlindPrefix:      0x04,
			PolicyAsset:      liquidTestnetAsset,
		}
	default: // ElementsRegtest
		return AddressParams{
			Bech32HRP:        "ert",
			Blech32HRP:       "el",
			PubKeyHashPrefix: 0xeb,
			ScriptHashPrefix: 0x4b,
			BlindPrefix:      0x04,
		}
	}
}

// RegtestParams returns the regtest AddressParams with policyAsset as the
// fee-paying asset (spec.md §6.4: "for regtest it is user-supplied").
func RegtestParams(policyAsset [32]byte) AddressParams {
	p := ElementsRegtest.Params()
	p.PolicyAsset = policyAsset
	return p
}

func hexAssetID(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}
