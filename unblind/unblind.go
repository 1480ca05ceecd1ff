// Package unblind recovers the plaintext asset, value and blinding factors
// of a confidential Elements output, per spec.md §4.3. It is a pure
// function of (output, descriptor): no network or Store access, matching
// lwk_wollet's Unblinder contract.
package unblind

import (
	"errors"
	"fmt"

	"github.com/lwk-go/lwk/descriptor"
	"github.com/vulpemventures/go-elements/confidential"
	"github.com/vulpemventures/go-elements/transaction"
)

// TxOutSecrets is the recovered plaintext for a confidential output,
// mirroring the Rust TxOutSecrets used throughout lwk_wollet.
type TxOutSecrets struct {
	Asset    [32]byte
	AssetBF  [32]byte
	Value    uint64
	ValueBF  [32]byte
}

var (
	// ErrNotConfidentialOutput is returned when asset/value/nonce are not
	// all commitments (spec.md §4.3).
	ErrNotConfidentialOutput = errors.New("output is not confidential")

	// ErrMissingPrivateBlindingKey re-exports the descriptor package's
	// sentinel so callers can errors.Is against either package.
	ErrMissingPrivateBlindingKey = descriptor.ErrMissingPrivateBlindingKey
)

// UnblindError wraps a failure from the underlying ECDH+rangeproof
// cryptography (spec.md §7's Cryptographic "Unblind" kind).
type UnblindError struct {
	Cause error
}

func (e *UnblindError) Error() string { return fmt.Sprintf("unblind: %v", e.Cause) }
func (e *UnblindError) Unwrap() error { return e.Cause }

// Unblind recovers the secrets for out, whose script_pubkey must belong to
// desc (the caller is responsible for that check via the Store's paths
// map; Unblind itself only needs the script to derive the blinding key).
func Unblind(out *transaction.TxOutput, desc *descriptor.Descriptor) (*TxOutSecrets, error) {
	if !isConfidential(out) {
		return nil, ErrNotConfidentialOutput
	}

	blindingPriv, err := desc.BlindingPrivKeyForScript(out.Script)
	if err != nil {
		return nil, err
	}

	res, err := confidential.UnblindOutputWithKey(out, blindingPriv.Serialize())
	if err != nil {
		return nil, &UnblindError{Cause: err}
	}

	secrets := &TxOutSecrets{
		Value: res.Value,
	}
	copy(secrets.Asset[:], res.Asset)
	copy(secrets.AssetBF[:], res.AssetBlindingFactor[:])
	copy(secrets.ValueBF[:], res.ValueBlindingFactor[:])
	return secrets, nil
}

func isConfidential(out *transaction.TxOutput) bool {
	// Confidential commitments are prefixed 0x0a/0x0b (asset) and
	// 0x08/0x09 (value) rather than the 0x01/explicit-length encodings;
	// a confidential output additionally always carries a 33-byte
	// ephemeral nonce and a non-empty rangeproof.
	return len(out.Asset) == 33 && (out.Asset[0] == 0x0a || out.Asset[0] == 0x0b) &&
		len(out.Value) == 33 && (out.Value[0] == 0x08 || out.Value[0] == 0x09) &&
		len(out.Nonce) == 33 &&
		len(out.RangeProof) > 0
}
