// Package descriptor validates, normalizes and derives addresses from a
// confidential Elements descriptor string, the subset described in
// spec.md §3.1/§4.1. It is grounded on lwk_wollet/src/descriptor.rs's
// WolletDescriptor: a ConfidentialDescriptor restricted to wildcard,
// segwit-v0-only, at-most-two-branch multipath expressions.
package descriptor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// Chain is the first BIP32 index of a derivation path: 0 for addresses
// shown to payers, 1 for change. Single-chain (non-multipath) descriptors
// are always External, per spec.md §3.2.
type Chain uint8

const (
	External Chain = iota
	Internal
)

func (c Chain) String() string {
	if c == Internal {
		return "internal"
	}
	return "external"
}

// BlindingKind identifies which of the three supported blinding-key
// expressions a descriptor carries (spec.md §3.1).
type BlindingKind uint8

const (
	BlindingSLIP77 BlindingKind = iota
	BlindingELIP151
	BlindingExplicit
)

// ScriptKind is the supported segwit v0 output types (spec.md §3.2: "only
// segwit v0").
type ScriptKind uint8

const (
	ScriptWPKH ScriptKind = iota
	// ScriptWSH is reserved: elwsh(...) is rejected at Parse with
	// ErrWshNotImplemented, so no Descriptor ever carries this kind.
	ScriptWSH
)

// singleChain is one branch (External or Internal) of a parsed descriptor:
// its key expression with the per-chain index substituted in, ready for
// at-derivation-index expansion.
type singleChain struct {
	keyExpr  string // e.g. "[fgpt/84'/0'/0']xpub.../0/*"
	extended *hdkeychain.ExtendedKey
	path     []uint32 // fixed path segment between the extended key and the wildcard, e.g. [0] for "/0/*"
}

// Descriptor is a validated, normalized confidential Elements descriptor.
type Descriptor struct {
	raw string

	blindingKind   BlindingKind
	slip77Key      [32]byte          // valid when blindingKind == BlindingSLIP77
	explicitKey    *hdkeychain.ExtendedKey // valid when blindingKind == BlindingExplicit
	explicitPriv   bool              // true if explicitKey carries a private key

	scriptKind ScriptKind
	multipath  bool
	chains     map[Chain]singleChain
}

// Raw returns the original descriptor string (used as Store key material).
func (d *Descriptor) Raw() string { return d.raw }

func (d *Descriptor) String() string { return d.raw }

// BlindingKind reports which blinding-key expression this descriptor uses.
func (d *Descriptor) BlindingKind() BlindingKind { return d.blindingKind }

// Parse validates s against spec.md §3.2's rules and returns a Descriptor,
// or an *UnsupportedDescriptorError describing the first rule violated.
func Parse(s string) (*Descriptor, error) {
	body := s
	if i := strings.LastIndex(s, "#"); i >= 0 {
		body = s[:i]
	}

	inner, ok := unwrap(body, "ct(")
	if !ok {
		return nil, &UnsupportedDescriptorError{Reason: fmt.Errorf("%w: expected ct(...) wrapper", ErrMalformed)}
	}
	parts := splitTopLevel(inner)
	if len(parts) != 2 {
		return nil, &UnsupportedDescriptorError{Reason: fmt.Errorf("%w: expected blinding key and script expressions", ErrMalformed)}
	}

	d := &Descriptor{raw: s, chains: map[Chain]singleChain{}}

	if err := d.parseBlindingExpr(strings.TrimSpace(parts[0])); err != nil {
		return nil, err
	}
	if err := d.parseScriptExpr(strings.TrimSpace(parts[1])); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Descriptor) parseBlindingExpr(expr string) error {
	switch {
	case expr == "elip151":
		d.blindingKind = BlindingELIP151
		return nil
	case strings.HasPrefix(expr, "slip77("):
		inner, ok := unwrap(expr, "slip77(")
		if !ok {
			return &UnsupportedDescriptorError{Reason: fmt.Errorf("%w: malformed slip77() expression", ErrMalformed)}
		}
		raw, err := hex.DecodeString(inner)
		if err != nil || len(raw) != 32 {
			return &UnsupportedDescriptorError{Reason: fmt.Errorf("%w: slip77 master blinding key must be 32 bytes hex", ErrMalformed)}
		}
		d.blindingKind = BlindingSLIP77
		copy(d.slip77Key[:], raw)
		return nil
	default:
		// Either an extended (view) key, or a bare key — the latter is
		// refused outright per spec.md §3.2.
		keyPart := stripOrigin(expr)
		if looksLikeWildcard(keyPart) {
			return &UnsupportedDescriptorError{Reason: ErrWildcardViewKey}
		}
		if isMultipathKeyExpr(keyPart) {
			return &UnsupportedDescriptorError{Reason: ErrMultipathViewKey}
		}
		xkeyStr := firstPathSegment(keyPart)
		xkey, err := hdkeychain.NewKeyFromString(xkeyStr)
		if err != nil {
			return &UnsupportedDescriptorError{Reason: ErrBareBlindingKey}
		}
		d.blindingKind = BlindingExplicit
		d.explicitKey = xkey
		d.explicitPriv = xkey.IsPrivate()
		return nil
	}
}

func (d *Descriptor) parseScriptExpr(expr string) error {
	var kind ScriptKind
	var inner string
	var ok bool
	switch {
	case strings.HasPrefix(expr, "elwpkh("):
		kind = ScriptWPKH
		inner, ok = unwrap(expr, "elwpkh(")
	case strings.HasPrefix(expr, "elwsh("):
		return &UnsupportedDescriptorError{Reason: ErrWshNotImplemented}
	default:
		return &UnsupportedDescriptorError{Reason: ErrNonSegwitV0}
	}
	if !ok {
		return &UnsupportedDescriptorError{Reason: fmt.Errorf("%w: malformed script expression", ErrMalformed)}
	}
	d.scriptKind = kind

	keyExprs := extractKeyExpressions(inner)
	if len(keyExprs) == 0 {
		return &UnsupportedDescriptorError{Reason: fmt.Errorf("%w: no key expressions found", ErrMalformed)}
	}

	multipath := isMultipathKeyExpr(keyExprs[0])
	for _, ke := range keyExprs {
		if isMultipathKeyExpr(ke) != multipath {
			return &UnsupportedDescriptorError{Reason: ErrMultipathBadSuffix}
		}
	}
	d.multipath = multipath

	if multipath {
		branches, err := multipathBranches(keyExprs[0])
		if err != nil {
			return err
		}
		ext, err := extractExtendedKey(keyExprs[0])
		if err != nil {
			return &UnsupportedDescriptorError{Reason: ErrMalformed}
		}
		fixedPath, err := fixedPathSegment(keyExprs[0], true)
		if err != nil {
			return err
		}
		d.chains[External] = singleChain{
			keyExpr:  replaceBranch(keyExprs[0], branches[0]),
			extended: ext,
			path:     append(append([]uint32{}, fixedPath...), branches[0]),
		}
		d.chains[Internal] = singleChain{
			keyExpr:  replaceBranch(keyExprs[0], branches[1]),
			extended: ext,
			path:     append(append([]uint32{}, fixedPath...), branches[1]),
		}
	} else {
		if !strings.HasSuffix(keyExprs[0], "/*") {
			return &UnsupportedDescriptorError{Reason: ErrMissingWildcard}
		}
		ext, err := extractExtendedKey(keyExprs[0])
		if err != nil {
			return &UnsupportedDescriptorError{Reason: ErrMalformed}
		}
		fixedPath, err := fixedPathSegment(keyExprs[0], false)
		if err != nil {
			return err
		}
		d.chains[External] = singleChain{keyExpr: keyExprs[0], extended: ext, path: fixedPath}
	}

	return nil
}

// SingleChainDescriptors returns one entry for a non-multipath descriptor,
// two (external, internal) for a multipath one — spec.md §4.1's
// single-chain-descriptor split, adapted here to return the Chain tag
// rather than a reconstructed single-chain Descriptor value, since every
// other method on Descriptor already takes a Chain and there is no
// separate single-chain Descriptor type in this package.
func (d *Descriptor) SingleChainDescriptors() []Chain {
	if d.multipath {
		return []Chain{External, Internal}
	}
	return []Chain{External}
}

// Multipath reports whether this descriptor carries two chains.
func (d *Descriptor) Multipath() bool { return d.multipath }

// chainFor resolves requested to the singleChain it derives from. A
// non-multipath descriptor has only an External chain: requesting Internal
// on it is an error rather than a silent alias of External, so Change()
// never returns the same script/address as Address() (TESTABLE property 1).
func (d *Descriptor) chainFor(requested Chain) (singleChain, Chain, error) {
	if !d.multipath {
		if requested != External {
			return singleChain{}, requested, &UnsupportedDescriptorError{Reason: ErrNoInternalChain}
		}
		return d.chains[External], External, nil
	}
	return d.chains[requested], requested, nil
}

// ScriptPubKeyAt derives the raw (unblinded) segwit v0 script for
// (chain, index).
func (d *Descriptor) ScriptPubKeyAt(chain Chain, index uint32) ([]byte, error) {
	sc, _, err := d.chainFor(chain)
	if err != nil {
		return nil, err
	}
	if sc.extended == nil {
		return nil, &UnsupportedDescriptorError{Reason: ErrIndexWithoutWildcard}
	}
	key := sc.extended
	for _, p := range sc.path {
		var err error
		key, err = key.Derive(p)
		if err != nil {
			return nil, err
		}
	}
	key, err = key.Derive(index)
	if err != nil {
		return nil, err
	}
	pub, err := key.ECPubKey()
	if err != nil {
		return nil, err
	}
	return segwitV0Script(d.scriptKind, pub)
}

func segwitV0Script(kind ScriptKind, pub *btcec.PublicKey) ([]byte, error) {
	if kind != ScriptWPKH {
		return nil, ErrUnsupportedScriptType
	}
	// OP_0 <20-byte-hash>
	pkh := btcutil.Hash160(pub.SerializeCompressed())
	return append([]byte{0x00, 0x14}, pkh...), nil
}

// BlindingPrivKeyForScript derives the blinding private key for script per
// spec.md §4.3: SLIP77/ELIP151 use HMAC-SHA256(masterKey, script); an
// explicit view key is script-independent. Returns
// ErrMissingPrivateBlindingKey if only a public extended key is available.
func (d *Descriptor) BlindingPrivKeyForScript(script []byte) (*btcec.PrivateKey, error) {
	switch d.blindingKind {
	case BlindingSLIP77, BlindingELIP151:
		master := d.masterBlindingKey()
		mac := hmac.New(sha256.New, master[:])
		mac.Write(script)
		scalar := mac.Sum(nil)
		priv, _ := btcec.PrivKeyFromBytes(scalar)
		return priv, nil
	case BlindingExplicit:
		if !d.explicitPriv {
			return nil, ErrMissingPrivateBlindingKey
		}
		priv, err := d.explicitKey.ECPrivKey()
		if err != nil {
			return nil, err
		}
		return priv, nil
	}
	return nil, ErrMissingPrivateBlindingKey
}

// BlindingPubKeyForScript derives the public blinding key embedded in
// addresses for script.
func (d *Descriptor) BlindingPubKeyForScript(script []byte) (*btcec.PublicKey, error) {
	switch d.blindingKind {
	case BlindingSLIP77, BlindingELIP151:
		priv, err := d.BlindingPrivKeyForScript(script)
		if err != nil {
			return nil, err
		}
		return priv.PubKey(), nil
	case BlindingExplicit:
		return d.explicitKey.ECPubKey()
	}
	return nil, ErrMissingPrivateBlindingKey
}

// masterBlindingKey returns the 32-byte root used for per-script HMAC
// derivation. For ELIP151, per spec.md §4.4 ("derived from the descriptor
// itself"), the root is a tagged hash of the script-half of the descriptor
// (the blinding key expression, being "elip151", contributes nothing of
// its own, by design ELIP151 keys are self-derived from the spending
// descriptor).
func (d *Descriptor) masterBlindingKey() [32]byte {
	if d.blindingKind == BlindingSLIP77 {
		return d.slip77Key
	}
	h := hmac.New(sha256.New, []byte("ELIP151/liquid-blinding-key"))
	h.Write([]byte(d.spendingDescriptorString()))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (d *Descriptor) spendingDescriptorString() string {
	inner, _ := unwrap(d.raw, "ct(")
	parts := splitTopLevel(inner)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[1])
	}
	return d.raw
}

