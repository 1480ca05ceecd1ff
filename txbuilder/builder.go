// Package txbuilder assembles blinded Elements PSETs from a Wollet's UTXO
// set, spec.md §4.6. It is grounded on lwk_wollet's TxBuilder
// (tx_builder.rs / pset_create.rs: a fluent method-chain that does not hold
// a reference to the wallet, spec.md §9) and on the teacher's
// lnwallet/chanfunding.CoinSelect two-pass "select, size, re-fee" idiom,
// generalized here from a single BTC-denominated amount to the multi-asset
// selection spec.md describes. PSET assembly itself uses
// github.com/vulpemventures/go-elements/psetv2, the same ecosystem library
// the unblinder (§4.3) already depends on.
package txbuilder

import (
	"github.com/decred/slog"
	"github.com/lwk-go/lwk/descriptor"
	"github.com/lwk-go/lwk/internal/chainfee"
	"github.com/lwk-go/lwk/internal/logmgr"
)

var log = logmgr.NewPkgLogger("TXBL")

// UseLogger configures the package-level logger.
func UseLogger(l slog.Logger) { log = l }

// issuanceKind tags which of the optional issuance operations a Builder
// carries, mirroring the Rust IssuanceRequest enum (None|Issuance|Reissuance)
// referenced in SPEC_FULL.md §4.6.
type issuanceKind uint8

const (
	issuanceNone issuanceKind = iota
	issuanceIssue
	issuanceReissue
)

// Builder composes a PSET across a sequence of fluent calls, matching
// spec.md §9's "not holding a reference to the wallet in the struct":
// the wallet is only consulted when Finish is called.
type Builder struct {
	network descriptor.Network
	params  descriptor.AddressParams

	recipients []Recipient
	feeRate    chainfee.SatPerKVByte

	issuanceKind issuanceKind
	issuance     IssuanceRequest
	reissuance   ReissuanceRequest

	manualUtxos []UTXO
	err         error
}

// New returns a Builder bound to network, with the spec's configured fee
// floor (spec.md §4.6).
func New(network descriptor.Network, params descriptor.AddressParams) *Builder {
	return &Builder{network: network, params: params, feeRate: chainfee.DefaultFeeRate}
}

// AddRecipient appends one payment target. Chainable.
func (b *Builder) AddRecipient(r Recipient) *Builder {
	b.recipients = append(b.recipients, r)
	return b
}

// FeeRate overrides the default fee rate (sat/kvB). Chainable.
func (b *Builder) FeeRate(rate chainfee.SatPerKVByte) *Builder {
	b.feeRate = rate
	return b
}

// Issuance attaches a single-asset issuance request. Chainable.
func (b *Builder) Issuance(r IssuanceRequest) *Builder {
	b.issuanceKind = issuanceIssue
	b.issuance = r
	return b
}

// Reissuance attaches a reissuance request. Chainable.
func (b *Builder) Reissuance(r ReissuanceRequest) *Builder {
	b.issuanceKind = issuanceReissue
	b.reissuance = r
	return b
}

// ManualUtxos overrides automatic coin selection with an explicit UTXO set,
// spec.md §4.6: "only allowed if no non-policy assets are involved" — Finish
// enforces that restriction.
func (b *Builder) ManualUtxos(utxos []UTXO) *Builder {
	b.manualUtxos = utxos
	return b
}
