package txbuilder

import "fmt"

// ErrInsufficientFunds is returned by Finish when the selected UTXOs (or,
// for the policy asset, the entire available set) cannot cover the
// requested recipients plus fee, spec.md §4.6.
type ErrInsufficientFunds struct {
	Asset      [32]byte
	MissingSat uint64
	IsToken    bool
}

func (e *ErrInsufficientFunds) Error() string {
	kind := "asset"
	if e.IsToken {
		kind = "token"
	}
	return fmt.Sprintf("insufficient funds: missing %d sat of %s %x", e.MissingSat, kind, e.Asset)
}

// ErrTooManyInputs is returned when coin selection would exceed the
// hard 256-input limit, spec.md §4.6.
type ErrTooManyInputs struct {
	Count int
}

func (e *ErrTooManyInputs) Error() string {
	return fmt.Sprintf("too many inputs selected: %d exceeds the 256 limit", e.Count)
}

// ErrIssuanceAmountGreaterThanBtcMax is returned when an issuance or
// reissuance amount exceeds 21*10^14 satoshi, spec.md §4.6.
type ErrIssuanceAmountGreaterThanBtcMax struct {
	Satoshi uint64
}

func (e *ErrIssuanceAmountGreaterThanBtcMax) Error() string {
	return fmt.Sprintf("issuance amount %d exceeds the maximum representable btc-like supply", e.Satoshi)
}

// MaxIssuanceSatoshi is 21*10^14, the upper bound on any issuance or
// reissuance amount, spec.md §4.6.
const MaxIssuanceSatoshi = 21 * 100_000_000_000_000
