package store

import "fmt"

// ErrUpdateHeightTooOld is returned by InsertUpdate when the Update's tip
// would regress the Store's tip height, spec.md §3.2/§4.5.
type ErrUpdateHeightTooOld struct {
	UpdateHeight Height
	StoreHeight  Height
}

func (e *ErrUpdateHeightTooOld) Error() string {
	return fmt.Sprintf("update tip height %d is older than store tip height %d",
		e.UpdateHeight, e.StoreHeight)
}

// ErrUpdateOnDifferentStatus is returned when the Update's base status no
// longer matches the Store's current status — the engine's concurrency
// control, spec.md §4.5/§5.
type ErrUpdateOnDifferentStatus struct {
	UpdateStatus uint64
	StoreStatus  uint64
}

func (e *ErrUpdateOnDifferentStatus) Error() string {
	return fmt.Sprintf("update status %d does not match store status %d",
		e.UpdateStatus, e.StoreStatus)
}
