package descriptor

import (
	"errors"
	"testing"
)

const testWpkhDescriptor = "ct(slip77(ab0000000000000000000000000000000000000000000000000000000000cd),elwpkh([00000000/84'/1'/0']tpubD6NzVbkrYhZ4WZaiWHz59q5EQ61an4tQciAqg9YcqRF8B5AnrFhWHhT3nu4HvuuhSNn5uNgy4Szgh94rvrvt3x3jR8cKaRPkoDqZPqeSLuz/0/*))"

func TestParseRejectsElwsh(t *testing.T) {
	expr := "ct(slip77(ab0000000000000000000000000000000000000000000000000000000000cd),elwsh(multi(2,[00000000/84'/1'/0']tpubD6NzVbkrYhZ4WZaiWHz59q5EQ61an4tQciAqg9YcqRF8B5AnrFhWHhT3nu4HvuuhSNn5uNgy4Szgh94rvrvt3x3jR8cKaRPkoDqZPqeSLuz/0/*)))"
	_, err := Parse(expr)
	if err == nil {
		t.Fatalf("expected Parse to reject elwsh, got nil error")
	}
	var unsupported *UnsupportedDescriptorError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedDescriptorError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrWshNotImplemented) {
		t.Fatalf("expected ErrWshNotImplemented, got %v", unsupported.Reason)
	}
}

func TestChangeOnNonMultipathDescriptorErrors(t *testing.T) {
	d, err := Parse(testWpkhDescriptor)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Multipath() {
		t.Fatalf("test descriptor is expected to be non-multipath")
	}
	if _, err := d.Change(0, LiquidTestnet); !errors.Is(err, ErrNoInternalChain) {
		t.Fatalf("expected ErrNoInternalChain, got %v", err)
	}
}

func TestAddressAndChangeDiffersOnMultipathDescriptor(t *testing.T) {
	expr := "ct(slip77(ab0000000000000000000000000000000000000000000000000000000000cd),elwpkh([00000000/84'/1'/0']tpubD6NzVbkrYhZ4WZaiWHz59q5EQ61an4tQciAqg9YcqRF8B5AnrFhWHhT3nu4HvuuhSNn5uNgy4Szgh94rvrvt3x3jR8cKaRPkoDqZPqeSLuz/<0;1>/*))"
	d, err := Parse(expr)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !d.Multipath() {
		t.Fatalf("test descriptor is expected to be multipath")
	}
	addr, err := d.Address(0, LiquidTestnet)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	change, err := d.Change(0, LiquidTestnet)
	if err != nil {
		t.Fatalf("Change: %v", err)
	}
	if addr == change {
		t.Fatalf("expected Address and Change to derive different scripts on a multipath descriptor")
	}
}
