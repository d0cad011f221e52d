package domain

import "testing"

func TestAddressTextRoundTrip(t *testing.T) {
	var addr Address
	addr[0] = 0xde
	addr[19] = 0xad

	text, err := addr.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var got Address
	if err := got.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if got != addr {
		t.Fatalf("round trip mismatch: got %v want %v", got, addr)
	}
}

func TestAddressUnmarshalTextRejectsWrongLength(t *testing.T) {
	var addr Address
	if err := addr.UnmarshalText([]byte("aabb")); err == nil {
		t.Fatalf("expected error for short address text")
	}
}

func TestOrderIDIsZero(t *testing.T) {
	var id OrderID
	if !id.IsZero() {
		t.Fatalf("expected zero value OrderID to report IsZero")
	}
	id[0] = 1
	if id.IsZero() {
		t.Fatalf("expected non-zero OrderID to report !IsZero")
	}
}
