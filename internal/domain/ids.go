// Package domain holds the data model shared by the account actor, the
// balance oracle and the directory: addresses, order identifiers, assets,
// orders and the error taxonomy surfaced to clients.
package domain

import (
	"encoding/hex"
	"fmt"
)

// Address is the opaque binary identifier of a trading account.
type Address [20]byte

// String renders the address as a hex string for logs and JSON.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler so Address can be used as
// a JSON object key and value without a custom marshaler on every call site.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(b) != len(a) {
		return fmt.Errorf("decode address: expected %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return nil
}

// OrderID is the opaque fixed-width binary identifier of an order.
type OrderID [32]byte

func (id OrderID) String() string {
	return hex.EncodeToString(id[:])
}

func (id OrderID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *OrderID) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("decode order id: %w", err)
	}
	if len(b) != len(id) {
		return fmt.Errorf("decode order id: expected %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return nil
}

// IsZero reports whether the order id is the zero value.
func (id OrderID) IsZero() bool {
	return id == OrderID{}
}
