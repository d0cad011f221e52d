package domain

import "encoding/hex"

// AssetKind distinguishes the chain's native asset from an issued one.
type AssetKind uint8

const (
	AssetNative AssetKind = iota
	AssetIssued
)

// Asset is a tagged identifier for a tradable asset. It is a plain
// comparable struct so it can be used directly as a map key, mirroring the
// teacher's scaled-integer value types (internal/schema.Price and friends)
// that are passed by value throughout the ledger.
type Asset struct {
	Kind AssetKind
	ID   [32]byte // zero for AssetNative
}

// NativeAsset is the chain's native asset (e.g. WAVES).
var NativeAsset = Asset{Kind: AssetNative}

// IssuedAsset builds an Asset for an issued token id.
func IssuedAsset(id [32]byte) Asset {
	return Asset{Kind: AssetIssued, ID: id}
}

func (a Asset) String() string {
	if a.Kind == AssetNative {
		return "WAVES"
	}
	return hex.EncodeToString(a.ID[:])
}

// AssetPair identifies a trading pair (amount asset / price asset).
type AssetPair struct {
	AmountAsset Asset
	PriceAsset  Asset
}

func (p AssetPair) String() string {
	return p.AmountAsset.String() + "/" + p.PriceAsset.String()
}
