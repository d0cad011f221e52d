package storesink

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BitFinance-Co/dex/internal/domain"
)

func TestStorePersistsAndCreatesSegmentFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer sink.Close()

	var id domain.OrderID
	id[0] = 1
	outcome := sink.Store(context.Background(), domain.QueueEvent{
		Kind: domain.EventPlaced,
		Order: domain.AcceptedOrder{Order: domain.Order{ID: id}},
	})
	require.Equal(t, domain.StorePersisted, outcome.Kind)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "segment-00000.wal", entries[0].Name())

	info, err := os.Stat(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestStoreReturnsFeatureOffWhenDisabled(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.Enabled = false
	sink, err := Open(cfg)
	require.NoError(t, err)
	defer sink.Close()

	outcome := sink.Store(context.Background(), domain.QueueEvent{Kind: domain.EventCanceled})
	require.Equal(t, domain.StoreFeatureOff, outcome.Kind)
}

func TestSinkRotatesSegmentsOnceSizeExceeded(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.SegmentMaxSize = 64 // every record exceeds this, so each write rotates
	sink, err := Open(cfg)
	require.NoError(t, err)
	defer sink.Close()

	for i := 0; i < 5; i++ {
		var id domain.OrderID
		id[0] = byte(i)
		outcome := sink.Store(context.Background(), domain.QueueEvent{
			Kind:  domain.EventCanceled,
			Pair:  domain.AssetPair{AmountAsset: domain.NativeAsset, PriceAsset: domain.IssuedAsset([32]byte{1})},
			OrderID: id,
		})
		require.Equal(t, domain.StorePersisted, outcome.Kind)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Greater(t, len(entries), 1, "expected multiple segment files once the size cap was exceeded")
}
