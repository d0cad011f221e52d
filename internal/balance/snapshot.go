package balance

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BitFinance-Co/dex/internal/domain"
)

// Snapshot is a point-in-time dump of every address the oracle has ever
// cached, used to warm-start a restarted matcher before the blockchain
// watch stream catches up with fresh UpdateStates pushes. Adapted from the
// teacher's internal/state.Snapshot (there, a single process-wide position
// table; here, one entry per address).
type Snapshot struct {
	Timestamp int64                  `json:"timestamp"`
	Accounts  []AccountBalanceEntry  `json:"accounts"`
}

// AccountBalanceEntry is one address's cached balances.
type AccountBalanceEntry struct {
	Address  domain.Address        `json:"address"`
	Balances map[string]int64      `json:"balances"`
}

// Snapshot captures the oracle's current cache contents. Entries whose
// cache was never populated are skipped.
func (o *Oracle) Snapshot() Snapshot {
	o.mu.Lock()
	addrs := make([]domain.Address, 0, len(o.cache))
	for a := range o.cache {
		addrs = append(addrs, a)
	}
	o.mu.Unlock()
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].String() < addrs[j].String() })

	entries := make([]AccountBalanceEntry, 0, len(addrs))
	for _, addr := range addrs {
		e := o.entry(addr)
		e.mu.Lock()
		if len(e.full) == 0 {
			e.mu.Unlock()
			continue
		}
		balances := make(map[string]int64, len(e.full))
		for asset, v := range e.full {
			balances[asset.String()] = v
		}
		e.mu.Unlock()
		entries = append(entries, AccountBalanceEntry{Address: addr, Balances: balances})
	}

	return Snapshot{Timestamp: time.Now().UTC().UnixNano(), Accounts: entries}
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot previously written by WriteSnapshot. Only
// the native asset and issued assets already known by their hex id can be
// rehydrated; callers that need name resolution should do it themselves
// before calling LoadSnapshot.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// LoadSnapshot seeds the oracle's cache from a previously captured
// snapshot, marking each address as a complete snapshot so Get/GetSnapshot
// serve from cache; the mark is never cleared, and later UpdateStates
// pushes merge into the cached values.
// decode maps an asset's display string back to a domain.Asset; callers
// own the native/issued decoding scheme.
func (o *Oracle) LoadSnapshot(snap Snapshot, decode func(string) (domain.Asset, bool)) {
	for _, entry := range snap.Accounts {
		full := make(map[domain.Asset]int64, len(entry.Balances))
		for name, v := range entry.Balances {
			asset, ok := decode(name)
			if !ok {
				continue
			}
			full[asset] = v
		}
		e := o.entry(entry.Address)
		e.mu.Lock()
		e.full = full
		e.snapshot = true
		e.mu.Unlock()
	}
}
