package domain

import "testing"

func TestCleanBalancesDropsZeroEntries(t *testing.T) {
	m := map[Asset]int64{NativeAsset: 0, IssuedAsset([32]byte{1}): 5}
	got := CleanBalances(m)
	if _, ok := got[NativeAsset]; ok {
		t.Fatalf("expected zero-valued entry to be dropped, got %+v", got)
	}
	if got[IssuedAsset([32]byte{1})] != 5 {
		t.Fatalf("expected non-zero entry to survive, got %+v", got)
	}
}

func TestAddBalancesCombinesAndCleans(t *testing.T) {
	usd := IssuedAsset([32]byte{2})
	dst := map[Asset]int64{usd: 10}
	src := map[Asset]int64{usd: -10, NativeAsset: 3}

	got := AddBalances(dst, src)
	if _, ok := got[usd]; ok {
		t.Fatalf("expected usd to cancel out to zero and be dropped, got %+v", got)
	}
	if got[NativeAsset] != 3 {
		t.Fatalf("expected WAVES:3, got %+v", got)
	}
}

func TestSubBalancesIsPointwise(t *testing.T) {
	waves := NativeAsset
	dst := map[Asset]int64{waves: 10}
	src := map[Asset]int64{waves: 4}

	got := SubBalances(dst, src)
	if got[waves] != 6 {
		t.Fatalf("expected WAVES:6, got %+v", got)
	}
}

func TestCloneBalancesIsIndependentCopy(t *testing.T) {
	orig := map[Asset]int64{NativeAsset: 1}
	clone := CloneBalances(orig)
	clone[NativeAsset] = 99
	if orig[NativeAsset] != 1 {
		t.Fatalf("mutating clone leaked back into original: %+v", orig)
	}
}

func TestAcceptedOrderRemainingAmount(t *testing.T) {
	ao := AcceptedOrder{
		Order:   Order{Amount: 100},
		Filling: Filling{FilledAmount: 30},
	}
	if ao.RemainingAmount() != 70 {
		t.Fatalf("expected remaining 70, got %d", ao.RemainingAmount())
	}
	if !ao.IsValidRemainder() {
		t.Fatalf("expected a positive remainder to be valid")
	}

	ao.FilledAmount = 100
	if ao.IsValidRemainder() {
		t.Fatalf("expected a fully filled order to have no valid remainder")
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	cases := []struct {
		kind     OrderStatusKind
		terminal bool
	}{
		{StatusNotFound, false},
		{StatusAccepted, false},
		{StatusPartiallyFilled, false},
		{StatusFilled, true},
		{StatusCancelled, true},
	}
	for _, c := range cases {
		s := OrderStatus{Kind: c.kind}
		if s.IsTerminal() != c.terminal {
			t.Fatalf("status kind %v: expected terminal=%v, got %v", c.kind, c.terminal, s.IsTerminal())
		}
	}
}
