package obs

import "testing"

func TestTraceGeneratorNextIsMonotonic(t *testing.T) {
	g := NewTraceGenerator(100)
	if v := g.Next(); v != 101 {
		t.Fatalf("expected 101, got %d", v)
	}
	if v := g.Next(); v != 102 {
		t.Fatalf("expected 102, got %d", v)
	}
}

func TestTraceGeneratorZeroSeedUsesClock(t *testing.T) {
	g := NewTraceGenerator(0)
	if g.next == 0 {
		t.Fatalf("expected a zero seed to be replaced with a nonzero clock-derived value")
	}
}

func TestNilTraceGeneratorNextReturnsZero(t *testing.T) {
	var g *TraceGenerator
	if v := g.Next(); v != 0 {
		t.Fatalf("expected nil generator to return 0, got %d", v)
	}
}
