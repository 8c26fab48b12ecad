package subs

import "testing"

func TestRegistry_AddReplaces(t *testing.T) {
	r := NewRegistry()

	first := r.Add("IBM US Equity", []string{"LAST_PRICE"}, 1)
	second := r.Add("IBM US Equity", []string{"LAST_PRICE", "BID"}, 1)

	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	if first.CorrelationID == second.CorrelationID {
		t.Error("re-subscribe kept the old correlation id")
	}

	snap := r.Snapshot()
	if got := len(snap["IBM US Equity"].Fields); got != 2 {
		t.Errorf("fields = %d, want 2", got)
	}
}

func TestRegistry_RemoveIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Add("IBM US Equity", []string{"LAST_PRICE"}, 1)

	if _, ok := r.Remove("IBM US Equity"); !ok {
		t.Error("first remove reported absent")
	}
	if _, ok := r.Remove("IBM US Equity"); ok {
		t.Error("second remove reported present")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestRegistry_RemoveByCorrelation(t *testing.T) {
	r := NewRegistry()
	sub := r.Add("IBM US Equity", []string{"LAST_PRICE"}, 1)
	r.Add("VOD LN Equity", []string{"LAST_PRICE"}, 1)

	removed, ok := r.RemoveByCorrelation(sub.CorrelationID)
	if !ok || removed.Security != "IBM US Equity" {
		t.Fatalf("RemoveByCorrelation = %v, %v", removed, ok)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	if _, ok := r.RemoveByCorrelation(sub.CorrelationID); ok {
		t.Error("removing an already-absent correlation id reported present")
	}
}

func TestRegistry_MarkReplayed(t *testing.T) {
	r := NewRegistry()
	sub := r.Add("IBM US Equity", []string{"LAST_PRICE"}, 1)

	r.MarkReplayed(sub.CorrelationID, 2)

	if got := r.Snapshot()["IBM US Equity"].Generation; got != 2 {
		t.Errorf("generation = %d, want 2", got)
	}
	// Unknown ids are ignored.
	r.MarkReplayed("unknown", 9)
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	sub := r.Add("VOD LN Equity", []string{"BID", "ASK"}, 1)

	security, ok := r.Resolve(sub.CorrelationID)
	if !ok || security != "VOD LN Equity" {
		t.Errorf("Resolve = %q, %v", security, ok)
	}
	if _, ok := r.Resolve("unknown"); ok {
		t.Error("resolved an unknown correlation id")
	}
}

func TestRegistry_SnapshotIsolated(t *testing.T) {
	r := NewRegistry()
	r.Add("IBM US Equity", []string{"LAST_PRICE"}, 1)

	snap := r.Snapshot()
	delete(snap, "IBM US Equity")

	if r.Len() != 1 {
		t.Error("mutating a snapshot affected the live table")
	}
}
