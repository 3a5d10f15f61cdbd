package replica

import "testing"

func TestCommandQueueMergeCombinesBits(t *testing.T) {
	q := newCommandQueue()
	q.merge(1, ExplicitConstruct)
	q.merge(1, Serialize)

	snap := q.snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected one record, got %d", len(snap))
	}
	if snap[0].bits != ExplicitConstruct|Serialize {
		t.Fatalf("expected merged bits, got %v", snap[0].bits)
	}
}

// I3: scope bits are mutually exclusive; the most recently merged bit wins.
func TestCommandQueueScopeOverrideLatestWins(t *testing.T) {
	q := newCommandQueue()
	q.merge(1, ScopeTrue)
	q.merge(1, ScopeFalse)

	snap := q.snapshot()
	if snap[0].bits&ScopeTrue != 0 {
		t.Fatalf("expected ScopeTrue to be cleared by a later ScopeFalse")
	}
	if snap[0].bits&ScopeFalse == 0 {
		t.Fatalf("expected ScopeFalse to be set")
	}

	q.merge(1, ScopeTrue)
	snap = q.snapshot()
	if snap[0].bits&ScopeFalse != 0 {
		t.Fatalf("expected ScopeFalse to be cleared by a later ScopeTrue")
	}
	if snap[0].bits&ScopeTrue == 0 {
		t.Fatalf("expected ScopeTrue to be set")
	}
}

// I4: an explicit construct supersedes a previously queued implicit one.
func TestCommandQueueExplicitConstructSupersedesImplicit(t *testing.T) {
	q := newCommandQueue()
	q.merge(1, ImplicitConstruct)
	q.merge(1, ExplicitConstruct)

	snap := q.snapshot()
	if snap[0].bits&ImplicitConstruct != 0 {
		t.Fatalf("expected ImplicitConstruct to be cleared once ExplicitConstruct is queued")
	}
	if snap[0].bits&ExplicitConstruct == 0 {
		t.Fatalf("expected ExplicitConstruct to remain set")
	}
}

// The reverse order must not resurrect implicit construct either: I4 is a
// standing invariant on the merged record, not a one-shot check.
func TestCommandQueueImplicitConstructAfterExplicitStaysSuppressed(t *testing.T) {
	q := newCommandQueue()
	q.merge(1, ExplicitConstruct)
	q.merge(1, ImplicitConstruct)

	snap := q.snapshot()
	if snap[0].bits != ExplicitConstruct {
		t.Fatalf("expected only ExplicitConstruct to remain, got %v", snap[0].bits)
	}
}

// I2: at most one record per handle.
func TestCommandQueueAtMostOneRecordPerHandle(t *testing.T) {
	q := newCommandQueue()
	q.merge(1, ExplicitConstruct)
	q.merge(2, ExplicitConstruct)
	q.merge(1, Serialize)

	if q.len() != 2 {
		t.Fatalf("expected 2 records, got %d", q.len())
	}
}

func TestCommandQueuePreservesInsertionOrder(t *testing.T) {
	q := newCommandQueue()
	q.merge(5, ExplicitConstruct)
	q.merge(1, ExplicitConstruct)
	q.merge(3, ExplicitConstruct)

	snap := q.snapshot()
	want := []Handle{5, 1, 3}
	for i, h := range want {
		if snap[i].handle != h {
			t.Fatalf("expected order %v, got handle %d at index %d", want, snap[i].handle, i)
		}
	}
}

func TestCommandQueuePurgeRemovesRecordAndReindexes(t *testing.T) {
	q := newCommandQueue()
	q.merge(1, ExplicitConstruct)
	q.merge(2, ExplicitConstruct)
	q.merge(3, ExplicitConstruct)

	q.purge(1)

	if q.len() != 2 {
		t.Fatalf("expected 2 records after purge, got %d", q.len())
	}
	snap := q.snapshot()
	if snap[0].handle != 2 || snap[1].handle != 3 {
		t.Fatalf("expected remaining handles [2 3], got %v", snap)
	}

	// A subsequent purge of a still-present handle must still find it by
	// its reindexed position.
	q.purge(3)
	if q.len() != 1 {
		t.Fatalf("expected 1 record after second purge, got %d", q.len())
	}
}

func TestCommandQueuePurgeOfUnknownHandleIsNoop(t *testing.T) {
	q := newCommandQueue()
	q.merge(1, ExplicitConstruct)
	q.purge(999)
	if q.len() != 1 {
		t.Fatalf("expected purge of unknown handle to be a no-op")
	}
}

func TestCommandQueueRetirePartialLeavesRemainderQueued(t *testing.T) {
	q := newCommandQueue()
	q.merge(1, ExplicitConstruct|Serialize)

	q.retire(1, ExplicitConstruct)

	if q.len() != 1 {
		t.Fatalf("expected record to remain queued for the unretired bit")
	}
	snap := q.snapshot()
	if snap[0].bits != Serialize {
		t.Fatalf("expected only Serialize left pending, got %v", snap[0].bits)
	}
}

func TestCommandQueueRetireFullRemovesRecord(t *testing.T) {
	q := newCommandQueue()
	q.merge(1, ExplicitConstruct|Serialize)

	q.retire(1, ExplicitConstruct|Serialize)

	if q.len() != 0 {
		t.Fatalf("expected record to be purged once every bit retires")
	}
}

func TestCommandQueueHasConstructionPending(t *testing.T) {
	q := newCommandQueue()
	if q.hasConstructionPending() {
		t.Fatalf("expected empty queue to report no pending construction")
	}
	q.merge(1, Serialize)
	if q.hasConstructionPending() {
		t.Fatalf("expected a serialize-only record not to count as pending construction")
	}
	q.merge(2, ImplicitConstruct)
	if !q.hasConstructionPending() {
		t.Fatalf("expected a pending implicit construct to be reported")
	}
}
