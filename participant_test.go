package replica

import (
	"testing"
	"time"
)

func TestParticipantTableAddIsIdempotent(t *testing.T) {
	tbl := NewParticipantTable()
	if !tbl.Add("p1") {
		t.Fatalf("expected first Add to report true")
	}
	if tbl.Add("p1") {
		t.Fatalf("expected second Add of the same id to report false")
	}
	if got := tbl.IDs(); len(got) != 1 {
		t.Fatalf("expected one participant, got %v", got)
	}
}

func TestParticipantTableIDsPreservesInsertionOrder(t *testing.T) {
	tbl := NewParticipantTable()
	tbl.Add("c")
	tbl.Add("a")
	tbl.Add("b")

	want := []ParticipantID{"c", "a", "b"}
	got := tbl.IDs()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestParticipantTableRemoveFreesEverythingItOwns(t *testing.T) {
	tbl := NewParticipantTable()
	tbl.Add("p1")
	p, _ := tbl.lookup("p1")
	p.mirror.insert(1, true, time.Now())
	p.commandQueue.merge(1, ExplicitConstruct)

	if !tbl.Remove("p1") {
		t.Fatalf("expected Remove to report true for an existing participant")
	}
	if tbl.Remove("p1") {
		t.Fatalf("expected a second Remove to report false")
	}
	if tbl.Contains("p1") {
		t.Fatalf("expected p1 to be gone")
	}
	if _, ok := tbl.lookup("p1"); ok {
		t.Fatalf("expected lookup of a removed participant to fail")
	}
}

func TestParticipantTableAddGeneratedProducesUniqueIDs(t *testing.T) {
	tbl := NewParticipantTable()
	a := tbl.AddGenerated()
	b := tbl.AddGenerated()

	if a == b {
		t.Fatalf("expected two distinct generated IDs, got %q twice", a)
	}
	if !tbl.Contains(a) || !tbl.Contains(b) {
		t.Fatalf("expected both generated IDs to be present in the table")
	}
	if got := len(tbl.IDs()); got != 2 {
		t.Fatalf("expected exactly two participants, got %d", got)
	}
}

func TestParticipantTablePurgeHandleClearsAcrossAllParticipants(t *testing.T) {
	tbl := NewParticipantTable()
	tbl.Add("p1")
	tbl.Add("p2")
	p1, _ := tbl.lookup("p1")
	p2, _ := tbl.lookup("p2")
	p1.mirror.insert(7, true, time.Now())
	p1.commandQueue.merge(7, ExplicitConstruct)
	p2.mirror.insert(7, false, time.Now())
	p2.commandQueue.merge(7, Serialize)

	tbl.purgeHandle(7)

	if p1.mirror.has(7) || p2.mirror.has(7) {
		t.Fatalf("expected the mirror entry to be purged for every participant")
	}
	if p1.commandQueue.len() != 0 || p2.commandQueue.len() != 0 {
		t.Fatalf("expected the command queue record to be purged for every participant")
	}
}

func TestNewParticipantStartsWithDownloadCompletePending(t *testing.T) {
	p := newParticipant("p1")
	if !p.callDownloadCompletePending {
		t.Fatalf("expected a freshly created participant to start with download-complete pending")
	}
}
