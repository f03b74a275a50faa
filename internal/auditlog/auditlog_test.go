package auditlog_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jmerrifield20/DeliveryRiskTracker/internal/auditlog"
)

var ctx = context.Background()

func TestNewMemory_genesisEntry(t *testing.T) {
	l := auditlog.NewMemory()

	n, err := l.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 genesis entry, got %d", n)
	}

	entry, err := l.Get(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Action != "genesis" || entry.Hash != auditlog.GenesisHash {
		t.Errorf("unexpected genesis entry: %+v", entry)
	}
}

func TestAppend_chainsEntries(t *testing.T) {
	l := auditlog.NewMemory()
	subject := auditlog.ProjectSubject(12)

	e1, err := l.Append(ctx, subject, auditlog.ActionProjectCreated, "dana", map[string]string{"name": "Apollo"})
	if err != nil {
		t.Fatal(err)
	}
	e2, err := l.Append(ctx, subject, auditlog.ActionSnapshotAdded, auditlog.SystemActor, nil)
	if err != nil {
		t.Fatal(err)
	}

	if e1.Subject != "project/12" {
		t.Errorf("Subject = %q", e1.Subject)
	}
	if e2.PrevHash != e1.Hash {
		t.Errorf("chain broken: e2.PrevHash=%q, want %q", e2.PrevHash, e1.Hash)
	}
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() on valid chain: %v", err)
	}

	root, err := l.Root(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if root != e2.Hash {
		t.Errorf("Root() = %q, want %q", root, e2.Hash)
	}
}

func TestVerify_detectsTampering(t *testing.T) {
	l := auditlog.NewMemory()
	_, _ = l.Append(ctx, "project/1", auditlog.ActionProjectCreated, "dana", nil)
	e, _ := l.Append(ctx, "project/1", auditlog.ActionProjectDeleted, "dana", nil)

	e.Actor = "mallory"
	if err := l.Verify(ctx); err == nil {
		t.Error("Verify() should fail after an entry is modified")
	}
}

func TestList_pages(t *testing.T) {
	l := auditlog.NewMemory()
	for i := 0; i < 5; i++ {
		_, _ = l.Append(ctx, "project/1", auditlog.ActionSnapshotAdded, "dana", i)
	}

	page, err := l.List(ctx, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 3 || page[0].Index != 2 || page[2].Index != 4 {
		t.Errorf("unexpected page: %d entries", len(page))
	}

	tail, _ := l.List(ctx, 5, 10)
	if len(tail) != 1 {
		t.Errorf("tail len = %d, want 1", len(tail))
	}
	empty, _ := l.List(ctx, 100, 10)
	if len(empty) != 0 {
		t.Errorf("past-end len = %d, want 0", len(empty))
	}
}

func TestAppend_concurrent(t *testing.T) {
	l := auditlog.NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Append(ctx, "project/1", auditlog.ActionSnapshotAdded, "dana", nil)
		}()
	}
	wg.Wait()

	if n, _ := l.Len(ctx); n != 21 {
		t.Errorf("Len() = %d, want 21", n)
	}
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() after concurrent appends: %v", err)
	}
}

func TestGet_outOfRange(t *testing.T) {
	l := auditlog.NewMemory()
	if _, err := l.Get(ctx, 3); err == nil {
		t.Error("expected error for out-of-range index")
	}
}
