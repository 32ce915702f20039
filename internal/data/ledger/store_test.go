package ledger

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "ledger.db"), time.Second)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RunLifecycle(t *testing.T) {
	store := openTestStore(t)

	first, err := store.BeginRun("forward", "substitute")
	if err != nil {
		t.Fatalf("begin run: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected a run id")
	}
	if err := store.FinishRun(first, Counts{Total: 3, Written: 2, Skipped: 1}); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	second, err := store.BeginRun("reverse", "alias")
	if err != nil {
		t.Fatalf("begin second run: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("run ids must be unique")
	}

	runs, err := store.RecentRuns(10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second.ID {
		t.Errorf("expected newest run first, got %s", runs[0].ID)
	}
	if runs[1].Counts.Written != 2 || runs[1].Counts.Skipped != 1 || runs[1].FinishedAt.IsZero() {
		t.Errorf("unexpected counts for finished run: %+v", runs[1])
	}
	if !runs[0].FinishedAt.IsZero() {
		t.Errorf("unfinished run should have no finish time")
	}

	if err := store.FinishRun(Run{ID: "missing"}, Counts{}); err == nil {
		t.Error("expected error finishing an unknown run")
	}
}

func TestStore_RecordLookupForget(t *testing.T) {
	store := openTestStore(t)

	if _, ok, err := store.Lookup("forward", "pkg/mod"); err != nil || ok {
		t.Fatalf("expected no record, got ok=%v err=%v", ok, err)
	}

	rec := FileRecord{
		Direction:  "forward",
		Rel:        "pkg/mod",
		InputHash:  Hash([]byte("in")),
		OutputHash: Hash([]byte("out")),
		Strategy:   "substitute",
		RunID:      "run-1",
	}
	if err := store.Record(rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	rec.OutputHash = Hash([]byte("out2"))
	rec.RunID = "run-2"
	if err := store.Record(rec); err != nil {
		t.Fatalf("record update: %v", err)
	}

	got, ok, err := store.Lookup("forward", "pkg/mod")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if got.OutputHash != Hash([]byte("out2")) || got.RunID != "run-2" {
		t.Errorf("expected updated record, got %+v", got)
	}
	if _, ok, _ := store.Lookup("reverse", "pkg/mod"); ok {
		t.Error("records are per direction")
	}

	if err := store.Forget("forward"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, ok, _ := store.Lookup("forward", "pkg/mod"); ok {
		t.Error("expected record to be forgotten")
	}
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Record(FileRecord{Direction: "forward", Rel: "a", InputHash: "x", OutputHash: "y", Strategy: "s", RunID: "r"}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	reopened, err := Open(path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, ok, err := reopened.Lookup("forward", "a"); err != nil || !ok {
		t.Fatalf("expected record after reopen, ok=%v err=%v", ok, err)
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(" ", 0); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := Open(t.TempDir(), 0); err == nil {
		t.Error("expected error for directory path")
	}
}

func TestHash(t *testing.T) {
	if Hash([]byte("a")) == Hash([]byte("b")) {
		t.Error("different content must hash differently")
	}
	if len(Hash(nil)) != 64 {
		t.Errorf("expected hex sha256, got %q", Hash(nil))
	}
}
