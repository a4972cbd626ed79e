package assertion

import (
	"strings"
	"testing"

	"github.com/promptsentinel/sentinel/internal/snapshot"
)

func snapCtx(store snapshot.Store, response string, update bool) Context {
	return Context{
		Response:        response,
		Key:             snapshot.Key{TestID: "t", Ordinal: 0},
		Snapshots:       store,
		UpdateSnapshots: update,
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	store := snapshot.NewMemStore()

	// First run: no golden value yet, passes and captures.
	v := evalSnapshot(snapCtx(store, "The answer is 42.", false))
	if !v.Passed {
		t.Fatalf("first run: %s", v.Detail)
	}
	if store.Len() != 1 {
		t.Fatalf("store entries: got %d, want 1", store.Len())
	}

	// Unchanged rerun passes.
	v = evalSnapshot(snapCtx(store, "The answer is 42.", false))
	if !v.Passed {
		t.Fatalf("unchanged rerun: %s", v.Detail)
	}

	// Drift fails and the detail shows both sides.
	v = evalSnapshot(snapCtx(store, "The answer is 43.", false))
	if v.Passed {
		t.Fatalf("drift should fail")
	}
	if !strings.Contains(v.Detail, "42") || !strings.Contains(v.Detail, "43") {
		t.Fatalf("detail should show expected and actual: %q", v.Detail)
	}

	// A failed comparison never overwrites the golden value.
	stored, _, _ := store.Get(snapshot.Key{TestID: "t", Ordinal: 0})
	if stored != "The answer is 42." {
		t.Fatalf("golden value changed: %q", stored)
	}
}

func TestSnapshot_UpdateModeOverwrites(t *testing.T) {
	store := snapshot.NewMemStore()
	if v := evalSnapshot(snapCtx(store, "old", false)); !v.Passed {
		t.Fatalf("seed: %s", v.Detail)
	}

	v := evalSnapshot(snapCtx(store, "new", true))
	if !v.Passed || v.Detail != "updated" {
		t.Fatalf("update: %+v", v)
	}

	if v := evalSnapshot(snapCtx(store, "new", false)); !v.Passed {
		t.Fatalf("after update: %s", v.Detail)
	}
}

func TestSnapshot_TrimsBeforeCompare(t *testing.T) {
	store := snapshot.NewMemStore()
	evalSnapshot(snapCtx(store, "hello\n", false))

	if v := evalSnapshot(snapCtx(store, "  hello  ", false)); !v.Passed {
		t.Fatalf("whitespace-only difference should pass: %s", v.Detail)
	}
}

func TestSnapshot_NilStore(t *testing.T) {
	v := evalSnapshot(Context{Response: "x", Key: snapshot.Key{TestID: "t"}})
	if v.Passed {
		t.Fatalf("nil store must not pass silently")
	}
}

func TestDiffSummary(t *testing.T) {
	got := diffSummary("a\nb\nc", "a\nX\nc")
	if !strings.Contains(got, "line 2") {
		t.Fatalf("diffSummary: %q", got)
	}

	got = diffSummary("a\nb", "a\nb\nc")
	if !strings.Contains(got, "Line count differs") {
		t.Fatalf("diffSummary: %q", got)
	}
}
