package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/erg0nix/samtale/internal/core"
)

func openStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestJournal_AppendAndSeal(t *testing.T) {
	store := openStore(t)
	streamID := core.NewStreamID()

	j, err := store.Begin(streamID)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if err := j.Append(core.TextDelta("hello ")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := j.Append(core.TextDelta("world")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	done := core.Done()
	if err := j.Close(&done); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalRecords != 3 {
		t.Errorf("records got %d, want 3", stats.TotalRecords)
	}
	if stats.OpenStreams != 0 {
		t.Errorf("open streams got %d, want 0", stats.OpenStreams)
	}
}

func TestJournal_ThinkingDeltaNeverPersisted(t *testing.T) {
	store := openStore(t)

	j, err := store.Begin(core.NewStreamID())
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if err := j.Append(core.ThinkingDelta("pondering")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := j.Append(core.TextDelta("answer")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalRecords != 1 {
		t.Errorf("records got %d, want 1 (thinking must not persist)", stats.TotalRecords)
	}
}

func TestJournal_AppendAfterCloseFails(t *testing.T) {
	store := openStore(t)

	j, err := store.Begin(core.NewStreamID())
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	done := core.Done()
	if err := j.Close(&done); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := j.Append(core.TextDelta("late")); !errors.Is(err, core.ErrStorage) {
		t.Errorf("append after close: got %v, want ErrStorage", err)
	}
}

func TestJournal_DuplicateBeginFails(t *testing.T) {
	store := openStore(t)
	streamID := core.NewStreamID()

	j, err := store.Begin(streamID)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := j.Append(core.TextDelta("x")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if _, err := store.Begin(streamID); err == nil {
		t.Error("expected duplicate Begin to fail")
	}
}

func TestRecover_PartialStream(t *testing.T) {
	store := openStore(t)
	streamID := core.NewStreamID()

	j, err := store.Begin(streamID)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := j.Append(core.TextDelta("a")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := j.Append(core.TextDelta("b")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	// No Close: simulates a crash mid-stream.

	recovered, err := store.Recover()
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if len(recovered) != 1 {
		t.Fatalf("recovered %d streams, want 1", len(recovered))
	}

	stream := recovered[0]
	if stream.Text != "ab" {
		t.Errorf("text got %q, want %q", stream.Text, "ab")
	}
	if stream.Complete {
		t.Error("stream without done record must be incomplete")
	}
}

func TestRecover_DoneJournaledButNotApplied(t *testing.T) {
	store := openStore(t)
	streamID := core.NewStreamID()

	j, err := store.Begin(streamID)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	for _, text := range []string{"a", "b"} {
		if err := j.Append(core.TextDelta(text)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := j.Append(core.Done()); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	// Crash between journaling done and sealing the session.

	recovered, err := store.Recover()
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if len(recovered) != 1 {
		t.Fatalf("recovered %d streams, want 1", len(recovered))
	}

	if recovered[0].Text != "ab" || !recovered[0].Complete {
		t.Errorf("got text=%q complete=%v, want ab/true", recovered[0].Text, recovered[0].Complete)
	}
}

func TestRecover_Idempotent(t *testing.T) {
	store := openStore(t)
	streamID := core.NewStreamID()

	j, err := store.Begin(streamID)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := j.Append(core.TextDelta("partial")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	first, err := store.Recover()
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("recovered %d streams, want 1", len(first))
	}

	if err := store.Resolve(streamID); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	second, err := store.Recover()
	if err != nil {
		t.Fatalf("second Recover failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second recovery found %d streams, want 0", len(second))
	}
}

func TestJournal_DiscardUnsealed(t *testing.T) {
	store := openStore(t)
	streamID := core.NewStreamID()

	j, err := store.Begin(streamID)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := j.Append(core.TextDelta("throwaway")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if err := store.DiscardUnsealed(streamID); err != nil {
		t.Fatalf("DiscardUnsealed failed: %v", err)
	}

	recovered, err := store.Recover()
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if len(recovered) != 0 {
		t.Errorf("discarded stream still recoverable: %+v", recovered)
	}
}

func TestJournal_Prune(t *testing.T) {
	store := openStore(t)

	j, err := store.Begin(core.NewStreamID())
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := j.Append(core.TextDelta("old")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	done := core.Done()
	if err := j.Close(&done); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	open, err := store.Begin(core.NewStreamID())
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := open.Append(core.TextDelta("live")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	removed, err := store.Prune(time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("pruned %d rows, want 2", removed)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalRecords != 1 || stats.OpenStreams != 1 {
		t.Errorf("stats after prune: %+v", stats)
	}
}
