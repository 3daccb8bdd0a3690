package history

import (
	"errors"
	"testing"

	"github.com/erg0nix/samtale/internal/core"
)

func mustAppend(t *testing.T, log *Log, role core.Role, content string, tokens int) uint64 {
	t.Helper()

	msg, err := core.NewMessage(role, content, tokens)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	index, err := log.Append(msg)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	return index
}

func TestLog_AppendAssignsGaplessIndices(t *testing.T) {
	log := NewLog()

	for i := 0; i < 5; i++ {
		index := mustAppend(t, log, core.RoleUser, "message", 10)
		if index != uint64(i) {
			t.Errorf("append %d: got index %d", i, index)
		}
	}

	messages := log.Messages()
	for i, msg := range messages {
		if msg.Index != uint64(i) {
			t.Errorf("position %d: index %d", i, msg.Index)
		}
	}
}

func TestLog_ReadExactRange(t *testing.T) {
	log := NewLog()
	for i := 0; i < 4; i++ {
		mustAppend(t, log, core.RoleUser, "message", 10)
	}

	slice, err := log.Read(core.IndexRange{Start: 1, End: 3})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(slice) != 2 || slice[0].Index != 1 || slice[1].Index != 2 {
		t.Errorf("unexpected slice: %+v", slice)
	}

	if _, err := log.Read(core.IndexRange{Start: 0, End: 10}); err == nil {
		t.Error("expected error for out-of-bounds range")
	}
}

func TestNewMessage_RejectsEmptyContent(t *testing.T) {
	for _, content := range []string{"", "   ", "\n\t"} {
		if _, err := core.NewMessage(core.RoleUser, content, 0); !errors.Is(err, core.ErrEmptyContent) {
			t.Errorf("content %q: got %v, want ErrEmptyContent", content, err)
		}
	}
}

func TestLog_CacheEligibility(t *testing.T) {
	tests := []struct {
		total        int
		wantEligible int
	}{
		{0, 0},
		{3, 0},
		{4, 0},
		{5, 1},
		{10, 6},
	}

	for _, tt := range tests {
		log := NewLog()
		for i := 0; i < tt.total; i++ {
			mustAppend(t, log, core.RoleUser, "message", 10)
		}

		eligible := 0
		for i := 0; i < tt.total; i++ {
			if log.CacheEligible(uint64(i)) {
				eligible++
				if i >= tt.wantEligible {
					t.Errorf("N=%d: index %d eligible but is not among the oldest", tt.total, i)
				}
			}
		}

		if eligible != tt.wantEligible {
			t.Errorf("N=%d: %d eligible, want %d", tt.total, eligible, tt.wantEligible)
		}
	}
}

func TestLog_ApplyCompaction(t *testing.T) {
	log := NewLog()
	for i := 0; i < 6; i++ {
		mustAppend(t, log, core.RoleUser, "message", 100)
	}

	summary := core.Summary{
		Covers: core.IndexRange{Start: 0, End: 3},
		Text:   "earlier discussion",
		Tokens: 20,
	}

	if err := log.ApplyCompaction(summary); err != nil {
		t.Fatalf("ApplyCompaction failed: %v", err)
	}

	state := log.CompactionState()
	if !state.Compacted() || state.Boundary != 3 {
		t.Fatalf("unexpected state: %+v", state)
	}

	if tail := log.Tail(); len(tail) != 3 || tail[0].Index != 3 {
		t.Errorf("unexpected tail: %+v", tail)
	}

	if got := log.Len(); got != 6 {
		t.Errorf("compaction must not delete messages: len %d", got)
	}
}

func TestLog_ApplyCompactionIdempotent(t *testing.T) {
	log := NewLog()
	for i := 0; i < 6; i++ {
		mustAppend(t, log, core.RoleUser, "message", 100)
	}

	summary := core.Summary{Covers: core.IndexRange{Start: 0, End: 3}, Text: "earlier", Tokens: 20}

	if err := log.ApplyCompaction(summary); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	before := log.CompactionState()

	if err := log.ApplyCompaction(summary); err != nil {
		t.Fatalf("re-apply failed: %v", err)
	}

	after := log.CompactionState()
	if after.Boundary != before.Boundary || after.Summary.Text != before.Summary.Text {
		t.Errorf("state changed on re-apply: %+v vs %+v", before, after)
	}
}

func TestLog_ApplyCompactionRejectsBackwardBoundary(t *testing.T) {
	log := NewLog()
	for i := 0; i < 6; i++ {
		mustAppend(t, log, core.RoleUser, "message", 100)
	}

	first := core.Summary{Covers: core.IndexRange{Start: 0, End: 4}, Text: "four", Tokens: 10}
	if err := log.ApplyCompaction(first); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	smaller := core.Summary{Covers: core.IndexRange{Start: 0, End: 2}, Text: "two", Tokens: 10}
	if err := log.ApplyCompaction(smaller); err == nil {
		t.Error("expected error for backward boundary")
	}
}

func TestLog_RollbackLast(t *testing.T) {
	log := NewLog()
	mustAppend(t, log, core.RoleUser, "first", 10)
	index := mustAppend(t, log, core.RoleUser, "second", 10)

	if !log.RollbackLast(index) {
		t.Fatal("expected rollback to succeed")
	}
	if log.Len() != 1 {
		t.Errorf("len %d after rollback, want 1", log.Len())
	}

	if log.RollbackLast(index) {
		t.Error("rollback of a removed index must fail")
	}
}
