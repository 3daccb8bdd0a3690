package core

import "testing"

func TestCompactionState_Validate(t *testing.T) {
	uncompacted := CompactionState{}
	if err := uncompacted.Validate(10); err != nil {
		t.Errorf("uncompacted state: %v", err)
	}

	badBoundary := CompactionState{Boundary: 3}
	if err := badBoundary.Validate(10); err == nil {
		t.Error("uncompacted state with boundary must be invalid")
	}

	good := CompactionState{
		Boundary: 3,
		Summary:  &Summary{Covers: IndexRange{Start: 0, End: 3}, Text: "s"},
	}
	if err := good.Validate(10); err != nil {
		t.Errorf("valid state rejected: %v", err)
	}

	mismatch := CompactionState{
		Boundary: 4,
		Summary:  &Summary{Covers: IndexRange{Start: 0, End: 3}, Text: "s"},
	}
	if err := mismatch.Validate(10); err == nil {
		t.Error("boundary/coverage mismatch must be invalid")
	}

	beyond := CompactionState{
		Boundary: 12,
		Summary:  &Summary{Covers: IndexRange{Start: 0, End: 12}, Text: "s"},
	}
	if err := beyond.Validate(10); err == nil {
		t.Error("boundary past log end must be invalid")
	}
}

func TestStreamEvent_Terminal(t *testing.T) {
	if TextDelta("x").Terminal() || ThinkingDelta("x").Terminal() {
		t.Error("deltas must not be terminal")
	}
	if !Done().Terminal() || !StreamError("boom").Terminal() {
		t.Error("done and error must be terminal")
	}
}
