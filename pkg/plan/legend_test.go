package plan

import "testing"

func TestRowColorCriticalBeatsWarning(t *testing.T) {
	// scenario 5: critical=100, cur=150 -> red row.
	got := RowColor(150, 80, true, 100, true)
	if got != RowCritical {
		t.Fatalf("RowColor = %#x, want %#x", got, RowCritical)
	}
}

func TestRowColorWarningOnly(t *testing.T) {
	got := RowColor(90, 80, true, 100, true)
	if got != RowWarning {
		t.Fatalf("RowColor = %#x, want %#x", got, RowWarning)
	}
}

func TestRowColorNormalWhenUnconfigured(t *testing.T) {
	got := RowColor(1e9, 0, false, 0, false)
	if got != RowNormal {
		t.Fatalf("RowColor = %#x, want normal when no thresholds are set", got)
	}
}

func TestSharedScaleWithinRatio(t *testing.T) {
	ref, shared := SharedScale(10, 5, 8, 50)
	if !shared {
		t.Fatal("SharedScale should report shared for ratio 50/5=10 < 100")
	}
	if ref != 5 {
		t.Fatalf("reference = %v, want 5 (smallest magnitude)", ref)
	}
}

func TestSharedScaleExceedsRatio(t *testing.T) {
	_, shared := SharedScale(1, 1000, 1, 1)
	if shared {
		t.Fatal("SharedScale should not report shared for ratio 1000")
	}
}
