package whisper

import "testing"

func TestBuildWordStamps_Offsets(t *testing.T) {
	text := "hello wonderful world"
	words := []apiWord{
		{Word: "hello", Start: 0.0, End: 0.4},
		{Word: "wonderful", Start: 0.5, End: 1.1},
		{Word: "world", Start: 1.2, End: 1.6},
	}

	stamps := buildWordStamps(text, words)
	if len(stamps) != 3 {
		t.Fatalf("len = %d, want 3", len(stamps))
	}

	wantOffsets := []int{0, 6, 16}
	for i, want := range wantOffsets {
		if stamps[i].CharOffset != want {
			t.Errorf("stamps[%d].CharOffset = %d, want %d", i, stamps[i].CharOffset, want)
		}
	}

	if stamps[1].StartMs != 500 || stamps[1].EndMs != 1100 {
		t.Errorf("stamps[1] timing = %d-%d ms, want 500-1100", stamps[1].StartMs, stamps[1].EndMs)
	}
}

func TestBuildWordStamps_RepeatedWords(t *testing.T) {
	text := "go go go"
	words := []apiWord{
		{Word: "go", Start: 0, End: 0.2},
		{Word: "go", Start: 0.3, End: 0.5},
		{Word: "go", Start: 0.6, End: 0.8},
	}

	stamps := buildWordStamps(text, words)
	wantOffsets := []int{0, 3, 6}
	for i, want := range wantOffsets {
		if stamps[i].CharOffset != want {
			t.Errorf("stamps[%d].CharOffset = %d, want %d", i, stamps[i].CharOffset, want)
		}
	}
}

func TestBuildWordStamps_UnmatchedWordStaysMonotonic(t *testing.T) {
	text := "one three"
	words := []apiWord{
		{Word: "one", Start: 0, End: 0.2},
		{Word: "two", Start: 0.3, End: 0.5}, // not present in the text
		{Word: "three", Start: 0.6, End: 0.8},
	}

	stamps := buildWordStamps(text, words)
	if len(stamps) != 3 {
		t.Fatalf("len = %d, want 3 (unmatched words are anchored, not dropped)", len(stamps))
	}
	for i := 1; i < len(stamps); i++ {
		if stamps[i].CharOffset < stamps[i-1].CharOffset {
			t.Errorf("offsets must be monotonic: %d after %d", stamps[i].CharOffset, stamps[i-1].CharOffset)
		}
	}
}

func TestBuildWordStamps_Empty(t *testing.T) {
	if got := buildWordStamps("anything", nil); got != nil {
		t.Errorf("no words should yield nil, got %v", got)
	}
	if got := buildWordStamps("", []apiWord{{Word: " "}}); len(got) != 0 {
		t.Errorf("whitespace-only words should be skipped, got %v", got)
	}
}
