package chunker

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Strategy
	}{
		{"small", Small},
		{"balanced", Balanced},
		{"big", Big},
		{"", Balanced},
		{"huge", Balanced},
	}
	for _, tc := range cases {
		if got := Parse(tc.in); got != tc.want {
			t.Errorf("Parse(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSplitEmpty(t *testing.T) {
	if got := Split("", Balanced); got != nil {
		t.Errorf("Split(empty) = %v, want nil", got)
	}
	if got := Split("   \n\t  ", Balanced); got != nil {
		t.Errorf("Split(whitespace) = %v, want nil", got)
	}
}

func TestSplitShortText(t *testing.T) {
	text := "A short note that fits in one window."
	got := Split(text, Balanced)
	if len(got) != 1 {
		t.Fatalf("chunks = %d, want 1", len(got))
	}
	if got[0] != text {
		t.Errorf("chunk = %q, want input unchanged", got[0])
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 100)

	a := Split(text, Small)
	b := Split(text, Small)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitNoEmptySpans(t *testing.T) {
	text := "para one\n\n\n\n" + strings.Repeat("word ", 400) + "\n\n   \n\npara end"
	for _, strategy := range []Strategy{Small, Balanced, Big} {
		for i, span := range Split(text, strategy) {
			if strings.TrimSpace(span) == "" {
				t.Errorf("%s: span %d is empty", strategy, i)
			}
		}
	}
}

func TestSplitWindowSizes(t *testing.T) {
	text := strings.Repeat("Sentence with several words in it. ", 300) // ~10500 chars

	cases := []struct {
		strategy Strategy
		max      int
	}{
		{Small, 500},
		{Balanced, 1000},
		{Big, 2000},
	}
	for _, tc := range cases {
		chunks := Split(text, tc.strategy)
		if len(chunks) < 2 {
			t.Fatalf("%s: got %d chunks, want several", tc.strategy, len(chunks))
		}
		for i, span := range chunks {
			if n := len([]rune(span)); n > tc.max {
				t.Errorf("%s: chunk %d is %d runes, max %d", tc.strategy, i, n, tc.max)
			}
		}
	}
}

func TestSplitPrefersParagraphBreak(t *testing.T) {
	first := strings.Repeat("a", 400)
	second := strings.Repeat("b", 400)
	text := first + "\n\n" + second

	chunks := Split(text, Small)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0] != first {
		t.Errorf("first chunk should end at the paragraph break, got %d runes", len(chunks[0]))
	}
}

func TestSplitPrefersSentenceEnd(t *testing.T) {
	text := strings.Repeat("x", 380) + ". " + strings.Repeat("y", 300)

	chunks := Split(text, Small)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want 2+", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Errorf("first chunk does not end at the sentence: %q...", chunks[0][len(chunks[0])-10:])
	}
}

func TestSplitHardCut(t *testing.T) {
	// No break characters at all: the splitter must still terminate and
	// cover the whole input.
	text := strings.Repeat("z", 2500)
	chunks := Split(text, Small)
	if len(chunks) == 0 {
		t.Fatal("no chunks for unbreakable text")
	}
	var total int
	for _, span := range chunks {
		total += len(span)
	}
	if total < len(text) {
		t.Errorf("coverage %d runes < input %d", total, len(text))
	}
}

func TestSplitOverlap(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60)
	chunks := Split(text, Small)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want 2+", len(chunks))
	}
	// Consecutive windows share text at the seam.
	tail := chunks[0][len(chunks[0])-20:]
	if !strings.Contains(chunks[1], tail[:10]) {
		t.Errorf("no overlap between consecutive chunks")
	}
}
