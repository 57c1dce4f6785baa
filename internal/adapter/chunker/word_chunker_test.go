package chunker

import (
	"fmt"
	"strings"
	"testing"
)

func makeWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestWordChunkerScenario1500Words(t *testing.T) {
	chunker := NewWordChunker(700, 120)

	chunks := chunker.Chunk(makeWords(1500))

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	starts := []string{"w0", "w580", "w1160"}
	for i, chunk := range chunks {
		first := strings.Fields(chunk)[0]
		if first != starts[i] {
			t.Errorf("chunk %d starts at %s, expected %s", i, first, starts[i])
		}
	}

	if n := len(strings.Fields(chunks[0])); n != 700 {
		t.Errorf("expected first chunk of 700 words, got %d", n)
	}
	if n := len(strings.Fields(chunks[2])); n != 340 {
		t.Errorf("expected final partial chunk of 340 words, got %d", n)
	}
}

func TestWordChunkerCount(t *testing.T) {
	tests := []struct {
		words, size, overlap int
	}{
		{1, 700, 120},
		{700, 700, 120},
		{701, 700, 120},
		{1500, 700, 120},
		{1160, 700, 120},
		{1161, 700, 120},
		{10, 3, 1},
		{11, 4, 0},
		{100, 7, 3},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%d/%d/%d", tc.words, tc.size, tc.overlap), func(t *testing.T) {
			chunker := NewWordChunker(tc.size, tc.overlap)
			chunks := chunker.Chunk(makeWords(tc.words))

			want := 1
			if tc.words > tc.size {
				step := tc.size - tc.overlap
				want = (tc.words - tc.overlap + step - 1) / step
			}
			if len(chunks) != want {
				t.Errorf("expected %d chunks, got %d", want, len(chunks))
			}
			if got := chunker.ExpectedCount(tc.words); got != want {
				t.Errorf("ExpectedCount = %d, expected %d", got, want)
			}
		})
	}
}

func TestWordChunkerCoversEveryWord(t *testing.T) {
	text := makeWords(257)
	chunker := NewWordChunker(20, 5)

	seen := make(map[string]bool)
	for _, chunk := range chunker.Chunk(text) {
		for _, w := range strings.Fields(chunk) {
			seen[w] = true
		}
	}

	for _, w := range strings.Fields(text) {
		if !seen[w] {
			t.Errorf("word %s not covered by any chunk", w)
		}
	}
}

func TestWordChunkerOverlap(t *testing.T) {
	chunker := NewWordChunker(5, 2)

	chunks := chunker.Chunk(makeWords(11))

	for i := 0; i < len(chunks)-1; i++ {
		current := strings.Fields(chunks[i])
		next := strings.Fields(chunks[i+1])
		tail := strings.Join(current[len(current)-2:], " ")
		head := strings.Join(next[:2], " ")
		if tail != head {
			t.Errorf("chunk %d tail %q does not overlap chunk %d head %q", i, tail, i+1, head)
		}
	}
}

func TestWordChunkerDeterministic(t *testing.T) {
	text := makeWords(333)
	chunker := NewWordChunker(50, 10)

	first := chunker.Chunk(text)
	second := chunker.Chunk(text)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestWordChunkerEmptyContent(t *testing.T) {
	chunker := NewWordChunker(700, 120)

	if chunks := chunker.Chunk(""); len(chunks) != 0 {
		t.Errorf("expected no chunks for empty text, got %d", len(chunks))
	}
	if chunks := chunker.Chunk(" \n\t "); len(chunks) != 0 {
		t.Errorf("expected no chunks for whitespace, got %d", len(chunks))
	}
}

func TestWordChunkerNormalizesSpacing(t *testing.T) {
	chunker := NewWordChunker(10, 0)

	chunks := chunker.Chunk("  alpha\t beta \n\n gamma ")

	if len(chunks) != 1 || chunks[0] != "alpha beta gamma" {
		t.Errorf("unexpected chunks %q", chunks)
	}
}

func TestWordChunkerSizeNotAboveOverlap(t *testing.T) {
	chunker := NewWordChunker(3, 5)

	if chunker.Step() != 1 {
		t.Fatalf("expected step clamped to 1, got %d", chunker.Step())
	}

	chunks := chunker.Chunk(makeWords(6))
	// windows start at 0,1,2,3; the one at 3 reaches the end
	if len(chunks) != 4 {
		t.Errorf("expected 4 chunks, got %d", len(chunks))
	}
}
