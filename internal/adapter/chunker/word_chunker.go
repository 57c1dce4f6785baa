package chunker

import (
	"strings"

	"docrag/internal/port"
)

const (
	DefaultChunkSize = 700
	DefaultOverlap   = 120
)

var _ port.Chunker = (*WordChunker)(nil)

// WordChunker splits text into overlapping windows of whole words.
type WordChunker struct {
	size    int
	overlap int
}

func NewWordChunker(size, overlap int) *WordChunker {
	if size <= 0 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	return &WordChunker{
		size:    size,
		overlap: overlap,
	}
}

// Step is the number of words the window advances by; never less than one.
func (c *WordChunker) Step() int {
	return max(1, c.size-c.overlap)
}

// Chunk returns the windows of text in order. Empty text yields no chunks.
func (c *WordChunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.Step()
	chunks := make([]string, 0, len(words)/step+1)

	for start := 0; start < len(words); start += step {
		end := min(start+c.size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))

		if start+c.size >= len(words) {
			break
		}
	}

	return chunks
}

// ExpectedCount returns how many chunks Chunk produces for a text of n words.
func (c *WordChunker) ExpectedCount(n int) int {
	if n == 0 {
		return 0
	}
	if n <= c.size {
		return 1
	}
	step := c.Step()
	// Windows start at 0, step, 2*step... until one reaches the end.
	return (n-c.size+step-1)/step + 1
}
