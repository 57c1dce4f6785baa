package port

// Chunker splits text into ordered chunk strings.
type Chunker interface {
	Chunk(text string) []string
}
