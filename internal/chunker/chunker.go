// Package chunker splits extracted document text into overlapping word windows.
package chunker

import "strings"

// DefaultChunkSize is the default number of words per chunk.
const DefaultChunkSize = 400

// DefaultChunkOverlap is the default number of words repeated at the start of the next chunk.
const DefaultChunkOverlap = 100

// Chunk is one word window. StartWord and EndWord are absolute, half-open
// indexes into the whitespace-tokenized source.
type Chunk struct {
	Index     int
	Text      string
	StartWord int
	EndWord   int
}

// Chunker splits text on whitespace into fixed-size word windows.
type Chunker struct {
	size    int
	overlap int
}

// Option configures the Chunker.
type Option func(*Chunker)

// WithChunkSize sets the window size in words. Non-positive values are ignored.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap in words. Negative values are ignored.
// An overlap >= size is accepted; Split then advances by whole windows.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Size returns the configured window size in words.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in words.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunks of text. Text with no words yields nil. Text of at most
// Size words yields one chunk holding text unchanged.
func (c *Chunker) Split(text string) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	if len(words) <= c.size {
		return []Chunk{{Index: 0, Text: text, StartWord: 0, EndWord: len(words)}}
	}

	chunks := make([]Chunk, 0, len(words)/max(c.size-c.overlap, 1)+1)
	start := 0

	for {
		end := min(start+c.size, len(words))
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Text:      strings.Join(words[start:end], " "),
			StartWord: start,
			EndWord:   end,
		})

		if end >= len(words) {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}

		start = next
	}

	return chunks
}

// Reconstruct concatenates the non-overlapping part of each chunk, returning the
// original word sequence for chunks produced by Split.
func Reconstruct(chunks []Chunk) []string {
	var (
		words   []string
		covered int
	)

	for _, ch := range chunks {
		chunkWords := strings.Fields(ch.Text)
		from := max(covered, ch.StartWord) - ch.StartWord

		if from < len(chunkWords) {
			words = append(words, chunkWords[from:]...)
		}

		covered = max(covered, ch.EndWord)
	}

	return words
}
