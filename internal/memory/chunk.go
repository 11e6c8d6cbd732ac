package memory

import "strings"

// Default chunking parameters, in runes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// separators are tried in order when looking for a split point.
var separators = []string{"\n\n", "\n", " "}

// Chunker splits long documents into overlapping windows before indexing.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker returns a chunker, applying defaults for non-positive values
// and clamping overlap below size.
func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 5
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Split returns the chunks of text. Text that fits in one chunk is returned
// unchanged. Each chunk ends at the latest separator inside the window when
// one exists past the overlap; otherwise it is cut at the window edge.
func (c Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.Size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.Size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := end
		window := string(runes[start:end])
		for _, sep := range separators {
			if i := strings.LastIndex(window, sep); i >= 0 {
				at := start + len([]rune(window[:i])) + len([]rune(sep))
				if at-start > c.Overlap {
					cut = at
					break
				}
			}
		}

		chunks = append(chunks, string(runes[start:cut]))
		next := cut - c.Overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}
