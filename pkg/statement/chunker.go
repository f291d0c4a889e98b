package statement

import (
	"strings"
	"unicode"
)

const (
	// DefaultMaxChunkTokens bounds the size of a single derived chunk.
	DefaultMaxChunkTokens = 256

	chunkOverlapTokens = 16
)

// Chunker derives chunk contents from a statement.
type Chunker struct {
	// MaxTokens is the maximum number of whitespace-delimited words per chunk.
	MaxTokens int
}

// NewChunker returns a Chunker bounded at maxTokens words per chunk.
// A non-positive value selects DefaultMaxChunkTokens.
func NewChunker(maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxChunkTokens
	}
	return &Chunker{MaxTokens: maxTokens}
}

// Derive returns the chunk contents for s. The object text always produces
// at least one chunk. IRI objects have their local name appended so names are
// matchable as words. Long literals are split into overlapping windows.
func (c *Chunker) Derive(s Statement) []string {
	text := s.Object
	if s.TermType != Literal {
		if name := LocalName(s.Object); name != "" {
			text = s.Object + " " + splitCamel(name)
		}
	}

	return c.split(text)
}

func (c *Chunker) split(text string) []string {
	words := strings.Fields(text)
	if len(words) <= c.MaxTokens {
		return []string{text}
	}

	overlap := chunkOverlapTokens
	if overlap >= c.MaxTokens {
		overlap = c.MaxTokens / 2
	}

	var chunks []string
	for start := 0; start < len(words); {
		end := min(start+c.MaxTokens, len(words))
		if end < len(words) {
			end = sentenceBoundary(words, start, end)
		}

		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// sentenceBoundary moves end back to just after a word closing a sentence,
// staying in the second half of the window.
func sentenceBoundary(words []string, start, end int) int {
	floor := start + (end-start)/2
	for i := end; i > floor; i-- {
		w := words[i-1]
		if strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?") {
			return i
		}
	}
	return end
}

// splitCamel turns "ArtificialIntelligence" or "artificial_intelligence" into
// "Artificial Intelligence".
func splitCamel(name string) string {
	var b strings.Builder
	prev := rune(0)
	for _, r := range name {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
		case unicode.IsUpper(r) && prev != 0 && unicode.IsLower(prev):
			b.WriteRune(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}
