package ingest

import (
	"regexp"
	"strings"
)

// Chunker splits lesson text into overlapping, sentence-aware chunks.
// Chunks are packed greedily up to chunkSize characters; the overlap is
// rebuilt from whole trailing sentences of the previous chunk, so a
// sentence is never cut mid-word to satisfy the overlap budget.
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker creates a chunker with the given character budgets.
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	sentenceRe   = regexp.MustCompile(`[^.!?]+[.!?]+["']?|[^.!?]+$`)
)

// SplitSentences normalizes whitespace and splits text on sentence
// boundaries. A trailing fragment without terminal punctuation is kept as
// its own sentence.
func SplitSentences(text string) []string {
	normalized := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if normalized == "" {
		return nil
	}
	raw := sentenceRe.FindAllString(normalized, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// span is a half-open range [start, end) into the sentence slice.
type span struct {
	start int
	end   int
}

// Split chunks text into sentence-aligned pieces with overlap carried
// forward from the tail of the previous chunk. Text shorter than one
// chunk yields exactly one chunk.
func (c *Chunker) Split(text string) []string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	spans := c.spans(sentences)
	chunks := make([]string, len(spans))
	for i, sp := range spans {
		chunks[i] = strings.Join(sentences[sp.start:sp.end], " ")
	}
	return chunks
}

// spans computes the sentence ranges of each chunk. Consecutive spans
// overlap by whole sentences totalling at most the overlap budget, and
// every span ends strictly after the previous one so indices always
// advance.
func (c *Chunker) spans(sentences []string) []span {
	var spans []span
	start := 0
	for start < len(sentences) {
		size := 0
		end := start
		for end < len(sentences) {
			add := len(sentences[end])
			if end > start {
				add++ // joining space
			}
			if size+add > c.chunkSize && end > start {
				break
			}
			size += add
			end++
		}

		spans = append(spans, span{start: start, end: end})
		if end >= len(sentences) {
			break
		}

		// Walk back whole sentences until the overlap budget is spent.
		next := end
		carried := 0
		for next > start+1 {
			tail := len(sentences[next-1])
			if carried+tail > c.overlap {
				break
			}
			carried += tail + 1
			next--
		}
		start = next
	}
	return spans
}
