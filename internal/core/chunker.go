package core

import "strings"

const (
	DefaultChunkWords   = 180
	DefaultOverlapWords = 30
)

// Chunker splits extracted document text into overlapping word windows.
// Overlap keeps a sentence that straddles a window boundary retrievable from
// at least one chunk, and page breaks get the same treatment: the tail of a
// page is replayed at the head of the next page's first window.
type Chunker struct {
	chunkWords   int
	overlapWords int
}

func NewChunker(chunkWords, overlapWords int) *Chunker {
	if chunkWords <= 0 {
		chunkWords = DefaultChunkWords
	}
	if overlapWords < 0 || overlapWords >= chunkWords {
		overlapWords = chunkWords / 4
	}
	return &Chunker{chunkWords: chunkWords, overlapWords: overlapWords}
}

// Chunk windows each page's words in original order, numbering chunks
// globally across the document. The last overlapWords of a page carry into
// the next page's first window, so a sentence split by a page break survives
// whole in one chunk; a window spanning the break is attributed to the page
// it starts on. An empty or whitespace-only document yields zero chunks; the
// caller treats that as an ingestion failure.
func (c *Chunker) Chunk(pages []PageText) []DocumentChunk {
	step := c.chunkWords - c.overlapWords

	var chunks []DocumentChunk
	var carry []string
	carryPage := 0
	for _, page := range pages {
		pageWords := strings.Fields(page.Text)
		if len(pageWords) == 0 {
			continue
		}
		words := append(append([]string(nil), carry...), pageWords...)
		for start := 0; start < len(words); start += step {
			end := start + c.chunkWords
			if end > len(words) {
				end = len(words)
			}
			pageNum := page.Number
			if start < len(carry) {
				pageNum = carryPage
			}
			chunks = append(chunks, DocumentChunk{
				Position: len(chunks),
				Text:     strings.Join(words[start:end], " "),
				Page:     pageNum,
			})
			if end == len(words) {
				break
			}
		}
		if len(pageWords) > c.overlapWords {
			carry = pageWords[len(pageWords)-c.overlapWords:]
		} else {
			carry = pageWords
		}
		carryPage = page.Number
	}
	return chunks
}
