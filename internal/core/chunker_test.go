package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerWindowsWithOverlap(t *testing.T) {
	c := NewChunker(6, 2)
	pages := []PageText{{Number: 1, Text: "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10"}}

	chunks := c.Chunk(pages)
	require.Len(t, chunks, 2)
	assert.Equal(t, "w1 w2 w3 w4 w5 w6", chunks[0].Text)
	assert.Equal(t, "w5 w6 w7 w8 w9 w10", chunks[1].Text)

	// The overlap repeats the window tail so boundary sentences survive.
	assert.True(t, strings.HasSuffix(chunks[0].Text, "w5 w6"))
	assert.True(t, strings.HasPrefix(chunks[1].Text, "w5 w6"))
}

func TestChunkerPreservesOrderAndPages(t *testing.T) {
	c := NewChunker(4, 1)
	pages := []PageText{
		{Number: 1, Text: "a b c d e"},
		{Number: 2, Text: "f g h i j k"},
	}

	chunks := c.Chunk(pages)
	require.Len(t, chunks, 4)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Position)
	}
	assert.Equal(t, 1, chunks[0].Page)
	last := chunks[len(chunks)-1]
	assert.Equal(t, 2, last.Page)
	assert.Equal(t, "h i j k", last.Text)
}

func TestChunkerCarriesOverlapAcrossPageBreak(t *testing.T) {
	c := NewChunker(6, 2)
	pages := []PageText{
		{Number: 1, Text: "w1 w2 w3 w4 the sentence"},
		{Number: 2, Text: "continues here w7 w8"},
	}

	chunks := c.Chunk(pages)
	require.Len(t, chunks, 2)
	assert.Equal(t, "w1 w2 w3 w4 the sentence", chunks[0].Text)
	// The page tail is replayed at the head of the next window, so a sentence
	// split by the page break stays intact in one chunk.
	assert.Equal(t, "the sentence continues here w7 w8", chunks[1].Text)
	assert.Equal(t, 1, chunks[1].Page, "a boundary window keeps the page it starts on")
}

func TestChunkerEmptyDocument(t *testing.T) {
	c := NewChunker(DefaultChunkWords, DefaultOverlapWords)

	assert.Empty(t, c.Chunk(nil))
	assert.Empty(t, c.Chunk([]PageText{{Number: 1, Text: "   \n\t "}}))
}

func TestChunkerShortDocumentSingleChunk(t *testing.T) {
	c := NewChunker(DefaultChunkWords, DefaultOverlapWords)
	chunks := c.Chunk([]PageText{{Number: 1, Text: "just a few words"}})

	require.Len(t, chunks, 1)
	assert.Equal(t, "just a few words", chunks[0].Text)
}

func TestNewChunkerRejectsBadOverlap(t *testing.T) {
	// Overlap >= window would make the walk stand still.
	c := NewChunker(10, 10)
	chunks := c.Chunk([]PageText{{Number: 1, Text: strings.Repeat("w ", 40)}})
	assert.NotEmpty(t, chunks)
}
