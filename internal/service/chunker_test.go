package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkTextEmpty(t *testing.T) {
	assert.Nil(t, ChunkText("", 500, 50))
	assert.Nil(t, ChunkText("   \n\n  ", 500, 50))
}

func TestChunkTextShortText(t *testing.T) {
	chunks := ChunkText("这是一段很短的文本。", 500, 50)
	assert.Len(t, chunks, 1)
	assert.Equal(t, "这是一段很短的文本。", chunks[0])
}

func TestChunkTextParagraphBoundary(t *testing.T) {
	para1 := strings.Repeat("甲", 300)
	para2 := strings.Repeat("乙", 300)
	text := para1 + "\n\n" + para2

	chunks := ChunkText(text, 500, 50)
	assert.Len(t, chunks, 2)
	// 第一块是完整段落
	assert.Equal(t, para1, chunks[0])
	// 第二块带上一块末尾 50 字的 overlap
	assert.True(t, strings.HasPrefix(chunks[1], strings.Repeat("甲", 50)))
	assert.True(t, strings.HasSuffix(chunks[1], para2))
}

func TestChunkTextLongParagraphForcedSplit(t *testing.T) {
	text := strings.Repeat("长", 1200)

	chunks := ChunkText(text, 500, 50)
	assert.True(t, len(chunks) >= 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 500)
	}
	// 相邻分片存在 overlap：步长 450，第二片以第一片的后 50 字开头
	assert.Equal(t, string([]rune(text)[450:950]), chunks[1])
}

func TestChunkTextDeterministic(t *testing.T) {
	text := strings.Repeat("深入理解操作系统。\n\n", 100)
	first := ChunkText(text, 500, 50)
	second := ChunkText(text, 500, 50)
	assert.Equal(t, first, second)
}

func TestChunkTextMergesSmallParagraphs(t *testing.T) {
	text := "第一段。\n\n第二段。\n\n第三段。"
	chunks := ChunkText(text, 500, 50)
	assert.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "第一段。")
	assert.Contains(t, chunks[0], "第三段。")
}
