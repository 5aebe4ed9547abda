package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorIndexSearchRanking(t *testing.T) {
	idx := NewVectorIndex()
	idx.Upsert(NamespaceChunks, 1, []float32{1, 0, 0}, IndexPayload{DocID: 1, Content: "正交"})
	idx.Upsert(NamespaceChunks, 2, []float32{0.9, 0.1, 0}, IndexPayload{DocID: 1, Content: "接近"})
	idx.Upsert(NamespaceChunks, 3, []float32{0, 1, 0}, IndexPayload{DocID: 2, Content: "垂直"})

	hits := idx.Search(NamespaceChunks, []float32{1, 0, 0}, 3)
	assert.Len(t, hits, 3)
	assert.Equal(t, uint(1), hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, uint(2), hits[1].ID)
	assert.Equal(t, uint(3), hits[2].ID)
	assert.InDelta(t, 0.0, hits[2].Score, 1e-9)
}

func TestVectorIndexTopKLimit(t *testing.T) {
	idx := NewVectorIndex()
	for i := uint(1); i <= 10; i++ {
		idx.Upsert(NamespaceChunks, i, []float32{1, 0}, IndexPayload{})
	}
	hits := idx.Search(NamespaceChunks, []float32{1, 0}, 3)
	assert.Len(t, hits, 3)
}

func TestVectorIndexStableTies(t *testing.T) {
	idx := NewVectorIndex()
	// 完全相同的向量，命中顺序应与插入顺序一致
	idx.Upsert(NamespaceChunks, 7, []float32{1, 1}, IndexPayload{})
	idx.Upsert(NamespaceChunks, 3, []float32{1, 1}, IndexPayload{})
	idx.Upsert(NamespaceChunks, 5, []float32{1, 1}, IndexPayload{})

	for i := 0; i < 10; i++ {
		hits := idx.Search(NamespaceChunks, []float32{1, 1}, 3)
		assert.Equal(t, []uint{hits[0].ID, hits[1].ID, hits[2].ID}, []uint{7, 3, 5})
	}
}

func TestVectorIndexNamespaceIsolation(t *testing.T) {
	idx := NewVectorIndex()
	idx.Upsert(NamespaceChunks, 1, []float32{1, 0}, IndexPayload{Content: "chunk"})
	idx.Upsert(NamespaceQAQuestions, 1, []float32{1, 0}, IndexPayload{Content: "qa", Answer: "答案"})

	chunkHits := idx.Search(NamespaceChunks, []float32{1, 0}, 5)
	qaHits := idx.Search(NamespaceQAQuestions, []float32{1, 0}, 5)
	assert.Len(t, chunkHits, 1)
	assert.Len(t, qaHits, 1)
	assert.Equal(t, "chunk", chunkHits[0].Payload.Content)
	assert.Equal(t, "答案", qaHits[0].Payload.Answer)
}

func TestVectorIndexDelete(t *testing.T) {
	idx := NewVectorIndex()
	idx.Upsert(NamespaceChunks, 1, []float32{1, 0}, IndexPayload{})
	idx.Upsert(NamespaceChunks, 2, []float32{1, 0}, IndexPayload{})
	assert.Equal(t, 2, idx.Count(NamespaceChunks))

	idx.Delete(NamespaceChunks, 1, 2)
	assert.Equal(t, 0, idx.Count(NamespaceChunks))
	assert.Empty(t, idx.Search(NamespaceChunks, []float32{1, 0}, 5))
}

func TestVectorIndexUpsertOverwrites(t *testing.T) {
	idx := NewVectorIndex()
	idx.Upsert(NamespaceChunks, 1, []float32{1, 0}, IndexPayload{Content: "旧"})
	idx.Upsert(NamespaceChunks, 1, []float32{0, 1}, IndexPayload{Content: "新"})

	assert.Equal(t, 1, idx.Count(NamespaceChunks))
	hits := idx.Search(NamespaceChunks, []float32{0, 1}, 1)
	assert.Equal(t, "新", hits[0].Payload.Content)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestVectorIndexZeroQueryVector(t *testing.T) {
	idx := NewVectorIndex()
	idx.Upsert(NamespaceChunks, 1, []float32{1, 0}, IndexPayload{})
	assert.Nil(t, idx.Search(NamespaceChunks, []float32{0, 0}, 3))
}
