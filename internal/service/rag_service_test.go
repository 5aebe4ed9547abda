package service

import (
	"context"
	"fmt"
	"testing"

	"ai_support_backend/internal/config"
	"ai_support_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeEmbedder 按关键词映射返回固定向量，未命中时返回默认向量
type fakeEmbedder struct {
	vectors     map[string][]float32
	fallbackVec []float32
	fail        bool
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, fmt.Errorf("%w: 向量化网关不可用", util.ErrUpstream)
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	if f.fallbackVec != nil {
		return f.fallbackVec, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func testRetrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		QAThreshold:   0.85,
		VectorTopK:    3,
		MinChunkScore: 0.3,
	}
}

func TestRAGSearchQAFastPath(t *testing.T) {
	idx := NewVectorIndex()
	idx.Upsert(NamespaceQAQuestions, 1, []float32{1, 0, 0}, IndexPayload{
		DocID: 1, Content: "如何重置密码", Answer: "在设置页点击重置密码。",
	})
	idx.Upsert(NamespaceChunks, 10, []float32{1, 0, 0}, IndexPayload{
		DocID: 1, Content: "密码管理章节",
	})

	rag := NewRAGService(&fakeEmbedder{}, idx, testRetrievalConfig(), zap.NewNop())
	qaHit, chunkHits, err := rag.Search(context.Background(), "怎么重置密码")
	require.NoError(t, err)

	// QA 达阈值时短路，切片检索不返回结果
	require.NotNil(t, qaHit)
	assert.Equal(t, "qa", qaHit.SourceType)
	assert.Equal(t, "在设置页点击重置密码。", qaHit.Answer)
	assert.Equal(t, "Q: 如何重置密码\nA: 在设置页点击重置密码。", qaHit.Content)
	assert.GreaterOrEqual(t, qaHit.Score, 0.85)
	assert.Empty(t, chunkHits)
}

func TestRAGSearchFallsBackToChunks(t *testing.T) {
	idx := NewVectorIndex()
	// QA 库有记录但相似度不达阈值
	idx.Upsert(NamespaceQAQuestions, 1, []float32{0, 1, 0}, IndexPayload{
		Content: "无关问题", Answer: "无关答案",
	})
	idx.Upsert(NamespaceChunks, 10, []float32{1, 0, 0}, IndexPayload{DocID: 1, Content: "高相关切片"})
	idx.Upsert(NamespaceChunks, 11, []float32{0.7, 0.7, 0}, IndexPayload{DocID: 1, Content: "中等相关切片"})
	idx.Upsert(NamespaceChunks, 12, []float32{0, 0, 1}, IndexPayload{DocID: 2, Content: "不相关切片"})

	rag := NewRAGService(&fakeEmbedder{}, idx, testRetrievalConfig(), zap.NewNop())
	qaHit, chunkHits, err := rag.Search(context.Background(), "查询")
	require.NoError(t, err)

	assert.Nil(t, qaHit)
	// 低于 0.3 的切片被丢弃，剩余按分数降序
	require.Len(t, chunkHits, 2)
	assert.Equal(t, "高相关切片", chunkHits[0].Content)
	assert.Equal(t, "中等相关切片", chunkHits[1].Content)
	assert.Greater(t, chunkHits[0].Score, chunkHits[1].Score)
	for _, h := range chunkHits {
		assert.Equal(t, "chunk", h.SourceType)
		assert.GreaterOrEqual(t, h.Score, 0.3)
	}
}

func TestRAGSearchNoMatch(t *testing.T) {
	idx := NewVectorIndex()
	idx.Upsert(NamespaceChunks, 10, []float32{0, 0, 1}, IndexPayload{Content: "不相关"})

	rag := NewRAGService(&fakeEmbedder{}, idx, testRetrievalConfig(), zap.NewNop())
	qaHit, chunkHits, err := rag.Search(context.Background(), "查询")
	require.NoError(t, err)
	assert.Nil(t, qaHit)
	assert.Empty(t, chunkHits)
}

func TestRAGSearchEmbeddingFailure(t *testing.T) {
	rag := NewRAGService(&fakeEmbedder{fail: true}, NewVectorIndex(), testRetrievalConfig(), zap.NewNop())
	_, _, err := rag.Search(context.Background(), "查询")
	assert.ErrorIs(t, err, util.ErrUpstream)
}

func TestRAGApplyConfig(t *testing.T) {
	idx := NewVectorIndex()
	idx.Upsert(NamespaceQAQuestions, 1, []float32{0.9, 0.4359, 0}, IndexPayload{
		Content: "问题", Answer: "答案",
	})

	rag := NewRAGService(&fakeEmbedder{}, idx, testRetrievalConfig(), zap.NewNop())
	qaHit, _, err := rag.Search(context.Background(), "查询")
	require.NoError(t, err)
	assert.NotNil(t, qaHit)

	// 阈值调高后同样的命中不再走 QA 快路径
	rag.ApplyConfig(config.RetrievalConfig{QAThreshold: 0.99, VectorTopK: 3, MinChunkScore: 0.3})
	qaHit, _, err = rag.Search(context.Background(), "查询")
	require.NoError(t, err)
	assert.Nil(t, qaHit)
}
