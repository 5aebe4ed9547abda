package service

import (
	"context"
	"fmt"
	"sync"

	"ai_support_backend/internal/config"

	"go.uber.org/zap"
)

// RAGResult 单条检索结果，Score 为原始余弦相似度
type RAGResult struct {
	Content    string  `json:"content"`
	Answer     string  `json:"answer,omitempty"`
	Score      float64 `json:"score"`
	SourceType string  `json:"sourceType"` // qa 或 chunk
	SourceID   uint    `json:"sourceId"`
}

// RAGService 知识库检索，供员工端对话引擎和坐席端智能助手复用。
//
// 检索流程：
// 1. 先在 QA 库检索，最佳匹配超过阈值则直接返回 QA 答案，不再查向量库
// 2. 否则在向量库检索 top_k 个切片，低于最低分的丢弃
type RAGService struct {
	embedding Embedder
	index     *VectorIndex
	logger    *zap.Logger

	mu            sync.RWMutex
	qaThreshold   float64
	vectorTopK    int
	minChunkScore float64
}

func NewRAGService(embedding Embedder, index *VectorIndex, cfg config.RetrievalConfig, logger *zap.Logger) *RAGService {
	return &RAGService{
		embedding:     embedding,
		index:         index,
		logger:        logger,
		qaThreshold:   cfg.QAThreshold,
		vectorTopK:    cfg.VectorTopK,
		minChunkScore: cfg.MinChunkScore,
	}
}

// ApplyConfig 热更新检索参数，配置文件变更时由回调触发
func (s *RAGService) ApplyConfig(cfg config.RetrievalConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qaThreshold = cfg.QAThreshold
	s.vectorTopK = cfg.VectorTopK
	s.minChunkScore = cfg.MinChunkScore
}

func (s *RAGService) QAThreshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.qaThreshold
}

// Search 检索知识库。
// 返回 (qaHit, chunkHits)：QA 命中时 chunkHits 为空；
// QA 未达阈值时 qaHit 为 nil，chunkHits 为达标切片（按分数降序）。
func (s *RAGService) Search(ctx context.Context, query string) (*RAGResult, []RAGResult, error) {
	queryVec, err := s.embedding.EmbedSingle(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	qaThreshold := s.qaThreshold
	topK := s.vectorTopK
	minScore := s.minChunkScore
	s.mu.RUnlock()

	// 1. QA 快路径
	qaHits := s.index.Search(NamespaceQAQuestions, queryVec, 1)
	if len(qaHits) > 0 && qaHits[0].Score >= qaThreshold {
		hit := qaHits[0]
		s.logger.Info("QA 库命中",
			zap.Uint("qa_id", hit.ID),
			zap.Float64("score", hit.Score))
		return &RAGResult{
			Content:    fmt.Sprintf("Q: %s\nA: %s", hit.Payload.Content, hit.Payload.Answer),
			Answer:     hit.Payload.Answer,
			Score:      hit.Score,
			SourceType: "qa",
			SourceID:   hit.ID,
		}, nil, nil
	}

	// 2. 向量库检索
	chunkHits := s.index.Search(NamespaceChunks, queryVec, topK)
	results := make([]RAGResult, 0, len(chunkHits))
	for _, hit := range chunkHits {
		if hit.Score < minScore {
			continue
		}
		results = append(results, RAGResult{
			Content:    hit.Payload.Content,
			Score:      hit.Score,
			SourceType: "chunk",
			SourceID:   hit.ID,
		})
	}

	if len(results) > 0 {
		s.logger.Info("向量库检索完成",
			zap.Int("count", len(results)),
			zap.Float64("top_score", results[0].Score))
	} else {
		s.logger.Info("知识库无匹配结果", zap.String("query", query))
	}
	return nil, results, nil
}
