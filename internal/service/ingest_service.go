package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai_support_backend/internal/config"
	"ai_support_backend/internal/model"
	"ai_support_backend/internal/repository"
	"ai_support_backend/internal/util"
	"ai_support_backend/pkg/monitoring"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const qaGenerationPrompt = `你是一个知识库 QA 专家。请根据以下文本内容，生成 2-5 个高质量的问答对。

要求：
1. 问题应该是用户可能会问的实际问题
2. 答案应准确、简洁，基于原文内容
3. 严格返回 JSON 数组格式，不要返回其他内容

返回格式：
[
  {"question": "问题1", "answer": "答案1"},
  {"question": "问题2", "answer": "答案2"}
]

文本内容：
%s`

// IngestService 知识文档入库流水线。
// 每个文档一个后台任务：切片 → 向量化 → QA 生成 → 事务落库 → 更新索引。
// 信号量限制同时处理的文档数，向量化失败按指数退避重试。
type IngestService struct {
	repo      *repository.KnowledgeRepository
	embedding Embedder
	ai        Chatter
	index     *VectorIndex
	logger    *zap.Logger

	mu             sync.RWMutex
	chunkSize      int
	chunkOverlap   int
	retryAttempts  int
	retryBaseDelay time.Duration

	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewIngestService(
	repo *repository.KnowledgeRepository,
	embedding Embedder,
	ai Chatter,
	index *VectorIndex,
	retrievalCfg config.RetrievalConfig,
	ingestCfg config.IngestConfig,
	logger *zap.Logger,
) *IngestService {
	ctx, cancel := context.WithCancel(context.Background())
	maxConcurrent := ingestCfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &IngestService{
		repo:           repo,
		embedding:      embedding,
		ai:             ai,
		index:          index,
		logger:         logger,
		chunkSize:      retrievalCfg.ChunkSize,
		chunkOverlap:   retrievalCfg.ChunkOverlap,
		retryAttempts:  ingestCfg.RetryAttempts,
		retryBaseDelay: time.Duration(ingestCfg.RetryBaseDelay) * time.Millisecond,
		sem:            semaphore.NewWeighted(maxConcurrent),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// ApplyConfig 热更新切片与重试参数，只影响之后入队的文档
func (s *IngestService) ApplyConfig(retrievalCfg config.RetrievalConfig, ingestCfg config.IngestConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunkSize = retrievalCfg.ChunkSize
	s.chunkOverlap = retrievalCfg.ChunkOverlap
	s.retryAttempts = ingestCfg.RetryAttempts
	s.retryBaseDelay = time.Duration(ingestCfg.RetryBaseDelay) * time.Millisecond
}

// Enqueue 提交文档后台处理，立即返回。处理结果通过文档状态查询
func (s *IngestService) Enqueue(docID uint) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			s.logger.Warn("入库任务在排队时被取消", zap.Uint("doc_id", docID))
			return
		}
		defer s.sem.Release(1)

		if err := s.Process(s.ctx, docID); err != nil {
			s.logger.Error("文档入库失败",
				zap.Uint("doc_id", docID),
				zap.Error(err))
			if markErr := s.repo.MarkFailed(docID); markErr != nil {
				s.logger.Error("标记文档失败状态出错",
					zap.Uint("doc_id", docID),
					zap.Error(markErr))
			}
			monitoring.IngestDocsTotal.WithLabelValues("failed").Inc()
			return
		}
		monitoring.IngestDocsTotal.WithLabelValues("ready").Inc()
	}()
}

// Wait 等待已入队任务全部处理完成
func (s *IngestService) Wait() {
	s.wg.Wait()
}

// Stop 取消在途任务并等待全部退出，服务关停时调用
func (s *IngestService) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Process 同步执行单个文档的完整入库流程
func (s *IngestService) Process(ctx context.Context, docID uint) error {
	doc, err := s.repo.FindDocByID(docID)
	if err != nil {
		return fmt.Errorf("加载文档失败: %w", err)
	}

	s.mu.RLock()
	chunkSize := s.chunkSize
	chunkOverlap := s.chunkOverlap
	s.mu.RUnlock()

	// 1. 切片
	chunkTexts := ChunkText(doc.Content, chunkSize, chunkOverlap)
	s.logger.Info("文档切片完成",
		zap.Uint("doc_id", docID),
		zap.Int("chunk_count", len(chunkTexts)))

	if len(chunkTexts) == 0 {
		return s.repo.PersistIngestResult(docID, nil, nil)
	}

	// 2. 向量化切片
	var chunkVectors [][]float32
	err = s.withRetry(ctx, "切片向量化", func() error {
		var e error
		chunkVectors, e = s.embedding.EmbedTexts(ctx, chunkTexts)
		return e
	})
	if err != nil {
		return err
	}

	chunks := make([]model.VectorChunk, len(chunkTexts))
	for i, text := range chunkTexts {
		chunks[i] = model.VectorChunk{
			DocID:     docID,
			Ordinal:   i,
			Content:   text,
			Embedding: util.Float32sToBytes(chunkVectors[i]),
		}
	}

	// 3. 每个切片生成 QA 对。单个切片生成失败只丢弃该切片的 QA，
	// 不拖垮整个文档
	var pairs []model.QAPair
	for _, text := range chunkTexts {
		for _, qa := range s.generateQAPairs(ctx, text) {
			pairs = append(pairs, model.QAPair{
				DocID:    docID,
				Question: qa.Question,
				Answer:   qa.Answer,
			})
		}
	}

	// 4. 向量化 QA 问题
	if len(pairs) > 0 {
		questions := make([]string, len(pairs))
		for i, qa := range pairs {
			questions[i] = qa.Question
		}
		var qaVectors [][]float32
		err = s.withRetry(ctx, "QA 向量化", func() error {
			var e error
			qaVectors, e = s.embedding.EmbedTexts(ctx, questions)
			return e
		})
		if err != nil {
			return err
		}
		for i := range pairs {
			pairs[i].Embedding = util.Float32sToBytes(qaVectors[i])
		}
	}

	// 5. 事务落库并置 ready
	if err := s.repo.PersistIngestResult(docID, chunks, pairs); err != nil {
		return fmt.Errorf("入库结果落库失败: %w", err)
	}

	// 6. 同步内存索引
	for _, chunk := range chunks {
		s.index.Upsert(NamespaceChunks, chunk.ID, util.BytesToFloat32s(chunk.Embedding), IndexPayload{
			DocID:   docID,
			Content: chunk.Content,
		})
	}
	for _, qa := range pairs {
		s.index.Upsert(NamespaceQAQuestions, qa.ID, util.BytesToFloat32s(qa.Embedding), IndexPayload{
			DocID:   docID,
			Content: qa.Question,
			Answer:  qa.Answer,
		})
	}

	s.logger.Info("文档处理完成",
		zap.Uint("doc_id", docID),
		zap.Int("chunks", len(chunks)),
		zap.Int("qa_pairs", len(pairs)))
	return nil
}

type generatedQA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// generateQAPairs 调用 LLM 生成问答对。输出不可解析或生成失败时
// 返回空列表，问答对缺失不影响文档状态。
func (s *IngestService) generateQAPairs(ctx context.Context, text string) []generatedQA {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < 20 {
		return nil
	}

	runes := []rune(text)
	if len(runes) > 2000 {
		text = string(runes[:2000])
	}

	content, err := s.ai.Chat(ctx,
		"你是一个知识库 QA 专家，只返回 JSON 数组。",
		fmt.Sprintf(qaGenerationPrompt, text),
		0.3)
	if err != nil {
		s.logger.Warn("QA 生成失败", zap.Error(err))
		return nil
	}

	var raw []generatedQA
	if err := ExtractJSONArray(content, &raw); err != nil {
		s.logger.Warn("QA 生成结果无法解析为 JSON", zap.String("content", truncate(content, 200)))
		return nil
	}

	valid := make([]generatedQA, 0, len(raw))
	for _, qa := range raw {
		q := strings.TrimSpace(qa.Question)
		a := strings.TrimSpace(qa.Answer)
		if q != "" && a != "" {
			valid = append(valid, generatedQA{Question: q, Answer: a})
		}
	}
	s.logger.Info("QA 解析完成", zap.Int("count", len(valid)))
	return valid
}

// withRetry 指数退避重试，仅用于向量化这类瞬时故障多发的调用
func (s *IngestService) withRetry(ctx context.Context, label string, fn func() error) error {
	s.mu.RLock()
	attempts := s.retryAttempts
	baseDelay := s.retryBaseDelay
	s.mu.RUnlock()
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i)
		s.logger.Warn("调用失败，准备重试",
			zap.String("step", label),
			zap.Int("attempt", i+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s 重试 %d 次后仍失败: %w", label, attempts, err)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
