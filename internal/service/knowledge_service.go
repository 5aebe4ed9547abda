package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"ai_support_backend/internal/model"
	"ai_support_backend/internal/repository"
	"ai_support_backend/internal/util"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	docListCacheKey = "knowledge:docs"
	docListCacheTTL = 30 * time.Second
)

// KnowledgeService 知识库管理：上传、列表、删除、启动时重建索引。
// 文档列表走 Redis 缓存，上传与删除时主动失效。
type KnowledgeService struct {
	repo    *repository.KnowledgeRepository
	ingest  *IngestService
	index   *VectorIndex
	storage *StorageService
	cache   *redis.Client
	logger  *zap.Logger
}

func NewKnowledgeService(
	repo *repository.KnowledgeRepository,
	ingest *IngestService,
	index *VectorIndex,
	storage *StorageService,
	cache *redis.Client,
	logger *zap.Logger,
) *KnowledgeService {
	return &KnowledgeService{
		repo:    repo,
		ingest:  ingest,
		index:   index,
		storage: storage,
		cache:   cache,
		logger:  logger,
	}
}

// Upload 上传知识文档。校验通过后立即返回 processing 状态的文档，
// 切片、向量化与 QA 生成在后台完成。
func (s *KnowledgeService) Upload(ctx context.Context, filename string, data []byte) (*model.KnowledgeDoc, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, e := range util.AllowedDocExtensions {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, util.ErrValidation
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil, util.ErrValidation
	}

	objectKey := "knowledge/" + uuid.New().String() + ext
	doc := &model.KnowledgeDoc{
		Filename:  filename,
		ObjectKey: objectKey,
		Content:   content,
		Status:    model.DocStatusProcessing,
	}
	if err := s.repo.CreateDoc(doc); err != nil {
		return nil, err
	}

	// 原始文件归档失败不阻断入库，内容已落库
	if _, err := s.storage.Upload(ctx, objectKey, strings.NewReader(content), int64(len(data)), "text/plain"); err != nil {
		s.logger.Warn("原始文件归档失败",
			zap.Uint("doc_id", doc.ID),
			zap.String("object_key", objectKey),
			zap.Error(err))
	}

	s.invalidateDocList(ctx)
	s.ingest.Enqueue(doc.ID)

	s.logger.Info("知识文档已入队",
		zap.Uint("doc_id", doc.ID),
		zap.String("filename", filename))
	return doc, nil
}

func (s *KnowledgeService) Get(docID uint) (*model.KnowledgeDoc, error) {
	doc, err := s.repo.FindDocByID(docID)
	if err != nil {
		return nil, util.ErrNotFound
	}
	return doc, nil
}

// List 文档列表，优先读缓存
func (s *KnowledgeService) List(ctx context.Context) ([]model.KnowledgeDoc, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, docListCacheKey).Result(); err == nil {
			var docs []model.KnowledgeDoc
			if json.Unmarshal([]byte(cached), &docs) == nil {
				return docs, nil
			}
		}
	}

	docs, err := s.repo.ListDocs()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(docs); err == nil {
			if err := s.cache.Set(ctx, docListCacheKey, data, docListCacheTTL).Err(); err != nil {
				s.logger.Warn("写入文档列表缓存失败", zap.Error(err))
			}
		}
	}
	return docs, nil
}

// Delete 删除文档并级联清理切片、问答对、索引与归档文件。
// 文档不存在时静默成功，删除本身就是对 failed 文档的恢复手段
func (s *KnowledgeService) Delete(ctx context.Context, docID uint) error {
	chunkIDs, qaIDs, found, err := s.repo.DeleteDocCascade(docID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	s.index.Delete(NamespaceChunks, chunkIDs...)
	s.index.Delete(NamespaceQAQuestions, qaIDs...)
	s.invalidateDocList(ctx)

	s.logger.Info("知识文档已删除",
		zap.Uint("doc_id", docID),
		zap.Int("chunks", len(chunkIDs)),
		zap.Int("qa_pairs", len(qaIDs)))
	return nil
}

// Warm 服务启动时从数据库全量重建内存索引
func (s *KnowledgeService) Warm(ctx context.Context) error {
	chunks, err := s.repo.AllChunks()
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		s.index.Upsert(NamespaceChunks, chunk.ID, util.BytesToFloat32s(chunk.Embedding), IndexPayload{
			DocID:   chunk.DocID,
			Content: chunk.Content,
		})
	}

	pairs, err := s.repo.AllQAPairs()
	if err != nil {
		return err
	}
	for _, qa := range pairs {
		if len(qa.Embedding) == 0 {
			continue
		}
		s.index.Upsert(NamespaceQAQuestions, qa.ID, util.BytesToFloat32s(qa.Embedding), IndexPayload{
			DocID:   qa.DocID,
			Content: qa.Question,
			Answer:  qa.Answer,
		})
	}

	s.logger.Info("向量索引重建完成",
		zap.Int("chunks", len(chunks)),
		zap.Int("qa_pairs", len(pairs)))
	return nil
}

func (s *KnowledgeService) invalidateDocList(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, docListCacheKey).Err(); err != nil {
		s.logger.Warn("失效文档列表缓存失败", zap.Error(err))
	}
}
