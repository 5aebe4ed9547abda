package service

import (
	"context"
	"testing"

	"ai_support_backend/internal/config"
	"ai_support_backend/internal/model"
	"ai_support_backend/internal/repository"
	"ai_support_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testKnowledgeService(t *testing.T, db *gorm.DB) (*KnowledgeService, *IngestService, *VectorIndex, *repository.KnowledgeRepository) {
	t.Helper()
	repo := repository.NewKnowledgeRepository(db)
	idx := NewVectorIndex()
	ingest := NewIngestService(repo, &countingEmbedder{},
		&fakeQAChatter{qaJSON: `[{"question": "问题", "answer": "答案"}]`}, idx,
		config.RetrievalConfig{QAThreshold: 0.85, VectorTopK: 3, MinChunkScore: 0.3, ChunkSize: 500, ChunkOverlap: 50},
		config.IngestConfig{MaxConcurrent: 2, RetryAttempts: 3, RetryBaseDelay: 1},
		zap.NewNop())
	storage := &StorageService{Provider: &LocalStorageProvider{
		Config: &config.StorageConfig{LocalPath: t.TempDir()},
	}}
	svc := NewKnowledgeService(repo, ingest, idx, storage, nil, zap.NewNop())
	return svc, ingest, idx, repo
}

func TestKnowledgeUploadValidation(t *testing.T) {
	db := newTestDB(t)
	svc, _, _, _ := testKnowledgeService(t, db)

	// 不支持的扩展名
	_, err := svc.Upload(context.Background(), "manual.pdf", []byte("内容"))
	assert.ErrorIs(t, err, util.ErrValidation)

	// 空内容
	_, err = svc.Upload(context.Background(), "empty.md", []byte("   \n  "))
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestKnowledgeUploadAndIngest(t *testing.T) {
	db := newTestDB(t)
	svc, ingest, idx, _ := testKnowledgeService(t, db)

	doc, err := svc.Upload(context.Background(), "faq.md", []byte("退款政策：签收后七天内可申请退款，退款原路返回。"))
	require.NoError(t, err)
	assert.Equal(t, model.DocStatusProcessing, doc.Status)
	assert.NotEmpty(t, doc.ObjectKey)

	// 等待后台入库完成
	ingest.Wait()

	updated, err := svc.Get(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocStatusReady, updated.Status)
	assert.Equal(t, 1, updated.ChunkCount)
	assert.Equal(t, 1, updated.QACount)
	assert.Equal(t, 1, idx.Count(NamespaceChunks))
	assert.Equal(t, 1, idx.Count(NamespaceQAQuestions))
}

func TestKnowledgeList(t *testing.T) {
	db := newTestDB(t)
	svc, ingest, _, _ := testKnowledgeService(t, db)

	_, err := svc.Upload(context.Background(), "a.md", []byte("文档甲的内容，关于退款。"))
	require.NoError(t, err)
	_, err = svc.Upload(context.Background(), "b.txt", []byte("文档乙的内容，关于物流。"))
	require.NoError(t, err)
	ingest.Wait()

	docs, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestKnowledgeDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	svc, ingest, idx, repo := testKnowledgeService(t, db)

	doc, err := svc.Upload(context.Background(), "faq.md", []byte("会员权益说明：黄金会员享受免运费与专属客服。"))
	require.NoError(t, err)
	ingest.Wait()
	require.Equal(t, 1, idx.Count(NamespaceChunks))

	require.NoError(t, svc.Delete(context.Background(), doc.ID))

	// 数据库与两个索引命名空间全部清空
	_, err = svc.Get(doc.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)
	chunks, _ := repo.AllChunks()
	assert.Empty(t, chunks)
	pairs, _ := repo.AllQAPairs()
	assert.Empty(t, pairs)
	assert.Equal(t, 0, idx.Count(NamespaceChunks))
	assert.Equal(t, 0, idx.Count(NamespaceQAQuestions))

	// 重复删除是幂等的
	assert.NoError(t, svc.Delete(context.Background(), doc.ID))
}

func TestKnowledgeDeleteFailedDocIsRecovery(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewKnowledgeRepository(db)
	idx := NewVectorIndex()
	ingest := NewIngestService(repo, &countingEmbedder{failures: 99},
		&fakeQAChatter{qaJSON: `[]`}, idx,
		config.RetrievalConfig{ChunkSize: 500, ChunkOverlap: 50},
		config.IngestConfig{MaxConcurrent: 1, RetryAttempts: 2, RetryBaseDelay: 1},
		zap.NewNop())
	storage := &StorageService{Provider: &LocalStorageProvider{
		Config: &config.StorageConfig{LocalPath: t.TempDir()},
	}}
	svc := NewKnowledgeService(repo, ingest, idx, storage, nil, zap.NewNop())

	doc, err := svc.Upload(context.Background(), "bad.md", []byte("这篇文档的向量化注定失败。"))
	require.NoError(t, err)
	ingest.Wait()

	failed, err := svc.Get(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocStatusFailed, failed.Status)

	// failed 文档通过删除后重新上传来恢复
	require.NoError(t, svc.Delete(context.Background(), doc.ID))
	_, err = svc.Get(doc.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestKnowledgeWarmRebuildsIndex(t *testing.T) {
	db := newTestDB(t)
	svc, ingest, idx, repo := testKnowledgeService(t, db)

	_, err := svc.Upload(context.Background(), "faq.md", []byte("积分规则：消费一元累计一分，积分可抵扣现金。"))
	require.NoError(t, err)
	ingest.Wait()
	require.Equal(t, 1, idx.Count(NamespaceChunks))

	// 模拟重启：新索引从数据库重建
	freshIdx := NewVectorIndex()
	fresh := NewKnowledgeService(repo, ingest, freshIdx, svc.storage, nil, zap.NewNop())
	require.NoError(t, fresh.Warm(context.Background()))

	assert.Equal(t, 1, freshIdx.Count(NamespaceChunks))
	assert.Equal(t, 1, freshIdx.Count(NamespaceQAQuestions))

	hits := freshIdx.Search(NamespaceChunks, []float32{1, 0, 0}, 1)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Payload.Content, "积分规则")
}
