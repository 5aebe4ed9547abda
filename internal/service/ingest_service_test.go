package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"ai_support_backend/internal/config"
	"ai_support_backend/internal/model"
	"ai_support_backend/internal/repository"
	"ai_support_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库在连接池里会各开各的库，并发写也需要串行化
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Ticket{}, &model.Message{},
		&model.KnowledgeDoc{}, &model.VectorChunk{}, &model.QAPair{},
		&model.QCResult{},
	))
	return db
}

// fakeQAChatter QA 生成返回固定的问答对数组
type fakeQAChatter struct {
	qaJSON string
	fail   bool
}

func (f *fakeQAChatter) Chat(ctx context.Context, system, user string, temperature float64) (string, error) {
	if f.fail {
		return "", fmt.Errorf("%w: LLM 网关不可用", util.ErrUpstream)
	}
	return f.qaJSON, nil
}

// countingEmbedder 前 failures 次调用返回错误，之后成功
type countingEmbedder struct {
	failures int
	calls    int
}

func (f *countingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("%w: 向量化网关超时", util.ErrUpstream)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *countingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func testIngestService(t *testing.T, db *gorm.DB, embedder Embedder, chatter Chatter) (*IngestService, *repository.KnowledgeRepository, *VectorIndex) {
	t.Helper()
	repo := repository.NewKnowledgeRepository(db)
	idx := NewVectorIndex()
	svc := NewIngestService(repo, embedder, chatter, idx,
		config.RetrievalConfig{QAThreshold: 0.85, VectorTopK: 3, MinChunkScore: 0.3, ChunkSize: 500, ChunkOverlap: 50},
		config.IngestConfig{MaxConcurrent: 2, RetryAttempts: 3, RetryBaseDelay: 1},
		zap.NewNop())
	return svc, repo, idx
}

func seedDoc(t *testing.T, repo *repository.KnowledgeRepository, content string) *model.KnowledgeDoc {
	t.Helper()
	doc := &model.KnowledgeDoc{
		Filename: "faq.md",
		Content:  content,
		Status:   model.DocStatusProcessing,
	}
	require.NoError(t, repo.CreateDoc(doc))
	return doc
}

func TestIngestProcessSuccess(t *testing.T) {
	db := newTestDB(t)
	chatter := &fakeQAChatter{qaJSON: `[{"question": "如何退款", "answer": "在订单页申请退款。"}]`}
	svc, repo, idx := testIngestService(t, db, &countingEmbedder{}, chatter)

	doc := seedDoc(t, repo, "退款政策：用户可在签收后七天内申请退款，退款将原路返回。")
	require.NoError(t, svc.Process(context.Background(), doc.ID))

	// 文档置 ready，计数与产物一致
	updated, err := repo.FindDocByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocStatusReady, updated.Status)
	assert.Equal(t, 1, updated.ChunkCount)
	assert.Equal(t, 1, updated.QACount)

	chunks, err := repo.AllChunks()
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.NotEmpty(t, chunks[0].Embedding)

	pairs, err := repo.AllQAPairs()
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "如何退款", pairs[0].Question)

	// 两个命名空间都已可检索
	assert.Equal(t, 1, idx.Count(NamespaceChunks))
	assert.Equal(t, 1, idx.Count(NamespaceQAQuestions))
}

func TestIngestRetriesTransientEmbeddingFailure(t *testing.T) {
	db := newTestDB(t)
	embedder := &countingEmbedder{failures: 2}
	svc, repo, _ := testIngestService(t, db, embedder, &fakeQAChatter{qaJSON: `[]`})

	doc := seedDoc(t, repo, "物流时效说明：普通快递三到五天送达，偏远地区顺延。")
	require.NoError(t, svc.Process(context.Background(), doc.ID))

	updated, err := repo.FindDocByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocStatusReady, updated.Status)
	assert.Equal(t, 3, embedder.calls)
}

func TestIngestExhaustedRetriesMarksFailed(t *testing.T) {
	db := newTestDB(t)
	embedder := &countingEmbedder{failures: 99}
	svc, repo, idx := testIngestService(t, db, embedder, &fakeQAChatter{qaJSON: `[]`})

	doc := seedDoc(t, repo, "配送范围说明：全国大部分城市支持配送。")
	err := svc.Process(context.Background(), doc.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrUpstream)
	assert.Equal(t, 3, embedder.calls)

	// Process 不落 failed 状态，由 Enqueue 的收尾逻辑负责；
	// 索引里也不应有半成品
	assert.Equal(t, 0, idx.Count(NamespaceChunks))
	chunks, _ := repo.AllChunks()
	assert.Empty(t, chunks)
}

func TestIngestEnqueueMarksFailedOnError(t *testing.T) {
	db := newTestDB(t)
	embedder := &countingEmbedder{failures: 99}
	svc, repo, _ := testIngestService(t, db, embedder, &fakeQAChatter{qaJSON: `[]`})

	doc := seedDoc(t, repo, "售后服务条款：质保期内免费维修。")
	svc.Enqueue(doc.ID)
	svc.Wait()

	updated, err := repo.FindDocByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocStatusFailed, updated.Status)
}

func TestIngestMalformedQAOutputIsLenient(t *testing.T) {
	db := newTestDB(t)
	chatter := &fakeQAChatter{qaJSON: "模型输出了一段散文而不是 JSON"}
	svc, repo, idx := testIngestService(t, db, &countingEmbedder{}, chatter)

	doc := seedDoc(t, repo, "会员权益说明：黄金会员享受免运费与专属客服通道。")
	require.NoError(t, svc.Process(context.Background(), doc.ID))

	// QA 解析失败不拖垮文档，切片照常入库
	updated, err := repo.FindDocByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocStatusReady, updated.Status)
	assert.Equal(t, 1, updated.ChunkCount)
	assert.Equal(t, 0, updated.QACount)
	assert.Equal(t, 0, idx.Count(NamespaceQAQuestions))
}

func TestIngestFiltersInvalidQAPairs(t *testing.T) {
	db := newTestDB(t)
	chatter := &fakeQAChatter{qaJSON: `[
		{"question": "有效问题", "answer": "有效答案"},
		{"question": "", "answer": "缺问题"},
		{"question": "缺答案", "answer": ""}
	]`}
	svc, repo, _ := testIngestService(t, db, &countingEmbedder{}, chatter)

	doc := seedDoc(t, repo, "积分规则说明：消费一元累计一分，积分可抵扣现金。")
	require.NoError(t, svc.Process(context.Background(), doc.ID))

	pairs, err := repo.AllQAPairs()
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "有效问题", pairs[0].Question)
}

func TestIngestLongDocumentMultipleChunks(t *testing.T) {
	db := newTestDB(t)
	svc, repo, idx := testIngestService(t, db, &countingEmbedder{}, &fakeQAChatter{qaJSON: `[]`})

	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString(strings.Repeat("条款内容。", 30))
		sb.WriteString("\n\n")
	}
	doc := seedDoc(t, repo, sb.String())
	require.NoError(t, svc.Process(context.Background(), doc.ID))

	updated, err := repo.FindDocByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocStatusReady, updated.Status)
	assert.Greater(t, updated.ChunkCount, 1)
	assert.Equal(t, updated.ChunkCount, idx.Count(NamespaceChunks))

	// 切片序号连续
	chunks, err := repo.AllChunks()
	require.NoError(t, err)
	seen := map[int]bool{}
	for _, c := range chunks {
		seen[c.Ordinal] = true
	}
	for i := 0; i < len(chunks); i++ {
		assert.True(t, seen[i], "缺少序号 %d", i)
	}
}
