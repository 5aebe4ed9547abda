package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"ai_support_backend/internal/model"
	"ai_support_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeChatter 按 prompt 关键片段路由固定回复
type fakeChatter struct {
	intentJSON string
	reply      string
	fail       bool
}

func (f *fakeChatter) Chat(ctx context.Context, system, user string, temperature float64) (string, error) {
	if f.fail {
		return "", fmt.Errorf("%w: LLM 网关不可用", util.ErrUpstream)
	}
	if strings.Contains(user, "识别用户的核心意图") {
		return f.intentJSON, nil
	}
	return f.reply, nil
}

func assistMessages() []model.Message {
	return []model.Message{
		{ID: 1, TicketID: 1, Role: model.RoleUser, Content: "发票开错了怎么办"},
		{ID: 2, TicketID: 1, Role: model.RoleAI, Content: "请提供订单号。"},
		{ID: 3, TicketID: 1, Role: model.RoleUser, Content: "订单号是 A1001"},
	}
}

func TestAssistQAFastPath(t *testing.T) {
	idx := NewVectorIndex()
	idx.Upsert(NamespaceQAQuestions, 1, []float32{1, 0, 0}, IndexPayload{
		Content: "发票开错如何处理", Answer: "可在订单详情页申请换开发票。",
	})

	ai := &fakeChatter{intentJSON: `{"intent": "发票换开", "confidence": 0.9, "keywords": ["发票", "换开"]}`}
	rag := NewRAGService(&fakeEmbedder{}, idx, testRetrievalConfig(), zap.NewNop())
	assist := NewAssistService(ai, rag, zap.NewNop())

	result, err := assist.Assist(context.Background(), assistMessages())
	require.NoError(t, err)

	assert.Equal(t, "发票换开", result.Intent)
	assert.Equal(t, []string{"发票", "换开"}, result.Keywords)
	// QA 命中时推荐回复即为答案本身，不再调用 LLM 生成
	assert.Equal(t, "可在订单详情页申请换开发票。", result.Suggestion)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "qa", result.Sources[0].SourceType)
	// 展示分数归一化到 [0, 1]
	assert.GreaterOrEqual(t, result.Sources[0].Score, 0.0)
	assert.LessOrEqual(t, result.Sources[0].Score, 1.0)
	assert.InDelta(t, result.Confidence, result.Sources[0].Score, 1e-9)
}

func TestAssistChunkComposition(t *testing.T) {
	idx := NewVectorIndex()
	idx.Upsert(NamespaceChunks, 10, []float32{1, 0, 0}, IndexPayload{Content: "发票管理规则"})
	idx.Upsert(NamespaceChunks, 11, []float32{0.8, 0.6, 0}, IndexPayload{Content: "售后流程"})

	ai := &fakeChatter{
		intentJSON: `{"intent": "发票换开", "confidence": 0.8, "keywords": ["发票"]}`,
		reply:      "您好，可以为您重新开具发票。",
	}
	rag := NewRAGService(&fakeEmbedder{}, idx, testRetrievalConfig(), zap.NewNop())
	assist := NewAssistService(ai, rag, zap.NewNop())

	result, err := assist.Assist(context.Background(), assistMessages())
	require.NoError(t, err)

	assert.Equal(t, "您好，可以为您重新开具发票。", result.Suggestion)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "chunk", result.Sources[0].SourceType)
	assert.GreaterOrEqual(t, result.Sources[0].Score, result.Sources[1].Score)
}

func TestAssistNoMatch(t *testing.T) {
	idx := NewVectorIndex()
	idx.Upsert(NamespaceChunks, 10, []float32{0, 0, 1}, IndexPayload{Content: "不相关内容"})

	ai := &fakeChatter{intentJSON: `{"intent": "未知需求", "confidence": 0.4, "keywords": []}`}
	rag := NewRAGService(&fakeEmbedder{}, idx, testRetrievalConfig(), zap.NewNop())
	assist := NewAssistService(ai, rag, zap.NewNop())

	result, err := assist.Assist(context.Background(), assistMessages())
	require.NoError(t, err)

	// 无匹配不是故障，给低置信度结果与空来源
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.Sources)
	assert.Contains(t, result.Suggestion, "暂未找到")
}

func TestAssistMalformedIntentFallsBack(t *testing.T) {
	idx := NewVectorIndex()
	ai := &fakeChatter{intentJSON: "模型没有返回 JSON"}
	rag := NewRAGService(&fakeEmbedder{}, idx, testRetrievalConfig(), zap.NewNop())
	assist := NewAssistService(ai, rag, zap.NewNop())

	result, err := assist.Assist(context.Background(), assistMessages())
	require.NoError(t, err)
	assert.Equal(t, "未知", result.Intent)
	assert.Empty(t, result.Keywords)
}

func TestAssistGatewayOutageIsHardError(t *testing.T) {
	rag := NewRAGService(&fakeEmbedder{}, NewVectorIndex(), testRetrievalConfig(), zap.NewNop())
	assist := NewAssistService(&fakeChatter{fail: true}, rag, zap.NewNop())

	_, err := assist.Assist(context.Background(), assistMessages())
	assert.ErrorIs(t, err, util.ErrUpstream)
}
