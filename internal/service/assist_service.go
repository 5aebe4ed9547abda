package service

import (
	"context"
	"fmt"
	"strings"

	"ai_support_backend/internal/model"

	"go.uber.org/zap"
)

const intentExtractPrompt = `分析以下客服对话，识别用户的核心意图。
返回 JSON 格式：{"intent": "意图标签(简短)", "confidence": 0.0到1.0之间的置信度, "keywords": ["关键词1", "关键词2"]}
只返回 JSON，不要返回其他内容。

对话记录：
%s`

const suggestReplyPrompt = `你是一个专业的客服坐席助手。根据以下信息为坐席生成推荐回复。

用户意图：%s
知识库参考内容：
%s

对话记录：
%s

请生成一段专业、友好的客服回复。直接给出回复内容，不要包含"回复："等前缀。`

// AssistSource 推荐回复的知识来源，Score 已归一化到 [0, 1]
type AssistSource struct {
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	SourceType string  `json:"sourceType"`
	SourceID   uint    `json:"sourceId"`
}

// AssistResult 坐席智能助手输出，即算即弃，不落库
type AssistResult struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Keywords   []string       `json:"keywords"`
	Suggestion string         `json:"suggestion"`
	Sources    []AssistSource `json:"sources"`
}

// AssistService 坐席端智能助手。
//
// 流程：
// 1. 从对话记录中提取意图和关键词
// 2. 用关键词拼接用户最后一条消息检索知识库
// 3. 构造推荐回复
type AssistService struct {
	ai     Chatter
	rag    *RAGService
	logger *zap.Logger
}

func NewAssistService(ai Chatter, rag *RAGService, logger *zap.Logger) *AssistService {
	return &AssistService{ai: ai, rag: rag, logger: logger}
}

var roleLabels = map[model.MessageRole]string{
	model.RoleUser:  "用户",
	model.RoleAI:    "AI",
	model.RoleAgent: "坐席",
}

func roleLabel(role model.MessageRole) string {
	if label, ok := roleLabels[role]; ok {
		return label
	}
	return string(role)
}

func conversationText(messages []model.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		sb.WriteString(roleLabel(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// rescaleScore 余弦相似度 [-1, 1] 归一化到 [0, 1]，仅用于对外展示
func rescaleScore(s float64) float64 {
	scaled := (s + 1) / 2
	if scaled < 0 {
		return 0
	}
	if scaled > 1 {
		return 1
	}
	return scaled
}

// Assist 生成推荐回复。
// 意图提取拿到的是模型输出，解析失败时退回默认意图；
// 但向量化或回复生成的网关故障按硬错误上抛，不伪装成无匹配。
func (s *AssistService) Assist(ctx context.Context, messages []model.Message) (*AssistResult, error) {
	conversation := conversationText(messages)
	s.logger.Info("坐席智能助手开始分析", zap.Int("message_count", len(messages)))

	// 1. 意图识别
	intent, confidence, keywords, err := s.extractIntent(ctx, conversation)
	if err != nil {
		return nil, err
	}
	s.logger.Info("意图识别完成",
		zap.String("intent", intent),
		zap.Float64("confidence", confidence))

	// 2. 知识库检索：关键词拼接查询，用户最后一条消息作补充
	query := strings.Join(keywords, " ")
	if query == "" {
		query = intent
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			query = strings.TrimSpace(query + " " + messages[i].Content)
			break
		}
	}

	qaHit, chunkHits, err := s.rag.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	var context_ string
	var sources []AssistSource

	if qaHit != nil {
		// QA 直接命中：答案即推荐回复，置信度取命中分
		s.logger.Info("QA 库直接命中", zap.Float64("score", qaHit.Score))
		return &AssistResult{
			Intent:     intent,
			Confidence: rescaleScore(qaHit.Score),
			Keywords:   keywords,
			Suggestion: qaHit.Answer,
			Sources: []AssistSource{{
				Content:    qaHit.Content,
				Score:      rescaleScore(qaHit.Score),
				SourceType: qaHit.SourceType,
				SourceID:   qaHit.SourceID,
			}},
		}, nil
	}

	if len(chunkHits) == 0 {
		// 无匹配不是故障，返回低置信度结果
		return &AssistResult{
			Intent:     intent,
			Confidence: 0,
			Keywords:   keywords,
			Suggestion: "知识库中暂未找到相关信息，请人工确认后回复。",
			Sources:    []AssistSource{},
		}, nil
	}

	contexts := make([]string, len(chunkHits))
	sources = make([]AssistSource, len(chunkHits))
	for i, hit := range chunkHits {
		contexts[i] = hit.Content
		sources[i] = AssistSource{
			Content:    hit.Content,
			Score:      rescaleScore(hit.Score),
			SourceType: hit.SourceType,
			SourceID:   hit.SourceID,
		}
	}
	context_ = strings.Join(contexts, "\n---\n")

	// 3. 生成推荐回复
	suggestion, err := s.ai.Chat(ctx,
		"你是专业的客服坐席助手。",
		fmt.Sprintf(suggestReplyPrompt, intent, context_, conversation),
		0)
	if err != nil {
		return nil, err
	}
	s.logger.Info("推荐回复生成完成", zap.Int("suggestion_length", len(suggestion)))

	return &AssistResult{
		Intent:     intent,
		Confidence: rescaleScore(chunkHits[0].Score),
		Keywords:   keywords,
		Suggestion: suggestion,
		Sources:    sources,
	}, nil
}

type intentPayload struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords"`
}

// extractIntent 从对话中提取意图。网关故障上抛；
// 模型返回不可解析的内容时退回默认意图，不算故障。
func (s *AssistService) extractIntent(ctx context.Context, conversation string) (string, float64, []string, error) {
	content, err := s.ai.Chat(ctx,
		"你是客服对话分析专家，只返回 JSON。",
		fmt.Sprintf(intentExtractPrompt, conversation),
		0.1)
	if err != nil {
		return "", 0, nil, err
	}

	var payload intentPayload
	if e := ExtractJSONObject(content, &payload); e == nil && payload.Intent != "" {
		if payload.Keywords == nil {
			payload.Keywords = []string{}
		}
		return payload.Intent, payload.Confidence, payload.Keywords, nil
	}
	s.logger.Warn("意图输出解析失败，使用默认意图", zap.String("content", content))
	return "未知", 0.5, []string{}, nil
}
