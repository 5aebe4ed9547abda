package service

import (
	"context"
	"fmt"
	"strings"

	"ai_support_backend/internal/model"

	"go.uber.org/zap"
)

const intentDetectionPrompt = `分析用户问题的意图是否清晰。如果问题模糊、缺少关键信息，返回 {"clear": false, "reason": "缺少的信息"}
如果问题清晰明确，返回 {"clear": true}
只返回 JSON，不要返回其他内容。
用户问题：%s`

const queryRewritePrompt = `将用户问题改写为适合知识库检索的简洁表达，保留关键实体与意图。
只返回改写后的查询文本，不要返回其他内容。
用户问题：%s
改写结果：`

const clarificationPrompt = `用户的问题不够清晰：%s
缺少的信息：%s
请生成一个友好的反问，引导用户提供更多细节。只返回反问内容，不要返回其他信息。`

const ragResponsePrompt = `基于以下知识库内容回答用户问题。

知识库内容：
%s

对话历史：
%s

用户问题：%s

请提供准确、有帮助的回答。如果知识库内容不足以回答，请如实说明并尽力给出建议。`

const noContextPrompt = `你是一个智能客服助手。用户问了以下问题，但知识库中暂未找到相关信息。

对话历史：
%s

用户问题：%s

请尽力给出有帮助的回答，并提示用户如果问题未能解决可以转接人工客服。`

// AIEngine 员工端对话引擎。
//
// 完整 RAG 流程：
// 1. 意图识别，判断用户问题是否清晰
// 2. 问题不清晰时生成引导反问
// 3. Query 改写为检索友好表达
// 4. 知识库检索，拼接上下文调用 LLM 生成回复
type AIEngine struct {
	ai     Chatter
	rag    *RAGService
	logger *zap.Logger
}

func NewAIEngine(ai Chatter, rag *RAGService, logger *zap.Logger) *AIEngine {
	return &AIEngine{ai: ai, rag: rag, logger: logger}
}

// Reply 针对用户问题生成 AI 回复，history 为该工单最近的消息
func (e *AIEngine) Reply(ctx context.Context, query string, history []model.Message) (string, error) {
	historyText := e.buildHistory(history)
	e.logger.Info("AI 引擎处理开始", zap.String("query", query))

	// 1. 意图识别
	clear, reason := e.detectIntent(ctx, query)
	e.logger.Info("意图识别结果", zap.Bool("clear", clear), zap.String("reason", reason))

	if !clear {
		clarification := e.generateClarification(ctx, query, reason)
		e.logger.Info("触发引导反问", zap.String("reason", reason))
		return clarification, nil
	}

	// 2. Query 改写
	rewritten := e.rewriteQuery(ctx, query)
	e.logger.Info("Query 改写完成",
		zap.String("original", query),
		zap.String("rewritten", rewritten))

	// 3. 知识库检索
	qaHit, chunkHits, err := e.rag.Search(ctx, rewritten)
	if err != nil {
		return "", err
	}

	var context_ string
	if qaHit != nil {
		context_ = qaHit.Content
		e.logger.Info("QA 库直接命中", zap.Float64("score", qaHit.Score))
	} else if len(chunkHits) > 0 {
		contents := make([]string, len(chunkHits))
		for i, hit := range chunkHits {
			contents[i] = hit.Content
		}
		context_ = strings.Join(contents, "\n---\n")
		e.logger.Info("向量库命中",
			zap.Int("count", len(chunkHits)),
			zap.Float64("top_score", chunkHits[0].Score))
	}

	if historyText == "" {
		historyText = "无历史对话"
	}

	// 4. 生成回复
	var reply string
	if context_ != "" {
		reply, err = e.ai.Chat(ctx,
			"你是一个专业、友好的智能客服助手。",
			fmt.Sprintf(ragResponsePrompt, context_, historyText, query),
			0)
	} else {
		e.logger.Info("知识库无匹配，使用通用回复")
		reply, err = e.ai.Chat(ctx,
			"你是一个专业、友好的智能客服助手。",
			fmt.Sprintf(noContextPrompt, historyText, query),
			0)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("AI 回复生成完成", zap.Int("reply_length", len(reply)))
	return reply, nil
}

// buildHistory 取最近 6 条消息构建历史上下文
func (e *AIEngine) buildHistory(history []model.Message) string {
	if len(history) > 6 {
		history = history[len(history)-6:]
	}
	return conversationText(history)
}

type intentClarity struct {
	Clear  bool   `json:"clear"`
	Reason string `json:"reason"`
}

// detectIntent 判断问题是否清晰。识别失败时默认清晰，不阻断对话
func (e *AIEngine) detectIntent(ctx context.Context, query string) (bool, string) {
	content, err := e.ai.Chat(ctx,
		"你是意图分析专家，只返回 JSON。",
		fmt.Sprintf(intentDetectionPrompt, query),
		0.1)
	if err != nil {
		e.logger.Warn("意图识别失败，默认为清晰", zap.Error(err))
		return true, ""
	}
	var result intentClarity
	if err := ExtractJSONObject(content, &result); err != nil {
		e.logger.Warn("意图识别输出解析失败，默认为清晰", zap.String("content", content))
		return true, ""
	}
	return result.Clear, result.Reason
}

// rewriteQuery 将用户问题改写为检索友好表达，失败时退回原始问题
func (e *AIEngine) rewriteQuery(ctx context.Context, query string) string {
	rewritten, err := e.ai.Chat(ctx,
		"你是查询改写专家，只返回改写后的文本。",
		fmt.Sprintf(queryRewritePrompt, query),
		0.1)
	if err != nil {
		e.logger.Warn("Query 改写失败，使用原始 query", zap.Error(err))
		return query
	}
	rewritten = strings.Trim(rewritten, `"'`)
	if len([]rune(rewritten)) > 2 {
		return rewritten
	}
	return query
}

func (e *AIEngine) generateClarification(ctx context.Context, query, reason string) string {
	if reason == "" {
		reason = "信息不足"
	}
	clarification, err := e.ai.Chat(ctx,
		"你是友好的客服助手。",
		fmt.Sprintf(clarificationPrompt, query, reason),
		0.5)
	if err != nil {
		e.logger.Warn("生成反问失败", zap.Error(err))
		return "您的问题我还不太明确，能否提供更多细节呢？"
	}
	return clarification
}
