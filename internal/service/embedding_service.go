package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai_support_backend/internal/config"
	"ai_support_backend/internal/util"
)

// Embedder 向量化网关，测试时用假实现替换
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

type EmbeddingService struct {
	config config.EmbeddingConfig
	client *http.Client
}

func NewEmbeddingService(cfg config.EmbeddingConfig) *EmbeddingService {
	return &EmbeddingService{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// EmbedTexts 批量向量化，按配置的 batch_size 分批请求。
// 任一批次失败整体失败并返回 ErrUpstream，绝不以零向量充数。
func (s *EmbeddingService) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batchSize := s.config.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (s *EmbeddingService) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *EmbeddingService) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model: s.config.Model,
		Input: texts,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.BaseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: 向量化请求失败: %v", util.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: 向量化返回状态 %d: %s", util.ErrUpstream, resp.StatusCode, string(body))
	}

	var result embeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: 向量化响应解析失败: %v", util.ErrUpstream, err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("%w: 向量化错误: %s", util.ErrUpstream, result.Error.Message)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("%w: 向量数量不匹配: 期望 %d 实际 %d", util.ErrUpstream, len(texts), len(result.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range result.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("%w: 向量下标越界: %d", util.ErrUpstream, item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}
