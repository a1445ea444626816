package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garg-prashant/github-intel/internal/common"
	"github.com/garg-prashant/github-intel/internal/domain"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const providerName = "gemini"

// flash-lite 档的粗略单价（美元/百万 Token），只用来做成本核算展示
const (
	promptCostPerMTok     = 0.10
	completionCostPerMTok = 0.40
)

// 向量化输入上限，README 超长时截断（维度不受影响）
const embedInputMaxChars = 8192

// Provider 同时实现了 port.ContentGenerator 和 port.Embedder 接口
// 两个能力共用一个 genai 客户端，由工厂在启动时构造一次
type Provider struct {
	client     *genai.Client
	modelName  string
	embedModel string
}

// NewProvider 初始化 Gemini 客户端
func NewProvider(ctx context.Context, apiKey, modelName, embedModel string) (*Provider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("Gemini 客户端初始化失败: %w", err)
	}
	return &Provider{
		client:     client,
		modelName:  modelName,
		embedModel: embedModel,
	}, nil
}

// Close 释放底层连接
func (p *Provider) Close() error {
	return p.client.Close()
}

// Generate 实现 port.ContentGenerator
func (p *Provider) Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float32) (*domain.GenerationResult, error) {
	// 每次调用拿一个新的 model 句柄，参数互不串扰
	model := p.client.GenerativeModel(p.modelName)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.SetTemperature(temperature)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return nil, fmt.Errorf("AI 调用失败: %w", err)
	}
	content, err := extractText(resp)
	if err != nil {
		return nil, err
	}

	return &domain.GenerationResult{
		Content:      content,
		Provider:     providerName,
		Model:        p.modelName,
		Usage:        usageFrom(resp.UsageMetadata),
		LatencyMilli: time.Since(start).Milliseconds(),
	}, nil
}

// extractText 把候选结果里的所有文本段拼接起来
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("AI 返回内容为空")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", fmt.Errorf("AI 返回格式错误：没有文本部分")
	}
	return content, nil
}

// usageFrom 从用量元数据换算 Token 数和估算成本
func usageFrom(meta *genai.UsageMetadata) domain.TokenUsageJS {
	usage := domain.TokenUsageJS{}
	if meta == nil {
		return usage
	}
	usage.PromptTokens = int(meta.PromptTokenCount)
	usage.CompletionTokens = int(meta.CandidatesTokenCount)
	cost := float64(meta.PromptTokenCount)/1e6*promptCostPerMTok +
		float64(meta.CandidatesTokenCount)/1e6*completionCostPerMTok
	usage.TotalCostUSD = &cost
	return usage
}

// Embed 实现 port.Embedder
// 空输入直接报错：零向量一旦落库会污染余弦距离查询
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("向量化输入为空")
	}
	text = common.TruncateUTF8(text, embedInputMaxChars)
	model := p.client.EmbeddingModel(p.embedModel)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("向量化失败: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("向量化返回为空")
	}
	if len(resp.Embedding.Values) != domain.EmbeddingDim {
		// 维度漂移会毁掉整个向量列，必须硬失败
		return nil, fmt.Errorf("向量维度不符: 期望 %d 实际 %d", domain.EmbeddingDim, len(resp.Embedding.Values))
	}
	return resp.Embedding.Values, nil
}

func (p *Provider) Dimension() int { return domain.EmbeddingDim }

func (p *Provider) ModelName() string { return p.embedModel }
