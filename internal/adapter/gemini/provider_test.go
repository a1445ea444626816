package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name        string
		resp        *genai.GenerateContentResponse
		expectError bool
		expected    string
	}{
		{
			name: "单段文本",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: &genai.Content{Parts: []genai.Part{genai.Text("# Overview\n\nA tool.")}},
				}},
			},
			expected: "# Overview\n\nA tool.",
		},
		{
			name: "多段文本拼接并去掉首尾空白",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: &genai.Content{Parts: []genai.Part{
						genai.Text("  part one"),
						genai.Text(" part two  "),
					}},
				}},
			},
			expected: "part one part two",
		},
		{
			name:        "没有候选结果",
			resp:        &genai.GenerateContentResponse{},
			expectError: true,
		},
		{
			name: "候选结果没有内容",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{Content: nil}},
			},
			expectError: true,
		},
		{
			name: "只有空白文本",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: &genai.Content{Parts: []genai.Part{genai.Text("   \n  ")}},
				}},
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := extractText(tt.resp)

			if tt.expectError {
				assert.Error(t, err)
				assert.Empty(t, content)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, content)
			}
		})
	}
}

func TestEmbed_EmptyInputRejected(t *testing.T) {
	p := &Provider{}

	for _, input := range []string{"", "   ", "\n\t"} {
		vec, err := p.Embed(context.Background(), input)
		assert.Error(t, err, "空输入不该产出向量")
		assert.Nil(t, vec)
	}
}

func TestUsageFrom(t *testing.T) {
	t.Run("有用量元数据时换算成本", func(t *testing.T) {
		usage := usageFrom(&genai.UsageMetadata{
			PromptTokenCount:     1_000_000,
			CandidatesTokenCount: 500_000,
		})

		assert.Equal(t, 1_000_000, usage.PromptTokens)
		assert.Equal(t, 500_000, usage.CompletionTokens)
		if assert.NotNil(t, usage.TotalCostUSD) {
			// 1M 输入 * 0.10 + 0.5M 输出 * 0.40
			assert.InDelta(t, 0.30, *usage.TotalCostUSD, 1e-9)
		}
	})

	t.Run("元数据缺失时保持零值", func(t *testing.T) {
		usage := usageFrom(nil)

		assert.Zero(t, usage.PromptTokens)
		assert.Zero(t, usage.CompletionTokens)
		assert.Nil(t, usage.TotalCostUSD)
	})
}
