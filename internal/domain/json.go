package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// StringList 存成 JSONB 的字符串数组（topics、keywords）
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	b, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("StringList 反序列化失败: %w", err)
	}
	return json.Unmarshal(b, l)
}

// LanguageBytes 语言 -> 字节数映射，对应 GitHub /languages 接口
type LanguageBytes map[string]int64

func (m LanguageBytes) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *LanguageBytes) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	b, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("LanguageBytes 反序列化失败: %w", err)
	}
	return json.Unmarshal(b, m)
}

// TokenUsageJS Token 用量和成本核算，存成 JSONB
type TokenUsageJS struct {
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	TotalCostUSD     *float64 `json:"total_cost_usd,omitempty"`
}

func (u TokenUsageJS) Value() (driver.Value, error) {
	return json.Marshal(u)
}

func (u *TokenUsageJS) Scan(value interface{}) error {
	if value == nil {
		*u = TokenUsageJS{}
		return nil
	}
	b, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("TokenUsageJS 反序列化失败: %w", err)
	}
	return json.Unmarshal(b, u)
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("不支持的 JSONB 源类型")
	}
}
