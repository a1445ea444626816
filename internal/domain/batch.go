package domain

// SearchHit 话题搜索返回的候选项，用于去重和按星数排序
type SearchHit struct {
	FullName string
	Stars    int
	Language string
}

// ItemOutcome 单个条目的处理结果
type ItemOutcome struct {
	FullName string
	Skipped  bool
	Reason   string // Skipped 为 true 时说明原因
}

// BatchSummary 一批条目的汇总结果
// 调用方据此区分“没发现任何候选”和“全部失败”这两种零产出
type BatchSummary struct {
	Processed int
	Skipped   int
	Outcomes  []ItemOutcome
}

// RecordSuccess 记录一个处理成功的条目
func (b *BatchSummary) RecordSuccess(fullName string) {
	b.Processed++
	b.Outcomes = append(b.Outcomes, ItemOutcome{FullName: fullName})
}

// RecordSkip 记录一个被跳过的条目及原因
func (b *BatchSummary) RecordSkip(fullName, reason string) {
	b.Skipped++
	b.Outcomes = append(b.Outcomes, ItemOutcome{FullName: fullName, Skipped: true, Reason: reason})
}

// GenerationResult LLM 单次生成的返回值
type GenerationResult struct {
	Content      string
	Provider     string
	Model        string
	Usage        TokenUsageJS
	LatencyMilli int64
}
