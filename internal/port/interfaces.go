package port

import (
	"context"
	"time"

	"github.com/garg-prashant/github-intel/internal/domain"
)

// GitHubGateway (外勤): 限速的 GitHub API 封装
// 实现方负责并发闸门、配额追踪和退避重试，调用方只管拿数据
type GitHubGateway interface {
	// GetProfile 拉取仓库档案并映射为 domain.Repository（未持久化）
	GetProfile(ctx context.Context, owner, name string) (*domain.Repository, error)

	// GetReadme 返回解码后的 README 文本；404 时 found 为 false，不算错误
	GetReadme(ctx context.Context, owner, name string) (content string, found bool, err error)

	// GetLanguages 返回语言字节映射；404 时返回 nil，不算错误
	GetLanguages(ctx context.Context, owner, name string) (domain.LanguageBytes, error)

	// GetCommitActivity 返回近两周提交总数；统计未就绪或 404 时 known 为 false
	GetCommitActivity(ctx context.Context, owner, name string) (commits int, known bool, err error)

	// SearchByTopic 按话题搜索仓库，走独立的 search 配额
	SearchByTopic(ctx context.Context, topic string, minStars, perPage int) ([]domain.SearchHit, error)
}

// DiscoverySource (侦察兵): 产出候选仓库 full_name 列表的策略
// 话题搜索和 Trending 页抓取是两个可互换的实现
type DiscoverySource interface {
	Name() string
	Discover(ctx context.Context) ([]string, error)
}

// RepoStore 仓库与快照的持久化，摄取和评分阶段使用
type RepoStore interface {
	// FindByFullName 查询仓库，不存在时返回 (nil, nil)
	FindByFullName(ctx context.Context, fullName string) (*domain.Repository, error)

	// UpsertRepository 按 github_id 冲突合并：覆盖可变属性和 updated_at，
	// 绝不触碰身份字段和创建时间。返回持久化后的主键
	UpsertRepository(ctx context.Context, repo *domain.Repository) (int64, error)

	// LatestSnapshots 返回按 snapshot_at 倒序的最近 limit 条快照
	LatestSnapshots(ctx context.Context, repoID int64, limit int) ([]domain.TrendSnapshot, error)

	AppendSnapshot(ctx context.Context, snap *domain.TrendSnapshot) error

	// ListWithSnapshots 返回带全量快照的仓库（评分 cohort 的原料）
	ListWithSnapshots(ctx context.Context) ([]*domain.Repository, error)

	// ApplyScoring 回写派生字段：趋势分、30 天星增量、质量开关，
	// 并把分数落到该仓库最新一条快照上
	ApplyScoring(ctx context.Context, repoID int64, score float64, starsGained30d *int, qualityPassed bool) error

	// DeleteAllRepositories 清空仓库表（级联清掉快照/分类/内容/向量），分类目录不动
	DeleteAllRepositories(ctx context.Context) (int64, error)

	// DeleteSnapshotsBefore 删除早于 cutoff 的快照，返回删除行数
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ClassifyStore 分类阶段的持久化
type ClassifyStore interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)

	// SeedCategories 首次启动播种默认目录，已存在的 slug 跳过
	SeedCategories(ctx context.Context, seeds []domain.CategorySeed) error

	// ListClassifiable 返回待分类仓库（预加载已有分类关联和向量），优先未分类
	ListClassifiable(ctx context.Context, limit int) ([]*domain.Repository, error)

	// UpsertAssignment (repository_id, category_id) 冲突时覆盖置信度/方法/时间
	UpsertAssignment(ctx context.Context, a *domain.CategoryAssignment) error

	// SaveEmbedding 每仓库一条，冲突时覆盖向量和源文本哈希
	SaveEmbedding(ctx context.Context, e *domain.RepoEmbedding) error
}

// ContentStore 内容生成阶段的持久化
type ContentStore interface {
	// CountContentSince 统计 since 之后创建的内容行数（UTC 当日配额核算）
	CountContentSince(ctx context.Context, since time.Time) (int64, error)

	// ListContentCandidates 某分类下质量达标、变体不全的仓库，
	// 按 (已有变体数升序, 趋势分降序) 取前 limit 个
	ListContentCandidates(ctx context.Context, categoryID int64, limit int) ([]*domain.Repository, error)

	// UpsertContent (repository_id, content_type, prompt_version) 冲突时覆盖
	UpsertContent(ctx context.Context, c *domain.GeneratedContent) error
}

// StageStore 流水线阶段状态记录
type StageStore interface {
	// CreateStageRuns 为一次流水线运行预建全部 pending 记录
	CreateStageRuns(ctx context.Context, pipelineRunID string, stages []string) error

	// MarkStage 阶段进入/退出时更新状态机
	MarkStage(ctx context.Context, pipelineRunID, stage, status string, itemsProcessed int, errMessage string) error

	GetStageRuns(ctx context.Context, pipelineRunID string) ([]domain.StageRun, error)
}

// RepoFilter 查询层的过滤与分页参数
type RepoFilter struct {
	CategorySlug string
	Language     string
	QualityOnly  bool
	SortBy       string // "score" | "recency"
	Limit        int
	Offset       int
}

// SimilarRepo 最近邻查询结果，Distance 是 pgvector 余弦距离
type SimilarRepo struct {
	Repository domain.Repository
	Distance   float64
}

// StoreStats 仪表盘统计
type StoreStats struct {
	TotalTracked  int64
	AddedToday    int64
	QualityPassed int64
}

// QueryStore 暴露给外部 HTTP 层的查询面（本仓库只提供实现，不提供路由）
type QueryStore interface {
	ListRepositories(ctx context.Context, filter RepoFilter) ([]domain.Repository, int64, error)

	// GetRepositoryDetail 预加载快照历史、分类关联和生成内容
	GetRepositoryDetail(ctx context.Context, id int64) (*domain.Repository, error)

	// SimilarRepositories 按向量余弦距离找最近邻
	SimilarRepositories(ctx context.Context, repoID int64, limit int) ([]SimilarRepo, error)

	Stats(ctx context.Context) (*StoreStats, error)
}

// ContentGenerator (鉴定师): LLM 文本生成能力
type ContentGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float32) (*domain.GenerationResult, error)
}

// Embedder 向量化能力，维度由提供方固定
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	ModelName() string
}
