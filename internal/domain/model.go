package domain

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// EmbeddingDim 是 README 向量的固定维度 (Gemini text-embedding-004)
// 一次部署内不允许变更，否则 pgvector 列与存量数据都会失效
const EmbeddingDim = 768

// ReadmeMaxChars README 入库上限，超出部分截断（节省存储和 Token）
const ReadmeMaxChars = 15000

// Repository 代表一个被追踪的 GitHub 仓库（聚合根）
// 快照、分类、生成内容、向量都挂在它下面，删除时级联清理
type Repository struct {
	ID       int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	GithubID int64  `json:"github_id" gorm:"uniqueIndex;not null"`
	FullName string `json:"full_name" gorm:"size:255;uniqueIndex;not null"` // 例如 "gohugoio/hugo"
	Owner    string `json:"owner" gorm:"size:128;not null"`
	Name     string `json:"name" gorm:"size:128;not null"`

	// 描述性字段 (来自 GitHub，允许为空)
	Description     *string       `json:"description" gorm:"type:text"`
	HTMLURL         string        `json:"html_url" gorm:"size:512;not null"`
	HomepageURL     *string       `json:"homepage_url" gorm:"size:512"`
	PrimaryLanguage *string       `json:"primary_language" gorm:"size:64"`
	LanguagesJSON   LanguageBytes `json:"languages_json" gorm:"type:jsonb"`
	Topics          StringList    `json:"topics" gorm:"type:jsonb"`
	LicenseSPDX     *string       `json:"license_spdx" gorm:"size:64"`
	HasReadme       bool          `json:"has_readme" gorm:"not null;default:false"`
	ReadmeContent   *string       `json:"readme_content" gorm:"type:text"`

	// 活跃度计数器
	StarsCount      int    `json:"stars_count" gorm:"not null;default:0"`
	ForksCount      int    `json:"forks_count" gorm:"not null;default:0"`
	OpenIssuesCount int    `json:"open_issues_count" gorm:"not null;default:0"`
	WatchersCount   int    `json:"watchers_count" gorm:"not null;default:0"`
	DefaultBranch   string `json:"default_branch" gorm:"size:64;not null;default:main"`

	// 生命周期标记
	CreatedAtGH time.Time `json:"created_at_gh" gorm:"not null"`
	PushedAtGH  time.Time `json:"pushed_at_gh" gorm:"not null;index"`
	IsFork      bool      `json:"is_fork" gorm:"not null;default:false"`
	IsArchived  bool      `json:"is_archived" gorm:"not null;default:false"`
	IsMirror    bool      `json:"is_mirror" gorm:"not null;default:false"`

	// 派生字段：只由评分/过滤阶段写入，外部不可直接设置
	CurrentTrendScore *float64 `json:"current_trend_score" gorm:"index"`
	StarsGained30d    *int     `json:"stars_gained_30d" gorm:"index"`
	QualityPassed     bool     `json:"quality_passed" gorm:"not null;default:false;index"`

	FirstSeenAt time.Time `json:"first_seen_at" gorm:"not null;autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null;autoUpdateTime"`

	// 级联关系
	TrendSnapshots   []TrendSnapshot      `json:"-" gorm:"foreignKey:RepositoryID;constraint:OnDelete:CASCADE"`
	CategoryLinks    []CategoryAssignment `json:"-" gorm:"foreignKey:RepositoryID;constraint:OnDelete:CASCADE"`
	GeneratedContent []GeneratedContent   `json:"-" gorm:"foreignKey:RepositoryID;constraint:OnDelete:CASCADE"`
	Embedding        *RepoEmbedding       `json:"-" gorm:"foreignKey:RepositoryID;constraint:OnDelete:CASCADE"`
}

func (Repository) TableName() string { return "repositories" }

// DescriptionOrEmpty 返回描述文本，nil 时返回空串
func (r *Repository) DescriptionOrEmpty() string {
	if r.Description == nil {
		return ""
	}
	return *r.Description
}

// ReadmeOrEmpty 返回 README 文本，nil 时返回空串
func (r *Repository) ReadmeOrEmpty() string {
	if r.ReadmeContent == nil {
		return ""
	}
	return *r.ReadmeContent
}

// PrimaryLanguageOrEmpty 返回主语言，nil 时返回空串
func (r *Repository) PrimaryLanguageOrEmpty() string {
	if r.PrimaryLanguage == nil {
		return ""
	}
	return *r.PrimaryLanguage
}

// TrendSnapshot 某一时刻的计数器快照，插入后不再修改
// 增量字段对比的是同仓库的前 1 条/前 2 条快照（约等于 1h/24h 窗口）
type TrendSnapshot struct {
	ID           int64 `json:"id" gorm:"primaryKey;autoIncrement"`
	RepositoryID int64 `json:"repository_id" gorm:"not null;index:ix_snapshots_repo_at"`

	StarsCount      int `json:"stars_count" gorm:"not null"`
	ForksCount      int `json:"forks_count" gorm:"not null"`
	OpenIssuesCount int `json:"open_issues_count" gorm:"not null"`
	WatchersCount   int `json:"watchers_count" gorm:"not null"`

	// 历史不足时保持 null，而不是 0（0 是合法的增量值）
	StarsDelta1h  *int `json:"stars_delta_1h"`
	StarsDelta24h *int `json:"stars_delta_24h"`
	ForksDelta24h *int `json:"forks_delta_24h"`
	Commits7d     *int `json:"commits_7d"`
	IssueEvents7d *int `json:"issue_events_7d"`

	ComputedTrendScore *float64  `json:"computed_trend_score"`
	SnapshotAt         time.Time `json:"snapshot_at" gorm:"not null;autoCreateTime;index:ix_snapshots_repo_at"`
}

func (TrendSnapshot) TableName() string { return "trend_snapshots" }

// Category 静态分类目录，启动时播种，极少变动
type Category struct {
	ID          int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Slug        string     `json:"slug" gorm:"size:64;uniqueIndex;not null"`
	Name        string     `json:"name" gorm:"size:128;not null"`
	Description *string    `json:"description" gorm:"type:text"`
	Keywords    StringList `json:"keywords" gorm:"type:jsonb"`
}

func (Category) TableName() string { return "categories" }

// DescriptionOrEmpty 返回分类描述，nil 时返回空串
func (c *Category) DescriptionOrEmpty() string {
	if c.Description == nil {
		return ""
	}
	return *c.Description
}

// CategoryAssignment 仓库与分类的多对多关联，带置信度
// (repository_id, category_id) 唯一，重复分类时覆盖而不是新增
type CategoryAssignment struct {
	ID                   int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	RepositoryID         int64     `json:"repository_id" gorm:"not null;uniqueIndex:uq_repo_category"`
	CategoryID           int64     `json:"category_id" gorm:"not null;uniqueIndex:uq_repo_category"`
	Confidence           float64   `json:"confidence" gorm:"not null"`
	ClassificationMethod string    `json:"classification_method" gorm:"size:32;not null"`
	AssignedAt           time.Time `json:"assigned_at" gorm:"not null;autoCreateTime"`
}

func (CategoryAssignment) TableName() string { return "repository_categories" }

// 内容变体：每个仓库最多生成这 5 种讲解内容
const (
	ContentWhatAndWhy      = "what_and_why"
	ContentQuickStart      = "quick_start"
	ContentMentalModel     = "mental_model"
	ContentPracticalRecipe = "practical_recipe"
	ContentLearningPath    = "learning_path"
)

// ContentTypes 全量变体集合，调度器据此判断缺失项
var ContentTypes = []string{
	ContentWhatAndWhy,
	ContentQuickStart,
	ContentMentalModel,
	ContentPracticalRecipe,
	ContentLearningPath,
}

// PromptVersion 当前提示词版本，同版本重新生成时覆盖旧行
const PromptVersion = "v1"

// GeneratedContent AI 生成的讲解内容
// (repository_id, content_type, prompt_version) 唯一
type GeneratedContent struct {
	ID              int64        `json:"id" gorm:"primaryKey;autoIncrement"`
	RepositoryID    int64        `json:"repository_id" gorm:"not null;uniqueIndex:uq_content_repo_type_ver"`
	ContentType     string       `json:"content_type" gorm:"size:32;not null;uniqueIndex:uq_content_repo_type_ver"`
	ContentMarkdown string       `json:"content_markdown" gorm:"type:text;not null"`
	LLMProvider     string       `json:"llm_provider" gorm:"size:32;not null"`
	LLMModel        string       `json:"llm_model" gorm:"size:64;not null"`
	PromptVersion   string       `json:"prompt_version" gorm:"size:16;not null;default:v1;uniqueIndex:uq_content_repo_type_ver"`
	TokenUsage      TokenUsageJS `json:"token_usage" gorm:"type:jsonb"`
	GeneratedAt     time.Time    `json:"generated_at" gorm:"not null;autoCreateTime"`
}

func (GeneratedContent) TableName() string { return "generated_content" }

// RepoEmbedding README 向量，每个仓库最多一条
// source_text_hash 是 README 的 sha256，内容没变就不重新生成
type RepoEmbedding struct {
	ID             int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	RepositoryID   int64           `json:"repository_id" gorm:"not null;uniqueIndex"`
	Embedding      pgvector.Vector `json:"-" gorm:"type:vector(768);not null"`
	EmbeddingModel string          `json:"embedding_model" gorm:"size:64;not null"`
	SourceTextHash string          `json:"source_text_hash" gorm:"size:64;not null"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"not null;autoUpdateTime"`
}

func (RepoEmbedding) TableName() string { return "repo_embeddings" }

// 流水线阶段状态机：pending -> running -> succeeded | failed
const (
	StagePending   = "pending"
	StageRunning   = "running"
	StageSucceeded = "succeeded"
	StageFailed    = "failed"
)

// 阶段名称常量，驱动器按此顺序依次执行
const (
	StageIngestTrending = "ingest_trending"
	StageIngestSearch   = "ingest_search"
	StageScore          = "score_filter"
	StageClassify       = "classify"
	StageContent        = "generate_content"
)

// PipelineStages 完整阶段序列
var PipelineStages = []string{
	StageIngestTrending,
	StageIngestSearch,
	StageScore,
	StageClassify,
	StageContent,
}

// StageRun 每个阶段在进入/退出时直接落库的状态记录
// 不再依赖任务队列的结果链路反推，状态始终可查
type StageRun struct {
	ID             int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	PipelineRunID  string     `json:"pipeline_run_id" gorm:"size:64;not null;index"`
	Stage          string     `json:"stage" gorm:"size:32;not null"`
	Status         string     `json:"status" gorm:"size:16;not null"`
	ErrorMessage   *string    `json:"error_message" gorm:"type:text"`
	ItemsProcessed int        `json:"items_processed" gorm:"not null;default:0"`
	StartedAt      *time.Time `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	CreatedAt      time.Time  `json:"created_at" gorm:"not null;autoCreateTime"`
}

func (StageRun) TableName() string { return "stage_runs" }
