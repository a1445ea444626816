package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings 进程级配置，启动时构造一次，显式传给各组件
// 任何组件都不应该自己去读环境变量
type Settings struct {
	// 数据库
	DatabaseDSN string

	// GitHub
	GithubToken           string
	MaxConcurrentRequests int           // 全局在途请求上限
	RequestDelay          time.Duration // 摄取时逐条之间的间隔
	CacheFreshness        time.Duration // 元数据视为新鲜的窗口，窗口内跳过远程拉取

	// 发现策略
	TopicSearchTerms  []string
	AllowedLanguages  map[string]bool
	MinStarsTopic     int
	MaxTrendingRepos  int // 发现阶段的全局候选上限
	TrendingSince     []string
	TrendingLanguages []string

	// AI
	GeminiAPIKey   string
	GeminiModel    string
	EmbeddingModel string

	// 内容生成配额
	MaxContentPerDay    int // UTC 当日新建内容行的硬上限
	MaxReposPerCategory int // 每分类每轮选取的仓库数上限

	// 运维
	SnapshotRetentionDays int
}

// Load 读取 .env（存在时）和环境变量，缺省值跟生产默认保持一致
func Load() *Settings {
	// .env 不存在不算错误，线上环境直接用进程环境变量
	_ = godotenv.Load()

	return &Settings{
		DatabaseDSN: getEnv("DATABASE_DSN",
			"host=localhost user=github_intel password=github_intel_dev dbname=github_intel port=5432 sslmode=disable"),

		GithubToken:           os.Getenv("GITHUB_TOKEN"),
		MaxConcurrentRequests: getEnvInt("GITHUB_MAX_CONCURRENT", 5),
		RequestDelay:          getEnvSeconds("GITHUB_REQUEST_DELAY_SECONDS", 1.0),
		CacheFreshness:        getEnvHours("REPO_METADATA_CACHE_HOURS", 24.0),

		TopicSearchTerms: getEnvList("TOPIC_SEARCH_TERMS", []string{"AI", "agent", "MCP", "crypto"}),
		AllowedLanguages: toSet(getEnvList("ALLOWED_LANGUAGES", []string{"Go", "Python", "TypeScript", "JavaScript"})),
		MinStarsTopic:    getEnvInt("MIN_STARS_TOPIC", 10),
		MaxTrendingRepos: getEnvInt("MAX_TRENDING_REPOS", 25),
		TrendingSince:    getEnvList("TRENDING_SINCE", []string{"daily", "weekly"}),
		// 空串表示全语言视图
		TrendingLanguages: getEnvList("TRENDING_LANGUAGES", []string{"", "python", "typescript", "rust", "go"}),

		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-004"),

		MaxContentPerDay:    getEnvInt("MAX_CONTENT_PER_DAY", 20),
		MaxReposPerCategory: getEnvInt("MAX_REPOS_PER_CATEGORY", 5),

		SnapshotRetentionDays: getEnvInt("SNAPSHOT_RETENTION_DAYS", 30),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback float64) time.Duration {
	sec := fallback
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			sec = f
		}
	}
	return time.Duration(sec * float64(time.Second))
}

func getEnvHours(key string, fallback float64) time.Duration {
	hours := fallback
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			hours = f
		}
	}
	return time.Duration(hours * float64(time.Hour))
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		if it != "" {
			set[it] = true
		}
	}
	return set
}
