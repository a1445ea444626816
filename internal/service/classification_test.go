package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/garg-prashant/github-intel/internal/domain"
	"github.com/garg-prashant/github-intel/internal/port"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordConfidence(t *testing.T) {
	tests := []struct {
		name     string
		repo     *domain.Repository
		keywords []string
		want     float64
	}{
		{
			name: "命中一半即满分",
			repo: &domain.Repository{
				Description: strPtr("an llm agent framework"),
				Topics:      domain.StringList{"rag"},
			},
			keywords: []string{"llm", "agent", "rag", "prompt", "openai", "anthropic"},
			want:     1.0,
		},
		{
			name: "命中一个占三分之一",
			repo: &domain.Repository{
				Description: strPtr("a prompt toolkit"),
			},
			keywords: []string{"llm", "agent", "rag", "prompt", "openai", "anthropic"},
			want:     1.0 / 3.0,
		},
		{
			name:     "一个都不命中",
			repo:     &domain.Repository{Description: strPtr("a terminal file manager")},
			keywords: []string{"llm", "agent"},
			want:     0,
		},
		{
			name:     "没有关键词",
			repo:     &domain.Repository{Description: strPtr("anything")},
			keywords: nil,
			want:     0,
		},
		{
			name: "关键词匹配不区分大小写",
			repo: &domain.Repository{
				Description: strPtr("Model Context Protocol server for MCP clients"),
			},
			keywords: []string{"mcp", "model context protocol"},
			want:     1.0,
		},
		{
			name: "多词关键词跨换行也命中",
			repo: &domain.Repository{
				Description:   strPtr("A deep\nlearning toolkit for tabular data"),
				ReadmeContent: strPtr("Build smart\n  contract pipelines"),
			},
			keywords: []string{"deep learning", "smart contract", "neural", "pytorch"},
			want:     1.0, // 命中 2/4 即满分
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, KeywordConfidence(tt.repo, tt.keywords), 0.0001)
		})
	}
}

func TestLanguageConfidence(t *testing.T) {
	tests := []struct {
		name string
		repo *domain.Repository
		slug string
		want float64
	}{
		{
			name: "主语言命中",
			repo: &domain.Repository{PrimaryLanguage: strPtr("Python")},
			slug: "ai-ml",
			want: 0.5,
		},
		{
			name: "主语言 + 次要语言命中",
			repo: &domain.Repository{
				PrimaryLanguage: strPtr("TypeScript"),
				LanguagesJSON:   domain.LanguageBytes{"TypeScript": 9000, "Python": 1000},
			},
			slug: "llms-agents",
			want: 0.7,
		},
		{
			name: "README 清单加成",
			repo: &domain.Repository{
				PrimaryLanguage: strPtr("Python"),
				ReadmeContent:   strPtr("Install with pip: see requirements.txt and pyproject.toml"),
			},
			slug: "python-libs",
			want: 0.9, // 0.5 主语言 + 0.2 × 2 组清单
		},
		{
			name: "封顶 1.0",
			repo: &domain.Repository{
				PrimaryLanguage: strPtr("Python"),
				LanguagesJSON:   domain.LanguageBytes{"Python": 9000, "Go": 500},
				ReadmeContent:   strPtr("requirements.txt pyproject.toml"),
			},
			slug: "backend",
			want: 1.0, // 0.5 + 0.2 + 0.4 = 1.1 -> 1.0
		},
		{
			name: "语言全不沾边",
			repo: &domain.Repository{PrimaryLanguage: strPtr("COBOL")},
			slug: "ai-ml",
			want: 0,
		},
		{
			name: "没有提示表的分类",
			repo: &domain.Repository{PrimaryLanguage: strPtr("Python")},
			slug: "deepfake",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, LanguageConfidence(tt.repo, tt.slug), 0.0001)
		})
	}
}

func TestEmbeddingConfidence(t *testing.T) {
	t.Run("同向向量得 1", func(t *testing.T) {
		v := []float32{1, 0, 0}
		assert.InDelta(t, 1.0, EmbeddingConfidence(v, v), 0.0001)
	})

	t.Run("反向向量得 0", func(t *testing.T) {
		assert.InDelta(t, 0.0, EmbeddingConfidence([]float32{1, 0}, []float32{-1, 0}), 0.0001)
	})

	t.Run("正交向量得 0.5", func(t *testing.T) {
		assert.InDelta(t, 0.5, EmbeddingConfidence([]float32{1, 0}, []float32{0, 1}), 0.0001)
	})

	t.Run("零向量记 0 分", func(t *testing.T) {
		// 余弦无定义，不能映射成 0.5 白送权重
		assert.Zero(t, EmbeddingConfidence([]float32{0, 0}, []float32{1, 0}))
	})

	t.Run("空向量记 0 分", func(t *testing.T) {
		assert.Zero(t, EmbeddingConfidence(nil, []float32{1, 0}))
	})

	t.Run("维度不一致记 0 分", func(t *testing.T) {
		assert.Zero(t, EmbeddingConfidence([]float32{1}, []float32{1, 0}))
	})
}

func TestCombinedConfidence(t *testing.T) {
	assert.InDelta(t, 1.0, CombinedConfidence(1, 1, 1), 0.0001)
	assert.InDelta(t, 0.0, CombinedConfidence(0, 0, 0), 0.0001)
	assert.InDelta(t, 0.40, CombinedConfidence(1, 0, 0), 0.0001)
	assert.InDelta(t, 0.35, CombinedConfidence(0, 1, 0), 0.0001)
	assert.InDelta(t, 0.25, CombinedConfidence(0, 0, 1), 0.0001)
}

// --- 集成路径：假 store + 假 embedder ---

type fakeClassifyStore struct {
	categories  []domain.Category
	repos       []*domain.Repository
	seeded      bool
	assignments []*domain.CategoryAssignment
	embeddings  []*domain.RepoEmbedding
}

func (f *fakeClassifyStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return f.categories, nil
}

func (f *fakeClassifyStore) SeedCategories(ctx context.Context, seeds []domain.CategorySeed) error {
	f.seeded = true
	return nil
}

func (f *fakeClassifyStore) ListClassifiable(ctx context.Context, limit int) ([]*domain.Repository, error) {
	return f.repos, nil
}

func (f *fakeClassifyStore) UpsertAssignment(ctx context.Context, a *domain.CategoryAssignment) error {
	f.assignments = append(f.assignments, a)
	return nil
}

func (f *fakeClassifyStore) SaveEmbedding(ctx context.Context, e *domain.RepoEmbedding) error {
	f.embeddings = append(f.embeddings, e)
	return nil
}

// fakeEmbedder 返回固定向量并计数调用
type fakeEmbedder struct {
	calls int
	vec   []float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vec, nil
}

func (f *fakeEmbedder) Dimension() int    { return len(f.vec) }
func (f *fakeEmbedder) ModelName() string { return "fake-embedding" }

func TestClassificationRun(t *testing.T) {
	desc := "Large language model agent framework with RAG and prompt orchestration"
	repo := &domain.Repository{
		ID:              1,
		FullName:        "acme/agentkit",
		Description:     &desc,
		PrimaryLanguage: strPtr("Python"),
		Topics:          domain.StringList{"llm", "agent"},
		HasReadme:       true,
		ReadmeContent:   strPtr("An agent framework built around large language models."),
	}
	store := &fakeClassifyStore{
		categories: []domain.Category{
			{ID: 10, Slug: "llms-agents", Name: "LLMs & Agents",
				Keywords: domain.StringList{"llm", "agent", "rag", "prompt"}},
			{ID: 20, Slug: "web3-crypto", Name: "Web3 & Crypto",
				Keywords: domain.StringList{"blockchain", "solidity", "defi"}},
		},
		repos: []*domain.Repository{repo},
	}
	// 同向向量：embedding 信号满分
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}

	svc := NewClassificationService(store, embedder)
	processed, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, processed)
	assert.True(t, store.seeded, "每轮先播种默认目录")
	require.Len(t, store.embeddings, 1, "仓库向量应落库一次")

	// llms-agents: embedding 1.0, keyword 1.0, language 0.5
	// -> 0.40 + 0.35 + 0.125 = 0.875 >= 0.30 归入
	// web3-crypto: embedding 1.0, keyword 0, language 0
	// -> 0.40 >= 0.30 也会归入（向量信号相同是假 embedder 的副作用）
	require.Len(t, store.assignments, 2)
	assert.Equal(t, int64(10), store.assignments[0].CategoryID)
	assert.InDelta(t, 0.875, store.assignments[0].Confidence, 0.0001)
	assert.Equal(t, "ensemble", store.assignments[0].ClassificationMethod)
}

func TestClassificationRun_NoReadmeHasNoEmbeddingSignal(t *testing.T) {
	// 没有 README 的仓库只剩关键词和语言两路信号
	repo := &domain.Repository{
		ID:              1,
		FullName:        "acme/bare",
		PrimaryLanguage: strPtr("Python"),
	}
	store := &fakeClassifyStore{
		categories: []domain.Category{
			{ID: 10, Slug: "llms-agents", Name: "LLMs & Agents",
				Keywords: domain.StringList{"llm", "agent", "rag", "prompt"}},
		},
		repos: []*domain.Repository{repo},
	}
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}

	svc := NewClassificationService(store, embedder)
	processed, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, processed)
	assert.Zero(t, embedder.calls, "没有 README 不该调任何 Embedding API")
	assert.Empty(t, store.embeddings, "不能给没有 README 的仓库落向量")
	// 语言信号 0.5 × 0.25 = 0.125 < 0.30，不归入
	assert.Empty(t, store.assignments)
}

func TestEnsureRepoEmbedding_NoReadme(t *testing.T) {
	repo := &domain.Repository{
		ID:          1,
		FullName:    "acme/bare",
		Description: strPtr("description alone is not embedding material"),
	}
	store := &fakeClassifyStore{}
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	svc := NewClassificationService(store, embedder)

	vec, err := svc.ensureRepoEmbedding(context.Background(), repo)
	require.NoError(t, err)

	assert.Nil(t, vec)
	assert.Zero(t, embedder.calls)
	assert.Empty(t, store.embeddings)
}

func TestEnsureRepoEmbedding_CacheHit(t *testing.T) {
	readme := "cached readme content"
	repo := &domain.Repository{
		ID:            1,
		FullName:      "acme/cached",
		ReadmeContent: &readme,
		Embedding: &domain.RepoEmbedding{
			RepositoryID:   1,
			Embedding:      pgvector.NewVector([]float32{0.1, 0.2}),
			SourceTextHash: sha256Hex(readme),
		},
	}
	store := &fakeClassifyStore{}
	embedder := &fakeEmbedder{vec: []float32{9, 9}}
	svc := NewClassificationService(store, embedder)

	vec, err := svc.ensureRepoEmbedding(context.Background(), repo)
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2}, vec, "README 没变应复用已有向量")
	assert.Zero(t, embedder.calls, "缓存命中不应调 Embedding API")
	assert.Empty(t, store.embeddings)
}

func TestEnsureRepoEmbedding_ReadmeChanged(t *testing.T) {
	readme := "brand new readme"
	repo := &domain.Repository{
		ID:            1,
		FullName:      "acme/changed",
		ReadmeContent: &readme,
		Embedding: &domain.RepoEmbedding{
			RepositoryID:   1,
			Embedding:      pgvector.NewVector([]float32{0.1, 0.2}),
			SourceTextHash: sha256Hex("old readme"),
		},
	}
	store := &fakeClassifyStore{}
	embedder := &fakeEmbedder{vec: []float32{0.7, 0.7}}
	svc := NewClassificationService(store, embedder)

	vec, err := svc.ensureRepoEmbedding(context.Background(), repo)
	require.NoError(t, err)

	assert.Equal(t, []float32{0.7, 0.7}, vec)
	assert.Equal(t, 1, embedder.calls)
	require.Len(t, store.embeddings, 1, "README 变了应重算并落库")
	assert.Equal(t, sha256Hex(readme), store.embeddings[0].SourceTextHash)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

var _ port.ClassifyStore = (*fakeClassifyStore)(nil)
var _ port.Embedder = (*fakeEmbedder)(nil)
