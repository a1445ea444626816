package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/garg-prashant/github-intel/internal/common"
	"github.com/garg-prashant/github-intel/internal/domain"
	"github.com/garg-prashant/github-intel/internal/port"

	"github.com/pgvector/pgvector-go"
)

// 集成分类器的信号权重与准入阈值
const (
	signalWeightEmbedding = 0.40
	signalWeightKeyword   = 0.35
	signalWeightLanguage  = 0.25
	assignThreshold       = 0.30
)

// classifyMethod 写进 repository_categories 的分类方法标记
const classifyMethod = "ensemble"

// keywordReadmeWindow 关键词信号只看 README 开头这一段
const keywordReadmeWindow = 5000

// classifyBatchLimit 单轮最多处理的仓库数
const classifyBatchLimit = 200

// manifestHint README 里出现的构建清单暗示生态归属
type manifestHint struct {
	marker string
	slugs  map[string]bool
}

var manifestHints = []manifestHint{
	{"requirements.txt", map[string]bool{"python-libs": true, "ai-ml": true, "backend": true}},
	{"pyproject.toml", map[string]bool{"python-libs": true, "ai-ml": true, "backend": true}},
	{"package.json", map[string]bool{"llms-agents": true, "mcp-tooling": true, "web3-crypto": true}},
	{"cargo.toml", map[string]bool{"mcp-tooling": true, "backend": true, "web3-crypto": true}},
}

// collapseSpace 把连续空白（含换行）折叠成单个空格
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// KeywordConfidence 关键词信号：命中数相对关键词总量的占比
// 命中一半即满分，超出部分不加分
// 两侧都折叠空白，多词关键词跨换行也能命中
func KeywordConfidence(repo *domain.Repository, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	readme := common.TruncateUTF8(repo.ReadmeOrEmpty(), keywordReadmeWindow)
	text := collapseSpace(strings.ToLower(
		strings.Join(repo.Topics, " ") + " " + repo.DescriptionOrEmpty() + " " + readme))

	matches := 0
	for _, kw := range keywords {
		kw = collapseSpace(strings.ToLower(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(text, kw) {
			matches++
		}
	}
	score := float64(matches) / (float64(len(keywords)) * 0.5)
	return math.Min(1, score)
}

// LanguageConfidence 语言信号：主语言命中 +0.5，任一次要语言命中 +0.2，
// README 里的构建清单每组 +0.2（最多两组），总分封顶 1.0
func LanguageConfidence(repo *domain.Repository, slug string) float64 {
	hints := domain.CategoryLanguageHints[slug]
	score := 0.0

	primary := strings.ToLower(repo.PrimaryLanguageOrEmpty())
	if primary != "" && hints[primary] {
		score += 0.5
	}

	for lang := range repo.LanguagesJSON {
		lower := strings.ToLower(lang)
		if lower == primary {
			continue
		}
		if hints[lower] {
			score += 0.2
			break
		}
	}

	readme := strings.ToLower(repo.ReadmeOrEmpty())
	manifestBonus := 0
	for _, hint := range manifestHints {
		if manifestBonus >= 2 {
			break
		}
		if hint.slugs[slug] && strings.Contains(readme, hint.marker) {
			score += 0.2
			manifestBonus++
		}
	}

	return math.Min(1, score)
}

// cosineSimilarity 余弦相似度
// 维度不一致或任一侧是零向量时余弦无定义，ok 返回 false
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

// EmbeddingConfidence 余弦相似度 [-1,1] 线性映射到 [0,1]
// 向量缺失或无定义时记 0 分，不给任何分类白送权重
func EmbeddingConfidence(repoVec, categoryVec []float32) float64 {
	sim, ok := cosineSimilarity(repoVec, categoryVec)
	if !ok {
		return 0
	}
	score := (sim + 1) / 2
	return math.Max(0, math.Min(1, score))
}

// CombinedConfidence 三路信号加权合成
func CombinedConfidence(embedding, keyword, language float64) float64 {
	return signalWeightEmbedding*embedding +
		signalWeightKeyword*keyword +
		signalWeightLanguage*language
}

// categoryProfileText 分类目录参与向量化的文本拼接
func categoryProfileText(cat *domain.Category) string {
	return fmt.Sprintf("%s. %s. %s", cat.Name, cat.DescriptionOrEmpty(), strings.Join(cat.Keywords, " "))
}

// ClassificationService 分类服务：三路信号（向量/关键词/语言）集成打分
type ClassificationService struct {
	store    port.ClassifyStore
	embedder port.Embedder
	limit    int
}

// NewClassificationService 创建分类服务
func NewClassificationService(store port.ClassifyStore, embedder port.Embedder) *ClassificationService {
	return &ClassificationService{
		store:    store,
		embedder: embedder,
		limit:    classifyBatchLimit,
	}
}

// Run 对一批仓库做集成分类，返回处理的仓库数
// 单个仓库失败只记日志跳过，不中断整批
func (s *ClassificationService) Run(ctx context.Context) (int, error) {
	if err := s.store.SeedCategories(ctx, domain.DefaultCategories); err != nil {
		return 0, err
	}
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return 0, err
	}
	repos, err := s.store.ListClassifiable(ctx, s.limit)
	if err != nil {
		return 0, err
	}
	// 未分类的排前面，分类过的仓库轮空时也能补算
	sort.SliceStable(repos, func(i, j int) bool {
		return len(repos[i].CategoryLinks) < len(repos[j].CategoryLinks)
	})

	fmt.Printf("🏷️ 开始分类 %d 个仓库 (目录 %d 项)...\n", len(repos), len(cats))

	processed := 0
	assigned := 0
	for _, repo := range repos {
		repoVec, err := s.ensureRepoEmbedding(ctx, repo)
		if err != nil {
			log.Printf("⚠️ 仓库 %s 向量化失败: %v", repo.FullName, err)
			continue
		}

		for i := range cats {
			cat := &cats[i]
			embConf := 0.0
			if len(repoVec) > 0 {
				catVec, err := s.embedder.Embed(ctx, categoryProfileText(cat))
				if err != nil {
					log.Printf("⚠️ 分类 %s 向量化失败: %v", cat.Slug, err)
					continue
				}
				embConf = EmbeddingConfidence(repoVec, catVec)
			}

			confidence := CombinedConfidence(
				embConf,
				KeywordConfidence(repo, cat.Keywords),
				LanguageConfidence(repo, cat.Slug),
			)
			if confidence < assignThreshold {
				continue
			}

			err = s.store.UpsertAssignment(ctx, &domain.CategoryAssignment{
				RepositoryID:         repo.ID,
				CategoryID:           cat.ID,
				Confidence:           round4(confidence),
				ClassificationMethod: classifyMethod,
			})
			if err != nil {
				log.Printf("⚠️ 仓库 %s 归入 %s 失败: %v", repo.FullName, cat.Slug, err)
				continue
			}
			assigned++
		}
		processed++
	}

	fmt.Printf("✅ 分类完成: %d 个仓库, %d 条归属\n", processed, assigned)
	return processed, nil
}

// ensureRepoEmbedding README 没变就复用已有向量（按 sha256 判定），
// 变了或还没有向量才真正调一次 Embedding API
// 没有 README 的仓库直接返回 nil：向量信号记 0，关键词和语言两路照常打分
func (s *ClassificationService) ensureRepoEmbedding(ctx context.Context, repo *domain.Repository) ([]float32, error) {
	source := repo.ReadmeOrEmpty()
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}
	sum := sha256.Sum256([]byte(source))
	hash := hex.EncodeToString(sum[:])

	if repo.Embedding != nil && repo.Embedding.SourceTextHash == hash {
		return repo.Embedding.Embedding.Slice(), nil
	}

	vec, err := s.embedder.Embed(ctx, source)
	if err != nil {
		return nil, err
	}
	err = s.store.SaveEmbedding(ctx, &domain.RepoEmbedding{
		RepositoryID:   repo.ID,
		Embedding:      pgvector.NewVector(vec),
		EmbeddingModel: s.embedder.ModelName(),
		SourceTextHash: hash,
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}
