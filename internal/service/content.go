package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/garg-prashant/github-intel/internal/common"
	"github.com/garg-prashant/github-intel/internal/config"
	"github.com/garg-prashant/github-intel/internal/domain"
	"github.com/garg-prashant/github-intel/internal/port"

	"google.golang.org/api/googleapi"
)

// ContentService 内容调度：在 UTC 当日配额内给优先仓库补齐讲解变体
// 每个 (仓库, 变体, 提示词版本) 最多一行，重跑同版本覆盖旧内容
type ContentService struct {
	store       port.ContentStore
	catalog     port.ClassifyStore
	generator   port.ContentGenerator
	dailyCap    int
	perCategory int
	now         func() time.Time
}

// NewContentService 创建内容生成服务
func NewContentService(store port.ContentStore, catalog port.ClassifyStore, generator port.ContentGenerator, settings *config.Settings) *ContentService {
	return &ContentService{
		store:       store,
		catalog:     catalog,
		generator:   generator,
		dailyCap:    settings.MaxContentPerDay,
		perCategory: settings.MaxReposPerCategory,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run 跑一轮内容生成，返回本轮新生成的内容条数
// 配额按 UTC 零点起算，跨多次调用累计；单个变体失败只记日志跳过
func (s *ContentService) Run(ctx context.Context) (int, error) {
	dayStart := s.dayStart()
	used, err := s.store.CountContentSince(ctx, dayStart)
	if err != nil {
		return 0, err
	}
	remaining := s.dailyCap - int(used)
	if remaining <= 0 {
		fmt.Printf("✍️ 今日内容配额已用完 (%d/%d)\n", used, s.dailyCap)
		return 0, nil
	}
	fmt.Printf("✍️ 开始生成内容, 今日剩余配额 %d...\n", remaining)

	cats, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return 0, err
	}

	generated := 0
	for i := range cats {
		if remaining <= 0 {
			break
		}
		cat := &cats[i]
		candidates, err := s.store.ListContentCandidates(ctx, cat.ID, s.perCategory)
		if err != nil {
			log.Printf("⚠️ 分类 %s 候选查询失败: %v", cat.Slug, err)
			continue
		}

		for _, repo := range candidates {
			if remaining <= 0 {
				break
			}
			n := s.fillMissingVariants(ctx, repo, &remaining)
			generated += n
		}
	}

	fmt.Printf("✅ 内容生成完成: 新增 %d 条\n", generated)
	return generated, nil
}

// fillMissingVariants 给单个仓库补缺失的变体，受剩余配额约束
func (s *ContentService) fillMissingVariants(ctx context.Context, repo *domain.Repository, remaining *int) int {
	have := make(map[string]bool, len(repo.GeneratedContent))
	for _, c := range repo.GeneratedContent {
		if c.PromptVersion == domain.PromptVersion {
			have[c.ContentType] = true
		}
	}

	generated := 0
	for _, contentType := range domain.ContentTypes {
		if *remaining <= 0 {
			return generated
		}
		if have[contentType] {
			continue
		}
		if err := s.generateOne(ctx, repo, contentType); err != nil {
			log.Printf("⚠️ 仓库 %s 变体 %s 生成失败: %v", repo.FullName, contentType, err)
			continue
		}
		generated++
		*remaining--
	}
	return generated
}

// generateOne 生成并落库一个变体，LLM 调用带指数退避重试
func (s *ContentService) generateOne(ctx context.Context, repo *domain.Repository, contentType string) error {
	userPrompt := buildUserPrompt(repo, contentType)

	var result *domain.GenerationResult
	err := common.Do(ctx, func() error {
		var genErr error
		result, genErr = s.generator.Generate(ctx, systemPrompt, userPrompt, generateMaxTokens, generateTemperature)
		return genErr
	},
		common.WithMaxRetries(2),
		common.WithInitialDelay(2*time.Second),
		common.WithMaxDelay(30*time.Second),
		common.WithRetryIf(llmRetryable),
	)
	if err != nil {
		return common.WrapError(common.ErrCodeContentGen, "LLM 生成失败", err)
	}
	if result.Content == "" {
		return common.NewError(common.ErrCodeContentGen, "LLM 返回了空内容")
	}

	return s.store.UpsertContent(ctx, &domain.GeneratedContent{
		RepositoryID:    repo.ID,
		ContentType:     contentType,
		ContentMarkdown: result.Content,
		LLMProvider:     result.Provider,
		LLMModel:        result.Model,
		PromptVersion:   domain.PromptVersion,
		TokenUsage:      result.Usage,
	})
}

// llmRetryable 4xx 是请求本身的问题（限流 429 除外），重试只会重复烧配额
func llmRetryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return true
		}
		return apiErr.Code < 400 || apiErr.Code >= 500
	}
	return true
}

// dayStart UTC 当日零点，配额核算的起点
func (s *ContentService) dayStart() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
