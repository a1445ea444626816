package github

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/garg-prashant/github-intel/internal/domain"

	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"
)

// 配额与退避参数
// general 和 search 是两套独立预算，阈值也不同
const (
	defaultMaxConcurrent = 5
	coreLowThreshold     = 50
	searchLowThreshold   = 1
	resetSafetyMargin    = 5 * time.Second
	maxQuotaWait         = 300 * time.Second
	initialBackoff       = 60 * time.Second
	maxBackoff           = 600 * time.Second
	maxQuotaRetries      = 3
	recentCommitWeeks    = 2
)

// quotaState 某一配额类目最近一次响应头里的余量/重置时间
type quotaState struct {
	remaining int
	reset     time.Time
	known     bool
}

// Client 实现了 port.GitHubGateway 接口
// 单实例内共享一个并发闸门和两套配额状态；多进程共用同一 Token 会互相低估余量，不支持
type Client struct {
	gh   *github.Client
	gate chan struct{}

	mu     sync.Mutex
	core   quotaState
	search quotaState

	// 测试注入点
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewClient 初始化 GitHub 客户端
// token 为空时匿名访问（60次/小时），生产环境务必配置 PAT
func NewClient(token string, maxConcurrent int) *Client {
	var gh *github.Client
	if token == "" {
		gh = github.NewClient(nil)
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		gh = github.NewClient(oauth2.NewClient(context.Background(), ts))
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Client{
		gh:    gh,
		gate:  make(chan struct{}, maxConcurrent),
		sleep: sleepCtx,
		now:   time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// waitIfLow 配额余量低于阈值且已知重置时间时，睡到重置点再继续
func (c *Client) waitIfLow(ctx context.Context, isSearch bool) error {
	c.mu.Lock()
	state := c.core
	threshold := coreLowThreshold
	if isSearch {
		state = c.search
		threshold = searchLowThreshold
	}
	c.mu.Unlock()

	if !state.known || state.remaining >= threshold {
		return nil
	}
	wait := state.reset.Sub(c.now()) + resetSafetyMargin
	if wait <= 0 {
		return nil
	}
	if wait > maxQuotaWait {
		wait = maxQuotaWait
	}
	class := "general"
	if isSearch {
		class = "search"
	}
	fmt.Printf("⏳ GitHub %s 配额不足 (剩余 %d)，等待 %s 后继续\n", class, state.remaining, wait.Round(time.Second))
	return c.sleep(ctx, wait)
}

// updateQuota 每次响应都回写对应类目的配额状态
func (c *Client) updateQuota(isSearch bool, resp *github.Response) {
	if resp == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	state := quotaState{
		remaining: resp.Rate.Remaining,
		reset:     resp.Rate.Reset.Time,
		known:     true,
	}
	if isSearch {
		c.search = state
	} else {
		c.core = state
	}
}

// isRateLimited 命中主配额、滥用检测或 403/429 都按配额超限处理
func isRateLimited(err error) bool {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		code := respErr.Response.StatusCode
		return code == 403 || code == 429
	}
	return false
}

// isNotFound 可选子资源的 404 视为“不存在”，不算错误
func isNotFound(err error) bool {
	var respErr *github.ErrorResponse
	return errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == 404
}

// call 统一入口：闸门 -> 配额检查 -> 调用 -> 配额回写 -> 超限退避重试
// 退避从 60s 起步逐次翻倍，封顶 600s，最多重试 3 次后把错误抛给调用方
func (c *Client) call(ctx context.Context, isSearch bool, fn func() (*github.Response, error)) error {
	select {
	case c.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.gate }()

	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		if err := c.waitIfLow(ctx, isSearch); err != nil {
			return err
		}
		resp, err := fn()
		c.updateQuota(isSearch, resp)
		if err == nil || !isRateLimited(err) {
			return err
		}
		if attempt >= maxQuotaRetries {
			return fmt.Errorf("GitHub 配额重试 %d 次后仍失败: %w", maxQuotaRetries, err)
		}

		wait := backoff
		c.mu.Lock()
		reset := c.core.reset
		if isSearch {
			reset = c.search.reset
		}
		c.mu.Unlock()
		if untilReset := reset.Sub(c.now()) + resetSafetyMargin; untilReset > wait {
			wait = untilReset
		}
		if wait > maxBackoff {
			wait = maxBackoff
		}
		fmt.Printf("⏳ GitHub 配额超限 (第 %d 次重试)，退避 %s\n", attempt+1, wait.Round(time.Second))
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// GetProfile 实现 port.GitHubGateway
func (c *Client) GetProfile(ctx context.Context, owner, name string) (*domain.Repository, error) {
	var repo *github.Repository
	err := c.call(ctx, false, func() (*github.Response, error) {
		var resp *github.Response
		var apiErr error
		repo, resp, apiErr = c.gh.Repositories.Get(ctx, owner, name)
		return resp, apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("获取仓库档案 %s/%s 失败: %w", owner, name, err)
	}
	return mapProfile(repo), nil
}

// GetReadme 404 返回 (_, false, nil)
func (c *Client) GetReadme(ctx context.Context, owner, name string) (string, bool, error) {
	var readme *github.RepositoryContent
	err := c.call(ctx, false, func() (*github.Response, error) {
		var resp *github.Response
		var apiErr error
		readme, resp, apiErr = c.gh.Repositories.GetReadme(ctx, owner, name, nil)
		return resp, apiErr
	})
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("获取 README %s/%s 失败: %w", owner, name, err)
	}
	content, err := readme.GetContent()
	if err != nil {
		// 解码失败按缺失处理，不阻断逐条流程
		return "", false, nil
	}
	return content, true, nil
}

// GetLanguages 404 返回 (nil, nil)
func (c *Client) GetLanguages(ctx context.Context, owner, name string) (domain.LanguageBytes, error) {
	var langs map[string]int
	err := c.call(ctx, false, func() (*github.Response, error) {
		var resp *github.Response
		var apiErr error
		langs, resp, apiErr = c.gh.Repositories.ListLanguages(ctx, owner, name)
		return resp, apiErr
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("获取语言分布 %s/%s 失败: %w", owner, name, err)
	}
	out := make(domain.LanguageBytes, len(langs))
	for lang, bytes := range langs {
		out[lang] = int64(bytes)
	}
	return out, nil
}

// GetCommitActivity 返回近两周提交总数
// GitHub 统计未就绪时返回 202，此时 known 为 false，调用方按未知处理
func (c *Client) GetCommitActivity(ctx context.Context, owner, name string) (int, bool, error) {
	var weeks []*github.WeeklyCommitActivity
	err := c.call(ctx, false, func() (*github.Response, error) {
		var resp *github.Response
		var apiErr error
		weeks, resp, apiErr = c.gh.Repositories.ListCommitActivity(ctx, owner, name)
		return resp, apiErr
	})
	if err != nil {
		var accepted *github.AcceptedError
		if errors.As(err, &accepted) || isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("获取提交活跃度 %s/%s 失败: %w", owner, name, err)
	}
	if len(weeks) == 0 {
		return 0, false, nil
	}
	start := len(weeks) - recentCommitWeeks
	if start < 0 {
		start = 0
	}
	total := 0
	for _, w := range weeks[start:] {
		total += w.GetTotal()
	}
	return total, true, nil
}

// SearchByTopic 走 search 配额类目
func (c *Client) SearchByTopic(ctx context.Context, topic string, minStars, perPage int) ([]domain.SearchHit, error) {
	query := fmt.Sprintf("topic:%s stars:>%d", topic, minStars)
	opts := &github.SearchOptions{
		Sort:  "stars",
		Order: "desc",
		ListOptions: github.ListOptions{
			PerPage: perPage,
		},
	}
	var result *github.RepositoriesSearchResult
	err := c.call(ctx, true, func() (*github.Response, error) {
		var resp *github.Response
		var apiErr error
		result, resp, apiErr = c.gh.Search.Repositories(ctx, query, opts)
		return resp, apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("话题搜索 %q 失败: %w", query, err)
	}

	hits := make([]domain.SearchHit, 0, len(result.Repositories))
	for _, item := range result.Repositories {
		if item.GetFullName() == "" {
			continue
		}
		hits = append(hits, domain.SearchHit{
			FullName: item.GetFullName(),
			Stars:    item.GetStargazersCount(),
			Language: item.GetLanguage(),
		})
	}
	return hits, nil
}

// mapProfile GitHub API 响应 -> domain 实体 (DTO 转换)
// 空串归一成 nil；license 为 NOASSERTION 视为没有 license
func mapProfile(repo *github.Repository) *domain.Repository {
	out := &domain.Repository{
		GithubID:        repo.GetID(),
		FullName:        repo.GetFullName(),
		Owner:           repo.GetOwner().GetLogin(),
		Name:            repo.GetName(),
		HTMLURL:         repo.GetHTMLURL(),
		StarsCount:      repo.GetStargazersCount(),
		ForksCount:      repo.GetForksCount(),
		OpenIssuesCount: repo.GetOpenIssuesCount(),
		WatchersCount:   repo.GetWatchersCount(),
		CreatedAtGH:     repo.GetCreatedAt().Time,
		PushedAtGH:      repo.GetPushedAt().Time,
		IsFork:          repo.GetFork(),
		IsArchived:      repo.GetArchived(),
		IsMirror:        repo.GetMirrorURL() != "",
	}
	if out.FullName == "" && out.Owner != "" {
		out.FullName = out.Owner + "/" + out.Name
	}
	if out.PushedAtGH.IsZero() {
		out.PushedAtGH = time.Now().UTC()
	}
	if out.CreatedAtGH.IsZero() {
		out.CreatedAtGH = out.PushedAtGH
	}
	if desc := strings.TrimSpace(repo.GetDescription()); desc != "" {
		out.Description = &desc
	}
	if home := strings.TrimSpace(repo.GetHomepage()); home != "" {
		out.HomepageURL = &home
	}
	if lang := repo.GetLanguage(); lang != "" {
		out.PrimaryLanguage = &lang
	}
	if branch := repo.GetDefaultBranch(); branch != "" {
		out.DefaultBranch = branch
	} else {
		out.DefaultBranch = "main"
	}
	if len(repo.Topics) > 0 {
		out.Topics = domain.StringList(repo.Topics)
	}
	if spdx := repo.GetLicense().GetSPDXID(); spdx != "" && spdx != "NOASSERTION" {
		out.LicenseSPDX = &spdx
	}
	return out
}
