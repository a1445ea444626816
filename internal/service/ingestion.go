package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/garg-prashant/github-intel/internal/common"
	"github.com/garg-prashant/github-intel/internal/config"
	"github.com/garg-prashant/github-intel/internal/domain"
	"github.com/garg-prashant/github-intel/internal/port"
)

// IngestionService 摄取服务：把候选仓库的档案和活跃度计数拉进数据库
// 每轮结束后每个仓库都新增一条快照，增量字段对比同库此前的快照
type IngestionService struct {
	gateway  port.GitHubGateway
	store    port.RepoStore
	delay    time.Duration // 逐条之间的间隔，平滑 API 压力
	freshFor time.Duration // 元数据新鲜窗口，窗口内零远程调用
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewIngestionService 创建摄取服务
func NewIngestionService(gateway port.GitHubGateway, store port.RepoStore, settings *config.Settings) *IngestionService {
	return &IngestionService{
		gateway:  gateway,
		store:    store,
		delay:    settings.RequestDelay,
		freshFor: settings.CacheFreshness,
		now:      func() time.Time { return time.Now().UTC() },
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IngestBatch 逐条处理候选 full_name：
// 新鲜窗口内的仓库直接用库里的计数凝固一条快照（零 API 调用），
// 其余的走远程拉取。单条失败只记 skip，不中断整批
func (s *IngestionService) IngestBatch(ctx context.Context, fullNames []string) (*domain.BatchSummary, error) {
	summary := &domain.BatchSummary{}
	fmt.Printf("📥 开始摄取 %d 个候选仓库...\n", len(fullNames))

	for i, fullName := range fullNames {
		if i > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return summary, err
			}
		}

		owner, name, ok := splitFullName(fullName)
		if !ok {
			log.Printf("⚠️ 非法的仓库名: %q", fullName)
			summary.RecordSkip(fullName, "invalid_full_name")
			continue
		}

		existing, err := s.store.FindByFullName(ctx, fullName)
		if err != nil {
			log.Printf("⚠️ 查询仓库 %s 失败: %v", fullName, err)
			summary.RecordSkip(fullName, "db_error")
			continue
		}

		// 新鲜路径：计数直接来自上次落库的档案
		if existing != nil && s.now().Sub(existing.UpdatedAt) < s.freshFor {
			if err := s.snapshotFromStored(ctx, existing); err != nil {
				log.Printf("⚠️ 仓库 %s 缓存快照失败: %v", fullName, err)
				summary.RecordSkip(fullName, "snapshot_error")
				continue
			}
			summary.RecordSuccess(fullName)
			continue
		}

		if err := s.ingestOne(ctx, owner, name); err != nil {
			log.Printf("⚠️ 仓库 %s 摄取失败: %v", fullName, err)
			summary.RecordSkip(fullName, "github_error")
			continue
		}
		summary.RecordSuccess(fullName)
	}

	fmt.Printf("✅ 摄取完成: 成功 %d, 跳过 %d\n", summary.Processed, summary.Skipped)
	return summary, nil
}

// ingestOne 完整拉取一个仓库：档案 + README + 语言分布 + 提交活跃度
func (s *IngestionService) ingestOne(ctx context.Context, owner, name string) error {
	repo, err := s.gateway.GetProfile(ctx, owner, name)
	if err != nil {
		return fmt.Errorf("拉取档案失败: %w", err)
	}

	readme, found, err := s.gateway.GetReadme(ctx, owner, name)
	if err != nil {
		return fmt.Errorf("拉取 README 失败: %w", err)
	}
	if found {
		readme = common.TruncateUTF8(readme, domain.ReadmeMaxChars)
		repo.HasReadme = true
		repo.ReadmeContent = &readme
	}

	languages, err := s.gateway.GetLanguages(ctx, owner, name)
	if err != nil {
		return fmt.Errorf("拉取语言分布失败: %w", err)
	}
	repo.LanguagesJSON = languages

	// 提交统计是软依赖：GitHub 可能还没算好 (202)，算不出就留空
	commits, commitsKnown, err := s.gateway.GetCommitActivity(ctx, owner, name)
	if err != nil {
		log.Printf("⚠️ 仓库 %s/%s 提交统计不可用: %v", owner, name, err)
		commitsKnown = false
	}

	repoID, err := s.store.UpsertRepository(ctx, repo)
	if err != nil {
		return err
	}

	snap := s.buildSnapshot(repo)
	snap.RepositoryID = repoID
	if commitsKnown {
		snap.Commits7d = &commits
	}
	if err := s.fillDeltas(ctx, repoID, snap); err != nil {
		return err
	}
	return s.store.AppendSnapshot(ctx, snap)
}

// snapshotFromStored 新鲜窗口内不打远程 API，直接把库里的计数凝固成快照
func (s *IngestionService) snapshotFromStored(ctx context.Context, repo *domain.Repository) error {
	snap := s.buildSnapshot(repo)
	snap.RepositoryID = repo.ID
	if err := s.fillDeltas(ctx, repo.ID, snap); err != nil {
		return err
	}
	return s.store.AppendSnapshot(ctx, snap)
}

func (s *IngestionService) buildSnapshot(repo *domain.Repository) *domain.TrendSnapshot {
	return &domain.TrendSnapshot{
		StarsCount:      repo.StarsCount,
		ForksCount:      repo.ForksCount,
		OpenIssuesCount: repo.OpenIssuesCount,
		WatchersCount:   repo.WatchersCount,
		SnapshotAt:      s.now(),
	}
}

// fillDeltas 用此前的快照填增量：
// 前 1 条对应约 1h 窗口，前 2 条对应约 24h 窗口，历史不够就保持 null
func (s *IngestionService) fillDeltas(ctx context.Context, repoID int64, snap *domain.TrendSnapshot) error {
	prev, err := s.store.LatestSnapshots(ctx, repoID, 2)
	if err != nil {
		return err
	}
	if len(prev) >= 1 {
		d := snap.StarsCount - prev[0].StarsCount
		snap.StarsDelta1h = &d
	}
	if len(prev) >= 2 {
		ds := snap.StarsCount - prev[1].StarsCount
		df := snap.ForksCount - prev[1].ForksCount
		snap.StarsDelta24h = &ds
		snap.ForksDelta24h = &df
		// 没有独立的 issue 事件 API 配额，用 open issues 的波动近似
		di := snap.OpenIssuesCount - prev[1].OpenIssuesCount
		if di < 0 {
			di = -di
		}
		snap.IssueEvents7d = &di
	}
	return nil
}

// PurgeAll 清空全部仓库数据（级联清掉快照/分类/内容/向量）
func (s *IngestionService) PurgeAll(ctx context.Context) (int64, error) {
	deleted, err := s.store.DeleteAllRepositories(ctx)
	if err != nil {
		return 0, err
	}
	fmt.Printf("🗑️ 已清空 %d 个仓库及其关联数据\n", deleted)
	return deleted, nil
}

// CleanupSnapshots 删除早于保留期的快照
func (s *IngestionService) CleanupSnapshots(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted, err := s.store.DeleteSnapshotsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	fmt.Printf("🗑️ 已清理 %d 条过期快照 (早于 %s)\n", deleted, cutoff.Format("2006-01-02"))
	return deleted, nil
}

// splitFullName "owner/repo" 拆成两段，多余的斜杠视为非法
func splitFullName(fullName string) (owner, name string, ok bool) {
	parts := strings.Split(strings.TrimSpace(fullName), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// newRunID 生成一次流水线运行的标识
func newRunID(now time.Time) string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("run-%s-%s", now.Format("20060102-150405"), hex.EncodeToString(buf))
}
