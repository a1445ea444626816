package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/garg-prashant/github-intel/internal/domain"
	"github.com/garg-prashant/github-intel/internal/port"
)

// 趋势分权重，总和为 1
const (
	weightStars24h      = 0.40
	weightForks24h      = 0.20
	weightCommits7d     = 0.15
	weightIssueEvents7d = 0.15
	weightRecency       = 0.10
)

// 质量过滤阈值
const (
	minDescriptionChars = 20
	minQualityStars     = 5
	maxPushAgeDays      = 14
)

// starsGainedWindowDays 30 天星增量的统计窗口
const starsGainedWindowDays = 30

// trendMetrics 单个仓库参与归一化的原始指标
type trendMetrics struct {
	stars24h      float64
	forks24h      float64
	commits7d     float64
	issueEvents7d float64
	recency       float64
}

// extractMetrics 从最新快照取增量指标，null 增量按 0 处理
// recency 是 max(0, 10 - 距上次推送的天数)，越新分越高
func extractMetrics(repo *domain.Repository, now time.Time) trendMetrics {
	var m trendMetrics
	if n := len(repo.TrendSnapshots); n > 0 {
		latest := repo.TrendSnapshots[n-1]
		if latest.StarsDelta24h != nil {
			m.stars24h = float64(*latest.StarsDelta24h)
		}
		if latest.ForksDelta24h != nil {
			m.forks24h = float64(*latest.ForksDelta24h)
		}
		if latest.Commits7d != nil {
			m.commits7d = float64(*latest.Commits7d)
		}
		if latest.IssueEvents7d != nil {
			m.issueEvents7d = float64(*latest.IssueEvents7d)
		}
	}
	daysSincePush := now.Sub(repo.PushedAtGH).Hours() / 24
	m.recency = math.Max(0, 10-daysSincePush)
	return m
}

// normalize 把一组值 min-max 归一化到 [0, 100]
// 整组同值时跨度为零，全部归 0（没有相对趋势可言）
func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span == 0 {
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / span * 100
	}
	return out
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}

// ComputeTrendScores 对整个 cohort 做相对趋势评分
// 返回值与 repos 一一对应，单仓库的分数只在它所属的 cohort 内有意义
func ComputeTrendScores(repos []*domain.Repository, now time.Time) []float64 {
	n := len(repos)
	stars := make([]float64, n)
	forks := make([]float64, n)
	commits := make([]float64, n)
	issues := make([]float64, n)
	recency := make([]float64, n)
	for i, repo := range repos {
		m := extractMetrics(repo, now)
		stars[i] = m.stars24h
		forks[i] = m.forks24h
		commits[i] = m.commits7d
		issues[i] = m.issueEvents7d
		recency[i] = m.recency
	}

	stars = normalize(stars)
	forks = normalize(forks)
	commits = normalize(commits)
	issues = normalize(issues)
	recency = normalize(recency)

	scores := make([]float64, n)
	for i := range repos {
		scores[i] = round4(weightStars24h*stars[i] +
			weightForks24h*forks[i] +
			weightCommits7d*commits[i] +
			weightIssueEvents7d*issues[i] +
			weightRecency*recency[i])
	}
	return scores
}

// StarsGained30d 统计窗口内最新与最旧快照的星数差
// 窗口内没有快照时返回 nil（与增量为 0 是两回事），负差按 0 截断
func StarsGained30d(snapshots []domain.TrendSnapshot, now time.Time) *int {
	cutoff := now.AddDate(0, 0, -starsGainedWindowDays)
	var oldest, newest *domain.TrendSnapshot
	for i := range snapshots {
		snap := &snapshots[i]
		if snap.SnapshotAt.Before(cutoff) {
			continue
		}
		if oldest == nil || snap.SnapshotAt.Before(oldest.SnapshotAt) {
			oldest = snap
		}
		if newest == nil || snap.SnapshotAt.After(newest.SnapshotAt) {
			newest = snap
		}
	}
	if oldest == nil {
		return nil
	}
	gained := newest.StarsCount - oldest.StarsCount
	if gained < 0 {
		gained = 0
	}
	return &gained
}

// PassesQuality 六个硬条件全部满足才算质量达标：
// 有 README、有许可证、14 天内推送过、非 fork/归档/镜像、
// 描述至少 20 字符、星数至少 5
func PassesQuality(repo *domain.Repository, now time.Time) bool {
	if !repo.HasReadme {
		return false
	}
	if repo.LicenseSPDX == nil || *repo.LicenseSPDX == "" {
		return false
	}
	if now.Sub(repo.PushedAtGH) > maxPushAgeDays*24*time.Hour {
		return false
	}
	if repo.IsFork || repo.IsArchived || repo.IsMirror {
		return false
	}
	if len(repo.DescriptionOrEmpty()) < minDescriptionChars {
		return false
	}
	if repo.StarsCount < minQualityStars {
		return false
	}
	return true
}

// ScoringService 评分服务：跑一轮 cohort 评分并回写派生字段
type ScoringService struct {
	store port.RepoStore
	now   func() time.Time
}

// NewScoringService 创建评分服务
func NewScoringService(store port.RepoStore) *ScoringService {
	return &ScoringService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Run 对全库仓库做一轮评分 + 质量过滤，返回处理数量
func (s *ScoringService) Run(ctx context.Context) (int, error) {
	repos, err := s.store.ListWithSnapshots(ctx)
	if err != nil {
		return 0, err
	}
	// 没有快照的仓库测不出趋势，留到下一轮摄取之后
	cohort := repos[:0]
	for _, repo := range repos {
		if len(repo.TrendSnapshots) > 0 {
			cohort = append(cohort, repo)
		}
	}
	repos = cohort
	if len(repos) == 0 {
		fmt.Println("📊 没有可评分的仓库")
		return 0, nil
	}

	now := s.now()
	scores := ComputeTrendScores(repos, now)

	processed := 0
	for i, repo := range repos {
		gained := StarsGained30d(repo.TrendSnapshots, now)
		passed := PassesQuality(repo, now)
		if err := s.store.ApplyScoring(ctx, repo.ID, scores[i], gained, passed); err != nil {
			log.Printf("⚠️ 回写仓库 %s 评分失败: %v", repo.FullName, err)
			continue
		}
		processed++
	}

	fmt.Printf("📊 评分完成: %d/%d 个仓库\n", processed, len(repos))
	return processed, nil
}
