package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garg-prashant/github-intel/internal/domain"
	"github.com/garg-prashant/github-intel/internal/port"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore 实现了 port 包里的全部持久化接口
// (RepoStore / ClassifyStore / ContentStore / StageStore / QueryStore)
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore 连接数据库、启用 pgvector 扩展并自动迁移表结构
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 向量列依赖 pgvector 扩展，必须在迁移之前就位
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("启用 pgvector 扩展失败: %w", err)
	}

	err = db.AutoMigrate(
		&domain.Repository{},
		&domain.TrendSnapshot{},
		&domain.Category{},
		&domain.CategoryAssignment{},
		&domain.GeneratedContent{},
		&domain.RepoEmbedding{},
		&domain.StageRun{},
	)
	if err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	// 余弦距离的最近邻索引
	err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_repo_embeddings_embedding_hnsw
		ON repo_embeddings USING hnsw (embedding vector_cosine_ops)`).Error
	if err != nil {
		return nil, fmt.Errorf("创建向量索引失败: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// --- port.RepoStore ---

// FindByFullName 不存在时返回 (nil, nil)
func (s *PostgresStore) FindByFullName(ctx context.Context, fullName string) (*domain.Repository, error) {
	var repo domain.Repository
	err := s.db.WithContext(ctx).Where("full_name = ?", fullName).Take(&repo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &repo, nil
}

// repoMutableColumns upsert 冲突时覆盖的列
// 身份字段 (github_id, created_at_gh, first_seen_at) 和派生字段永远不在这里
var repoMutableColumns = []string{
	"full_name", "owner", "name", "description", "html_url", "homepage_url",
	"primary_language", "languages_json", "topics", "license_spdx",
	"has_readme", "readme_content",
	"stars_count", "forks_count", "open_issues_count", "watchers_count",
	"default_branch", "pushed_at_gh", "is_fork", "is_archived", "is_mirror",
	"updated_at",
}

// UpsertRepository 按 github_id 合并，返回持久化后的主键
func (s *PostgresStore) UpsertRepository(ctx context.Context, repo *domain.Repository) (int64, error) {
	repo.UpdatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "github_id"}},
		DoUpdates: clause.AssignmentColumns(repoMutableColumns),
	}).Create(repo).Error
	if err != nil {
		return 0, fmt.Errorf("upsert 仓库 %s 失败: %w", repo.FullName, err)
	}

	// 冲突路径下 gorm 不回填主键，按 github_id 再查一次
	var row struct{ ID int64 }
	err = s.db.WithContext(ctx).Model(&domain.Repository{}).
		Select("id").Where("github_id = ?", repo.GithubID).Take(&row).Error
	if err != nil {
		return 0, err
	}
	repo.ID = row.ID
	return row.ID, nil
}

// LatestSnapshots 按捕获时间倒序
func (s *PostgresStore) LatestSnapshots(ctx context.Context, repoID int64, limit int) ([]domain.TrendSnapshot, error) {
	var snaps []domain.TrendSnapshot
	err := s.db.WithContext(ctx).
		Where("repository_id = ?", repoID).
		Order("snapshot_at DESC").
		Limit(limit).
		Find(&snaps).Error
	return snaps, err
}

func (s *PostgresStore) AppendSnapshot(ctx context.Context, snap *domain.TrendSnapshot) error {
	return s.db.WithContext(ctx).Create(snap).Error
}

// ListWithSnapshots 评分 cohort 的原料：每个仓库带全量快照（按时间升序）
// 一条快照都没有的仓库不进 cohort，免得把别人的归一化跨度拉歪
func (s *PostgresStore) ListWithSnapshots(ctx context.Context) ([]*domain.Repository, error) {
	var repos []*domain.Repository
	err := s.db.WithContext(ctx).
		Where("EXISTS (SELECT 1 FROM trend_snapshots WHERE trend_snapshots.repository_id = repositories.id)").
		Preload("TrendSnapshots", func(db *gorm.DB) *gorm.DB {
			return db.Order("snapshot_at ASC")
		}).
		Find(&repos).Error
	return repos, err
}

// ApplyScoring 一个事务里回写仓库派生字段并把分数落到最新快照
func (s *PostgresStore) ApplyScoring(ctx context.Context, repoID int64, score float64, starsGained30d *int, qualityPassed bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&domain.Repository{}).Where("id = ?", repoID).Updates(map[string]interface{}{
			"current_trend_score": score,
			"stars_gained_30d":    starsGained30d,
			"quality_passed":      qualityPassed,
		}).Error
		if err != nil {
			return err
		}
		return tx.Model(&domain.TrendSnapshot{}).
			Where(`id = (SELECT id FROM trend_snapshots WHERE repository_id = ? ORDER BY snapshot_at DESC LIMIT 1)`, repoID).
			Update("computed_trend_score", score).Error
	})
}

// DeleteAllRepositories 级联清掉所有依赖行，分类目录保留
func (s *PostgresStore) DeleteAllRepositories(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("1 = 1").Delete(&domain.Repository{})
	return result.RowsAffected, result.Error
}

func (s *PostgresStore) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("snapshot_at < ?", cutoff).Delete(&domain.TrendSnapshot{})
	return result.RowsAffected, result.Error
}

// --- port.ClassifyStore ---

func (s *PostgresStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var cats []domain.Category
	err := s.db.WithContext(ctx).Order("id ASC").Find(&cats).Error
	return cats, err
}

// SeedCategories slug 已存在时跳过，不覆盖人工修改过的目录
func (s *PostgresStore) SeedCategories(ctx context.Context, seeds []domain.CategorySeed) error {
	for _, seed := range seeds {
		desc := seed.Description
		cat := domain.Category{
			Slug:        seed.Slug,
			Name:        seed.Name,
			Description: &desc,
			Keywords:    domain.StringList(seed.Keywords),
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoNothing: true,
		}).Create(&cat).Error
		if err != nil {
			return fmt.Errorf("播种分类 %s 失败: %w", seed.Slug, err)
		}
	}
	return nil
}

func (s *PostgresStore) ListClassifiable(ctx context.Context, limit int) ([]*domain.Repository, error) {
	var repos []*domain.Repository
	err := s.db.WithContext(ctx).
		Preload("CategoryLinks").
		Preload("Embedding").
		Order("id ASC").
		Limit(limit).
		Find(&repos).Error
	return repos, err
}

func (s *PostgresStore) UpsertAssignment(ctx context.Context, a *domain.CategoryAssignment) error {
	a.AssignedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repository_id"}, {Name: "category_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"confidence", "classification_method", "assigned_at"}),
	}).Create(a).Error
}

func (s *PostgresStore) SaveEmbedding(ctx context.Context, e *domain.RepoEmbedding) error {
	e.UpdatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repository_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"embedding", "embedding_model", "source_text_hash", "updated_at"}),
	}).Create(e).Error
}

// --- port.ContentStore ---

func (s *PostgresStore) CountContentSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.GeneratedContent{}).
		Where("generated_at >= ?", since).
		Count(&count).Error
	return count, err
}

// ListContentCandidates 质量达标、在该分类下、变体不全的仓库，
// 变体少的优先，其次趋势分高的优先
func (s *PostgresStore) ListContentCandidates(ctx context.Context, categoryID int64, limit int) ([]*domain.Repository, error) {
	counts := s.db.Model(&domain.GeneratedContent{}).
		Select("repository_id, count(*) AS cnt").
		Group("repository_id")

	var repos []*domain.Repository
	err := s.db.WithContext(ctx).Model(&domain.Repository{}).
		Joins("JOIN repository_categories rc ON rc.repository_id = repositories.id AND rc.category_id = ?", categoryID).
		Joins("LEFT JOIN (?) gc ON gc.repository_id = repositories.id", counts).
		Where("repositories.quality_passed = ?", true).
		Where("COALESCE(gc.cnt, 0) < ?", len(domain.ContentTypes)).
		Order("COALESCE(gc.cnt, 0) ASC, repositories.current_trend_score DESC NULLS LAST").
		Limit(limit).
		Preload("GeneratedContent").
		Find(&repos).Error
	return repos, err
}

func (s *PostgresStore) UpsertContent(ctx context.Context, c *domain.GeneratedContent) error {
	c.GeneratedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repository_id"}, {Name: "content_type"}, {Name: "prompt_version"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_markdown", "llm_provider", "llm_model", "token_usage", "generated_at"}),
	}).Create(c).Error
}

// --- port.StageStore ---

func (s *PostgresStore) CreateStageRuns(ctx context.Context, pipelineRunID string, stages []string) error {
	runs := make([]domain.StageRun, 0, len(stages))
	for _, stage := range stages {
		runs = append(runs, domain.StageRun{
			PipelineRunID: pipelineRunID,
			Stage:         stage,
			Status:        domain.StagePending,
		})
	}
	return s.db.WithContext(ctx).Create(&runs).Error
}

func (s *PostgresStore) MarkStage(ctx context.Context, pipelineRunID, stage, status string, itemsProcessed int, errMessage string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":          status,
		"items_processed": itemsProcessed,
	}
	switch status {
	case domain.StageRunning:
		updates["started_at"] = now
	case domain.StageSucceeded, domain.StageFailed:
		updates["finished_at"] = now
	}
	if errMessage != "" {
		updates["error_message"] = errMessage
	}
	return s.db.WithContext(ctx).Model(&domain.StageRun{}).
		Where("pipeline_run_id = ? AND stage = ?", pipelineRunID, stage).
		Updates(updates).Error
}

func (s *PostgresStore) GetStageRuns(ctx context.Context, pipelineRunID string) ([]domain.StageRun, error) {
	var runs []domain.StageRun
	err := s.db.WithContext(ctx).
		Where("pipeline_run_id = ?", pipelineRunID).
		Order("id ASC").
		Find(&runs).Error
	return runs, err
}

// --- port.QueryStore ---

// ListRepositories 给外部 API 层的分页列表
func (s *PostgresStore) ListRepositories(ctx context.Context, filter port.RepoFilter) ([]domain.Repository, int64, error) {
	query := s.db.WithContext(ctx).Model(&domain.Repository{})
	if filter.CategorySlug != "" {
		query = query.
			Joins("JOIN repository_categories rc ON rc.repository_id = repositories.id").
			Joins("JOIN categories c ON c.id = rc.category_id").
			Where("c.slug = ?", filter.CategorySlug)
	}
	if filter.Language != "" {
		query = query.Where("repositories.primary_language = ?", filter.Language)
	}
	if filter.QualityOnly {
		query = query.Where("repositories.quality_passed = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch filter.SortBy {
	case "recency":
		query = query.Order("repositories.pushed_at_gh DESC")
	default:
		query = query.Order("repositories.current_trend_score DESC NULLS LAST")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var repos []domain.Repository
	err := query.Find(&repos).Error
	return repos, total, err
}

// GetRepositoryDetail 详情页：快照历史 + 分类 + 生成内容一次带出
func (s *PostgresStore) GetRepositoryDetail(ctx context.Context, id int64) (*domain.Repository, error) {
	var repo domain.Repository
	err := s.db.WithContext(ctx).
		Preload("TrendSnapshots", func(db *gorm.DB) *gorm.DB {
			return db.Order("snapshot_at DESC")
		}).
		Preload("CategoryLinks").
		Preload("GeneratedContent").
		Take(&repo, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &repo, nil
}

// SimilarRepositories pgvector 余弦距离最近邻 (embedding <=> 目标向量)
func (s *PostgresStore) SimilarRepositories(ctx context.Context, repoID int64, limit int) ([]port.SimilarRepo, error) {
	type neighbor struct {
		ID       int64
		Distance float64
	}
	var neighbors []neighbor
	err := s.db.WithContext(ctx).Raw(`
		SELECT r.id, e.embedding <=> (
			SELECT embedding FROM repo_embeddings WHERE repository_id = ?
		) AS distance
		FROM repositories r
		JOIN repo_embeddings e ON e.repository_id = r.id
		WHERE r.id <> ?
		ORDER BY distance ASC
		LIMIT ?`, repoID, repoID, limit).Scan(&neighbors).Error
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(neighbors))
	for _, n := range neighbors {
		ids = append(ids, n.ID)
	}
	var repos []domain.Repository
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&repos).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.Repository, len(repos))
	for _, r := range repos {
		byID[r.ID] = r
	}

	out := make([]port.SimilarRepo, 0, len(neighbors))
	for _, n := range neighbors {
		if r, ok := byID[n.ID]; ok {
			out = append(out, port.SimilarRepo{Repository: r, Distance: n.Distance})
		}
	}
	return out, nil
}

// Stats 仪表盘统计
func (s *PostgresStore) Stats(ctx context.Context) (*port.StoreStats, error) {
	var stats port.StoreStats
	db := s.db.WithContext(ctx)
	if err := db.Model(&domain.Repository{}).Count(&stats.TotalTracked).Error; err != nil {
		return nil, err
	}
	todayStart := time.Now().UTC().Truncate(24 * time.Hour)
	if err := db.Model(&domain.Repository{}).Where("first_seen_at >= ?", todayStart).Count(&stats.AddedToday).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&domain.Repository{}).Where("quality_passed = ?", true).Count(&stats.QualityPassed).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
