package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garg-prashant/github-intel/internal/adapter/discovery"
	"github.com/garg-prashant/github-intel/internal/adapter/gemini"
	"github.com/garg-prashant/github-intel/internal/adapter/github"
	"github.com/garg-prashant/github-intel/internal/adapter/repository"
	"github.com/garg-prashant/github-intel/internal/config"
	"github.com/garg-prashant/github-intel/internal/port"
	"github.com/garg-prashant/github-intel/internal/service"

	"github.com/robfig/cron/v3"
)

func main() {
	// 1. 定义命令行参数
	mode := flag.String("mode", "pipeline", "运行模式: pipeline | ingest | score | classify | content | list | show | similar | stats | cleanup | reset")
	cronSpec := flag.String("cron", "", "cron 表达式，非空时按计划反复执行 pipeline (例如 '0 */6 * * *')")
	repoID := flag.Int64("repo", 0, "仓库 ID (show / similar 模式)")
	topN := flag.Int("n", 5, "返回数量 (list / similar 模式)")
	category := flag.String("category", "", "按分类 slug 过滤 (list 模式)")
	language := flag.String("lang", "", "按主语言过滤 (list 模式)")
	qualityOnly := flag.Bool("quality", false, "只看质量达标的仓库 (list 模式)")
	sortBy := flag.String("sort", "score", "排序: score | recency (list 模式)")
	days := flag.Int("days", 0, "快照保留天数，0 表示用配置值 (cleanup 模式)")
	flag.Parse()

	// 2. 加载配置并初始化公共依赖 (数据库)
	settings := config.Load()
	store, err := repository.NewPostgresStore(settings.DatabaseDSN)
	if err != nil {
		log.Fatalf("❌ DB 初始化失败: %v", err)
	}

	// 3. 初始化 AI 依赖
	ctx := context.Background()
	provider, err := gemini.NewProvider(ctx, settings.GeminiAPIKey, settings.GeminiModel, settings.EmbeddingModel)
	if err != nil {
		log.Fatalf("❌ AI 初始化失败: %v", err)
	}
	defer provider.Close()

	// 4. 组装流水线
	gateway := github.NewClient(settings.GithubToken, settings.MaxConcurrentRequests)
	trending := discovery.NewTrendingSource(settings.TrendingSince, settings.TrendingLanguages, settings.MaxTrendingRepos)
	topics := discovery.NewTopicSearchSource(gateway, settings.TopicSearchTerms, settings.AllowedLanguages,
		settings.MinStarsTopic, settings.MaxTrendingRepos, settings.MaxTrendingRepos)

	ingestion := service.NewIngestionService(gateway, store, settings)
	scoring := service.NewScoringService(store)
	classify := service.NewClassificationService(store, provider)
	content := service.NewContentService(store, store, provider, settings)
	pipeline := service.NewPipelineService(trending, topics, ingestion, scoring, classify, content, store)

	// 5. 根据模式分流
	if *cronSpec != "" {
		runScheduled(pipeline, *cronSpec)
		return
	}

	switch *mode {
	case "pipeline":
		runPipelineWithReport(ctx, pipeline, store)
	case "ingest":
		runIngest(ctx, pipeline)
	case "score":
		if _, err := scoring.Run(ctx); err != nil {
			log.Fatalf("❌ 评分失败: %v", err)
		}
	case "classify":
		if _, err := classify.Run(ctx); err != nil {
			log.Fatalf("❌ 分类失败: %v", err)
		}
	case "content":
		if _, err := content.Run(ctx); err != nil {
			log.Fatalf("❌ 内容生成失败: %v", err)
		}
	case "list":
		runList(ctx, store, port.RepoFilter{
			CategorySlug: *category,
			Language:     *language,
			QualityOnly:  *qualityOnly,
			SortBy:       *sortBy,
			Limit:        *topN,
		})
	case "show":
		runShow(ctx, store, *repoID)
	case "similar":
		runSimilar(ctx, store, *repoID, *topN)
	case "stats":
		runStats(ctx, store)
	case "cleanup":
		retention := settings.SnapshotRetentionDays
		if *days > 0 {
			retention = *days
		}
		if _, err := ingestion.CleanupSnapshots(ctx, retention); err != nil {
			log.Fatalf("❌ 快照清理失败: %v", err)
		}
	case "reset":
		runReset(ctx, ingestion)
	default:
		fmt.Println("❌ 未知模式，请使用 -mode=pipeline|ingest|score|classify|content|list|show|similar|stats|cleanup|reset")
	}
}

// runScheduled 按 cron 计划反复执行流水线，收到信号后优雅退出
func runScheduled(pipeline *service.PipelineService, spec string) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		// 单轮设置超时，避免某个阶段卡死拖垮后续计划
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		runPipeline(ctx, pipeline)
	})
	if err != nil {
		log.Fatalf("❌ cron 表达式非法 %q: %v", spec, err)
	}

	scheduler.Start()
	fmt.Printf("⏰ 定时执行模式已启动: %q\n", spec)
	fmt.Println("按下 Ctrl+C 可以优雅停止程序")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n👋 收到停止信号，正在退出...")
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
}

func runPipeline(ctx context.Context, pipeline *service.PipelineService) {
	runID, err := pipeline.Run(ctx)
	if err != nil {
		log.Printf("❌ 流水线 %s 失败: %v", runID, err)
	}
}

// runPipelineWithReport 跑完流水线后打印各阶段的落库状态
func runPipelineWithReport(ctx context.Context, pipeline *service.PipelineService, store *repository.PostgresStore) {
	runID, err := pipeline.Run(ctx)
	if err != nil {
		log.Printf("❌ 流水线 %s 失败: %v", runID, err)
	}

	runs, err := store.GetStageRuns(ctx, runID)
	if err != nil {
		log.Printf("⚠️ 阶段状态查询失败: %v", err)
		return
	}
	fmt.Printf("\n================ [ 本次运行 %s ] ================\n", runID)
	for _, run := range runs {
		line := fmt.Sprintf("%-16s %-10s 处理 %d 条", run.Stage, run.Status, run.ItemsProcessed)
		if run.ErrorMessage != nil {
			line += " | " + *run.ErrorMessage
		}
		fmt.Println(line)
	}
	fmt.Println("====================================================")
}

func runList(ctx context.Context, store *repository.PostgresStore, filter port.RepoFilter) {
	repos, total, err := store.ListRepositories(ctx, filter)
	if err != nil {
		log.Fatalf("❌ 仓库列表查询失败: %v", err)
	}
	if len(repos) == 0 {
		fmt.Println("📭 没有符合条件的仓库")
		return
	}

	fmt.Printf("\n================ [ 仓库列表 %d/%d ] ================\n", len(repos), total)
	for i, repo := range repos {
		score := "-"
		if repo.CurrentTrendScore != nil {
			score = fmt.Sprintf("%.2f", *repo.CurrentTrendScore)
		}
		fmt.Printf("%d. [%d] %s  ⭐%d  趋势分 %s\n", i+1, repo.ID, repo.FullName, repo.StarsCount, score)
	}
	fmt.Println("====================================================")
}

func runShow(ctx context.Context, store *repository.PostgresStore, repoID int64) {
	if repoID <= 0 {
		fmt.Println("⚠️ 请用 -repo 指定仓库 ID，例如: -mode=show -repo=42")
		return
	}

	repo, err := store.GetRepositoryDetail(ctx, repoID)
	if err != nil {
		log.Fatalf("❌ 仓库详情查询失败: %v", err)
	}
	if repo == nil {
		fmt.Printf("📭 没有 ID 为 %d 的仓库\n", repoID)
		return
	}

	fmt.Printf("\n================ [ %s ] ================\n", repo.FullName)
	fmt.Printf("GitHub ID: %d | ⭐%d | Fork %d | 主语言 %s\n",
		repo.GithubID, repo.StarsCount, repo.ForksCount, repo.PrimaryLanguageOrEmpty())
	if desc := repo.DescriptionOrEmpty(); desc != "" {
		fmt.Printf("描述: %s\n", desc)
	}
	if repo.CurrentTrendScore != nil {
		fmt.Printf("趋势分: %.2f | 质量达标: %v\n", *repo.CurrentTrendScore, repo.QualityPassed)
	}
	fmt.Printf("快照数: %d | 分类数: %d | 生成内容: %d 条\n",
		len(repo.TrendSnapshots), len(repo.CategoryLinks), len(repo.GeneratedContent))
	fmt.Println("====================================================")
}

// runIngest 只跑发现 + 摄取两个阶段（含评分的前置快照），不动 AI 阶段
func runIngest(ctx context.Context, pipeline *service.PipelineService) {
	if err := pipeline.RunIngestOnly(ctx); err != nil {
		log.Fatalf("❌ 摄取失败: %v", err)
	}
}

func runSimilar(ctx context.Context, store *repository.PostgresStore, repoID int64, topN int) {
	if repoID <= 0 {
		fmt.Println("⚠️ 请用 -repo 指定仓库 ID，例如: -mode=similar -repo=42")
		return
	}

	neighbors, err := store.SimilarRepositories(ctx, repoID, topN)
	if err != nil {
		log.Fatalf("❌ 相似检索失败: %v", err)
	}
	if len(neighbors) == 0 {
		fmt.Println("📭 没有找到相似仓库（目标仓库可能还没有向量）")
		return
	}

	fmt.Printf("\n================ [ 相似仓库 Top %d ] ================\n", len(neighbors))
	for i, n := range neighbors {
		fmt.Printf("%d. %s (距离 %.4f)\n", i+1, n.Repository.FullName, n.Distance)
		if desc := n.Repository.DescriptionOrEmpty(); desc != "" {
			fmt.Printf("   %s\n", desc)
		}
	}
	fmt.Println("====================================================")
}

func runStats(ctx context.Context, store *repository.PostgresStore) {
	stats, err := store.Stats(ctx)
	if err != nil {
		log.Fatalf("❌ 统计查询失败: %v", err)
	}
	fmt.Println("\n================ [ 数据概况 ] ================")
	fmt.Printf("追踪仓库总数: %d\n", stats.TotalTracked)
	fmt.Printf("今日新增:     %d\n", stats.AddedToday)
	fmt.Printf("质量达标:     %d\n", stats.QualityPassed)
	fmt.Println("==============================================")
}

func runReset(ctx context.Context, ingestion *service.IngestionService) {
	fmt.Println("⚠️ 即将清空全部仓库数据（分类目录保留），5 秒内 Ctrl+C 可取消...")
	time.Sleep(5 * time.Second)
	if _, err := ingestion.PurgeAll(ctx); err != nil {
		log.Fatalf("❌ 清空失败: %v", err)
	}
}
