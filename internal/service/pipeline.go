package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garg-prashant/github-intel/internal/domain"
	"github.com/garg-prashant/github-intel/internal/port"
)

// PipelineService 流水线驱动器：按固定顺序跑五个阶段
// 每个阶段进入/退出时状态直接落库，失败的阶段终止整条流水线，
// 后续阶段保持 pending
type PipelineService struct {
	trending  port.DiscoverySource
	topics    port.DiscoverySource
	ingestion *IngestionService
	scoring   *ScoringService
	classify  *ClassificationService
	content   *ContentService
	stages    port.StageStore
	now       func() time.Time
}

// NewPipelineService 创建流水线驱动器
func NewPipelineService(
	trending, topics port.DiscoverySource,
	ingestion *IngestionService,
	scoring *ScoringService,
	classify *ClassificationService,
	content *ContentService,
	stages port.StageStore,
) *PipelineService {
	return &PipelineService{
		trending:  trending,
		topics:    topics,
		ingestion: ingestion,
		scoring:   scoring,
		classify:  classify,
		content:   content,
		stages:    stages,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run 跑一轮完整流水线，返回本次运行的标识
func (p *PipelineService) Run(ctx context.Context) (string, error) {
	runID := newRunID(p.now())
	fmt.Printf("🚀 流水线启动: %s\n", runID)

	if err := p.stages.CreateStageRuns(ctx, runID, domain.PipelineStages); err != nil {
		return runID, err
	}

	for _, stage := range domain.PipelineStages {
		if err := p.runStage(ctx, runID, stage); err != nil {
			return runID, fmt.Errorf("阶段 %s 失败: %w", stage, err)
		}
	}

	fmt.Printf("🎉 流水线完成: %s\n", runID)
	return runID, nil
}

// RunIngestOnly 只跑发现 + 摄取，不建阶段记录也不动 AI 阶段
// 给人工补数据用
func (p *PipelineService) RunIngestOnly(ctx context.Context) error {
	for _, source := range []port.DiscoverySource{p.trending, p.topics} {
		if _, err := p.ingestFrom(ctx, source); err != nil {
			return err
		}
	}
	return nil
}

// runStage 执行单个阶段并维护状态机 pending -> running -> succeeded|failed
func (p *PipelineService) runStage(ctx context.Context, runID, stage string) error {
	if err := p.stages.MarkStage(ctx, runID, stage, domain.StageRunning, 0, ""); err != nil {
		return err
	}

	items, err := p.execute(ctx, stage)
	if err != nil {
		// 状态回写失败不能吞掉业务错误
		if markErr := p.stages.MarkStage(ctx, runID, stage, domain.StageFailed, items, err.Error()); markErr != nil {
			return fmt.Errorf("%w (状态回写失败: %v)", err, markErr)
		}
		return err
	}

	return p.stages.MarkStage(ctx, runID, stage, domain.StageSucceeded, items, "")
}

func (p *PipelineService) execute(ctx context.Context, stage string) (int, error) {
	switch stage {
	case domain.StageIngestTrending:
		return p.ingestFrom(ctx, p.trending)
	case domain.StageIngestSearch:
		return p.ingestFrom(ctx, p.topics)
	case domain.StageScore:
		return p.scoring.Run(ctx)
	case domain.StageClassify:
		return p.classify.Run(ctx)
	case domain.StageContent:
		return p.content.Run(ctx)
	default:
		return 0, fmt.Errorf("未知的阶段: %s", stage)
	}
}

// ingestFrom 发现 + 摄取一个候选来源
func (p *PipelineService) ingestFrom(ctx context.Context, source port.DiscoverySource) (int, error) {
	fullNames, err := source.Discover(ctx)
	if err != nil {
		return 0, fmt.Errorf("来源 %s 发现失败: %w", source.Name(), err)
	}
	if len(fullNames) == 0 {
		fmt.Printf("🔍 来源 %s 没有发现候选\n", source.Name())
		return 0, nil
	}

	summary, err := p.ingestion.IngestBatch(ctx, fullNames)
	if err != nil {
		return 0, err
	}
	return summary.Processed, nil
}
