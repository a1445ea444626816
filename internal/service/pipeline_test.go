package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garg-prashant/github-intel/internal/config"
	"github.com/garg-prashant/github-intel/internal/domain"
	"github.com/garg-prashant/github-intel/internal/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stageMark 一次状态机转移的记录
type stageMark struct {
	stage  string
	status string
	items  int
	errMsg string
}

type fakeStageStore struct {
	created []string
	marks   []stageMark
}

func (f *fakeStageStore) CreateStageRuns(ctx context.Context, runID string, stages []string) error {
	f.created = append(f.created, stages...)
	return nil
}

func (f *fakeStageStore) MarkStage(ctx context.Context, runID, stage, status string, items int, errMsg string) error {
	f.marks = append(f.marks, stageMark{stage: stage, status: status, items: items, errMsg: errMsg})
	return nil
}

func (f *fakeStageStore) GetStageRuns(ctx context.Context, runID string) ([]domain.StageRun, error) {
	return nil, nil
}

// fakeSource 固定候选列表的发现源
type fakeSource struct {
	name  string
	names []string
	err   error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Discover(ctx context.Context) ([]string, error) {
	return f.names, f.err
}

func newTestPipeline(trending, topics port.DiscoverySource, stages port.StageStore) *PipelineService {
	gateway := newCountingGateway(&domain.Repository{
		GithubID: 1, FullName: "acme/widget", Owner: "acme", Name: "widget",
	}, "readme")
	repoStore := newMemRepoStore()
	classifyStore := &fakeClassifyStore{}
	contentStore := &fakeContentStore{}

	settings := &config.Settings{
		CacheFreshness:      24 * time.Hour,
		MaxContentPerDay:    20,
		MaxReposPerCategory: 5,
	}
	ingestion := NewIngestionService(gateway, repoStore, settings)
	ingestion.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	return NewPipelineService(
		trending, topics,
		ingestion,
		NewScoringService(repoStore),
		NewClassificationService(classifyStore, &fakeEmbedder{vec: []float32{1, 0}}),
		NewContentService(contentStore, classifyStore, &fakeGenerator{}, settings),
		stages,
	)
}

func TestPipelineRun_AllStagesSucceed(t *testing.T) {
	stages := &fakeStageStore{}
	pipeline := newTestPipeline(
		&fakeSource{name: "trending_scrape", names: []string{"acme/widget"}},
		&fakeSource{name: "topic_search"},
		stages,
	)

	runID, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	assert.Equal(t, domain.PipelineStages, stages.created, "启动时预建全部阶段记录")

	// 每个阶段两次转移: running -> succeeded，且按固定顺序
	require.Len(t, stages.marks, len(domain.PipelineStages)*2)
	for i, stage := range domain.PipelineStages {
		assert.Equal(t, stageMark{stage: stage, status: domain.StageRunning}, stages.marks[i*2])
		got := stages.marks[i*2+1]
		assert.Equal(t, stage, got.stage)
		assert.Equal(t, domain.StageSucceeded, got.status)
	}
}

func TestPipelineRun_FailedStageHaltsPipeline(t *testing.T) {
	stages := &fakeStageStore{}
	pipeline := newTestPipeline(
		&fakeSource{name: "trending_scrape", err: errors.New("github is down")},
		&fakeSource{name: "topic_search", names: []string{"acme/widget"}},
		stages,
	)

	_, err := pipeline.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.StageIngestTrending)

	// 第一阶段 running -> failed，后续阶段不再转移（保持 pending）
	require.Len(t, stages.marks, 2)
	assert.Equal(t, domain.StageRunning, stages.marks[0].status)
	assert.Equal(t, domain.StageFailed, stages.marks[1].status)
	assert.Contains(t, stages.marks[1].errMsg, "github is down")
}

func TestPipelineRun_EmptyDiscoveryIsNotFailure(t *testing.T) {
	stages := &fakeStageStore{}
	pipeline := newTestPipeline(
		&fakeSource{name: "trending_scrape"},
		&fakeSource{name: "topic_search"},
		stages,
	)

	_, err := pipeline.Run(context.Background())
	require.NoError(t, err, "零候选是空转，不是失败")

	for _, mark := range stages.marks {
		assert.NotEqual(t, domain.StageFailed, mark.status)
	}
}

var _ port.StageStore = (*fakeStageStore)(nil)
var _ port.DiscoverySource = (*fakeSource)(nil)
