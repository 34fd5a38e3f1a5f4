package planning

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"novel-studio-api/internal/application/project"
	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/domain/entity"
	"novel-studio-api/internal/domain/repository"
	wfmodel "novel-studio-api/internal/workflow/model"
)

type fakePlanner struct {
	mu sync.Mutex

	batchErr   error
	batchIn    *wfmodel.BatchChaptersInput
	castNames  []string
	castIn     *wfmodel.CastSelectInput
	milestones []wfmodel.MilestoneDraft
	rewrite    wfmodel.ChapterStub
	rewriteIn  *wfmodel.ChapterRewriteInput
	resync     string
	resyncIn   *wfmodel.StructureResyncInput
	err        error

	// onCall 在返回前执行，用于模拟生成期间的并发编辑
	onCall func()
}

func (f *fakePlanner) hook() {
	if f.onCall != nil {
		f.onCall()
	}
}

func (f *fakePlanner) BatchChapters(_ context.Context, in *wfmodel.BatchChaptersInput) ([]wfmodel.ChapterStub, error) {
	f.mu.Lock()
	f.batchIn = in
	f.mu.Unlock()
	f.hook()
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([]wfmodel.ChapterStub, in.BatchSize)
	for i := range out {
		n := in.WindowStart + i
		out[i] = wfmodel.ChapterStub{
			Title:           fmt.Sprintf("第%d章", n),
			Summary:         fmt.Sprintf("细纲%d", n),
			WritingGuidance: "节奏紧凑",
		}
	}
	return out, nil
}

func (f *fakePlanner) SelectCast(_ context.Context, in *wfmodel.CastSelectInput) ([]string, error) {
	f.castIn = in
	return f.castNames, f.err
}

func (f *fakePlanner) ExtractMilestones(_ context.Context, _ *wfmodel.MilestonesInput) ([]wfmodel.MilestoneDraft, error) {
	return f.milestones, f.err
}

func (f *fakePlanner) RewriteChapter(_ context.Context, in *wfmodel.ChapterRewriteInput) (wfmodel.ChapterStub, error) {
	f.rewriteIn = in
	f.hook()
	return f.rewrite, f.err
}

func (f *fakePlanner) ResyncStructure(_ context.Context, in *wfmodel.StructureResyncInput) (string, error) {
	f.resyncIn = in
	return f.resync, f.err
}

type fixture struct {
	store   *project.Store
	planner *fakePlanner
	runner  *storyutil.Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := project.Open(context.Background(), repository.NewMemoryProjectRepository(), 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return &fixture{
		store:   s,
		planner: &fakePlanner{},
		runner:  &storyutil.Runner{Projects: s},
	}
}

// planningProject 创建一个已进入规划阶段、带两个角色的项目
func (f *fixture) planningProject(t *testing.T, mutate func(p *entity.Project)) *entity.Project {
	t.Helper()
	ctx := context.Background()
	p, err := f.store.Create(ctx, "问道")
	require.NoError(t, err)
	p, err = f.store.Update(ctx, p.ID, func(p *entity.Project) error {
		p.Idea = "凡人修仙"
		p.CurrentStep = entity.StagePlanning
		p.Architecture.MainPlot = "少年入宗门，一路问道。"
		p.Characters = []entity.Character{
			{ID: entity.NewID(), Name: "林凡", Role: "主角"},
			{ID: entity.NewID(), Name: "苏瑶", Role: "女主"},
			{ID: entity.NewID(), Name: "赵无极", Role: "反派"},
		}
		if mutate != nil {
			mutate(p)
		}
		return nil
	})
	require.NoError(t, err)
	return p
}

func intPtr(v int) *int { return &v }
