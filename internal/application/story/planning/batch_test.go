package planning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-studio-api/internal/domain/entity"
	domainservice "novel-studio-api/internal/domain/service"
	wfnode "novel-studio-api/internal/workflow/node"
	apperrors "novel-studio-api/pkg/errors"
)

func TestBatchGenerator_WindowAndMilestones(t *testing.T) {
	f := newFixture(t)
	p := f.planningProject(t, func(p *entity.Project) {
		p.Architecture.KeyMilestones = []entity.KeyMilestone{
			{ID: "m2", Name: "宗门大比", ExpectedChapterRange: "60-70"},
			{ID: "m1", Name: "血色试炼", ExpectedChapterRange: "10-20"},
		}
		for i := range p.Architecture.KeyMilestones {
			domainservice.NormalizeMilestone(&p.Architecture.KeyMilestones[i])
		}
	})
	g := NewBatchGenerator(f.runner, f.planner, DefaultOptions())

	res, err := g.Generate(context.Background(), p.ID, BatchRequest{
		BatchSize:        50,
		ActiveCharacters: []string{"苏瑶", "林凡"},
	})
	require.NoError(t, err)

	assert.Equal(t, domainservice.ChapterRange{Start: 1, End: 50}, res.Window)
	require.Len(t, res.ActiveMilestones, 1)
	assert.Equal(t, "血色试炼", res.ActiveMilestones[0].Name)
	assert.Len(t, res.Chapters, 50)
	assert.Equal(t, 0, res.ProgressFrom)
	// 50/300 四舍五入为 17
	assert.Equal(t, 17, res.Progress)

	in := f.planner.batchIn
	require.NotNil(t, in)
	assert.Equal(t, "林凡", in.Protagonist)
	assert.Equal(t, []string{"苏瑶"}, in.Others)
	assert.True(t, in.EarlyPhase)
	require.Len(t, in.Milestones, 1)
	assert.Equal(t, 10, in.Milestones[0].Start)

	got, err := f.store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Chapters, 50)
	assert.Equal(t, 17, got.PlotProgress)
}

func TestBatchGenerator_SecondBatchContinuesWindow(t *testing.T) {
	f := newFixture(t)
	p := f.planningProject(t, nil)
	g := NewBatchGenerator(f.runner, f.planner, DefaultOptions())
	ctx := context.Background()

	_, err := g.Generate(ctx, p.ID, BatchRequest{BatchSize: 20, ActiveCharacters: []string{"林凡"}})
	require.NoError(t, err)
	res, err := g.Generate(ctx, p.ID, BatchRequest{BatchSize: 20, ActiveCharacters: []string{"林凡"}})
	require.NoError(t, err)

	assert.Equal(t, domainservice.ChapterRange{Start: 21, End: 40}, res.Window)
	assert.False(t, f.planner.batchIn.EarlyPhase)

	got, _ := f.store.Get(ctx, p.ID)
	ids := make(map[string]struct{})
	for _, c := range got.Chapters {
		ids[c.ID] = struct{}{}
	}
	assert.Len(t, ids, 40)
}

func TestBatchGenerator_ManualIncrementWithoutEstimate(t *testing.T) {
	f := newFixture(t)
	p := f.planningProject(t, func(p *entity.Project) { p.PlotProgress = 90 })
	g := NewBatchGenerator(f.runner, f.planner, DefaultOptions())

	res, err := g.Generate(context.Background(), p.ID, BatchRequest{
		BatchSize:        20,
		ManualIncrement:  intPtr(25),
		EstimatedTotal:   intPtr(0),
		ActiveCharacters: []string{"林凡"},
	})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Progress)
}

func TestBatchGenerator_FailureLeavesProjectUnchanged(t *testing.T) {
	f := newFixture(t)
	p := f.planningProject(t, func(p *entity.Project) { p.PlotProgress = 5 })
	f.planner.batchErr = wfnode.Invalid(errors.New("expected 20 chapters, got 19"))
	g := NewBatchGenerator(f.runner, f.planner, DefaultOptions())

	_, err := g.Generate(context.Background(), p.ID, BatchRequest{BatchSize: 20, ActiveCharacters: []string{"林凡"}})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeParseFailed))

	got, _ := f.store.Get(context.Background(), p.ID)
	assert.Empty(t, got.Chapters)
	assert.Equal(t, 5, got.PlotProgress)
}

func TestBatchGenerator_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	g := NewBatchGenerator(f.runner, f.planner, DefaultOptions())
	ctx := context.Background()

	t.Run("empty cast", func(t *testing.T) {
		p := f.planningProject(t, nil)
		_, err := g.Generate(ctx, p.ID, BatchRequest{BatchSize: 20, ActiveCharacters: []string{"路人甲"}})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeUserInput))
	})

	t.Run("missing main plot", func(t *testing.T) {
		p := f.planningProject(t, func(p *entity.Project) { p.Architecture.MainPlot = "  " })
		_, err := g.Generate(ctx, p.ID, BatchRequest{BatchSize: 20, ActiveCharacters: []string{"林凡"}})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeUserInput))
	})

	t.Run("batch too large", func(t *testing.T) {
		p := f.planningProject(t, nil)
		_, err := g.Generate(ctx, p.ID, BatchRequest{BatchSize: 101, ActiveCharacters: []string{"林凡"}})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidParam))
	})

	t.Run("still in architecture stage", func(t *testing.T) {
		p := f.planningProject(t, func(p *entity.Project) { p.CurrentStep = entity.StageArchitecture })
		_, err := g.Generate(ctx, p.ID, BatchRequest{BatchSize: 20, ActiveCharacters: []string{"林凡"}})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeStageBlocked))
	})

	assert.Nil(t, f.planner.batchIn, "planner must not be called for rejected requests")
}

func TestBatchGenerator_ConcurrentEditSurvives(t *testing.T) {
	f := newFixture(t)
	p := f.planningProject(t, nil)
	ctx := context.Background()
	f.planner.onCall = func() {
		_, err := f.store.Update(ctx, p.ID, func(p *entity.Project) error {
			p.Idea = "编辑中途修改"
			return nil
		})
		require.NoError(t, err)
	}
	g := NewBatchGenerator(f.runner, f.planner, DefaultOptions())

	_, err := g.Generate(ctx, p.ID, BatchRequest{BatchSize: 20, ActiveCharacters: []string{"林凡"}})
	require.NoError(t, err)

	got, _ := f.store.Get(ctx, p.ID)
	assert.Equal(t, "编辑中途修改", got.Idea)
	assert.Len(t, got.Chapters, 20)
}

func TestResolveCast(t *testing.T) {
	chars := []entity.Character{
		{ID: "1", Name: "林凡"},
		{ID: "2", Name: "林凡之父"},
		{ID: "3", Name: "苏瑶"},
	}
	got := resolveCast(chars, []string{"林凡", "苏瑶仙子", "", "林凡"})
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}
