package foundation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-studio-api/internal/application/project"
	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/domain/entity"
	"novel-studio-api/internal/domain/repository"
	wfmodel "novel-studio-api/internal/workflow/model"
	workflowport "novel-studio-api/internal/workflow/port"
	apperrors "novel-studio-api/pkg/errors"
)

type fakeGenerator struct {
	arch      *wfmodel.ArchitectureDraft
	field     string
	fieldIn   *wfmodel.WorldFieldInput
	structure string
	quests    []wfmodel.SideQuestDraft
	rewrite   wfmodel.SideQuestDraft
	refine    wfmodel.CharacterDraft
	refineIn  *wfmodel.CharacterRefineInput
	idea      string
	ideaIn    *wfmodel.IdeaBlendInput
	err       error
}

func (f *fakeGenerator) GenerateArchitecture(context.Context, *wfmodel.ArchitectureInput) (*wfmodel.ArchitectureDraft, error) {
	return f.arch, f.err
}

func (f *fakeGenerator) GenerateWorldField(_ context.Context, in *wfmodel.WorldFieldInput) (string, error) {
	f.fieldIn = in
	return f.field, f.err
}

func (f *fakeGenerator) GeneratePlotStructure(context.Context, *wfmodel.PlotStructureInput) (string, error) {
	return f.structure, f.err
}

func (f *fakeGenerator) GenerateSideQuests(context.Context, *wfmodel.SideQuestsInput) ([]wfmodel.SideQuestDraft, error) {
	return f.quests, f.err
}

func (f *fakeGenerator) RewriteSideQuest(context.Context, *wfmodel.SideQuestRewriteInput) (wfmodel.SideQuestDraft, error) {
	return f.rewrite, f.err
}

func (f *fakeGenerator) RefineCharacter(_ context.Context, in *wfmodel.CharacterRefineInput) (wfmodel.CharacterDraft, error) {
	f.refineIn = in
	return f.refine, f.err
}

func (f *fakeGenerator) BlendIdea(_ context.Context, in *wfmodel.IdeaBlendInput) (string, error) {
	f.ideaIn = in
	return f.idea, f.err
}

func newArchitect(t *testing.T) (*Architect, *project.Store, *fakeGenerator) {
	t.Helper()
	s, err := project.Open(context.Background(), repository.NewMemoryProjectRepository(), 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	gen := &fakeGenerator{}
	return NewArchitect(&storyutil.Runner{Projects: s}, gen), s, gen
}

func seed(t *testing.T, s *project.Store, mutate func(p *entity.Project)) *entity.Project {
	t.Helper()
	p, _ := s.Create(context.Background(), "")
	p, err := s.Update(context.Background(), p.ID, func(p *entity.Project) error {
		p.Idea = "凡人修仙"
		if mutate != nil {
			mutate(p)
		}
		return nil
	})
	require.NoError(t, err)
	return p
}

func TestArchitect_GenerateArchitecture(t *testing.T) {
	a, s, gen := newArchitect(t)
	p := seed(t, s, func(p *entity.Project) {
		p.Characters = []entity.Character{{ID: "old", Name: "旧角色"}}
	})
	gen.arch = &wfmodel.ArchitectureDraft{
		Title:      "问道长生",
		WorldBible: map[string]string{"powerSystem": "九境", "rules": "因果"},
		MainPlot:   "少年问道",
		Timeline:   "三百年",
		Characters: []wfmodel.CharacterDraft{{Name: " 林凡 ", Role: "主角"}, {Name: "苏瑶", Role: "女主"}},
	}

	got, err := a.GenerateArchitecture(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "问道长生", got.Title)
	assert.Equal(t, "九境", got.Architecture.WorldBible.PowerSystem)
	assert.Equal(t, "因果", got.Architecture.WorldBible.Rules)
	assert.Equal(t, "少年问道", got.Architecture.MainPlot)
	require.Len(t, got.Characters, 2)
	assert.Equal(t, "林凡", got.Characters[0].Name)
	assert.NotEqual(t, got.Characters[0].ID, got.Characters[1].ID)
	assert.NotEqual(t, "old", got.Characters[0].ID)
}

func TestArchitect_GenerateArchitectureNeedsIdea(t *testing.T) {
	a, s, _ := newArchitect(t)
	p := seed(t, s, func(p *entity.Project) { p.Idea = " " })

	_, err := a.GenerateArchitecture(context.Background(), p.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUserInput))
}

func TestArchitect_GenerateArchitectureFailureKeepsProject(t *testing.T) {
	a, s, gen := newArchitect(t)
	p := seed(t, s, func(p *entity.Project) { p.Architecture.MainPlot = "原主线" })
	gen.err = workflowport.ErrUnauthorized

	_, err := a.GenerateArchitecture(context.Background(), p.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeLLMCallFailed))
	got, _ := s.Get(context.Background(), p.ID)
	assert.Equal(t, "原主线", got.Architecture.MainPlot)
}

func TestArchitect_GenerateWorldField(t *testing.T) {
	a, s, gen := newArchitect(t)
	p := seed(t, s, func(p *entity.Project) {
		p.Architecture.WorldBible.PowerSystem = "九境"
		p.Architecture.WorldBible.Rules = "旧法则"
	})
	gen.field = "天道无情"

	text, err := a.GenerateWorldField(context.Background(), p.ID, entity.WorldFieldRules)
	require.NoError(t, err)
	assert.Equal(t, "天道无情", text)
	assert.Equal(t, "核心法则", gen.fieldIn.Label)
	assert.Contains(t, gen.fieldIn.Context, "九境")
	assert.NotContains(t, gen.fieldIn.Context, "旧法则")

	got, _ := s.Get(context.Background(), p.ID)
	assert.Equal(t, "天道无情", got.Architecture.WorldBible.Rules)

	_, err = a.GenerateWorldField(context.Background(), p.ID, "weather")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidParam))
}

func TestArchitect_GeneratePlotStructure(t *testing.T) {
	a, s, gen := newArchitect(t)
	gen.structure = "第一卷……"

	empty := seed(t, s, nil)
	_, err := a.GeneratePlotStructure(context.Background(), empty.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUserInput))

	p := seed(t, s, func(p *entity.Project) { p.Architecture.MainPlot = "少年问道" })
	text, err := a.GeneratePlotStructure(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "第一卷……", text)
	got, _ := s.Get(context.Background(), p.ID)
	assert.Equal(t, "第一卷……", got.Architecture.PlotStructure)
}

func TestArchitect_GenerateSideQuestsAppends(t *testing.T) {
	a, s, gen := newArchitect(t)
	p := seed(t, s, func(p *entity.Project) {
		p.Architecture.MainPlot = "少年问道"
		p.Architecture.SideQuests = []entity.SideQuest{{ID: "q0", Title: "旧支线"}}
	})
	gen.quests = []wfmodel.SideQuestDraft{
		{Title: "古墓探秘", TimelineStage: "前期"},
		{Title: "拍卖会"},
	}

	quests, err := a.GenerateSideQuests(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, quests, 2)
	assert.Equal(t, "古墓探秘 [前期]", quests[0].Title)
	assert.Equal(t, "拍卖会", quests[1].Title)
	assert.NotNil(t, quests[1].AssociatedCharacters)

	got, _ := s.Get(context.Background(), p.ID)
	require.Len(t, got.Architecture.SideQuests, 3)
	assert.Equal(t, "q0", got.Architecture.SideQuests[0].ID)
}

func TestArchitect_RewriteSideQuestKeepsID(t *testing.T) {
	a, s, gen := newArchitect(t)
	p := seed(t, s, func(p *entity.Project) {
		p.Architecture.SideQuests = []entity.SideQuest{{ID: "q1", Title: "旧", AssociatedCharacters: []string{"林凡"}}}
	})
	gen.rewrite = wfmodel.SideQuestDraft{Title: "新", Process: "一波三折"}

	q, err := a.RewriteSideQuest(context.Background(), p.ID, "q1", "更曲折")
	require.NoError(t, err)
	assert.Equal(t, "q1", q.ID)
	assert.Equal(t, "新", q.Title)
	assert.Equal(t, []string{"林凡"}, q.AssociatedCharacters)

	_, err = a.RewriteSideQuest(context.Background(), p.ID, "missing", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeQuestNotFound))
}

func TestArchitect_RefineCharacter(t *testing.T) {
	a, s, gen := newArchitect(t)
	p := seed(t, s, func(p *entity.Project) {
		p.Characters = []entity.Character{{ID: "c1", Name: "林凡", Role: "主角", Traits: "木讷", Bio: "山村少年"}}
	})
	gen.refine = wfmodel.CharacterDraft{Name: "改名无效", Traits: "外冷内热", PlotFunction: "串起主线"}

	c, err := a.RefineCharacter(context.Background(), p.ID, "c1", "更立体")
	require.NoError(t, err)
	assert.Equal(t, "林凡", c.Name)
	assert.Equal(t, "外冷内热", c.Traits)
	assert.Equal(t, "山村少年", c.Bio, "blank fields keep the old value")
	assert.Equal(t, "串起主线", c.PlotFunction)
	assert.Contains(t, gen.refineIn.CurrentJSON, "木讷")

	_, err = a.RefineCharacter(context.Background(), p.ID, "nobody", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCharacterNotFound))
}

func TestArchitect_BlendIdea(t *testing.T) {
	a, s, gen := newArchitect(t)
	p := seed(t, s, nil)
	gen.idea = "赛博修仙"

	_, err := a.BlendIdea(context.Background(), p.ID, []string{" "}, "", false)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUserInput))

	idea, err := a.BlendIdea(context.Background(), p.ID, []string{"修仙", " 赛博 "}, "", true)
	require.NoError(t, err)
	assert.Equal(t, "赛博修仙", idea)
	assert.Equal(t, []string{"修仙", "赛博"}, gen.ideaIn.Tags)
	assert.True(t, gen.ideaIn.Strict)

	got, _ := s.Get(context.Background(), p.ID)
	assert.Equal(t, "赛博修仙", got.Idea)
}
