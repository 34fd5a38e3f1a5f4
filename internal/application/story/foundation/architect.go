// Package foundation 实现架构阶段：创意、世界观、主线、角色与支线的生成。
package foundation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/domain/entity"
	wfmodel "novel-studio-api/internal/workflow/model"
	wfnode "novel-studio-api/internal/workflow/node"
	apperrors "novel-studio-api/pkg/errors"
	"novel-studio-api/pkg/logger"
)

// Generator 架构阶段使用的生成步骤，由 workflow/chain.Generator 实现
type Generator interface {
	GenerateArchitecture(ctx context.Context, in *wfmodel.ArchitectureInput) (*wfmodel.ArchitectureDraft, error)
	GenerateWorldField(ctx context.Context, in *wfmodel.WorldFieldInput) (string, error)
	GeneratePlotStructure(ctx context.Context, in *wfmodel.PlotStructureInput) (string, error)
	GenerateSideQuests(ctx context.Context, in *wfmodel.SideQuestsInput) ([]wfmodel.SideQuestDraft, error)
	RewriteSideQuest(ctx context.Context, in *wfmodel.SideQuestRewriteInput) (wfmodel.SideQuestDraft, error)
	RefineCharacter(ctx context.Context, in *wfmodel.CharacterRefineInput) (wfmodel.CharacterDraft, error)
	BlendIdea(ctx context.Context, in *wfmodel.IdeaBlendInput) (string, error)
}

type Architect struct {
	runner *storyutil.Runner
	gen    Generator
}

func NewArchitect(runner *storyutil.Runner, gen Generator) *Architect {
	return &Architect{runner: runner, gen: gen}
}

// GenerateArchitecture 由创意生成完整架构，覆盖世界观、主线、时间线与角色列表
func (a *Architect) GenerateArchitecture(ctx context.Context, projectID string) (*entity.Project, error) {
	return storyutil.Run(ctx, a.runner, projectID, "architecture", func(ctx context.Context, snap *entity.Project) (*entity.Project, error) {
		if err := storyutil.RequireText(snap.Idea, "idea"); err != nil {
			return nil, err
		}
		draft, err := a.gen.GenerateArchitecture(ctx, &wfmodel.ArchitectureInput{
			Idea:   snap.Idea,
			Styles: snap.Settings.Styles,
			Tones:  snap.Settings.Tones,
		})
		if err != nil {
			return nil, err
		}

		chars := make([]entity.Character, 0, len(draft.Characters))
		for _, c := range draft.Characters {
			chars = append(chars, newCharacter(c))
		}
		return a.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
			if t := strings.TrimSpace(draft.Title); t != "" {
				p.Title = t
			}
			for _, f := range entity.WorldFields {
				if v, ok := draft.WorldBible[string(f)]; ok {
					p.Architecture.WorldBible.Set(f, v)
				}
			}
			p.Architecture.MainPlot = draft.MainPlot
			p.Architecture.Timeline = draft.Timeline
			p.Characters = chars
			return nil
		})
	})
}

// GenerateWorldField 单独生成一个世界观字段，其余已填写字段作为参考
func (a *Architect) GenerateWorldField(ctx context.Context, projectID string, field entity.WorldField) (string, error) {
	var probe entity.WorldBible
	if _, ok := probe.Get(field); !ok {
		return "", apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unknown world field %q", field))
	}
	return storyutil.Run(ctx, a.runner, projectID, "world_field", func(ctx context.Context, snap *entity.Project) (string, error) {
		if err := storyutil.RequireText(snap.Idea, "idea"); err != nil {
			return "", err
		}
		others := snap.Architecture.WorldBible
		others.Set(field, "")
		text, err := a.gen.GenerateWorldField(ctx, &wfmodel.WorldFieldInput{
			Idea:    snap.Idea,
			Label:   field.Label(),
			Context: storyutil.WorldBrief(&others),
		})
		if err != nil {
			return "", err
		}
		_, err = a.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
			p.Architecture.WorldBible.Set(field, text)
			return nil
		})
		return text, err
	})
}

// GeneratePlotStructure 由主线、世界观与角色展开详细剧情结构
func (a *Architect) GeneratePlotStructure(ctx context.Context, projectID string) (string, error) {
	return storyutil.Run(ctx, a.runner, projectID, "plot_structure", func(ctx context.Context, snap *entity.Project) (string, error) {
		if err := storyutil.RequireText(snap.Architecture.MainPlot, "main plot"); err != nil {
			return "", err
		}
		text, err := a.gen.GeneratePlotStructure(ctx, &wfmodel.PlotStructureInput{
			MainPlot:   snap.Architecture.MainPlot,
			WorldBrief: storyutil.WorldBrief(&snap.Architecture.WorldBible),
			Characters: storyutil.CharacterBriefs(snap.Characters),
		})
		if err != nil {
			return "", err
		}
		_, err = a.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
			p.Architecture.PlotStructure = text
			return nil
		})
		return text, err
	})
}

// GenerateSideQuests 生成一组支线并追加到架构中
func (a *Architect) GenerateSideQuests(ctx context.Context, projectID string) ([]entity.SideQuest, error) {
	return storyutil.Run(ctx, a.runner, projectID, "side_quests", func(ctx context.Context, snap *entity.Project) ([]entity.SideQuest, error) {
		if err := storyutil.RequireText(snap.Architecture.MainPlot, "main plot"); err != nil {
			return nil, err
		}
		drafts, err := a.gen.GenerateSideQuests(ctx, &wfmodel.SideQuestsInput{
			MainPlot:   snap.Architecture.MainPlot,
			Characters: storyutil.CharacterBriefs(snap.Characters),
		})
		if err != nil {
			return nil, err
		}
		quests := make([]entity.SideQuest, 0, len(drafts))
		for _, d := range drafts {
			q := sideQuestFrom(d)
			q.ID = entity.NewID()
			if stage := strings.TrimSpace(d.TimelineStage); stage != "" {
				q.Title = fmt.Sprintf("%s [%s]", q.Title, stage)
			}
			quests = append(quests, q)
		}
		_, err = a.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
			p.Architecture.SideQuests = append(p.Architecture.SideQuests, quests...)
			return nil
		})
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "side quests appended", "count", len(quests))
		return quests, nil
	})
}

// RewriteSideQuest 按指令重写一条支线，保留原 ID
func (a *Architect) RewriteSideQuest(ctx context.Context, projectID, questID, instruction string) (entity.SideQuest, error) {
	return storyutil.Run(ctx, a.runner, projectID, "side_quest_rewrite", func(ctx context.Context, snap *entity.Project) (entity.SideQuest, error) {
		idx := snap.Architecture.SideQuestIndex(questID)
		if idx < 0 {
			return entity.SideQuest{}, apperrors.ErrQuestNotFound.WithDetail(questID)
		}
		cur := snap.Architecture.SideQuests[idx]
		d, err := a.gen.RewriteSideQuest(ctx, &wfmodel.SideQuestRewriteInput{
			MainPlot:    snap.Architecture.MainPlot,
			Characters:  storyutil.CharacterBriefs(snap.Characters),
			Title:       cur.Title,
			Location:    cur.Location,
			Origin:      cur.Origin,
			Process:     cur.Process,
			Instruction: strings.TrimSpace(instruction),
		})
		if err != nil {
			return entity.SideQuest{}, err
		}
		q := sideQuestFrom(d)
		q.ID = questID
		if len(q.AssociatedCharacters) == 0 {
			q.AssociatedCharacters = cur.AssociatedCharacters
		}
		_, err = a.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
			i := p.Architecture.SideQuestIndex(questID)
			if i < 0 {
				return apperrors.ErrQuestNotFound.WithDetail(questID)
			}
			p.Architecture.SideQuests[i] = q
			return nil
		})
		return q, err
	})
}

// RefineCharacter 按指令重写角色的性格、小传与剧情功能，名字与 ID 不变
func (a *Architect) RefineCharacter(ctx context.Context, projectID, characterID, instruction string) (entity.Character, error) {
	return storyutil.Run(ctx, a.runner, projectID, "character_refine", func(ctx context.Context, snap *entity.Project) (entity.Character, error) {
		cur, ok := findCharacter(snap, characterID)
		if !ok {
			return entity.Character{}, apperrors.ErrCharacterNotFound.WithDetail(characterID)
		}
		current, err := json.Marshal(map[string]string{
			"name":         cur.Name,
			"role":         cur.Role,
			"plotFunction": cur.PlotFunction,
			"traits":       cur.Traits,
			"bio":          cur.Bio,
		})
		if err != nil {
			return entity.Character{}, apperrors.ErrInternalError.WithError(err)
		}
		d, err := a.gen.RefineCharacter(ctx, &wfmodel.CharacterRefineInput{
			Name:        cur.Name,
			MainPlot:    snap.Architecture.MainPlot,
			CurrentJSON: string(current),
			Instruction: strings.TrimSpace(instruction),
		})
		if err != nil {
			return entity.Character{}, err
		}

		var out entity.Character
		_, err = a.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
			for i := range p.Characters {
				c := &p.Characters[i]
				if c.ID != characterID {
					continue
				}
				c.Traits = wfnode.FirstNonEmpty(d.Traits, c.Traits)
				c.Bio = wfnode.FirstNonEmpty(d.Bio, c.Bio)
				c.PlotFunction = wfnode.FirstNonEmpty(d.PlotFunction, c.PlotFunction)
				out = *c
				return nil
			}
			return apperrors.ErrCharacterNotFound.WithDetail(characterID)
		})
		return out, err
	})
}

// BlendIdea 由标签与自定义描述融合出创意，写入项目
func (a *Architect) BlendIdea(ctx context.Context, projectID string, tags []string, custom string, strict bool) (string, error) {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 && strings.TrimSpace(custom) == "" {
		return "", apperrors.ErrUserInput.WithDetail("at least one tag or a custom description is required")
	}
	return storyutil.Run(ctx, a.runner, projectID, "idea_blend", func(ctx context.Context, _ *entity.Project) (string, error) {
		idea, err := a.gen.BlendIdea(ctx, &wfmodel.IdeaBlendInput{Tags: clean, Custom: strings.TrimSpace(custom), Strict: strict})
		if err != nil {
			return "", err
		}
		_, err = a.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
			p.Idea = idea
			return nil
		})
		return idea, err
	})
}

func newCharacter(d wfmodel.CharacterDraft) entity.Character {
	return entity.Character{
		ID:           entity.NewID(),
		Name:         strings.TrimSpace(d.Name),
		Role:         d.Role,
		PlotFunction: d.PlotFunction,
		Traits:       d.Traits,
		Bio:          d.Bio,
	}
}

func sideQuestFrom(d wfmodel.SideQuestDraft) entity.SideQuest {
	chars := d.AssociatedCharacters
	if chars == nil {
		chars = []string{}
	}
	return entity.SideQuest{
		Title:                strings.TrimSpace(d.Title),
		Location:             d.Location,
		Origin:               d.Origin,
		Process:              d.Process,
		RewardOrImpact:       d.RewardOrImpact,
		AssociatedCharacters: chars,
	}
}

func findCharacter(p *entity.Project, id string) (entity.Character, bool) {
	for _, c := range p.Characters {
		if c.ID == id {
			return c, true
		}
	}
	return entity.Character{}, false
}
