package foundation

import (
	"context"
	"fmt"
	"strings"

	"novel-studio-api/internal/domain/entity"
	apperrors "novel-studio-api/pkg/errors"
)

// ArchitecturePatch 手动编辑架构，nil 字段保持不变
type ArchitecturePatch struct {
	Title         *string           `json:"title"`
	Idea          *string           `json:"idea"`
	MainPlot      *string           `json:"mainPlot"`
	PlotStructure *string           `json:"plotStructure"`
	Timeline      *string           `json:"timeline"`
	WorldBible    map[string]string `json:"worldBible"`
	Styles        []string          `json:"styles"`
	Tones         []string          `json:"tones"`
}

// CharacterInput 新建或编辑角色
type CharacterInput struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	PlotFunction string `json:"plotFunction"`
	Traits       string `json:"traits"`
	Bio          string `json:"bio"`
	ImageURL     string `json:"imageUrl"`
}

// Edit 应用手动修改
func (a *Architect) Edit(ctx context.Context, projectID string, patch ArchitecturePatch) (*entity.Project, error) {
	for k := range patch.WorldBible {
		var probe entity.WorldBible
		if _, ok := probe.Get(entity.WorldField(k)); !ok {
			return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unknown world field %q", k))
		}
	}
	return a.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		if patch.Title != nil {
			p.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Idea != nil {
			p.Idea = *patch.Idea
		}
		if patch.MainPlot != nil {
			p.Architecture.MainPlot = *patch.MainPlot
		}
		if patch.PlotStructure != nil {
			p.Architecture.PlotStructure = *patch.PlotStructure
		}
		if patch.Timeline != nil {
			p.Architecture.Timeline = *patch.Timeline
		}
		for k, v := range patch.WorldBible {
			p.Architecture.WorldBible.Set(entity.WorldField(k), v)
		}
		if patch.Styles != nil {
			p.Settings.Styles = patch.Styles
		}
		if patch.Tones != nil {
			p.Settings.Tones = patch.Tones
		}
		return nil
	})
}

// AddCharacter 新增角色
func (a *Architect) AddCharacter(ctx context.Context, projectID string, in CharacterInput) (entity.Character, error) {
	if strings.TrimSpace(in.Name) == "" {
		return entity.Character{}, apperrors.ErrUserInput.WithDetail("character name is required")
	}
	c := characterFrom(entity.NewID(), in)
	_, err := a.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		p.Characters = append(p.Characters, c)
		return nil
	})
	return c, err
}

// UpdateCharacter 覆盖角色信息
func (a *Architect) UpdateCharacter(ctx context.Context, projectID, characterID string, in CharacterInput) (entity.Character, error) {
	if strings.TrimSpace(in.Name) == "" {
		return entity.Character{}, apperrors.ErrUserInput.WithDetail("character name is required")
	}
	c := characterFrom(characterID, in)
	_, err := a.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		for i := range p.Characters {
			if p.Characters[i].ID == characterID {
				p.Characters[i] = c
				return nil
			}
		}
		return apperrors.ErrCharacterNotFound.WithDetail(characterID)
	})
	return c, err
}

// DeleteCharacter 删除角色
func (a *Architect) DeleteCharacter(ctx context.Context, projectID, characterID string) error {
	_, err := a.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		for i := range p.Characters {
			if p.Characters[i].ID == characterID {
				p.Characters = append(p.Characters[:i], p.Characters[i+1:]...)
				return nil
			}
		}
		return apperrors.ErrCharacterNotFound.WithDetail(characterID)
	})
	return err
}

// DeleteSideQuest 删除支线
func (a *Architect) DeleteSideQuest(ctx context.Context, projectID, questID string) error {
	_, err := a.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		i := p.Architecture.SideQuestIndex(questID)
		if i < 0 {
			return apperrors.ErrQuestNotFound.WithDetail(questID)
		}
		p.Architecture.SideQuests = append(p.Architecture.SideQuests[:i], p.Architecture.SideQuests[i+1:]...)
		return nil
	})
	return err
}

func characterFrom(id string, in CharacterInput) entity.Character {
	return entity.Character{
		ID:           id,
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		PlotFunction: in.PlotFunction,
		Traits:       in.Traits,
		Bio:          in.Bio,
		ImageURL:     in.ImageURL,
	}
}
