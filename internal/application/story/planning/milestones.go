package planning

import (
	"context"
	"strings"

	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/domain/entity"
	domainservice "novel-studio-api/internal/domain/service"
	wfmodel "novel-studio-api/internal/workflow/model"
	apperrors "novel-studio-api/pkg/errors"
)

// MilestoneInput 新建或编辑里程碑
type MilestoneInput struct {
	Type                 string `json:"type"`
	Name                 string `json:"name"`
	Description          string `json:"description"`
	ExpectedChapterRange string `json:"expectedChapterRange"`
}

// ExtractMilestones 从主线构架提取关键节点，替换现有列表
func (e *Editor) ExtractMilestones(ctx context.Context, projectID string, estimatedTotal *int) ([]entity.KeyMilestone, error) {
	return storyutil.Run(ctx, e.runner, projectID, "milestones", func(ctx context.Context, snap *entity.Project) ([]entity.KeyMilestone, error) {
		source := sourceMaterial(snap)
		if err := storyutil.RequireText(source, "main plot"); err != nil {
			return nil, err
		}
		total := e.opts.EstimatedTotalChapters
		if estimatedTotal != nil && *estimatedTotal > 0 {
			total = *estimatedTotal
		}
		drafts, err := e.planner.ExtractMilestones(ctx, &wfmodel.MilestonesInput{Structure: source, TotalChapters: total})
		if err != nil {
			return nil, err
		}
		ms := make([]entity.KeyMilestone, 0, len(drafts))
		for _, d := range drafts {
			ms = append(ms, buildMilestone(MilestoneInput{
				Type:                 d.Type,
				Name:                 d.Name,
				Description:          d.Description,
				ExpectedChapterRange: d.ExpectedChapterRange,
			}))
		}
		_, err = e.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
			p.Architecture.KeyMilestones = ms
			return nil
		})
		if err != nil {
			return nil, err
		}
		return ms, nil
	})
}

// AddMilestone 手动新增里程碑
func (e *Editor) AddMilestone(ctx context.Context, projectID string, in MilestoneInput) (entity.KeyMilestone, error) {
	if err := storyutil.RequireText(in.Name, "milestone name"); err != nil {
		return entity.KeyMilestone{}, err
	}
	m := buildMilestone(in)
	_, err := e.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		p.Architecture.KeyMilestones = append(p.Architecture.KeyMilestones, m)
		return nil
	})
	return m, err
}

// UpdateMilestone 编辑里程碑并重新解析区间
func (e *Editor) UpdateMilestone(ctx context.Context, projectID, milestoneID string, in MilestoneInput) (entity.KeyMilestone, error) {
	var out entity.KeyMilestone
	_, err := e.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		for i := range p.Architecture.KeyMilestones {
			if p.Architecture.KeyMilestones[i].ID != milestoneID {
				continue
			}
			m := buildMilestone(in)
			m.ID = milestoneID
			p.Architecture.KeyMilestones[i] = m
			out = m
			return nil
		}
		return apperrors.ErrNotFound.WithDetail("milestone " + milestoneID)
	})
	return out, err
}

// DeleteMilestone 删除里程碑
func (e *Editor) DeleteMilestone(ctx context.Context, projectID, milestoneID string) error {
	_, err := e.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		ms := p.Architecture.KeyMilestones
		for i := range ms {
			if ms[i].ID == milestoneID {
				p.Architecture.KeyMilestones = append(ms[:i], ms[i+1:]...)
				return nil
			}
		}
		return apperrors.ErrNotFound.WithDetail("milestone " + milestoneID)
	})
	return err
}

func buildMilestone(in MilestoneInput) entity.KeyMilestone {
	m := entity.KeyMilestone{
		ID:                   entity.NewID(),
		Type:                 entity.ParseMilestoneType(in.Type),
		Name:                 strings.TrimSpace(in.Name),
		Description:          strings.TrimSpace(in.Description),
		ExpectedChapterRange: in.ExpectedChapterRange,
	}
	domainservice.NormalizeMilestone(&m)
	return m
}
