// Package stage 控制 架构 -> 规划 -> 写作 三个阶段的推进。
package stage

import (
	"context"
	"fmt"
	"strings"

	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/domain/entity"
	apperrors "novel-studio-api/pkg/errors"
	"novel-studio-api/pkg/logger"
)

// Gate 检查项目是否满足进入 to 阶段的条件
func Gate(p *entity.Project, to entity.Stage) error {
	switch to {
	case entity.StageArchitecture:
		return nil
	case entity.StagePlanning:
		if strings.TrimSpace(p.Idea) == "" {
			return apperrors.ErrStageBlocked.WithDetail("idea is required before planning")
		}
		if !p.Architecture.WorldBible.Populated() && strings.TrimSpace(p.Architecture.MainPlot) == "" {
			return apperrors.ErrStageBlocked.WithDetail("at least one architecture field is required before planning")
		}
		return nil
	case entity.StageWriting:
		if len(p.Chapters) == 0 {
			return apperrors.ErrStageBlocked.WithDetail("at least one chapter is required before writing")
		}
		return nil
	default:
		return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unknown stage %d", to))
	}
}

// Require 项目的最高阶段未达到 want 时拒绝
func Require(p *entity.Project, want entity.Stage) error {
	if p.CurrentStep < want {
		return apperrors.ErrStageBlocked.WithDetail(fmt.Sprintf("project is at stage %s, %s required", p.CurrentStep, want))
	}
	return nil
}

// Controller 推进与浏览阶段。CurrentStep 是最高进度标记，只会前进
type Controller struct {
	projects storyutil.Projects
}

func NewController(projects storyutil.Projects) *Controller {
	return &Controller{projects: projects}
}

// Advance 推进到下一阶段；已在写作阶段时拒绝
func (c *Controller) Advance(ctx context.Context, projectID string) (*entity.Project, error) {
	ctx = logger.WithProject(ctx, projectID)
	var from, to entity.Stage
	p, err := c.projects.Update(ctx, projectID, func(p *entity.Project) error {
		from = p.CurrentStep
		if from >= entity.StageWriting {
			return apperrors.ErrStageBlocked.WithDetail("already at the final stage")
		}
		to = from + 1
		if err := Gate(p, to); err != nil {
			return err
		}
		p.CurrentStep = to
		return nil
	})
	if err != nil {
		logger.Warn(ctx, "stage advance rejected", "from", from.String(), "error", err.Error())
		return nil, err
	}
	logger.Info(ctx, "stage advanced", "from", from.String(), "to", to.String())
	return p, nil
}

// Navigate 校验能否查看 to 阶段；只允许不超过最高标记的阶段，不修改项目
func (c *Controller) Navigate(ctx context.Context, projectID string, to entity.Stage) (entity.Stage, error) {
	if !to.Valid() {
		return 0, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unknown stage %d", to))
	}
	p, err := c.projects.Get(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if to > p.CurrentStep {
		return 0, apperrors.ErrStageBlocked.WithDetail(fmt.Sprintf("stage %s not reached yet", to))
	}
	return to, nil
}
