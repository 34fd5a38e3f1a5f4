// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"novel-studio-api/internal/domain/entity"
)

// ProjectSummary 项目列表条目
type ProjectSummary struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	CurrentStep  entity.Stage `json:"currentStep"`
	PlotProgress int          `json:"plotProgress"`
	ChapterCount int          `json:"chapterCount"`
	LastModified time.Time    `json:"lastModified"`
}

// SummaryOf 由项目构造列表条目
func SummaryOf(p *entity.Project) ProjectSummary {
	return ProjectSummary{
		ID:           p.ID,
		Title:        p.Title,
		CurrentStep:  p.CurrentStep,
		PlotProgress: p.PlotProgress,
		ChapterCount: len(p.Chapters),
		LastModified: p.LastModified,
	}
}

// ProjectRepository 项目仓储接口
// 项目作为整体文档存取，单次 Save 为原子写入。
type ProjectRepository interface {
	// Save 创建或覆盖项目
	Save(ctx context.Context, project *entity.Project) error

	// GetByID 根据 ID 获取项目，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.Project, error)

	// Delete 删除项目
	Delete(ctx context.Context, id string) error

	// List 获取全部项目，按最后修改时间倒序
	List(ctx context.Context) ([]*entity.Project, error)
}
