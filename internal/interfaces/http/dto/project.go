package dto

import (
	"time"

	"novel-studio-api/internal/domain/entity"
	"novel-studio-api/internal/domain/repository"
)

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Title string `json:"title" binding:"max=255"`
}

// ProjectSummaryResponse 项目列表条目
type ProjectSummaryResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CurrentStep  int       `json:"currentStep"`
	StageName    string    `json:"stageName"`
	PlotProgress int       `json:"plotProgress"`
	ChapterCount int       `json:"chapterCount"`
	LastModified time.Time `json:"lastModified"`
}

// ToProjectSummaryResponse 转换列表条目
func ToProjectSummaryResponse(s repository.ProjectSummary) ProjectSummaryResponse {
	return ProjectSummaryResponse{
		ID:           s.ID,
		Title:        s.Title,
		CurrentStep:  int(s.CurrentStep),
		StageName:    s.CurrentStep.String(),
		PlotProgress: s.PlotProgress,
		ChapterCount: s.ChapterCount,
		LastModified: s.LastModified,
	}
}

// ToProjectListResponse 转换项目列表
func ToProjectListResponse(items []repository.ProjectSummary) []ProjectSummaryResponse {
	out := make([]ProjectSummaryResponse, 0, len(items))
	for _, s := range items {
		out = append(out, ToProjectSummaryResponse(s))
	}
	return out
}

// StageRequest 阶段切换请求
type StageRequest struct {
	Stage int `json:"stage" binding:"required"`
}

// StageResponse 阶段信息
type StageResponse struct {
	Stage       int    `json:"stage"`
	StageName   string `json:"stageName"`
	CurrentStep int    `json:"currentStep"`
}

// NewStageResponse 构造阶段信息
func NewStageResponse(view entity.Stage, p *entity.Project) StageResponse {
	return StageResponse{Stage: int(view), StageName: view.String(), CurrentStep: int(p.CurrentStep)}
}

// TextResponse 单段文本结果
type TextResponse struct {
	Text string `json:"text"`
}
