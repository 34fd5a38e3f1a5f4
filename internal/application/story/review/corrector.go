package review

import (
	"context"
	"strings"

	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/domain/entity"
	wfmodel "novel-studio-api/internal/workflow/model"
	wfnode "novel-studio-api/internal/workflow/node"
	apperrors "novel-studio-api/pkg/errors"
	"novel-studio-api/pkg/logger"
)

// LogicScanner 章节逻辑扫描，由 workflow/chain.Generator 实现
type LogicScanner interface {
	ScanLogic(ctx context.Context, in *wfmodel.LogicScanInput) ([]wfmodel.LogicIssueDraft, error)
}

// LogicIssue 单章逻辑问题。ChapterID 在扫描时确定，之后按 ID 而不是下标定位章节
type LogicIssue struct {
	ChapterID    string `json:"chapterId"`
	ChapterIndex int    `json:"chapterIndex"`
	Title        string `json:"title"`
	Reason       string `json:"reason"`
	NewSummary   string `json:"newSummary"`
}

// ApplyResult 批量应用结果
type ApplyResult struct {
	Applied []string `json:"applied"`
	Skipped int      `json:"skipped"`
}

// Corrector 扫描章节逻辑问题并批量替换细纲
type Corrector struct {
	runner  *storyutil.Runner
	scanner LogicScanner
}

func NewCorrector(runner *storyutil.Runner, scanner LogicScanner) *Corrector {
	return &Corrector{runner: runner, scanner: scanner}
}

// Scan 对照主线检查全部章节。不修改项目。
func (c *Corrector) Scan(ctx context.Context, projectID string) ([]LogicIssue, error) {
	return storyutil.Run(ctx, c.runner, projectID, "logic_scan", func(ctx context.Context, snap *entity.Project) ([]LogicIssue, error) {
		if len(snap.Chapters) == 0 {
			return nil, apperrors.ErrUserInput.WithDetail("no chapters to scan")
		}
		structure := strings.TrimSpace(snap.Architecture.PlotStructure)
		if structure == "" {
			structure = strings.TrimSpace(snap.Architecture.MainPlot)
		}
		if err := storyutil.RequireText(structure, "main plot"); err != nil {
			return nil, err
		}
		briefs := make([]wfmodel.ChapterBrief, 0, len(snap.Chapters))
		for i, ch := range snap.Chapters {
			briefs = append(briefs, wfmodel.ChapterBrief{Index: i, Title: ch.Title, Summary: ch.Summary})
		}
		drafts, err := c.scanner.ScanLogic(ctx, &wfmodel.LogicScanInput{Structure: structure, Chapters: briefs})
		if err != nil {
			return nil, err
		}

		issues := make([]LogicIssue, 0, len(drafts))
		for _, d := range drafts {
			if d.ChapterIndex < 0 || d.ChapterIndex >= len(snap.Chapters) {
				logger.Warn(ctx, "logic issue references unknown chapter", "chapter_index", d.ChapterIndex)
				continue
			}
			ch := snap.Chapters[d.ChapterIndex]
			issues = append(issues, LogicIssue{
				ChapterID:    ch.ID,
				ChapterIndex: d.ChapterIndex,
				Title:        wfnode.FirstNonEmpty(d.Title, ch.Title),
				Reason:       d.Reason,
				NewSummary:   d.NewSummary,
			})
		}
		return issues, nil
	})
}

// Filter 去掉章节已不存在的问题，并按当前顺序刷新下标
func Filter(p *entity.Project, issues []LogicIssue) []LogicIssue {
	out := make([]LogicIssue, 0, len(issues))
	for _, is := range issues {
		idx := p.ChapterIndex(is.ChapterID)
		if idx < 0 {
			continue
		}
		is.ChapterIndex = idx
		out = append(out, is)
	}
	return out
}

// Pending 读取项目当前状态并过滤问题列表，用于展示前的校验
func (c *Corrector) Pending(ctx context.Context, projectID string, issues []LogicIssue) ([]LogicIssue, error) {
	p, err := c.runner.Projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return Filter(p, issues), nil
}

// ApplyAll 一次性替换所有仍然有效章节的细纲；失效的问题被跳过，不影响其他问题
func (c *Corrector) ApplyAll(ctx context.Context, projectID string, issues []LogicIssue) (*ApplyResult, error) {
	res := &ApplyResult{Applied: []string{}}
	_, err := c.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		res.Applied = res.Applied[:0]
		for _, is := range Filter(p, issues) {
			if strings.TrimSpace(is.NewSummary) == "" {
				continue
			}
			p.Chapters[is.ChapterIndex].Summary = is.NewSummary
			res.Applied = append(res.Applied, is.ChapterID)
		}
		res.Skipped = len(issues) - len(res.Applied)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(logger.WithProject(ctx, projectID), "logic fixes applied", "applied", len(res.Applied), "skipped", res.Skipped)
	return res, nil
}
