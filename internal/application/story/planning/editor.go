package planning

import (
	"context"
	"fmt"
	"strings"

	"novel-studio-api/internal/application/story/stage"
	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/domain/entity"
	domainservice "novel-studio-api/internal/domain/service"
	wfmodel "novel-studio-api/internal/workflow/model"
	wfnode "novel-studio-api/internal/workflow/node"
	apperrors "novel-studio-api/pkg/errors"
	"novel-studio-api/pkg/logger"
)

// 插入章节的占位内容
const (
	placeholderTitle    = "新插入章节"
	placeholderSummary  = "点击重写以自动生成过渡内容..."
	placeholderGuidance = "建议补充过渡情节"
)

// MinChaptersForResync 反向修正主线构架所需的最少章节数
const MinChaptersForResync = 5

// ChapterPatch 手动编辑章节，nil 字段保持不变
type ChapterPatch struct {
	Title           *string `json:"title"`
	Summary         *string `json:"summary"`
	WritingGuidance *string `json:"writingGuidance"`
}

// Editor 章节列表的编辑与单章生成
type Editor struct {
	runner  *storyutil.Runner
	planner Planner
	opts    Options
}

func NewEditor(runner *storyutil.Runner, planner Planner, opts Options) *Editor {
	return &Editor{runner: runner, planner: planner, opts: opts}
}

// DeleteChapter 删除章节及其正文，进度按固定降幅下调
func (e *Editor) DeleteChapter(ctx context.Context, projectID, chapterID string) (*entity.Project, error) {
	ctx = logger.WithProject(ctx, projectID)
	p, err := e.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		idx := p.ChapterIndex(chapterID)
		if idx < 0 {
			return apperrors.ErrChapterNotFound.WithDetail(chapterID)
		}
		p.Chapters = append(p.Chapters[:idx], p.Chapters[idx+1:]...)
		delete(p.Content, chapterID)
		p.PlotProgress = domainservice.ProgressAfterDelete(p.PlotProgress, 1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "chapter deleted", "chapter_id", chapterID, "progress", p.PlotProgress)
	return p, nil
}

// InsertChapter 在 afterIndex 之后插入占位章节；afterIndex 为 -1 时插到最前
func (e *Editor) InsertChapter(ctx context.Context, projectID string, afterIndex int) (entity.Chapter, error) {
	ch := entity.NewChapter(placeholderTitle, placeholderSummary, placeholderGuidance)
	_, err := e.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		if afterIndex < -1 || afterIndex >= len(p.Chapters) {
			return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("insert position %d out of range", afterIndex))
		}
		at := afterIndex + 1
		p.Chapters = append(p.Chapters, entity.Chapter{})
		copy(p.Chapters[at+1:], p.Chapters[at:])
		p.Chapters[at] = ch
		return nil
	})
	if err != nil {
		return entity.Chapter{}, err
	}
	return ch, nil
}

// EditChapter 手动修改章节字段
func (e *Editor) EditChapter(ctx context.Context, projectID, chapterID string, patch ChapterPatch) (entity.Chapter, error) {
	var out entity.Chapter
	_, err := e.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		idx := p.ChapterIndex(chapterID)
		if idx < 0 {
			return apperrors.ErrChapterNotFound.WithDetail(chapterID)
		}
		ch := &p.Chapters[idx]
		if patch.Title != nil {
			ch.Title = *patch.Title
		}
		if patch.Summary != nil {
			ch.Summary = *patch.Summary
		}
		if patch.WritingGuidance != nil {
			ch.WritingGuidance = *patch.WritingGuidance
		}
		out = *ch
		return nil
	})
	return out, err
}

// RewriteChapter 参考前后章节重写单章标题、细纲与写作指导
func (e *Editor) RewriteChapter(ctx context.Context, projectID, chapterID, instruction string) (entity.Chapter, error) {
	return storyutil.Run(ctx, e.runner, projectID, "chapter_rewrite", func(ctx context.Context, snap *entity.Project) (entity.Chapter, error) {
		idx := snap.ChapterIndex(chapterID)
		if idx < 0 {
			return entity.Chapter{}, apperrors.ErrChapterNotFound.WithDetail(chapterID)
		}
		in := &wfmodel.ChapterRewriteInput{
			ChapterNumber: idx + 1,
			Structure:     sourceMaterial(snap),
			Title:         snap.Chapters[idx].Title,
			Instruction:   strings.TrimSpace(instruction),
		}
		if idx > 0 {
			in.PrevSummary = snap.Chapters[idx-1].Summary
		}
		if idx+1 < len(snap.Chapters) {
			in.NextSummary = snap.Chapters[idx+1].Summary
		}

		stub, err := e.planner.RewriteChapter(ctx, in)
		if err != nil {
			return entity.Chapter{}, err
		}

		var out entity.Chapter
		_, err = e.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
			i := p.ChapterIndex(chapterID)
			if i < 0 {
				return apperrors.ErrChapterNotFound.WithDetail(chapterID)
			}
			p.Chapters[i].Title = stub.Title
			p.Chapters[i].Summary = stub.Summary
			p.Chapters[i].WritingGuidance = stub.WritingGuidance
			out = p.Chapters[i]
			return nil
		})
		return out, err
	})
}

// ResyncStructure 依据已有章节反向修正主线构架
func (e *Editor) ResyncStructure(ctx context.Context, projectID string) (string, error) {
	return storyutil.Run(ctx, e.runner, projectID, "structure_resync", func(ctx context.Context, snap *entity.Project) (string, error) {
		if len(snap.Chapters) < MinChaptersForResync {
			return "", apperrors.ErrUserInput.WithDetail(fmt.Sprintf("at least %d chapters are required", MinChaptersForResync))
		}
		summaries := make([]string, 0, len(snap.Chapters))
		for _, c := range snap.Chapters {
			summaries = append(summaries, c.Summary)
		}
		text, err := e.planner.ResyncStructure(ctx, &wfmodel.StructureResyncInput{
			OldStructure: sourceMaterial(snap),
			Summaries:    summaries,
		})
		if err != nil {
			return "", err
		}
		_, err = e.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
			p.Architecture.PlotStructure = text
			return nil
		})
		return text, err
	})
}

// SuggestCast 根据剧情需要推荐下一批登场角色；没有匹配到任何角色时返回空列表
func (e *Editor) SuggestCast(ctx context.Context, projectID string, batchSize int, increment *int) ([]entity.Character, error) {
	return storyutil.Run(ctx, e.runner, projectID, "cast_select", func(ctx context.Context, snap *entity.Project) ([]entity.Character, error) {
		if err := stage.Require(snap, entity.StagePlanning); err != nil {
			return nil, err
		}
		if len(snap.Characters) == 0 {
			return nil, apperrors.ErrUserInput.WithDetail("character list is empty")
		}
		inc := e.opts.DefaultIncrement
		if increment != nil {
			inc = *increment
		}
		if batchSize <= 0 || batchSize > e.opts.maxBatch() {
			batchSize = e.opts.defaultBatch()
		}
		target := snap.PlotProgress + inc
		if target > 100 {
			target = 100
		}

		names, err := e.planner.SelectCast(ctx, &wfmodel.CastSelectInput{
			Structure:      wfnode.FirstNonEmpty(sourceMaterial(snap), "未提供主线"),
			Progress:       snap.PlotProgress,
			TargetProgress: target,
			BatchSize:      batchSize,
			Characters:     storyutil.CharacterBriefs(snap.Characters),
		})
		if err != nil {
			return nil, err
		}
		picked := resolveCast(snap.Characters, names)
		logger.Info(ctx, "cast suggested", "proposed", len(names), "matched", len(picked))
		return picked, nil
	})
}
