package chapter

import (
	"context"
	"strings"

	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/domain/entity"
	wfmodel "novel-studio-api/internal/workflow/model"
	wfnode "novel-studio-api/internal/workflow/node"
	apperrors "novel-studio-api/pkg/errors"
)

// AnalyzeStyle 拆解参考文本的文风并开启模仿。样本只取前 StyleSampleRunes 个字符。
func (w *Writer) AnalyzeStyle(ctx context.Context, projectID, name, sample string) (entity.MimicrySettings, error) {
	if err := storyutil.RequireText(sample, "reference text"); err != nil {
		return entity.MimicrySettings{}, err
	}
	if w.analyzer == nil {
		return entity.MimicrySettings{}, apperrors.ErrServiceUnavailable.WithDetail("style analysis not configured")
	}
	return storyutil.Run(ctx, w.runner, projectID, "style_analysis", func(ctx context.Context, _ *entity.Project) (entity.MimicrySettings, error) {
		prompt, err := w.analyzer.AnalyzeStyle(ctx, &wfmodel.StyleAnalysisInput{
			Sample: wfnode.TruncateByRunes(strings.TrimSpace(sample), w.opts.StyleSampleRunes),
		})
		if err != nil {
			return entity.MimicrySettings{}, err
		}
		m := entity.MimicrySettings{
			Active:            true,
			Name:              wfnode.FirstNonEmpty(name, "自定义文风"),
			CustomStylePrompt: strings.TrimSpace(prompt),
		}
		_, err = w.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
			p.Mimicry = m
			return nil
		})
		return m, err
	})
}

// SetMimicry 手动设置模仿开关与作家名；CustomStylePrompt 为空时保留已有分析结果
func (w *Writer) SetMimicry(ctx context.Context, projectID string, m entity.MimicrySettings) (entity.MimicrySettings, error) {
	var out entity.MimicrySettings
	_, err := w.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		prev := p.Mimicry
		p.Mimicry = entity.MimicrySettings{
			Active:            m.Active,
			Name:              strings.TrimSpace(m.Name),
			CustomStylePrompt: strings.TrimSpace(m.CustomStylePrompt),
		}
		if p.Mimicry.CustomStylePrompt == "" && p.Mimicry.Name == prev.Name {
			p.Mimicry.CustomStylePrompt = prev.CustomStylePrompt
		}
		out = p.Mimicry
		return nil
	})
	return out, err
}

// SaveContent 手动保存正文
func (w *Writer) SaveContent(ctx context.Context, projectID, chapterID, text string) error {
	_, err := w.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		if p.ChapterIndex(chapterID) < 0 {
			return apperrors.ErrChapterNotFound.WithDetail(chapterID)
		}
		p.SetContent(chapterID, text)
		return nil
	})
	return err
}
