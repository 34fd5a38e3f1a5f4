// Package chapter 实现写作阶段：章节正文生成、续写与文风分析。
package chapter

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"novel-studio-api/internal/application/story/stage"
	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/domain/entity"
	workflowchain "novel-studio-api/internal/workflow/chain"
	wfmodel "novel-studio-api/internal/workflow/model"
	wfnode "novel-studio-api/internal/workflow/node"
	apperrors "novel-studio-api/pkg/errors"
	"novel-studio-api/pkg/logger"
	"novel-studio-api/pkg/metrics"
)

// WriteMode 正文写入方式
type WriteMode string

const (
	// WriteAuto 覆盖已有正文
	WriteAuto WriteMode = "auto"
	// WriteContinue 在已有正文之后续写
	WriteContinue WriteMode = "continue"
)

// continueSeparator 续写内容与已有正文之间的分隔
const continueSeparator = "\n\n"

// Drafter 正文流水线，由 workflow/chain.DraftPipeline 实现
type Drafter interface {
	Run(ctx context.Context, mode workflowchain.DraftMode, in *wfmodel.DraftInput, observer workflowchain.PhaseObserver) (*wfmodel.DraftOutput, error)
}

// StyleAnalyzer 参考文本的文风拆解，由 workflow/chain.Generator 实现
type StyleAnalyzer interface {
	AnalyzeStyle(ctx context.Context, in *wfmodel.StyleAnalysisInput) (string, error)
}

// Options 写作参数
type Options struct {
	PrevContextRunes   int
	MemorySyncInterval int
	StyleSampleRunes   int
}

func DefaultOptions() Options {
	return Options{
		PrevContextRunes:   2000,
		MemorySyncInterval: 10,
		StyleSampleRunes:   15000,
	}
}

// WriteRequest 单章正文生成参数
type WriteRequest struct {
	ChapterID string
	Mode      workflowchain.DraftMode
	WriteMode WriteMode
}

// WriteResult 生成结果
type WriteResult struct {
	ChapterID string `json:"chapterId"`
	// Content 写入后的完整正文
	Content   string                  `json:"content"`
	Generated string                  `json:"generated"`
	Mode      workflowchain.DraftMode `json:"mode"`
	Phases    []wfmodel.PhaseResult   `json:"phases"`
	// MemorySyncDue 提示调用方可以同步滚动记忆，是否执行由用户确认
	MemorySyncDue bool `json:"memorySyncDue"`
}

// Writer 章节正文生成
type Writer struct {
	runner   *storyutil.Runner
	drafter  Drafter
	analyzer StyleAnalyzer
	opts     Options
}

func NewWriter(runner *storyutil.Runner, drafter Drafter, analyzer StyleAnalyzer, opts Options) *Writer {
	return &Writer{runner: runner, drafter: drafter, analyzer: analyzer, opts: opts}
}

// Write 生成一章正文。流水线任一阶段失败时正文保持原样。
func (w *Writer) Write(ctx context.Context, projectID string, req WriteRequest) (*WriteResult, error) {
	if req.Mode == "" {
		req.Mode = workflowchain.DraftFast
	}
	if !req.Mode.Valid() {
		return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unknown draft mode %q", req.Mode))
	}
	switch req.WriteMode {
	case "":
		req.WriteMode = WriteAuto
	case WriteAuto, WriteContinue:
	default:
		return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unknown write mode %q", req.WriteMode))
	}

	return storyutil.Run(ctx, w.runner, projectID, "chapter_draft", func(ctx context.Context, snap *entity.Project) (*WriteResult, error) {
		if err := stage.Require(snap, entity.StageWriting); err != nil {
			return nil, err
		}
		idx := snap.ChapterIndex(req.ChapterID)
		if idx < 0 {
			return nil, apperrors.ErrChapterNotFound.WithDetail(req.ChapterID)
		}
		ch := snap.Chapters[idx]
		if err := storyutil.RequireText(ch.Summary, "chapter summary"); err != nil {
			return nil, err
		}

		in := &wfmodel.DraftInput{
			Title:            ch.Title,
			Summary:          ch.Summary,
			Guidance:         ch.WritingGuidance,
			RollingMemory:    snap.RollingSummary,
			StyleInstruction: StyleInstruction(snap),
		}
		if idx > 0 {
			in.PrevContext = wfnode.TailByRunes(snap.ContentOf(snap.Chapters[idx-1].ID), w.opts.PrevContextRunes)
		}
		if req.WriteMode == WriteContinue {
			if existing := snap.ContentOf(ch.ID); strings.TrimSpace(existing) != "" {
				in.Continue = true
				in.ExistingTail = wfnode.TailByRunes(existing, w.opts.PrevContextRunes)
			}
		}

		observer := func(ctx context.Context, phase string, index, total int) {
			logger.Debug(ctx, "draft phase started", "phase", phase, "index", index, "total", total)
			storyutil.Emit(ctx, w.runner.Events, storyutil.Event{
				Type:      storyutil.EventDraftPhase,
				ProjectID: projectID,
				Operation: "chapter_draft",
				Phase:     phase,
				Index:     index,
				Total:     total,
			})
		}
		out, err := w.drafter.Run(ctx, req.Mode, in, observer)
		if err != nil {
			return nil, err
		}
		generated := strings.TrimSpace(out.Text)
		if generated == "" {
			return nil, apperrors.ErrGenerationFailed.WithDetail("draft pipeline returned empty text")
		}

		res := &WriteResult{ChapterID: ch.ID, Generated: generated, Mode: req.Mode, Phases: out.Phases}
		_, err = w.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
			if p.ChapterIndex(ch.ID) < 0 {
				return apperrors.ErrChapterNotFound.WithDetail(ch.ID)
			}
			text := generated
			if req.WriteMode == WriteContinue {
				if existing := strings.TrimRight(p.ContentOf(ch.ID), " \t\r\n"); existing != "" {
					text = existing + continueSeparator + generated
				}
			}
			p.SetContent(ch.ID, text)
			res.Content = text
			return nil
		})
		if err != nil {
			return nil, err
		}
		metrics.DraftRuneCount.WithLabelValues(string(req.Mode)).Observe(float64(utf8.RuneCountInString(generated)))

		if req.Mode == workflowchain.DraftDeep && MemorySyncDue(idx, w.opts.MemorySyncInterval) {
			res.MemorySyncDue = true
			storyutil.Emit(ctx, w.runner.Events, storyutil.Event{
				Type:      storyutil.EventMemorySyncDue,
				ProjectID: projectID,
				Operation: "chapter_draft",
				Index:     idx,
			})
		}
		return res, nil
	})
}

// MemorySyncDue 第 idx 章（从 0 开始）完成后是否提示同步滚动记忆：
// 章节序号是 interval 的整数倍，且不是第一章
func MemorySyncDue(idx, interval int) bool {
	if interval <= 0 || idx <= 0 {
		return false
	}
	return (idx+1)%interval == 0
}

// StyleInstruction 组装文风指令。开启模仿时模仿指令优先级最高，覆盖风格与基调设置。
func StyleInstruction(p *entity.Project) string {
	m := p.Mimicry
	if m.Active {
		if prompt := strings.TrimSpace(m.CustomStylePrompt); prompt != "" {
			return "【最高优先级：文风模仿】请严格遵循以下文风要求，忽略其他风格设定：\n" + prompt
		}
		if name := strings.TrimSpace(m.Name); name != "" {
			return fmt.Sprintf("【最高优先级：文风模仿】请模仿作家「%s」的叙事节奏、用词习惯与句式特点，忽略其他风格设定。", name)
		}
	}

	var parts []string
	if len(p.Settings.Styles) > 0 {
		parts = append(parts, "风格："+strings.Join(p.Settings.Styles, "、"))
	}
	if len(p.Settings.Tones) > 0 {
		parts = append(parts, "基调："+strings.Join(p.Settings.Tones, "、"))
	}
	if len(parts) == 0 {
		return "保持网络小说常见的流畅叙事风格。"
	}
	return strings.Join(parts, "；")
}
