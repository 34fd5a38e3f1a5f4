package chain

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	wfmodel "novel-studio-api/internal/workflow/model"
	wfnode "novel-studio-api/internal/workflow/node"
	workflowport "novel-studio-api/internal/workflow/port"
	workflowprompt "novel-studio-api/internal/workflow/prompt"
)

const earlyPhaseInstruction = `【前期特殊要求】当前处于故事前期，writingGuidance 必须要求通过场景、动作与对话自然带出世界观，避免整段说明式的设定介绍。`

// 章节细纲字段白名单
var (
	stubTitleKeys    = []string{"title", "chapterTitle", "name"}
	stubSummaryKeys  = []string{"summary", "outline", "content"}
	stubGuidanceKeys = []string{"writingGuidance", "guidance", "writing_guidance"}
)

// BatchChapters 生成一批章节细纲。返回数量必须等于 BatchSize
func (g *Generator) BatchChapters(ctx context.Context, in *wfmodel.BatchChaptersInput) ([]wfmodel.ChapterStub, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if in.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}

	world := strings.TrimSpace(in.WorldBrief)
	if world != "" {
		world = "【世界观要点】\n" + world
	}
	if in.EarlyPhase {
		world = strings.TrimSpace(world + "\n\n" + earlyPhaseInstruction)
	}

	out, err := g.run(ctx, call{
		workflow: "batch_chapters",
		prompt:   workflowprompt.PromptBatchChaptersV1,
		vars: map[string]any{
			"source_material":      in.SourceMaterial,
			"total_chapters":       in.TotalChapters,
			"window_start":         in.WindowStart,
			"window_end":           in.WindowEnd,
			"progress_from":        in.ProgressFrom,
			"progress_to":          in.ProgressTo,
			"protagonist":          wfnode.FirstNonEmpty(in.Protagonist, "主角"),
			"others":               joinOr(in.Others, "、", "无"),
			"milestones_block":     milestonesBlock(in.Milestones),
			"batch_size":           in.BatchSize,
			"world_building_block": world,
			"styles":               joinOr(in.Styles, "、", "不限"),
			"tones":                joinOr(in.Tones, "、", "不限"),
		},
		tier:     workflowport.TierFast,
		jsonMode: true,
	})
	if err != nil {
		return nil, err
	}

	items, err := wfnode.ListPayload(out.Text, "chapters")
	if err != nil {
		return nil, wfnode.Invalid(err)
	}
	if len(items) != in.BatchSize {
		return nil, wfnode.Invalid(fmt.Errorf("expected %d chapters, got %d", in.BatchSize, len(items)))
	}
	stubs := make([]wfmodel.ChapterStub, 0, len(items))
	for i, item := range items {
		stub, err := decodeStub(item)
		if err != nil {
			return nil, wfnode.Invalid(fmt.Errorf("chapter %d: %w", i, err))
		}
		stubs = append(stubs, stub)
	}
	return stubs, nil
}

func decodeStub(f wfnode.Fields) (wfmodel.ChapterStub, error) {
	title, err := f.RequiredString(stubTitleKeys...)
	if err != nil {
		return wfmodel.ChapterStub{}, err
	}
	summary, err := f.RequiredString(stubSummaryKeys...)
	if err != nil {
		return wfmodel.ChapterStub{}, err
	}
	guidance, err := f.String(stubGuidanceKeys...)
	if err != nil {
		return wfmodel.ChapterStub{}, err
	}
	return wfmodel.ChapterStub{Title: title, Summary: summary, WritingGuidance: guidance}, nil
}

func milestonesBlock(ms []wfmodel.MilestoneBrief) string {
	if len(ms) == 0 {
		return "【本批次无强制预设节点】请根据主线逻辑自然过渡，为后续高潮做铺垫。"
	}
	var b strings.Builder
	b.WriteString("【本批次必须覆盖的关键剧情节点】\n")
	if len(ms) > 1 {
		b.WriteString("以下节点的章节范围存在重叠，请合理安排先后与衔接，全部写入本批次细纲：\n")
	}
	for _, m := range ms {
		fmt.Fprintf(&b, "- [%s] %s（第%d-%d章）：%s\n", m.Type, m.Name, m.Start, m.End, m.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// SelectCast 返回模型挑选的角色名，未做名称匹配
func (g *Generator) SelectCast(ctx context.Context, in *wfmodel.CastSelectInput) ([]string, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	out, err := g.run(ctx, call{
		workflow: "cast_select",
		prompt:   workflowprompt.PromptCastSelectV1,
		vars: map[string]any{
			"structure":       wfnode.TruncateByRunes(in.Structure, 2000),
			"progress":        in.Progress,
			"batch_size":      in.BatchSize,
			"target_progress": in.TargetProgress,
			"character_list":  characterLines(in.Characters),
		},
		jsonMode: true,
	})
	if err != nil {
		return nil, err
	}
	payload := wfnode.ParsePayload(out.Text)
	if payload == nil {
		return nil, wfnode.Invalid(wfnode.ErrNoPayload)
	}
	f, err := wfnode.ObjectFields(payload)
	if err != nil {
		return nil, wfnode.Invalid(err)
	}
	names, err := f.Strings("selectedNames", "names", "characters")
	if err != nil {
		return nil, wfnode.Invalid(err)
	}
	return names, nil
}

// ExtractMilestones 从主线构架中提取关键节点
func (g *Generator) ExtractMilestones(ctx context.Context, in *wfmodel.MilestonesInput) ([]wfmodel.MilestoneDraft, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	out, err := g.run(ctx, call{
		workflow: "milestones",
		prompt:   workflowprompt.PromptMilestonesV1,
		vars: map[string]any{
			"structure":      in.Structure,
			"total_chapters": in.TotalChapters,
		},
		jsonMode: true,
	})
	if err != nil {
		return nil, err
	}
	items, err := wfnode.ListPayload(out.Text, "milestones")
	if err != nil {
		return nil, wfnode.Invalid(err)
	}
	drafts := make([]wfmodel.MilestoneDraft, 0, len(items))
	for i, item := range items {
		name, err := item.RequiredString("name", "title")
		if err != nil {
			return nil, wfnode.Invalid(fmt.Errorf("milestone %d: %w", i, err))
		}
		typ, err := item.String("type")
		if err != nil {
			return nil, wfnode.Invalid(err)
		}
		desc, err := item.String("description", "desc")
		if err != nil {
			return nil, wfnode.Invalid(err)
		}
		rng, err := item.String("expectedChapterRange", "chapterRange", "range")
		if err != nil {
			return nil, wfnode.Invalid(err)
		}
		drafts = append(drafts, wfmodel.MilestoneDraft{
			Name:                 name,
			Type:                 typ,
			Description:          desc,
			ExpectedChapterRange: rng,
		})
	}
	return drafts, nil
}

// RewriteChapter 重写单章标题、细纲与写作指导
func (g *Generator) RewriteChapter(ctx context.Context, in *wfmodel.ChapterRewriteInput) (wfmodel.ChapterStub, error) {
	if in == nil {
		return wfmodel.ChapterStub{}, fmt.Errorf("input is nil")
	}
	out, err := g.run(ctx, call{
		workflow: "chapter_rewrite",
		prompt:   workflowprompt.PromptChapterRewriteV1,
		vars: map[string]any{
			"chapter_number": in.ChapterNumber,
			"prev_summary":   wfnode.FirstNonEmpty(in.PrevSummary, "无"),
			"next_summary":   wfnode.FirstNonEmpty(in.NextSummary, "无"),
			"structure":      in.Structure,
			"title":          in.Title,
			"instruction":    wfnode.FirstNonEmpty(in.Instruction, "承上启下，补全过渡"),
		},
		jsonMode: true,
	})
	if err != nil {
		return wfmodel.ChapterStub{}, err
	}
	f, err := wfnode.ObjectPayload(out.Text)
	if err != nil {
		return wfmodel.ChapterStub{}, wfnode.Invalid(err)
	}
	stub, err := decodeStub(f)
	if err != nil {
		return wfmodel.ChapterStub{}, wfnode.Invalid(err)
	}
	return stub, nil
}

// ResyncStructure 依据实际章节重写主线构架，返回纯文本
func (g *Generator) ResyncStructure(ctx context.Context, in *wfmodel.StructureResyncInput) (string, error) {
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}
	lines := make([]string, 0, len(in.Summaries))
	for i, s := range in.Summaries {
		lines = append(lines, "第"+strconv.Itoa(i+1)+"章："+s)
	}
	text, _, err := g.text(ctx, call{
		workflow: "structure_resync",
		prompt:   workflowprompt.PromptStructureResyncV1,
		vars: map[string]any{
			"old_structure": in.OldStructure,
			"summaries":     wfnode.TruncateByRunes(strings.Join(lines, "\n"), 50000),
		},
		tier: workflowport.TierDeep,
	})
	return text, err
}

// ScanLogic 扫描章节列表的逻辑问题，chapterIndex 从 0 开始
func (g *Generator) ScanLogic(ctx context.Context, in *wfmodel.LogicScanInput) ([]wfmodel.LogicIssueDraft, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	var b strings.Builder
	for _, c := range in.Chapters {
		fmt.Fprintf(&b, "[%d] %s：%s\n", c.Index, c.Title, c.Summary)
	}
	out, err := g.run(ctx, call{
		workflow: "logic_scan",
		prompt:   workflowprompt.PromptLogicScanV1,
		vars: map[string]any{
			"structure":    in.Structure,
			"chapter_list": strings.TrimRight(b.String(), "\n"),
		},
		tier:     workflowport.TierDeep,
		jsonMode: true,
	})
	if err != nil {
		return nil, err
	}
	items, err := wfnode.ListPayload(out.Text, "issues")
	if err != nil {
		return nil, wfnode.Invalid(err)
	}
	issues := make([]wfmodel.LogicIssueDraft, 0, len(items))
	for i, item := range items {
		idx, ok, err := item.Int("chapterIndex", "index")
		if err != nil {
			return nil, wfnode.Invalid(fmt.Errorf("issue %d: %w", i, err))
		}
		if !ok {
			return nil, wfnode.Invalid(fmt.Errorf("issue %d: chapterIndex is required", i))
		}
		newSummary, err := item.RequiredString("newSummary", "suggestion", "fixedSummary")
		if err != nil {
			return nil, wfnode.Invalid(fmt.Errorf("issue %d: %w", i, err))
		}
		title, err := item.String("title")
		if err != nil {
			return nil, wfnode.Invalid(err)
		}
		reason, err := item.String("reason", "issue", "problem")
		if err != nil {
			return nil, wfnode.Invalid(err)
		}
		issues = append(issues, wfmodel.LogicIssueDraft{
			ChapterIndex: idx,
			Title:        title,
			Reason:       reason,
			NewSummary:   newSummary,
		})
	}
	return issues, nil
}
