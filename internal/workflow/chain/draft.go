package chain

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/cloudwego/eino/compose"

	wfmodel "novel-studio-api/internal/workflow/model"
	workflowport "novel-studio-api/internal/workflow/port"
	workflowprompt "novel-studio-api/internal/workflow/prompt"
)

// DraftMode 正文生成模式
type DraftMode string

const (
	DraftFast DraftMode = "fast"
	DraftDeep DraftMode = "deep"
)

func (m DraftMode) Valid() bool {
	return m == DraftFast || m == DraftDeep
}

// 阶段名
const (
	PhaseDraft       = "draft.compose"
	PhaseDeAIPolish  = "draft.deai_polish"
	PhaseFinalPolish = "draft.final_polish"
)

// PhaseObserver 在每个阶段开始前被调用，index 从 1 开始
type PhaseObserver func(ctx context.Context, phase string, index, total int)

type draftState struct {
	In       *wfmodel.DraftInput
	Tier     workflowport.Tier
	Total    int
	Observer PhaseObserver

	Text   string
	Phases []wfmodel.PhaseResult
}

// DraftPipeline 章节正文流水线。
// 快速模式只有 draft.compose 一个阶段；深度模式依次为 compose、去AI化润色、终审定稿。
// 每个阶段只读取上一阶段的文本，任一阶段失败整条流水线返回错误，不产生中间结果。
type DraftPipeline struct {
	gen *Generator

	once sync.Once
	fast compose.Runnable[*draftState, *draftState]
	deep compose.Runnable[*draftState, *draftState]
	err  error
}

func NewDraftPipeline(gen *Generator) *DraftPipeline {
	return &DraftPipeline{gen: gen}
}

// Run 执行流水线，成功时返回最终正文
func (p *DraftPipeline) Run(ctx context.Context, mode DraftMode, in *wfmodel.DraftInput, observer PhaseObserver) (*wfmodel.DraftOutput, error) {
	if p == nil || p.gen == nil {
		return nil, fmt.Errorf("draft pipeline not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown draft mode: %q", mode)
	}

	p.once.Do(func() {
		p.fast, p.deep, p.err = p.build(context.Background())
	})
	if p.err != nil {
		return nil, p.err
	}

	st := &draftState{In: in, Observer: observer}
	runnable := p.fast
	if mode == DraftDeep {
		runnable = p.deep
		st.Tier = workflowport.TierDeep
		st.Total = 3
	} else {
		st.Tier = workflowport.TierFast
		st.Total = 1
	}

	out, err := runnable.Invoke(ctx, st)
	if err != nil {
		return nil, err
	}
	return &wfmodel.DraftOutput{Text: out.Text, Phases: out.Phases}, nil
}

func (p *DraftPipeline) build(ctx context.Context) (compose.Runnable[*draftState, *draftState], compose.Runnable[*draftState, *draftState], error) {
	fastChain := compose.NewChain[*draftState, *draftState]()
	fastChain.AppendLambda(compose.InvokableLambda(p.composeStage), compose.WithNodeName(PhaseDraft))
	fast, err := fastChain.Compile(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("compile fast draft chain: %w", err)
	}

	deepChain := compose.NewChain[*draftState, *draftState]()
	deepChain.AppendLambda(compose.InvokableLambda(p.composeStage), compose.WithNodeName(PhaseDraft))
	deepChain.AppendLambda(compose.InvokableLambda(p.polishStage(PhaseDeAIPolish, workflowprompt.PromptDeAIPolishV1, 2)), compose.WithNodeName(PhaseDeAIPolish))
	deepChain.AppendLambda(compose.InvokableLambda(p.polishStage(PhaseFinalPolish, workflowprompt.PromptFinalPolishV1, 3)), compose.WithNodeName(PhaseFinalPolish))
	deep, err := deepChain.Compile(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("compile deep draft chain: %w", err)
	}
	return fast, deep, nil
}

func (p *DraftPipeline) composeStage(ctx context.Context, st *draftState) (*draftState, error) {
	if st == nil || st.In == nil {
		return nil, fmt.Errorf("state is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st.notify(ctx, PhaseDraft, 1)

	in := st.In
	memory := ""
	if in.RollingMemory != "" {
		memory = "【前情提要】：" + in.RollingMemory
	}
	guidance := ""
	if in.Guidance != "" {
		guidance = "【写作指导】：" + in.Guidance
	}
	cont := ""
	if in.Continue {
		cont = "【续写】本章已有部分正文，请紧接其后继续写，不要重复已有内容。已有正文结尾：\n\"\"\"" + in.ExistingTail + "\"\"\""
	}

	text, meta, err := p.gen.text(ctx, call{
		workflow: "chapter_draft",
		prompt:   workflowprompt.PromptDraftV1,
		vars: map[string]any{
			"title":                in.Title,
			"rolling_memory_block": memory,
			"summary":              in.Summary,
			"guidance_block":       guidance,
			"prev_context":         in.PrevContext,
			"style_instruction":    in.StyleInstruction,
			"continue_block":       cont,
		},
		tier: st.Tier,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PhaseDraft, err)
	}
	st.record(PhaseDraft, text, meta)
	return st, nil
}

func (p *DraftPipeline) polishStage(name string, id workflowprompt.PromptID, index int) func(context.Context, *draftState) (*draftState, error) {
	return func(ctx context.Context, st *draftState) (*draftState, error) {
		if st == nil {
			return nil, fmt.Errorf("state is nil")
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st.notify(ctx, name, index)

		text, meta, err := p.gen.text(ctx, call{
			workflow: name,
			prompt:   id,
			vars:     map[string]any{"text": st.Text},
			tier:     st.Tier,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		st.record(name, text, meta)
		return st, nil
	}
}

func (st *draftState) notify(ctx context.Context, phase string, index int) {
	if st.Observer != nil {
		st.Observer(ctx, phase, index, st.Total)
	}
}

func (st *draftState) record(phase, text string, meta wfmodel.CallMeta) {
	st.Text = text
	st.Phases = append(st.Phases, wfmodel.PhaseResult{
		Name:  phase,
		Runes: utf8.RuneCountInString(text),
		Meta:  meta,
	})
}

// AnalyzeStyle 把样本文本拆解为仿写指令
func (g *Generator) AnalyzeStyle(ctx context.Context, in *wfmodel.StyleAnalysisInput) (string, error) {
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}
	text, _, err := g.text(ctx, call{
		workflow: "style_analysis",
		prompt:   workflowprompt.PromptStyleAnalysisV1,
		vars:     map[string]any{"sample": in.Sample},
		tier:     workflowport.TierDeep,
	})
	return text, err
}
