// Package chain 把提示词模板、生成能力与结构化解析组合成各个生成步骤。
package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	llmctx "novel-studio-api/internal/domain/service"
	wfmodel "novel-studio-api/internal/workflow/model"
	workflowport "novel-studio-api/internal/workflow/port"
	workflowprompt "novel-studio-api/internal/workflow/prompt"
	"novel-studio-api/pkg/logger"
)

// Generator 持有生成能力与提示词注册表，无其他状态，可并发使用
type Generator struct {
	completer workflowport.Completer
	prompts   *workflowprompt.Registry
}

func NewGenerator(completer workflowport.Completer, prompts *workflowprompt.Registry) *Generator {
	if prompts == nil {
		prompts = workflowprompt.NewRegistry()
	}
	return &Generator{completer: completer, prompts: prompts}
}

type call struct {
	workflow    string
	prompt      workflowprompt.PromptID
	vars        map[string]any
	tier        workflowport.Tier
	jsonMode    bool
	temperature *float32
}

func (g *Generator) run(ctx context.Context, c call) (*workflowport.Completion, error) {
	if g == nil || g.completer == nil {
		return nil, fmt.Errorf("completer not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	system, user, err := g.prompts.Render(ctx, c.prompt, c.vars)
	if err != nil {
		return nil, err
	}
	tier := c.tier
	if tier == "" {
		tier = workflowport.TierFast
	}

	ctx = llmctx.WithWorkflowProvider(ctx, c.workflow, "")
	start := time.Now()
	out, err := g.completer.Complete(ctx, &workflowport.CompletionRequest{
		Prompt:            user,
		SystemInstruction: system,
		JSONMode:          c.jsonMode,
		Tier:              tier,
		Temperature:       c.temperature,
		Workflow:          c.workflow,
	})
	if err != nil {
		logger.Warn(ctx, "completion failed",
			"workflow", c.workflow,
			"tier", string(tier),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err.Error(),
		)
		return nil, err
	}
	if out == nil || strings.TrimSpace(out.Text) == "" {
		return nil, workflowport.ErrEmptyResponse
	}
	logger.Debug(ctx, "completion finished",
		"workflow", c.workflow,
		"tier", string(tier),
		"provider", out.Provider,
		"model", out.Model,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (g *Generator) text(ctx context.Context, c call) (string, wfmodel.CallMeta, error) {
	out, err := g.run(ctx, c)
	if err != nil {
		return "", wfmodel.CallMeta{}, err
	}
	return strings.TrimSpace(out.Text), wfmodel.MetaOf(out, c.tier), nil
}

func joinOr(items []string, sep, fallback string) string {
	kept := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return fallback
	}
	return strings.Join(kept, sep)
}

func characterLines(chars []wfmodel.CharacterBrief) string {
	if len(chars) == 0 {
		return "（暂无角色）"
	}
	var b strings.Builder
	for _, c := range chars {
		b.WriteString("- ")
		b.WriteString(c.Name)
		if c.Role != "" {
			b.WriteString("（")
			b.WriteString(c.Role)
			b.WriteString("）")
		}
		if c.Traits != "" {
			b.WriteString("：")
			b.WriteString(c.Traits)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func characterNames(chars []wfmodel.CharacterBrief) string {
	names := make([]string, 0, len(chars))
	for _, c := range chars {
		names = append(names, c.Name)
	}
	return joinOr(names, "、", "（暂无角色）")
}
