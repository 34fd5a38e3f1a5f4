package chain

import (
	"context"
	"fmt"
	"strings"

	wfmodel "novel-studio-api/internal/workflow/model"
	wfnode "novel-studio-api/internal/workflow/node"
	workflowport "novel-studio-api/internal/workflow/port"
	workflowprompt "novel-studio-api/internal/workflow/prompt"
)

// SyncMemory 把新增章节摘录与现有记忆合并为新的完整记忆
func (g *Generator) SyncMemory(ctx context.Context, in *wfmodel.MemorySyncInput) (string, error) {
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}
	var b strings.Builder
	for _, e := range in.Excerpts {
		fmt.Fprintf(&b, "第%d章 %s：%s\n", e.Number, e.Title, e.Text)
	}
	text, _, err := g.text(ctx, call{
		workflow: "memory_sync",
		prompt:   workflowprompt.PromptMemorySyncV1,
		vars: map[string]any{
			"current_summary": in.CurrentSummary,
			"new_chapters":    strings.TrimRight(b.String(), "\n"),
			"max_runes":       in.MaxRunes,
		},
		tier: workflowport.TierFast,
	})
	if err != nil {
		return "", err
	}
	return wfnode.StripCodeFences(text), nil
}
