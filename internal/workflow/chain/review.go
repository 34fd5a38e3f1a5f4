package chain

import (
	"context"
	"fmt"

	wfmodel "novel-studio-api/internal/workflow/model"
	wfnode "novel-studio-api/internal/workflow/node"
	workflowport "novel-studio-api/internal/workflow/port"
	workflowprompt "novel-studio-api/internal/workflow/prompt"
)

// AuditConsistency 全书设定一致性审计，只返回报告
func (g *Generator) AuditConsistency(ctx context.Context, in *wfmodel.ConsistencyAuditInput) (*wfmodel.AuditReportDraft, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	out, err := g.run(ctx, call{
		workflow: "consistency_audit",
		prompt:   workflowprompt.PromptConsistencyAuditV1,
		vars: map[string]any{
			"world_bible_json": in.WorldBibleJSON,
			"characters_json":  in.CharactersJSON,
			"main_plot":        in.MainPlot,
			"plot_structure":   in.PlotStructure,
			"side_quests_json": in.SideQuestsJSON,
		},
		tier:     workflowport.TierDeep,
		jsonMode: true,
	})
	if err != nil {
		return nil, err
	}

	f, err := wfnode.ObjectPayload(out.Text)
	if err != nil {
		return nil, wfnode.Invalid(err)
	}
	items, _, err := f.Objects("issues")
	if err != nil {
		return nil, wfnode.Invalid(err)
	}
	score, ok, err := f.Int("overallScore", "score")
	if err != nil {
		return nil, wfnode.Invalid(err)
	}
	if !ok {
		return nil, wfnode.Invalid(fmt.Errorf("overallScore is required"))
	}
	summary, err := f.String("summary")
	if err != nil {
		return nil, wfnode.Invalid(err)
	}

	report := &wfmodel.AuditReportDraft{OverallScore: score, Summary: summary}
	for i, item := range items {
		desc, err := item.RequiredString("description", "issue")
		if err != nil {
			return nil, wfnode.Invalid(fmt.Errorf("issue %d: %w", i, err))
		}
		sev, err := item.String("severity", "level")
		if err != nil {
			return nil, wfnode.Invalid(err)
		}
		loc, err := item.String("location", "module")
		if err != nil {
			return nil, wfnode.Invalid(err)
		}
		sug, err := item.String("suggestion", "fix")
		if err != nil {
			return nil, wfnode.Invalid(err)
		}
		report.Issues = append(report.Issues, wfmodel.AuditIssueDraft{
			Severity:    sev,
			Location:    loc,
			Description: desc,
			Suggestion:  sug,
		})
	}
	return report, nil
}
