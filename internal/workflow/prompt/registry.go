package prompt

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptBatchChaptersV1    PromptID = "batch_chapters_v1"
	PromptCastSelectV1       PromptID = "cast_select_v1"
	PromptMilestonesV1       PromptID = "milestones_v1"
	PromptChapterRewriteV1   PromptID = "chapter_rewrite_v1"
	PromptStructureResyncV1  PromptID = "structure_resync_v1"
	PromptLogicScanV1        PromptID = "logic_scan_v1"
	PromptDraftV1            PromptID = "draft_v1"
	PromptDeAIPolishV1       PromptID = "deai_polish_v1"
	PromptFinalPolishV1      PromptID = "final_polish_v1"
	PromptMemorySyncV1       PromptID = "memory_sync_v1"
	PromptConsistencyAuditV1 PromptID = "consistency_audit_v1"
	PromptArchitectureV1     PromptID = "architecture_v1"
	PromptWorldFieldV1       PromptID = "world_field_v1"
	PromptPlotStructureV1    PromptID = "plot_structure_v1"
	PromptSideQuestsV1       PromptID = "side_quests_v1"
	PromptSideQuestRewriteV1 PromptID = "side_quest_rewrite_v1"
	PromptCharacterRefineV1  PromptID = "character_refine_v1"
	PromptStyleAnalysisV1    PromptID = "style_analysis_v1"
	PromptIdeaBlendV1        PromptID = "idea_blend_v1"
)

var knownPrompts = map[PromptID]struct{}{
	PromptBatchChaptersV1:    {},
	PromptCastSelectV1:       {},
	PromptMilestonesV1:       {},
	PromptChapterRewriteV1:   {},
	PromptStructureResyncV1:  {},
	PromptLogicScanV1:        {},
	PromptDraftV1:            {},
	PromptDeAIPolishV1:       {},
	PromptFinalPolishV1:      {},
	PromptMemorySyncV1:       {},
	PromptConsistencyAuditV1: {},
	PromptArchitectureV1:     {},
	PromptWorldFieldV1:       {},
	PromptPlotStructureV1:    {},
	PromptSideQuestsV1:       {},
	PromptSideQuestRewriteV1: {},
	PromptCharacterRefineV1:  {},
	PromptStyleAnalysisV1:    {},
	PromptIdeaBlendV1:        {},
}

// Registry 加载并缓存内嵌的提示词模板
type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	systemPath, userPath, err := resolvePromptFiles(id)
	if err != nil {
		return nil, err
	}
	system, err := readEmbeddedText(systemPath)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(userPath)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

// Render 用变量填充模板，返回 system 与 user 两段文本。
// 模板中出现但 vars 未提供的变量会导致错误。
func (r *Registry) Render(ctx context.Context, id PromptID, vars map[string]any) (system string, user string, err error) {
	tpl, err := r.ChatTemplate(id)
	if err != nil {
		return "", "", err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", "", fmt.Errorf("format prompt %s: %w", id, err)
	}
	for _, m := range msgs {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			system = m.Content
		case schema.User:
			user = m.Content
		}
	}
	if strings.TrimSpace(user) == "" {
		return "", "", fmt.Errorf("prompt %s rendered empty user message", id)
	}
	return system, user, nil
}

func resolvePromptFiles(id PromptID) (systemFile string, userFile string, err error) {
	if _, ok := knownPrompts[id]; !ok {
		return "", "", fmt.Errorf("unknown prompt id: %s", id)
	}
	base := "templates/" + string(id)
	return base + ".system.txt", base + ".user.txt", nil
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
