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

// 世界观字段名，与返回 JSON 中 worldBible 的键一致
var worldBibleKeys = []string{"time", "location", "rules", "socialStructure", "powerSystem", "mapStructure"}

// GenerateArchitecture 由创意生成书名、世界观、主线、角色与时间线
func (g *Generator) GenerateArchitecture(ctx context.Context, in *wfmodel.ArchitectureInput) (*wfmodel.ArchitectureDraft, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	idea := in.Idea
	if len(in.Styles) > 0 || len(in.Tones) > 0 {
		idea += "\n风格：" + joinOr(in.Styles, "、", "不限") + "；基调：" + joinOr(in.Tones, "、", "不限")
	}
	out, err := g.run(ctx, call{
		workflow: "architecture",
		prompt:   workflowprompt.PromptArchitectureV1,
		vars:     map[string]any{"idea": idea},
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
	draft := &wfmodel.ArchitectureDraft{WorldBible: make(map[string]string, len(worldBibleKeys))}
	if draft.Title, err = f.String("title", "bookTitle"); err != nil {
		return nil, wfnode.Invalid(err)
	}
	if draft.MainPlot, err = f.RequiredString("mainPlot", "main_plot", "synopsis"); err != nil {
		return nil, wfnode.Invalid(err)
	}
	if draft.Timeline, err = f.String("timeline"); err != nil {
		return nil, wfnode.Invalid(err)
	}

	bible, ok, err := f.Object("worldBible", "world_bible", "world")
	if err != nil {
		return nil, wfnode.Invalid(err)
	}
	if ok {
		for _, k := range worldBibleKeys {
			v, err := bible.String(k)
			if err != nil {
				return nil, wfnode.Invalid(err)
			}
			draft.WorldBible[k] = v
		}
	}

	chars, _, err := f.Objects("characterList", "characters")
	if err != nil {
		return nil, wfnode.Invalid(err)
	}
	for i, c := range chars {
		cd, err := decodeCharacter(c, "")
		if err != nil {
			return nil, wfnode.Invalid(fmt.Errorf("character %d: %w", i, err))
		}
		draft.Characters = append(draft.Characters, cd)
	}
	return draft, nil
}

// decodeCharacter 解析角色；name 缺失时使用 fallbackName
func decodeCharacter(f wfnode.Fields, fallbackName string) (wfmodel.CharacterDraft, error) {
	var (
		c   wfmodel.CharacterDraft
		err error
	)
	if c.Name, err = f.String("name"); err != nil {
		return c, err
	}
	if c.Name == "" {
		c.Name = fallbackName
	}
	if c.Name == "" {
		return c, fmt.Errorf("field \"name\" is required")
	}
	if c.Role, err = f.String("role"); err != nil {
		return c, err
	}
	if c.PlotFunction, err = f.String("plotFunction", "plot_function"); err != nil {
		return c, err
	}
	if c.Traits, err = f.String("traits", "personality"); err != nil {
		return c, err
	}
	if c.Bio, err = f.String("bio", "background"); err != nil {
		return c, err
	}
	return c, nil
}

// GenerateWorldField 生成单个世界观字段的纯文本设定
func (g *Generator) GenerateWorldField(ctx context.Context, in *wfmodel.WorldFieldInput) (string, error) {
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}
	text, _, err := g.text(ctx, call{
		workflow: "world_field",
		prompt:   workflowprompt.PromptWorldFieldV1,
		vars: map[string]any{
			"idea":    in.Idea,
			"label":   in.Label,
			"context": wfnode.FirstNonEmpty(in.Context, "（暂无）"),
		},
	})
	return text, err
}

// GeneratePlotStructure 把主线梗概扩展为详细构架
func (g *Generator) GeneratePlotStructure(ctx context.Context, in *wfmodel.PlotStructureInput) (string, error) {
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}
	world := ""
	if strings.TrimSpace(in.WorldBrief) != "" {
		world = "世界观：\n" + in.WorldBrief
	}
	text, _, err := g.text(ctx, call{
		workflow: "plot_structure",
		prompt:   workflowprompt.PromptPlotStructureV1,
		vars: map[string]any{
			"main_plot":   in.MainPlot,
			"world_block": world,
			"characters":  characterNames(in.Characters),
		},
		tier: workflowport.TierDeep,
	})
	return text, err
}

// GenerateSideQuests 生成 3-5 个支线任务
func (g *Generator) GenerateSideQuests(ctx context.Context, in *wfmodel.SideQuestsInput) ([]wfmodel.SideQuestDraft, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	out, err := g.run(ctx, call{
		workflow: "side_quests",
		prompt:   workflowprompt.PromptSideQuestsV1,
		vars: map[string]any{
			"main_plot":  in.MainPlot,
			"characters": characterNames(in.Characters),
		},
		jsonMode: true,
	})
	if err != nil {
		return nil, err
	}
	items, err := wfnode.ListPayload(out.Text, "sideQuests", "quests")
	if err != nil {
		return nil, wfnode.Invalid(err)
	}
	quests := make([]wfmodel.SideQuestDraft, 0, len(items))
	for i, item := range items {
		q, err := decodeSideQuest(item)
		if err != nil {
			return nil, wfnode.Invalid(fmt.Errorf("quest %d: %w", i, err))
		}
		quests = append(quests, q)
	}
	return quests, nil
}

func decodeSideQuest(f wfnode.Fields) (wfmodel.SideQuestDraft, error) {
	var (
		q   wfmodel.SideQuestDraft
		err error
	)
	if q.Title, err = f.RequiredString("title", "name"); err != nil {
		return q, err
	}
	if q.Location, err = f.String("location"); err != nil {
		return q, err
	}
	if q.Origin, err = f.String("origin", "cause"); err != nil {
		return q, err
	}
	if q.Process, err = f.String("process"); err != nil {
		return q, err
	}
	if q.RewardOrImpact, err = f.String("rewardOrImpact", "reward", "impact"); err != nil {
		return q, err
	}
	if q.TimelineStage, err = f.String("timelineStage"); err != nil {
		return q, err
	}
	if q.AssociatedCharacters, err = f.Strings("associatedCharacters", "characters"); err != nil {
		return q, err
	}
	return q, nil
}

// RewriteSideQuest 按作者要求完善单个支线
func (g *Generator) RewriteSideQuest(ctx context.Context, in *wfmodel.SideQuestRewriteInput) (wfmodel.SideQuestDraft, error) {
	if in == nil {
		return wfmodel.SideQuestDraft{}, fmt.Errorf("input is nil")
	}
	out, err := g.run(ctx, call{
		workflow: "side_quest_rewrite",
		prompt:   workflowprompt.PromptSideQuestRewriteV1,
		vars: map[string]any{
			"main_plot":   in.MainPlot,
			"characters":  characterNames(in.Characters),
			"title":       in.Title,
			"location":    wfnode.FirstNonEmpty(in.Location, "未定"),
			"origin":      wfnode.FirstNonEmpty(in.Origin, "未定"),
			"process":     wfnode.FirstNonEmpty(in.Process, "未定"),
			"instruction": wfnode.FirstNonEmpty(in.Instruction, "让支线更精彩"),
		},
		jsonMode: true,
	})
	if err != nil {
		return wfmodel.SideQuestDraft{}, err
	}
	f, err := wfnode.ObjectPayload(out.Text)
	if err != nil {
		return wfmodel.SideQuestDraft{}, wfnode.Invalid(err)
	}
	q, err := decodeSideQuest(f)
	if err != nil {
		return wfmodel.SideQuestDraft{}, wfnode.Invalid(err)
	}
	return q, nil
}

// RefineCharacter 按作者要求完善角色设定
func (g *Generator) RefineCharacter(ctx context.Context, in *wfmodel.CharacterRefineInput) (wfmodel.CharacterDraft, error) {
	if in == nil {
		return wfmodel.CharacterDraft{}, fmt.Errorf("input is nil")
	}
	out, err := g.run(ctx, call{
		workflow: "character_refine",
		prompt:   workflowprompt.PromptCharacterRefineV1,
		vars: map[string]any{
			"name":        in.Name,
			"main_plot":   in.MainPlot,
			"current":     in.CurrentJSON,
			"instruction": wfnode.FirstNonEmpty(in.Instruction, "让人设更立体"),
		},
		jsonMode: true,
	})
	if err != nil {
		return wfmodel.CharacterDraft{}, err
	}
	f, err := wfnode.ObjectPayload(out.Text)
	if err != nil {
		return wfmodel.CharacterDraft{}, wfnode.Invalid(err)
	}
	c, err := decodeCharacter(f, in.Name)
	if err != nil {
		return wfmodel.CharacterDraft{}, wfnode.Invalid(err)
	}
	return c, nil
}

// BlendIdea 把标签与脑洞组合成一段创意
func (g *Generator) BlendIdea(ctx context.Context, in *wfmodel.IdeaBlendInput) (string, error) {
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}
	mode := "请自由发挥，把以下元素组合成一个新颖的小说创意。"
	if in.Strict {
		mode = "请严格只使用以下元素，组合成一个新颖的小说创意，不要引入新的核心设定。"
	}
	tags := ""
	if len(in.Tags) > 0 {
		tags = "标签：" + strings.Join(in.Tags, "、")
	}
	custom := ""
	if strings.TrimSpace(in.Custom) != "" {
		custom = "脑洞：" + strings.TrimSpace(in.Custom)
	}
	text, _, err := g.text(ctx, call{
		workflow: "idea_blend",
		prompt:   workflowprompt.PromptIdeaBlendV1,
		vars: map[string]any{
			"mode_line":   mode,
			"tags_line":   tags,
			"custom_line": custom,
		},
	})
	return text, err
}
