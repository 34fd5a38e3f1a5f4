package model

type ArchitectureInput struct {
	Idea   string
	Styles []string
	Tones  []string
}

type CharacterDraft struct {
	Name         string
	Role         string
	PlotFunction string
	Traits       string
	Bio          string
}

// ArchitectureDraft 模型返回的完整架构
type ArchitectureDraft struct {
	Title      string
	WorldBible map[string]string
	MainPlot   string
	Characters []CharacterDraft
	Timeline   string
}

type WorldFieldInput struct {
	Idea    string
	Label   string
	Context string
}

type PlotStructureInput struct {
	MainPlot   string
	WorldBrief string
	Characters []CharacterBrief
}

type SideQuestsInput struct {
	MainPlot   string
	Characters []CharacterBrief
}

type SideQuestDraft struct {
	Title                string
	Location             string
	Origin               string
	Process              string
	RewardOrImpact       string
	TimelineStage        string
	AssociatedCharacters []string
}

type SideQuestRewriteInput struct {
	MainPlot    string
	Characters  []CharacterBrief
	Title       string
	Location    string
	Origin      string
	Process     string
	Instruction string
}

type CharacterRefineInput struct {
	Name        string
	MainPlot    string
	CurrentJSON string
	Instruction string
}

type IdeaBlendInput struct {
	Tags   []string
	Custom string
	// Strict 为 true 时只允许使用给定标签
	Strict bool
}
