package model

type DraftInput struct {
	Title            string
	Summary          string
	Guidance         string
	RollingMemory    string
	PrevContext      string
	StyleInstruction string

	// Continue 为 true 时在已有正文之后续写，ExistingTail 为已有正文的末尾片段
	Continue     bool
	ExistingTail string
}

// DraftOutput 最终正文及各阶段调用信息
type DraftOutput struct {
	Text   string
	Phases []PhaseResult
}

type PhaseResult struct {
	Name  string
	Runes int
	Meta  CallMeta
}

type StyleAnalysisInput struct {
	Sample string
}
