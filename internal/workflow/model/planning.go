package model

// MilestoneBrief 本批次必须覆盖的里程碑
type MilestoneBrief struct {
	Name        string
	Type        string
	Description string
	Label       string
	Start       int
	End         int
}

type BatchChaptersInput struct {
	SourceMaterial string
	TotalChapters  int
	WindowStart    int
	WindowEnd      int
	ProgressFrom   int
	ProgressTo     int

	Protagonist string
	Others      []string

	Milestones []MilestoneBrief
	BatchSize  int

	// EarlyPhase 为 true 时要求通过场景与对话自然带出世界观
	EarlyPhase bool
	WorldBrief string

	Styles []string
	Tones  []string
}

// ChapterStub 是模型返回的一章细纲
type ChapterStub struct {
	Title           string
	Summary         string
	WritingGuidance string
}

type CastSelectInput struct {
	Structure      string
	Progress       int
	TargetProgress int
	BatchSize      int
	Characters     []CharacterBrief
}

type MilestonesInput struct {
	Structure     string
	TotalChapters int
}

// MilestoneDraft 是模型提取的里程碑，区间尚未规范化
type MilestoneDraft struct {
	Name                 string
	Type                 string
	Description          string
	ExpectedChapterRange string
}

type ChapterRewriteInput struct {
	ChapterNumber int
	PrevSummary   string
	NextSummary   string
	Structure     string
	Title         string
	Instruction   string
}

type StructureResyncInput struct {
	OldStructure string
	Summaries    []string
}

type ChapterBrief struct {
	Index   int
	Title   string
	Summary string
}

type LogicScanInput struct {
	Structure string
	Chapters  []ChapterBrief
}

// LogicIssueDraft 单章逻辑问题及替换细纲
type LogicIssueDraft struct {
	ChapterIndex int
	Title        string
	Reason       string
	NewSummary   string
}
