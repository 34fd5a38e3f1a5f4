package dto

import (
	"novel-studio-api/internal/application/story/review"
)

// InstructionRequest 带用户指令的重写请求
type InstructionRequest struct {
	Instruction string `json:"instruction"`
}

// BlendIdeaRequest 灵感融合请求
type BlendIdeaRequest struct {
	Tags   []string `json:"tags"`
	Custom string   `json:"custom"`
	Strict bool     `json:"strict"`
}

// ExtractMilestonesRequest 里程碑提取请求
type ExtractMilestonesRequest struct {
	EstimatedTotal *int `json:"estimatedTotal"`
}

// BatchRequest 批量生成章节细纲请求
type BatchRequest struct {
	BatchSize        int      `json:"batchSize" binding:"required,gt=0"`
	ManualIncrement  *int     `json:"manualIncrement"`
	EstimatedTotal   *int     `json:"estimatedTotal"`
	ActiveCharacters []string `json:"activeCharacters"`
}

// SuggestCastRequest 智能选角请求
type SuggestCastRequest struct {
	BatchSize       int  `json:"batchSize"`
	ManualIncrement *int `json:"manualIncrement"`
}

// InsertChapterRequest 插入章节请求；afterIndex 为 -1 时插到最前
type InsertChapterRequest struct {
	AfterIndex int `json:"afterIndex"`
}

// WriteChapterRequest 正文生成请求
type WriteChapterRequest struct {
	Mode      string `json:"mode"`
	WriteMode string `json:"writeMode"`
}

// ContentRequest 手动保存正文
type ContentRequest struct {
	Content string `json:"content"`
}

// StyleAnalyzeRequest 文风分析请求
type StyleAnalyzeRequest struct {
	Name   string `json:"name"`
	Sample string `json:"sample" binding:"required"`
}

// MemorySyncRequest 滚动记忆同步请求
type MemorySyncRequest struct {
	ActiveIndex int `json:"activeIndex"`
}

// MemoryRequest 手动修改滚动记忆
type MemoryRequest struct {
	Summary string `json:"summary"`
}

// ApplyFixesRequest 批量应用逻辑修正
type ApplyFixesRequest struct {
	Issues []review.LogicIssue `json:"issues"`
}
