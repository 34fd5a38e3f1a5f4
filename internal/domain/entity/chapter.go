package entity

// Chapter 章节大纲（桩章节：有标题、摘要、写作指导，正文单独存储）
type Chapter struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Summary         string `json:"summary"`
	WritingGuidance string `json:"writingGuidance,omitempty"`
}

// Character 角色
type Character struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	PlotFunction string `json:"plotFunction"`
	Traits       string `json:"traits"`
	Bio          string `json:"bio"`
	ImageURL     string `json:"imageUrl"`
}

// NewChapter 创建新章节
func NewChapter(title, summary, guidance string) Chapter {
	return Chapter{
		ID:              NewID(),
		Title:           title,
		Summary:         summary,
		WritingGuidance: guidance,
	}
}
