package model

type ChapterExcerpt struct {
	Number int
	Title  string
	Text   string
}

type MemorySyncInput struct {
	CurrentSummary string
	Excerpts       []ChapterExcerpt
	MaxRunes       int
}
