// Package entity 定义领域实体
package entity

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage 写作阶段（同时作为项目的最高进度标记）
type Stage int

const (
	StageArchitecture Stage = 1
	StagePlanning     Stage = 2
	StageWriting      Stage = 3
)

// Valid 检查阶段取值
func (s Stage) Valid() bool {
	return s >= StageArchitecture && s <= StageWriting
}

// String 返回阶段名称
func (s Stage) String() string {
	switch s {
	case StageArchitecture:
		return "architecture"
	case StagePlanning:
		return "planning"
	case StageWriting:
		return "writing"
	default:
		return "unknown"
	}
}

// Settings 风格与基调设置
type Settings struct {
	Styles []string `json:"styles"`
	Tones  []string `json:"tones"`
}

// MimicrySettings 文风模仿设置
// CustomStylePrompt 来自参考文本分析，优先级最高
type MimicrySettings struct {
	Active            bool   `json:"active"`
	Name              string `json:"name"`
	CustomStylePrompt string `json:"customStylePrompt,omitempty"`
}

// Project 小说项目（聚合根）
// 章节顺序决定章节编号；正文按章节 ID 存储，插入与重排不会错位。
type Project struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	LastModified   time.Time         `json:"lastModified"`
	Idea           string            `json:"idea"`
	CurrentStep    Stage             `json:"currentStep"`
	PlotProgress   int               `json:"plotProgress"`
	Architecture   Architecture      `json:"architecture"`
	Characters     []Character       `json:"characterList"`
	Chapters       []Chapter         `json:"chapters"`
	Content        map[string]string `json:"content"`
	RollingSummary string            `json:"rollingSummary,omitempty"`
	Settings       Settings          `json:"settings"`
	Mimicry        MimicrySettings   `json:"mimicry"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// NewID 生成实体 ID（uuid v4，删除后不会复用）
func NewID() string {
	return uuid.NewString()
}

// NewProject 创建空项目，初始位于架构阶段
func NewProject(title string) *Project {
	now := time.Now()
	title = strings.TrimSpace(title)
	if title == "" {
		title = "未命名作品"
	}
	return &Project{
		ID:           NewID(),
		Title:        title,
		LastModified: now,
		CurrentStep:  StageArchitecture,
		Characters:   []Character{},
		Chapters:     []Chapter{},
		Content:      map[string]string{},
		Settings:     Settings{Styles: []string{}, Tones: []string{}},
		CreatedAt:    now,
	}
}

// Touch 刷新最后修改时间
func (p *Project) Touch() {
	p.LastModified = time.Now()
}

// ChapterIndex 返回章节在序列中的下标，不存在返回 -1
func (p *Project) ChapterIndex(chapterID string) int {
	for i := range p.Chapters {
		if p.Chapters[i].ID == chapterID {
			return i
		}
	}
	return -1
}

// ContentOf 返回章节正文
func (p *Project) ContentOf(chapterID string) string {
	if p.Content == nil {
		return ""
	}
	return p.Content[chapterID]
}

// SetContent 写入章节正文
func (p *Project) SetContent(chapterID, text string) {
	if p.Content == nil {
		p.Content = make(map[string]string)
	}
	p.Content[chapterID] = text
}

// CharacterByName 按名字查找角色
func (p *Project) CharacterByName(name string) (Character, bool) {
	name = strings.TrimSpace(name)
	for _, c := range p.Characters {
		if c.Name == name {
			return c, true
		}
	}
	return Character{}, false
}

// Clone 深拷贝项目，生成操作在副本上计算，成功后整体提交
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Architecture = p.Architecture.clone()
	cp.Characters = slices.Clone(p.Characters)
	cp.Chapters = slices.Clone(p.Chapters)
	cp.Content = maps.Clone(p.Content)
	cp.Settings = Settings{
		Styles: slices.Clone(p.Settings.Styles),
		Tones:  slices.Clone(p.Settings.Tones),
	}
	return &cp
}

// Normalize 补齐空集合，保证序列化结果稳定
func (p *Project) Normalize() {
	if p.Characters == nil {
		p.Characters = []Character{}
	}
	if p.Chapters == nil {
		p.Chapters = []Chapter{}
	}
	if p.Content == nil {
		p.Content = map[string]string{}
	}
	if p.Settings.Styles == nil {
		p.Settings.Styles = []string{}
	}
	if p.Settings.Tones == nil {
		p.Settings.Tones = []string{}
	}
	if !p.CurrentStep.Valid() {
		p.CurrentStep = StageArchitecture
	}
	p.PlotProgress = ClampProgress(p.PlotProgress)
}

// ClampProgress 将进度限制在 [0,100]
func ClampProgress(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
