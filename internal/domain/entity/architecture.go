package entity

import (
	"slices"
	"strings"
)

// WorldField 世界观字段名
type WorldField string

const (
	WorldFieldTime            WorldField = "time"
	WorldFieldLocation        WorldField = "location"
	WorldFieldRules           WorldField = "rules"
	WorldFieldSocialStructure WorldField = "socialStructure"
	WorldFieldPowerSystem     WorldField = "powerSystem"
	WorldFieldMapStructure    WorldField = "mapStructure"
)

// WorldFields 六个世界观字段，按展示顺序
var WorldFields = []WorldField{
	WorldFieldTime,
	WorldFieldLocation,
	WorldFieldRules,
	WorldFieldSocialStructure,
	WorldFieldPowerSystem,
	WorldFieldMapStructure,
}

// Label 字段中文名
func (f WorldField) Label() string {
	switch f {
	case WorldFieldTime:
		return "时代背景"
	case WorldFieldLocation:
		return "地理环境"
	case WorldFieldRules:
		return "核心法则"
	case WorldFieldSocialStructure:
		return "社会结构"
	case WorldFieldPowerSystem:
		return "力量体系"
	case WorldFieldMapStructure:
		return "地图架构"
	default:
		return string(f)
	}
}

// WorldBible 世界观设定
type WorldBible struct {
	Time            string `json:"time"`
	Location        string `json:"location"`
	Rules           string `json:"rules"`
	SocialStructure string `json:"socialStructure,omitempty"`
	PowerSystem     string `json:"powerSystem,omitempty"`
	MapStructure    string `json:"mapStructure,omitempty"`
}

// Get 按字段名读取
func (w *WorldBible) Get(f WorldField) (string, bool) {
	switch f {
	case WorldFieldTime:
		return w.Time, true
	case WorldFieldLocation:
		return w.Location, true
	case WorldFieldRules:
		return w.Rules, true
	case WorldFieldSocialStructure:
		return w.SocialStructure, true
	case WorldFieldPowerSystem:
		return w.PowerSystem, true
	case WorldFieldMapStructure:
		return w.MapStructure, true
	default:
		return "", false
	}
}

// Set 按字段名写入
func (w *WorldBible) Set(f WorldField, v string) bool {
	switch f {
	case WorldFieldTime:
		w.Time = v
	case WorldFieldLocation:
		w.Location = v
	case WorldFieldRules:
		w.Rules = v
	case WorldFieldSocialStructure:
		w.SocialStructure = v
	case WorldFieldPowerSystem:
		w.PowerSystem = v
	case WorldFieldMapStructure:
		w.MapStructure = v
	default:
		return false
	}
	return true
}

// Populated 至少有一个字段非空
func (w *WorldBible) Populated() bool {
	for _, f := range WorldFields {
		if v, _ := w.Get(f); strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// MilestoneType 里程碑类型
type MilestoneType string

const (
	MilestoneDungeon  MilestoneType = "dungeon"
	MilestoneSect     MilestoneType = "sect"
	MilestoneLocation MilestoneType = "location"
	MilestoneGrowth   MilestoneType = "growth"
	MilestoneOther    MilestoneType = "other"
)

// ParseMilestoneType 未知类型归为 other
func ParseMilestoneType(s string) MilestoneType {
	switch t := MilestoneType(strings.ToLower(strings.TrimSpace(s))); t {
	case MilestoneDungeon, MilestoneSect, MilestoneLocation, MilestoneGrowth, MilestoneOther:
		return t
	default:
		return MilestoneOther
	}
}

// KeyMilestone 关键剧情节点
// ExpectedChapterRange 仅用于展示；RangeStart/RangeEnd 为编辑时解析出的规范区间，0 表示无法解析。
type KeyMilestone struct {
	ID                   string        `json:"id"`
	Type                 MilestoneType `json:"type"`
	Name                 string        `json:"name"`
	Description          string        `json:"description"`
	ExpectedChapterRange string        `json:"expectedChapterRange,omitempty"`
	RangeStart           int           `json:"rangeStart,omitempty"`
	RangeEnd             int           `json:"rangeEnd,omitempty"`
}

// HasRange 是否有可用的章节区间
func (m *KeyMilestone) HasRange() bool {
	return m.RangeStart > 0 && m.RangeEnd >= m.RangeStart
}

// SideQuest 支线剧情
type SideQuest struct {
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	Location             string   `json:"location"`
	Origin               string   `json:"origin"`
	Process              string   `json:"process"`
	RewardOrImpact       string   `json:"rewardOrImpact"`
	AssociatedCharacters []string `json:"associatedCharacters"`
}

// Architecture 作品架构
type Architecture struct {
	WorldBible    WorldBible     `json:"worldBible"`
	MainPlot      string         `json:"mainPlot,omitempty"`
	PlotStructure string         `json:"plotStructure,omitempty"`
	SideQuests    []SideQuest    `json:"sideQuests,omitempty"`
	Timeline      string         `json:"timeline,omitempty"`
	KeyMilestones []KeyMilestone `json:"keyMilestones,omitempty"`
}

// Populated 架构中至少有一项内容（世界观字段或主线）
func (a *Architecture) Populated() bool {
	return a.WorldBible.Populated() || strings.TrimSpace(a.MainPlot) != ""
}

// SideQuestIndex 按 ID 查找支线下标
func (a *Architecture) SideQuestIndex(id string) int {
	for i := range a.SideQuests {
		if a.SideQuests[i].ID == id {
			return i
		}
	}
	return -1
}

func (a Architecture) clone() Architecture {
	cp := a
	cp.SideQuests = slices.Clone(a.SideQuests)
	for i := range cp.SideQuests {
		cp.SideQuests[i].AssociatedCharacters = slices.Clone(a.SideQuests[i].AssociatedCharacters)
	}
	cp.KeyMilestones = slices.Clone(a.KeyMilestones)
	return cp
}
