package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsDeep(t *testing.T) {
	p := NewProject("书")
	p.Chapters = append(p.Chapters, NewChapter("一", "s", ""))
	p.SetContent(p.Chapters[0].ID, "正文")
	p.Architecture.SideQuests = []SideQuest{{ID: "q", AssociatedCharacters: []string{"甲"}}}
	p.Settings.Styles = []string{"老白文"}

	cp := p.Clone()
	cp.Chapters[0].Summary = "changed"
	cp.SetContent(cp.Chapters[0].ID, "改")
	cp.Architecture.SideQuests[0].AssociatedCharacters[0] = "乙"
	cp.Settings.Styles[0] = "x"

	assert.Equal(t, "s", p.Chapters[0].Summary)
	assert.Equal(t, "正文", p.ContentOf(p.Chapters[0].ID))
	assert.Equal(t, "甲", p.Architecture.SideQuests[0].AssociatedCharacters[0])
	assert.Equal(t, "老白文", p.Settings.Styles[0])
}

func TestWorldBiblePopulated(t *testing.T) {
	var w WorldBible
	assert.False(t, w.Populated())
	require.True(t, w.Set(WorldFieldPowerSystem, "  炼气 "))
	assert.True(t, w.Populated())
	assert.False(t, w.Set(WorldField("unknown"), "x"))
}

func TestParseMilestoneType(t *testing.T) {
	assert.Equal(t, MilestoneSect, ParseMilestoneType(" Sect "))
	assert.Equal(t, MilestoneOther, ParseMilestoneType("boss"))
}

func TestNormalizeClampsAndFills(t *testing.T) {
	p := &Project{PlotProgress: 140}
	p.Normalize()
	assert.Equal(t, 100, p.PlotProgress)
	assert.Equal(t, StageArchitecture, p.CurrentStep)
	assert.NotNil(t, p.Content)
	assert.NotNil(t, p.Chapters)
}
