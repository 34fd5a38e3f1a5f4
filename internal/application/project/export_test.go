package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-studio-api/internal/domain/entity"
)

func exportFixture() *entity.Project {
	p := entity.NewProject("星河")
	p.Architecture.MainPlot = "少年崛起"
	// ID 顺序与序列顺序相反，导出必须按序列
	p.Chapters = []entity.Chapter{
		{ID: "z", Title: "开端"},
		{ID: "a", Title: "<转折>"},
	}
	p.SetContent("z", "第一段\n第二段")
	p.SetContent("a", "结尾")
	return p
}

func TestPlainText(t *testing.T) {
	want := "《星河》\n简介：少年崛起\n\n第1章 开端\n第一段\n第二段\n\n第2章 <转折>\n结尾"
	assert.Equal(t, want, PlainText(exportFixture()))
}

func TestRichText(t *testing.T) {
	out := RichText(exportFixture())
	assert.Contains(t, out, "<h1>星河</h1>")
	assert.Contains(t, out, "<h2>开端</h2><p>第一段<br/>第二段</p><h2>&lt;转折&gt;</h2>")
}

func TestRenderIsReadOnly(t *testing.T) {
	p := exportFixture()
	before := p.Clone()
	for _, f := range []ExportFormat{ExportJSON, ExportTXT, ExportDOC} {
		doc, err := Render(p, f)
		require.NoError(t, err)
		assert.NotEmpty(t, doc.Body)
	}
	assert.Equal(t, before, p)
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("word")
	require.NoError(t, err)
	assert.Equal(t, ExportDOC, f)
	_, err = ParseExportFormat("pdf")
	assert.Error(t, err)
}
