package project

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"novel-studio-api/internal/domain/entity"
	apperrors "novel-studio-api/pkg/errors"
)

// ExportFormat 导出格式
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportTXT  ExportFormat = "txt"
	ExportDOC  ExportFormat = "doc"
)

// ParseExportFormat 解析导出格式，word 视为 doc
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return ExportJSON, nil
	case "txt", "text":
		return ExportTXT, nil
	case "doc", "word":
		return ExportDOC, nil
	default:
		return "", apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unknown export format %q", s))
	}
}

// Document 导出结果
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Render 生成导出文档；章节按序列位置排列。纯函数，不修改项目
func Render(p *entity.Project, format ExportFormat) (*Document, error) {
	if p == nil {
		return nil, apperrors.ErrProjectNotFound
	}
	switch format {
	case ExportJSON:
		body, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "encode project failed")
		}
		return &Document{Filename: p.Title + ".json", ContentType: "application/json", Body: body}, nil
	case ExportTXT:
		return &Document{Filename: p.Title + ".txt", ContentType: "text/plain; charset=utf-8", Body: []byte(PlainText(p))}, nil
	case ExportDOC:
		return &Document{Filename: p.Title + ".doc", ContentType: "application/msword; charset=utf-8", Body: []byte(RichText(p))}, nil
	default:
		return nil, apperrors.ErrInvalidParam.WithDetail(string(format))
	}
}

// PlainText 书名、简介，随后每章标题与正文
func PlainText(p *entity.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "《%s》\n简介：%s\n", p.Title, p.Architecture.MainPlot)
	for i, ch := range p.Chapters {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\n第%d章 %s\n%s", i+1, ch.Title, p.ContentOf(ch.ID))
	}
	return b.String()
}

// RichText 最简 HTML，Word 可直接打开
func RichText(p *entity.Project) string {
	var b strings.Builder
	b.WriteString("<html><head><meta charset='utf-8'></head><body>")
	fmt.Fprintf(&b, "<h1>%s</h1>", html.EscapeString(p.Title))
	for _, ch := range p.Chapters {
		body := html.EscapeString(p.ContentOf(ch.ID))
		fmt.Fprintf(&b, "<h2>%s</h2><p>%s</p>", html.EscapeString(ch.Title), strings.ReplaceAll(body, "\n", "<br/>"))
	}
	b.WriteString("</body></html>")
	return b.String()
}

// Export 导出项目当前状态
func (s *Store) Export(ctx context.Context, id string, format ExportFormat) (*Document, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Render(p, format)
}
