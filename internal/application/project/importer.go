package project

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"novel-studio-api/internal/domain/entity"
	domainservice "novel-studio-api/internal/domain/service"
	apperrors "novel-studio-api/pkg/errors"
	"novel-studio-api/pkg/logger"
)

// flexID 兼容旧版工程文件中的数字 ID
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be string or number")
	}
	*f = flexID(n.String())
	return nil
}

// flexTime 兼容毫秒时间戳与 RFC3339 字符串
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var t time.Time
		if err := json.Unmarshal(b, &t); err != nil {
			return err
		}
		*f = flexTime(t)
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("lastModified must be a timestamp")
	}
	*f = flexTime(time.UnixMilli(ms))
	return nil
}

type importCharacter struct {
	ID           flexID  `json:"id"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	PlotFunction *string `json:"plotFunction"`
	Traits       string  `json:"traits"`
	Bio          string  `json:"bio"`
	ImageURL     string  `json:"imageUrl"`
}

type importChapter struct {
	ID              flexID `json:"id"`
	Title           string `json:"title"`
	Summary         string `json:"summary"`
	WritingGuidance string `json:"writingGuidance"`
}

type importMilestone struct {
	ID                   flexID `json:"id"`
	Type                 string `json:"type"`
	Name                 string `json:"name"`
	Description          string `json:"description"`
	ExpectedChapterRange string `json:"expectedChapterRange"`
	RangeStart           int    `json:"rangeStart"`
	RangeEnd             int    `json:"rangeEnd"`
}

type importSideQuest struct {
	ID                   flexID   `json:"id"`
	Title                string   `json:"title"`
	Location             string   `json:"location"`
	Origin               string   `json:"origin"`
	Process              string   `json:"process"`
	RewardOrImpact       string   `json:"rewardOrImpact"`
	AssociatedCharacters []string `json:"associatedCharacters"`
}

type importArchitecture struct {
	WorldBible    *entity.WorldBible `json:"worldBible"`
	MainPlot      string             `json:"mainPlot"`
	PlotStructure string             `json:"plotStructure"`
	SideQuests    []importSideQuest  `json:"sideQuests"`
	Timeline      string             `json:"timeline"`
	KeyMilestones []importMilestone  `json:"keyMilestones"`
}

type importRecord struct {
	Title          string                  `json:"title"`
	LastModified   *flexTime               `json:"lastModified"`
	Idea           string                  `json:"idea"`
	CurrentStep    int                     `json:"currentStep"`
	PlotProgress   *int                    `json:"plotProgress"`
	Architecture   *importArchitecture     `json:"architecture"`
	Characters     []importCharacter       `json:"characterList"`
	Chapters       []importChapter         `json:"chapters"`
	Content        map[string]string       `json:"content"`
	RollingSummary string                  `json:"rollingSummary"`
	Settings       *entity.Settings        `json:"settings"`
	Mimicry        *entity.MimicrySettings `json:"mimicry"`
}

// DecodeImport 解析工程文件为新项目。
// 缺失的可选字段补默认值；无法解码或章节 ID 重复时整体拒绝。导入项目总是分配新的项目 ID。
func DecodeImport(data []byte) (*entity.Project, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, apperrors.ErrValidationFailed.WithDetail("project file must be a json object")
	}
	var rec importRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, apperrors.ErrValidationFailed.WithDetail("invalid project file").WithError(err)
	}

	p := entity.NewProject(rec.Title)
	if rec.LastModified != nil {
		p.LastModified = time.Time(*rec.LastModified)
	}
	p.Idea = rec.Idea
	p.CurrentStep = entity.Stage(rec.CurrentStep)
	if rec.PlotProgress != nil {
		p.PlotProgress = *rec.PlotProgress
	}
	p.RollingSummary = rec.RollingSummary
	if rec.Settings != nil {
		p.Settings = *rec.Settings
	}
	if rec.Mimicry != nil {
		p.Mimicry = *rec.Mimicry
	}

	for _, c := range rec.Characters {
		ch := entity.Character{
			ID:       string(c.ID),
			Name:     strings.TrimSpace(c.Name),
			Role:     c.Role,
			Traits:   c.Traits,
			Bio:      c.Bio,
			ImageURL: c.ImageURL,
		}
		if ch.ID == "" {
			ch.ID = entity.NewID()
		}
		if c.PlotFunction != nil {
			ch.PlotFunction = *c.PlotFunction
		}
		p.Characters = append(p.Characters, ch)
	}

	seen := make(map[string]struct{}, len(rec.Chapters))
	for i, c := range rec.Chapters {
		id := string(c.ID)
		if id == "" {
			id = entity.NewID()
		}
		if _, dup := seen[id]; dup {
			return nil, apperrors.ErrValidationFailed.WithDetail(fmt.Sprintf("duplicate chapter id %q at position %d", id, i+1))
		}
		seen[id] = struct{}{}
		p.Chapters = append(p.Chapters, entity.Chapter{
			ID:              id,
			Title:           c.Title,
			Summary:         c.Summary,
			WritingGuidance: c.WritingGuidance,
		})
	}
	for id, text := range rec.Content {
		if _, ok := seen[id]; ok {
			p.SetContent(id, text)
		}
	}

	if a := rec.Architecture; a != nil {
		if a.WorldBible != nil {
			p.Architecture.WorldBible = *a.WorldBible
		}
		p.Architecture.MainPlot = a.MainPlot
		p.Architecture.PlotStructure = a.PlotStructure
		p.Architecture.Timeline = a.Timeline
		for _, q := range a.SideQuests {
			id := string(q.ID)
			if id == "" {
				id = entity.NewID()
			}
			p.Architecture.SideQuests = append(p.Architecture.SideQuests, entity.SideQuest{
				ID:                   id,
				Title:                q.Title,
				Location:             q.Location,
				Origin:               q.Origin,
				Process:              q.Process,
				RewardOrImpact:       q.RewardOrImpact,
				AssociatedCharacters: q.AssociatedCharacters,
			})
		}
		for _, m := range a.KeyMilestones {
			km := entity.KeyMilestone{
				ID:                   string(m.ID),
				Type:                 entity.ParseMilestoneType(m.Type),
				Name:                 m.Name,
				Description:          m.Description,
				ExpectedChapterRange: m.ExpectedChapterRange,
				RangeStart:           m.RangeStart,
				RangeEnd:             m.RangeEnd,
			}
			if km.ID == "" {
				km.ID = entity.NewID()
			}
			if !km.HasRange() {
				domainservice.NormalizeMilestone(&km)
			}
			p.Architecture.KeyMilestones = append(p.Architecture.KeyMilestones, km)
		}
	}

	p.Normalize()
	return p, nil
}

// Import 解析并保存工程文件
func (s *Store) Import(ctx context.Context, data []byte) (*entity.Project, error) {
	p, err := DecodeImport(data)
	if err != nil {
		logger.Warn(ctx, "project import rejected", "error", err.Error())
		return nil, err
	}
	if err := s.put(ctx, p); err != nil {
		return nil, err
	}
	logger.Info(logger.WithProject(ctx, p.ID), "project imported",
		"title", p.Title,
		"chapters", len(p.Chapters),
	)
	return p.Clone(), nil
}
