package planning

import (
	"context"
	"fmt"
	"strings"

	"novel-studio-api/internal/application/story/stage"
	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/domain/entity"
	domainservice "novel-studio-api/internal/domain/service"
	wfmodel "novel-studio-api/internal/workflow/model"
	apperrors "novel-studio-api/pkg/errors"
	"novel-studio-api/pkg/logger"
	"novel-studio-api/pkg/metrics"
)

// BatchRequest 批量生成参数
type BatchRequest struct {
	BatchSize       int
	ManualIncrement *int
	// EstimatedTotal 为 nil 时使用默认值，<=0 表示关闭按章节数折算
	EstimatedTotal *int
	// ActiveCharacters 本批次登场角色的名字，不能为空
	ActiveCharacters []string
}

// BatchResult 批量生成结果
type BatchResult struct {
	Chapters         []entity.Chapter           `json:"chapters"`
	ProgressFrom     int                        `json:"progressFrom"`
	Progress         int                        `json:"progress"`
	Window           domainservice.ChapterRange `json:"window"`
	ActiveMilestones []entity.KeyMilestone      `json:"activeMilestones"`
}

// BatchGenerator 批量生成章节细纲并推进进度
type BatchGenerator struct {
	runner  *storyutil.Runner
	planner Planner
	opts    Options
}

func NewBatchGenerator(runner *storyutil.Runner, planner Planner, opts Options) *BatchGenerator {
	return &BatchGenerator{runner: runner, planner: planner, opts: opts}
}

// Generate 生成 BatchSize 章细纲，成功时整体追加并提交目标进度；失败时项目不变
func (g *BatchGenerator) Generate(ctx context.Context, projectID string, req BatchRequest) (*BatchResult, error) {
	return storyutil.Run(ctx, g.runner, projectID, "batch_chapters", func(ctx context.Context, snap *entity.Project) (*BatchResult, error) {
		if err := stage.Require(snap, entity.StagePlanning); err != nil {
			return nil, err
		}
		if req.BatchSize <= 0 || req.BatchSize > g.opts.maxBatch() {
			return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("batch size must be between 1 and %d", g.opts.maxBatch()))
		}
		source := sourceMaterial(snap)
		if err := storyutil.RequireText(source, "main plot"); err != nil {
			return nil, err
		}
		active := resolveCast(snap.Characters, req.ActiveCharacters)
		if len(active) == 0 {
			return nil, apperrors.ErrUserInput.WithDetail("at least one active character is required")
		}

		existing := len(snap.Chapters)
		window := domainservice.ChapterRange{Start: existing + 1, End: existing + req.BatchSize}
		milestones := domainservice.ActiveMilestones(snap.Architecture.KeyMilestones, window)

		increment := g.opts.DefaultIncrement
		if req.ManualIncrement != nil {
			increment = *req.ManualIncrement
		}
		total := g.opts.EstimatedTotalChapters
		if req.EstimatedTotal != nil {
			total = *req.EstimatedTotal
		}
		target := domainservice.NextProgress(snap.PlotProgress, increment, window.End, total)

		protagonist, others := splitProtagonist(active)
		logger.Info(ctx, "batch window computed",
			"window_start", window.Start,
			"window_end", window.End,
			"active_milestones", len(milestones),
			"progress_from", snap.PlotProgress,
			"progress_to", target,
		)

		stubs, err := g.planner.BatchChapters(ctx, &wfmodel.BatchChaptersInput{
			SourceMaterial: source,
			TotalChapters:  total,
			WindowStart:    window.Start,
			WindowEnd:      window.End,
			ProgressFrom:   snap.PlotProgress,
			ProgressTo:     target,
			Protagonist:    protagonist,
			Others:         others,
			Milestones:     milestoneBriefs(milestones),
			BatchSize:      req.BatchSize,
			EarlyPhase:     existing < g.opts.EarlyPhaseChapters,
			WorldBrief:     storyutil.WorldBrief(&snap.Architecture.WorldBible),
			Styles:         snap.Settings.Styles,
			Tones:          snap.Settings.Tones,
		})
		if err != nil {
			return nil, err
		}

		var appended []entity.Chapter
		_, err = g.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
			appended = newChapters(p, stubs)
			p.Chapters = append(p.Chapters, appended...)
			p.PlotProgress = target
			return nil
		})
		if err != nil {
			return nil, err
		}
		metrics.ChaptersGenerated.Add(float64(len(appended)))

		return &BatchResult{
			Chapters:         appended,
			ProgressFrom:     snap.PlotProgress,
			Progress:         target,
			Window:           window,
			ActiveMilestones: milestones,
		}, nil
	})
}

// newChapters 为细纲分配 ID，保证与项目内已有章节不重复
func newChapters(p *entity.Project, stubs []wfmodel.ChapterStub) []entity.Chapter {
	used := make(map[string]struct{}, len(p.Chapters)+len(stubs))
	for _, c := range p.Chapters {
		used[c.ID] = struct{}{}
	}
	out := make([]entity.Chapter, 0, len(stubs))
	for _, s := range stubs {
		ch := entity.NewChapter(s.Title, s.Summary, s.WritingGuidance)
		for {
			if _, dup := used[ch.ID]; !dup {
				break
			}
			ch.ID = entity.NewID()
		}
		used[ch.ID] = struct{}{}
		out = append(out, ch)
	}
	return out
}

func sourceMaterial(p *entity.Project) string {
	if s := strings.TrimSpace(p.Architecture.PlotStructure); s != "" {
		return s
	}
	return strings.TrimSpace(p.Architecture.MainPlot)
}

// resolveCast 按名字匹配角色：先精确匹配，再互相包含
func resolveCast(chars []entity.Character, names []string) []entity.Character {
	picked := make([]entity.Character, 0, len(names))
	seen := make(map[string]struct{})
	add := func(c entity.Character) {
		if _, ok := seen[c.ID]; ok {
			return
		}
		seen[c.ID] = struct{}{}
		picked = append(picked, c)
	}
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		matched := false
		for _, c := range chars {
			if c.Name == name {
				add(c)
				matched = true
			}
		}
		if matched {
			continue
		}
		for _, c := range chars {
			if c.Name == "" {
				continue
			}
			if strings.Contains(c.Name, name) || strings.Contains(name, c.Name) {
				add(c)
			}
		}
	}
	return picked
}

// splitProtagonist 角色定位含“主角”的优先作为核心视点，否则取第一位
func splitProtagonist(active []entity.Character) (string, []string) {
	idx := 0
	for i, c := range active {
		if strings.Contains(c.Role, "主角") {
			idx = i
			break
		}
	}
	others := make([]string, 0, len(active)-1)
	for i, c := range active {
		if i != idx {
			others = append(others, c.Name)
		}
	}
	return active[idx].Name, others
}

func milestoneBriefs(ms []entity.KeyMilestone) []wfmodel.MilestoneBrief {
	out := make([]wfmodel.MilestoneBrief, 0, len(ms))
	for _, m := range ms {
		out = append(out, wfmodel.MilestoneBrief{
			Name:        m.Name,
			Type:        string(m.Type),
			Description: m.Description,
			Label:       m.ExpectedChapterRange,
			Start:       m.RangeStart,
			End:         m.RangeEnd,
		})
	}
	return out
}
