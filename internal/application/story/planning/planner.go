// Package planning 实现规划阶段：批量章节细纲、章节编辑、选角与里程碑。
package planning

import (
	"context"

	wfmodel "novel-studio-api/internal/workflow/model"
)

// Planner 规划阶段使用的生成步骤，由 workflow/chain.Generator 实现
type Planner interface {
	BatchChapters(ctx context.Context, in *wfmodel.BatchChaptersInput) ([]wfmodel.ChapterStub, error)
	SelectCast(ctx context.Context, in *wfmodel.CastSelectInput) ([]string, error)
	ExtractMilestones(ctx context.Context, in *wfmodel.MilestonesInput) ([]wfmodel.MilestoneDraft, error)
	RewriteChapter(ctx context.Context, in *wfmodel.ChapterRewriteInput) (wfmodel.ChapterStub, error)
	ResyncStructure(ctx context.Context, in *wfmodel.StructureResyncInput) (string, error)
}

// Options 规划参数
type Options struct {
	EstimatedTotalChapters int
	DefaultIncrement       int
	EarlyPhaseChapters     int
	BatchSizes             []int
}

// DefaultOptions 预计 300 章，默认增量 20，前 10 章为前期
func DefaultOptions() Options {
	return Options{
		EstimatedTotalChapters: 300,
		DefaultIncrement:       20,
		EarlyPhaseChapters:     10,
		BatchSizes:             []int{20, 50, 100},
	}
}

func (o Options) maxBatch() int {
	m := 0
	for _, s := range o.BatchSizes {
		if s > m {
			m = s
		}
	}
	if m == 0 {
		m = 100
	}
	return m
}

func (o Options) defaultBatch() int {
	if len(o.BatchSizes) > 0 && o.BatchSizes[0] > 0 {
		return o.BatchSizes[0]
	}
	return 20
}
