// Package memory 维护滚动记忆：把最近若干章压缩为有界的长程上下文。
package memory

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/domain/entity"
	wfmodel "novel-studio-api/internal/workflow/model"
	wfnode "novel-studio-api/internal/workflow/node"
	apperrors "novel-studio-api/pkg/errors"
	"novel-studio-api/pkg/logger"
)

// initialDigest 项目还没有滚动记忆时的占位
const initialDigest = "故事开始..."

// Syncer 记忆压缩调用，由 workflow/chain.Generator 实现
type Syncer interface {
	SyncMemory(ctx context.Context, in *wfmodel.MemorySyncInput) (string, error)
}

// Options 压缩参数
type Options struct {
	// Window 参与压缩的最近章节数
	Window int
	// ExcerptRunes 每章正文摘录长度
	ExcerptRunes int
	// MaxRunes 记忆长度上限
	MaxRunes int
}

func DefaultOptions() Options {
	return Options{Window: 10, ExcerptRunes: 1000, MaxRunes: 3000}
}

// SyncResult 同步结果
type SyncResult struct {
	Summary    string `json:"summary"`
	FromIndex  int    `json:"fromIndex"`
	ToIndex    int    `json:"toIndex"`
	Excerpts   int    `json:"excerpts"`
	Runes      int    `json:"runes"`
	Truncated  bool   `json:"truncated"`
	PrevLength int    `json:"prevLength"`
}

// Compactor 滚动记忆压缩器。结果整体替换旧记忆，不做追加。
type Compactor struct {
	runner *storyutil.Runner
	syncer Syncer
	opts   Options
}

func NewCompactor(runner *storyutil.Runner, syncer Syncer, opts Options) *Compactor {
	if opts.Window <= 0 {
		opts.Window = 10
	}
	return &Compactor{runner: runner, syncer: syncer, opts: opts}
}

// Window 以 activeIndex 结尾、最多 Window 章的下标区间（闭区间，从 0 开始）
func (c *Compactor) Window(activeIndex int) (int, int) {
	start := activeIndex - (c.opts.Window - 1)
	if start < 0 {
		start = 0
	}
	return start, activeIndex
}

// Sync 把 activeIndex 及之前的最近章节折叠进滚动记忆
func (c *Compactor) Sync(ctx context.Context, projectID string, activeIndex int) (*SyncResult, error) {
	return storyutil.Run(ctx, c.runner, projectID, "memory_sync", func(ctx context.Context, snap *entity.Project) (*SyncResult, error) {
		if activeIndex < 0 || activeIndex >= len(snap.Chapters) {
			return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("chapter index %d out of range", activeIndex))
		}
		start, end := c.Window(activeIndex)
		excerpts := make([]wfmodel.ChapterExcerpt, 0, end-start+1)
		for i := start; i <= end; i++ {
			ch := snap.Chapters[i]
			text := strings.TrimSpace(snap.ContentOf(ch.ID))
			if text == "" {
				continue
			}
			excerpts = append(excerpts, wfmodel.ChapterExcerpt{
				Number: i + 1,
				Title:  ch.Title,
				Text:   wfnode.TruncateByRunes(text, c.opts.ExcerptRunes),
			})
		}
		if len(excerpts) == 0 {
			return nil, apperrors.ErrUserInput.WithDetail("no chapter prose in the memory window")
		}

		current := wfnode.FirstNonEmpty(snap.RollingSummary, initialDigest)
		digest, err := c.syncer.SyncMemory(ctx, &wfmodel.MemorySyncInput{
			CurrentSummary: current,
			Excerpts:       excerpts,
			MaxRunes:       c.opts.MaxRunes,
		})
		if err != nil {
			return nil, err
		}
		digest = strings.TrimSpace(digest)
		if digest == "" {
			return nil, apperrors.ErrGenerationFailed.WithDetail("memory digest is empty")
		}
		digest, truncated := c.bound(digest)
		if truncated {
			logger.Warn(ctx, "memory digest exceeded limit, truncated", "max_runes", c.opts.MaxRunes)
		}

		_, err = c.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
			p.RollingSummary = digest
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &SyncResult{
			Summary:    digest,
			FromIndex:  start,
			ToIndex:    end,
			Excerpts:   len(excerpts),
			Runes:      utf8.RuneCountInString(digest),
			Truncated:  truncated,
			PrevLength: utf8.RuneCountInString(snap.RollingSummary),
		}, nil
	})
}

// SetDigest 手动编辑滚动记忆，同样受长度上限约束
func (c *Compactor) SetDigest(ctx context.Context, projectID, text string) (string, error) {
	digest, _ := c.bound(strings.TrimSpace(text))
	_, err := c.runner.Projects.Update(ctx, projectID, func(p *entity.Project) error {
		p.RollingSummary = digest
		return nil
	})
	return digest, err
}

// bound 超出上限时保留末尾，末尾是最近的情节
func (c *Compactor) bound(digest string) (string, bool) {
	if c.opts.MaxRunes <= 0 || utf8.RuneCountInString(digest) <= c.opts.MaxRunes {
		return digest, false
	}
	return wfnode.TailByRunes(digest, c.opts.MaxRunes), true
}
