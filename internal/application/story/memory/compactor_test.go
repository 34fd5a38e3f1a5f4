package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-studio-api/internal/application/project"
	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/domain/entity"
	"novel-studio-api/internal/domain/repository"
	wfmodel "novel-studio-api/internal/workflow/model"
	workflowport "novel-studio-api/internal/workflow/port"
	apperrors "novel-studio-api/pkg/errors"
)

// echoSyncer 返回旧记忆加上每章摘录的首字，模拟一个会不断变长的模型输出
type echoSyncer struct {
	calls []*wfmodel.MemorySyncInput
	reply func(in *wfmodel.MemorySyncInput) string
	err   error
}

func (e *echoSyncer) SyncMemory(_ context.Context, in *wfmodel.MemorySyncInput) (string, error) {
	e.calls = append(e.calls, in)
	if e.err != nil {
		return "", e.err
	}
	if e.reply != nil {
		return e.reply(in), nil
	}
	return fmt.Sprintf("记忆：%d章", len(in.Excerpts)), nil
}

func newCompactor(t *testing.T, syncer Syncer, opts Options, chapters int) (*Compactor, *project.Store, *entity.Project) {
	t.Helper()
	ctx := context.Background()
	s, err := project.Open(ctx, repository.NewMemoryProjectRepository(), 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })

	p, _ := s.Create(ctx, "问道")
	p, err = s.Update(ctx, p.ID, func(p *entity.Project) error {
		for i := 0; i < chapters; i++ {
			ch := entity.NewChapter(fmt.Sprintf("第%d章", i+1), "", "")
			p.Chapters = append(p.Chapters, ch)
			p.SetContent(ch.ID, strings.Repeat("字", 1500))
		}
		return nil
	})
	require.NoError(t, err)
	return NewCompactor(&storyutil.Runner{Projects: s}, syncer, opts), s, p
}

func TestCompactor_Window(t *testing.T) {
	c := NewCompactor(nil, nil, DefaultOptions())
	start, end := c.Window(3)
	assert.Equal(t, 0, start)
	assert.Equal(t, 3, end)
	start, end = c.Window(19)
	assert.Equal(t, 10, start)
	assert.Equal(t, 19, end)
}

func TestCompactor_SyncReplacesDigest(t *testing.T) {
	syncer := &echoSyncer{}
	c, s, p := newCompactor(t, syncer, DefaultOptions(), 12)
	ctx := context.Background()

	res, err := c.Sync(ctx, p.ID, 11)
	require.NoError(t, err)
	assert.Equal(t, "记忆：10章", res.Summary)
	assert.Equal(t, 2, res.FromIndex)

	in := syncer.calls[0]
	assert.Equal(t, "故事开始...", in.CurrentSummary)
	require.Len(t, in.Excerpts, 10)
	assert.Equal(t, 3, in.Excerpts[0].Number)
	assert.Equal(t, 1000, utf8.RuneCountInString(in.Excerpts[0].Text))

	_, err = c.Sync(ctx, p.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, "记忆：10章", syncer.calls[1].CurrentSummary)

	got, _ := s.Get(ctx, p.ID)
	assert.Equal(t, "记忆：6章", got.RollingSummary, "digest is replaced, not appended")
}

func TestCompactor_DigestStaysBounded(t *testing.T) {
	syncer := &echoSyncer{reply: func(in *wfmodel.MemorySyncInput) string {
		// 模型不听话，总是把新内容追加在旧记忆后面
		return in.CurrentSummary + strings.Repeat("新", 800)
	}}
	opts := DefaultOptions()
	opts.MaxRunes = 2000
	c, s, p := newCompactor(t, syncer, opts, 60)
	ctx := context.Background()

	for idx := 9; idx < 60; idx += 10 {
		res, err := c.Sync(ctx, p.ID, idx)
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Runes, 2000)
	}
	got, _ := s.Get(ctx, p.ID)
	assert.Equal(t, 2000, utf8.RuneCountInString(got.RollingSummary))
	assert.True(t, strings.HasSuffix(got.RollingSummary, "新"))
}

func TestCompactor_FailureKeepsOldDigest(t *testing.T) {
	syncer := &echoSyncer{err: workflowport.ErrTimeout}
	c, s, p := newCompactor(t, syncer, DefaultOptions(), 3)
	ctx := context.Background()
	_, _ = s.Update(ctx, p.ID, func(p *entity.Project) error {
		p.RollingSummary = "旧记忆"
		return nil
	})

	_, err := c.Sync(ctx, p.ID, 2)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTimeout))
	got, _ := s.Get(ctx, p.ID)
	assert.Equal(t, "旧记忆", got.RollingSummary)
}

func TestCompactor_RejectsBadIndexAndEmptyProse(t *testing.T) {
	syncer := &echoSyncer{}
	c, s, p := newCompactor(t, syncer, DefaultOptions(), 2)
	ctx := context.Background()

	_, err := c.Sync(ctx, p.ID, 2)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidParam))

	_, _ = s.Update(ctx, p.ID, func(p *entity.Project) error {
		p.Content = map[string]string{}
		return nil
	})
	_, err = c.Sync(ctx, p.ID, 1)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUserInput))
	assert.Empty(t, syncer.calls)
}

func TestCompactor_SetDigest(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxRunes = 3
	c, s, p := newCompactor(t, &echoSyncer{}, opts, 1)
	ctx := context.Background()

	got, err := c.SetDigest(ctx, p.ID, " 一二三四五 ")
	require.NoError(t, err)
	assert.Equal(t, "三四五", got)
	stored, _ := s.Get(ctx, p.ID)
	assert.Equal(t, "三四五", stored.RollingSummary)
}
