package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-studio-api/internal/domain/entity"
)

func openTemp(t *testing.T) (*ProjectRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "studio.db")
	repo, err := Open(context.Background(), path, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, path
}

func TestProjectRepository_SaveGetList(t *testing.T) {
	repo, _ := openTemp(t)
	ctx := context.Background()

	older := entity.NewProject("旧书")
	older.LastModified = time.Now().Add(-time.Hour)
	newer := entity.NewProject("新书")
	ch := entity.NewChapter("第一章", "入门", "")
	newer.Chapters = append(newer.Chapters, ch)
	newer.SetContent(ch.ID, "正文")
	newer.Architecture.KeyMilestones = []entity.KeyMilestone{{ID: "m", Name: "试炼", RangeStart: 10, RangeEnd: 20}}

	require.NoError(t, repo.Save(ctx, older))
	require.NoError(t, repo.Save(ctx, newer))

	got, err := repo.GetByID(ctx, newer.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "正文", got.ContentOf(ch.ID))
	assert.Equal(t, 10, got.Architecture.KeyMilestones[0].RangeStart)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	newer.Title = "改名"
	require.NoError(t, repo.Save(ctx, newer))
	got, _ = repo.GetByID(ctx, newer.ID)
	assert.Equal(t, "改名", got.Title)
}

func TestProjectRepository_MissingAndDelete(t *testing.T) {
	repo, _ := openTemp(t)
	ctx := context.Background()

	got, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	p := entity.NewProject("书")
	require.NoError(t, repo.Save(ctx, p))
	require.NoError(t, repo.Delete(ctx, p.ID))
	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOpen_ExclusiveLock(t *testing.T) {
	_, path := openTemp(t)

	_, err := Open(context.Background(), path, time.Second)
	assert.True(t, errors.Is(err, ErrLocked))
}

func TestOpen_ReopenAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.db")
	ctx := context.Background()
	repo, err := Open(ctx, path, 0)
	require.NoError(t, err)
	p := entity.NewProject("书")
	require.NoError(t, repo.Save(ctx, p))
	require.NoError(t, repo.Close())

	again, err := Open(ctx, path, 0)
	require.NoError(t, err)
	defer again.Close()
	got, err := again.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "书", got.Title)
}

func TestIsSQLiteBusy(t *testing.T) {
	assert.False(t, isSQLiteBusy(nil))
	assert.True(t, isSQLiteBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, isSQLiteBusy(errors.New("no such table")))
}
