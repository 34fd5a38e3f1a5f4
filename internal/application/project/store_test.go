package project

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-studio-api/internal/domain/entity"
	"novel-studio-api/internal/domain/repository"
	apperrors "novel-studio-api/pkg/errors"
)

func openStore(t *testing.T, repo repository.ProjectRepository) *Store {
	t.Helper()
	s, err := Open(context.Background(), repo, 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestStore_CreateUpdateFlush(t *testing.T) {
	repo := repository.NewMemoryProjectRepository()
	s := openStore(t, repo)
	ctx := context.Background()

	p, err := s.Create(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "未命名作品", p.Title)
	assert.Equal(t, entity.StageArchitecture, p.CurrentStep)

	before := p.LastModified
	time.Sleep(2 * time.Millisecond)
	updated, err := s.Update(ctx, p.ID, func(p *entity.Project) error {
		p.Idea = "修仙"
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.LastModified.After(before))

	require.NoError(t, s.Flush(ctx))
	stored, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "修仙", stored.Idea)
}

func TestStore_UpdateErrorLeavesProjectUntouched(t *testing.T) {
	s := openStore(t, repository.NewMemoryProjectRepository())
	ctx := context.Background()
	p, err := s.Create(ctx, "书")
	require.NoError(t, err)

	_, err = s.Update(ctx, p.ID, func(p *entity.Project) error {
		p.Title = "改了"
		return errors.New("boom")
	})
	require.Error(t, err)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "书", got.Title)
	assert.Equal(t, p.LastModified, got.LastModified)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := openStore(t, repository.NewMemoryProjectRepository())
	ctx := context.Background()
	p, _ := s.Create(ctx, "书")

	got, _ := s.Get(ctx, p.ID)
	got.Title = "外部修改"
	again, _ := s.Get(ctx, p.ID)
	assert.Equal(t, "书", again.Title)
}

func TestStore_NotFound(t *testing.T) {
	s := openStore(t, repository.NewMemoryProjectRepository())
	_, err := s.Get(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeProjectNotFound))
	assert.True(t, apperrors.HasCode(s.Delete(context.Background(), "missing"), apperrors.CodeProjectNotFound))
}

func TestStore_LockIsExclusivePerProject(t *testing.T) {
	s := openStore(t, repository.NewMemoryProjectRepository())
	release, err := s.Lock("a")
	require.NoError(t, err)

	_, err = s.Lock("a")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeProjectBusy))

	other, err := s.Lock("b")
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := s.Lock("a")
	require.NoError(t, err)
	again()
}

func TestStore_ListSortedByLastModified(t *testing.T) {
	s := openStore(t, repository.NewMemoryProjectRepository())
	ctx := context.Background()
	a, _ := s.Create(ctx, "A")
	time.Sleep(2 * time.Millisecond)
	b, _ := s.Create(ctx, "B")
	time.Sleep(2 * time.Millisecond)
	_, err := s.Update(ctx, a.ID, func(p *entity.Project) error { return nil })
	require.NoError(t, err)

	list := s.List(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
}

func TestStore_DeletePersists(t *testing.T) {
	repo := repository.NewMemoryProjectRepository()
	s := openStore(t, repo)
	ctx := context.Background()
	p, _ := s.Create(ctx, "A")
	require.NoError(t, s.Delete(ctx, p.ID))
	require.NoError(t, s.Flush(ctx))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// flakyRepo 前 n 次 Save 失败
type flakyRepo struct {
	*repository.MemoryProjectRepository
	failures atomic.Int32
}

func (r *flakyRepo) Save(ctx context.Context, p *entity.Project) error {
	if r.failures.Add(-1) >= 0 {
		return errors.New("disk full")
	}
	return r.MemoryProjectRepository.Save(ctx, p)
}

func TestStore_FlushRetriesFailedWrites(t *testing.T) {
	repo := &flakyRepo{MemoryProjectRepository: repository.NewMemoryProjectRepository()}
	repo.failures.Store(1)
	s := openStore(t, repo)
	ctx := context.Background()

	p, err := s.Create(ctx, "A")
	require.NoError(t, err)
	assert.Error(t, s.Flush(ctx))

	require.NoError(t, s.Flush(ctx))
	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestStore_ConcurrentUpdatesSerialize(t *testing.T) {
	s := openStore(t, repository.NewMemoryProjectRepository())
	ctx := context.Background()
	p, _ := s.Create(ctx, "A")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, p.ID, func(p *entity.Project) error {
				p.Chapters = append(p.Chapters, entity.NewChapter("t", "s", ""))
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	got, _ := s.Get(ctx, p.ID)
	assert.Len(t, got.Chapters, 50)
}

func TestStore_ClosedRejectsWrites(t *testing.T) {
	s, err := Open(context.Background(), repository.NewMemoryProjectRepository(), 1)
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))
	_, err = s.Create(context.Background(), "A")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStorageError))
}

func TestStore_UpdateWithCancelledContextIsAllOrNothing(t *testing.T) {
	s := openStore(t, repository.NewMemoryProjectRepository())
	p, err := s.Create(context.Background(), "原名")
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Update(ctx, p.ID, func(p *entity.Project) error {
			p.Title = "新名"
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)

		got, err := s.Get(context.Background(), p.ID)
		require.NoError(t, err)
		require.Equal(t, "原名", got.Title)
	}
}

func TestStore_UpdateCommitsWhenContextCancelledDuringFn(t *testing.T) {
	repo := repository.NewMemoryProjectRepository()
	s := openStore(t, repo)
	p, err := s.Create(context.Background(), "原名")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	updated, err := s.Update(ctx, p.ID, func(p *entity.Project) error {
		cancel()
		p.Title = "新名"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "新名", updated.Title)

	require.NoError(t, s.Flush(context.Background()))
	stored, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "新名", stored.Title)
}

func TestStore_UpdateAfterCloseLeavesProjectUntouched(t *testing.T) {
	s, err := Open(context.Background(), repository.NewMemoryProjectRepository(), 8)
	require.NoError(t, err)
	p, err := s.Create(context.Background(), "A")
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))

	_, err = s.Update(context.Background(), p.ID, func(p *entity.Project) error {
		p.Title = "B"
		return nil
	})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeStorageError, appErr.Code)

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)

	_, err = s.Create(context.Background(), "C")
	require.Error(t, err)
	assert.Len(t, s.List(context.Background()), 1)
}
