package repository

import (
	"context"
	"sort"
	"sync"

	"novel-studio-api/internal/domain/entity"
)

// SortByLastModified 按最后修改时间倒序
func SortByLastModified(items []*entity.Project) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].LastModified.After(items[j].LastModified)
	})
}

// MemoryProjectRepository 进程内仓储，用于测试与 storage.driver=memory
type MemoryProjectRepository struct {
	mu       sync.RWMutex
	projects map[string]*entity.Project
}

// NewMemoryProjectRepository 创建内存仓储
func NewMemoryProjectRepository() *MemoryProjectRepository {
	return &MemoryProjectRepository{projects: make(map[string]*entity.Project)}
}

func (r *MemoryProjectRepository) Save(_ context.Context, project *entity.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[project.ID] = project.Clone()
	return nil
}

func (r *MemoryProjectRepository) GetByID(_ context.Context, id string) (*entity.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (r *MemoryProjectRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.projects, id)
	return nil
}

func (r *MemoryProjectRepository) List(_ context.Context) ([]*entity.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p.Clone())
	}
	SortByLastModified(out)
	return out, nil
}
