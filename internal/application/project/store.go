// Package project 管理项目集合及其持久化生命周期。
package project

import (
	"context"
	"fmt"
	"sync"
	"time"

	"novel-studio-api/internal/domain/entity"
	"novel-studio-api/internal/domain/repository"
	apperrors "novel-studio-api/pkg/errors"
	"novel-studio-api/pkg/logger"
	"novel-studio-api/pkg/metrics"
)

const defaultQueueSize = 64

type opKind int

const (
	opSave opKind = iota
	opDelete
	opFlush
)

type writeOp struct {
	kind     opKind
	id       string
	snapshot *entity.Project
	done     chan error
}

// Store 持有全部项目的内存状态，并通过单个写协程把快照顺序写入仓储。
// 内存状态是唯一可信来源；仓储写入失败的项目保留在 failed 集合中，下次 Flush 重试。
type Store struct {
	repo repository.ProjectRepository

	mu       sync.RWMutex
	projects map[string]*entity.Project
	failed   map[string]struct{}

	busyMu sync.Mutex
	busy   map[string]*sync.Mutex

	queue   chan writeOp
	stopped chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// Open 从仓储加载全部项目并启动写协程
func Open(ctx context.Context, repo repository.ProjectRepository, queueSize int) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("project repository is nil")
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	items, err := repo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "load projects failed")
	}

	s := &Store{
		repo:     repo,
		projects: make(map[string]*entity.Project, len(items)),
		failed:   make(map[string]struct{}),
		busy:     make(map[string]*sync.Mutex),
		queue:    make(chan writeOp, queueSize),
		stopped:  make(chan struct{}),
	}
	for _, p := range items {
		p.Normalize()
		s.projects[p.ID] = p
	}
	go s.writer()

	logger.Info(ctx, "project store opened", "projects", len(items))
	return s, nil
}

// Create 创建空项目，初始位于架构阶段
func (s *Store) Create(ctx context.Context, title string) (*entity.Project, error) {
	p := entity.NewProject(title)
	if err := s.put(ctx, p); err != nil {
		return nil, err
	}
	logger.Info(logger.WithProject(ctx, p.ID), "project created", "title", p.Title)
	return p.Clone(), nil
}

// Get 返回项目副本
func (s *Store) Get(_ context.Context, id string) (*entity.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, apperrors.ErrProjectNotFound.WithDetail(id)
	}
	return p.Clone(), nil
}

// List 返回项目列表，按最后修改时间倒序
func (s *Store) List(_ context.Context) []repository.ProjectSummary {
	s.mu.RLock()
	items := make([]*entity.Project, 0, len(s.projects))
	for _, p := range s.projects {
		items = append(items, p)
	}
	repository.SortByLastModified(items)
	out := make([]repository.ProjectSummary, 0, len(items))
	for _, p := range items {
		out = append(out, repository.SummaryOf(p))
	}
	s.mu.RUnlock()
	return out
}

// Update 在当前状态的副本上执行 fn，成功后整体替换并刷新最后修改时间。
// fn 返回错误、ctx 已取消或存储已关闭时项目保持不变；返回成功即已提交。
func (s *Store) Update(ctx context.Context, id string, fn func(p *entity.Project) error) (*entity.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, errStoreClosed()
	}

	s.mu.Lock()
	cur, ok := s.projects[id]
	if !ok {
		s.mu.Unlock()
		return nil, apperrors.ErrProjectNotFound.WithDetail(id)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	next.ID = id
	next.Normalize()
	next.Touch()
	s.projects[id] = next
	snapshot := next.Clone()
	s.mu.Unlock()

	// 内存已替换，入队不再受调用方取消影响；仅在存储关闭时失败并回滚
	if err := s.enqueue(context.WithoutCancel(ctx), writeOp{kind: opSave, id: id, snapshot: snapshot}); err != nil {
		s.rollback(id, next, cur)
		return nil, err
	}
	return snapshot.Clone(), nil
}

// rollback 把 id 从 committed 恢复为 prev；期间被其他提交覆盖时不动。prev 为 nil 表示删除
func (s *Store) rollback(id string, committed, prev *entity.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projects[id] != committed {
		return
	}
	if prev == nil {
		delete(s.projects, id)
		return
	}
	s.projects[id] = prev
}

func (s *Store) isClosed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closed
}

func errStoreClosed() *apperrors.AppError {
	return apperrors.New(apperrors.CodeStorageError, "project store closed")
}

// Delete 删除项目
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.projects[id]; !ok {
		s.mu.Unlock()
		return apperrors.ErrProjectNotFound.WithDetail(id)
	}
	delete(s.projects, id)
	delete(s.failed, id)
	s.mu.Unlock()

	s.busyMu.Lock()
	delete(s.busy, id)
	s.busyMu.Unlock()

	logger.Info(logger.WithProject(ctx, id), "project deleted")
	return s.enqueue(ctx, writeOp{kind: opDelete, id: id})
}

// put 新增或整体覆盖项目（创建与导入使用），失败时不留下内存状态
func (s *Store) put(ctx context.Context, p *entity.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Normalize()
	committed := p.Clone()
	s.mu.Lock()
	prev := s.projects[p.ID]
	s.projects[p.ID] = committed
	snapshot := p.Clone()
	s.mu.Unlock()
	if err := s.enqueue(context.WithoutCancel(ctx), writeOp{kind: opSave, id: p.ID, snapshot: snapshot}); err != nil {
		s.rollback(p.ID, committed, prev)
		return err
	}
	return nil
}

// Lock 获取项目忙碌锁；已有生成操作进行中时返回 ErrProjectBusy
func (s *Store) Lock(id string) (func(), error) {
	s.busyMu.Lock()
	m, ok := s.busy[id]
	if !ok {
		m = &sync.Mutex{}
		s.busy[id] = m
	}
	s.busyMu.Unlock()

	if !m.TryLock() {
		return nil, apperrors.ErrProjectBusy.WithDetail(id)
	}
	var once sync.Once
	return func() { once.Do(m.Unlock) }, nil
}

func (s *Store) enqueue(ctx context.Context, op writeOp) error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return errStoreClosed()
	}
	select {
	case s.queue <- op:
		metrics.PersistQueueDepth.Set(float64(len(s.queue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush 重新排入写入失败的项目，并等待队列中此前的写入全部完成
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	retry := make([]*entity.Project, 0, len(s.failed))
	for id := range s.failed {
		if p, ok := s.projects[id]; ok {
			retry = append(retry, p.Clone())
		}
	}
	s.failed = make(map[string]struct{})
	s.mu.Unlock()

	for _, p := range retry {
		if err := s.enqueue(ctx, writeOp{kind: opSave, id: p.ID, snapshot: p}); err != nil {
			return err
		}
	}

	done := make(chan error, 1)
	if err := s.enqueue(ctx, writeOp{kind: opFlush, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 写完剩余快照后停止写协程
func (s *Store) Close(ctx context.Context) error {
	flushErr := s.Flush(ctx)

	s.closeMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.closeMu.Unlock()

	select {
	case <-s.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	return flushErr
}

func (s *Store) writer() {
	defer close(s.stopped)
	var sinceFlush error
	for op := range s.queue {
		metrics.PersistQueueDepth.Set(float64(len(s.queue)))
		switch op.kind {
		case opFlush:
			op.done <- sinceFlush
			sinceFlush = nil
		case opSave, opDelete:
			if err := s.apply(op); err != nil {
				sinceFlush = err
			}
		}
	}
}

func (s *Store) apply(op writeOp) error {
	ctx, cancel := context.WithTimeout(logger.WithProject(context.Background(), op.id), 30*time.Second)
	defer cancel()

	var err error
	if op.kind == opDelete {
		err = s.repo.Delete(ctx, op.id)
	} else {
		err = s.repo.Save(ctx, op.snapshot)
	}
	if err != nil {
		metrics.PersistTotal.WithLabelValues("error").Inc()
		logger.Error(ctx, "persist project failed", err)
		if op.kind == opSave {
			s.mu.Lock()
			if _, ok := s.projects[op.id]; ok {
				s.failed[op.id] = struct{}{}
			}
			s.mu.Unlock()
		}
		return apperrors.Wrap(err, apperrors.CodeStorageError, "persist project failed")
	}
	metrics.PersistTotal.WithLabelValues("ok").Inc()
	return nil
}
