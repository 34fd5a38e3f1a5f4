// Package sqlite 提供基于 SQLite 的本地项目仓储，项目以 JSON 文档整体存储
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel"
	_ "modernc.org/sqlite"

	"novel-studio-api/internal/domain/entity"
	"novel-studio-api/internal/domain/repository"
)

var tracer = otel.Tracer("sqlite")

// ErrLocked 数据目录已被其他进程占用
var ErrLocked = errors.New("sqlite: store is locked by another process")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	last_modified INTEGER NOT NULL,
	document      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_last_modified ON projects(last_modified DESC);
`

// ProjectRepository SQLite 项目仓储
type ProjectRepository struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

var _ repository.ProjectRepository = (*ProjectRepository)(nil)

// Open 打开数据库并获取数据目录锁；同一数据库同时只允许一个进程写入
func Open(ctx context.Context, path string, busyTimeout time.Duration) (*ProjectRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// busy_timeout 是连接级设置，单连接保证所有语句都生效
	db.SetMaxOpenConns(1)

	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &ProjectRepository{db: db, path: path, lock: lock}, nil
}

// Path 数据库文件路径
func (r *ProjectRepository) Path() string {
	return r.path
}

// Ping 检查数据库连接
func (r *ProjectRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close 关闭数据库并释放目录锁
func (r *ProjectRepository) Close() error {
	err := r.db.Close()
	if unlockErr := r.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}

// Save 创建或覆盖项目
func (r *ProjectRepository) Save(ctx context.Context, p *entity.Project) error {
	ctx, span := tracer.Start(ctx, "sqlite.ProjectRepository.Save")
	defer span.End()

	doc, err := json.Marshal(p)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("encode project: %w", err)
	}
	err = retryOnBusy(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO projects (id, title, last_modified, document) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				last_modified = excluded.last_modified,
				document = excluded.document`,
			p.ID, p.Title, p.LastModified.UnixMilli(), string(doc))
		return err
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取项目，不存在时返回 nil, nil
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	ctx, span := tracer.Start(ctx, "sqlite.ProjectRepository.GetByID")
	defer span.End()

	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT document FROM projects WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get project: %w", err)
	}
	return decode(doc)
}

// Delete 删除项目
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "sqlite.ProjectRepository.Delete")
	defer span.End()

	err := retryOnBusy(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// List 获取全部项目，按最后修改时间倒序
func (r *ProjectRepository) List(ctx context.Context) ([]*entity.Project, error) {
	ctx, span := tracer.Start(ctx, "sqlite.ProjectRepository.List")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `SELECT document FROM projects ORDER BY last_modified DESC`)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []*entity.Project
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	repository.SortByLastModified(out)
	return out, nil
}

func decode(doc string) (*entity.Project, error) {
	var p entity.Project
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	p.Normalize()
	return &p, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
