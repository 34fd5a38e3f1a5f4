package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"novel-studio-api/internal/domain/entity"
	"novel-studio-api/internal/domain/repository"
)

// projectRecord projects 表。完整项目存于 document（JSONB），
// chapter_order 冗余保存章节顺序，读取时用于校验文档完整性
type projectRecord struct {
	ID           string         `gorm:"column:id;primaryKey;type:text"`
	Title        string         `gorm:"column:title;not null"`
	CurrentStep  int            `gorm:"column:current_step;not null"`
	PlotProgress int            `gorm:"column:plot_progress;not null"`
	ChapterOrder pq.StringArray `gorm:"column:chapter_order;type:text[]"`
	Document     []byte         `gorm:"column:document;type:jsonb;not null"`
	LastModified time.Time      `gorm:"column:last_modified;index"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
}

func (projectRecord) TableName() string {
	return "projects"
}

// ProjectRepository 项目仓储实现
type ProjectRepository struct {
	client *Client
}

var _ repository.ProjectRepository = (*ProjectRepository)(nil)

// NewProjectRepository 创建项目仓储
func NewProjectRepository(client *Client) *ProjectRepository {
	return &ProjectRepository{client: client}
}

// Migrate 创建或更新表结构
func (r *ProjectRepository) Migrate(ctx context.Context) error {
	return r.client.db.WithContext(ctx).AutoMigrate(&projectRecord{})
}

// Save 创建或覆盖项目
func (r *ProjectRepository) Save(ctx context.Context, p *entity.Project) error {
	ctx, span := tracer.Start(ctx, "postgres.ProjectRepository.Save")
	defer span.End()

	rec, err := toRecord(p)
	if err != nil {
		span.RecordError(err)
		return err
	}
	err = r.client.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(rec).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取项目，不存在时返回 nil, nil
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	ctx, span := tracer.Start(ctx, "postgres.ProjectRepository.GetByID")
	defer span.End()

	var rec projectRecord
	if err := r.client.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return fromRecord(&rec)
}

// Delete 删除项目
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ProjectRepository.Delete")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Delete(&projectRecord{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// List 获取全部项目，按最后修改时间倒序
func (r *ProjectRepository) List(ctx context.Context) ([]*entity.Project, error) {
	ctx, span := tracer.Start(ctx, "postgres.ProjectRepository.List")
	defer span.End()

	var recs []projectRecord
	if err := r.client.db.WithContext(ctx).Order("last_modified DESC").Find(&recs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	out := make([]*entity.Project, 0, len(recs))
	for i := range recs {
		p, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func toRecord(p *entity.Project) (*projectRecord, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	order := make(pq.StringArray, 0, len(p.Chapters))
	for _, c := range p.Chapters {
		order = append(order, c.ID)
	}
	return &projectRecord{
		ID:           p.ID,
		Title:        p.Title,
		CurrentStep:  int(p.CurrentStep),
		PlotProgress: p.PlotProgress,
		ChapterOrder: order,
		Document:     doc,
		LastModified: p.LastModified,
		CreatedAt:    p.CreatedAt,
	}, nil
}

func fromRecord(rec *projectRecord) (*entity.Project, error) {
	var p entity.Project
	if err := json.Unmarshal(rec.Document, &p); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", rec.ID, err)
	}
	order := make([]string, 0, len(p.Chapters))
	for _, c := range p.Chapters {
		order = append(order, c.ID)
	}
	if !slices.Equal(order, []string(rec.ChapterOrder)) {
		return nil, fmt.Errorf("project %s: chapter order does not match document", rec.ID)
	}
	p.Normalize()
	return &p, nil
}
