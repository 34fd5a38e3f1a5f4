package handler

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"novel-studio-api/internal/application/project"
	"novel-studio-api/internal/application/story/stage"
	"novel-studio-api/internal/domain/entity"
	"novel-studio-api/internal/interfaces/http/dto"
	"novel-studio-api/pkg/errors"
)

// maxImportBytes 导入文件大小上限
const maxImportBytes = 32 << 20

// ProjectHandler 项目存取、阶段切换与导入导出
type ProjectHandler struct {
	store  *project.Store
	stages *stage.Controller
}

// NewProjectHandler 创建项目处理器
func NewProjectHandler(store *project.Store, stages *stage.Controller) *ProjectHandler {
	return &ProjectHandler{store: store, stages: stages}
}

// ListProjects 获取项目列表（按最后修改时间倒序）
// @Router /v1/projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	dto.Success(c, dto.ToProjectListResponse(h.store.List(c.Request.Context())))
}

// CreateProject 创建空项目，初始位于架构阶段
// @Router /v1/projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req dto.CreateProjectRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	p, err := h.store.Create(c.Request.Context(), req.Title)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Created(c, p)
}

// GetProject 获取完整项目
// @Router /v1/projects/{pid} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	p, err := h.store.Get(c.Request.Context(), dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, p)
}

// DeleteProject 删除项目
// @Router /v1/projects/{pid} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), dto.BindProjectID(c)); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}

// ImportProject 导入项目备份；总是分配新 ID，无法解码时整体拒绝
// @Router /v1/projects/import [post]
func (h *ProjectHandler) ImportProject(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes+1))
	if err != nil {
		dto.BadRequest(c, "failed to read body")
		return
	}
	if len(data) > maxImportBytes {
		dto.Fail(c, errors.ErrValidationFailed.WithDetail("import payload too large"))
		return
	}
	p, err := h.store.Import(c.Request.Context(), data)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Created(c, p)
}

// ExportProject 导出项目，format 取 json|txt|doc
// @Router /v1/projects/{pid}/export [get]
func (h *ProjectHandler) ExportProject(c *gin.Context) {
	format, err := project.ParseExportFormat(c.Query("format"))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	doc, err := h.store.Export(c.Request.Context(), dto.BindProjectID(c), format)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(doc.Filename)))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

// AdvanceStage 进入下一阶段（需满足阶段门槛）
// @Router /v1/projects/{pid}/stage/advance [post]
func (h *ProjectHandler) AdvanceStage(c *gin.Context) {
	p, err := h.stages.Advance(c.Request.Context(), dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.NewStageResponse(p.CurrentStep, p))
}

// ViewStage 校验能否查看指定阶段，不修改最高标记
// @Router /v1/projects/{pid}/stage/view [post]
func (h *ProjectHandler) ViewStage(c *gin.Context) {
	var req dto.StageRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	pid := dto.BindProjectID(c)
	view, err := h.stages.Navigate(ctx, pid, entity.Stage(req.Stage))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	p, err := h.store.Get(ctx, pid)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.NewStageResponse(view, p))
}
