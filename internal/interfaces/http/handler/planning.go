package handler

import (
	"github.com/gin-gonic/gin"

	"novel-studio-api/internal/application/story/planning"
	domainservice "novel-studio-api/internal/domain/service"
	"novel-studio-api/internal/interfaces/http/dto"
	"novel-studio-api/pkg/errors"
)

// PlanningHandler 细纲阶段：批量生成、章节编辑、里程碑与选角
type PlanningHandler struct {
	batch  *planning.BatchGenerator
	editor *planning.Editor
}

// NewPlanningHandler 创建细纲阶段处理器
func NewPlanningHandler(batch *planning.BatchGenerator, editor *planning.Editor) *PlanningHandler {
	return &PlanningHandler{batch: batch, editor: editor}
}

// GenerateBatch 批量生成章节细纲并推进进度
// @Router /v1/projects/{pid}/chapters/batch [post]
func (h *PlanningHandler) GenerateBatch(c *gin.Context) {
	var req dto.BatchRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.batch.Generate(c.Request.Context(), dto.BindProjectID(c), planning.BatchRequest{
		BatchSize:        req.BatchSize,
		ManualIncrement:  req.ManualIncrement,
		EstimatedTotal:   req.EstimatedTotal,
		ActiveCharacters: req.ActiveCharacters,
	})
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, res)
}

// SuggestCast 为下一批次推荐登场角色
// @Router /v1/projects/{pid}/cast/suggest [post]
func (h *PlanningHandler) SuggestCast(c *gin.Context) {
	var req dto.SuggestCastRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	cast, err := h.editor.SuggestCast(c.Request.Context(), dto.BindProjectID(c), req.BatchSize, req.ManualIncrement)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, cast)
}

// InsertChapter 在指定位置之后插入占位章节
// @Router /v1/projects/{pid}/chapters/insert [post]
func (h *PlanningHandler) InsertChapter(c *gin.Context) {
	var req dto.InsertChapterRequest
	if !bindJSON(c, &req) {
		return
	}
	ch, err := h.editor.InsertChapter(c.Request.Context(), dto.BindProjectID(c), req.AfterIndex)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Created(c, ch)
}

// EditChapter 手动编辑章节细纲
// @Router /v1/projects/{pid}/chapters/{cid} [patch]
func (h *PlanningHandler) EditChapter(c *gin.Context) {
	var patch planning.ChapterPatch
	if !bindJSON(c, &patch) {
		return
	}
	ch, err := h.editor.EditChapter(c.Request.Context(), dto.BindProjectID(c), dto.BindChapterID(c), patch)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, ch)
}

// DeleteChapter 删除章节及正文，进度回退
// @Router /v1/projects/{pid}/chapters/{cid} [delete]
func (h *PlanningHandler) DeleteChapter(c *gin.Context) {
	p, err := h.editor.DeleteChapter(c.Request.Context(), dto.BindProjectID(c), dto.BindChapterID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, p)
}

// RewriteChapter 按指令重写单章细纲
// @Router /v1/projects/{pid}/chapters/{cid}/rewrite [post]
func (h *PlanningHandler) RewriteChapter(c *gin.Context) {
	var req dto.InstructionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	ch, err := h.editor.RewriteChapter(c.Request.Context(), dto.BindProjectID(c), dto.BindChapterID(c), req.Instruction)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, ch)
}

// ResyncStructure 依据现有章节反向修正主线构架
// @Router /v1/projects/{pid}/plot-structure/resync [post]
func (h *PlanningHandler) ResyncStructure(c *gin.Context) {
	text, err := h.editor.ResyncStructure(c.Request.Context(), dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.TextResponse{Text: text})
}

// ExtractMilestones 从主线构架提取关键节点
// @Router /v1/projects/{pid}/milestones/extract [post]
func (h *PlanningHandler) ExtractMilestones(c *gin.Context) {
	var req dto.ExtractMilestonesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	ms, err := h.editor.ExtractMilestones(c.Request.Context(), dto.BindProjectID(c), req.EstimatedTotal)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, ms)
}

// AddMilestone 新建里程碑
// @Router /v1/projects/{pid}/milestones [post]
func (h *PlanningHandler) AddMilestone(c *gin.Context) {
	var req planning.MilestoneInput
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.editor.AddMilestone(c.Request.Context(), dto.BindProjectID(c), req)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Created(c, m)
}

// UpdateMilestone 编辑里程碑
// @Router /v1/projects/{pid}/milestones/{mid} [put]
func (h *PlanningHandler) UpdateMilestone(c *gin.Context) {
	var req planning.MilestoneInput
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.editor.UpdateMilestone(c.Request.Context(), dto.BindProjectID(c), dto.BindMilestoneID(c), req)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, m)
}

// DeleteMilestone 删除里程碑
// @Router /v1/projects/{pid}/milestones/{mid} [delete]
func (h *PlanningHandler) DeleteMilestone(c *gin.Context) {
	if err := h.editor.DeleteMilestone(c.Request.Context(), dto.BindProjectID(c), dto.BindMilestoneID(c)); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}

// ParseRange 解析章节范围描述，供前端预览
// @Router /v1/ranges [get]
func ParseRange(c *gin.Context) {
	text := c.Query("text")
	r, ok := domainservice.ParseRange(text)
	if !ok {
		dto.Fail(c, errors.ErrInvalidParam.WithDetail("no chapter range in "+text))
		return
	}
	dto.Success(c, r)
}
