package handler

import (
	"github.com/gin-gonic/gin"

	"novel-studio-api/internal/application/story/foundation"
	"novel-studio-api/internal/domain/entity"
	"novel-studio-api/internal/interfaces/http/dto"
)

// FoundationHandler 架构阶段：世界观、主线、角色与支线
type FoundationHandler struct {
	architect *foundation.Architect
}

// NewFoundationHandler 创建架构阶段处理器
func NewFoundationHandler(architect *foundation.Architect) *FoundationHandler {
	return &FoundationHandler{architect: architect}
}

// GenerateArchitecture 根据灵感生成完整架构
// @Router /v1/projects/{pid}/architecture/generate [post]
func (h *FoundationHandler) GenerateArchitecture(c *gin.Context) {
	p, err := h.architect.GenerateArchitecture(c.Request.Context(), dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, p)
}

// EditArchitecture 手动编辑架构字段
// @Router /v1/projects/{pid}/architecture [patch]
func (h *FoundationHandler) EditArchitecture(c *gin.Context) {
	var patch foundation.ArchitecturePatch
	if !bindJSON(c, &patch) {
		return
	}
	p, err := h.architect.Edit(c.Request.Context(), dto.BindProjectID(c), patch)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, p)
}

// GenerateWorldField 生成单个世界观字段
// @Router /v1/projects/{pid}/architecture/world/{field}/generate [post]
func (h *FoundationHandler) GenerateWorldField(c *gin.Context) {
	text, err := h.architect.GenerateWorldField(c.Request.Context(), dto.BindProjectID(c), entity.WorldField(c.Param("field")))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.TextResponse{Text: text})
}

// GeneratePlotStructure 生成详细主线构架
// @Router /v1/projects/{pid}/architecture/plot-structure/generate [post]
func (h *FoundationHandler) GeneratePlotStructure(c *gin.Context) {
	text, err := h.architect.GeneratePlotStructure(c.Request.Context(), dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.TextResponse{Text: text})
}

// BlendIdea 融合标签与自定义灵感
// @Router /v1/projects/{pid}/idea/blend [post]
func (h *FoundationHandler) BlendIdea(c *gin.Context) {
	var req dto.BlendIdeaRequest
	if !bindJSON(c, &req) {
		return
	}
	text, err := h.architect.BlendIdea(c.Request.Context(), dto.BindProjectID(c), req.Tags, req.Custom, req.Strict)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.TextResponse{Text: text})
}

// GenerateSideQuests 生成并追加支线
// @Router /v1/projects/{pid}/side-quests/generate [post]
func (h *FoundationHandler) GenerateSideQuests(c *gin.Context) {
	quests, err := h.architect.GenerateSideQuests(c.Request.Context(), dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, quests)
}

// RewriteSideQuest 按指令重写支线，保留 ID
// @Router /v1/projects/{pid}/side-quests/{qid}/rewrite [post]
func (h *FoundationHandler) RewriteSideQuest(c *gin.Context) {
	var req dto.InstructionRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.architect.RewriteSideQuest(c.Request.Context(), dto.BindProjectID(c), dto.BindQuestID(c), req.Instruction)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, q)
}

// DeleteSideQuest 删除支线
// @Router /v1/projects/{pid}/side-quests/{qid} [delete]
func (h *FoundationHandler) DeleteSideQuest(c *gin.Context) {
	if err := h.architect.DeleteSideQuest(c.Request.Context(), dto.BindProjectID(c), dto.BindQuestID(c)); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}

// AddCharacter 新建角色
// @Router /v1/projects/{pid}/characters [post]
func (h *FoundationHandler) AddCharacter(c *gin.Context) {
	var req foundation.CharacterInput
	if !bindJSON(c, &req) {
		return
	}
	ch, err := h.architect.AddCharacter(c.Request.Context(), dto.BindProjectID(c), req)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Created(c, ch)
}

// UpdateCharacter 编辑角色
// @Router /v1/projects/{pid}/characters/{chid} [put]
func (h *FoundationHandler) UpdateCharacter(c *gin.Context) {
	var req foundation.CharacterInput
	if !bindJSON(c, &req) {
		return
	}
	ch, err := h.architect.UpdateCharacter(c.Request.Context(), dto.BindProjectID(c), dto.BindCharacterID(c), req)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, ch)
}

// DeleteCharacter 删除角色
// @Router /v1/projects/{pid}/characters/{chid} [delete]
func (h *FoundationHandler) DeleteCharacter(c *gin.Context) {
	if err := h.architect.DeleteCharacter(c.Request.Context(), dto.BindProjectID(c), dto.BindCharacterID(c)); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}

// RefineCharacter 按指令精修角色
// @Router /v1/projects/{pid}/characters/{chid}/refine [post]
func (h *FoundationHandler) RefineCharacter(c *gin.Context) {
	var req dto.InstructionRequest
	if !bindJSON(c, &req) {
		return
	}
	ch, err := h.architect.RefineCharacter(c.Request.Context(), dto.BindProjectID(c), dto.BindCharacterID(c), req.Instruction)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, ch)
}
