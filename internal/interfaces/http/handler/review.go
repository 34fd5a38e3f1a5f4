package handler

import (
	"github.com/gin-gonic/gin"

	"novel-studio-api/internal/application/story/review"
	"novel-studio-api/internal/interfaces/http/dto"
)

// ReviewHandler 一致性审计与逻辑修正
type ReviewHandler struct {
	auditor   *review.Auditor
	corrector *review.Corrector
}

// NewReviewHandler 创建审阅处理器
func NewReviewHandler(auditor *review.Auditor, corrector *review.Corrector) *ReviewHandler {
	return &ReviewHandler{auditor: auditor, corrector: corrector}
}

// Audit 一致性审计；内容未变时返回缓存报告
// @Router /v1/projects/{pid}/audit [post]
func (h *ReviewHandler) Audit(c *gin.Context) {
	report, err := h.auditor.Audit(c.Request.Context(), dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, report)
}

// ScanLogic 扫描章节细纲的逻辑问题
// @Router /v1/projects/{pid}/logic/scan [post]
func (h *ReviewHandler) ScanLogic(c *gin.Context) {
	issues, err := h.corrector.Scan(c.Request.Context(), dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, issues)
}

// ApplyFixes 批量应用修正建议；已删除的章节被跳过
// @Router /v1/projects/{pid}/logic/apply [post]
func (h *ReviewHandler) ApplyFixes(c *gin.Context) {
	var req dto.ApplyFixesRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.corrector.ApplyAll(c.Request.Context(), dto.BindProjectID(c), req.Issues)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, res)
}
