package handler

import (
	"github.com/gin-gonic/gin"

	"novel-studio-api/internal/application/story/chapter"
	"novel-studio-api/internal/application/story/memory"
	"novel-studio-api/internal/domain/entity"
	"novel-studio-api/internal/interfaces/http/dto"
	workflowchain "novel-studio-api/internal/workflow/chain"
)

// WritingHandler 正文阶段：章节生成、文风与滚动记忆
type WritingHandler struct {
	writer    *chapter.Writer
	compactor *memory.Compactor
}

// NewWritingHandler 创建正文阶段处理器
func NewWritingHandler(writer *chapter.Writer, compactor *memory.Compactor) *WritingHandler {
	return &WritingHandler{writer: writer, compactor: compactor}
}

// WriteChapter 生成章节正文；mode 取 fast|deep，writeMode 取 auto|continue
// @Router /v1/projects/{pid}/chapters/{cid}/write [post]
func (h *WritingHandler) WriteChapter(c *gin.Context) {
	var req dto.WriteChapterRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.writer.Write(c.Request.Context(), dto.BindProjectID(c), chapter.WriteRequest{
		ChapterID: dto.BindChapterID(c),
		Mode:      workflowchain.DraftMode(req.Mode),
		WriteMode: chapter.WriteMode(req.WriteMode),
	})
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, res)
}

// SaveContent 手动保存章节正文
// @Router /v1/projects/{pid}/chapters/{cid}/content [put]
func (h *WritingHandler) SaveContent(c *gin.Context) {
	var req dto.ContentRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.writer.SaveContent(c.Request.Context(), dto.BindProjectID(c), dto.BindChapterID(c), req.Content); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}

// AnalyzeStyle 拆解参考文本的文风并启用模仿
// @Router /v1/projects/{pid}/style/analyze [post]
func (h *WritingHandler) AnalyzeStyle(c *gin.Context) {
	var req dto.StyleAnalyzeRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.writer.AnalyzeStyle(c.Request.Context(), dto.BindProjectID(c), req.Name, req.Sample)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, m)
}

// SetMimicry 修改文风模仿设置
// @Router /v1/projects/{pid}/mimicry [put]
func (h *WritingHandler) SetMimicry(c *gin.Context) {
	var req entity.MimicrySettings
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.writer.SetMimicry(c.Request.Context(), dto.BindProjectID(c), req)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, m)
}

// SyncMemory 以当前章节为锚点重建滚动记忆
// @Router /v1/projects/{pid}/memory/sync [post]
func (h *WritingHandler) SyncMemory(c *gin.Context) {
	var req dto.MemorySyncRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.compactor.Sync(c.Request.Context(), dto.BindProjectID(c), req.ActiveIndex)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, res)
}

// SetMemory 手动修改滚动记忆
// @Router /v1/projects/{pid}/memory [put]
func (h *WritingHandler) SetMemory(c *gin.Context) {
	var req dto.MemoryRequest
	if !bindJSON(c, &req) {
		return
	}
	text, err := h.compactor.SetDigest(c.Request.Context(), dto.BindProjectID(c), req.Summary)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.TextResponse{Text: text})
}
