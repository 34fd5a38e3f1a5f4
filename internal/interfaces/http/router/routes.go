package router

import (
	"github.com/gin-gonic/gin"

	"novel-studio-api/internal/interfaces/http/handler"
	"novel-studio-api/internal/interfaces/ws"
)

// Handlers 路由依赖的处理器集合
type Handlers struct {
	Health     *handler.HealthHandler
	Project    *handler.ProjectHandler
	Foundation *handler.FoundationHandler
	Planning   *handler.PlanningHandler
	Writing    *handler.WritingHandler
	Review     *handler.ReviewHandler
	Events     *ws.Hub
}

// RegisterV1Routes 注册 v1 路由；limit 只挂在触发生成的接口上
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers, limit gin.HandlerFunc) {
	projects := v1.Group("/projects")
	{
		projects.GET("", h.Project.ListProjects)
		projects.POST("", h.Project.CreateProject)
		projects.POST("/import", h.Project.ImportProject)
		projects.GET("/:pid", h.Project.GetProject)
		projects.DELETE("/:pid", h.Project.DeleteProject)
		projects.GET("/:pid/export", h.Project.ExportProject)
		projects.POST("/:pid/stage/advance", h.Project.AdvanceStage)
		projects.POST("/:pid/stage/view", h.Project.ViewStage)
		if h.Events != nil {
			projects.GET("/:pid/events", h.Events.Serve)
		}
	}

	// 架构阶段
	if f := h.Foundation; f != nil {
		projects.PATCH("/:pid/architecture", f.EditArchitecture)
		projects.POST("/:pid/characters", f.AddCharacter)
		projects.PUT("/:pid/characters/:chid", f.UpdateCharacter)
		projects.DELETE("/:pid/characters/:chid", f.DeleteCharacter)
		projects.DELETE("/:pid/side-quests/:qid", f.DeleteSideQuest)

		gen := projects.Group("", limit)
		gen.POST("/:pid/architecture/generate", f.GenerateArchitecture)
		gen.POST("/:pid/architecture/world/:field/generate", f.GenerateWorldField)
		gen.POST("/:pid/architecture/plot-structure/generate", f.GeneratePlotStructure)
		gen.POST("/:pid/idea/blend", f.BlendIdea)
		gen.POST("/:pid/side-quests/generate", f.GenerateSideQuests)
		gen.POST("/:pid/side-quests/:qid/rewrite", f.RewriteSideQuest)
		gen.POST("/:pid/characters/:chid/refine", f.RefineCharacter)
	}

	// 细纲阶段
	if p := h.Planning; p != nil {
		projects.POST("/:pid/chapters/insert", p.InsertChapter)
		projects.PATCH("/:pid/chapters/:cid", p.EditChapter)
		projects.DELETE("/:pid/chapters/:cid", p.DeleteChapter)
		projects.POST("/:pid/milestones", p.AddMilestone)
		projects.PUT("/:pid/milestones/:mid", p.UpdateMilestone)
		projects.DELETE("/:pid/milestones/:mid", p.DeleteMilestone)

		gen := projects.Group("", limit)
		gen.POST("/:pid/chapters/batch", p.GenerateBatch)
		gen.POST("/:pid/chapters/:cid/rewrite", p.RewriteChapter)
		gen.POST("/:pid/cast/suggest", p.SuggestCast)
		gen.POST("/:pid/plot-structure/resync", p.ResyncStructure)
		gen.POST("/:pid/milestones/extract", p.ExtractMilestones)
	}

	// 正文阶段
	if w := h.Writing; w != nil {
		projects.PUT("/:pid/chapters/:cid/content", w.SaveContent)
		projects.PUT("/:pid/mimicry", w.SetMimicry)
		projects.PUT("/:pid/memory", w.SetMemory)

		gen := projects.Group("", limit)
		gen.POST("/:pid/chapters/:cid/write", w.WriteChapter)
		gen.POST("/:pid/style/analyze", w.AnalyzeStyle)
		gen.POST("/:pid/memory/sync", w.SyncMemory)
	}

	// 审阅
	if rv := h.Review; rv != nil {
		projects.POST("/:pid/logic/apply", rv.ApplyFixes)

		gen := projects.Group("", limit)
		gen.POST("/:pid/audit", rv.Audit)
		gen.POST("/:pid/logic/scan", rv.ScanLogic)
	}
}
