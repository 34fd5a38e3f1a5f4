// Package wire 手工组装应用依赖
package wire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"novel-studio-api/internal/application/project"
	"novel-studio-api/internal/application/story/chapter"
	"novel-studio-api/internal/application/story/foundation"
	"novel-studio-api/internal/application/story/memory"
	"novel-studio-api/internal/application/story/planning"
	"novel-studio-api/internal/application/story/review"
	"novel-studio-api/internal/application/story/stage"
	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/config"
	"novel-studio-api/internal/domain/repository"
	"novel-studio-api/internal/infrastructure/llm"
	"novel-studio-api/internal/infrastructure/persistence/postgres"
	"novel-studio-api/internal/infrastructure/persistence/redis"
	"novel-studio-api/internal/infrastructure/persistence/sqlite"
	"novel-studio-api/internal/interfaces/http/handler"
	"novel-studio-api/internal/interfaces/http/middleware"
	"novel-studio-api/internal/interfaces/http/router"
	"novel-studio-api/internal/interfaces/ws"
	workflowchain "novel-studio-api/internal/workflow/chain"
	workflowprompt "novel-studio-api/internal/workflow/prompt"
	"novel-studio-api/pkg/logger"
)

// DataLayer 数据层依赖
type DataLayer struct {
	Repo   repository.ProjectRepository
	Checks map[string]handler.Pinger

	closers []func() error
}

// Close 关闭底层连接，按打开的逆序执行
func (d *DataLayer) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// OpenDataLayer 按 storage.driver 打开项目仓储
func OpenDataLayer(ctx context.Context, cfg *config.Config) (*DataLayer, error) {
	d := &DataLayer{Checks: map[string]handler.Pinger{}}

	switch cfg.Storage.Driver {
	case "memory":
		d.Repo = repository.NewMemoryProjectRepository()
	case "postgres":
		client, err := postgres.NewClient(ctx, &cfg.Storage.Postgres)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewProjectRepository(client)
		if err := repo.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("migrate projects table: %w", err)
		}
		d.Repo = repo
		d.Checks["postgres"] = client
		d.closers = append(d.closers, client.Close)
	case "sqlite", "":
		repo, err := sqlite.Open(ctx, cfg.Storage.SQLite.Path, cfg.Storage.SQLite.BusyTimeout)
		if err != nil {
			return nil, err
		}
		d.Repo = repo
		d.Checks["sqlite"] = repo
		d.closers = append(d.closers, repo.Close)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return d, nil
}

// Engine 写作引擎各组件
type Engine struct {
	Stages    *stage.Controller
	Architect *foundation.Architect
	Batch     *planning.BatchGenerator
	Planner   *planning.Editor
	Writer    *chapter.Writer
	Compactor *memory.Compactor
	Auditor   *review.Auditor
	Corrector *review.Corrector
}

// NewEngine 组装生成链路；cache 为 nil 时使用进程内审计缓存
func NewEngine(cfg *config.Config, store *project.Store, events storyutil.EventSink, cache review.ReportCache) *Engine {
	completer := llm.NewEinoCompleter(&cfg.LLM, llm.NewEinoFactory(&cfg.LLM))
	gen := workflowchain.NewGenerator(completer, workflowprompt.NewRegistry())
	runner := &storyutil.Runner{Projects: store, Events: events}
	if cache == nil {
		cache = review.NewMemoryReportCache()
	}

	planOpts := PlanningOptions(cfg.Engine)
	return &Engine{
		Stages:    stage.NewController(store),
		Architect: foundation.NewArchitect(runner, gen),
		Batch:     planning.NewBatchGenerator(runner, gen, planOpts),
		Planner:   planning.NewEditor(runner, gen, planOpts),
		Writer:    chapter.NewWriter(runner, workflowchain.NewDraftPipeline(gen), gen, ChapterOptions(cfg.Engine)),
		Compactor: memory.NewCompactor(runner, gen, MemoryOptions(cfg.Engine)),
		Auditor:   review.NewAuditor(runner, gen, cache, cfg.Cache.AuditTTL),
		Corrector: review.NewCorrector(runner, gen),
	}
}

// PlanningOptions 由配置生成细纲参数，未配置的项取默认值
func PlanningOptions(e config.EngineConfig) planning.Options {
	o := planning.DefaultOptions()
	o.EstimatedTotalChapters = orDefault(e.EstimatedTotalChapters, o.EstimatedTotalChapters)
	o.DefaultIncrement = orDefault(e.DefaultProgressIncrement, o.DefaultIncrement)
	o.EarlyPhaseChapters = orDefault(e.EarlyPhaseChapters, o.EarlyPhaseChapters)
	if len(e.BatchSizes) > 0 {
		o.BatchSizes = e.BatchSizes
	}
	return o
}

// ChapterOptions 由配置生成正文参数
func ChapterOptions(e config.EngineConfig) chapter.Options {
	o := chapter.DefaultOptions()
	o.PrevContextRunes = orDefault(e.PrevContextRunes, o.PrevContextRunes)
	o.MemorySyncInterval = orDefault(e.MemorySyncInterval, o.MemorySyncInterval)
	o.StyleSampleRunes = orDefault(e.StyleSampleRunes, o.StyleSampleRunes)
	return o
}

// MemoryOptions 由配置生成滚动记忆参数
func MemoryOptions(e config.EngineConfig) memory.Options {
	o := memory.DefaultOptions()
	o.Window = orDefault(e.MemoryWindow, o.Window)
	o.ExcerptRunes = orDefault(e.MemoryExcerptRunes, o.ExcerptRunes)
	o.MaxRunes = orDefault(e.MemoryMaxRunes, o.MaxRunes)
	return o
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// App HTTP 服务所需的全部组件
type App struct {
	cfg       *config.Config
	data      *DataLayer
	Store     *project.Store
	Engine    *Engine
	hub       *ws.Hub
	router    *router.Router
	autosaver *project.Autosaver
	redis     *redis.Client
}

// InitializeApp 组装应用；返回的 cleanup 负责刷盘并释放连接
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	data, err := OpenDataLayer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := project.Open(ctx, data.Repo, cfg.Storage.WriteQueueSize)
	if err != nil {
		_ = data.Close()
		return nil, nil, err
	}

	app := &App{cfg: cfg, data: data, Store: store}

	var (
		cache   review.ReportCache
		limiter middleware.RateLimiter
	)
	if cfg.Cache.Redis.Enabled {
		client, err := redis.NewClient(ctx, &cfg.Cache.Redis)
		if err != nil {
			// 缓存与限流可降级为进程内实现
			logger.Warn(ctx, "redis unavailable, falling back to in-process cache", "error", err.Error())
		} else {
			app.redis = client
			cache = redis.NewAuditCache(client, cfg.App.Name+":")
			limiter = redis.NewRateLimiter(client)
			data.Checks["redis"] = client
		}
	}

	app.hub = ws.NewHub(cfg.Security.CORS.AllowedOrigins)
	app.Engine = NewEngine(cfg, store, app.hub, cache)

	if cfg.Autosave.Enabled {
		app.autosaver, err = project.NewAutosaver(store, cfg.Autosave.Spec, 30*time.Second)
		if err != nil {
			app.cleanup(ctx)
			return nil, nil, err
		}
	}

	eng := app.Engine
	app.router = router.New(cfg, router.Handlers{
		Health:     handler.NewHealthHandler(cfg.App.Version, data.Checks),
		Project:    handler.NewProjectHandler(store, eng.Stages),
		Foundation: handler.NewFoundationHandler(eng.Architect),
		Planning:   handler.NewPlanningHandler(eng.Batch, eng.Planner),
		Writing:    handler.NewWritingHandler(eng.Writer, eng.Compactor),
		Review:     handler.NewReviewHandler(eng.Auditor, eng.Corrector),
		Events:     app.hub,
	}, limiter)

	return app, func() { app.cleanup(context.Background()) }, nil
}

// Handler 返回 HTTP 处理入口
func (a *App) Handler() *gin.Engine {
	return a.router.Engine()
}

// Start 启动自动保存
func (a *App) Start() {
	if a.autosaver != nil {
		a.autosaver.Start()
		logger.Info(context.Background(), "autosave scheduled", "spec", a.cfg.Autosave.Spec)
	}
}

func (a *App) cleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if a.hub != nil {
		a.hub.Close()
	}
	if a.autosaver != nil {
		if err := a.autosaver.Stop(ctx); err != nil {
			logger.Error(ctx, "final autosave failed", err)
		}
	}
	if err := a.Store.Close(ctx); err != nil {
		logger.Error(ctx, "failed to close project store", err)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.data.Close(); err != nil {
		logger.Error(ctx, "failed to close data layer", err)
	}
}
