package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-studio-api/internal/application/project"
	"novel-studio-api/internal/application/story/planning"
	"novel-studio-api/internal/application/story/stage"
	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/config"
	"novel-studio-api/internal/domain/entity"
	"novel-studio-api/internal/domain/repository"
	"novel-studio-api/internal/interfaces/http/handler"
)

type testEnv struct {
	store  *project.Store
	engine *gin.Engine
}

func newTestEnv(t *testing.T, mutate func(cfg *config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := project.Open(context.Background(), repository.NewMemoryProjectRepository(), 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	runner := &storyutil.Runner{Projects: store}
	opts := planning.DefaultOptions()
	cfg := &config.Config{}
	cfg.App.Name = "novel-studio-api"
	if mutate != nil {
		mutate(cfg)
	}

	r := New(cfg, Handlers{
		Health:   handler.NewHealthHandler("test", nil),
		Project:  handler.NewProjectHandler(store, stage.NewController(store)),
		Planning: handler.NewPlanningHandler(planning.NewBatchGenerator(runner, nil, opts), planning.NewEditor(runner, nil, opts)),
	}, nil)
	return &testEnv{store: store, engine: r.Engine()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code  int             `json:"code"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		ErrorCode string `json:"error_code"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (e *testEnv) createProject(t *testing.T, title string) entity.Project {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/projects", map[string]string{"title": title})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p entity.Project
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &p))
	return p
}

func TestProjects_CreateListGet(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.createProject(t, "万古神帝")
	assert.Equal(t, entity.StageArchitecture, p.CurrentStep)

	w := env.do(t, http.MethodGet, "/v1/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "万古神帝")

	w = env.do(t, http.MethodGet, "/v1/projects/"+p.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/v1/projects/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProjects_CreateWithoutBodyUsesDefaultTitle(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/projects", nil)
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "未命名作品")
}

func TestStage_AdvanceBlockedWithoutIdea(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.createProject(t, "书")

	w := env.do(t, http.MethodPost, "/v1/projects/"+p.ID+"/stage/advance", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "4013", decode(t, w).Error.ErrorCode)

	w = env.do(t, http.MethodPost, "/v1/projects/"+p.ID+"/stage/view", map[string]int{"stage": 2})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStage_AdvanceAfterArchitecture(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.createProject(t, "书")
	_, err := env.store.Update(context.Background(), p.ID, func(p *entity.Project) error {
		p.Idea = "少年修仙"
		p.Architecture.MainPlot = "从杂役到仙帝"
		return nil
	})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/v1/projects/"+p.ID+"/stage/advance", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"stageName":"planning"`)

	w = env.do(t, http.MethodPost, "/v1/projects/"+p.ID+"/stage/view", map[string]int{"stage": 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"currentStep":2`)
}

func TestChapters_InsertAndDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.createProject(t, "书")

	w := env.do(t, http.MethodPost, "/v1/projects/"+p.ID+"/chapters/insert", map[string]int{"afterIndex": -1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ch entity.Chapter
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &ch))
	assert.Equal(t, "新插入章节", ch.Title)

	w = env.do(t, http.MethodPost, "/v1/projects/"+p.ID+"/chapters/insert", map[string]int{"afterIndex": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/v1/projects/"+p.ID+"/chapters/"+ch.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got, err := env.store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Chapters)
}

func TestBatch_RejectedWhileBusy(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.createProject(t, "书")
	release, err := env.store.Lock(p.ID)
	require.NoError(t, err)
	defer release()

	w := env.do(t, http.MethodPost, "/v1/projects/"+p.ID+"/chapters/batch", map[string]any{
		"batchSize": 20, "activeCharacters": []string{"林凡"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "4012", decode(t, w).Error.ErrorCode)
}

func TestBatch_InvalidBody(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.createProject(t, "书")
	w := env.do(t, http.MethodPost, "/v1/projects/"+p.ID+"/chapters/batch", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerationRoutesAreRateLimited(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Security.RateLimit = config.RateLimitConfig{Enabled: true, Limit: 1, Window: time.Minute}
	})
	p := env.createProject(t, "书")
	body := map[string]any{"batchSize": 20, "activeCharacters": []string{"林凡"}}

	w := env.do(t, http.MethodPost, "/v1/projects/"+p.ID+"/chapters/batch", body)
	assert.Equal(t, http.StatusConflict, w.Code, "architecture stage blocks planning")
	w = env.do(t, http.MethodPost, "/v1/projects/"+p.ID+"/chapters/batch", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// 非生成接口不受限
	for i := 0; i < 3; i++ {
		w = env.do(t, http.MethodGet, "/v1/projects/"+p.ID, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestExportAndImport(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.createProject(t, "剑来")
	_, err := env.store.Update(context.Background(), p.ID, func(p *entity.Project) error {
		p.Architecture.MainPlot = "少年背剑"
		ch := entity.NewChapter("第一章", "开篇", "")
		p.Chapters = append(p.Chapters, ch)
		p.SetContent(ch.ID, "正文内容")
		return nil
	})
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/v1/projects/"+p.ID+"/export?format=txt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, w.Body.String(), "《剑来》")
	assert.Contains(t, w.Body.String(), "正文内容")

	w = env.do(t, http.MethodGet, "/v1/projects/"+p.ID+"/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/v1/projects/"+p.ID+"/export?format=json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	backup := w.Body.String()

	w = env.do(t, http.MethodPost, "/v1/projects/import", backup)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var imported entity.Project
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &imported))
	assert.NotEqual(t, p.ID, imported.ID)
	assert.Equal(t, "剑来", imported.Title)

	w = env.do(t, http.MethodPost, "/v1/projects/import", "garbage")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Len(t, env.store.List(context.Background()), 2)
}

func TestParseRangeRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/v1/ranges?text="+url.QueryEscape("第１０-２０章"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"start":10,"end":20}`, string(decode(t, w).Data))

	w = env.do(t, http.MethodGet, "/v1/ranges?text="+url.QueryEscape("无"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
