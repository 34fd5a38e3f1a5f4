// Package storyutil 提供 story 应用层内部共享的工具函数。
package storyutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"novel-studio-api/internal/domain/entity"
	wfmodel "novel-studio-api/internal/workflow/model"
	wfnode "novel-studio-api/internal/workflow/node"
	workflowport "novel-studio-api/internal/workflow/port"
	apperrors "novel-studio-api/pkg/errors"
	"novel-studio-api/pkg/logger"
	"novel-studio-api/pkg/metrics"
)

// Projects 是生成步骤依赖的项目存取能力，由 application/project.Store 实现
type Projects interface {
	Lock(projectID string) (func(), error)
	Get(ctx context.Context, projectID string) (*entity.Project, error)
	Update(ctx context.Context, projectID string, fn func(p *entity.Project) error) (*entity.Project, error)
}

// Runner 组合项目存取与事件推送，供各生成步骤共用
type Runner struct {
	Projects Projects
	Events   EventSink
}

// Run 在项目忙碌锁内执行一次生成操作。
// fn 拿到的是项目快照，修改快照不会生效；提交必须通过 Projects.Update。
func Run[T any](ctx context.Context, r *Runner, projectID, op string, fn func(ctx context.Context, snap *entity.Project) (T, error)) (T, error) {
	var zero T
	release, err := r.Projects.Lock(projectID)
	if err != nil {
		return zero, err
	}
	defer release()
	return observe(ctx, r, projectID, op, fn)
}

// RunReadOnly 不占用忙碌锁的只读操作，可以与生成操作并行；fn 不得提交修改
func RunReadOnly[T any](ctx context.Context, r *Runner, projectID, op string, fn func(ctx context.Context, snap *entity.Project) (T, error)) (T, error) {
	return observe(ctx, r, projectID, op, fn)
}

func observe[T any](ctx context.Context, r *Runner, projectID, op string, fn func(ctx context.Context, snap *entity.Project) (T, error)) (T, error) {
	var zero T
	ctx = logger.WithProject(ctx, projectID)
	snap, err := r.Projects.Get(ctx, projectID)
	if err != nil {
		return zero, err
	}

	start := time.Now()
	logger.Info(ctx, "engine operation started", "operation", op)
	Emit(ctx, r.Events, Event{Type: EventOperationStarted, ProjectID: projectID, Operation: op})
	out, err := fn(ctx, snap)
	metrics.EngineOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		appErr := MapError(err)
		metrics.EngineOperationTotal.WithLabelValues(op, string(appErr.Code)).Inc()
		logger.Error(ctx, "engine operation failed", err,
			"operation", op,
			"code", string(appErr.Code),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		Emit(ctx, r.Events, Event{Type: EventOperationFailed, ProjectID: projectID, Operation: op, Message: appErr.Message})
		return zero, appErr
	}
	metrics.EngineOperationTotal.WithLabelValues(op, "ok").Inc()
	logger.Info(ctx, "engine operation completed",
		"operation", op,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	Emit(ctx, r.Events, Event{Type: EventOperationFinished, ProjectID: projectID, Operation: op})
	return out, nil
}

// MapError 把生成链路的错误归入统一错误码
func MapError(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr := asApp(err); appErr != nil {
		return appErr
	}
	switch {
	case stderrors.Is(err, context.Canceled):
		return apperrors.ErrCanceled.WithError(err)
	case stderrors.Is(err, workflowport.ErrTimeout), stderrors.Is(err, context.DeadlineExceeded):
		return apperrors.ErrTimeout.WithDetail(err.Error()).WithError(err)
	case stderrors.Is(err, workflowport.ErrUnauthorized),
		stderrors.Is(err, workflowport.ErrRateLimited),
		stderrors.Is(err, workflowport.ErrNetwork),
		stderrors.Is(err, workflowport.ErrEmptyResponse):
		return apperrors.ErrLLMCallFailed.WithDetail(err.Error()).WithError(err)
	case stderrors.Is(err, wfnode.ErrInvalidPayload), stderrors.Is(err, wfnode.ErrNoPayload):
		return apperrors.ErrParseFailed.WithDetail(err.Error()).WithError(err)
	default:
		return apperrors.ErrGenerationFailed.WithDetail(err.Error()).WithError(err)
	}
}

func asApp(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// RequireText 生成前的本地输入校验
func RequireText(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.ErrUserInput.WithDetail(field + " is required")
	}
	return nil
}

// CharacterBriefs 把角色转换为提示词摘要
func CharacterBriefs(chars []entity.Character) []wfmodel.CharacterBrief {
	out := make([]wfmodel.CharacterBrief, 0, len(chars))
	for _, c := range chars {
		out = append(out, wfmodel.CharacterBrief{Name: c.Name, Role: c.Role, Traits: c.Traits})
	}
	return out
}

// WorldBrief 把已填写的世界观字段拼成提示词片段
func WorldBrief(w *entity.WorldBible) string {
	var b strings.Builder
	for _, f := range entity.WorldFields {
		v, _ := w.Get(f)
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		fmt.Fprintf(&b, "%s：%s\n", f.Label(), v)
	}
	return strings.TrimRight(b.String(), "\n")
}
