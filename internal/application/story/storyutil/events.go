package storyutil

import (
	"context"
	"time"
)

// 事件类型
const (
	EventOperationStarted  = "operation.started"
	EventOperationFinished = "operation.finished"
	EventOperationFailed   = "operation.failed"
	EventDraftPhase        = "draft.phase"
	EventMemorySyncDue     = "memory.sync_due"
)

// Event 项目进度事件
type Event struct {
	Type      string    `json:"type"`
	ProjectID string    `json:"projectId"`
	Operation string    `json:"operation,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	Index     int       `json:"index,omitempty"`
	Total     int       `json:"total,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// EventSink 接收进度事件，实现方不得阻塞调用方
type EventSink interface {
	Publish(ctx context.Context, ev Event)
}

// Emit 发送事件；sink 为 nil 时忽略
func Emit(ctx context.Context, sink EventSink, ev Event) {
	if sink == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	sink.Publish(ctx, ev)
}
