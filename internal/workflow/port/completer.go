// Package port 定义工作流层对外部生成能力的最小依赖。
package port

import (
	"context"
	"errors"
)

// Tier 模型档位
type Tier string

const (
	TierFast Tier = "FAST"
	TierDeep Tier = "DEEP"
)

// 生成能力的失败类型，调用方用 errors.Is 判断
var (
	ErrUnauthorized  = errors.New("completion: unauthorized")
	ErrRateLimited   = errors.New("completion: rate limited")
	ErrTimeout       = errors.New("completion: timeout")
	ErrNetwork       = errors.New("completion: network error")
	ErrEmptyResponse = errors.New("completion: empty response")
)

// CompletionRequest 一次无状态的文本生成请求
type CompletionRequest struct {
	Prompt            string
	SystemInstruction string
	JSONMode          bool
	Tier              Tier
	// Temperature 为 nil 时使用配置中的默认温度
	Temperature *float32
	// Workflow 用于日志与指标标记
	Workflow string
}

// Completion 生成结果
type Completion struct {
	Text             string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Completer 文本生成能力
type Completer interface {
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
}

// CompleterFunc 便于测试的函数适配器
type CompleterFunc func(ctx context.Context, req *CompletionRequest) (*Completion, error)

func (f CompleterFunc) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	return f(ctx, req)
}

// Temperature 构造温度指针
func Temperature(v float32) *float32 {
	return &v
}
