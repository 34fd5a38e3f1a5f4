package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"novel-studio-api/internal/config"
	llmctx "novel-studio-api/internal/domain/service"
	wfnode "novel-studio-api/internal/workflow/node"
	"novel-studio-api/internal/workflow/port"
	"novel-studio-api/pkg/logger"
)

// chineseOnlySuffix 追加到所有系统指令末尾
const chineseOnlySuffix = "\n\n【重要】请务必全程使用简体中文输出，不要夹杂英文解释。"

// EinoCompleter 基于 Eino ChatModel 实现 port.Completer
type EinoCompleter struct {
	cfg     *config.LLMConfig
	factory port.ChatModelFactory
}

// NewEinoCompleter 创建生成适配器；配置显式注入，不依赖全局状态
func NewEinoCompleter(cfg *config.LLMConfig, factory port.ChatModelFactory) *EinoCompleter {
	return &EinoCompleter{cfg: cfg, factory: factory}
}

// Complete 执行一次生成调用
func (c *EinoCompleter) Complete(ctx context.Context, req *port.CompletionRequest) (*port.Completion, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("completion prompt is required")
	}

	provider, providerCfg, ok := c.cfg.Provider("")
	if !ok {
		return nil, fmt.Errorf("%w: provider %s not configured", port.ErrUnauthorized, provider)
	}
	modelName := providerCfg.FastModel
	if req.Tier == port.TierDeep && providerCfg.DeepModel != "" {
		modelName = providerCfg.DeepModel
	}

	workflow := req.Workflow
	if workflow == "" {
		workflow = "completion"
	}
	ctx = llmctx.WithWorkflowProvider(ctx, workflow, provider)
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	chatModel, err := c.factory.Get(ctx, provider, modelName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrUnauthorized, err)
	}

	msgs := make([]*schema.Message, 0, 2)
	if sys := strings.TrimSpace(req.SystemInstruction); sys != "" {
		msgs = append(msgs, schema.SystemMessage(sys+chineseOnlySuffix))
	}
	msgs = append(msgs, schema.UserMessage(req.Prompt))

	jsonMode := req.JSONMode && c.cfg.SupportsJSONMode(provider)
	out, err := chatModel.Generate(ctx, msgs, c.options(req, modelName, jsonMode)...)
	if err != nil && jsonMode && wfnode.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "provider rejected response_format, retrying without it", "provider", provider, "model", modelName)
		out, err = chatModel.Generate(ctx, msgs, c.options(req, modelName, false)...)
	}
	if err != nil {
		return nil, classifyError(ctx, err)
	}
	if out == nil {
		return nil, port.ErrEmptyResponse
	}

	text := wfnode.StripReasoning(out.Content)
	if text == "" {
		return nil, port.ErrEmptyResponse
	}

	res := &port.Completion{Text: text, Provider: provider, Model: modelName}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		res.PromptTokens = out.ResponseMeta.Usage.PromptTokens
		res.CompletionTokens = out.ResponseMeta.Usage.CompletionTokens
	}
	return res, nil
}

func (c *EinoCompleter) options(req *port.CompletionRequest, modelName string, jsonMode bool) []model.Option {
	temperature := float32(c.cfg.DefaultTemperature)
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	opts := []model.Option{
		model.WithModel(modelName),
		model.WithTemperature(temperature),
	}
	if jsonMode {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{"type": "json_object"},
		}))
	}
	return opts
}

var statusCodePattern = regexp.MustCompile(`status code:? (\d{3})`)

// classifyError 归类为 Unauthorized / RateLimited / Timeout / NetworkError
func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", port.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", port.ErrTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	if m := statusCodePattern.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		switch code {
		case 401, 403:
			return fmt.Errorf("%w: %w", port.ErrUnauthorized, err)
		case 429:
			return fmt.Errorf("%w: %w", port.ErrRateLimited, err)
		case 408, 504:
			return fmt.Errorf("%w: %w", port.ErrTimeout, err)
		}
	}
	switch {
	case strings.Contains(msg, "invalid api key"), strings.Contains(msg, "incorrect api key"), strings.Contains(msg, "unauthorized"):
		return fmt.Errorf("%w: %w", port.ErrUnauthorized, err)
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"):
		return fmt.Errorf("%w: %w", port.ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %w", port.ErrNetwork, err)
}
