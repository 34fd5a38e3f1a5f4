package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory 按提供商与模型名获取 ChatModel。
type ChatModelFactory interface {
	Get(ctx context.Context, provider, modelName string) (model.BaseChatModel, error)
}
