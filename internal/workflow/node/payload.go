package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"novel-studio-api/pkg/metrics"
)

// ParseStrategy 记录命中的解析步骤
type ParseStrategy string

const (
	StrategyStrict ParseStrategy = "strict"
	StrategyFence  ParseStrategy = "fence"
	StrategyObject ParseStrategy = "object"
	StrategyArray  ParseStrategy = "array"
	StrategyFailed ParseStrategy = "failed"
)

// ErrNoPayload 所有解析步骤均失败
var ErrNoPayload = errors.New("no structured payload in model output")

// ParsePayload 容错解析模型输出中的 JSON。
// 依次尝试：整体严格解析 -> 去除代码围栏 -> 首个 { 到末个 } -> 首个 [ 到末个 ]。
// 例外：首个 [ 出现在首个 { 之前且数组区间合法时，先取数组，
// 因此 `x [{"a":1}] y` 得到整个数组而不是其中的对象。
// 全部失败时返回 nil，调用方视为“未更新”。
func ParsePayload(raw string) json.RawMessage {
	out, _ := ParsePayloadWithStrategy(raw)
	return out
}

// ParsePayloadWithStrategy 同 ParsePayload，并返回命中的步骤
func ParsePayloadWithStrategy(raw string) (json.RawMessage, ParseStrategy) {
	out, strategy := parsePayload(raw)
	metrics.PayloadParseTotal.WithLabelValues(string(strategy)).Inc()
	return out, strategy
}

func parsePayload(raw string) (json.RawMessage, ParseStrategy) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, StrategyFailed
	}
	if json.Valid([]byte(text)) {
		return json.RawMessage(text), StrategyStrict
	}

	unfenced := StripCodeFences(text)
	if unfenced != text && unfenced != "" && json.Valid([]byte(unfenced)) {
		return json.RawMessage(unfenced), StrategyFence
	}

	obj := between(unfenced, "{", "}")
	arr := between(unfenced, "[", "]")
	// 数组包裹对象时（[ 在 { 之前），对象区间只是数组的一部分，优先取完整数组
	if arr != "" && obj != "" && strings.Index(unfenced, "[") < strings.Index(unfenced, "{") && json.Valid([]byte(arr)) {
		return json.RawMessage(arr), StrategyArray
	}
	if obj != "" && json.Valid([]byte(obj)) {
		return json.RawMessage(obj), StrategyObject
	}
	if arr != "" && json.Valid([]byte(arr)) {
		return json.RawMessage(arr), StrategyArray
	}
	return nil, StrategyFailed
}

// StripCodeFences 去掉 ```json / ``` 之类的围栏标记
func StripCodeFences(s string) string {
	if !strings.Contains(s, "```") {
		return strings.TrimSpace(s)
	}
	var b strings.Builder
	rest := s
	for {
		idx := strings.Index(rest, "```")
		if idx < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:idx])
		rest = rest[idx+3:]
		// 跳过紧跟的语言标记
		j := 0
		for j < len(rest) && isLangByte(rest[j]) {
			j++
		}
		rest = rest[j:]
	}
	return strings.TrimSpace(b.String())
}

func isLangByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func between(s, open, close string) string {
	start := strings.Index(s, open)
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(s, close)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}

// DecodePayload 解析并反序列化到 out。
// 解析失败返回 ErrNoPayload；结构不符返回包装后的 json 错误。
func DecodePayload(raw string, out any) error {
	payload := ParsePayload(raw)
	if payload == nil {
		return fmt.Errorf("%w (snippet: %s)", ErrNoPayload, Snippet(raw, 160))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("payload shape mismatch: %w", err)
	}
	return nil
}

// Snippet 生成单行预览，用于日志
func Snippet(s string, limit int) string {
	clean := strings.Join(strings.Fields(s), " ")
	if clean == "" {
		return "<empty>"
	}
	if r := []rune(clean); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return clean
}
