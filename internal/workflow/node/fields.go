package node

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Fields 是 JSON 对象的原始字段表。
// 各结构化响应按自己的字段白名单从中取值：同一字段只接受有限的别名，
// 类型不符时直接报错，不做字符串化兜底。
type Fields map[string]json.RawMessage

// ObjectFields 解析 JSON 对象；非对象返回错误
func ObjectFields(raw json.RawMessage) (Fields, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("expected json object, got %s", Snippet(string(trimmed), 40))
	}
	var f Fields
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func (f Fields) lookup(keys []string) (string, json.RawMessage, bool) {
	for _, k := range keys {
		v, ok := f[k]
		if !ok {
			continue
		}
		if t := bytes.TrimSpace(v); len(t) == 0 || bytes.Equal(t, []byte("null")) {
			continue
		}
		return k, v, true
	}
	return "", nil, false
}

// String 取第一个存在的别名，必须是 JSON 字符串；缺失时返回空串
func (f Fields) String(keys ...string) (string, error) {
	k, v, ok := f.lookup(keys)
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("field %q: expected string", k)
	}
	return strings.TrimSpace(s), nil
}

// RequiredString 同 String，但缺失或为空时报错
func (f Fields) RequiredString(keys ...string) (string, error) {
	s, err := f.String(keys...)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("field %q is required", keys[0])
	}
	return s, nil
}

// Int 取整数字段，必须是 JSON 数字
func (f Fields) Int(keys ...string) (int, bool, error) {
	k, v, ok := f.lookup(keys)
	if !ok {
		return 0, false, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return 0, false, fmt.Errorf("field %q: expected number", k)
	}
	i, err := n.Int64()
	if err != nil {
		fl, ferr := n.Float64()
		if ferr != nil || fl != float64(int64(fl)) {
			return 0, false, fmt.Errorf("field %q: expected integer", k)
		}
		i = int64(fl)
	}
	return int(i), true, nil
}

// Strings 取字符串数组字段
func (f Fields) Strings(keys ...string) ([]string, error) {
	k, v, ok := f.lookup(keys)
	if !ok {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(v, &out); err != nil {
		return nil, fmt.Errorf("field %q: expected string array", k)
	}
	cleaned := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned, nil
}

// Object 取嵌套对象字段
func (f Fields) Object(keys ...string) (Fields, bool, error) {
	k, v, ok := f.lookup(keys)
	if !ok {
		return nil, false, nil
	}
	obj, err := ObjectFields(v)
	if err != nil {
		return nil, false, fmt.Errorf("field %q: %w", k, err)
	}
	return obj, true, nil
}

// Objects 取对象数组字段；数组元素必须都是对象
func (f Fields) Objects(keys ...string) ([]Fields, bool, error) {
	k, v, ok := f.lookup(keys)
	if !ok {
		return nil, false, nil
	}
	items, err := ObjectList(v)
	if err != nil {
		return nil, false, fmt.Errorf("field %q: %w", k, err)
	}
	return items, true, nil
}

// ObjectList 解析对象数组
func ObjectList(raw json.RawMessage) ([]Fields, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("expected json array")
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, err
	}
	out := make([]Fields, 0, len(elems))
	for i, e := range elems {
		obj, err := ObjectFields(e)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, obj)
	}
	return out, nil
}

// ListPayload 从模型输出取对象数组：可以是裸数组，也可以是包在 keys 之一下的数组
func ListPayload(raw string, keys ...string) ([]Fields, error) {
	payload := ParsePayload(raw)
	if payload == nil {
		return nil, fmt.Errorf("%w (snippet: %s)", ErrNoPayload, Snippet(raw, 160))
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return ObjectList(trimmed)
	}
	obj, err := ObjectFields(trimmed)
	if err != nil {
		return nil, err
	}
	items, ok, err := obj.Objects(keys...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("payload missing list field %q", keys[0])
	}
	return items, nil
}

// ObjectPayload 从模型输出取单个对象
func ObjectPayload(raw string) (Fields, error) {
	payload := ParsePayload(raw)
	if payload == nil {
		return nil, fmt.Errorf("%w (snippet: %s)", ErrNoPayload, Snippet(raw, 160))
	}
	return ObjectFields(payload)
}

// ErrInvalidPayload 结构化响应无法解析或不符合约定结构
var ErrInvalidPayload = errors.New("structured payload rejected")

// Invalid 把解析或结构错误归类为 ErrInvalidPayload
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
}
