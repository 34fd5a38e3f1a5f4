package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		want     string
		strategy ParseStrategy
	}{
		{"strict object", `{"a":1}`, `{"a":1}`, StrategyStrict},
		{"strict array with spaces", "  [1,2]\n", `[1,2]`, StrategyStrict},
		{"fenced no newline", "```json{\"a\":1}```", `{"a":1}`, StrategyFence},
		{"fenced multiline", "```json\n{\"a\":1}\n```", `{"a":1}`, StrategyFence},
		{"fenced upper", "```JSON\n[1]\n```", `[1]`, StrategyFence},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`, StrategyFence},
		{"prefixed and suffixed", `prefix {"a":1} suffix`, `{"a":1}`, StrategyObject},
		{"fence with commentary", "好的，以下是结果：\n```json\n{\"a\":1}\n```\n希望有帮助", `{"a":1}`, StrategyObject},
		{"nested braces", `note: {"a":{"b":[1,2]}} end`, `{"a":{"b":[1,2]}}`, StrategyObject},
		{"array of objects in prose", `结果: [{"t":"x"},{"t":"y"}] 完`, `[{"t":"x"},{"t":"y"}]`, StrategyArray},
		{"single object array in prose", `结果: [{"t":"x"}] 完`, `[{"t":"x"}]`, StrategyArray},
		{"object containing array", `见 {"list":[1]} 。`, `{"list":[1]}`, StrategyObject},
		{"array before object wins", `x [{"a":1}] y`, `[{"a":1}]`, StrategyArray},
		{"plain array in prose", `list: [1, 2, 3].`, `[1, 2, 3]`, StrategyArray},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, strategy := ParsePayloadWithStrategy(tc.in)
			require.NotNil(t, got)
			assert.JSONEq(t, tc.want, string(got))
			assert.Equal(t, tc.strategy, strategy)
		})
	}
}

func TestParsePayloadFailures(t *testing.T) {
	for _, in := range []string{
		"",
		"   ",
		"not json",
		"{broken",
		`{"a":1`,
		"} reversed {",
		"```json\n```",
		`{"a": 1} and {"b": 2}`,
	} {
		assert.Nil(t, ParsePayload(in), "input %q", in)
	}
}

func TestDecodePayload(t *testing.T) {
	var out struct {
		A int `json:"a"`
	}
	require.NoError(t, DecodePayload("```json{\"a\":7}```", &out))
	assert.Equal(t, 7, out.A)

	err := DecodePayload("nothing here", &out)
	assert.ErrorIs(t, err, ErrNoPayload)

	err = DecodePayload(`{"a":"seven"}`, &out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoPayload)
}

func TestStripReasoning(t *testing.T) {
	assert.Equal(t, "正文", StripReasoning("<think>先想想\n再想</think>\n正文"))
	assert.Equal(t, "正文", StripReasoning("残留推理</think>正文"))
	assert.Equal(t, "正文", StripReasoning("正文"))
}

func TestRuneHelpers(t *testing.T) {
	assert.Equal(t, "一二", TruncateByRunes("一二三", 2))
	assert.Equal(t, "二三", TailByRunes("一二三", 2))
	assert.Equal(t, "一二三", TailByRunes("一二三", 5))
	assert.Equal(t, "", TailByRunes("一二三", 0))
	assert.Equal(t, "b", FirstNonEmpty(" ", "b", "c"))
}
