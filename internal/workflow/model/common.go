package model

import (
	"novel-studio-api/internal/workflow/port"
)

// CallMeta 记录一次模型调用的来源信息
type CallMeta struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Tier             port.Tier
}

// MetaOf 从 Completion 提取元信息
func MetaOf(c *port.Completion, tier port.Tier) CallMeta {
	if c == nil {
		return CallMeta{Tier: tier}
	}
	return CallMeta{
		Provider:         c.Provider,
		Model:            c.Model,
		PromptTokens:     c.PromptTokens,
		CompletionTokens: c.CompletionTokens,
		Tier:             tier,
	}
}

// CharacterBrief 是提示词里使用的角色摘要
type CharacterBrief struct {
	Name   string
	Role   string
	Traits string
}
