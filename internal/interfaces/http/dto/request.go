package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// BindProjectID 从 URI 绑定项目 ID
func BindProjectID(c *gin.Context) string {
	return c.Param("pid")
}

// BindChapterID 从 URI 绑定章节 ID
func BindChapterID(c *gin.Context) string {
	return c.Param("cid")
}

// BindCharacterID 从 URI 绑定角色 ID
func BindCharacterID(c *gin.Context) string {
	return c.Param("chid")
}

// BindQuestID 从 URI 绑定支线 ID
func BindQuestID(c *gin.Context) string {
	return c.Param("qid")
}

// BindMilestoneID 从 URI 绑定里程碑 ID
func BindMilestoneID(c *gin.Context) string {
	return c.Param("mid")
}

// parseIntWithDefault 解析整数，失败时返回默认值
func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// QueryInt 读取整数查询参数
func QueryInt(c *gin.Context, key string, defaultVal int) int {
	return parseIntWithDefault(c.Query(key), defaultVal)
}
