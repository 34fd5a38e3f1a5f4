package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextProgress(t *testing.T) {
	// 折算值大于手动增量
	assert.Equal(t, 60, NextProgress(40, 10, 60, 100))
	// 关闭折算，增量被剩余进度截断
	assert.Equal(t, 100, NextProgress(90, 20, 999, 0))
	// 折算值不大于当前进度时使用增量
	assert.Equal(t, 50, NextProgress(40, 10, 20, 100))
	// 首批 50 章，预计 300 章
	assert.Equal(t, 17, NextProgress(0, 20, 50, 300))
	assert.Equal(t, 100, NextProgress(100, 20, 10, 0))
	assert.Equal(t, 100, NextProgress(80, 5, 500, 300))
	assert.Equal(t, 40, NextProgress(40, -5, 0, 0))
}

func TestProgressAfterDelete(t *testing.T) {
	assert.Equal(t, 39, ProgressAfterDelete(40, 1))
	assert.Equal(t, 0, ProgressAfterDelete(0, 1))
	assert.Equal(t, 0, ProgressAfterDelete(2, 5))
}
