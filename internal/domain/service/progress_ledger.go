package service

import "math"

// DeleteProgressDecrement 删除一章时进度的固定降幅
const DeleteProgressDecrement = 1

// NextProgress 计算一批章节生成后的目标进度。
// 手动增量先限制在剩余进度内；estimatedTotal > 0 时按累计章节数折算，折算值更大则优先。
func NextProgress(current, manualIncrement, cumulativeChapters, estimatedTotal int) int {
	remaining := 100 - current
	if remaining < 0 {
		remaining = 0
	}
	inc := manualIncrement
	if inc > remaining {
		inc = remaining
	}
	if inc < 0 {
		inc = 0
	}

	if estimatedTotal > 0 {
		calculated := int(math.Round(float64(cumulativeChapters) / float64(estimatedTotal) * 100))
		if calculated > 100 {
			calculated = 100
		}
		if calculated > current {
			return calculated
		}
	}
	return current + inc
}

// ProgressAfterDelete 删除章节后的进度，不低于 0
func ProgressAfterDelete(current, deleted int) int {
	next := current - deleted*DeleteProgressDecrement
	if next < 0 {
		return 0
	}
	return next
}
