package service

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"novel-studio-api/internal/domain/entity"
)

// ChapterRange 闭区间章节范围，章节号从 1 开始
type ChapterRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// MaxChapterNumber 章节号上限，超长数字串截断到此值
const MaxChapterNumber = 1_000_000

// ParseRange 从自由文本中提取章节范围。
// 取前两个数字串：第一个为起点，第二个为终点，只有一个时起终点相同；更多数字忽略。
// 全角数字先折叠为半角，超过 MaxChapterNumber 的数字按上限计。起点大于终点时交换。
func ParseRange(text string) (ChapterRange, bool) {
	nums := make([]int, 0, 2)
	folded := width.Fold.String(text)
	for i := 0; i < len(folded) && len(nums) < 2; {
		if !isDigit(folded[i]) {
			i++
			continue
		}
		j := i
		for j < len(folded) && isDigit(folded[j]) {
			j++
		}
		n, err := strconv.Atoi(folded[i:j])
		if err != nil || n > MaxChapterNumber {
			// 数字串只含 0-9，Atoi 失败只可能是溢出
			n = MaxChapterNumber
		}
		nums = append(nums, n)
		i = j
	}
	switch len(nums) {
	case 0:
		return ChapterRange{}, false
	case 1:
		return ChapterRange{Start: nums[0], End: nums[0]}, true
	}
	r := ChapterRange{Start: nums[0], End: nums[1]}
	if r.Start > r.End {
		r.Start, r.End = r.End, r.Start
	}
	return r, true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// IsActive 两个闭区间是否重叠，边界相接也算重叠
func IsActive(window, milestone ChapterRange) bool {
	return milestone.Start <= window.End && milestone.End >= window.Start
}

// NormalizeMilestone 从展示文本解析规范区间并写回；无法解析时区间清零
func NormalizeMilestone(m *entity.KeyMilestone) {
	m.ExpectedChapterRange = strings.TrimSpace(m.ExpectedChapterRange)
	r, ok := ParseRange(m.ExpectedChapterRange)
	if !ok || r.End < 1 {
		m.RangeStart, m.RangeEnd = 0, 0
		return
	}
	if r.Start < 1 {
		r.Start = 1
	}
	m.RangeStart, m.RangeEnd = r.Start, r.End
}

// ActiveMilestones 返回与窗口重叠的里程碑，按起点排序。
// 多个里程碑同时命中时全部返回，由生成请求统一安排。
func ActiveMilestones(ms []entity.KeyMilestone, window ChapterRange) []entity.KeyMilestone {
	out := make([]entity.KeyMilestone, 0)
	for _, m := range ms {
		if !m.HasRange() {
			continue
		}
		if IsActive(window, ChapterRange{Start: m.RangeStart, End: m.RangeEnd}) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RangeStart < out[j].RangeStart })
	return out
}

// MilestoneAt 覆盖指定章节号的里程碑
func MilestoneAt(ms []entity.KeyMilestone, chapterNumber int) []entity.KeyMilestone {
	return ActiveMilestones(ms, ChapterRange{Start: chapterNumber, End: chapterNumber})
}
