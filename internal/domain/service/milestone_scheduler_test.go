package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"novel-studio-api/internal/domain/entity"
)

func TestParseRange(t *testing.T) {
	cases := []struct {
		in   string
		want ChapterRange
		ok   bool
	}{
		{"20-30", ChapterRange{20, 30}, true},
		{"第5章", ChapterRange{5, 5}, true},
		{"", ChapterRange{}, false},
		{"待定", ChapterRange{}, false},
		{"Ch 10-20", ChapterRange{10, 20}, true},
		{"第２０-３０章", ChapterRange{20, 30}, true},
		{"30-20", ChapterRange{20, 30}, true},
		{"2024年5月第3章", ChapterRange{5, 2024}, true},
		{"第30章到第20章", ChapterRange{20, 30}, true},
		{"99999999999999999999", ChapterRange{MaxChapterNumber, MaxChapterNumber}, true},
		{"第5-99999999999999999999999章", ChapterRange{5, MaxChapterNumber}, true},
		{"第2000000章", ChapterRange{MaxChapterNumber, MaxChapterNumber}, true},
	}
	for _, c := range cases {
		got, ok := ParseRange(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestIsActive(t *testing.T) {
	w := ChapterRange{10, 20}
	assert.True(t, IsActive(w, ChapterRange{15, 25}))
	assert.False(t, IsActive(w, ChapterRange{21, 30}))
	assert.True(t, IsActive(w, ChapterRange{20, 21}))
	assert.True(t, IsActive(w, ChapterRange{1, 10}))
	assert.False(t, IsActive(w, ChapterRange{1, 9}))
}

func TestActiveMilestones_FirstBatchScenario(t *testing.T) {
	ms := []entity.KeyMilestone{
		{Name: "late", ExpectedChapterRange: "60-70"},
		{Name: "early", ExpectedChapterRange: "10-20"},
		{Name: "broken", ExpectedChapterRange: "待定"},
		{Name: "overlap", ExpectedChapterRange: "第5-15章"},
	}
	for i := range ms {
		NormalizeMilestone(&ms[i])
	}
	assert.False(t, ms[2].HasRange())

	active := ActiveMilestones(ms, ChapterRange{1, 50})
	names := make([]string, 0, len(active))
	for _, m := range active {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"overlap", "early"}, names)
	assert.Len(t, MilestoneAt(ms, 65), 1)
}

func TestNormalizeMilestone_ZeroStart(t *testing.T) {
	m := entity.KeyMilestone{ExpectedChapterRange: " 0-5 "}
	NormalizeMilestone(&m)
	assert.Equal(t, "0-5", m.ExpectedChapterRange)
	assert.Equal(t, 1, m.RangeStart)
	assert.Equal(t, 5, m.RangeEnd)

	m = entity.KeyMilestone{ExpectedChapterRange: "第0章", RangeStart: 3, RangeEnd: 4}
	NormalizeMilestone(&m)
	assert.False(t, m.HasRange())
}
