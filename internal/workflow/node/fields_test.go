package node

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFields_AliasesAndTypes(t *testing.T) {
	f, err := ObjectPayload(`{"name":"第一章","outline":"开端","idx":3,"tags":["a"," ","b"]}`)
	require.NoError(t, err)

	title, err := f.RequiredString("title", "name")
	require.NoError(t, err)
	assert.Equal(t, "第一章", title)

	summary, err := f.String("summary", "outline")
	require.NoError(t, err)
	assert.Equal(t, "开端", summary)

	n, ok, err := f.Int("chapterIndex", "idx")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	tags, err := f.Strings("tags")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tags)
}

func TestFields_RejectsWrongShape(t *testing.T) {
	f, err := ObjectPayload(`{"title":{"text":"x"},"idx":"3"}`)
	require.NoError(t, err)

	_, err = f.String("title")
	assert.Error(t, err)
	_, _, err = f.Int("idx")
	assert.Error(t, err)

	_, err = f.RequiredString("missing")
	assert.Error(t, err)
}

func TestListPayload(t *testing.T) {
	items, err := ListPayload("结果如下：\n```json\n{\"chapters\":[{\"title\":\"a\"},{\"title\":\"b\"}]}\n```", "chapters")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = ListPayload(`[{"title":"a"}]`, "chapters")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = ListPayload(`{"other":[]}`, "chapters")
	assert.Error(t, err)

	_, err = ListPayload(`{"chapters":["a","b"]}`, "chapters")
	assert.Error(t, err)

	_, err = ListPayload("抱歉，我无法完成", "chapters")
	assert.True(t, errors.Is(err, ErrNoPayload))
}
