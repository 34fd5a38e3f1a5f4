package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	configDir string
	dbPath    string
	workDir   string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	base := t.TempDir()
	return &cliEnv{
		configDir: filepath.Join(base, "configs"),
		dbPath:    filepath.Join(base, "data", "studio.db"),
		workDir:   base,
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configDir, "--db", e.dbPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

const sampleProject = `{
  "id": 1700000000000,
  "title": "雾港旧事",
  "currentStep": 2,
  "plotProgress": 12,
  "characterList": [{"id": "c1", "name": "林岚", "role": "主角"}],
  "chapters": [
    {"id": "ch1", "title": "第一章 雾起", "summary": "林岚回到港口"},
    {"id": "ch2", "title": "第二章 旧信", "summary": "发现父亲的信"}
  ],
  "content": {"ch1": "雾从海面漫上来。"}
}`

func TestImportListExport(t *testing.T) {
	env := newCLIEnv(t)
	src := filepath.Join(env.workDir, "project.json")
	require.NoError(t, os.WriteFile(src, []byte(sampleProject), 0o644))

	out, err := env.run(t, "import", src)
	require.NoError(t, err)
	assert.Contains(t, out, "雾港旧事")
	assert.Contains(t, out, "2 chapters")

	id := regexp.MustCompile(`as ([0-9a-f-]{36})`).FindStringSubmatch(out)
	require.Len(t, id, 2, out)

	out, err = env.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, id[1])
	assert.Contains(t, out, "12%")

	dst := filepath.Join(env.workDir, "out.txt")
	_, err = env.run(t, "export", id[1], "--format", "txt", "--output", dst)
	require.NoError(t, err)
	body, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(body), "第一章 雾起")
	assert.Contains(t, string(body), "雾从海面漫上来。")

	out, err = env.run(t, "export", id[1], "-f", "json", "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "雾港旧事"`)
}

func TestListEmpty(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No projects")
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "export", "whatever", "--format", "pdf")
	require.Error(t, err)
}

func TestExportMissingProject(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "export", "missing")
	require.Error(t, err)

	// 出错后数据库锁已释放
	_, err = env.run(t, "list")
	require.NoError(t, err)
}

func TestImportRejectsGarbage(t *testing.T) {
	env := newCLIEnv(t)
	src := filepath.Join(env.workDir, "bad.json")
	require.NoError(t, os.WriteFile(src, []byte("not json"), 0o644))

	_, err := env.run(t, "import", src)
	require.Error(t, err)
}

func TestRanges(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "ranges", "第12-30章", "第５章", "序章")
	require.NoError(t, err)
	assert.Regexp(t, `第12-30章\s*│\s*12\s*│\s*30`, out)
	assert.Regexp(t, `第５章\s*│\s*5\s*│\s*5`, out)
	assert.Regexp(t, `序章\s*│\s*-\s*│\s*-`, out)
}
