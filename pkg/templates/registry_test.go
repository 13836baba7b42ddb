package templates

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/pkg/errors"
)

func TestRegistry_LoadDir(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "reports")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "brief.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("Brief {{md .Symbol}} {{price .Price}}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	reg, err := LoadDir(base)
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/brief"}, reg.IDs())

	data := map[string]interface{}{"Symbol": "BRK_B", "Price": 1234.5}
	out, err := reg.Render("reports/brief", data)
	require.NoError(t, err)
	assert.Equal(t, `Brief BRK\_B 1,234.5`, out)

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))
	out, err = reg.Render("reports/brief", data)
	require.NoError(t, err)
	assert.Equal(t, `Brief BRK\_B 1,234.5`, out, "parsed templates are not reloaded")
}

func TestRegistry_Errors(t *testing.T) {
	reg, err := Load(fstest.MapFS{"reports/ok.tmpl": {Data: []byte("ok")}})
	require.NoError(t, err)
	assert.True(t, reg.Has("reports/ok"))

	_, err = reg.Render("reports/missing", nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = Load(fstest.MapFS{"reports/bad.tmpl": {Data: []byte("{{ .Broken")}})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestDefaultReports(t *testing.T) {
	ids := Default().IDs()
	assert.Contains(t, ids, "reports/analysis")
	assert.Contains(t, ids, "reports/market")
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, `a\*b\_c \[x\](y) \| \#1`, EscapeMarkdown("a*b_c [x](y) | #1"))
	assert.Equal(t, "line one line two", SafeText("line one\n\n  line two"))
	assert.Equal(t, "n/a", PricePtr(nil))
	assert.Equal(t, "+1.50%", Percent(1.5))
	assert.Equal(t, "-0.25%", Percent(-0.25))
	assert.Equal(t, "30%", Confidence(0.3))
	assert.Equal(t, "1.2M", Volume(1_200_000))
	assert.Equal(t, "0", Volume(0))
	assert.Equal(t, "unknown time", Ago(time.Time{}))
	assert.Contains(t, Ago(time.Now().Add(-3*time.Hour)), "hours ago")
}
