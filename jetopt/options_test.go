package jetopt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.False(t, opts.ReadOnly)
	assert.False(t, opts.AutoSync)
	assert.True(t, opts.EnforceForeignKeys)
	assert.False(t, opts.AllowAutoNumberInsert)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jetutil.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
read_only = true
auto_sync = true
charset = "windows-1252"
allow_auto_number_insert = true
enforce_foreign_keys = false
`), 0o644))

	opts, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, opts.ReadOnly)
	assert.True(t, opts.AutoSync)
	assert.Equal(t, "windows-1252", opts.Charset)
	assert.True(t, opts.AllowAutoNumberInsert)
	assert.False(t, opts.EnforceForeignKeys)
}

func TestLoadFilePartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jetutil.toml")
	require.NoError(t, os.WriteFile(path, []byte("auto_sync = true\n"), 0o644))

	opts, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, opts.AutoSync)
	assert.True(t, opts.EnforceForeignKeys, "omitted fields keep their defaults")
}
