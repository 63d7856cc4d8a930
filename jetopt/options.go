// Package jetopt defines the Options a Database is opened or created with,
// and a TOML loader for the CLI's config file.
package jetopt

import (
	"os"

	"github.com/pelletier/go-toml"

	"github.com/jahlborn/jackcess-sub007/internal/page"
)

// CodecHandler is the pluggable per-page encrypt/decrypt contract; re-exported so callers configuring Options never need to import
// internal/page directly.
type CodecHandler = page.CodecHandler

// CodecProvider resolves the CodecHandler for a database, given the header
// bytes it has already read (so it can inspect the password hash, etc.).
type CodecProvider interface {
	CodecFor(headerPassword []byte) (CodecHandler, error)
}

// LinkResolver locates a linked database file given the absolute path
// recorded in the parent file.
type LinkResolver func(linkedPath string) (string, error)

// ColumnMatcher customizes equality comparisons used by Cursor find
// operations.
type ColumnMatcher func(columnName string, expected, actual interface{}) bool

// ErrorHandler is invoked when a row fails to decode; it may choose to
// skip the row, substitute a value, or rethrow.
type ErrorHandler func(tableName string, rowErr error) (skip bool, rethrow error)

// Options configures how a Database is opened or created.
type Options struct {
	ReadOnly              bool
	AutoSync              bool
	Charset               string
	CodecProvider         CodecProvider
	LinkResolver          LinkResolver
	ColumnMatcher         ColumnMatcher
	ErrorHandler          ErrorHandler
	AllowAutoNumberInsert bool
	EnforceForeignKeys    bool
}

// DefaultOptions returns the engine's conservative defaults: writes
// enabled, no auto-sync, foreign keys enforced.
func DefaultOptions() Options {
	return Options{
		EnforceForeignKeys: true,
	}
}

// FileConfig is the subset of Options the CLI can express in a TOML file.
type FileConfig struct {
	ReadOnly              bool   `toml:"read_only"`
	AutoSync              bool   `toml:"auto_sync"`
	Charset               string `toml:"charset"`
	AllowAutoNumberInsert bool   `toml:"allow_auto_number_insert"`
	EnforceForeignKeys    bool   `toml:"enforce_foreign_keys"`
}

// LoadFile reads a jetutil.toml-style config file into Options, starting
// from DefaultOptions for any field the file omits.
func LoadFile(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	var fc FileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return opts, err
	}
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return opts, err
	}
	opts.ReadOnly = fc.ReadOnly
	opts.AutoSync = fc.AutoSync
	opts.Charset = fc.Charset
	opts.AllowAutoNumberInsert = fc.AllowAutoNumberInsert
	// Unmarshal zeroes keys the file omits, so the one field whose default
	// is true is only taken from the file when the key is present.
	if tree.Has("enforce_foreign_keys") {
		opts.EnforceForeignKeys = fc.EnforceForeignKeys
	}
	return opts, nil
}
