// Package jetlog provides the structured logging used throughout jetdb.
package jetlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config controls the default logger's destinations and verbosity.
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Output io.Writer
}

// componentFormatter renders "[15:04:05] [LVL] (component) message".
type componentFormatter struct{}

func (f *componentFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	ts := entry.Time.Format("15:04:05")
	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}
	component := "jetdb"
	if c, ok := entry.Data["component"]; ok {
		component = fmt.Sprintf("%v", c)
	}
	msg := fmt.Sprintf("[%s] [%s] (%s) %s\n", ts, level, component, entry.Message)
	return []byte(msg), nil
}

var (
	mu      sync.Mutex
	base    = newBase()
	cache   = map[string]*logrus.Entry{}
	cacheMu sync.Mutex
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&componentFormatter{})
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Configure replaces the default logger's level and output.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Output != nil {
		base.SetOutput(cfg.Output)
	}
	if lvl, err := logrus.ParseLevel(cfg.Level); err == nil {
		base.SetLevel(lvl)
	}
	cacheMu.Lock()
	cache = map[string]*logrus.Entry{}
	cacheMu.Unlock()
}

// For returns a logger scoped to the named subsystem, e.g. jetlog.For("btree").
func For(component string) *logrus.Entry {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if e, ok := cache[component]; ok {
		return e
	}
	e := base.WithField("component", component)
	cache[component] = e
	return e
}
