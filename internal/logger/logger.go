// Package logger is the process-wide leveled logger. Lines are written through
// the standard library logger so they keep timestamps and caller file:line.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

var (
	mu    sync.RWMutex
	level = LevelInfo
	std   = log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile)
)

// ParseLevel maps DEBUG/INFO/WARN/ERROR (any case) to a Level. Unknown names map to INFO.
func ParseLevel(name string) Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(name string) {
	mu.Lock()
	defer mu.Unlock()
	level = ParseLevel(name)
}

func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// SetOutput redirects log lines, mostly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std.SetOutput(w)
}

func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }

func Infof(format string, args ...any) { logf(LevelInfo, format, args...) }

func Warnf(format string, args ...any) { logf(LevelWarn, format, args...) }

func Errorf(format string, args ...any) { logf(LevelError, format, args...) }

func logf(lv Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if lv < level {
		return
	}
	// depth 3: Output <- logf <- Debugf/Infof/... <- caller
	_ = std.Output(3, fmt.Sprintf("["+levelNames[lv]+"] "+format, args...))
}
