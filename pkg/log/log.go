package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

var levelColors = map[Level]string{
	LevelTrace: "\033[37m",
	LevelDebug: "\033[36m",
	LevelInfo:  "\033[32m",
	LevelWarn:  "\033[33m",
	LevelError: "\033[31m",
	LevelFatal: "\033[35m",
}

const colorReset = "\033[0m"

type logger struct {
	mu               sync.Mutex
	out              io.Writer
	level            Level
	disableColor     bool
	disableTimestamp bool
}

var std = &logger{
	out:   os.Stderr,
	level: LevelInfo,
}

func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// InitLog configures the global logger. way is "console" or "file"; maxDays is
// kept for flag compatibility and ignored when logging to console.
func InitLog(way string, file string, level string, maxDays int64, disableColor bool, disableTimestamp bool) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.level = ParseLevel(level)
	std.disableTimestamp = disableTimestamp
	std.disableColor = disableColor
	if way == "file" && file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
			stdlog.Fatal(err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			stdlog.Fatal(err)
		}
		std.out = f
		std.disableColor = true
		_ = maxDays
	}
}

func (l *logger) log(level Level, format string, a ...interface{}) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var sb strings.Builder
	if !l.disableTimestamp {
		sb.WriteString(time.Now().Format("2006-01-02 15:04:05"))
		sb.WriteByte(' ')
	}
	name := levelNames[level]
	if l.disableColor {
		sb.WriteString("[" + name + "] ")
	} else {
		sb.WriteString(levelColors[level] + "[" + name + "]" + colorReset + " ")
	}
	sb.WriteString(fmt.Sprintf(format, a...))
	sb.WriteByte('\n')
	_, _ = io.WriteString(l.out, sb.String())
	if level == LevelFatal {
		os.Exit(1)
	}
}

func Trace(format string, a ...interface{}) { std.log(LevelTrace, format, a...) }
func Debug(format string, a ...interface{}) { std.log(LevelDebug, format, a...) }
func Info(format string, a ...interface{})  { std.log(LevelInfo, format, a...) }
func Warn(format string, a ...interface{})  { std.log(LevelWarn, format, a...) }
func Error(format string, a ...interface{}) { std.log(LevelError, format, a...) }
func Fatal(format string, a ...interface{}) { std.log(LevelFatal, format, a...) }
