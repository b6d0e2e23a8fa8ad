// Package logger provides leveled logging for the tracker.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelTags = map[Level]string{
	DebugLevel: "[DEBUG]",
	InfoLevel:  "[INFO]",
	WarnLevel:  "[WARN]",
	ErrorLevel: "[ERROR]",
}

type leveledLogger struct {
	min Level
	out *log.Logger
}

var std *leveledLogger

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Init initializes the package logger. Format "text" adds caller info,
// anything else keeps the compact timestamped form.
func Init(level string, format string) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}
	std = &leveledLogger{
		min: ParseLevel(level),
		out: log.New(os.Stderr, "", flags),
	}
}

func emit(l Level, format string, args ...any) {
	if std == nil || std.min > l {
		return
	}
	_ = std.out.Output(3, levelTags[l]+" "+fmt.Sprintf(format, args...))
}

func Debug(format string, args ...any) { emit(DebugLevel, format, args...) }

func Info(format string, args ...any) { emit(InfoLevel, format, args...) }

func Warn(format string, args ...any) { emit(WarnLevel, format, args...) }

func Error(format string, args ...any) { emit(ErrorLevel, format, args...) }

// Fatal logs and exits the process.
func Fatal(format string, args ...any) {
	msg := "[FATAL] " + fmt.Sprintf(format, args...)
	if std != nil {
		_ = std.out.Output(3, msg)
	} else {
		log.Print(msg)
	}
	os.Exit(1)
}
