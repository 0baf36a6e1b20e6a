// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package log is a small leveled logger over the standard library logger.
package log

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type LogLevel int

const (
	LogPrefix     = "[hilbridge] "
	ErrorPrefix   = "[error] "
	WarningPrefix = "[warn] "
	InfoPrefix    = "[info] "
	DebugPrefix   = "[debug] "
	HelpLevels    = "Must be one of: error, warning, info, debug."

	// DefaultFlags are the standard logger flags used until SetFlags
	DefaultFlags = log.LstdFlags
)

const (
	ErrorLevel LogLevel = iota
	WarningLevel
	InfoLevel
	DebugLevel
)

var levelNames = map[string]LogLevel{
	"error":   ErrorLevel,
	"warning": WarningLevel,
	"info":    InfoLevel,
	"debug":   DebugLevel,
}

// ErrBadLevel is returned for an unknown level name
var ErrBadLevel = errors.New("wrong log level. " + HelpLevels)

type Logger struct {
	mu    sync.RWMutex
	level LogLevel
	*log.Logger
}

var logger = &Logger{
	level:  InfoLevel,
	Logger: log.New(os.Stderr, LogPrefix, DefaultFlags),
}

// ParseLevel resolves a level name
func ParseLevel(strLevel string) (LogLevel, error) {
	level, ok := levelNames[strLevel]
	if !ok {
		return 0, fmt.Errorf("%w (got %q)", ErrBadLevel, strLevel)
	}
	return level, nil
}

func SetLevel(strLevel string) error {
	level, err := ParseLevel(strLevel)
	if err != nil {
		return err
	}
	logger.mu.Lock()
	logger.level = level
	logger.mu.Unlock()
	return nil
}

// Init sets the output and level. An unknown level is reported and the
// previous level is kept.
func Init(out io.Writer, strLevel string) error {
	logger.SetOutput(out)
	return SetLevel(strLevel)
}

// SetOutput redirects log output, e.g. into the TUI event panel
func SetOutput(out io.Writer) {
	logger.SetOutput(out)
}

// SetFlags sets the standard logger flags
func SetFlags(flags int) {
	logger.SetFlags(flags)
}

func enabled(level LogLevel) bool {
	logger.mu.RLock()
	defer logger.mu.RUnlock()
	return logger.level >= level
}

func Error(format string, v ...interface{}) {
	if enabled(ErrorLevel) {
		logger.Println(fmt.Sprintf(ErrorPrefix+format, v...))
	}
}

func Warning(format string, v ...interface{}) {
	if enabled(WarningLevel) {
		logger.Println(fmt.Sprintf(WarningPrefix+format, v...))
	}
}

func Info(format string, v ...interface{}) {
	if enabled(InfoLevel) {
		logger.Println(fmt.Sprintf(InfoPrefix+format, v...))
	}
}

func Debug(format string, v ...interface{}) {
	if enabled(DebugLevel) {
		logger.Println(fmt.Sprintf(DebugPrefix+format, v...))
	}
}

type levelWriter LogLevel

// Writer returns an io.Writer that logs each write as one line at level.
// It feeds loggers that only accept a writer, such as HTTP access logs.
func Writer(level LogLevel) io.Writer {
	return levelWriter(level)
}

func (w levelWriter) Write(p []byte) (int, error) {
	if enabled(LogLevel(w)) {
		prefix := [...]string{ErrorPrefix, WarningPrefix, InfoPrefix, DebugPrefix}[w]
		logger.Println(prefix + strings.TrimRight(string(p), "\n"))
	}
	return len(p), nil
}
