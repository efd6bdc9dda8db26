// Package logging configures the shared logrus logger: a compact bracketed
// formatter with source locations, and an optional rotating file sink.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	setupOnce sync.Once
	writerMu  sync.Mutex
	logWriter *lumberjack.Logger
)

// LogFormatter defines a custom log format for logrus.
// Format: [2025-12-23 20:14:04] [debug] [manager.go:107] refreshed access token for region cn
type LogFormatter struct{}

// Format renders a single log entry with custom formatting.
func (m *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	var buffer *bytes.Buffer
	if entry.Buffer != nil {
		buffer = entry.Buffer
	} else {
		buffer = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	message := strings.TrimRight(entry.Message, "\r\n")

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}
	levelStr := fmt.Sprintf("%-5s", level)

	var fieldsStr string
	if len(entry.Data) > 0 {
		var fields []string
		for _, k := range []string{"region", "attempt_id", "error"} {
			if v, ok := entry.Data[k]; ok {
				fields = append(fields, fmt.Sprintf("%s=%v", k, v))
			}
		}
		if len(fields) > 0 {
			fieldsStr = " " + strings.Join(fields, " ")
		}
	}

	var formatted string
	if entry.Caller != nil {
		formatted = fmt.Sprintf("[%s] [%s] [%s:%d] %s%s\n", timestamp, levelStr, filepath.Base(entry.Caller.File), entry.Caller.Line, message, fieldsStr)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s%s\n", timestamp, levelStr, message, fieldsStr)
	}
	buffer.WriteString(formatted)

	return buffer.Bytes(), nil
}

// SetupBaseLogger installs the formatter and default level. Safe to call more
// than once; only the first call takes effect.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetFormatter(&LogFormatter{})
		log.SetReportCaller(true)
		log.SetLevel(log.InfoLevel)
		log.SetOutput(os.Stderr)
	})
}

// SetDebug toggles debug-level logging.
func SetDebug(debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// EnableFileOutput mirrors log output into a rotating file under the given
// directory in addition to stderr.
func EnableFileOutput(dir string) {
	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter != nil {
		return
	}
	logWriter = &lumberjack.Logger{
		Filename:   filepath.Join(dir, "minimax-auth.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, logWriter))
}

// CloseFileOutput flushes and detaches the rotating file sink.
func CloseFileOutput() {
	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter == nil {
		return
	}
	log.SetOutput(os.Stderr)
	_ = logWriter.Close()
	logWriter = nil
}
