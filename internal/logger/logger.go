package logger

import (
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/log"
)

var std = log.NewWithOptions(os.Stdout, log.Options{
	ReportTimestamp: true,
})

// Init configures the process logger. Production output is JSON so it can
// be shipped as-is; everything else gets the human-readable formatter.
func Init(production bool) {
	if production {
		std.SetFormatter(log.JSONFormatter)
		std.SetLevel(log.InfoLevel)
	} else {
		std.SetFormatter(log.TextFormatter)
		std.SetLevel(log.DebugLevel)
	}
	std.Info("logger initialized")
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// L returns the underlying logger for packages that want a child logger.
func L() *log.Logger {
	return std
}

func Debug(msg string, fields map[string]any) {
	std.Debug(msg, keyvals(fields)...)
}

func Info(msg string, fields map[string]any) {
	std.Info(msg, keyvals(fields)...)
}

func Warn(msg string, fields map[string]any) {
	std.Warn(msg, keyvals(fields)...)
}

func Error(msg string, fields map[string]any) {
	std.Error(msg, keyvals(fields)...)
}

func Fatal(msg string, fields map[string]any) {
	std.Fatal(msg, keyvals(fields)...)
}

// keyvals flattens fields in key order so output is stable.
func keyvals(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]any, 0, len(fields)*2)
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}
	return kv
}
