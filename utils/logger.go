package utils

import (
	"log/slog"
	"os"
	"sync"

	"github.com/mdobak/go-xerrors"
)

var (
	loggerOnce sync.Once
	logger     *slog.Logger
)

// GetLogger returns the process-wide structured logger. The level is
// controlled by LOG_LEVEL (debug, info, warn, error).
func GetLogger() *slog.Logger {
	loggerOnce.Do(func() {
		level := slog.LevelInfo
		switch GetEnv("LOG_LEVEL", "info") {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: replaceAttr,
		})
		logger = slog.New(handler)
	})
	return logger
}

// replaceAttr renders xerrors values with their stack trace so a logged
// error pinpoints the failing stage.
func replaceAttr(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Value.Kind() {
	case slog.KindAny:
		if err, ok := attr.Value.Any().(error); ok {
			attr.Value = errValue(err)
		}
	}
	return attr
}

func errValue(err error) slog.Value {
	attrs := []slog.Attr{
		slog.String("msg", err.Error()),
	}

	trace := xerrors.StackTrace(err)
	if len(trace) > 0 {
		frames := trace.Frames()
		locations := make([]string, 0, len(frames))
		for _, frame := range frames {
			locations = append(locations, frame.Function)
		}
		attrs = append(attrs, slog.Any("trace", locations))
	}

	return slog.GroupValue(attrs...)
}
