package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/posebridge/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "posebridge"

// Logger is the slog logger shared by every posebridge component.
//
// It satisfies the small Logger interfaces declared by the bridge, mqtt,
// mqttsource, process, journal and api packages. Children made with With or
// Component share the parent's level.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New builds the logger described by the logging section of config.yaml,
// writing to stdout or stderr.
//
// Entries carry service=posebridge and the build version. At debug level
// they also carry the source location.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}
	return NewWithWriter(cfg, version, output)
}

// NewWithWriter is New with an explicit destination. cfg.Output is ignored.
func NewWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level.Level() == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler), level: level}
}

// parseLevel maps debug, info, warn(ing) and error to slog levels. Anything
// else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying args on every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// Component returns a child logger tagged component=name.
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Level returns the minimum level written.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Default is the JSON info logger used before config.yaml is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
