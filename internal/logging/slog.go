package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const instrumentationName = "ferrycast"

// osStdout is swapped in tests to capture console output.
var osStdout io.Writer = os.Stdout

// SlogManager manages slog-based logging with optional OTel and Graylog outputs.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// SetupOption adds an output or decorator to the handler chain built by Setup.
type SetupOption func(*setupOptions)

type setupOptions struct {
	console  bool
	graylog  io.Writer
	context  ContextProvider
	jsonFile bool
}

// WithConsole also writes to stdout when a file is given.
func WithConsole() SetupOption {
	return func(o *setupOptions) { o.console = true }
}

// WithGraylog ships JSON records to w, normally a GELF writer from NewGraylogWriter.
func WithGraylog(w io.Writer) SetupOption {
	return func(o *setupOptions) { o.graylog = w }
}

// WithContext injects the attributes returned by p into every record.
func WithContext(p ContextProvider) SetupOption {
	return func(o *setupOptions) { o.context = p }
}

// WithJSONFile switches the file handler from text to JSON lines.
func WithJSONFile() SetupOption {
	return func(o *setupOptions) { o.jsonFile = true }
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system. Records go to file when one is given,
// otherwise to stdout. If provider is nil, OTel logging is disabled.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, opts ...SetupOption) {
	var o setupOptions
	for _, opt := range opts {
		opt(&o)
	}

	lvl := parseLevel(level)
	m.logProvider = provider

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler

	if file == nil || o.console {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	if file != nil {
		if o.jsonFile {
			handlers = append(handlers, slog.NewJSONHandler(file, handlerOpts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
		}
	}

	if o.graylog != nil {
		handlers = append(handlers, slog.NewJSONHandler(o.graylog, handlerOpts))
	}

	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider)))
	}

	var handler slog.Handler = NewMultiHandler(handlers...)
	if o.context != nil {
		handler = NewContextHandler(handler, o.context)
	}

	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
