package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the active log file inside Config.Path.
const LogFileName = "mediashelf.log"

// Logger wraps zerolog for application logging.
type Logger struct {
	zerolog.Logger
	rotator     *lumberjack.Logger
	broadcaster *LogBroadcaster
	logPath     string
}

// Config holds logger configuration.
type Config struct {
	Level      string
	Format     string // "console" or "json"
	Path       string // directory for log files
	MaxSizeMB  int    // max size in MB before rotation (default: 10)
	MaxBackups int    // max number of old log files to keep (default: 5)
	MaxAgeDays int    // max age in days to keep old files (default: 30)
	Compress   bool   // compress rotated files

	EnableStreaming bool // keep recent entries and push them to the websocket hub
	BufferSize      int  // recent entries retained when streaming (default: 1000)
}

// IsDevBuild returns true if running via "go run" (development mode).
// This is detected by checking if the executable path contains "go-build",
// which is where Go compiles temporary binaries during "go run".
func IsDevBuild() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	return strings.Contains(exe, "go-build")
}

// New creates a new logger instance.
// When running via "go run" (dev build), automatically uses debug level
// unless a more verbose level (trace) is explicitly configured.
func New(cfg Config) *Logger {
	return newWithConsole(cfg, os.Stdout)
}

func newWithConsole(cfg Config, out io.Writer) *Logger {
	var consoleOutput io.Writer

	if cfg.Format == "json" {
		consoleOutput = out
	} else {
		consoleOutput = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	level := parseLevel(cfg.Level)

	// Auto-enable debug logging for dev builds (go run)
	if IsDevBuild() && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	writers := []io.Writer{consoleOutput}
	l := &Logger{}

	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0755); err == nil {
			l.logPath = filepath.Join(cfg.Path, LogFileName)
			l.rotator = &lumberjack.Logger{
				Filename:   l.logPath,
				MaxSize:    positiveOr(cfg.MaxSizeMB, 10),
				MaxBackups: positiveOr(cfg.MaxBackups, 5),
				MaxAge:     positiveOr(cfg.MaxAgeDays, 30),
				Compress:   cfg.Compress,
				LocalTime:  true,
			}
			writers = append(writers, l.rotator)
		}
	}

	if cfg.EnableStreaming {
		l.broadcaster = NewLogBroadcaster(nil, cfg.BufferSize)
		writers = append(writers, l.broadcaster)
	}

	var output io.Writer = consoleOutput
	if len(writers) > 1 {
		output = zerolog.MultiLevelWriter(writers...)
	}

	l.Logger = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return l
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// SetBroadcastHub attaches the hub that receives streamed log entries.
// It is a no-op when streaming is disabled.
func (l *Logger) SetBroadcastHub(hub Broadcaster) {
	if l.broadcaster != nil {
		l.broadcaster.SetHub(hub)
	}
}

// LogFilter narrows the buffered entries returned by QueryLogs.
type LogFilter struct {
	Session   string        // entries of other sessions are hidden
	MinLevel  zerolog.Level // entries below this level are hidden
	Component string        // empty matches every component
	Limit     int           // newest entries only; 0 means all
}

// Matches reports whether e passes the filter.
func (f LogFilter) Matches(e LogEntry) bool {
	if s := e.Session(); s != "" && s != f.Session {
		return false
	}
	if f.Component != "" && e.Component != f.Component {
		return false
	}
	return parseLevel(e.Level) >= f.MinLevel
}

// QueryLogs returns buffered entries matching f, oldest first.
func (l *Logger) QueryLogs(f LogFilter) []LogEntry {
	if l.broadcaster == nil {
		return []LogEntry{}
	}
	return l.broadcaster.Query(f.Matches, f.Limit)
}

// GetLogFilePath returns the active log file, or "" when logging to console only.
func (l *Logger) GetLogFilePath() string {
	return l.logPath
}

// parseLevel converts string level to zerolog.Level
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent returns a new logger with component field.
func (l *Logger) WithComponent(component string) zerolog.Logger {
	return l.Logger.With().Str("component", component).Logger()
}
