// =================================
// File: internal/logger/logger.go
// =================================
package logger

import (
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger extends zap.Logger with routing-engine conveniences.
type Logger struct {
	*zap.Logger
	config *Config
}

// Config controls log destinations and rotation.
type Config struct {
	LogFile     string
	MaxSize     int  // megabytes
	MaxAge      int  // days
	MaxBackups  int  // number of rotated files kept
	Compress    bool // gzip rotated files
	Development bool

	// Ring, when set, receives every emitted entry so the terminal UI
	// can render a live log pane without tailing the file.
	Ring *Ring
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		LogFile:     "logs/router.log",
		MaxSize:     100, // 100 MB
		MaxAge:      7,   // 7 days
		MaxBackups:  3,
		Compress:    true,
		Development: false,
	}
}

// New creates a logger that tees a human-readable console stream, a
// rotated JSON file and (optionally) an in-memory ring.
func New(cfg *Config) (*Logger, error) {
	return build(cfg, true)
}

// NewTUI creates a logger without the console stream. The dashboard
// owns the terminal, so entries go to the file and the ring only;
// writing to stdout would tear the alternate screen.
func NewTUI(cfg *Config) (*Logger, error) {
	return build(cfg, false)
}

func build(cfg *Config, console bool) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	logRotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	// The console stream gets colored levels; the JSON file stays plain.
	consoleConfig := encoderConfig
	consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(consoleConfig)
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)

	var level zapcore.Level
	if cfg.Development {
		level = zapcore.DebugLevel
	} else {
		level = zapcore.InfoLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(fileEncoder, zapcore.AddSync(logRotator), level),
	}
	if console {
		cores = append(cores,
			zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level))
	}
	if cfg.Ring != nil {
		cores = append(cores, cfg.Ring.Core(level))
	}

	logger := &Logger{
		Logger: zap.New(zapcore.NewTee(cores...),
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
			zap.AddCallerSkip(1),
		),
		config: cfg,
	}

	return logger, nil
}

// WithComponent tags log entries with the originating subsystem.
func (l *Logger) WithComponent(component string) *zap.Logger {
	return l.With(zap.String("component", component))
}

// WithOperation creates a logger for a single operation, tagged with a
// correlation id so the entries of one pass can be grepped together.
func (l *Logger) WithOperation(operation string) *zap.Logger {
	return l.With(
		zap.String("operation", operation),
		zap.String("correlation_id", uuid.New().String()),
		zap.Time("start_time", time.Now().UTC()),
	)
}

// LogError logs an error with additional context.
func (l *Logger) LogError(msg string, err error, fields ...zap.Field) {
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.Error(msg, fields...)
}

// Sync flushes buffered entries, ignoring the unsyncable-stdout errors
// some platforms report.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if err != nil && (err.Error() == "sync /dev/stdout: invalid argument" ||
		err.Error() == "sync /dev/stderr: inappropriate ioctl for device") {
		return nil
	}
	return err
}

// TrackPerformance times an operation from call to the returned func.
func (l *Logger) TrackPerformance(operation string) (end func()) {
	start := time.Now()
	opLogger := l.WithOperation(operation)

	opLogger.Debug("Starting operation")

	return func() {
		duration := time.Since(start)
		opLogger.Debug("Operation completed",
			zap.Duration("duration", duration),
			zap.Float64("duration_ms", float64(duration.Microseconds())/1000),
		)
	}
}
