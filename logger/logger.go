package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileName = "service.log"
	// rotation of service.log
	maxSizeMB  = 128
	maxBackups = 30
	maxAgeDays = 30
)

type JalertLogger interface {
	Logger() *zap.Logger
	LogStream() *lumberjack.Logger
	Close()
	PrintInfo(fmtStr string, args ...any)
	PrintError(fmtStr string, args ...any)
}

type Option func(*jalertLogger)

// WithStderr mirrors every entry to stderr in console format.
func WithStderr() Option {
	return func(logg *jalertLogger) {
		logg.stderr = true
	}
}

// WithLevel drops entries below level. The default is info.
func WithLevel(level zapcore.Level) Option {
	return func(logg *jalertLogger) {
		logg.level = level
	}
}

type jalertLogger struct {
	logger  *zap.Logger
	logfile *lumberjack.Logger
	logPath string
	stderr  bool
	level   zapcore.Level
}

// NewLogger writes JSON entries to <logPath>/service.log.
func NewLogger(logPath string, opts ...Option) JalertLogger {
	logg := &jalertLogger{
		logPath: logPath,
		level:   zapcore.InfoLevel,
	}
	for _, opt := range opts {
		opt(logg)
	}

	logg.logfile = &lumberjack.Logger{
		Filename:   filepath.Join(logg.logPath, logFileName),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	logg.logger = zap.New(logg.newCore(), zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	if logg.stderr {
		fmt.Fprintf(os.Stderr, "Log file path: %s\n", logg.logfile.Filename)
	}
	return logg
}

// NewNopLogger discards everything.
func NewNopLogger() JalertLogger {
	return &jalertLogger{
		logger:  zap.NewNop(),
		logfile: &lumberjack.Logger{},
	}
}

// NewCoreLogger logs to core only, without a log file.
func NewCoreLogger(core zapcore.Core) JalertLogger {
	return &jalertLogger{
		logger:  zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		logfile: &lumberjack.Logger{},
	}
}

func (logg *jalertLogger) newCore() zapcore.Core {
	config := zap.NewProductionEncoderConfig()
	config.TimeKey = "timestamp"
	config.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(config), zapcore.AddSync(logg.logfile), logg.level),
	}
	if logg.stderr {
		config.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(config), zapcore.Lock(os.Stderr), logg.level))
	}
	return zapcore.NewTee(cores...)
}

// Logger returns the underlying zap logger for structured fields.
func (logg *jalertLogger) Logger() *zap.Logger {
	return logg.logger.WithOptions(zap.AddCallerSkip(-1))
}

func (logg *jalertLogger) LogStream() *lumberjack.Logger {
	return logg.logfile
}

func (logg *jalertLogger) Close() {
	_ = logg.logger.Sync()
	if logg.logfile.Filename != "" {
		logg.logfile.Close()
	}
}

func (logg *jalertLogger) PrintInfo(fmtStr string, args ...any) {
	logg.logger.Info(fmt.Sprintf(fmtStr, args...))
}

// PrintError logs at warn level.
func (logg *jalertLogger) PrintError(fmtStr string, args ...any) {
	logg.logger.Warn(fmt.Sprintf(fmtStr, args...))
}
