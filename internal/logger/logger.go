// internal/logger/logger.go
// Package logger собирает zap-логгеры процесса: цветная консоль плюс
// JSON-файл для трейдерского CLI и буферный сток для TUI, которому
// нельзя трогать stdout.
package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const fileFlushInterval = 3 * time.Second

// Init builds the process logger: colored console output plus an optional
// JSON file sink when logFile is non-empty. The returned cleanup flushes
// both cores and closes the file; call it on shutdown.
func Init(debug bool, logFile string) (*zap.Logger, func(), error) {
	config := zap.NewProductionConfig()
	if debug {
		config = zap.NewDevelopmentConfig()
	}

	consoleCore := zapcore.NewCore(
		PrettyEncoder(),
		zapcore.AddSync(zapcore.Lock(os.Stdout)),
		config.Level,
	)

	if logFile == "" {
		logger := zap.New(consoleCore)
		return logger, func() { _ = logger.Sync() }, nil
	}

	// Flush failures inside the file sink are reported through the console
	// core, not through the tee that feeds the sink itself.
	console := zap.New(consoleCore)

	writer, err := NewSafeFileWriter(logFile, fileFlushInterval, console)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// JSON-файл читают grep и jq: ключи, уровень и время держим
	// одинаковыми в обоих режимах, без однобуквенных ключей и
	// цветовых кодов development-конфига.
	fileConfig := zap.NewProductionEncoderConfig()
	fileConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	fileConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(fileConfig),
		zapcore.AddSync(writer),
		config.Level,
	)

	logger := zap.New(zapcore.NewTee(consoleCore, fileCore))
	cleanup := func() {
		_ = logger.Sync()
		_ = writer.Close()
	}
	return logger, cleanup, nil
}

// NewTUI builds a logger that writes JSON entries into buffer only. Stdout
// stays untouched so a terminal UI can own the screen.
func NewTUI(debug bool, buffer *LogBuffer) (*zap.Logger, error) {
	if buffer == nil {
		return nil, fmt.Errorf("buffer is required for TUI logger")
	}

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "",
		StacktraceKey:  "",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeName:     zapcore.FullNameEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(buffer),
		level,
	)
	return zap.New(core), nil
}
