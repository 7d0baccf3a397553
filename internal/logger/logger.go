package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	defaultLogger *zap.SugaredLogger = zap.NewNop().Sugar()
)

// GetLogLevelFromString 将字符串转换为日志级别
func GetLogLevelFromString(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

/**
 * Initialize the package logger
 * @param {string} path - "console"/"" for stderr, otherwise a log file path
 * @param {string} level - debug/info/warn/error
 * @returns {error} Returns error when the log file cannot be opened
 * @description
 * - Console output uses zap's console encoder without timestamps
 * - File output uses ISO8601 timestamps and appends to the file
 */
func InitLogger(path string, level string) error {
	lvl := zap.NewAtomicLevelAt(GetLogLevelFromString(level))

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""

	var sink zapcore.WriteSyncer
	if path == "" || path == "console" {
		sink = zapcore.Lock(os.Stderr)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create log directory failed: %w", err)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file failed: %w", err)
		}
		sink = zapcore.AddSync(f)
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, lvl)
	defaultLogger = zap.New(core).Named("handv").Sugar()
	return nil
}

// SetLogger replaces the backend, mainly for tests using zaptest/observer
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	defaultLogger = l.Sugar()
}

func Sync() {
	_ = defaultLogger.Sync()
}

// Debug 输出调试日志
func Debug(v ...interface{}) {
	defaultLogger.Debug(v...)
}

// Debugf 输出格式化调试日志
func Debugf(format string, v ...interface{}) {
	defaultLogger.Debugf(format, v...)
}

// Info 输出信息日志
func Info(v ...interface{}) {
	defaultLogger.Info(v...)
}

// Infof 输出格式化信息日志
func Infof(format string, v ...interface{}) {
	defaultLogger.Infof(format, v...)
}

// Warn 输出警告日志
func Warn(v ...interface{}) {
	defaultLogger.Warn(v...)
}

// Warnf 输出格式化警告日志
func Warnf(format string, v ...interface{}) {
	defaultLogger.Warnf(format, v...)
}

// Error 输出错误日志
func Error(v ...interface{}) {
	defaultLogger.Error(v...)
}

// Errorf 输出格式化错误日志
func Errorf(format string, v ...interface{}) {
	defaultLogger.Errorf(format, v...)
}

// Fatalf 输出格式化致命错误日志并退出程序
func Fatalf(format string, v ...interface{}) {
	defaultLogger.Fatalf(format, v...)
}
