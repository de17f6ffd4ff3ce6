// Package logsvc implements core.Logger with zap, rotating the log file with lumberjack
// and reporting to rollbar when a token is configured.
package logsvc

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const (
	logFileMaxSizeMB  = 100
	logFileMaxBackups = 5
	logFileMaxAgeDays = 30
)

type Logger struct {
	zap     *zap.Logger
	rollbar bool
}

var _ core.Logger = (*Logger)(nil)

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// stdoutEncoder is human readable in debug, JSON otherwise.
func stdoutEncoder(debug bool) zapcore.Encoder {
	if debug {
		enc := encoderConfig()
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(enc)
	}
	return zapcore.NewJSONEncoder(encoderConfig())
}

// NewLogger logs to stdout, and to conf.Log.File (JSON, rotated) when set.
func NewLogger(conf *core.Config) *Logger {
	level := zap.InfoLevel
	if conf.Debug {
		level = zap.DebugLevel
	}
	enc := encoderConfig()

	cores := []zapcore.Core{
		zapcore.NewCore(stdoutEncoder(conf.Debug), zapcore.AddSync(os.Stdout), level),
	}
	if conf.Log.File != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   conf.Log.File,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
			MaxAge:     logFileMaxAgeDays,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), fileWriter, level))
	}
	return newLogger(zapcore.NewTee(cores...), conf)
}

func newLogger(c zapcore.Core, conf *core.Config) *Logger {
	l := &Logger{
		zap: zap.New(c, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zap.ErrorLevel)),
	}
	if conf.RollbarToken != "" && !conf.TestMode {
		initRollbar(conf)
		l.rollbar = true
	}
	return l
}

// Zap exposes the underlying logger, for libraries expecting a *zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

func (l *Logger) Sync() error {
	if l.rollbar {
		waitRollbar()
	}
	return l.zap.Sync()
}

// fields maps the expected args (error, map[string]interface{}, user.User) to zap fields.
func fields(args []interface{}) []zap.Field {
	flds := make([]zap.Field, 0, len(args))
	var usrSet bool
	for i, arg := range args {
		switch a := arg.(type) {
		case nil:
		case error:
			flds = append(flds, zap.Error(a))
		case map[string]interface{}:
			for k, v := range a {
				flds = append(flds, zap.Any(k, v))
			}
		case user.User:
			if !usrSet { // only log one User
				flds = append(flds, zap.String("user_id", a.ID), zap.String("username", a.Username))
				usrSet = true
			}
		default:
			flds = append(flds, zap.Any(fmt.Sprintf("arg%d", i), a))
		}
	}
	return flds
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.zap.Debug(msg, fields(args)...)
	if l.rollbar {
		reportRollbar(levelDebug, msg, args)
	}
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.zap.Info(msg, fields(args)...)
	if l.rollbar {
		reportRollbar(levelInfo, msg, args)
	}
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.zap.Warn(msg, fields(args)...)
	if l.rollbar {
		reportRollbar(levelWarn, msg, args)
	}
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.zap.Error(msg, fields(args)...)
	if l.rollbar {
		reportRollbar(levelError, msg, args)
	}
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	if l.rollbar {
		reportRollbar(levelCritical, msg, args)
		waitRollbar()
	}
	l.zap.Fatal(msg, fields(args)...)
}
