package batch_scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Logger interface {
	Debug(msg string, args ...Field)
	Info(msg string, args ...Field)
	Warn(msg string, args ...Field)
	Error(msg string, args ...Field)
}

type Field struct {
	Key string
	Val any
}

type ZapLogger struct {
	zap *zap.Logger
}

func NewZapLogger(zap *zap.Logger) Logger {
	return &ZapLogger{zap: zap}
}

func (z *ZapLogger) Debug(msg string, args ...Field) {
	z.zap.Debug(msg, z.toZapFields(args)...)
}

func (z *ZapLogger) Info(msg string, args ...Field) {
	z.zap.Info(msg, z.toZapFields(args)...)
}

func (z *ZapLogger) Warn(msg string, args ...Field) {
	z.zap.Warn(msg, z.toZapFields(args)...)
}

func (z *ZapLogger) Error(msg string, args ...Field) {
	z.zap.Error(msg, z.toZapFields(args)...)
}

func (z *ZapLogger) toZapFields(args []Field) []zap.Field {
	res := make([]zap.Field, 0, len(args))
	for _, arg := range args {
		if err, ok := arg.Val.(error); ok {
			res = append(res, zap.NamedError(arg.Key, err))
			continue
		}
		res = append(res, zap.Any(arg.Key, arg.Val))
	}

	return res
}

// cronLogger 把robfig/cron内部日志转到Logger上
type cronLogger struct {
	l Logger
}

var _ cron.Logger = cronLogger{}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, kvToFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(kvToFields(keysAndValues), Field{Key: "err", Val: err})
	c.l.Error(msg, fields...)
}

func kvToFields(kv []interface{}) []Field {
	res := make([]Field, 0, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			res = append(res, Field{Key: "extra", Val: key})
			break
		}
		res = append(res, Field{Key: key, Val: kv[i+1]})
	}
	return res
}
