package middleware

import (
	"time"

	"github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

const requestStartKey = "request_start"

// RequestStart 记录请求开始时间，配合RequestLogger使用
func RequestStart(ctx *context.Context) {
	ctx.Input.SetData(requestStartKey, time.Now())
}

// RequestLogger 请求完成日志
func RequestLogger(log *zap.Logger) func(*context.Context) {
	return func(ctx *context.Context) {
		status := ctx.ResponseWriter.Status
		if status == 0 {
			status = ctx.Output.Status
		}

		fields := []zap.Field{
			zap.String("method", ctx.Input.Method()),
			zap.String("path", ctx.Input.URL()),
			zap.Int("status", status),
			zap.String("remote_addr", ctx.Input.IP()),
		}
		if started, ok := ctx.Input.GetData(requestStartKey).(time.Time); ok {
			fields = append(fields, zap.Duration("duration", time.Since(started)))
		}

		switch {
		case status >= 500:
			log.Error("Request completed", fields...)
		case status >= 400:
			log.Warn("Request completed", fields...)
		default:
			log.Info("Request completed", fields...)
		}
	}
}
