package middleware

import (
	"net/http"

	"github.com/beego/beego/v2/server/web/context"
)

const (
	allowMethods = "GET, POST, PUT, DELETE, PATCH, OPTIONS"
	allowHeaders = "*"
)

// CORSMiddleware 允许任意来源访问
func CORSMiddleware(ctx *context.Context) {
	ctx.Output.Header("Access-Control-Allow-Origin", "*")
	ctx.Output.Header("Access-Control-Allow-Methods", allowMethods)
	ctx.Output.Header("Access-Control-Allow-Headers", allowHeaders)
	ctx.Output.Header("Access-Control-Max-Age", "3600")

	// 预检请求直接返回
	if ctx.Input.Method() == http.MethodOptions {
		ctx.Output.SetStatus(http.StatusNoContent)
		_ = ctx.Output.Body([]byte(""))
	}
}
