package controllers

import (
	"net/http"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	apperrors "github.com/aihub/flora-search/internal/errors"
	"github.com/aihub/flora-search/internal/logger"
)

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	_ = c.ServeJSON()
}

// JSONDetail writes an error body of the form {"detail": message}.
func (c *BaseController) JSONDetail(status int, message string) {
	c.JSON(status, map[string]string{"detail": message})
}

// JSONAppError maps an AppError to its HTTP status. Server-side causes are logged, never returned.
func (c *BaseController) JSONAppError(err error) {
	appErr := apperrors.GetAppError(err)
	if appErr.HTTPCode >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.Ctx.Request.URL.Path),
			zap.String("code", string(appErr.Code)),
			zap.Error(appErr.Cause))
	}
	c.JSONDetail(appErr.HTTPCode, appErr.Message)
}

// parseIntParam reads a path parameter as an integer, writing a 400 on failure.
func (c *BaseController) parseIntParam(name string) (int64, bool) {
	raw := c.Ctx.Input.Param(name)
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSONAppError(apperrors.NewInvalidInputError(name[1:], "must be an integer"))
		return 0, false
	}
	return value, true
}
