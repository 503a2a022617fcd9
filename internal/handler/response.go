// Package handler 提供 HTTP 请求处理层
package handler

import (
	"errors"
	"net/http"
	"strings"

	"qu2data_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// errorBody 错误响应体，与前端约定的格式
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// statusOf 业务错误码到 HTTP 状态码的映射
func statusOf(code int) int {
	switch code {
	case errorx.CodeInvalidParam, errorx.CodeIdpConflict:
		return http.StatusBadRequest
	case errorx.CodeNotFound:
		return http.StatusNotFound
	case errorx.CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// HandleSuccess 返回成功响应，payload 原样输出
func HandleSuccess(c *gin.Context, status int, data any) {
	if data == nil {
		c.Status(status)
		return
	}
	c.JSON(status, data)
}

// HandleError 通用错误处理
// 业务错误映射为对应状态码并回短消息，内部细节只进日志不出网
func HandleError(c *gin.Context, err error) {
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) {
		status := statusOf(codeErr.Code)
		if status == http.StatusInternalServerError {
			zap.L().Error("request failed",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.Error(err),
			)
		}
		c.JSON(status, errorBody{
			Message: codeErr.Msg,
			Error:   http.StatusText(status),
		})
		return
	}

	zap.L().Error("system error",
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, errorBody{
		Message: errorx.ErrServerBusy.Msg,
		Error:   http.StatusText(http.StatusInternalServerError),
	})
}

// HandleParamError 处理参数绑定错误（带 validator 翻译）
func HandleParamError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		translated := RemoveTopStruct(validationErrs.Translate(Trans))
		parts := make([]string, 0, len(translated))
		for _, msg := range translated {
			parts = append(parts, msg)
		}
		c.JSON(http.StatusBadRequest, errorBody{
			Message: strings.Join(parts, "; "),
			Error:   http.StatusText(http.StatusBadRequest),
		})
		return
	}
	c.JSON(http.StatusBadRequest, errorBody{
		Message: errorx.ErrInvalidParam.Msg,
		Error:   http.StatusText(http.StatusBadRequest),
	})
}
