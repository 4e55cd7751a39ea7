package response

import (
	"net/http"

	"campus_wall/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`    // 业务码
	Message string      `json:"message"` // 提示信息
	Data    interface{} `json:"data"`    // 数据
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, msg string) {
	c.JSON(httpCode, Response{
		Code:    errCode,
		Message: msg,
		Data:    nil,
	})
}

// FromError 按错误类别映射 HTTP 状态码与业务码
func FromError(c *gin.Context, err error) {
	httpCode, errCode := StatusOf(err)
	msg := err.Error()
	if httpCode == http.StatusInternalServerError {
		msg = "internal server error"
	}
	Error(c, httpCode, errCode, msg)
}

// StatusOf NotFound→404, Forbidden→403, Validation→400, Conflict→409，其余 500
func StatusOf(err error) (int, int) {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		return http.StatusNotFound, ErrResourceNotFound
	case apperror.KindForbidden:
		return http.StatusForbidden, ErrWallForbidden
	case apperror.KindValidation:
		return http.StatusBadRequest, ErrInvalidParam
	case apperror.KindConflict:
		return http.StatusConflict, ErrVersionConflict
	default:
		return http.StatusInternalServerError, ErrServerInternal
	}
}
