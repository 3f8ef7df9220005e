package util

import (
	"errors"
	"net/http"

	"tryout_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err))
	InternalServerError(c)
}

// ServiceError 按错误类型映射 HTTP 状态码，未知错误记日志并返回 500
func ServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrCourseNotFound),
		errors.Is(err, ErrTryoutNotFound),
		errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrAttemptNotFound),
		errors.Is(err, ErrAttemptInProgress):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrNotEnrolled):
		Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrAttemptCompleted),
		errors.Is(err, ErrAlreadyEnrolled):
		Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidAnswer),
		errors.Is(err, ErrEmailRegistered):
		Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		Error(c, http.StatusUnauthorized, err.Error())
	default:
		LogInternalError(c, err)
	}
}
