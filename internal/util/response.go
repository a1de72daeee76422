package util

import (
	"edu_progress_backend/pkg/logger"
	"errors"
	"net/http"

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

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	InternalServerError(c)
}

// HandleServiceError 将业务错误映射为 HTTP 响应，不向调用方暴露内部信息
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrLessonNotFound),
		errors.Is(err, ErrCourseNotFound),
		errors.Is(err, ErrQuizNotFound):
		Error(c, http.StatusNotFound, publicMessage(err))
	case errors.Is(err, ErrNotEnrolled),
		errors.Is(err, ErrNotLessonOwner),
		errors.Is(err, ErrPermissionDenied):
		Error(c, http.StatusForbidden, publicMessage(err))
	case errors.Is(err, ErrInvalidQuizAnswers):
		BadRequest(c, ErrInvalidQuizAnswers.Error())
	default:
		LogInternalError(c, err)
	}
}

func publicMessage(err error) string {
	for _, known := range []error{
		ErrLessonNotFound, ErrCourseNotFound, ErrQuizNotFound,
		ErrNotEnrolled, ErrNotLessonOwner, ErrPermissionDenied,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "Internal server error"
}
