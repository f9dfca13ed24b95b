package handler

import (
	"errors"
	"net/http"

	"github.com/devgrid/rss/internal/logic"
	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// FailWithError 按错误类型映射HTTP状态码
func FailWithError(c *gin.Context, err error) {
	ErrorResponse(c, statusForError(err), err.Error())
}

// statusForError 错误分类到状态码
func statusForError(err error) int {
	switch {
	case errors.Is(err, logic.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, logic.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, logic.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, logic.ErrTerminalState),
		errors.Is(err, logic.ErrSubmissionCancelled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Pagination 分页响应
func Pagination(page, pageSize int, total int64) gin.H {
	return gin.H{
		"page":       page,
		"page_size":  pageSize,
		"total":      total,
		"total_page": (total + int64(pageSize) - 1) / int64(pageSize),
	}
}

// pageParams 解析分页参数
func pageParams(c *gin.Context) (int, int) {
	page := parsePositiveInt(c.DefaultQuery("page", "1"), 1)
	pageSize := parsePositiveInt(c.DefaultQuery("page_size", "10"), 10)
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
