package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response standard response structure
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// SuccessResponse returns success response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      int(CodeSuccess),
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// ErrorResponse returns error response
func ErrorResponse(c *gin.Context, httpCode int, message string) {
	c.JSON(httpCode, Response{
		Code:      httpCode,
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// Error returns an error response carrying a business code
func Error(c *gin.Context, code ResponseCode, message string) {
	status := HTTPStatus(NewError(code, message))
	c.JSON(status, Response{
		Code:      int(code),
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// ErrorFrom answers with the status and message derived from err
func ErrorFrom(c *gin.Context, err error) {
	c.JSON(HTTPStatus(err), Response{
		Code:      int(GetErrorCode(err)),
		Message:   GetErrorMessage(err),
		Timestamp: time.Now().Unix(),
	})
}
