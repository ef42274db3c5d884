package response

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Body is the API response envelope: {"success": bool, "data": ..., "error": "..."}.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Body{Success: true, Data: data})
}

// Error sends a failed envelope with the given status.
func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, Body{Success: false, Error: msg})
}

// Abort sends a failed envelope and stops the handler chain; for middleware.
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Body{Success: false, Error: msg})
}

// OK sends 200 with data.
func OK(c *gin.Context, data interface{}) { success(c, http.StatusOK, data) }

// Created sends 201 with data.
func Created(c *gin.Context, data interface{}) { success(c, http.StatusCreated, data) }

// NoContent sends 204 with no body.
func NoContent(c *gin.Context) { c.Status(http.StatusNoContent) }

func BadRequest(c *gin.Context, msg string)         { Error(c, http.StatusBadRequest, msg) }
func Unauthorized(c *gin.Context, msg string)       { Error(c, http.StatusUnauthorized, msg) }
func Forbidden(c *gin.Context, msg string)          { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)           { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)           { Error(c, http.StatusConflict, msg) }
func ServiceUnavailable(c *gin.Context, msg string) { Error(c, http.StatusServiceUnavailable, msg) }
func Internal(c *gin.Context, msg string)           { Error(c, http.StatusInternalServerError, msg) }

// TooManyRequests sends 429 with Retry-After rounded to whole seconds (at least 1).
func TooManyRequests(c *gin.Context, msg string, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int(retryAfter.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
	}
	Error(c, http.StatusTooManyRequests, msg)
}
