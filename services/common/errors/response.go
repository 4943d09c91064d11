package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yashrajoria/shopnow-backend/services/common/logger"
)

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// OK writes the success envelope.
func OK(c *gin.Context, code int, data any) {
	c.JSON(code, gin.H{"status": StatusSuccess, "data": data})
}

// List writes the success envelope with a result count.
func List(c *gin.Context, count int, data any) {
	c.JSON(http.StatusOK, gin.H{"status": StatusSuccess, "result": count, "data": data})
}

// Abort records err for ErrorMiddleware and stops the handler chain.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorMiddleware renders the last error recorded on the context. Operational errors keep
// their message; anything else is reduced to a generic message unless env is development.
func ErrorMiddleware(env string) gin.HandlerFunc {
	development := env == "development"

	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr, operational := As(err)
		if !operational {
			appErr = Internal("Something went wrong", err)
		}

		if appErr.Code >= http.StatusInternalServerError {
			logger.Error(c, "request failed", err,
				zap.String("kind", string(appErr.Kind)),
				zap.String("path", c.Request.URL.Path),
			)
		}

		body := gin.H{"status": statusFor(appErr.Code), "message": appErr.Message}
		if development {
			body["kind"] = appErr.Kind
			body["error"] = err.Error()
		}
		c.JSON(appErr.Code, body)
	}
}

// NoRoute answers unknown paths with the fail envelope.
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  StatusFail,
			"message": "Can't find " + c.Request.URL.Path + " on this server",
		})
	}
}

func statusFor(code int) string {
	if code >= http.StatusInternalServerError {
		return StatusError
	}
	return StatusFail
}
