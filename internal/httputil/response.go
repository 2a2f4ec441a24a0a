// Package httputil holds response helpers shared by the API handlers.
package httputil

import "github.com/gin-gonic/gin"

// RespondError aborts the request with a JSON body carrying a machine-readable
// code, a human message, and the request id when the middleware assigned one.
func RespondError(c *gin.Context, status int, code, message string) {
	body := gin.H{
		"code":    code,
		"message": message,
	}

	if rid := c.GetString("request_id"); rid != "" {
		body["request_id"] = rid
	}

	c.AbortWithStatusJSON(status, body)
}
