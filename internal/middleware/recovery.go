package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"microblog/internal/logging"
)

// Recovery turns a panic into a logged 500 with a JSON body.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logging.Ctx(c.Request.Context()).Error().
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Str("path", c.Request.URL.Path).
					Msg("panic recovered")
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

// Standard is the request chain every route runs through. Recovery sits
// innermost so a panic still reaches the access log and the metrics as a 500.
func Standard() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		RequestID(),
		AccessLog(),
		Metrics(),
		Recovery(),
	}
}
