package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery turns a panic into a generic 500. When detailed is set the panic
// value is returned as "detail" as well.
func Recovery(log zerolog.Logger, detailed bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			log.Error().
				Str("panic", fmt.Sprint(recovered)).
				Str("path", c.Request.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("recovered from panic")

			body := gin.H{"error": "something went wrong"}
			if detailed {
				body["detail"] = fmt.Sprint(recovered)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, body)
		}()
		c.Next()
	}
}
