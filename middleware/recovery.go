package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/MrEthical07/procureauth/internal/logger"
	"github.com/gin-gonic/gin"
)

// ErrPanic is passed to the AbortFunc after a recovered panic.
var ErrPanic = errors.New("internal server error")

// Recovery recovers from panics, logs the stack and renders ErrPanic
// through abort.
func Recovery(log *logger.Logger, abort AbortFunc) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	if abort == nil {
		abort = defaultAbort
	}
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithContext(c.Request.Context()).Error("panic recovered", map[string]interface{}{
					"error":  fmt.Sprintf("%v", rec),
					"stack":  string(debug.Stack()),
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				})
				abort(c, ErrPanic)
			}
		}()
		c.Next()
	}
}
