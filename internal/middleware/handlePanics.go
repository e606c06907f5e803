package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HandlePanics answers a recovered panic with a plain 500 so a broken request
// never takes the server down.
func HandlePanics() gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		log.Error().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("panic", fmt.Sprint(recovered)).
			Msg("Recovered from panic")
		c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		c.Abort()
	}
}
