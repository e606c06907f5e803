package rest

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dfryer1193/goblog-images/blog/domain"
	"github.com/gin-gonic/gin"
	"github.com/jmgilman/go/errors"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultCacheBustParam is the query parameter the asset layer appends to
	// versioned URLs.
	DefaultCacheBustParam = "__frsh_c"

	immutableCacheControl = "public, max-age=31536000, immutable"
	retryAfterSeconds     = "1"
)

// ImageService is the part of application.ImageService the handler needs.
type ImageService interface {
	Resolve(id string) (domain.ImageSource, error)
	Resized(ctx context.Context, src domain.ImageSource, width int) ([]byte, bool, error)
}

type ImageHandler struct {
	service        ImageService
	cacheBustParam string
}

func NewImageHandler(service ImageService, cacheBustParam string) *ImageHandler {
	if cacheBustParam == "" {
		cacheBustParam = DefaultCacheBustParam
	}
	return &ImageHandler{
		service:        service,
		cacheBustParam: cacheBustParam,
	}
}

// GetImage serves GET /img?id=<id>&w=<width>, or &orig for the source file.
func (h *ImageHandler) GetImage(c *gin.Context) {
	id := c.Query("id")
	_, orig := c.GetQuery("orig")
	rawWidth, hasWidth := c.GetQuery("w")

	if id == "" || (!orig && !hasWidth) {
		writeError(c, domain.ErrMissingParameter)
		return
	}

	src, err := h.service.Resolve(id)
	if err != nil {
		writeError(c, err)
		return
	}

	if _, ok := c.GetQuery(h.cacheBustParam); ok {
		c.Header("Cache-Control", immutableCacheControl)
	}

	if orig {
		c.File(src.Path)
		return
	}

	width, err := strconv.Atoi(strings.TrimSpace(rawWidth))
	if err != nil {
		writeError(c, domain.ErrInvalidParameter)
		return
	}

	data, hit, err := h.service.Resized(c.Request.Context(), src, width)
	if err != nil {
		writeError(c, err)
		return
	}

	if hit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Data(http.StatusOK, "image/png", data)
}

// statusFor maps an error's code to the response status.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)

	var pe errors.PlatformError
	msg := http.StatusText(status)
	if errors.As(err, &pe) {
		msg = pe.Message()
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("id", c.Query("id")).Int("status", status).Msg("Failed to serve image")
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", retryAfterSeconds)
	}
	// Drop any caching header set before the failure.
	c.Writer.Header().Del("Cache-Control")
	c.String(status, msg)
}
