package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"pkg.aura.care/moodfeed/internal/auth"
	"pkg.aura.care/moodfeed/internal/feed"
)

const viewerKey = "viewer"

func (a *API) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		a.logger.Desugar().Debug("Handled request.",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(started)))
	}
}

// identify attaches the caller's feed.Viewer. Requests without a token are
// anonymous; requests with a bad token are rejected.
func (a *API) identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := a.auth.FromHeader(c.GetHeader("Authorization"))
		switch {
		case err == nil:
			c.Set(viewerKey, feed.Viewer{UserID: uid})
		case errors.Is(err, auth.ErrMissingToken):
			c.Set(viewerKey, feed.Viewer{})
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		}
	}
}

func viewerOf(c *gin.Context) feed.Viewer {
	v, _ := c.Get(viewerKey)
	viewer, _ := v.(feed.Viewer)
	return viewer
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, feed.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, feed.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, feed.ErrAlreadyPublished):
		return http.StatusConflict
	case feed.IsInvalidInput(err):
		return http.StatusBadRequest
	case errors.Is(err, feed.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, feed.ErrMalformedRecord):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) fail(c *gin.Context, err error) {
	status := statusOf(err)
	switch {
	case errors.Is(err, feed.ErrMalformedRecord):
		a.logger.Warnf("Request %s %s hit a malformed record: %s.", c.Request.Method, c.FullPath(), err)
	case status >= http.StatusInternalServerError:
		a.logger.Errorf("Request %s %s failed: %s.", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
