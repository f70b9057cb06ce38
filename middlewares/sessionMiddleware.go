package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/models"
	"github.com/mmdatafocus/shop_inventory/utils"
)

const (
	SessionHeader = "X-Session-Id"

	sessionKey = "session"
)

// SchemaMigrator brings the store's tables up to date.
type SchemaMigrator func(ctx context.Context) error

// SessionMiddleware resolves the caller's session from X-Session-Id, issuing a new one when
// the header is absent or unknown, and verifies the schema once per session.
func SessionMiddleware(sessions *models.SessionStore, migrate SchemaMigrator, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(SessionHeader))
		session, created := sessions.Get(id)
		if created {
			logger.WithFields(logrus.Fields{
				"module":     "middlewares",
				"session_id": session.Id,
			}).Debug("session started")
		}
		c.Header(SessionHeader, session.Id)

		if migrate != nil {
			ctx := c.Request.Context()
			if err := session.VerifySchema(func() error { return migrate(ctx) }); err != nil {
				config.LogError(logger, "middlewares", "SessionMiddleware", "verify schema", session.Id, err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "could not verify the spreadsheet structure, try again"})
				return
			}
		}

		c.Set(sessionKey, session)
		c.Request = c.Request.WithContext(utils.SetSessionIdInContext(c.Request.Context(), session.Id))
		c.Next()
	}
}

// GetSession returns the session set by SessionMiddleware.
func GetSession(c *gin.Context) *models.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*models.Session); ok {
			return s
		}
	}
	return nil
}
