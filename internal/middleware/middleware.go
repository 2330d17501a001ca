// Package middleware holds the gin middleware of the HTTP server.
package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"microblog/internal/logging"
)

// SessionUserKey is the session value (and gin context key) holding the
// id of the user who logged in through this browser.
const SessionUserKey = "userID"

// SessionUser copies the session user id into the gin context. Requests
// without one pass through untouched: every route is public and handlers
// decide for themselves whether an identity is required.
func SessionUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		// The session was attached by sessions.Sessions in main.
		session := sessions.Default(c)
		raw := session.Get(SessionUserKey)
		// Nobody logged in on this browser.
		if raw == nil {
			c.Next()
			return
		}

		// Login stores the id as a string; anything else is a stale or tampered cookie.
		userID, ok := raw.(string)
		if !ok || userID == "" {
			logging.Ctx(c.Request.Context()).Warn().
				Str("type", typeName(raw)).
				Str("client_ip", c.ClientIP()).
				Msg("clearing session with malformed user id")
			// Drop the values and expire the cookie in the browser.
			session.Clear()
			session.Options(sessions.Options{Path: "/", MaxAge: -1})
			if err := session.Save(); err != nil {
				logging.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to clear session")
			}
			c.Next()
			return
		}

		// Handlers read it back with SessionUserID.
		c.Set(SessionUserKey, userID)
		c.Next()
	}
}

// SessionUserID returns the id stored by SessionUser, or "".
func SessionUserID(c *gin.Context) string {
	return c.GetString(SessionUserKey)
}

func typeName(v any) string {
	switch v.(type) {
	case int64:
		return "int64"
	case int:
		return "int"
	case string:
		return "string"
	default:
		return "other"
	}
}
