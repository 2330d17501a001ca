// Package handlers implements the JSON HTTP API on top of the services.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"microblog/internal/auth"
	"microblog/internal/database"
	"microblog/internal/logging"
	"microblog/internal/middleware"
	"microblog/internal/services"
	"microblog/internal/validation"
)

// Handler carries the dependencies of every route.
type Handler struct {
	db         *database.DB
	accounts   *services.Accounts
	microblogs *services.Microblogs
	comments   *services.Comments
	likes      *services.Likes
	uploads    *services.Uploads
}

func New(db *database.DB, policy *auth.Policy, uploads *services.Uploads) *Handler {
	return &Handler{
		db:         db,
		accounts:   services.NewAccounts(db),
		microblogs: services.NewMicroblogs(db, policy),
		comments:   services.NewComments(db, policy),
		likes:      services.NewLikes(db),
		uploads:    uploads,
	}
}

// Response bodies carry the message under "message" on /auth routes and
// under "error" everywhere else.
const (
	keyMessage = "message"
	keyError   = "error"
)

const invalidBody = "Invalid request body"

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindBadRequest:
		return http.StatusBadRequest
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {key: message}. Internal failures are logged
// with their cause; the client only sees the generic message.
func respondError(c *gin.Context, key string, err error, fallback string) {
	status := http.StatusInternalServerError
	msg := fallback

	var se *services.Error
	if errors.As(err, &se) {
		status = statusFor(se.Kind)
		msg = se.Message
	}
	_ = c.Error(err)

	if status == http.StatusInternalServerError {
		logging.Ctx(c.Request.Context()).Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg(msg)
	}
	c.JSON(status, gin.H{key: msg})
}

// bindOptionalJSON decodes the request body into dst when there is one.
// An empty body leaves dst zeroed, which lets DELETE requests rely on the
// session identity alone.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// badBody reports a body that failed to decode or validate.
func badBody(c *gin.Context, key string, err error) {
	msg := invalidBody
	if field := validation.FirstField(err); field == "URL" {
		msg = "Image url is required"
	}
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{key: msg})
}

// actingUser prefers the userId sent by the client and falls back to the
// user recorded in the session at login.
func actingUser(c *gin.Context, bodyUserID string) string {
	if bodyUserID != "" {
		return bodyUserID
	}
	return middleware.SessionUserID(c)
}
