package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"microblog/internal/logging"
	"microblog/internal/middleware"
	"microblog/internal/models"
)

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

const loginFailed = "登录失败"

func (h *Handler) AdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badBody(c, keyMessage, err)
		return
	}
	user, err := h.accounts.AdminLogin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, keyMessage, err, loginFailed)
		return
	}
	h.startSession(c, user)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badBody(c, keyMessage, err)
		return
	}
	user, err := h.accounts.Login(c.Request.Context(), req.Username, req.Email)
	if err != nil {
		respondError(c, keyMessage, err, loginFailed)
		return
	}
	h.startSession(c, user)
}

// startSession records user in the cookie session and writes it out.
func (h *Handler) startSession(c *gin.Context, user *models.User) {
	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, keyMessage, err, loginFailed)
		return
	}
	logging.Ctx(c.Request.Context()).Info().Str("user_id", user.ID).Bool("admin", user.IsAdmin).Msg("logged in")
	c.JSON(http.StatusOK, user)
}

func (h *Handler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		respondError(c, keyMessage, err, "退出登录失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{keyMessage: "已退出登录"})
}

// Me returns the user of the current session.
func (h *Handler) Me(c *gin.Context) {
	user, err := h.accounts.Lookup(c.Request.Context(), middleware.SessionUserID(c))
	if err != nil {
		respondError(c, keyMessage, err, "获取用户失败")
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{keyMessage: "未登录"})
		return
	}
	c.JSON(http.StatusOK, user)
}
