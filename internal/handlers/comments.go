package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"microblog/internal/services"
)

type createCommentRequest struct {
	Content    string `json:"content"`
	UserID     string `json:"userId"`
	GuestName  string `json:"guestName"`
	GuestEmail string `json:"guestEmail"`
}

func (h *Handler) ListComments(c *gin.Context) {
	comments, err := h.comments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, keyError, err, "Failed to fetch comments")
		return
	}
	c.JSON(http.StatusOK, comments)
}

// CreateComment posts as the given or session user, or as a guest when
// neither is known.
func (h *Handler) CreateComment(c *gin.Context) {
	var req createCommentRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badBody(c, keyError, err)
		return
	}
	userID := req.UserID
	if userID == "" && req.GuestName == "" && req.GuestEmail == "" {
		userID = actingUser(c, "")
	}

	comment, err := h.comments.Create(c.Request.Context(), services.CreateCommentInput{
		MicroblogID: c.Param("id"),
		Content:     req.Content,
		UserID:      userID,
		GuestName:   req.GuestName,
		GuestEmail:  req.GuestEmail,
	})
	if err != nil {
		respondError(c, keyError, err, "Failed to create comment")
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) UpdateComment(c *gin.Context) {
	var req updateRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badBody(c, keyError, err)
		return
	}
	comment, err := h.comments.Update(c.Request.Context(), c.Param("id"), req.Content, actingUser(c, req.UserID))
	if err != nil {
		respondError(c, keyError, err, "Failed to update comment")
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *Handler) DeleteComment(c *gin.Context) {
	var req deleteRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badBody(c, keyError, err)
		return
	}
	if err := h.comments.Delete(c.Request.Context(), c.Param("id"), actingUser(c, req.UserID)); err != nil {
		respondError(c, keyError, err, "Failed to delete comment")
		return
	}
	c.JSON(http.StatusOK, gin.H{keyMessage: "Comment deleted successfully"})
}
