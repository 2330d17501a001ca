package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"microblog/internal/services"
)

type imageRequest struct {
	URL     string `json:"url" binding:"notblank"`
	AltText string `json:"altText"`
}

type createMicroblogRequest struct {
	Content string         `json:"content"`
	Images  []imageRequest `json:"images" binding:"omitempty,dive"`
	UserID  string         `json:"userId"`
}

type updateRequest struct {
	Content string `json:"content"`
	UserID  string `json:"userId"`
}

type deleteRequest struct {
	UserID string `json:"userId"`
}

func (h *Handler) ListMicroblogs(c *gin.Context) {
	posts, err := h.microblogs.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondError(c, keyError, err, "Failed to fetch microblogs")
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) CreateMicroblog(c *gin.Context) {
	var req createMicroblogRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badBody(c, keyError, err)
		return
	}
	in := services.CreateMicroblogInput{
		Content: req.Content,
		UserID:  actingUser(c, req.UserID),
	}
	for _, img := range req.Images {
		in.Images = append(in.Images, services.NewImage{URL: img.URL, AltText: img.AltText})
	}

	post, err := h.microblogs.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, keyError, err, "Failed to create microblog")
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) UpdateMicroblog(c *gin.Context) {
	var req updateRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badBody(c, keyError, err)
		return
	}
	post, err := h.microblogs.Update(c.Request.Context(), c.Param("id"), req.Content, actingUser(c, req.UserID))
	if err != nil {
		respondError(c, keyError, err, "Failed to update microblog")
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) DeleteMicroblog(c *gin.Context) {
	var req deleteRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badBody(c, keyError, err)
		return
	}
	if err := h.microblogs.Delete(c.Request.Context(), c.Param("id"), actingUser(c, req.UserID)); err != nil {
		respondError(c, keyError, err, "Failed to delete microblog")
		return
	}
	c.JSON(http.StatusOK, gin.H{keyMessage: "Microblog deleted successfully"})
}

func (h *Handler) Like(c *gin.Context) {
	like, err := h.likes.Like(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, keyError, err, "Failed to like microblog")
		return
	}
	c.JSON(http.StatusCreated, like)
}

// Unlike clears every like of the post.
func (h *Handler) Unlike(c *gin.Context) {
	if err := h.likes.Unlike(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, keyError, err, "Failed to unlike microblog")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
