package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"microblog/internal/logging"
)

// multipartOverhead is the slack allowed on top of the file size for the
// multipart envelope.
const multipartOverhead = 1 << 20

func (h *Handler) Upload(c *gin.Context) {
	// Cap the whole body so an oversized request fails while parsing
	// instead of being buffered to disk first.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploads.MaxSize()+multipartOverhead)

	// The file travels in the "image" field of the multipart form.
	fh, err := c.FormFile("image")
	if err != nil {
		// The body cap tripped: the file is certainly over the limit.
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, keyError, h.uploads.TooLarge(), "")
			return
		}
		// Missing field, not multipart at all, or a broken form.
		if !errors.Is(err, http.ErrMissingFile) {
			logging.Ctx(c.Request.Context()).Debug().Err(err).Msg("upload: unreadable multipart form")
		}
		c.JSON(http.StatusBadRequest, gin.H{keyError: "No file uploaded"})
		return
	}

	// Type and size checks, then the write under a fresh name.
	img, err := h.uploads.Save(fh)
	if err != nil {
		respondError(c, keyError, err, "Failed to upload file")
		return
	}
	c.JSON(http.StatusOK, img)
}
