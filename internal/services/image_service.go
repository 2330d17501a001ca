package services

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"microblog/internal/logging"
	"microblog/internal/metrics"
	"microblog/internal/models"
)

const uploadTokenLength = 12

var safeExtension = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// Uploads stores images posted to /upload in a public directory.
type Uploads struct {
	dir       string
	urlPrefix string
	maxSize   int64
	now       func() time.Time
}

func NewUploads(dir, urlPrefix string, maxSize int64) *Uploads {
	return &Uploads{
		dir:       dir,
		urlPrefix: urlPrefix,
		maxSize:   maxSize,
		now:       time.Now,
	}
}

// Dir is the directory files are written to.
func (u *Uploads) Dir() string {
	return u.dir
}

// URLPrefix is the public path the directory is served under.
func (u *Uploads) URLPrefix() string {
	return u.urlPrefix
}

// MaxSize is the largest accepted file in bytes.
func (u *Uploads) MaxSize() int64 {
	return u.maxSize
}

// TooLarge is the error reported for files over the size limit.
func (u *Uploads) TooLarge() error {
	return badRequest(fmt.Sprintf("File size must be less than %dMB", u.maxSize>>20))
}

// Save validates the declared type and size of fh and writes it under a
// fresh name "<unix millis>-<token><ext>".
func (u *Uploads) Save(fh *multipart.FileHeader) (*models.UploadedImage, error) {
	if fh == nil {
		metrics.RecordUpload("rejected")
		return nil, badRequest("No file uploaded")
	}
	// Only the type the client declared is checked; the bytes are not sniffed.
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		metrics.RecordUpload("rejected")
		return nil, badRequest("Only image files are allowed")
	}
	if fh.Size > u.maxSize {
		metrics.RecordUpload("rejected")
		return nil, u.TooLarge()
	}

	// Millisecond prefix keeps names sortable, the token keeps them unique.
	token, err := GenerateToken(uploadTokenLength)
	if err != nil {
		metrics.RecordUpload("failed")
		return nil, internal("Failed to upload file", err)
	}
	storedName := fmt.Sprintf("%d-%s%s", u.now().UnixMilli(), token, extensionOf(fh.Filename))

	if err := u.write(fh, storedName); err != nil {
		metrics.RecordUpload("failed")
		return nil, internal("Failed to upload file", err)
	}

	metrics.RecordUpload("stored")
	logging.Info().Str("file", storedName).Str("original", fh.Filename).Int64("size", fh.Size).Msg("image stored")
	return &models.UploadedImage{
		URL:      path.Join(u.urlPrefix, storedName),
		Filename: fh.Filename,
		Size:     fh.Size,
		Type:     contentType,
	}, nil
}

func (u *Uploads) write(fh *multipart.FileHeader, storedName string) error {
	// In memory or a temp file, depending on how large the part was.
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("opening uploaded file: %w", err)
	}
	defer src.Close()

	fullPath := filepath.Join(u.dir, storedName)
	// O_EXCL: never overwrite an existing upload.
	dst, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", fullPath, err)
	}

	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// Do not leave a half-written file in the public directory.
		cleanupFile(fullPath)
		return fmt.Errorf("writing %s: %w", fullPath, err)
	}
	return nil
}

// extensionOf keeps the original extension when it is plain alphanumerics.
func extensionOf(name string) string {
	ext := filepath.Ext(filepath.Base(name))
	if !safeExtension.MatchString(ext) {
		return ""
	}
	return ext
}

func cleanupFile(fullPath string) {
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn().Err(err).Str("path", fullPath).Msg("could not remove partial upload")
	}
}
