package services

import (
	"context"
	"strings"
	"time"

	"microblog/internal/auth"
	"microblog/internal/database"
	"microblog/internal/logging"
	"microblog/internal/metrics"
	"microblog/internal/models"
	"microblog/internal/validation"
)

// NewImage is an image reference attached to a post on creation.
type NewImage struct {
	URL     string
	AltText string
}

// CreateMicroblogInput is what a client submits to publish a post.
type CreateMicroblogInput struct {
	Content string
	Images  []NewImage
	UserID  string
}

type Microblogs struct {
	db     *database.DB
	policy *auth.Policy
}

func NewMicroblogs(db *database.DB, policy *auth.Policy) *Microblogs {
	return &Microblogs{db: db, policy: policy}
}

// List returns all posts newest first, optionally filtered by a substring
// of their content.
func (s *Microblogs) List(ctx context.Context, search string) ([]*models.Microblog, error) {
	posts, err := s.db.ListMicroblogs(ctx, search)
	if err != nil {
		return nil, internal("Failed to fetch microblogs", err)
	}
	return posts, nil
}

// Create publishes a post with its images and returns it fully loaded.
func (s *Microblogs) Create(ctx context.Context, in CreateMicroblogInput) (*models.Microblog, error) {
	const failure = "Failed to create microblog"

	if validation.IsBlank(in.Content) && len(in.Images) == 0 {
		return nil, badRequest("Content or images are required")
	}
	images := make([]models.Image, 0, len(in.Images))
	for _, img := range in.Images {
		if validation.IsBlank(img.URL) {
			return nil, badRequest("Image url is required")
		}
		image := models.Image{URL: strings.TrimSpace(img.URL)}
		if alt := strings.TrimSpace(img.AltText); alt != "" {
			image.AltText = &alt
		}
		images = append(images, image)
	}

	author, err := requester(ctx, s.db, in.UserID, "User must be logged in to create microblog", failure)
	if err != nil {
		return nil, err
	}

	post := &models.Microblog{Content: strings.TrimSpace(in.Content), UserID: &author.ID, Images: images}
	if err := s.db.CreateMicroblog(ctx, post); err != nil {
		return nil, internal(failure, err)
	}
	metrics.PostsCreated.Inc()
	logging.Ctx(ctx).Info().Str("microblog_id", post.ID).Str("user_id", author.ID).Int("images", len(images)).Msg("microblog created")

	created, err := s.db.GetMicroblog(ctx, post.ID)
	if err != nil || created == nil {
		return nil, internal(failure, err)
	}
	return created, nil
}

// Update replaces the content of a post owned by userID (or any post, for
// an admin).
func (s *Microblogs) Update(ctx context.Context, id, content, userID string) (*models.Microblog, error) {
	const failure = "Failed to update microblog"

	if validation.IsBlank(content) {
		return nil, badRequest("Content is required")
	}
	content = strings.TrimSpace(content)
	if userID == "" {
		return nil, unauthorized("User must be logged in to edit microblog")
	}
	post, err := s.db.FindMicroblog(ctx, id)
	if err != nil {
		return nil, internal(failure, err)
	}
	if post == nil {
		return nil, notFound("Microblog not found")
	}
	u, err := requester(ctx, s.db, userID, "User must be logged in to edit microblog", failure)
	if err != nil {
		return nil, err
	}
	if err := authorize(s.policy, u, post.UserID, auth.ActionUpdate, "You can only edit your own microblogs", failure); err != nil {
		return nil, err
	}

	if err := s.db.UpdateMicroblogContent(ctx, id, content, time.Now()); err != nil {
		return nil, internal(failure, err)
	}
	updated, err := s.db.GetMicroblog(ctx, id)
	if err != nil {
		return nil, internal(failure, err)
	}
	if updated == nil {
		return nil, notFound("Microblog not found")
	}
	return updated, nil
}

// Delete removes a post together with its images, likes and comments.
func (s *Microblogs) Delete(ctx context.Context, id, userID string) error {
	const failure = "Failed to delete microblog"

	if userID == "" {
		return unauthorized("User must be logged in to delete microblog")
	}
	post, err := s.db.FindMicroblog(ctx, id)
	if err != nil {
		return internal(failure, err)
	}
	if post == nil {
		return notFound("Microblog not found")
	}
	u, err := requester(ctx, s.db, userID, "User must be logged in to delete microblog", failure)
	if err != nil {
		return err
	}
	if err := authorize(s.policy, u, post.UserID, auth.ActionDelete, "You can only delete your own microblogs", failure); err != nil {
		return err
	}

	if err := s.db.DeleteMicroblog(ctx, id); err != nil {
		return internal(failure, err)
	}
	logging.Ctx(ctx).Info().Str("microblog_id", id).Str("user_id", u.ID).Bool("admin", u.IsAdmin).Msg("microblog deleted")
	return nil
}
