package services

import (
	"context"
	"strings"

	"microblog/internal/auth"
	"microblog/internal/database"
	"microblog/internal/logging"
	"microblog/internal/metrics"
	"microblog/internal/models"
	"microblog/internal/validation"
)

// CreateCommentInput carries either a UserID or a guest name and e-mail.
// When UserID is set the guest fields are ignored.
type CreateCommentInput struct {
	MicroblogID string
	Content     string
	UserID      string
	GuestName   string
	GuestEmail  string
}

type Comments struct {
	db     *database.DB
	policy *auth.Policy
}

func NewComments(db *database.DB, policy *auth.Policy) *Comments {
	return &Comments{db: db, policy: policy}
}

func (s *Comments) List(ctx context.Context, microblogID string) ([]models.Comment, error) {
	const failure = "Failed to fetch comments"

	post, err := s.db.FindMicroblog(ctx, microblogID)
	if err != nil {
		return nil, internal(failure, err)
	}
	if post == nil {
		return nil, notFound("Microblog not found")
	}
	comments, err := s.db.ListComments(ctx, microblogID)
	if err != nil {
		return nil, internal(failure, err)
	}
	return comments, nil
}

func (s *Comments) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	const failure = "Failed to create comment"

	if validation.IsBlank(in.Content) {
		return nil, badRequest("Content is required")
	}
	post, err := s.db.FindMicroblog(ctx, in.MicroblogID)
	if err != nil {
		return nil, internal(failure, err)
	}
	if post == nil {
		return nil, notFound("Microblog not found")
	}

	c := &models.Comment{Content: strings.TrimSpace(in.Content), MicroblogID: post.ID}
	guestName, guestEmail := strings.TrimSpace(in.GuestName), strings.TrimSpace(in.GuestEmail)
	switch {
	case in.UserID != "":
		u, err := s.db.GetUserByID(ctx, in.UserID)
		if err != nil {
			return nil, internal(failure, err)
		}
		if u == nil {
			return nil, notFound("User not found")
		}
		c.UserID = &u.ID
	case !validation.IsBlank(guestName) && !validation.IsBlank(guestEmail):
		if !validation.IsGuestEmail(guestEmail) {
			return nil, badRequest("Invalid email format")
		}
		c.GuestName, c.GuestEmail = &guestName, &guestEmail
	default:
		return nil, badRequest("Either userId or guestName and guestEmail are required")
	}

	if err := s.db.CreateComment(ctx, c); err != nil {
		return nil, internal(failure, err)
	}
	metrics.RecordComment(c.IsGuest())
	logging.Ctx(ctx).Debug().Str("comment_id", c.ID).Str("microblog_id", c.MicroblogID).Bool("guest", c.IsGuest()).Msg("comment created")
	return c, nil
}

func (s *Comments) Update(ctx context.Context, id, content, userID string) (*models.Comment, error) {
	const failure = "Failed to update comment"

	if validation.IsBlank(content) {
		return nil, badRequest("Content is required")
	}
	content = strings.TrimSpace(content)
	c, u, err := s.owned(ctx, id, userID, "User must be logged in to edit comment", failure)
	if err != nil {
		return nil, err
	}
	if err := authorize(s.policy, u, c.UserID, auth.ActionUpdate, "You can only edit your own comments", failure); err != nil {
		return nil, err
	}

	if err := s.db.UpdateCommentContent(ctx, id, content); err != nil {
		return nil, internal(failure, err)
	}
	c.Content = content
	return c, nil
}

func (s *Comments) Delete(ctx context.Context, id, userID string) error {
	const failure = "Failed to delete comment"

	c, u, err := s.owned(ctx, id, userID, "User must be logged in to delete comment", failure)
	if err != nil {
		return err
	}
	if err := authorize(s.policy, u, c.UserID, auth.ActionDelete, "You can only delete your own comments", failure); err != nil {
		return err
	}
	if err := s.db.DeleteComment(ctx, id); err != nil {
		return internal(failure, err)
	}
	logging.Ctx(ctx).Info().Str("comment_id", id).Str("user_id", u.ID).Bool("admin", u.IsAdmin).Msg("comment deleted")
	return nil
}

// owned loads the requesting user and then the comment, in that order.
func (s *Comments) owned(ctx context.Context, id, userID, noIdentity, failure string) (*models.Comment, *models.User, error) {
	u, err := requester(ctx, s.db, userID, noIdentity, failure)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.db.GetComment(ctx, id)
	if err != nil {
		return nil, nil, internal(failure, err)
	}
	if c == nil {
		return nil, nil, notFound("Comment not found")
	}
	return c, u, nil
}
