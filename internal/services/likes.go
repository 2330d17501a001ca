package services

import (
	"context"

	"microblog/internal/database"
	"microblog/internal/metrics"
	"microblog/internal/models"
)

// Likes are anonymous and not deduplicated; Unlike clears them all.
type Likes struct {
	db *database.DB
}

func NewLikes(db *database.DB) *Likes {
	return &Likes{db: db}
}

func (s *Likes) Like(ctx context.Context, microblogID string) (*models.Like, error) {
	const failure = "Failed to like microblog"

	post, err := s.db.FindMicroblog(ctx, microblogID)
	if err != nil {
		return nil, internal(failure, err)
	}
	if post == nil {
		return nil, notFound("Microblog not found")
	}
	like, err := s.db.CreateLike(ctx, microblogID)
	if err != nil {
		return nil, internal(failure, err)
	}
	metrics.LikesTotal.Inc()
	return like, nil
}

// Unlike removes every like of the post. Unknown posts are not an error.
func (s *Likes) Unlike(ctx context.Context, microblogID string) error {
	if _, err := s.db.DeleteLikes(ctx, microblogID); err != nil {
		return internal("Failed to unlike microblog", err)
	}
	return nil
}
