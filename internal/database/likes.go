package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"microblog/internal/models"
)

func scanLike(row interface{ Scan(...any) error }) (*models.Like, error) {
	var l models.Like
	var createdAt int64
	if err := row.Scan(&l.ID, &l.MicroblogID, &createdAt); err != nil {
		return nil, err
	}
	l.CreatedAt = fromUnix(createdAt)
	return &l, nil
}

// CreateLike adds one anonymous like to a post.
func (d *DB) CreateLike(ctx context.Context, microblogID string) (*models.Like, error) {
	l := &models.Like{
		ID:          uuid.NewString(),
		MicroblogID: microblogID,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO likes (id, microblog_id, created_at) VALUES (?, ?, ?)`,
		l.ID, l.MicroblogID, toUnix(l.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("inserting like: %w", err)
	}
	return l, nil
}

// DeleteLikes removes every like of a post and reports how many went.
func (d *DB) DeleteLikes(ctx context.Context, microblogID string) (int64, error) {
	res, err := d.conn.ExecContext(ctx, `DELETE FROM likes WHERE microblog_id = ?`, microblogID)
	if err != nil {
		return 0, fmt.Errorf("deleting likes of %s: %w", microblogID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted likes: %w", err)
	}
	return n, nil
}

// CountLikes returns the number of likes of a post.
func (d *DB) CountLikes(ctx context.Context, microblogID string) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM likes WHERE microblog_id = ?`, microblogID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting likes of %s: %w", microblogID, err)
	}
	return n, nil
}
