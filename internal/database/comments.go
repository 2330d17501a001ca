package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"microblog/internal/models"
)

const commentSelect = `SELECT c.id, c.content, c.microblog_id, c.user_id, c.guest_name, c.guest_email, c.created_at,
		u.id, u.username, u.is_admin
	FROM comments c
	LEFT JOIN users u ON u.id = c.user_id`

func scanComment(row interface{ Scan(...any) error }) (*models.Comment, error) {
	var (
		c                     models.Comment
		userID, gName, gEmail sql.NullString
		createdAt             int64
		authorID, authorName  sql.NullString
		authorAdmin           sql.NullBool
	)
	err := row.Scan(&c.ID, &c.Content, &c.MicroblogID, &userID, &gName, &gEmail, &createdAt,
		&authorID, &authorName, &authorAdmin)
	if err != nil {
		return nil, err
	}
	c.UserID = stringPtr(userID)
	c.GuestName = stringPtr(gName)
	c.GuestEmail = stringPtr(gEmail)
	c.CreatedAt = fromUnix(createdAt)
	if authorID.Valid {
		c.User = &models.Author{ID: authorID.String, Username: authorName.String, IsAdmin: authorAdmin.Bool}
	}
	return &c, nil
}

// CreateComment inserts c and fills in its id, timestamp and author.
func (d *DB) CreateComment(ctx context.Context, c *models.Comment) error {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO comments (id, content, microblog_id, user_id, guest_name, guest_email, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Content, c.MicroblogID, nullString(c.UserID), nullString(c.GuestName), nullString(c.GuestEmail), toUnix(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}
	if c.UserID != nil {
		u, err := d.GetUserByID(ctx, *c.UserID)
		if err != nil {
			return err
		}
		if u != nil {
			c.User = &models.Author{ID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}
		}
	}
	return nil
}

// GetComment returns the comment with its author, or nil.
func (d *DB) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	c, err := scanComment(d.conn.QueryRowContext(ctx, commentSelect+` WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying comment %s: %w", id, err)
	}
	return c, nil
}

// ListComments returns the comments of a post, newest first.
func (d *DB) ListComments(ctx context.Context, microblogID string) ([]models.Comment, error) {
	rows, err := d.conn.QueryContext(ctx,
		commentSelect+` WHERE c.microblog_id = ? ORDER BY c.created_at DESC, c.rowid DESC`, microblogID)
	if err != nil {
		return nil, fmt.Errorf("listing comments of %s: %w", microblogID, err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comments: %w", err)
	}
	return comments, nil
}

// UpdateCommentContent replaces the content of a comment.
func (d *DB) UpdateCommentContent(ctx context.Context, id, content string) error {
	if _, err := d.conn.ExecContext(ctx, `UPDATE comments SET content = ? WHERE id = ?`, content, id); err != nil {
		return fmt.Errorf("updating comment %s: %w", id, err)
	}
	return nil
}

// DeleteComment removes a comment.
func (d *DB) DeleteComment(ctx context.Context, id string) error {
	if _, err := d.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting comment %s: %w", id, err)
	}
	return nil
}
