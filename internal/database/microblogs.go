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

const microblogSelect = `SELECT m.id, m.content, m.user_id, m.created_at, m.updated_at,
		u.id, u.username, u.email, u.is_admin
	FROM microblogs m
	LEFT JOIN users u ON u.id = m.user_id`

func scanMicroblog(row interface{ Scan(...any) error }) (*models.Microblog, error) {
	var (
		m                  models.Microblog
		userID             sql.NullString
		createdAt, updated int64
		uID, uName, uEmail sql.NullString
		uAdmin             sql.NullBool
	)
	if err := row.Scan(&m.ID, &m.Content, &userID, &createdAt, &updated, &uID, &uName, &uEmail, &uAdmin); err != nil {
		return nil, err
	}
	m.UserID = stringPtr(userID)
	m.CreatedAt = fromUnix(createdAt)
	m.UpdatedAt = fromUnix(updated)
	if uID.Valid {
		m.User = &models.User{ID: uID.String, Username: uName.String, Email: uEmail.String, IsAdmin: uAdmin.Bool}
	}
	m.Images = []models.Image{}
	m.Likes = []models.LikeSummary{}
	m.Comments = []models.Comment{}
	return &m, nil
}

// CreateMicroblog inserts m and its images in one transaction. Ids and
// timestamps are assigned here.
func (d *DB) CreateMicroblog(ctx context.Context, m *models.Microblog) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	m.ID = uuid.NewString()
	m.CreatedAt, m.UpdatedAt = now, now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO microblogs (id, content, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Content, nullString(m.UserID), toUnix(now), toUnix(now))
	if err != nil {
		return fmt.Errorf("inserting microblog: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO images (id, url, alt_text, microblog_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing image insert: %w", err)
	}
	defer stmt.Close()

	for i := range m.Images {
		img := &m.Images[i]
		img.ID = uuid.NewString()
		img.MicroblogID = m.ID
		if _, err := stmt.ExecContext(ctx, img.ID, img.URL, nullString(img.AltText), m.ID); err != nil {
			return fmt.Errorf("inserting image: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing microblog: %w", err)
	}
	return nil
}

// FindMicroblog returns the post row (with author) but none of its children, or nil.
func (d *DB) FindMicroblog(ctx context.Context, id string) (*models.Microblog, error) {
	m, err := scanMicroblog(d.conn.QueryRowContext(ctx, microblogSelect+` WHERE m.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying microblog %s: %w", id, err)
	}
	return m, nil
}

// GetMicroblog returns the post with images, likes and comments, or nil.
func (d *DB) GetMicroblog(ctx context.Context, id string) (*models.Microblog, error) {
	m, err := d.FindMicroblog(ctx, id)
	if err != nil || m == nil {
		return m, err
	}
	if err := d.loadChildren(ctx, []*models.Microblog{m}, `SELECT id FROM microblogs WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMicroblogs returns every post, newest first. A non-empty search keeps
// only posts whose content contains it.
func (d *DB) ListMicroblogs(ctx context.Context, search string) ([]*models.Microblog, error) {
	query := microblogSelect
	// scope selects the same post ids as query; the child queries reuse it
	// so their size does not grow with the number of posts.
	scope := `SELECT id FROM microblogs`
	var args []any
	if search != "" {
		query += ` WHERE m.content LIKE ? ESCAPE '\'`
		scope += ` WHERE content LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(search)+"%")
	}
	query += ` ORDER BY m.created_at DESC, m.rowid DESC`

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing microblogs: %w", err)
	}
	defer rows.Close()

	posts := []*models.Microblog{}
	for rows.Next() {
		m, err := scanMicroblog(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning microblog: %w", err)
		}
		posts = append(posts, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating microblogs: %w", err)
	}
	rows.Close()

	if err := d.loadChildren(ctx, posts, scope, args...); err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdateMicroblogContent replaces the content and bumps updated_at.
func (d *DB) UpdateMicroblogContent(ctx context.Context, id, content string, at time.Time) error {
	_, err := d.conn.ExecContext(ctx,
		`UPDATE microblogs SET content = ?, updated_at = ? WHERE id = ?`, content, toUnix(at), id)
	if err != nil {
		return fmt.Errorf("updating microblog %s: %w", id, err)
	}
	return nil
}

// DeleteMicroblog removes the post; images, likes and comments go with it.
func (d *DB) DeleteMicroblog(ctx context.Context, id string) error {
	if _, err := d.conn.ExecContext(ctx, `DELETE FROM microblogs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting microblog %s: %w", id, err)
	}
	return nil
}

// loadChildren fills Images, Likes and Comments of posts with three queries.
// scope is a SELECT returning the ids of posts (with its args).
func (d *DB) loadChildren(ctx context.Context, posts []*models.Microblog, scope string, args ...any) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[string]*models.Microblog, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	in := `microblog_id IN (` + scope + `)`

	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, url, alt_text, microblog_id FROM images WHERE `+in+` ORDER BY rowid`, args...)
	if err != nil {
		return fmt.Errorf("loading images: %w", err)
	}
	for rows.Next() {
		var img models.Image
		var alt sql.NullString
		if err := rows.Scan(&img.ID, &img.URL, &alt, &img.MicroblogID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning image: %w", err)
		}
		img.AltText = stringPtr(alt)
		if p, ok := byID[img.MicroblogID]; ok {
			p.Images = append(p.Images, img)
		}
	}
	if err := closeRows(rows); err != nil {
		return fmt.Errorf("loading images: %w", err)
	}

	rows, err = d.conn.QueryContext(ctx,
		`SELECT id, microblog_id, created_at FROM likes WHERE `+in+` ORDER BY created_at, rowid`, args...)
	if err != nil {
		return fmt.Errorf("loading likes: %w", err)
	}
	for rows.Next() {
		l, err := scanLike(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scanning like: %w", err)
		}
		if p, ok := byID[l.MicroblogID]; ok {
			p.Likes = append(p.Likes, models.LikeSummary{ID: l.ID, CreatedAt: l.CreatedAt})
		}
	}
	if err := closeRows(rows); err != nil {
		return fmt.Errorf("loading likes: %w", err)
	}

	rows, err = d.conn.QueryContext(ctx,
		commentSelect+` WHERE c.`+in+` ORDER BY c.created_at DESC, c.rowid DESC`, args...)
	if err != nil {
		return fmt.Errorf("loading comments: %w", err)
	}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scanning comment: %w", err)
		}
		if p, ok := byID[c.MicroblogID]; ok {
			p.Comments = append(p.Comments, *c)
		}
	}
	if err := closeRows(rows); err != nil {
		return fmt.Errorf("loading comments: %w", err)
	}
	return nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}
