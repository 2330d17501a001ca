package models

import (
	"time"
)

// User is an account. Self-registered users have no password; the admin
// created by cmd/initadmin has IsAdmin set and a bcrypt hash.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // never sent to clients
	IsAdmin      bool   `json:"isAdmin"`
}

// Author is the public identity attached to comments.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Microblog is a post. UserID is nil for anonymous posts.
type Microblog struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	UserID    *string       `json:"userId"`
	User      *User         `json:"user,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Images    []Image       `json:"images"`
	Likes     []LikeSummary `json:"likes"`
	Comments  []Comment     `json:"comments"`
}

type Image struct {
	ID          string  `json:"id"`
	URL         string  `json:"url"`
	AltText     *string `json:"altText"`
	MicroblogID string  `json:"microblogId"`
}

// Like carries no actor: every click is a new row.
type Like struct {
	ID          string    `json:"id"`
	MicroblogID string    `json:"microblogId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LikeSummary is how a like appears inside a post: id and time only.
type LikeSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is written either by a registered user (UserID) or by a guest
// (GuestName + GuestEmail), never both.
type Comment struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	MicroblogID string    `json:"microblogId"`
	UserID      *string   `json:"userId"`
	User        *Author   `json:"user,omitempty"`
	GuestName   *string   `json:"guestName"`
	GuestEmail  *string   `json:"guestEmail"`
	CreatedAt   time.Time `json:"createdAt"`
}

// IsGuest reports whether the comment was written without an account.
func (c *Comment) IsGuest() bool {
	return c.UserID == nil
}

// UploadedImage is the result of POST /upload.
type UploadedImage struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}
