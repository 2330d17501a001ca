package services

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"microblog/internal/auth"
	"microblog/internal/database"
	"microblog/internal/models"
)

type fixture struct {
	db         *database.DB
	accounts   *Accounts
	microblogs *Microblogs
	comments   *Comments
	likes      *Likes
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "services.db"))
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	policy, err := auth.NewPolicy()
	if err != nil {
		t.Fatalf("auth.NewPolicy() error = %v", err)
	}
	return &fixture{
		db:         db,
		accounts:   NewAccounts(db),
		microblogs: NewMicroblogs(db, policy),
		comments:   NewComments(db, policy),
		likes:      NewLikes(db),
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := f.accounts.Login(context.Background(), name, name+"@example.com")
	if err != nil {
		t.Fatalf("Login(%s) error = %v", name, err)
	}
	return u
}

func (f *fixture) admin(t *testing.T) *models.User {
	t.Helper()
	u, _, err := f.accounts.EnsureAdmin(context.Background(), "admin", "admin@example.com", "admin123")
	if err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}
	return u
}

func (f *fixture) post(t *testing.T, owner *models.User, content string) *models.Microblog {
	t.Helper()
	m, err := f.microblogs.Create(context.Background(), CreateMicroblogInput{Content: content, UserID: owner.ID})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return m
}

func assertError(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *services.Error", err)
	}
	if se.Kind != kind || se.Message != msg {
		t.Errorf("err = (%s, %q), want (%s, %q)", se.Kind, se.Message, kind, msg)
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Errorf("KindOf(foreign) = %s", got)
	}
	wrapped := errors.Join(errors.New("ctx"), notFound("x"))
	if got := KindOf(wrapped); got != KindNotFound {
		t.Errorf("KindOf(wrapped) = %s", got)
	}
}

func TestAdminLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.admin(t)

	_, err := f.accounts.AdminLogin(ctx, "", "x")
	assertError(t, err, KindBadRequest, "用户名和密码不能为空")

	_, err = f.accounts.AdminLogin(ctx, "nobody", "admin123")
	assertError(t, err, KindUnauthorized, "管理员用户不存在")

	_, err = f.accounts.AdminLogin(ctx, "admin", "wrong")
	assertError(t, err, KindUnauthorized, "密码错误")

	u, err := f.accounts.AdminLogin(ctx, "admin", "admin123")
	if err != nil || !u.IsAdmin {
		t.Fatalf("AdminLogin() = %+v, %v", u, err)
	}
}

func TestAdminLogin_PlainUserIsNotAdmin(t *testing.T) {
	f := newFixture(t)
	f.user(t, "bob")
	_, err := f.accounts.AdminLogin(context.Background(), "bob", "anything")
	assertError(t, err, KindUnauthorized, "管理员用户不存在")
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.accounts.Login(ctx, "alice", " ")
	assertError(t, err, KindBadRequest, "用户名和邮箱不能为空")

	first := f.user(t, "alice")
	if first.IsAdmin {
		t.Error("login created an admin")
	}

	// Matching on either field returns the existing user.
	again, err := f.accounts.Login(ctx, "someone", "alice@example.com")
	if err != nil || again.ID != first.ID {
		t.Errorf("Login by email = %+v, %v; want %s", again, err, first.ID)
	}
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	f := newFixture(t)
	first := f.admin(t)
	again, created, err := f.accounts.EnsureAdmin(context.Background(), "admin", "admin@example.com", "other")
	if err != nil || created || again.ID != first.ID {
		t.Errorf("second EnsureAdmin = %+v, %v, %v", again, created, err)
	}
}

func TestCreateMicroblog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	tests := []struct {
		name string
		in   CreateMicroblogInput
		kind Kind
		msg  string
	}{
		{"blank without images", CreateMicroblogInput{Content: "   ", UserID: alice.ID}, KindBadRequest, "Content or images are required"},
		{"tabs and newlines", CreateMicroblogInput{Content: "\t\n ", UserID: alice.ID}, KindBadRequest, "Content or images are required"},
		{"image without url", CreateMicroblogInput{Images: []NewImage{{URL: " "}}, UserID: alice.ID}, KindBadRequest, "Image url is required"},
		{"anonymous", CreateMicroblogInput{Content: "hi"}, KindUnauthorized, "User must be logged in to create microblog"},
		{"unknown user", CreateMicroblogInput{Content: "hi", UserID: "ghost"}, KindNotFound, "User not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.microblogs.Create(ctx, tt.in)
			assertError(t, err, tt.kind, tt.msg)
		})
	}

	m, err := f.microblogs.Create(ctx, CreateMicroblogInput{
		Content: "  hello  ",
		Images:  []NewImage{{URL: "/uploads/a.png", AltText: "a"}},
		UserID:  alice.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.Content != "hello" || m.User == nil || m.User.ID != alice.ID || len(m.Images) != 1 {
		t.Errorf("created = %+v", m)
	}

	imageOnly, err := f.microblogs.Create(ctx, CreateMicroblogInput{Images: []NewImage{{URL: "/uploads/b.png"}}, UserID: alice.ID})
	if err != nil || imageOnly.Content != "" {
		t.Errorf("image-only post = %+v, %v", imageOnly, err)
	}
}

func TestUpdateMicroblog_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	admin := f.admin(t)
	post := f.post(t, u1, "hello")

	_, err := f.microblogs.Update(ctx, post.ID, "", u1.ID)
	assertError(t, err, KindBadRequest, "Content is required")

	_, err = f.microblogs.Update(ctx, post.ID, "x", "")
	assertError(t, err, KindUnauthorized, "User must be logged in to edit microblog")

	_, err = f.microblogs.Update(ctx, "missing", "x", u1.ID)
	assertError(t, err, KindNotFound, "Microblog not found")

	_, err = f.microblogs.Update(ctx, post.ID, "x", "ghost")
	assertError(t, err, KindNotFound, "User not found")

	_, err = f.microblogs.Update(ctx, post.ID, "hijack", u2.ID)
	assertError(t, err, KindForbidden, "You can only edit your own microblogs")

	got, err := f.microblogs.Update(ctx, post.ID, " bye ", u1.ID)
	if err != nil || got.Content != "bye" {
		t.Fatalf("owner update = %+v, %v", got, err)
	}

	got, err = f.microblogs.Update(ctx, post.ID, "moderated", admin.ID)
	if err != nil || got.Content != "moderated" {
		t.Errorf("admin update = %+v, %v", got, err)
	}
}

func TestDeleteMicroblog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	post := f.post(t, u1, "hello")

	assertError(t, f.microblogs.Delete(ctx, post.ID, ""), KindUnauthorized, "User must be logged in to delete microblog")
	assertError(t, f.microblogs.Delete(ctx, post.ID, u2.ID), KindForbidden, "You can only delete your own microblogs")

	if err := f.microblogs.Delete(ctx, post.ID, u1.ID); err != nil {
		t.Fatal(err)
	}
	assertError(t, f.microblogs.Delete(ctx, post.ID, u1.ID), KindNotFound, "Microblog not found")
}

func TestCreateComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	post := f.post(t, alice, "hello")

	tests := []struct {
		name string
		in   CreateCommentInput
		kind Kind
		msg  string
	}{
		{"blank", CreateCommentInput{MicroblogID: post.ID, Content: " ", UserID: alice.ID}, KindBadRequest, "Content is required"},
		{"blank guest name", CreateCommentInput{MicroblogID: post.ID, Content: "hi", GuestName: "\t", GuestEmail: "a@b.co"}, KindBadRequest, "Either userId or guestName and guestEmail are required"},
		{"missing post", CreateCommentInput{MicroblogID: "nope", Content: "hi", UserID: alice.ID}, KindNotFound, "Microblog not found"},
		{"unknown user", CreateCommentInput{MicroblogID: post.ID, Content: "hi", UserID: "ghost"}, KindNotFound, "User not found"},
		{"bad guest email", CreateCommentInput{MicroblogID: post.ID, Content: "hi", GuestName: "Alice", GuestEmail: "not-an-email"}, KindBadRequest, "Invalid email format"},
		{"no identity", CreateCommentInput{MicroblogID: post.ID, Content: "hi", GuestName: "Alice"}, KindBadRequest, "Either userId or guestName and guestEmail are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.comments.Create(ctx, tt.in)
			assertError(t, err, tt.kind, tt.msg)
		})
	}

	guest, err := f.comments.Create(ctx, CreateCommentInput{MicroblogID: post.ID, Content: "nice", GuestName: "Alice", GuestEmail: "a@b.co"})
	if err != nil {
		t.Fatal(err)
	}
	if !guest.IsGuest() || *guest.GuestName != "Alice" || guest.User != nil {
		t.Errorf("guest comment = %+v", guest)
	}

	registered, err := f.comments.Create(ctx, CreateCommentInput{
		MicroblogID: post.ID, Content: "mine", UserID: alice.ID, GuestName: "ignored", GuestEmail: "x@y.z",
	})
	if err != nil {
		t.Fatal(err)
	}
	if registered.GuestName != nil || registered.User == nil || registered.User.Username != "alice" {
		t.Errorf("registered comment = %+v", registered)
	}

	list, err := f.comments.List(ctx, post.ID)
	if err != nil || len(list) != 2 || list[0].ID != registered.ID {
		t.Errorf("List() = %+v, %v", list, err)
	}
	_, err = f.comments.List(ctx, "nope")
	assertError(t, err, KindNotFound, "Microblog not found")
}

func TestCommentOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	admin := f.admin(t)
	post := f.post(t, u1, "hello")

	c, err := f.comments.Create(ctx, CreateCommentInput{MicroblogID: post.ID, Content: "first", UserID: u1.ID})
	if err != nil {
		t.Fatal(err)
	}
	guest, err := f.comments.Create(ctx, CreateCommentInput{MicroblogID: post.ID, Content: "g", GuestName: "G", GuestEmail: "g@g.io"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.comments.Update(ctx, c.ID, "x", "")
	assertError(t, err, KindUnauthorized, "User must be logged in to edit comment")
	_, err = f.comments.Update(ctx, c.ID, "x", "ghost")
	assertError(t, err, KindNotFound, "User not found")
	_, err = f.comments.Update(ctx, "nope", "x", u1.ID)
	assertError(t, err, KindNotFound, "Comment not found")
	_, err = f.comments.Update(ctx, c.ID, "x", u2.ID)
	assertError(t, err, KindForbidden, "You can only edit your own comments")

	// Guest comments belong to nobody, so only an admin can touch them.
	assertError(t, f.comments.Delete(ctx, guest.ID, u1.ID), KindForbidden, "You can only delete your own comments")
	if err := f.comments.Delete(ctx, guest.ID, admin.ID); err != nil {
		t.Errorf("admin delete of guest comment: %v", err)
	}

	updated, err := f.comments.Update(ctx, c.ID, " edited ", u1.ID)
	if err != nil || updated.Content != "edited" {
		t.Errorf("owner update = %+v, %v", updated, err)
	}
	if err := f.comments.Delete(ctx, c.ID, u1.ID); err != nil {
		t.Errorf("owner delete: %v", err)
	}
}

func TestLikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post := f.post(t, f.user(t, "alice"), "like me")

	_, err := f.likes.Like(ctx, "nope")
	assertError(t, err, KindNotFound, "Microblog not found")

	for i := 0; i < 2; i++ {
		if _, err := f.likes.Like(ctx, post.ID); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := f.db.CountLikes(ctx, post.ID); n != 2 {
		t.Errorf("likes = %d, want 2", n)
	}
	if err := f.likes.Unlike(ctx, post.ID); err != nil {
		t.Fatal(err)
	}
	if n, _ := f.db.CountLikes(ctx, post.ID); n != 0 {
		t.Errorf("likes after unlike = %d, want 0", n)
	}
	if err := f.likes.Unlike(ctx, "nope"); err != nil {
		t.Errorf("Unlike(unknown) = %v", err)
	}
}

func fileHeader(t *testing.T, name, contentType string, body []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(body)
	w.Close()

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["image"][0]
}

func TestUploadsSave(t *testing.T) {
	dir := t.TempDir()
	u := NewUploads(dir, "/uploads", 5<<20)

	_, err := u.Save(nil)
	assertError(t, err, KindBadRequest, "No file uploaded")

	_, err = u.Save(fileHeader(t, "notes.txt", "text/plain", []byte("hi")))
	assertError(t, err, KindBadRequest, "Only image files are allowed")

	small := NewUploads(dir, "/uploads", 1<<20)
	_, err = small.Save(fileHeader(t, "big.png", "image/png", bytes.Repeat([]byte{1}, 1<<20+1)))
	assertError(t, err, KindBadRequest, "File size must be less than 1MB")

	img, err := u.Save(fileHeader(t, "cat.PNG", "image/png", []byte("png-bytes")))
	if err != nil {
		t.Fatal(err)
	}
	if !regexp.MustCompile(`^/uploads/\d+-[0-9a-f]{12}\.PNG$`).MatchString(img.URL) {
		t.Errorf("url = %q", img.URL)
	}
	if img.Filename != "cat.PNG" || img.Size != 9 || img.Type != "image/png" {
		t.Errorf("uploaded = %+v", img)
	}
	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(img.URL, "/uploads/")))
	if err != nil || string(data) != "png-bytes" {
		t.Errorf("stored file = %q, %v", data, err)
	}
}

func TestExtensionOf(t *testing.T) {
	tests := map[string]string{
		"a.jpg":          ".jpg",
		"noext":          "",
		"../../etc.p/wd": "",
		"x.ph p":         "",
		"weird.tar.gz":   ".gz",
	}
	for in, want := range tests {
		if got := extensionOf(in); got != want {
			t.Errorf("extensionOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(12)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateToken(12)
	if len(a) != 12 || a == b {
		t.Errorf("tokens %q, %q", a, b)
	}
	if full, _ := GenerateToken(0); len(full) != 32 {
		t.Errorf("GenerateToken(0) length = %d", len(full))
	}
}
