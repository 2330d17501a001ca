package services

import (
	"context"
	"errors"
	"strings"

	"microblog/internal/auth"
	"microblog/internal/database"
	"microblog/internal/logging"
	"microblog/internal/models"
	"microblog/internal/validation"
)

const loginFailed = "登录失败"

// Accounts handles admin login, guest-to-user login and user lookups.
type Accounts struct {
	db *database.DB
}

func NewAccounts(db *database.DB) *Accounts {
	return &Accounts{db: db}
}

// AdminLogin checks username/password against an admin account.
func (a *Accounts) AdminLogin(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, badRequest("用户名和密码不能为空")
	}

	user, err := a.db.GetAdminByUsername(ctx, username)
	if err != nil {
		return nil, internal(loginFailed, err)
	}
	if user == nil {
		logging.Ctx(ctx).Info().Str("username", username).Msg("admin login: unknown admin")
		return nil, unauthorized("管理员用户不存在")
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		logging.Ctx(ctx).Info().Str("username", username).Msg("admin login: wrong password")
		return nil, unauthorized("密码错误")
	}
	return user, nil
}

// Login returns the user matching username or email, creating a plain
// user when neither exists. There is no password check.
func (a *Accounts) Login(ctx context.Context, username, email string) (*models.User, error) {
	if validation.IsBlank(username) || validation.IsBlank(email) {
		return nil, badRequest("用户名和邮箱不能为空")
	}
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)

	user, err := a.db.FindUserByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, internal(loginFailed, err)
	}
	if user != nil {
		return user, nil
	}

	user = &models.User{Username: username, Email: email}
	err = a.db.CreateUser(ctx, user)
	if errors.Is(err, database.ErrDuplicate) {
		// Lost a race with a concurrent login for the same name.
		user, err = a.db.FindUserByUsernameOrEmail(ctx, username, email)
		if err == nil && user == nil {
			err = errors.New("user vanished after duplicate insert")
		}
	}
	if err != nil {
		return nil, internal(loginFailed, err)
	}
	logging.Ctx(ctx).Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user created")
	return user, nil
}

// Lookup returns the user with id, or nil when there is none.
func (a *Accounts) Lookup(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, nil
	}
	return a.db.GetUserByID(ctx, id)
}

// EnsureAdmin creates the admin account unless a user with its email
// already exists. The password is stored as a bcrypt hash.
func (a *Accounts) EnsureAdmin(ctx context.Context, username, email, password string) (*models.User, bool, error) {
	if username == "" || email == "" || password == "" {
		return nil, false, badRequest("admin username, email and password are required")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, false, err
	}
	return a.db.UpsertAdmin(ctx, &models.User{Username: username, Email: email, PasswordHash: hash})
}
