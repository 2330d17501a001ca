package services

import (
	"context"

	"microblog/internal/auth"
	"microblog/internal/database"
	"microblog/internal/models"
)

// requester resolves the acting user. A missing id is reported with
// noIdentity (401), an unknown one as 404 "User not found".
func requester(ctx context.Context, db *database.DB, userID, noIdentity, failure string) (*models.User, error) {
	if userID == "" {
		return nil, unauthorized(noIdentity)
	}
	u, err := db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, internal(failure, err)
	}
	if u == nil {
		return nil, notFound("User not found")
	}
	return u, nil
}

// authorize enforces the owner-or-admin rule on a resource owned by ownerID.
func authorize(policy *auth.Policy, u *models.User, ownerID *string, act auth.Action, denied, failure string) error {
	ok, err := policy.Allowed(u, ownerID, act)
	if err != nil {
		return internal(failure, err)
	}
	if !ok {
		return forbidden(denied)
	}
	return nil
}
