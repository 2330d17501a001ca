package auth

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"microblog/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Action is something a user does to an existing post or comment.
type Action string

const (
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

const (
	roleAdmin  = "admin"
	roleMember = "member"

	relationOwn     = "own"
	relationForeign = "foreign"
)

// Policy decides who may modify a post or comment: its author, or any admin.
type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

// NewPolicy builds the enforcer from the embedded model and policy.
func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := loadPolicy(e, embeddedPolicy); err != nil {
		return nil, err
	}
	return &Policy{enforcer: e}, nil
}

func loadPolicy(e *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := e.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := e.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Allowed reports whether requester may perform act on a resource owned by
// ownerID. A nil ownerID (anonymous post, guest comment) belongs to nobody.
func (p *Policy) Allowed(requester *models.User, ownerID *string, act Action) (bool, error) {
	if requester == nil {
		return false, nil
	}
	role := roleMember
	if requester.IsAdmin {
		role = roleAdmin
	}
	relation := relationForeign
	if ownerID != nil && *ownerID == requester.ID {
		relation = relationOwn
	}
	ok, err := p.enforcer.Enforce(role, relation, string(act))
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return ok, nil
}
