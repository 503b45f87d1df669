package domain

import (
	"fmt"
	"strings"

	"github.com/damoang/angple-cms/internal/common"
)

// Role ordered role hierarchy. Higher values include every lower role.
type Role int

const (
	RoleViewer Role = iota
	RoleSupportModerator
	RoleEditor
	RoleContentEditor
	RoleInstructor
	RolePublisher
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleViewer:           "viewer",
	RoleSupportModerator: "support_moderator",
	RoleEditor:           "editor",
	RoleContentEditor:    "content_editor",
	RoleInstructor:       "instructor",
	RolePublisher:        "publisher",
	RoleAdmin:            "admin",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole parses a role name (case-insensitive)
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	return RoleViewer, fmt.Errorf("%w: unknown role %q", common.ErrValidation, s)
}

// Actor already-authenticated identity supplied by the auth layer
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Anonymous unauthenticated viewer
var Anonymous = Actor{ID: "anonymous", Role: RoleViewer}

// Can reports whether the actor's role is at least min
func (a Actor) Can(min Role) bool {
	return a.Role >= min
}

// Require returns ErrForbidden when the actor is below min
func (a Actor) Require(min Role, action string) error {
	if a.Can(min) {
		return nil
	}
	return fmt.Errorf("%w: %s requires %s, actor %s is %s", common.ErrForbidden, action, min, a.ID, a.Role)
}
