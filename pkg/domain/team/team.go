// Package team models project membership.
package team

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role defines the access level of a project member.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// MemberIDPrefix prefixes every generated member id.
const MemberIDPrefix = "member_"

// ValidRoles returns all valid role values.
func ValidRoles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleMember, RoleViewer}
}

// IsValid checks if the role is a recognized value.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// CanManageMembers returns true if the role allows membership changes.
func (r Role) CanManageMembers() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Member links a user to a project with a role.
type Member struct {
	ID          string    `json:"id"`
	ProjectPath string    `json:"projectPath"`
	UserID      string    `json:"userId"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// NewMember validates the input and stamps a fresh id and join time.
func NewMember(projectPath, userID string, role Role, now time.Time) (Member, error) {
	if strings.TrimSpace(projectPath) == "" {
		return Member{}, fmt.Errorf("project path cannot be empty")
	}
	if strings.TrimSpace(userID) == "" {
		return Member{}, fmt.Errorf("user id cannot be empty")
	}
	if role == "" {
		role = RoleMember
	}
	if !role.IsValid() {
		return Member{}, fmt.Errorf("invalid role: %s", role)
	}
	return Member{
		ID:          MemberIDPrefix + uuid.NewString(),
		ProjectPath: projectPath,
		UserID:      userID,
		Role:        role,
		JoinedAt:    now.UTC(),
	}, nil
}

// RemoveResult reports the outcome of a batch removal.
type RemoveResult struct {
	DeletedCount int      `json:"deletedCount"`
	NotFoundIDs  []string `json:"notFoundIds"`
}
