package rbac

import (
	"errors"
	"strings"
)

type Role string
type Action string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

const (
	ActionOwnData        Action = "own_data"
	ActionViewAllTickets Action = "view_all_tickets"
	ActionViewInternal   Action = "view_internal_messages"
	ActionManageUsers    Action = "manage_users"
	ActionViewActivity   Action = "view_activity"
)

var (
	ErrOwnerProtected = errors.New("the owner account can only be changed by its owner")
	ErrSelfDelete     = errors.New("you cannot delete your own account")
	ErrSelfDemotion   = errors.New("you cannot remove your own admin role")
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleUser:
		return action == ActionOwnData
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}

// Valid reports whether role names a known role exactly.
func Valid(role string) bool {
	return Role(role) == RoleUser || Role(role) == RoleAdmin
}

// Subject is the account an admin operation targets.
type Subject struct {
	ID      string
	Email   string
	Role    string
	IsOwner bool
}

// IsOwnerProtected reports whether the account is the flagged owner or uses
// the reserved owner address.
func IsOwnerProtected(target Subject, ownerEmail string) bool {
	if target.IsOwner {
		return true
	}
	ownerEmail = strings.ToLower(strings.TrimSpace(ownerEmail))
	return ownerEmail != "" && strings.ToLower(strings.TrimSpace(target.Email)) == ownerEmail
}

// CheckUpdate guards an admin edit of target by actorID. requestedRole is
// empty when the edit leaves the role alone.
func CheckUpdate(actorID string, target Subject, ownerEmail, requestedRole string) error {
	if IsOwnerProtected(target, ownerEmail) && actorID != target.ID {
		return ErrOwnerProtected
	}
	if actorID == target.ID && requestedRole != "" && Role(requestedRole) != RoleAdmin && Role(target.Role) == RoleAdmin {
		return ErrSelfDemotion
	}
	return nil
}

// ResolveRole returns the role to persist. Owner-protected accounts keep
// their current role no matter who asks.
func ResolveRole(target Subject, ownerEmail, requestedRole string) string {
	if requestedRole == "" || IsOwnerProtected(target, ownerEmail) {
		return target.Role
	}
	return string(Normalize(requestedRole))
}

func CheckDelete(actorID string, target Subject, ownerEmail string) error {
	if actorID == target.ID {
		return ErrSelfDelete
	}
	if IsOwnerProtected(target, ownerEmail) {
		return ErrOwnerProtected
	}
	return nil
}
