package domain

import (
	"fmt"
	"strings"
)

// Role is a collaborator's permission level within a project.
type Role int

const (
	RoleGuest Role = iota + 1
	RoleMember
	RoleOwner
)

// ParseRole converts the persisted name of a role back into a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OWNER":
		return RoleOwner, nil
	case "MEMBER":
		return RoleMember, nil
	case "GUEST":
		return RoleGuest, nil
	default:
		return 0, fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "OWNER"
	case RoleMember:
		return "MEMBER"
	case RoleGuest:
		return "GUEST"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r >= RoleGuest && r <= RoleOwner
}

// AtLeast reports whether r ranks equal to or above other (OWNER > MEMBER > GUEST).
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && r >= other
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: invalid role %d", ErrValidation, int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
