package models

// Role упорядочен: member < admin < owner.
type Role int

const (
	RoleMember Role = iota
	RoleAdmin
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleAdmin:
		return "admin"
	case RoleOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// AtLeast сообщает, что роль не ниже other.
func (r Role) AtLeast(other Role) bool {
	return r >= other
}

// IsAdmin истинно и для владельца: владелец всегда администратор.
func (r Role) IsAdmin() bool {
	return r.AtLeast(RoleAdmin)
}

func (r Role) IsOwner() bool {
	return r == RoleOwner
}
