package domain

import "time"

// Role controls what a principal may do on the board.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User is an identity from the externally managed directory. The board
// core reads users, it never writes them.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// CanManage reports whether the user may archive or hard-delete the
// given task. Only the creator or an admin qualifies.
func (u *User) CanManage(t *Task) bool {
	if u == nil || t == nil {
		return false
	}
	return u.Role == RoleAdmin || u.ID == t.CreatedBy
}
