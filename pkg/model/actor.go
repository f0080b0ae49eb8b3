package model

type Role string

const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleLecturer || r == RoleAdmin
}

// Actor is the authenticated principal behind a call.
type Actor struct {
	ID   string `json:"id" validate:"required"`
	Role Role   `json:"role" validate:"required,actor_role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) Owns(b *Booking) bool {
	return a.ID != "" && b != nil && b.RequesterID == a.ID
}
