package domain

const (
	RoleAdmin      = "admin"
	RolePharmacist = "pharmacist"
	RoleStaff      = "staff"
)

type User struct {
	ID        int64  `json:"id" db:"id"`
	Username  string `json:"username" db:"username"`
	Email     string `json:"email" db:"email"`
	Password  string `json:"password,omitempty" db:"password"`
	Role      string `json:"role" db:"role"`
	CreatedAt string `json:"created_at,omitempty" db:"created_at"`
}

// ValidRole reports whether role is one of the staff roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RolePharmacist, RoleStaff:
		return true
	}
	return false
}
