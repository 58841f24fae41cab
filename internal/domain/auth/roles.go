package auth

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleTeacher = "teacher"
	RoleParent  = "parent"
	RoleStudent = "student"
)

type UserContext struct {
	UserID   string
	RoleID   string
	RoleName string
}
