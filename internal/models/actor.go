package models

// Actor is the identity on whose behalf a core operation runs.
type Actor struct {
	UserID    string
	Role      UserRole
	StudentID string
	TeacherID string
}

// SystemActor is used by scheduled jobs.
var SystemActor = Actor{UserID: "system", Role: RoleSystem}

// Is reports whether the actor holds one of the roles. The system actor passes every check.
func (a Actor) Is(roles ...UserRole) bool {
	if a.Role == RoleSystem {
		return true
	}
	for _, role := range roles {
		if a.Role == role {
			return true
		}
	}
	return false
}

// IsStudent reports whether the actor is the given student.
func (a Actor) IsStudent(studentID string) bool {
	return a.Role == RoleStudent && a.StudentID != "" && a.StudentID == studentID
}
