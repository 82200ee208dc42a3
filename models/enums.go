package models

// Role is the closed set of personas a user can have.
type Role string

const (
	RoleHeadmaster Role = "headmaster"
	RoleTeacher    Role = "teacher"
	RoleStudent    Role = "student"
)

// Roles lists every valid role.
var Roles = []Role{RoleHeadmaster, RoleTeacher, RoleStudent}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleHeadmaster, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// UserStatus is the account status.
type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
)

func (s UserStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// SubmissionStatus tracks an assignment through submit and grading.
type SubmissionStatus string

const (
	SubmissionNotDone   SubmissionStatus = "not_done"
	SubmissionDone      SubmissionStatus = "done"
	SubmissionCompleted SubmissionStatus = "completed"
)
