package model

import "time"

const (
	RoleAdmin   = "ADMIN"
	RoleStudent = "STUDENT"

	// Legacy non-admin role value left behind by an earlier generation of
	// the platform. Accepted on input, never written back.
	legacyRoleApprenant = "APPRENANT"
)

type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   string
	FirstName      *string
	LastName       *string
	Role           string
	Active         bool
	EnrollmentDate time.Time
	FirstLogin     *time.Time
	LastLogin      *time.Time
	LastActivity   *time.Time
	SessionCount   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type LessonProgress struct {
	ID          string
	UserID      string
	ModuleID    string
	LessonID    string
	Completed   bool
	CompletedAt *time.Time
	TimeSpent   *float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NormalizeRole maps stored role values onto the canonical set.
func NormalizeRole(role string) string {
	if role == legacyRoleApprenant {
		return RoleStudent
	}
	return role
}

func ValidRole(role string) bool {
	switch NormalizeRole(role) {
	case RoleAdmin, RoleStudent:
		return true
	default:
		return false
	}
}
