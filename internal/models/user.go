package models

import (
	"time"
)

// Role values accepted by the authorization gate.
const (
	RolePatient       = "patient"
	RoleHospitalAdmin = "hospital_admin"
	RoleAdmin         = "admin"
)

// User represents an authenticated account: a patient paying for a
// booking, a hospital operator, or a platform administrator.
type User struct {
	BaseModel
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `gorm:"uniqueIndex" json:"phone"`
	PasswordHash string     `json:"-"`
	Role         string     `gorm:"index;default:patient" json:"role"`
	Age          int        `json:"age"`
	IsVerified   bool       `json:"is_verified"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}
