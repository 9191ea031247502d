package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Email        string         `json:"email" gorm:"unique;not null"`
	Name         string         `json:"name"`
	PhoneNumber  string         `json:"phone_number"`
	Role         string         `json:"role" gorm:"default:'customer'"` // admin, customer
	PasswordHash string         `json:"-"`
	IsActive     bool           `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at" gorm:"index"`
}

type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleCustomer UserRole = "customer"
)

func (u *User) IsAdmin() bool {
	return u.Role == string(RoleAdmin)
}
