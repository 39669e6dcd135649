package models

import "time"

// Staff roles. Admins manage the catalog, clerks move orders through fulfilment.
const (
	RoleAdmin = "admin"
	RoleClerk = "clerk"
)

// User is a staff account allowed to manage the catalog and fulfil orders.
// Shoppers are anonymous and identified only by their cart session.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username  string    `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password  string    `json:"password,omitempty" gorm:"type:varchar(255)" validate:"required,min=6"`
	Role      string    `json:"role" gorm:"type:varchar(16);not null;default:clerk" validate:"omitempty,oneof=admin clerk"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
