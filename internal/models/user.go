package models

import "time"

// User roles.
const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"
)

// Industry groups clients for benchmark lookups.
type Industry struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:255;not null" json:"name"`
}

// Client is the organisation a user belongs to.
type Client struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	IndustryID *uint     `json:"industry_id"`
	Industry   *Industry `json:"industry,omitempty"`
}

// User is a survey taker, a rated subject, or an administrator.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FullName  string    `gorm:"size:255;not null" json:"full_name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"size:32;not null;default:user" json:"role"`
	ClientID  *uint     `json:"client_id"`
	Client    *Client   `json:"client,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
