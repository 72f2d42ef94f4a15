package users

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUserDuplicate  = errors.New("user already exists")
	ErrUserIDRequired = errors.New("user id is required")
)

// User mirrors an identity-provider user. ID is assigned upstream and is
// never generated here.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
