package model

import "time"

// User is the public profile; credentials never leave the identity service.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Teams     []string  `json:"teams"` // teams with an ACTIVE access
	CreatedAt time.Time `json:"createdAt"`
}

// Session is returned by register, login and refresh.
type Session struct {
	Email        string `json:"email"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
