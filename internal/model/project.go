package model

import "time"

type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	TeamID      string    `json:"team"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ProjectUpdate struct {
	Title       *string
	Description *string
}
