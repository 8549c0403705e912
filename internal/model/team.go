package model

import "time"

type TeamStatus string

const (
	TeamStatusActive    TeamStatus = "active"
	TeamStatusInactive  TeamStatus = "inactive"
	TeamStatusDisbanded TeamStatus = "disbanded"
	TeamStatusFrozen    TeamStatus = "frozen"
	TeamStatusArchived  TeamStatus = "archived"
)

// Team is the summary shape: leader and projects resolved.
type Team struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Avatar      string     `json:"avatar,omitempty"`
	Banner      string     `json:"banner,omitempty"`
	Leader      *User      `json:"leader"`
	Status      TeamStatus `json:"status"`
	IsPublic    bool       `json:"isPublic"`
	ChatID      string     `json:"teamChat,omitempty"`
	Projects    []*Project `json:"projects"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// TeamWithMembers adds the active access holders to the summary.
type TeamWithMembers struct {
	*Team
	Members []*User `json:"members"`
}

type CreateTeam struct {
	LeaderID    string
	Name        string
	Description string
	Avatar      string
	Banner      string
	IsPublic    *bool
}

type TeamPage struct {
	Items      []*Team `json:"items"`
	TotalCount int     `json:"totalCount"`
}
