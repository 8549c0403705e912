package model

import "time"

const DefaultMessagesLimit = 30

type TeamChat struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team"`
	CreatedAt time.Time `json:"createdAt"`
}

type TeamChatMessage struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Sender    *User     `json:"sender"`
	ChatID    string    `json:"teamChat"`
	CreatedAt time.Time `json:"createdAt"`
}
