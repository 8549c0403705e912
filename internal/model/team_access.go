package model

type TeamRole string

const (
	TeamRoleLeader      TeamRole = "leader"
	TeamRoleModerator   TeamRole = "moderator"
	TeamRoleParticipant TeamRole = "participant"
)

func (r TeamRole) Valid() bool {
	switch r {
	case TeamRoleLeader, TeamRoleModerator, TeamRoleParticipant:
		return true
	}
	return false
}

type TeamAccessStatus string

const (
	TeamAccessStatusPending  TeamAccessStatus = "pending"
	TeamAccessStatusDeclined TeamAccessStatus = "declined"
	TeamAccessStatusActive   TeamAccessStatus = "active"
	TeamAccessStatusInactive TeamAccessStatus = "inactive"
)

type TeamAccess struct {
	ID     string           `json:"id"`
	User   *User            `json:"user"`
	TeamID string           `json:"teamId"`
	Team   *Team            `json:"team,omitempty"`
	Role   TeamRole         `json:"teamRole"`
	Status TeamAccessStatus `json:"status"`
}
