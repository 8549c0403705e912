package event

type Name string

const (
	NameCreateTeam         Name = "CREATE_TEAM"
	NameAddUserToTeam      Name = "ADD_USER_TO_TEAM"
	NameRemoveUserFromTeam Name = "REMOVE_USER_FROM_TEAM"
	NameCreateProject      Name = "CREATE_PROJECT"
	NameCheckTeamExistence Name = "CHECK_TEAM_EXISTENCE"
)

// Event is an immutable fact published after a state change.
type Event interface {
	EventName() Name
}

// CreateTeam is published once the team row exists.
type CreateTeam struct {
	UserID string
	TeamID string
}

func (CreateTeam) EventName() Name { return NameCreateTeam }

// AddUserToTeam is published when a user becomes an active member.
type AddUserToTeam struct {
	UserID string
	TeamID string
}

func (AddUserToTeam) EventName() Name { return NameAddUserToTeam }

// RemoveUserFromTeam is published when an access is revoked or declined.
type RemoveUserFromTeam struct {
	UserID string
	TeamID string
}

func (RemoveUserFromTeam) EventName() Name { return NameRemoveUserFromTeam }

type CreateProject struct {
	ProjectID string
	TeamID    string
}

func (CreateProject) EventName() Name { return NameCreateProject }

// CheckTeamExistence carries no side effect; its handler only reports a missing team.
type CheckTeamExistence struct {
	TeamID string
}

func (CheckTeamExistence) EventName() Name { return NameCheckTeamExistence }
