package service

import (
	"context"

	"github.com/yakoovad/teamhub/internal/auth"
	"github.com/yakoovad/teamhub/internal/model"
)

// Collaborators a service calls synchronously. Cross-entity mutations go
// through the event bus instead.

type TokenService interface {
	Issue(claims auth.Claims) (string, error)
	Verify(token string) (*auth.Claims, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, digest string) bool
}

type AssetStorer interface {
	Store(ctx context.Context, data string) string
}

type UserLookup interface {
	GetUser(ctx context.Context, userID string) (*model.User, *Error)
}

type AccessDirectory interface {
	UserLookup
	GrantLeader(ctx context.Context, userID, teamID string) (*model.TeamAccess, *Error)
	ListAccessesForUser(ctx context.Context, userID string) ([]*model.TeamAccess, *Error)
	ListAccessesForTeam(ctx context.Context, teamID string) ([]*model.TeamAccess, *Error)
}

type ChatProvisioner interface {
	CreateChat(ctx context.Context, teamID string) (*model.TeamChat, *Error)
}

type ProjectLister interface {
	ListForTeam(ctx context.Context, teamID string) ([]*model.Project, *Error)
}

type TeamLookup interface {
	GetTeamSummary(ctx context.Context, teamID string) (*model.Team, *Error)
}
