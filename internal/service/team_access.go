package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/internal/event"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/repository"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
)

// GrantLeader creates the ACTIVE LEADER access of a freshly created team.
func (s *IdentityService) GrantLeader(ctx context.Context, userID, teamID string) (*model.TeamAccess, *Error) {
	l := logger.FromContext(ctx)

	access := &repository.TeamAccess{
		ID:     s.ids.NewID(),
		UserID: userID,
		TeamID: teamID,
		Role:   model.TeamRoleLeader,
		Status: model.TeamAccessStatusActive,
	}

	err := s.accesses.Create(ctx, access)
	if errors.Is(err, repository.ErrAlreadyExists) {
		l.Warn("access already exists", zap.String("user_id", userID), zap.String("team_id", teamID))
		return nil, NewError(ErrorCodeConflict, "access already exists")
	}
	if err != nil {
		l.Error("failed to grant leader access", zap.String("user_id", userID), zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to grant leader access")
	}

	return s.withUser(ctx, access)
}

// InviteToTeam creates a PENDING access for username, or resets the existing
// one to PENDING with the new role. Resetting an ACTIVE member drops them from
// the derived membership lists until they accept again.
func (s *IdentityService) InviteToTeam(ctx context.Context, inviterID, username, teamID string, role model.TeamRole) (*model.TeamAccess, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("inviting user", zap.String("username", username), zap.String("team_id", teamID))

	if !role.Valid() || role == model.TeamRoleLeader {
		return nil, NewError(ErrorCodeInvalidInput, "invalid team role")
	}
	if svcErr := s.requireManager(ctx, inviterID, teamID); svcErr != nil {
		return nil, svcErr
	}

	target, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("invited user not found", zap.String("username", username))
		return nil, NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		l.Error("failed to get user", zap.String("username", username), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get user")
	}

	var (
		access    *repository.TeamAccess
		wasActive bool
	)
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.accesses.GetForUserInTeam(txCtx, target.ID, teamID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			l.Error("failed to get access", zap.String("user_id", target.ID), zap.Error(err))
			return NewError(ErrorCodeInternal, "failed to invite user")
		}
		if existing != nil && existing.Role == model.TeamRoleLeader {
			l.Warn("leader cannot be re-invited", zap.String("user_id", target.ID), zap.String("team_id", teamID))
			return NewError(ErrorCodeForbidden, "team leader cannot be re-invited")
		}
		wasActive = existing != nil && existing.Status == model.TeamAccessStatusActive

		access, err = s.accesses.Upsert(txCtx, &repository.TeamAccess{
			ID:     s.ids.NewID(),
			UserID: target.ID,
			TeamID: teamID,
			Role:   role,
			Status: model.TeamAccessStatusPending,
		})
		if err != nil {
			l.Error("failed to upsert access", zap.String("user_id", target.ID), zap.Error(err))
			return NewError(ErrorCodeInternal, "failed to invite user")
		}

		return nil
	})
	if svcErr := asError(err); svcErr != nil {
		return nil, svcErr
	}

	s.bus.Emit(ctx, event.CheckTeamExistence{TeamID: teamID})
	if wasActive {
		s.bus.Emit(ctx, event.RemoveUserFromTeam{UserID: target.ID, TeamID: teamID})
	}

	l.Debug("user invited", zap.String("access_id", access.ID))

	return &model.TeamAccess{
		ID:     access.ID,
		User:   toUser(target),
		TeamID: access.TeamID,
		Role:   access.Role,
		Status: access.Status,
	}, nil
}

// RespondToInvitation sets the caller's access in teamID ACTIVE or DECLINED.
func (s *IdentityService) RespondToInvitation(ctx context.Context, userID, teamID string, accept bool) (*model.TeamAccess, *Error) {
	l := logger.FromContext(ctx)

	current, svcErr := s.accessFor(ctx, userID, teamID)
	if svcErr != nil {
		return nil, svcErr
	}
	if !accept && current.Role == model.TeamRoleLeader {
		l.Warn("leader cannot decline own team", zap.String("user_id", userID), zap.String("team_id", teamID))
		return nil, NewError(ErrorCodeForbidden, "team leader cannot decline")
	}

	status := model.TeamAccessStatusDeclined
	if accept {
		status = model.TeamAccessStatusActive
	}

	access, err := s.accesses.SetStatus(ctx, userID, teamID, status)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "access not found")
	}
	if err != nil {
		l.Error("failed to set access status", zap.String("user_id", userID), zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to respond to invitation")
	}

	if accept {
		s.bus.Emit(ctx, event.AddUserToTeam{UserID: userID, TeamID: teamID})
	} else {
		s.bus.Emit(ctx, event.RemoveUserFromTeam{UserID: userID, TeamID: teamID})
	}

	return s.withUser(ctx, access)
}

// RevokeAccess deletes accessID. Only the team's leader may revoke, and the
// leader's own access is never revoked.
func (s *IdentityService) RevokeAccess(ctx context.Context, accessID, requesterID string) *Error {
	l := logger.FromContext(ctx)
	l.Debug("revoking access", zap.String("access_id", accessID), zap.String("requester_id", requesterID))

	var revoked *repository.TeamAccess
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		access, err := s.accesses.Get(txCtx, accessID)
		if errors.Is(err, repository.ErrNotFound) {
			l.Warn("access not found", zap.String("access_id", accessID))
			return NewError(ErrorCodeNotFound, "access not found")
		}
		if err != nil {
			l.Error("failed to get access", zap.String("access_id", accessID), zap.Error(err))
			return NewError(ErrorCodeInternal, "failed to revoke access")
		}

		requester, err := s.accesses.GetForUserInTeam(txCtx, requesterID, access.TeamID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			l.Error("failed to get requester access", zap.String("requester_id", requesterID), zap.Error(err))
			return NewError(ErrorCodeInternal, "failed to revoke access")
		}
		if !isActiveLeader(requester) {
			l.Warn("requester is not team leader", zap.String("requester_id", requesterID), zap.String("team_id", access.TeamID))
			return NewError(ErrorCodeForbidden, "only the team leader can revoke access")
		}
		if access.Role == model.TeamRoleLeader {
			return NewError(ErrorCodeForbidden, "team leader access cannot be revoked")
		}

		if err = s.accesses.Delete(txCtx, accessID); err != nil {
			l.Error("failed to delete access", zap.String("access_id", accessID), zap.Error(err))
			return NewError(ErrorCodeInternal, "failed to revoke access")
		}

		revoked = access
		return nil
	})
	if svcErr := asError(err); svcErr != nil {
		return svcErr
	}

	s.bus.Emit(ctx, event.RemoveUserFromTeam{UserID: revoked.UserID, TeamID: revoked.TeamID})

	l.Debug("access revoked", zap.String("access_id", accessID))

	return nil
}

// SetRole changes a member's role. LEADER is never granted this way.
func (s *IdentityService) SetRole(ctx context.Context, requesterID, teamID, userID string, role model.TeamRole) (*model.TeamAccess, *Error) {
	l := logger.FromContext(ctx)

	if !role.Valid() || role == model.TeamRoleLeader {
		return nil, NewError(ErrorCodeInvalidInput, "invalid team role")
	}
	if svcErr := s.requireManager(ctx, requesterID, teamID); svcErr != nil {
		return nil, svcErr
	}

	target, svcErr := s.accessFor(ctx, userID, teamID)
	if svcErr != nil {
		return nil, svcErr
	}
	if target.Role == model.TeamRoleLeader {
		return nil, NewError(ErrorCodeForbidden, "team leader role cannot be changed")
	}

	access, err := s.accesses.SetRole(ctx, userID, teamID, role)
	if err != nil {
		l.Error("failed to set role", zap.String("user_id", userID), zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to set role")
	}

	return s.withUser(ctx, access)
}

func (s *IdentityService) GetAccessForUserInTeam(ctx context.Context, userID, teamID string) (*model.TeamAccess, *Error) {
	access, svcErr := s.accessFor(ctx, userID, teamID)
	if svcErr != nil {
		return nil, svcErr
	}
	return s.withUser(ctx, access)
}

// ListAccessesForUser omits declined invitations.
func (s *IdentityService) ListAccessesForUser(ctx context.Context, userID string) ([]*model.TeamAccess, *Error) {
	accesses, err := s.accesses.ListForUser(ctx, userID, true)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list accesses", zap.String("user_id", userID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to list accesses")
	}
	return s.withUsers(ctx, accesses)
}

func (s *IdentityService) ListAccessesForTeam(ctx context.Context, teamID string) ([]*model.TeamAccess, *Error) {
	accesses, err := s.accesses.ListForTeam(ctx, teamID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list accesses", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to list accesses")
	}
	return s.withUsers(ctx, accesses)
}

// requireManager fails Forbidden unless userID is an active leader or moderator of teamID.
func (s *IdentityService) requireManager(ctx context.Context, userID, teamID string) *Error {
	l := logger.FromContext(ctx)

	access, err := s.accesses.GetForUserInTeam(ctx, userID, teamID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		l.Error("failed to get access", zap.String("user_id", userID), zap.String("team_id", teamID), zap.Error(err))
		return NewError(ErrorCodeInternal, "failed to check access")
	}

	if access == nil || access.Status != model.TeamAccessStatusActive ||
		(access.Role != model.TeamRoleLeader && access.Role != model.TeamRoleModerator) {
		l.Warn("user cannot manage team", zap.String("user_id", userID), zap.String("team_id", teamID))
		return NewError(ErrorCodeForbidden, "not allowed to manage team members")
	}

	return nil
}

func (s *IdentityService) accessFor(ctx context.Context, userID, teamID string) (*repository.TeamAccess, *Error) {
	l := logger.FromContext(ctx)

	access, err := s.accesses.GetForUserInTeam(ctx, userID, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("access not found", zap.String("user_id", userID), zap.String("team_id", teamID))
		return nil, NewError(ErrorCodeNotFound, "access not found")
	}
	if err != nil {
		l.Error("failed to get access", zap.String("user_id", userID), zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get access")
	}

	return access, nil
}

func (s *IdentityService) withUser(ctx context.Context, access *repository.TeamAccess) (*model.TeamAccess, *Error) {
	user, svcErr := s.GetUser(ctx, access.UserID)
	if svcErr != nil {
		return nil, svcErr
	}

	return &model.TeamAccess{
		ID:     access.ID,
		User:   user,
		TeamID: access.TeamID,
		Role:   access.Role,
		Status: access.Status,
	}, nil
}

func (s *IdentityService) withUsers(ctx context.Context, accesses []*repository.TeamAccess) ([]*model.TeamAccess, *Error) {
	out := make([]*model.TeamAccess, 0, len(accesses))
	for _, a := range accesses {
		access, svcErr := s.withUser(ctx, a)
		if svcErr != nil {
			return nil, svcErr
		}
		out = append(out, access)
	}
	return out, nil
}

func isActiveLeader(a *repository.TeamAccess) bool {
	return a != nil && a.Role == model.TeamRoleLeader && a.Status == model.TeamAccessStatusActive
}

// asError recovers a *Error returned through a transaction callback.
func asError(err error) *Error {
	if err == nil {
		return nil
	}

	var res *Error
	if errors.As(err, &res) {
		return res
	}

	return NewError(ErrorCodeInternal, "transaction failed")
}
