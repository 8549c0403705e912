package service

import (
	"context"
	"time"

	"github.com/badoux/checkmail"
	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/internal/auth"
	"github.com/yakoovad/teamhub/internal/db"
	"github.com/yakoovad/teamhub/internal/event"
	"github.com/yakoovad/teamhub/internal/idgen"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/repository"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
)

const defaultRefreshTTL = 30 * 24 * time.Hour

// IdentityService owns users and team accesses.
type IdentityService struct {
	tx  db.Transactor
	bus *event.Bus

	users    repository.UserRepository
	accesses repository.TeamAccessRepository

	tokens     TokenService
	hasher     PasswordHasher
	ids        idgen.Generator
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIdentityService(tx db.Transactor, bus *event.Bus) *IdentityService {
	return &IdentityService{
		tx:         tx,
		bus:        bus,
		hasher:     auth.NewBcryptHasher(0),
		ids:        idgen.New(),
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
}

func (s *IdentityService) Register(ctx context.Context, email, password string) (*model.Session, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("registering user", zap.String("email", email))

	if err := checkmail.ValidateFormat(email); err != nil {
		l.Warn("invalid email", zap.String("email", email))
		return nil, NewError(ErrorCodeInvalidInput, "invalid email")
	}
	if err := auth.ValidatePassword(password); err != nil {
		l.Warn("password rejected by policy", zap.String("email", email))
		return nil, NewError(ErrorCodeInvalidInput, err.Error())
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		l.Error("failed to hash password", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to register user")
	}

	now := s.now()
	user := &repository.User{
		ID:               s.ids.NewID(),
		Username:         s.ids.NewUsername(),
		Email:            email,
		PasswordHash:     digest,
		RefreshToken:     s.ids.NewToken(),
		RefreshExpiresAt: now.Add(s.refreshTTL),
		TeamIDs:          []string{},
		CreatedAt:        now,
	}

	err = s.users.Create(ctx, user)
	if errors.Is(err, repository.ErrAlreadyExists) {
		l.Warn("user already exists", zap.String("email", email))
		return nil, NewError(ErrorCodeConflict, "user already exists")
	}
	if errors.Is(err, repository.ErrInvalid) {
		l.Warn("invalid user", zap.String("email", email), zap.Error(err))
		return nil, NewError(ErrorCodeInvalidInput, "invalid user")
	}
	if err != nil {
		l.Error("failed to create user", zap.String("email", email), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to register user")
	}

	l.Debug("user registered", zap.String("user_id", user.ID))

	return s.session(ctx, user, user.RefreshToken)
}

func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*model.Session, *Error) {
	l := logger.FromContext(ctx)

	user, svcErr := s.userByEmail(ctx, email)
	if svcErr != nil {
		return nil, svcErr
	}

	if !s.hasher.Compare(password, user.PasswordHash) {
		l.Warn("password mismatch", zap.String("user_id", user.ID))
		return nil, NewError(ErrorCodeUnauthorized, "invalid credentials")
	}

	return s.rotate(ctx, user)
}

func (s *IdentityService) RenewSession(ctx context.Context, email, refreshToken string) (*model.Session, *Error) {
	l := logger.FromContext(ctx)

	user, svcErr := s.userByEmail(ctx, email)
	if svcErr != nil {
		return nil, svcErr
	}

	if user.RefreshToken != refreshToken {
		l.Warn("refresh token mismatch", zap.String("user_id", user.ID))
		return nil, NewError(ErrorCodeForbidden, "invalid refresh token")
	}
	if user.RefreshExpiresAt.Before(s.now()) {
		l.Warn("refresh token expired", zap.String("user_id", user.ID))
		return nil, NewError(ErrorCodeForbidden, "refresh token expired")
	}

	return s.rotate(ctx, user)
}

func (s *IdentityService) VerifyToken(token string) (*auth.Claims, *Error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, NewError(ErrorCodeUnauthorized, "invalid token")
	}
	return claims, nil
}

func (s *IdentityService) GetUser(ctx context.Context, userID string) (*model.User, *Error) {
	user, err := s.users.Get(ctx, userID)
	return s.publicUser(ctx, user, err, zap.String("user_id", userID))
}

func (s *IdentityService) GetUserByUsername(ctx context.Context, username string) (*model.User, *Error) {
	user, err := s.users.GetByUsername(ctx, username)
	return s.publicUser(ctx, user, err, zap.String("username", username))
}

func (s *IdentityService) publicUser(ctx context.Context, user *repository.User, err error, key zap.Field) (*model.User, *Error) {
	l := logger.FromContext(ctx)

	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("user not found", key)
		return nil, NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		l.Error("failed to get user", key, zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get user")
	}

	return toUser(user), nil
}

func (s *IdentityService) userByEmail(ctx context.Context, email string) (*repository.User, *Error) {
	l := logger.FromContext(ctx)

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("user not found", zap.String("email", email))
		return nil, NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		l.Error("failed to get user", zap.String("email", email), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get user")
	}

	return user, nil
}

// rotate replaces the stored refresh record and issues a new pair.
func (s *IdentityService) rotate(ctx context.Context, user *repository.User) (*model.Session, *Error) {
	token := s.ids.NewToken()
	if err := s.users.UpdateRefreshToken(ctx, user.ID, token, s.now().Add(s.refreshTTL)); err != nil {
		logger.FromContext(ctx).Error("failed to rotate refresh token", zap.String("user_id", user.ID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to rotate session")
	}

	return s.session(ctx, user, token)
}

func (s *IdentityService) session(ctx context.Context, user *repository.User, refreshToken string) (*model.Session, *Error) {
	access, err := s.tokens.Issue(auth.Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
	})
	if err != nil {
		logger.FromContext(ctx).Error("failed to issue token", zap.String("user_id", user.ID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to issue token")
	}

	return &model.Session{
		Email:        user.Email,
		AccessToken:  access,
		RefreshToken: refreshToken,
	}, nil
}

// RegisterHandlers keeps users.team_ids in step with membership events.
func (s *IdentityService) RegisterHandlers() {
	event.Subscribe(s.bus, func(ctx context.Context, e event.CreateTeam) error {
		return s.users.AddTeam(ctx, e.UserID, e.TeamID)
	})
	event.Subscribe(s.bus, func(ctx context.Context, e event.AddUserToTeam) error {
		return s.users.AddTeam(ctx, e.UserID, e.TeamID)
	})
	event.Subscribe(s.bus, func(ctx context.Context, e event.RemoveUserFromTeam) error {
		return s.users.RemoveTeam(ctx, e.UserID, e.TeamID)
	})
}

func toUser(u *repository.User) *model.User {
	teams := u.TeamIDs
	if teams == nil {
		teams = []string{}
	}

	return &model.User{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Email:     u.Email,
		Teams:     teams,
		CreatedAt: u.CreatedAt,
	}
}

func (s *IdentityService) WithUserRepo(r repository.UserRepository) *IdentityService {
	s.users = r
	return s
}

func (s *IdentityService) WithAccessRepo(r repository.TeamAccessRepository) *IdentityService {
	s.accesses = r
	return s
}

func (s *IdentityService) WithTokens(t TokenService) *IdentityService {
	s.tokens = t
	return s
}

func (s *IdentityService) WithHasher(h PasswordHasher) *IdentityService {
	s.hasher = h
	return s
}

func (s *IdentityService) WithIDGenerator(g idgen.Generator) *IdentityService {
	s.ids = g
	return s
}

func (s *IdentityService) WithRefreshTTL(d time.Duration) *IdentityService {
	s.refreshTTL = d
	return s
}

func (s *IdentityService) WithClock(now func() time.Time) *IdentityService {
	s.now = now
	return s
}
