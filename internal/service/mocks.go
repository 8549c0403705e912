package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/yakoovad/teamhub/internal/auth"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/repository"
)

type MockTransactor struct {
	mock.Mock
}

type mockTxKey struct{}

// WithinTransaction marks the callback context so tests can match writes made
// inside the transaction.
func (m *MockTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(context.WithValue(ctx, mockTxKey{}, m))
}

// inTx matches a context handed out by MockTransactor.
var inTx = mock.MatchedBy(func(ctx context.Context) bool {
	return ctx.Value(mockTxKey{}) != nil
})

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *repository.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Get(ctx context.Context, userID string) (*repository.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

func (m *MockUserRepository) UpdateRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, token, expiresAt)
	return args.Error(0)
}

func (m *MockUserRepository) AddTeam(ctx context.Context, userID, teamID string) error {
	args := m.Called(ctx, userID, teamID)
	return args.Error(0)
}

func (m *MockUserRepository) RemoveTeam(ctx context.Context, userID, teamID string) error {
	args := m.Called(ctx, userID, teamID)
	return args.Error(0)
}

type MockTeamRepository struct {
	mock.Mock
}

func (m *MockTeamRepository) Create(ctx context.Context, team *repository.Team) error {
	args := m.Called(ctx, team)
	return args.Error(0)
}

func (m *MockTeamRepository) Get(ctx context.Context, teamID string) (*repository.Team, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) GetMany(ctx context.Context, teamIDs []string) ([]*repository.Team, error) {
	args := m.Called(ctx, teamIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) ListPublicActive(ctx context.Context, offset, limit int) ([]*repository.Team, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*repository.Team), args.Int(1), args.Error(2)
}

func (m *MockTeamRepository) SetChat(ctx context.Context, teamID, chatID string) error {
	args := m.Called(ctx, teamID, chatID)
	return args.Error(0)
}

func (m *MockTeamRepository) AddProject(ctx context.Context, teamID, projectID string) error {
	args := m.Called(ctx, teamID, projectID)
	return args.Error(0)
}

func (m *MockTeamRepository) AddMember(ctx context.Context, teamID, userID string) error {
	args := m.Called(ctx, teamID, userID)
	return args.Error(0)
}

func (m *MockTeamRepository) RemoveMember(ctx context.Context, teamID, userID string) error {
	args := m.Called(ctx, teamID, userID)
	return args.Error(0)
}

type MockTeamAccessRepository struct {
	mock.Mock
}

func (m *MockTeamAccessRepository) Create(ctx context.Context, access *repository.TeamAccess) error {
	args := m.Called(ctx, access)
	return args.Error(0)
}

func (m *MockTeamAccessRepository) Get(ctx context.Context, accessID string) (*repository.TeamAccess, error) {
	args := m.Called(ctx, accessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.TeamAccess), args.Error(1)
}

func (m *MockTeamAccessRepository) GetForUserInTeam(ctx context.Context, userID, teamID string) (*repository.TeamAccess, error) {
	args := m.Called(ctx, userID, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.TeamAccess), args.Error(1)
}

func (m *MockTeamAccessRepository) Upsert(ctx context.Context, access *repository.TeamAccess) (*repository.TeamAccess, error) {
	args := m.Called(ctx, access)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.TeamAccess), args.Error(1)
}

func (m *MockTeamAccessRepository) SetStatus(ctx context.Context, userID, teamID string, status model.TeamAccessStatus) (*repository.TeamAccess, error) {
	args := m.Called(ctx, userID, teamID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.TeamAccess), args.Error(1)
}

func (m *MockTeamAccessRepository) SetRole(ctx context.Context, userID, teamID string, role model.TeamRole) (*repository.TeamAccess, error) {
	args := m.Called(ctx, userID, teamID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.TeamAccess), args.Error(1)
}

func (m *MockTeamAccessRepository) Delete(ctx context.Context, accessID string) error {
	args := m.Called(ctx, accessID)
	return args.Error(0)
}

func (m *MockTeamAccessRepository) ListForUser(ctx context.Context, userID string, excludeDeclined bool) ([]*repository.TeamAccess, error) {
	args := m.Called(ctx, userID, excludeDeclined)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.TeamAccess), args.Error(1)
}

func (m *MockTeamAccessRepository) ListForTeam(ctx context.Context, teamID string) ([]*repository.TeamAccess, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.TeamAccess), args.Error(1)
}

type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) Create(ctx context.Context, project *repository.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockProjectRepository) Get(ctx context.Context, projectID string) (*repository.Project, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Project), args.Error(1)
}

func (m *MockProjectRepository) Patch(ctx context.Context, patch *repository.ProjectPatch) (*repository.Project, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Project), args.Error(1)
}

func (m *MockProjectRepository) ListForTeam(ctx context.Context, teamID string) ([]*repository.Project, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Project), args.Error(1)
}

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) CreateChat(ctx context.Context, chat *repository.TeamChat) error {
	args := m.Called(ctx, chat)
	return args.Error(0)
}

func (m *MockChatRepository) GetChat(ctx context.Context, chatID string) (*repository.TeamChat, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.TeamChat), args.Error(1)
}

func (m *MockChatRepository) GetChatForTeam(ctx context.Context, teamID string) (*repository.TeamChat, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.TeamChat), args.Error(1)
}

func (m *MockChatRepository) CreateMessage(ctx context.Context, message *repository.TeamChatMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockChatRepository) AppendMessage(ctx context.Context, chatID, messageID string) error {
	args := m.Called(ctx, chatID, messageID)
	return args.Error(0)
}

func (m *MockChatRepository) ListMessages(ctx context.Context, chatID, before string, limit int) ([]*repository.TeamChatMessage, error) {
	args := m.Called(ctx, chatID, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.TeamChatMessage), args.Error(1)
}

type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(claims auth.Claims) (string, error) {
	args := m.Called(claims)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Verify(token string) (*auth.Claims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

type MockAccessDirectory struct {
	mock.Mock
}

func (m *MockAccessDirectory) GetUser(ctx context.Context, userID string) (*model.User, *Error) {
	args := m.Called(ctx, userID)
	return nilable[*model.User](args.Get(0)), nilable[*Error](args.Get(1))
}

func (m *MockAccessDirectory) GrantLeader(ctx context.Context, userID, teamID string) (*model.TeamAccess, *Error) {
	args := m.Called(ctx, userID, teamID)
	return nilable[*model.TeamAccess](args.Get(0)), nilable[*Error](args.Get(1))
}

func (m *MockAccessDirectory) ListAccessesForUser(ctx context.Context, userID string) ([]*model.TeamAccess, *Error) {
	args := m.Called(ctx, userID)
	return nilable[[]*model.TeamAccess](args.Get(0)), nilable[*Error](args.Get(1))
}

func (m *MockAccessDirectory) ListAccessesForTeam(ctx context.Context, teamID string) ([]*model.TeamAccess, *Error) {
	args := m.Called(ctx, teamID)
	return nilable[[]*model.TeamAccess](args.Get(0)), nilable[*Error](args.Get(1))
}

type MockChatProvisioner struct {
	mock.Mock
}

func (m *MockChatProvisioner) CreateChat(ctx context.Context, teamID string) (*model.TeamChat, *Error) {
	args := m.Called(ctx, teamID)
	return nilable[*model.TeamChat](args.Get(0)), nilable[*Error](args.Get(1))
}

type MockProjectLister struct {
	mock.Mock
}

func (m *MockProjectLister) ListForTeam(ctx context.Context, teamID string) ([]*model.Project, *Error) {
	args := m.Called(ctx, teamID)
	return nilable[[]*model.Project](args.Get(0)), nilable[*Error](args.Get(1))
}

type MockTeamLookup struct {
	mock.Mock
}

func (m *MockTeamLookup) GetTeamSummary(ctx context.Context, teamID string) (*model.Team, *Error) {
	args := m.Called(ctx, teamID)
	return nilable[*model.Team](args.Get(0)), nilable[*Error](args.Get(1))
}

// nilable converts a mock return value, treating an untyped nil as the zero value.
func nilable[T any](v any) T {
	var zero T
	if v == nil {
		return zero
	}
	return v.(T)
}
