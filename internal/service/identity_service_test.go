package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/teamhub/internal/auth"
	"github.com/yakoovad/teamhub/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func newMockedIdentity(ur *MockUserRepository, ts *MockTokenService, clock *testClock) *IdentityService {
	return NewIdentityService(new(MockTransactor), newTestBus()).
		WithUserRepo(ur).
		WithTokens(ts).
		WithHasher(auth.NewBcryptHasher(bcrypt.MinCost)).
		WithIDGenerator(&sequenceIDs{}).
		WithRefreshTTL(time.Hour).
		WithClock(clock.Now)
}

func TestIdentityService_Register(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		password   string
		setupMocks func(*MockUserRepository, *MockTokenService)
		errorCode  ErrorCode
	}{
		{
			name:     "success",
			email:    "alice@example.com",
			password: "Ab1!Abcd",
			setupMocks: func(ur *MockUserRepository, ts *MockTokenService) {
				ur.On("Create", mock.Anything, mock.MatchedBy(func(u *repository.User) bool {
					return u.Email == "alice@example.com" &&
						u.Username == "user_0002" &&
						u.RefreshToken == "token-0003" &&
						u.PasswordHash != "Ab1!Abcd"
				})).Return(nil)
				ts.On("Issue", mock.MatchedBy(func(c auth.Claims) bool {
					return c.UserID == "id-0001" && c.Email == "alice@example.com"
				})).Return("access", nil)
			},
		},
		{
			name:       "invalid email",
			email:      "alice",
			password:   "Ab1!Abcd",
			setupMocks: func(*MockUserRepository, *MockTokenService) {},
			errorCode:  ErrorCodeInvalidInput,
		},
		{
			name:       "weak password",
			email:      "alice@example.com",
			password:   "abcdefgh",
			setupMocks: func(*MockUserRepository, *MockTokenService) {},
			errorCode:  ErrorCodeInvalidInput,
		},
		{
			name:       "password too long",
			email:      "alice@example.com",
			password:   "Ab1!Abcdefghijklmnopq",
			setupMocks: func(*MockUserRepository, *MockTokenService) {},
			errorCode:  ErrorCodeInvalidInput,
		},
		{
			name:     "duplicate email",
			email:    "alice@example.com",
			password: "Ab1!Abcd",
			setupMocks: func(ur *MockUserRepository, ts *MockTokenService) {
				ur.On("Create", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists)
			},
			errorCode: ErrorCodeConflict,
		},
		{
			name:     "store failure",
			email:    "alice@example.com",
			password: "Ab1!Abcd",
			setupMocks: func(ur *MockUserRepository, ts *MockTokenService) {
				ur.On("Create", mock.Anything, mock.Anything).Return(errors.New("db error"))
			},
			errorCode: ErrorCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ur := new(MockUserRepository)
			ts := new(MockTokenService)
			tt.setupMocks(ur, ts)

			s := newMockedIdentity(ur, ts, newTestClock())

			session, err := s.Register(context.Background(), tt.email, tt.password)

			if tt.errorCode != "" {
				requireCode(t, err, tt.errorCode)
				assert.Nil(t, session)
			} else {
				require.Nil(t, err)
				assert.Equal(t, "alice@example.com", session.Email)
				assert.Equal(t, "access", session.AccessToken)
				assert.Equal(t, "token-0003", session.RefreshToken)
			}

			ur.AssertExpectations(t)
			ts.AssertExpectations(t)
		})
	}
}

func TestIdentityService_Authenticate(t *testing.T) {
	digest, err := auth.NewBcryptHasher(bcrypt.MinCost).Hash("Ab1!Abcd")
	require.NoError(t, err)

	stored := &repository.User{ID: "u1", Email: "alice@example.com", Username: "alice", PasswordHash: digest}

	tests := []struct {
		name       string
		password   string
		setupMocks func(*MockUserRepository, *MockTokenService)
		errorCode  ErrorCode
	}{
		{
			name:     "success rotates refresh token",
			password: "Ab1!Abcd",
			setupMocks: func(ur *MockUserRepository, ts *MockTokenService) {
				ur.On("GetByEmail", mock.Anything, "alice@example.com").Return(stored, nil)
				ur.On("UpdateRefreshToken", mock.Anything, "u1", "token-0001", mock.Anything).Return(nil)
				ts.On("Issue", mock.Anything).Return("access", nil)
			},
		},
		{
			name: "unknown email",
			setupMocks: func(ur *MockUserRepository, ts *MockTokenService) {
				ur.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, repository.ErrNotFound)
			},
			errorCode: ErrorCodeNotFound,
		},
		{
			name:     "wrong password",
			password: "Ab1!Abce",
			setupMocks: func(ur *MockUserRepository, ts *MockTokenService) {
				ur.On("GetByEmail", mock.Anything, "alice@example.com").Return(stored, nil)
			},
			errorCode: ErrorCodeUnauthorized,
		},
		{
			name:     "rotation failure",
			password: "Ab1!Abcd",
			setupMocks: func(ur *MockUserRepository, ts *MockTokenService) {
				ur.On("GetByEmail", mock.Anything, "alice@example.com").Return(stored, nil)
				ur.On("UpdateRefreshToken", mock.Anything, "u1", mock.Anything, mock.Anything).Return(errors.New("db error"))
			},
			errorCode: ErrorCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ur := new(MockUserRepository)
			ts := new(MockTokenService)
			tt.setupMocks(ur, ts)

			session, err := newMockedIdentity(ur, ts, newTestClock()).Authenticate(context.Background(), "alice@example.com", tt.password)

			if tt.errorCode != "" {
				requireCode(t, err, tt.errorCode)
				assert.Nil(t, session)
			} else {
				require.Nil(t, err)
				assert.Equal(t, "token-0001", session.RefreshToken)
				assert.Equal(t, "access", session.AccessToken)
			}

			ur.AssertExpectations(t)
		})
	}
}

func TestIdentityService_RenewSession(t *testing.T) {
	clock := newTestClock()

	tests := []struct {
		name       string
		presented  string
		stored     *repository.User
		lookupErr  error
		expectCall bool
		errorCode  ErrorCode
	}{
		{
			name:       "success",
			presented:  "r1",
			stored:     &repository.User{ID: "u1", Email: "a@example.com", RefreshToken: "r1", RefreshExpiresAt: clock.Now().Add(time.Minute)},
			expectCall: true,
		},
		{
			name:      "token mismatch",
			presented: "other",
			stored:    &repository.User{ID: "u1", Email: "a@example.com", RefreshToken: "r1", RefreshExpiresAt: clock.Now().Add(time.Minute)},
			errorCode: ErrorCodeForbidden,
		},
		{
			name:      "expired token",
			presented: "r1",
			stored:    &repository.User{ID: "u1", Email: "a@example.com", RefreshToken: "r1", RefreshExpiresAt: clock.Now().Add(-time.Second)},
			errorCode: ErrorCodeForbidden,
		},
		{
			name:      "expired and mismatched",
			presented: "other",
			stored:    &repository.User{ID: "u1", Email: "a@example.com", RefreshToken: "r1", RefreshExpiresAt: clock.Now().Add(-time.Hour)},
			errorCode: ErrorCodeForbidden,
		},
		{
			name:      "unknown user",
			presented: "r1",
			lookupErr: repository.ErrNotFound,
			errorCode: ErrorCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ur := new(MockUserRepository)
			ts := new(MockTokenService)

			if tt.lookupErr != nil {
				ur.On("GetByEmail", mock.Anything, "a@example.com").Return(nil, tt.lookupErr)
			} else {
				ur.On("GetByEmail", mock.Anything, "a@example.com").Return(tt.stored, nil)
			}
			if tt.expectCall {
				ur.On("UpdateRefreshToken", mock.Anything, "u1", "token-0001", clock.Now().Add(time.Hour)).Return(nil)
				ts.On("Issue", mock.Anything).Return("access", nil)
			}

			session, err := newMockedIdentity(ur, ts, clock).RenewSession(context.Background(), "a@example.com", tt.presented)

			if tt.errorCode != "" {
				requireCode(t, err, tt.errorCode)
				assert.Nil(t, session)
			} else {
				require.Nil(t, err)
				assert.Equal(t, "token-0001", session.RefreshToken)
			}

			ur.AssertExpectations(t)
			ts.AssertExpectations(t)
		})
	}
}

func TestIdentityService_VerifyToken(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Minute)
	s := NewIdentityService(new(MockTransactor), newTestBus()).WithTokens(tokens)

	token, err := tokens.Issue(auth.Claims{UserID: "u1", Email: "a@example.com"})
	require.NoError(t, err)

	claims, svcErr := s.VerifyToken(token)
	require.Nil(t, svcErr)
	assert.Equal(t, "u1", claims.UserID)

	_, svcErr = s.VerifyToken("garbage")
	requireCode(t, svcErr, ErrorCodeUnauthorized)
}
