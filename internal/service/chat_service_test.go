package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/repository"
)

func TestChatService_ListMessages(t *testing.T) {
	sender := &model.User{ID: "u1", Username: "alice"}

	tests := []struct {
		name          string
		before        string
		limit         int
		expectedLimit int
	}{
		{name: "default limit", limit: 0, expectedLimit: model.DefaultMessagesLimit},
		{name: "explicit limit", limit: 5, expectedLimit: 5},
		{name: "limit is capped", limit: 1000, expectedLimit: maxMessagesLimit},
		{name: "before cursor", before: "m6", limit: 5, expectedLimit: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr := new(MockChatRepository)
			ad := new(MockAccessDirectory)

			cr.On("GetChat", mock.Anything, "c1").Return(&repository.TeamChat{ID: "c1", TeamID: "t1"}, nil)
			cr.On("ListMessages", mock.Anything, "c1", tt.before, tt.expectedLimit).Return([]*repository.TeamChatMessage{
				{ID: "m2", Message: "second", SenderID: "u1", ChatID: "c1"},
				{ID: "m1", Message: "first", SenderID: "u1", ChatID: "c1"},
			}, nil)
			ad.On("GetUser", mock.Anything, "u1").Return(sender, nil).Once()

			s := NewChatService(new(MockTransactor)).WithChatRepo(cr).WithUsers(ad)

			got, err := s.ListMessages(context.Background(), "c1", tt.before, tt.limit)
			require.Nil(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "m2", got[0].ID)
			assert.Equal(t, sender, got[0].Sender)
			assert.Equal(t, sender, got[1].Sender)

			cr.AssertExpectations(t)
			ad.AssertExpectations(t)
		})
	}
}

func TestChatService_AppendMessage(t *testing.T) {
	sender := &model.User{ID: "u1", Username: "alice"}

	tests := []struct {
		name       string
		text       string
		setupMocks func(*MockChatRepository, *MockAccessDirectory)
		errorCode  ErrorCode
	}{
		{
			name: "success",
			text: "hello",
			setupMocks: func(cr *MockChatRepository, ad *MockAccessDirectory) {
				ad.On("GetUser", mock.Anything, "u1").Return(sender, nil)
				cr.On("GetChat", mock.Anything, "c1").Return(&repository.TeamChat{ID: "c1"}, nil)
				cr.On("CreateMessage", mock.Anything, mock.MatchedBy(func(m *repository.TeamChatMessage) bool {
					return m.ID == "id-0001" && m.Message == "hello" && m.SenderID == "u1"
				})).Return(nil)
				cr.On("AppendMessage", mock.Anything, "c1", "id-0001").Return(nil)
			},
		},
		{
			name:       "blank message",
			text:       "   ",
			setupMocks: func(*MockChatRepository, *MockAccessDirectory) {},
			errorCode:  ErrorCodeInvalidInput,
		},
		{
			name: "unknown chat",
			text: "hello",
			setupMocks: func(cr *MockChatRepository, ad *MockAccessDirectory) {
				ad.On("GetUser", mock.Anything, "u1").Return(sender, nil)
				cr.On("GetChat", mock.Anything, "c1").Return(nil, repository.ErrNotFound)
			},
			errorCode: ErrorCodeNotFound,
		},
		{
			name: "link failure",
			text: "hello",
			setupMocks: func(cr *MockChatRepository, ad *MockAccessDirectory) {
				ad.On("GetUser", mock.Anything, "u1").Return(sender, nil)
				cr.On("GetChat", mock.Anything, "c1").Return(&repository.TeamChat{ID: "c1"}, nil)
				cr.On("CreateMessage", mock.Anything, mock.Anything).Return(nil)
				cr.On("AppendMessage", mock.Anything, "c1", "id-0001").Return(errors.New("db error"))
			},
			errorCode: ErrorCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr := new(MockChatRepository)
			ad := new(MockAccessDirectory)
			tt.setupMocks(cr, ad)

			s := NewChatService(new(MockTransactor)).
				WithChatRepo(cr).
				WithUsers(ad).
				WithIDGenerator(&sequenceIDs{})

			got, err := s.AppendMessage(context.Background(), "c1", "u1", tt.text)

			if tt.errorCode != "" {
				requireCode(t, err, tt.errorCode)
				assert.Nil(t, got)
			} else {
				require.Nil(t, err)
				assert.Equal(t, "hello", got.Message)
				assert.Equal(t, sender, got.Sender)
				assert.Equal(t, "c1", got.ChatID)
			}

			cr.AssertExpectations(t)
			ad.AssertExpectations(t)
		})
	}
}
