package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/internal/db"
	"github.com/yakoovad/teamhub/internal/idgen"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/repository"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
)

const maxMessagesLimit = 100

type ChatService struct {
	tx db.Transactor

	chats repository.ChatRepository
	users UserLookup
	ids   idgen.Generator
	now   func() time.Time
}

func NewChatService(tx db.Transactor) *ChatService {
	return &ChatService{
		tx:  tx,
		ids: idgen.New(),
		now: time.Now,
	}
}

func (c *ChatService) CreateChat(ctx context.Context, teamID string) (*model.TeamChat, *Error) {
	l := logger.FromContext(ctx)

	chat := &repository.TeamChat{
		ID:         c.ids.NewID(),
		TeamID:     teamID,
		MessageIDs: []string{},
		CreatedAt:  c.now(),
	}

	err := c.chats.CreateChat(ctx, chat)
	if errors.Is(err, repository.ErrAlreadyExists) {
		l.Warn("team chat already exists", zap.String("team_id", teamID))
		return nil, NewError(ErrorCodeConflict, "team chat already exists")
	}
	if errors.Is(err, repository.ErrInvalid) {
		return nil, NewError(ErrorCodeInvalidInput, "invalid team chat")
	}
	if err != nil {
		l.Error("failed to create team chat", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to create team chat")
	}

	return toChat(chat), nil
}

func (c *ChatService) GetChat(ctx context.Context, chatID string) (*model.TeamChat, *Error) {
	chat, err := c.chats.GetChat(ctx, chatID)
	return c.chatResult(ctx, chat, err, zap.String("chat_id", chatID))
}

func (c *ChatService) GetChatForTeam(ctx context.Context, teamID string) (*model.TeamChat, *Error) {
	chat, err := c.chats.GetChatForTeam(ctx, teamID)
	return c.chatResult(ctx, chat, err, zap.String("team_id", teamID))
}

func (c *ChatService) chatResult(ctx context.Context, chat *repository.TeamChat, err error, key zap.Field) (*model.TeamChat, *Error) {
	l := logger.FromContext(ctx)

	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("team chat not found", key)
		return nil, NewError(ErrorCodeNotFound, "team chat not found")
	}
	if err != nil {
		l.Error("failed to get team chat", key, zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get team chat")
	}

	return toChat(chat), nil
}

// AppendMessage stores the message and links it at the end of the chat log.
func (c *ChatService) AppendMessage(ctx context.Context, chatID, senderID, text string) (*model.TeamChatMessage, *Error) {
	l := logger.FromContext(ctx)

	if strings.TrimSpace(text) == "" {
		return nil, NewError(ErrorCodeInvalidInput, "message must not be empty")
	}

	sender, svcErr := c.users.GetUser(ctx, senderID)
	if svcErr != nil {
		return nil, svcErr
	}
	if _, svcErr = c.GetChat(ctx, chatID); svcErr != nil {
		return nil, svcErr
	}

	message := &repository.TeamChatMessage{
		ID:        c.ids.NewID(),
		Message:   text,
		SenderID:  sender.ID,
		ChatID:    chatID,
		CreatedAt: c.now(),
	}

	err := c.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := c.chats.CreateMessage(txCtx, message); err != nil {
			return err
		}
		return c.chats.AppendMessage(txCtx, chatID, message.ID)
	})
	if errors.Is(err, repository.ErrInvalid) {
		return nil, NewError(ErrorCodeInvalidInput, "invalid message")
	}
	if err != nil {
		l.Error("failed to append message", zap.String("chat_id", chatID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to append message")
	}

	return toMessage(message, sender), nil
}

// ListMessages scrolls backwards: up to limit messages older than before
// (the newest ones when before is empty), newest first.
func (c *ChatService) ListMessages(ctx context.Context, chatID, before string, limit int) ([]*model.TeamChatMessage, *Error) {
	l := logger.FromContext(ctx)

	if limit <= 0 {
		limit = model.DefaultMessagesLimit
	}
	limit = min(limit, maxMessagesLimit)

	if _, svcErr := c.GetChat(ctx, chatID); svcErr != nil {
		return nil, svcErr
	}

	messages, err := c.chats.ListMessages(ctx, chatID, before, limit)
	if err != nil {
		l.Error("failed to list messages", zap.String("chat_id", chatID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to list messages")
	}

	senders := make(map[string]*model.User)
	out := make([]*model.TeamChatMessage, 0, len(messages))
	for _, m := range messages {
		sender, ok := senders[m.SenderID]
		if !ok {
			var svcErr *Error
			if sender, svcErr = c.users.GetUser(ctx, m.SenderID); svcErr != nil {
				return nil, svcErr
			}
			senders[m.SenderID] = sender
		}
		out = append(out, toMessage(m, sender))
	}

	return out, nil
}

func toChat(ch *repository.TeamChat) *model.TeamChat {
	return &model.TeamChat{
		ID:        ch.ID,
		TeamID:    ch.TeamID,
		CreatedAt: ch.CreatedAt,
	}
}

func toMessage(m *repository.TeamChatMessage, sender *model.User) *model.TeamChatMessage {
	return &model.TeamChatMessage{
		ID:        m.ID,
		Message:   m.Message,
		Sender:    sender,
		ChatID:    m.ChatID,
		CreatedAt: m.CreatedAt,
	}
}

func (c *ChatService) WithChatRepo(r repository.ChatRepository) *ChatService {
	c.chats = r
	return c
}

func (c *ChatService) WithUsers(u UserLookup) *ChatService {
	c.users = u
	return c
}

func (c *ChatService) WithIDGenerator(g idgen.Generator) *ChatService {
	c.ids = g
	return c
}

func (c *ChatService) WithClock(now func() time.Time) *ChatService {
	c.now = now
	return c
}
