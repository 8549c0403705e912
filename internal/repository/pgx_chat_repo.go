package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/teamhub/internal/db"
)

type TeamChat struct {
	ID         string    `db:"id" validate:"required"`
	TeamID     string    `db:"team_id" validate:"required"`
	MessageIDs []string  `db:"message_ids"`
	CreatedAt  time.Time `db:"created_at"`
}

type TeamChatMessage struct {
	ID        string    `db:"id" validate:"required"`
	Message   string    `db:"message" validate:"required"`
	SenderID  string    `db:"sender_id" validate:"required"`
	ChatID    string    `db:"chat_id" validate:"required"`
	CreatedAt time.Time `db:"created_at"`
}

type ChatRepository interface {
	CreateChat(ctx context.Context, chat *TeamChat) error
	GetChat(ctx context.Context, chatID string) (*TeamChat, error)
	GetChatForTeam(ctx context.Context, teamID string) (*TeamChat, error)
	CreateMessage(ctx context.Context, message *TeamChatMessage) error
	// AppendMessage adds messageID to the end of the chat's ordered message list.
	AppendMessage(ctx context.Context, chatID, messageID string) error
	// ListMessages returns up to limit messages of the chat with id < before
	// (all when before is empty), newest first.
	ListMessages(ctx context.Context, chatID, before string, limit int) ([]*TeamChatMessage, error)
}

var (
	chatColumns    = []any{"id", "team_id", "message_ids", "created_at"}
	messageColumns = []any{"id", "message", "sender_id", "chat_id", "created_at"}
)

type pgxChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgxChatRepository(pool *pgxpool.Pool) ChatRepository {
	return &pgxChatRepository{pool: pool}
}

func (p *pgxChatRepository) CreateChat(ctx context.Context, chat *TeamChat) error {
	if err := validateRecord(chat); err != nil {
		return err
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("team_chats", "id", "team_id", "message_ids", "created_at"),
		im.Values(psql.Arg(chat.ID), psql.Arg(chat.TeamID), psql.Arg(nonNil(chat.MessageIDs)), psql.Arg(chat.CreatedAt)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}

	return errors.Wrap(err, "insert team chat")
}

func (p *pgxChatRepository) GetChat(ctx context.Context, chatID string) (*TeamChat, error) {
	return p.getChatBy(ctx, "id", chatID)
}

func (p *pgxChatRepository) GetChatForTeam(ctx context.Context, teamID string) (*TeamChat, error) {
	return p.getChatBy(ctx, "team_id", teamID)
}

func (p *pgxChatRepository) getChatBy(ctx context.Context, column, value string) (*TeamChat, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(chatColumns...),
		sm.From("team_chats"),
		sm.Where(psql.Quote(column).EQ(psql.Arg(value))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select team chat")
	}

	chat, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[TeamChat])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan team chat")
	}

	return chat, nil
}

func (p *pgxChatRepository) CreateMessage(ctx context.Context, message *TeamChatMessage) error {
	if err := validateRecord(message); err != nil {
		return err
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("team_chat_messages", "id", "message", "sender_id", "chat_id", "created_at"),
		im.Values(psql.Arg(message.ID), psql.Arg(message.Message), psql.Arg(message.SenderID), psql.Arg(message.ChatID), psql.Arg(message.CreatedAt)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}

	return errors.Wrap(err, "insert team chat message")
}

func (p *pgxChatRepository) AppendMessage(ctx context.Context, chatID, messageID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("team_chats"),
		um.SetCol("message_ids").To(psql.F("array_append", psql.Quote("message_ids"), psql.Arg(messageID))),
		um.Where(psql.Quote("id").EQ(psql.Arg(chatID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return errors.Wrap(err, "append team chat message")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *pgxChatRepository) ListMessages(ctx context.Context, chatID, before string, limit int) ([]*TeamChatMessage, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(messageColumns...),
		sm.From("team_chat_messages"),
		sm.Where(psql.Quote("chat_id").EQ(psql.Arg(chatID))),
		sm.OrderBy("id").Desc(),
		sm.Limit(int64(limit)),
	)
	if before != "" {
		q.Apply(sm.Where(psql.Quote("id").LT(psql.Arg(before))))
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select team chat messages")
	}

	messages, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[TeamChatMessage])
	if err != nil {
		return nil, errors.Wrap(err, "scan team chat messages")
	}

	return messages, nil
}
