package api

import (
	"context"
	"encoding/json"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"
	"github.com/yakoovad/teamhub/internal/chat"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/service"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
)

const eventChatToClient = "chatToClient"

type chatFrame struct {
	Event   string                 `json:"event"`
	Message *model.TeamChatMessage `json:"message,omitempty"`
	Error   *service.Error         `json:"error,omitempty"`
}

type chatInput struct {
	Content string `json:"content"`
}

// TeamChat upgrades to a websocket bound to one team chat. Browsers cannot set
// headers on the upgrade, so the access token travels in the query.
func (h *Handler) TeamChat(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	chatID := e.QueryParam("chatId")
	token := e.QueryParam("token")

	conn, err := websocket.Accept(e.Response(), e.Request(), &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		l.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.CloseNow()

	claims, svcErr := h.identity.VerifyToken(token)
	if svcErr != nil {
		l.Warn("rejected chat connection", zap.String("chat_id", chatID), zap.Any("error", svcErr))
		conn.Close(websocket.StatusPolicyViolation, "invalid token")
		return nil
	}

	h.conns.Add(1)
	defer h.conns.Done()

	ctx := logger.WithLogger(context.WithoutCancel(e.Request().Context()), l.With(
		zap.String("chat_id", chatID),
		zap.String("user_id", claims.UserID),
	))
	ctx, cancel := context.WithCancel(ctx)

	if _, svcErr = h.chats.GetChat(ctx, chatID); svcErr != nil {
		cancel()
		conn.Close(websocket.StatusPolicyViolation, svcErr.Message)
		return nil
	}

	client := chat.NewClient(0)
	h.hub.Join(chatID, client)
	defer func() {
		cancel()
		h.hub.Leave(chatID, client)
	}()

	go h.writeFrames(ctx, conn, client, cancel)

	for {
		var in chatInput
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				l.Warn("chat connection read failed", zap.Error(err))
			}
			return nil
		}

		msg, svcErr := h.chats.AppendMessage(ctx, chatID, claims.UserID, in.Content)
		if svcErr != nil {
			if err := wsjson.Write(ctx, conn, chatFrame{Event: eventChatToClient, Error: svcErr}); err != nil {
				return nil
			}
			continue
		}

		frame, err := json.Marshal(chatFrame{Event: eventChatToClient, Message: msg})
		if err != nil {
			l.Error("failed to encode chat frame", zap.Error(err))
			continue
		}
		h.hub.Broadcast(chatID, frame)
	}
}

func (h *Handler) writeFrames(ctx context.Context, conn *websocket.Conn, client *chat.Client, cancel context.CancelFunc) {
	defer cancel()

	for {
		select {
		case frame := <-client.Messages():
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				return
			}
		case <-client.Done():
			switch {
			case h.closing.Load():
				conn.Close(websocket.StatusGoingAway, "server shutting down")
			case ctx.Err() == nil:
				// Dropped by the hub for lagging behind.
				conn.Close(websocket.StatusTryAgainLater, "client too slow")
			}
			return
		case <-ctx.Done():
			return
		}
	}
}
