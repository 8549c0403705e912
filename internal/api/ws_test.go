package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/teamhub/internal/model"
)

func (s *testServer) dialChat(t *testing.T, chatID, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/team-chat?chatId=" + chatID + "&token=" + token
	conn, _, err := websocket.Dial(t.Context(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) chatFrame {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	var frame chatFrame
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	return frame
}

func TestTeamChatBroadcast(t *testing.T) {
	srv := newTestServer(t)
	leader, _ := srv.signUp(t, "lead@example.com")
	other, _ := srv.signUp(t, "other@example.com")
	team := srv.createTeam(t, leader.AccessToken, "gophers")

	sender := srv.dialChat(t, team.ChatID, leader.AccessToken)
	listener := srv.dialChat(t, team.ChatID, other.AccessToken)
	require.Eventually(t, func() bool {
		return srv.hub.Size(team.ChatID) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, wsjson.Write(t.Context(), sender, chatInput{Content: "hello"}))

	for _, conn := range []*websocket.Conn{sender, listener} {
		frame := readFrame(t, conn)
		assert.Equal(t, eventChatToClient, frame.Event)
		require.NotNil(t, frame.Message)
		assert.Equal(t, "hello", frame.Message.Message)
		assert.Equal(t, "lead@example.com", frame.Message.Sender.Email)
	}

	// Blank messages are answered only to the sender.
	require.NoError(t, wsjson.Write(t.Context(), sender, chatInput{Content: "  "}))
	frame := readFrame(t, sender)
	require.NotNil(t, frame.Error)
	assert.Nil(t, frame.Message)

	resp := srv.do(t, http.MethodGet, "/chats/"+team.ChatID+"/messages?limit=10", leader.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	messages := decode[[]*model.TeamChatMessage](t, resp)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Message)
}

func TestTeamChatRejectsConnection(t *testing.T) {
	srv := newTestServer(t)
	leader, _ := srv.signUp(t, "lead@example.com")
	team := srv.createTeam(t, leader.AccessToken, "gophers")

	tests := []struct {
		name   string
		chatID string
		token  string
	}{
		{name: "bad token", chatID: team.ChatID, token: "garbage"},
		{name: "unknown chat", chatID: "missing", token: leader.AccessToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := srv.dialChat(t, tt.chatID, tt.token)

			ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
			defer cancel()

			_, _, err := conn.Read(ctx)
			require.Error(t, err)
			assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
		})
	}
}

func TestTeamChatClosedOnShutdown(t *testing.T) {
	srv := newTestServer(t)
	leader, _ := srv.signUp(t, "lead@example.com")
	other, _ := srv.signUp(t, "other@example.com")
	team := srv.createTeam(t, leader.AccessToken, "gophers")

	conns := []*websocket.Conn{
		srv.dialChat(t, team.ChatID, leader.AccessToken),
		srv.dialChat(t, team.ChatID, other.AccessToken),
	}
	require.Eventually(t, func() bool {
		return srv.hub.Size(team.ChatID) == 2
	}, 2*time.Second, 10*time.Millisecond)

	closed := make(chan struct{})
	go func() {
		srv.handler.Close()
		close(closed)
	}()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
		_, _, err := conn.Read(ctx)
		cancel()
		require.Error(t, err)
		assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not release chat connections")
	}
	assert.Equal(t, 0, srv.hub.Size(team.ChatID))
}
