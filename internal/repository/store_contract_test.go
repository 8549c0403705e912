package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/teamhub/internal/model"
)

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func seedUser(t *testing.T, s *Store, suffix string) *User {
	t.Helper()

	u := &User{
		ID:               newID(),
		Username:         "user_" + suffix,
		Email:            suffix + "@example.com",
		PasswordHash:     "hash",
		RefreshToken:     "token-" + suffix,
		RefreshExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond),
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, s.Users.Create(context.Background(), u))
	return u
}

func seedTeam(t *testing.T, s *Store, name, leaderID string, public bool) *Team {
	t.Helper()

	team := &Team{
		ID:        newID(),
		Name:      name,
		LeaderID:  leaderID,
		Status:    model.TeamStatusActive,
		IsPublic:  public,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, s.Teams.Create(context.Background(), team))
	return team
}

// runStoreContract exercises the behavior every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) *Store) {
	t.Run("users are unique by email and username", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := seedUser(t, s, "alice")

		dupEmail := *u
		dupEmail.ID = newID()
		dupEmail.Username = "user_other"
		assert.ErrorIs(t, s.Users.Create(ctx, &dupEmail), ErrAlreadyExists)

		dupUsername := *u
		dupUsername.ID = newID()
		dupUsername.Email = "other@example.com"
		assert.ErrorIs(t, s.Users.Create(ctx, &dupUsername), ErrAlreadyExists)

		got, err := s.Users.GetByEmail(ctx, u.Email)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "token-alice", got.RefreshToken)
	})

	t.Run("user with invalid email is rejected", func(t *testing.T) {
		s := newStore(t)
		err := s.Users.Create(context.Background(), &User{
			ID: newID(), Username: "user_bad", Email: "not-an-email", PasswordHash: "h", RefreshToken: "t",
		})
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("user lookups and refresh rotation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := seedUser(t, s, "bob")

		_, err := s.Users.GetByUsername(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		expires := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Microsecond)
		require.NoError(t, s.Users.UpdateRefreshToken(ctx, u.ID, "rotated", expires))

		got, err := s.Users.GetByUsername(ctx, u.Username)
		require.NoError(t, err)
		assert.Equal(t, "rotated", got.RefreshToken)
		assert.True(t, expires.Equal(got.RefreshExpiresAt))

		assert.ErrorIs(t, s.Users.UpdateRefreshToken(ctx, newID(), "x", expires), ErrNotFound)
	})

	t.Run("user team list has set semantics", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := seedUser(t, s, "carol")
		team := seedTeam(t, s, "carolteam", u.ID, true)

		require.NoError(t, s.Users.AddTeam(ctx, u.ID, team.ID))
		require.NoError(t, s.Users.AddTeam(ctx, u.ID, team.ID))

		got, err := s.Users.Get(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{team.ID}, got.TeamIDs)

		require.NoError(t, s.Users.RemoveTeam(ctx, u.ID, team.ID))
		got, err = s.Users.Get(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, got.TeamIDs)
	})

	t.Run("team names are unique and length checked", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := seedUser(t, s, "dave")
		seedTeam(t, s, "alpha", u.ID, true)

		err := s.Teams.Create(ctx, &Team{ID: newID(), Name: "alpha", LeaderID: u.ID, Status: model.TeamStatusActive})
		assert.ErrorIs(t, err, ErrAlreadyExists)

		err = s.Teams.Create(ctx, &Team{ID: newID(), Name: "ab", LeaderID: u.ID, Status: model.TeamStatusActive})
		assert.ErrorIs(t, err, ErrInvalid)

		err = s.Teams.Create(ctx, &Team{ID: newID(), Name: "thirteenchars", LeaderID: u.ID, Status: model.TeamStatusActive})
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("team project and member sets", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := seedUser(t, s, "erin")
		team := seedTeam(t, s, "erinteam", u.ID, true)

		require.NoError(t, s.Teams.AddProject(ctx, team.ID, "p1"))
		require.NoError(t, s.Teams.AddProject(ctx, team.ID, "p1"))
		require.NoError(t, s.Teams.AddMember(ctx, team.ID, u.ID))
		require.NoError(t, s.Teams.SetChat(ctx, team.ID, "chat-1"))

		got, err := s.Teams.Get(ctx, team.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, got.ProjectIDs)
		assert.Equal(t, []string{u.ID}, got.MemberIDs)
		assert.Equal(t, "chat-1", got.ChatID)

		require.NoError(t, s.Teams.RemoveMember(ctx, team.ID, u.ID))
		got, err = s.Teams.Get(ctx, team.ID)
		require.NoError(t, err)
		assert.Empty(t, got.MemberIDs)

		assert.ErrorIs(t, s.Teams.SetChat(ctx, newID(), "chat-2"), ErrNotFound)
		_, err = s.Teams.Get(ctx, newID())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("public active teams are paged in creation order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := seedUser(t, s, "frank")

		names := make([]string, 0, 5)
		for i := range 5 {
			name := fmt.Sprintf("pub%d", i)
			seedTeam(t, s, name, u.ID, true)
			names = append(names, name)
		}
		seedTeam(t, s, "private", u.ID, false)

		page, total, err := s.Teams.ListPublicActive(ctx, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		require.Len(t, page, 2)
		assert.Equal(t, names[2], page[0].Name)
		assert.Equal(t, names[3], page[1].Name)

		page, total, err = s.Teams.ListPublicActive(ctx, 10, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Empty(t, page)
	})

	t.Run("at most one access per user and team", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := seedUser(t, s, "gina")
		team := seedTeam(t, s, "ginateam", u.ID, true)

		first, err := s.Accesses.Upsert(ctx, &TeamAccess{
			ID: newID(), UserID: u.ID, TeamID: team.ID, Role: model.TeamRoleParticipant, Status: model.TeamAccessStatusPending,
		})
		require.NoError(t, err)

		_, err = s.Accesses.SetStatus(ctx, u.ID, team.ID, model.TeamAccessStatusDeclined)
		require.NoError(t, err)

		second, err := s.Accesses.Upsert(ctx, &TeamAccess{
			ID: newID(), UserID: u.ID, TeamID: team.ID, Role: model.TeamRoleModerator, Status: model.TeamAccessStatusPending,
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, model.TeamRoleModerator, second.Role)
		assert.Equal(t, model.TeamAccessStatusPending, second.Status)

		all, err := s.Accesses.ListForTeam(ctx, team.ID)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		err = s.Accesses.Create(ctx, &TeamAccess{
			ID: newID(), UserID: u.ID, TeamID: team.ID, Role: model.TeamRoleParticipant, Status: model.TeamAccessStatusActive,
		})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("access listing and deletion", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := seedUser(t, s, "hank")
		t1 := seedTeam(t, s, "hank1", u.ID, true)
		t2 := seedTeam(t, s, "hank2", u.ID, true)

		a1 := &TeamAccess{ID: newID(), UserID: u.ID, TeamID: t1.ID, Role: model.TeamRoleLeader, Status: model.TeamAccessStatusActive}
		a2 := &TeamAccess{ID: newID(), UserID: u.ID, TeamID: t2.ID, Role: model.TeamRoleParticipant, Status: model.TeamAccessStatusDeclined}
		require.NoError(t, s.Accesses.Create(ctx, a1))
		require.NoError(t, s.Accesses.Create(ctx, a2))

		visible, err := s.Accesses.ListForUser(ctx, u.ID, true)
		require.NoError(t, err)
		require.Len(t, visible, 1)
		assert.Equal(t, a1.ID, visible[0].ID)

		everything, err := s.Accesses.ListForUser(ctx, u.ID, false)
		require.NoError(t, err)
		assert.Len(t, everything, 2)

		updated, err := s.Accesses.SetRole(ctx, u.ID, t2.ID, model.TeamRoleModerator)
		require.NoError(t, err)
		assert.Equal(t, model.TeamRoleModerator, updated.Role)

		_, err = s.Accesses.SetStatus(ctx, newID(), t1.ID, model.TeamAccessStatusActive)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.Accesses.Delete(ctx, a2.ID))
		assert.ErrorIs(t, s.Accesses.Delete(ctx, a2.ID), ErrNotFound)
		_, err = s.Accesses.Get(ctx, a2.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("projects patch and list by team", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := seedUser(t, s, "ivan")
		team := seedTeam(t, s, "ivanteam", u.ID, true)

		p := &Project{ID: newID(), Title: "roadmap", Description: "q1", TeamID: team.ID, CreatedAt: time.Now().UTC().Truncate(time.Microsecond)}
		require.NoError(t, s.Projects.Create(ctx, p))

		title := "roadmap v2"
		patched, err := s.Projects.Patch(ctx, &ProjectPatch{ID: p.ID, Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "roadmap v2", patched.Title)
		assert.Equal(t, "q1", patched.Description)

		empty := ""
		_, err = s.Projects.Patch(ctx, &ProjectPatch{ID: p.ID, Title: &empty})
		assert.ErrorIs(t, err, ErrInvalid)

		_, err = s.Projects.Patch(ctx, &ProjectPatch{ID: newID(), Title: &title})
		assert.ErrorIs(t, err, ErrNotFound)

		list, err := s.Projects.ListForTeam(ctx, team.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, p.ID, list[0].ID)
	})

	t.Run("chat messages page backwards without gaps", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := seedUser(t, s, "judy")
		team := seedTeam(t, s, "judyteam", u.ID, true)

		chat := &TeamChat{ID: newID(), TeamID: team.ID, CreatedAt: time.Now().UTC().Truncate(time.Microsecond)}
		require.NoError(t, s.Chats.CreateChat(ctx, chat))
		assert.ErrorIs(t, s.Chats.CreateChat(ctx, &TeamChat{ID: newID(), TeamID: team.ID}), ErrAlreadyExists)

		ids := make([]string, 0, 10)
		for i := range 10 {
			m := &TeamChatMessage{ID: newID(), Message: fmt.Sprintf("m%d", i+1), SenderID: u.ID, ChatID: chat.ID, CreatedAt: time.Now().UTC()}
			require.NoError(t, s.Chats.CreateMessage(ctx, m))
			require.NoError(t, s.Chats.AppendMessage(ctx, chat.ID, m.ID))
			ids = append(ids, m.ID)
		}

		first, err := s.Chats.ListMessages(ctx, chat.ID, "", 5)
		require.NoError(t, err)
		second, err := s.Chats.ListMessages(ctx, chat.ID, first[len(first)-1].ID, 5)
		require.NoError(t, err)

		assert.Equal(t, []string{ids[9], ids[8], ids[7], ids[6], ids[5]}, messageIDs(first))
		assert.Equal(t, []string{ids[4], ids[3], ids[2], ids[1], ids[0]}, messageIDs(second))

		stored, err := s.Chats.GetChatForTeam(ctx, team.ID)
		require.NoError(t, err)
		assert.Equal(t, ids, stored.MessageIDs)

		assert.ErrorIs(t, s.Chats.AppendMessage(ctx, newID(), ids[0]), ErrNotFound)
	})
}

func messageIDs(ms []*TeamChatMessage) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}
