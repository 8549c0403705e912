package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/yakoovad/teamhub/internal/model"
)

// NewMemoryStore returns a Store kept in process memory. It enforces the same
// uniqueness and not-found contracts as the Postgres repositories and is used
// by tests and STORAGE=memory.
func NewMemoryStore() *Store {
	m := &memory{
		users:    make(map[string]*User),
		teams:    make(map[string]*Team),
		accesses: make(map[string]*TeamAccess),
		projects: make(map[string]*Project),
		chats:    make(map[string]*TeamChat),
		messages: make(map[string]*TeamChatMessage),
	}

	return &Store{
		Users:    (*memoryUsers)(m),
		Teams:    (*memoryTeams)(m),
		Accesses: (*memoryAccesses)(m),
		Projects: (*memoryProjects)(m),
		Chats:    (*memoryChats)(m),
	}
}

type memory struct {
	mu sync.RWMutex

	users     map[string]*User
	teams     map[string]*Team
	teamOrder []string
	accesses  map[string]*TeamAccess
	projects  map[string]*Project
	chats     map[string]*TeamChat
	messages  map[string]*TeamChatMessage
}

type (
	memoryUsers    memory
	memoryTeams    memory
	memoryAccesses memory
	memoryProjects memory
	memoryChats    memory
)

func cloneUser(u *User) *User {
	c := *u
	c.TeamIDs = slices.Clone(nonNil(u.TeamIDs))
	return &c
}

func cloneTeam(t *Team) *Team {
	c := *t
	c.MemberIDs = slices.Clone(nonNil(t.MemberIDs))
	c.ProjectIDs = slices.Clone(nonNil(t.ProjectIDs))
	return &c
}

func cloneChat(ch *TeamChat) *TeamChat {
	c := *ch
	c.MessageIDs = slices.Clone(nonNil(ch.MessageIDs))
	return &c
}

func addUnique(s []string, v string) []string {
	if slices.Contains(s, v) {
		return s
	}
	return append(s, v)
}

func removeValue(s []string, v string) []string {
	return slices.DeleteFunc(s, func(x string) bool { return x == v })
}

func (m *memoryUsers) Create(_ context.Context, user *User) error {
	if err := validateRecord(user); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; ok {
		return ErrAlreadyExists
	}
	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username {
			return ErrAlreadyExists
		}
	}

	m.users[user.ID] = cloneUser(user)
	return nil
}

func (m *memoryUsers) Get(_ context.Context, userID string) (*User, error) {
	return m.find(func(u *User) bool { return u.ID == userID })
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*User, error) {
	return m.find(func(u *User) bool { return u.Email == email })
}

func (m *memoryUsers) GetByUsername(_ context.Context, username string) (*User, error) {
	return m.find(func(u *User) bool { return u.Username == username })
}

func (m *memoryUsers) find(match func(*User) bool) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryUsers) UpdateRefreshToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.RefreshToken = token
	u.RefreshExpiresAt = expiresAt
	return nil
}

func (m *memoryUsers) AddTeam(_ context.Context, userID, teamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[userID]; ok {
		u.TeamIDs = addUnique(u.TeamIDs, teamID)
	}
	return nil
}

func (m *memoryUsers) RemoveTeam(_ context.Context, userID, teamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[userID]; ok {
		u.TeamIDs = removeValue(u.TeamIDs, teamID)
	}
	return nil
}

func (m *memoryTeams) Create(_ context.Context, team *Team) error {
	if err := validateRecord(team); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.teams[team.ID]; ok {
		return ErrAlreadyExists
	}
	for _, t := range m.teams {
		if t.Name == team.Name {
			return ErrAlreadyExists
		}
	}

	m.teams[team.ID] = cloneTeam(team)
	m.teamOrder = append(m.teamOrder, team.ID)
	return nil
}

func (m *memoryTeams) Get(_ context.Context, teamID string) (*Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.teams[teamID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTeam(t), nil
}

func (m *memoryTeams) GetMany(_ context.Context, teamIDs []string) ([]*Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	teams := make([]*Team, 0, len(teamIDs))
	for _, id := range m.teamOrder {
		if slices.Contains(teamIDs, id) {
			teams = append(teams, cloneTeam(m.teams[id]))
		}
	}
	return teams, nil
}

func (m *memoryTeams) ListPublicActive(_ context.Context, offset, limit int) ([]*Team, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*Team, 0)
	for _, id := range m.teamOrder {
		t := m.teams[id]
		if t.IsPublic && t.Status == model.TeamStatusActive {
			matched = append(matched, t)
		}
	}

	total := len(matched)
	if offset >= total {
		return []*Team{}, total, nil
	}

	end := min(offset+limit, total)
	page := make([]*Team, 0, end-offset)
	for _, t := range matched[offset:end] {
		page = append(page, cloneTeam(t))
	}
	return page, total, nil
}

func (m *memoryTeams) SetChat(_ context.Context, teamID, chatID string) error {
	return m.update(teamID, func(t *Team) { t.ChatID = chatID })
}

func (m *memoryTeams) AddProject(_ context.Context, teamID, projectID string) error {
	_ = m.update(teamID, func(t *Team) { t.ProjectIDs = addUnique(t.ProjectIDs, projectID) })
	return nil
}

func (m *memoryTeams) AddMember(_ context.Context, teamID, userID string) error {
	_ = m.update(teamID, func(t *Team) { t.MemberIDs = addUnique(t.MemberIDs, userID) })
	return nil
}

func (m *memoryTeams) RemoveMember(_ context.Context, teamID, userID string) error {
	_ = m.update(teamID, func(t *Team) { t.MemberIDs = removeValue(t.MemberIDs, userID) })
	return nil
}

func (m *memoryTeams) update(teamID string, fn func(*Team)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.teams[teamID]
	if !ok {
		return ErrNotFound
	}
	fn(t)
	return nil
}

func (m *memoryAccesses) Create(_ context.Context, access *TeamAccess) error {
	if err := validateRecord(access); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accesses[access.ID]; ok {
		return ErrAlreadyExists
	}
	if m.forUserInTeam(access.UserID, access.TeamID) != nil {
		return ErrAlreadyExists
	}

	c := *access
	m.accesses[access.ID] = &c
	return nil
}

func (m *memoryAccesses) Upsert(_ context.Context, access *TeamAccess) (*TeamAccess, error) {
	if err := validateRecord(access); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.forUserInTeam(access.UserID, access.TeamID); existing != nil {
		existing.Role = access.Role
		existing.Status = access.Status
		c := *existing
		return &c, nil
	}

	c := *access
	m.accesses[access.ID] = &c
	out := c
	return &out, nil
}

func (m *memoryAccesses) Get(_ context.Context, accessID string) (*TeamAccess, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accesses[accessID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *a
	return &c, nil
}

func (m *memoryAccesses) GetForUserInTeam(_ context.Context, userID, teamID string) (*TeamAccess, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a := m.forUserInTeam(userID, teamID)
	if a == nil {
		return nil, ErrNotFound
	}
	c := *a
	return &c, nil
}

func (m *memoryAccesses) SetStatus(_ context.Context, userID, teamID string, status model.TeamAccessStatus) (*TeamAccess, error) {
	return m.update(userID, teamID, func(a *TeamAccess) { a.Status = status })
}

func (m *memoryAccesses) SetRole(_ context.Context, userID, teamID string, role model.TeamRole) (*TeamAccess, error) {
	return m.update(userID, teamID, func(a *TeamAccess) { a.Role = role })
}

func (m *memoryAccesses) update(userID, teamID string, fn func(*TeamAccess)) (*TeamAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.forUserInTeam(userID, teamID)
	if a == nil {
		return nil, ErrNotFound
	}
	fn(a)
	c := *a
	return &c, nil
}

func (m *memoryAccesses) Delete(_ context.Context, accessID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accesses[accessID]; !ok {
		return ErrNotFound
	}
	delete(m.accesses, accessID)
	return nil
}

func (m *memoryAccesses) ListForUser(_ context.Context, userID string, excludeDeclined bool) ([]*TeamAccess, error) {
	return m.list(func(a *TeamAccess) bool {
		if excludeDeclined && a.Status == model.TeamAccessStatusDeclined {
			return false
		}
		return a.UserID == userID
	}), nil
}

func (m *memoryAccesses) ListForTeam(_ context.Context, teamID string) ([]*TeamAccess, error) {
	return m.list(func(a *TeamAccess) bool { return a.TeamID == teamID }), nil
}

func (m *memoryAccesses) list(match func(*TeamAccess) bool) []*TeamAccess {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*TeamAccess, 0)
	for _, a := range m.accesses {
		if match(a) {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryAccesses) forUserInTeam(userID, teamID string) *TeamAccess {
	for _, a := range m.accesses {
		if a.UserID == userID && a.TeamID == teamID {
			return a
		}
	}
	return nil
}

func (m *memoryProjects) Create(_ context.Context, project *Project) error {
	if err := validateRecord(project); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[project.ID]; ok {
		return ErrAlreadyExists
	}
	c := *project
	m.projects[project.ID] = &c
	return nil
}

func (m *memoryProjects) Get(_ context.Context, projectID string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *memoryProjects) Patch(_ context.Context, patch *ProjectPatch) (*Project, error) {
	if err := validateRecord(patch); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[patch.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	c := *p
	return &c, nil
}

func (m *memoryProjects) ListForTeam(_ context.Context, teamID string) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Project, 0)
	for _, p := range m.projects {
		if p.TeamID == teamID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryChats) CreateChat(_ context.Context, chat *TeamChat) error {
	if err := validateRecord(chat); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chats[chat.ID]; ok {
		return ErrAlreadyExists
	}
	for _, ch := range m.chats {
		if ch.TeamID == chat.TeamID {
			return ErrAlreadyExists
		}
	}
	m.chats[chat.ID] = cloneChat(chat)
	return nil
}

func (m *memoryChats) GetChat(_ context.Context, chatID string) (*TeamChat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ch, ok := m.chats[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneChat(ch), nil
}

func (m *memoryChats) GetChatForTeam(_ context.Context, teamID string) (*TeamChat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.chats {
		if ch.TeamID == teamID {
			return cloneChat(ch), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryChats) CreateMessage(_ context.Context, message *TeamChatMessage) error {
	if err := validateRecord(message); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.messages[message.ID]; ok {
		return ErrAlreadyExists
	}
	c := *message
	m.messages[message.ID] = &c
	return nil
}

func (m *memoryChats) AppendMessage(_ context.Context, chatID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.chats[chatID]
	if !ok {
		return ErrNotFound
	}
	ch.MessageIDs = append(ch.MessageIDs, messageID)
	return nil
}

func (m *memoryChats) ListMessages(_ context.Context, chatID, before string, limit int) ([]*TeamChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*TeamChatMessage, 0)
	for _, msg := range m.messages {
		if msg.ChatID != chatID {
			continue
		}
		if before != "" && msg.ID >= before {
			continue
		}
		c := *msg
		out = append(out, &c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
