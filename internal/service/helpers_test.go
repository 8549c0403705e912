package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/teamhub/internal/auth"
	"github.com/yakoovad/teamhub/internal/cache"
	"github.com/yakoovad/teamhub/internal/db"
	"github.com/yakoovad/teamhub/internal/event"
	"github.com/yakoovad/teamhub/internal/idgen"
	"github.com/yakoovad/teamhub/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type sequenceIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceIDs) next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}

func (s *sequenceIDs) NewID() string       { return fmt.Sprintf("id-%04d", s.next()) }
func (s *sequenceIDs) NewToken() string    { return fmt.Sprintf("token-%04d", s.next()) }
func (s *sequenceIDs) NewUsername() string { return fmt.Sprintf("user_%04d", s.next()) }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBus() *event.Bus {
	return event.NewBus(event.WithLogger(zap.NewNop()), event.WithHandlerTimeout(5*time.Second))
}

func requireCode(t *testing.T, err *Error, code ErrorCode) {
	t.Helper()
	require.NotNil(t, err)
	assert.Equal(t, code, err.Code)
}

// app wires every service over the in-memory store the way cmd does.
type app struct {
	bus      *event.Bus
	clock    *testClock
	store    *repository.Store
	identity *IdentityService
	teams    *TeamService
	projects *ProjectService
	chats    *ChatService
}

func newApp(t *testing.T) *app {
	t.Helper()

	var (
		bus   = newTestBus()
		clock = newTestClock()
		store = repository.NewMemoryStore()
		tx    = db.NopTransactor{}
		ids   = idgen.New()
	)
	t.Cleanup(bus.Wait)

	identity := NewIdentityService(tx, bus).
		WithUserRepo(store.Users).
		WithAccessRepo(store.Accesses).
		WithTokens(auth.NewTokenService("secret", 15*time.Minute)).
		WithHasher(auth.NewBcryptHasher(bcrypt.MinCost)).
		WithIDGenerator(ids).
		WithClock(clock.Now)

	chats := NewChatService(tx).
		WithChatRepo(store.Chats).
		WithUsers(identity).
		WithIDGenerator(ids).
		WithClock(clock.Now)

	teams := NewTeamService(tx, bus).
		WithTeamRepo(store.Teams).
		WithIdentity(identity).
		WithChats(chats).
		WithPageCache(cache.NewMemory(30*time.Second, cache.WithClock(clock.Now))).
		WithIDGenerator(ids).
		WithClock(clock.Now)

	projects := NewProjectService(bus).
		WithProjectRepo(store.Projects).
		WithTeams(teams).
		WithIDGenerator(ids).
		WithClock(clock.Now)

	teams.WithProjects(projects)

	identity.RegisterHandlers()
	teams.RegisterHandlers()

	return &app{
		bus:      bus,
		clock:    clock,
		store:    store,
		identity: identity,
		teams:    teams,
		projects: projects,
		chats:    chats,
	}
}

// register creates a user and returns its id.
func (a *app) register(t *testing.T, email string) string {
	t.Helper()

	_, svcErr := a.identity.Register(t.Context(), email, "Ab1!Abcd")
	require.Nil(t, svcErr)

	u, err := a.store.Users.GetByEmail(t.Context(), email)
	require.NoError(t, err)
	return u.ID
}
