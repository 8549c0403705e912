package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Store groups the five entity collections. Each service receives only the
// repositories it owns.
type Store struct {
	Users    UserRepository
	Teams    TeamRepository
	Accesses TeamAccessRepository
	Projects ProjectRepository
	Chats    ChatRepository
}

func NewPgxStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Users:    NewPgxUserRepository(pool),
		Teams:    NewPgxTeamRepository(pool),
		Accesses: NewPgxTeamAccessRepository(pool),
		Projects: NewPgxProjectRepository(pool),
		Chats:    NewPgxChatRepository(pool),
	}
}
