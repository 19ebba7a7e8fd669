package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	UserRepo          UserRepository
	ClientRepo        ClientRepository
	ClientHistoryRepo ClientHistoryRepository
	TaskRepo          TaskRepository
}

func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		UserRepo:          NewUserRepository(pool),
		ClientRepo:        NewClientRepository(pool),
		ClientHistoryRepo: NewClientHistoryRepository(pool),
		TaskRepo:          NewTaskRepository(pool),
	}
}
