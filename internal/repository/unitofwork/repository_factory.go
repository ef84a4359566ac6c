package unitofwork

import "context"

// RepositoryFactory hands out units of work bound to the chat store.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}
