package unitofwork

import (
	"context"

	"github.com/idkosilov/furniture/internal/domain/events"
	"github.com/idkosilov/furniture/internal/infrastructure/store"
)

// MemoryUnitOfWork runs sessions against a MemoryRepository. Products are
// shared instances, so Rollback cannot undo in-place mutations; it only
// records that nothing was committed.
type MemoryUnitOfWork struct {
	repo   *store.MemoryRepository
	active bool

	Committed  bool
	Commits    int
	RolledBack bool
}

func NewMemoryUnitOfWork(repo *store.MemoryRepository) *MemoryUnitOfWork {
	if repo == nil {
		repo = store.NewMemoryRepository()
	}
	return &MemoryUnitOfWork{repo: repo}
}

func (u *MemoryUnitOfWork) Begin(ctx context.Context) error {
	if u.active {
		return ErrSessionActive
	}
	u.repo.ResetSeen()
	u.active = true
	u.Committed = false
	u.RolledBack = false
	return nil
}

func (u *MemoryUnitOfWork) Products() Repository {
	return u.repo
}

func (u *MemoryUnitOfWork) Commit(ctx context.Context) error {
	if !u.active {
		return ErrNoSession
	}
	u.Committed = true
	u.Commits++
	return nil
}

func (u *MemoryUnitOfWork) Rollback(ctx context.Context) error {
	if !u.active {
		return ErrNoSession
	}
	if !u.Committed {
		u.RolledBack = true
	}
	return nil
}

func (u *MemoryUnitOfWork) End(ctx context.Context) error {
	if !u.active {
		return ErrNoSession
	}
	err := u.Rollback(ctx)
	u.active = false
	return err
}

func (u *MemoryUnitOfWork) CollectNewEvents() []events.Event {
	return drainEvents(u.repo)
}
