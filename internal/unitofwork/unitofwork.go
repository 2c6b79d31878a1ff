// Package unitofwork scopes one transactional session over the product
// repository and collects the events raised by the products it touched.
package unitofwork

import (
	"context"
	"errors"

	"github.com/idkosilov/furniture/internal/domain/events"
	"github.com/idkosilov/furniture/internal/domain/product"
)

var (
	ErrSessionActive = errors.New("unit of work session already active")
	ErrNoSession     = errors.New("no active unit of work session")
)

// Repository gives access to product aggregates inside a session. Every
// product returned or added is tracked until the session ends.
type Repository interface {
	Add(ctx context.Context, p *product.Product) error
	Get(ctx context.Context, sku string) (*product.Product, bool, error)
	GetByBatchRef(ctx context.Context, ref string) (*product.Product, bool, error)
	Seen() []*product.Product
}

// UnitOfWork is a single transactional scope. Anything not explicitly
// committed is rolled back by End.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Products() Repository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	End(ctx context.Context) error
	CollectNewEvents() []events.Event
}

// Within runs fn inside a session. The session is always ended, which rolls
// back unless fn committed.
func Within(ctx context.Context, uow UnitOfWork, fn func(ctx context.Context) error) (err error) {
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if endErr := uow.End(ctx); endErr != nil {
			err = errors.Join(err, endErr)
		}
	}()
	return fn(ctx)
}

func drainEvents(repo Repository) []events.Event {
	if repo == nil {
		return nil
	}
	var collected []events.Event
	for _, p := range repo.Seen() {
		collected = append(collected, p.DrainEvents()...)
	}
	return collected
}
