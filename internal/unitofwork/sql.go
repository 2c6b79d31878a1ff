package unitofwork

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/idkosilov/furniture/internal/domain/events"
	"github.com/idkosilov/furniture/internal/infrastructure/store"
)

// SQLUnitOfWork checks out a dedicated connection per session and runs the
// session in a transaction on it.
type SQLUnitOfWork struct {
	db      *sql.DB
	dialect store.Dialect

	conn      *sql.Conn
	tx        *sql.Tx
	repo      *store.SQLRepository
	committed bool
}

func NewSQLUnitOfWork(db *sql.DB, dialect store.Dialect) *SQLUnitOfWork {
	return &SQLUnitOfWork{db: db, dialect: dialect}
}

func (u *SQLUnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return ErrSessionActive
	}

	conn, err := u.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.conn = conn
	u.tx = tx
	u.repo = store.NewSQLRepository(tx, u.dialect)
	u.committed = false
	return nil
}

func (u *SQLUnitOfWork) Products() Repository {
	if u.repo == nil {
		return nil
	}
	return u.repo
}

// Commit writes every tracked product back and commits the transaction.
func (u *SQLUnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return ErrNoSession
	}
	if err := u.repo.SaveChanges(ctx); err != nil {
		return err
	}
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.committed = true
	return nil
}

func (u *SQLUnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return ErrNoSession
	}
	if u.committed {
		return nil
	}
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// End rolls back an uncommitted session and returns the connection to the
// pool. The repository is kept so CollectNewEvents still sees the session.
func (u *SQLUnitOfWork) End(ctx context.Context) error {
	if u.tx == nil {
		return ErrNoSession
	}
	rbErr := u.Rollback(ctx)
	closeErr := u.conn.Close()

	u.tx = nil
	u.conn = nil
	if closeErr != nil {
		closeErr = fmt.Errorf("failed to release connection: %w", closeErr)
	}
	return errors.Join(rbErr, closeErr)
}

// Committed reports whether the latest session was committed.
func (u *SQLUnitOfWork) Committed() bool {
	return u.committed
}

func (u *SQLUnitOfWork) CollectNewEvents() []events.Event {
	if u.repo == nil {
		return nil
	}
	return drainEvents(u.repo)
}
