package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/escola-backoffice/internal/models"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// withinTx runs fn in one transaction, rolling back when fn fails or panics.
func withinTx(ctx context.Context, provider txProvider, fn func(tx *sqlx.Tx) error) (err error) {
	if provider == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := provider.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit transaction")
	}
	return nil
}

func requireRole(actor models.Actor, roles ...models.UserRole) error {
	if actor.Is(roles...) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "insufficient role for this operation")
}

// repoError maps sql.ErrNoRows to a not-found error and anything else to an internal one.
func repoError(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
