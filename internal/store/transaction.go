package store

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey int

const transactionKey contextKey = iota

type Tx struct {
	tx *gorm.DB
}

func (t *Tx) Commit() error {
	return t.tx.Commit().Error
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback().Error
}

// Commit commits the transaction stored in the context, if any.
func Commit(ctx context.Context) (context.Context, error) {
	tx, ok := ctx.Value(transactionKey).(*Tx)
	if !ok {
		return ctx, nil
	}
	newCtx := context.WithValue(ctx, transactionKey, nil)
	return newCtx, tx.Commit()
}

// Rollback rolls back the transaction stored in the context, if any.
func Rollback(ctx context.Context) (context.Context, error) {
	tx, ok := ctx.Value(transactionKey).(*Tx)
	if !ok {
		return ctx, nil
	}
	newCtx := context.WithValue(ctx, transactionKey, nil)
	return newCtx, tx.Rollback()
}

// FromContext returns the transaction from the context or nil when the caller
// is not running inside a transaction.
func FromContext(ctx context.Context) *gorm.DB {
	if tx, found := ctx.Value(transactionKey).(*Tx); found && tx != nil {
		return tx.tx
	}
	return nil
}

func newTransactionContext(ctx context.Context, db *gorm.DB) (context.Context, error) {
	// reuse an already opened transaction
	if _, found := ctx.Value(transactionKey).(*Tx); found {
		return ctx, nil
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		zap.S().Named("store").Errorw("failed to begin transaction", "error", tx.Error)
		return ctx, tx.Error
	}

	return context.WithValue(ctx, transactionKey, &Tx{tx: tx}), nil
}
