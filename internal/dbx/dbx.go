// Package dbx содержит общие для SQL хранилищ хелперы: интерфейс DBTX,
// который реализуют *sql.DB и *sql.Tx, и запуск функции в транзакции.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX подмножество database/sql, которым пользуются репозитории
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx открывает транзакцию, выполняет fn и фиксирует ее
// При ошибке или панике в fn транзакция откатывается, паника пробрасывается дальше
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(ctx, tx)
	return err
}

// AffectedOne проверяет, что запрос затронул хотя бы одну строку
// Если строк нет, возвращает notFound
func AffectedOne(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
