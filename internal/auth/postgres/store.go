// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

// Package postgres implements auth repositories on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
)

// DBTX is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn is a DBTX that can open a transaction.
type Conn interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements auth.Store on a connection pool or an open transaction.
type Store struct {
	db Conn
}

// NewStore creates a Store. db is usually a *pgxpool.Pool.
func NewStore(db Conn) *Store {
	return &Store{db: db}
}

// Users returns the user repository.
func (s *Store) Users() auth.UserRepository {
	return NewUserRepository(s.db)
}

// Tokens returns the token repository.
func (s *Store) Tokens() auth.TokenRepository {
	return NewTokenRepository(s.db)
}

// InTx runs fn inside a transaction. Called on a transactional Store it
// opens a savepoint.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx auth.Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return oops.Code("STORE_TX_FAILED").With("operation", "begin").Wrap(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx) //nolint:errcheck // re-panicking
			panic(p)
		}
	}()

	if err := fn(ctx, &Store{db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.WarnContext(ctx, "transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("STORE_TX_FAILED").With("operation", "commit").Wrap(err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

var _ auth.Store = (*Store)(nil)
